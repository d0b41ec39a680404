package transcript

import (
	"sort"
	"strings"
	"sync"
)

// MinChunkChars is the minimum trimmed length for a transcription
// result to be considered speech rather than noise.
const MinChunkChars = 5

// Chunk is one transcription result for one rolling window. Seq is the
// window's sequence number, assigned when the window was captured, so
// late transcription results fold back in recording order.
type Chunk struct {
	Seq  int
	Text string
}

// ChunkList accumulates accepted chunks for one recording session.
// Chunks are kept sorted by Seq and deduplicated by case-insensitive
// containment: a candidate is rejected when it equals, is contained in,
// or contains any accepted chunk.
type ChunkList struct {
	mu     sync.Mutex
	chunks []Chunk
}

func NewChunkList() *ChunkList {
	return &ChunkList{}
}

// Add inserts a chunk in sequence order. It returns false when the
// candidate is empty, too short, or a containment duplicate.
func (l *ChunkList) Add(seq int, text string) bool {
	text = strings.TrimSpace(text)
	if len(text) <= MinChunkChars {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	lower := strings.ToLower(text)
	for _, c := range l.chunks {
		existing := strings.ToLower(c.Text)
		if strings.Contains(existing, lower) || strings.Contains(lower, existing) {
			return false
		}
	}
	idx := sort.Search(len(l.chunks), func(i int) bool { return l.chunks[i].Seq >= seq })
	l.chunks = append(l.chunks, Chunk{})
	copy(l.chunks[idx+1:], l.chunks[idx:])
	l.chunks[idx] = Chunk{Seq: seq, Text: text}
	return true
}

// Chunks returns a snapshot in sequence order.
func (l *ChunkList) Chunks() []Chunk {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Chunk, len(l.chunks))
	copy(out, l.chunks)
	return out
}

// Accumulated returns the live transcript: accepted chunks joined in
// sequence order.
func (l *ChunkList) Accumulated() string {
	chunks := l.Chunks()
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Text
	}
	return strings.Join(parts, " ")
}

// Before returns the text of the accepted chunk immediately preceding
// seq in sequence order, or "" when none precedes it.
func (l *ChunkList) Before(seq int) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	idx := sort.Search(len(l.chunks), func(i int) bool { return l.chunks[i].Seq >= seq })
	if idx == 0 {
		return ""
	}
	return l.chunks[idx-1].Text
}

func (l *ChunkList) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.chunks)
}

// Reset clears the list for a new session.
func (l *ChunkList) Reset() {
	l.mu.Lock()
	l.chunks = nil
	l.mu.Unlock()
}
