package transcript

import (
	"fmt"
	"strings"
	"time"
)

// MinSentenceChars is the floor below which a sentence is treated as a
// transcription fragment and dropped from the clean transcript.
const MinSentenceChars = 10

// MinLiveChars is the accumulator length above which the rolling
// transcript is trusted for finalization instead of re-transcribing the
// full recording.
const MinLiveChars = 50

// Display renders the human-readable transcript: one block per chunk,
// prefixed with the estimated end timestamp of its window. The estimate
// is positional ((index+1) * window), matching how the windows were
// captured.
func Display(chunks []Chunk, window time.Duration) string {
	if window <= 0 {
		window = 15 * time.Second
	}
	var sb strings.Builder
	for i, c := range chunks {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		at := time.Duration(i+1) * window
		sb.WriteString(fmt.Sprintf("[%s] %s", formatOffset(at), c.Text))
	}
	return sb.String()
}

// Clean builds the summarization input: chunks joined, split into
// sentences, short fragments dropped, and case-insensitive
// substring/superset sentences removed.
func Clean(chunks []Chunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Text
	}
	kept := CleanSentences(SplitSentences(strings.Join(parts, " ")))
	if len(kept) == 0 {
		return ""
	}
	return strings.Join(kept, ". ") + "."
}

// SplitSentences splits on sentence terminators, trimming whitespace
// and dropping empty segments. Terminators are not retained.
func SplitSentences(s string) []string {
	raw := strings.FieldsFunc(s, func(r rune) bool {
		switch r {
		case '.', '!', '?', '\n', '…':
			return true
		}
		return false
	})
	out := make([]string, 0, len(raw))
	for _, part := range raw {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// CleanSentences drops sentences of MinSentenceChars or fewer, then
// drops any sentence that is a case-insensitive substring or superset
// of an already-kept sentence. A superset replaces the shorter sentence
// it contains.
func CleanSentences(sentences []string) []string {
	kept := make([]string, 0, len(sentences))
	for _, s := range sentences {
		if len(s) <= MinSentenceChars {
			continue
		}
		lower := strings.ToLower(s)
		contained := false
		for _, prev := range kept {
			if strings.Contains(strings.ToLower(prev), lower) {
				contained = true
				break
			}
		}
		if contained {
			continue
		}
		// A superset displaces every kept sentence it contains.
		filtered := kept[:0]
		for _, prev := range kept {
			if !strings.Contains(lower, strings.ToLower(prev)) {
				filtered = append(filtered, prev)
			}
		}
		kept = append(filtered, s)
	}
	return kept
}

// WordCount counts whitespace-separated words.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

func formatOffset(d time.Duration) string {
	total := int(d.Seconds())
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
