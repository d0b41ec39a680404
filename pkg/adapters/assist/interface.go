package assist

import (
	"context"
	"strings"
)

// Mode selects the summary depth requested from the assistant.
type Mode string

const (
	ModeShort    Mode = "short"
	ModeDetailed Mode = "detailed"
)

// Meetings beyond this word count get the detailed treatment.
const detailedWordThreshold = 800

// Summary is the assistant's output for one meeting transcript.
type Summary struct {
	Title   string
	Summary string
}

// Suggestions is the assistant's live analysis of a transcript window.
type Suggestions struct {
	Clarifications []string
	Topics         []string
}

// Summarizer generates a title and summary from a clean transcript.
type Summarizer interface {
	Name() string
	Summarize(ctx context.Context, transcript string, mode Mode) (Summary, error)
}

// Analyzer extracts things to clarify and topics to explore from a
// short live-transcript window.
type Analyzer interface {
	Name() string
	Analyze(ctx context.Context, window string) (Suggestions, error)
}

// ParseMode normalizes a config string, defaulting to short.
func ParseMode(v string) Mode {
	if strings.EqualFold(strings.TrimSpace(v), string(ModeDetailed)) {
		return ModeDetailed
	}
	return ModeShort
}

// RecommendMode picks a summary mode from the live transcript size.
func RecommendMode(transcript string) Mode {
	if len(strings.Fields(transcript)) >= detailedWordThreshold {
		return ModeDetailed
	}
	return ModeShort
}
