package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a meeting does not exist.
var ErrNotFound = errors.New("meeting not found")

// SuggestionKind distinguishes the two suggestion families.
type SuggestionKind string

const (
	SuggestionClarification SuggestionKind = "clarification"
	SuggestionTopic         SuggestionKind = "topic"
)

// Meeting is the persisted record of a finalized recording session.
// Transcript is the cleaned summarization input; DisplayTranscript is
// the timestamped human-readable rendering.
type Meeting struct {
	ID                 string
	UserID             string
	Title              string
	Transcript         string
	DisplayTranscript  string
	Summary            string
	SummaryShort       string
	SummaryDetailed    string
	SummaryMode        string
	SummaryRegenerated bool
	SummaryFailed      bool
	DurationSeconds    int
	Notes              string
	AudioURL           string
	CreatedAt          time.Time
}

// Suggestion is one persisted live-analysis suggestion, tagged with the
// transcript segment that produced it.
type Suggestion struct {
	ID        string
	MeetingID string
	Kind      SuggestionKind
	Text      string
	Segment   int
	CreatedAt time.Time
}

// SummaryUpdate carries the fields written once summary generation
// succeeds.
type SummaryUpdate struct {
	Title           string
	Summary         string
	SummaryShort    string
	SummaryDetailed string
	Mode            string
	Regenerated     bool
}

// Store persists meetings and their suggestions. The transcript insert
// happens before any summary work; summary and audio fields are applied
// by later updates so a summary failure never loses the transcript.
type Store interface {
	InsertMeeting(ctx context.Context, m *Meeting) error
	GetMeeting(ctx context.Context, id string) (Meeting, error)
	ListMeetings(ctx context.Context, userID string) ([]Meeting, error)
	UpdateSummary(ctx context.Context, meetingID string, upd SummaryUpdate) error
	MarkSummaryFailed(ctx context.Context, meetingID string) error
	SetAudioURL(ctx context.Context, meetingID, url string) error
	SetNotes(ctx context.Context, meetingID, notes string) error
	InsertSuggestions(ctx context.Context, suggestions []Suggestion) error
	ListSuggestions(ctx context.Context, meetingID string) ([]Suggestion, error)
}
