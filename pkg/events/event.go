package events

import "time"

type Kind string

const (
	KindState      Kind = "state"
	KindChunk      Kind = "chunk"
	KindSuggestion Kind = "suggestion"
	KindReminder   Kind = "reminder"
	KindQuota      Kind = "quota"
	KindSummary    Kind = "summary"
	KindUpload     Kind = "upload"
	KindError      Kind = "error"
)

// Meta keys shared across components.
const (
	MetaSessionID = "session_id"
	MetaUserID    = "user_id"
	MetaMeetingID = "meeting_id"
	MetaState     = "state"
	MetaReason    = "reason"
	MetaMode      = "mode"
	MetaURL       = "url"
	MetaElapsed   = "elapsed_s"
)

// Event is a session-scoped notification pushed to live listeners
// (websocket clients, observers). Values are immutable after creation.
type Event struct {
	Kind      Kind              `json:"kind"`
	Time      time.Time         `json:"time"`
	SessionID string            `json:"session_id"`
	Seq       int               `json:"seq,omitempty"`
	Text      string            `json:"text,omitempty"`
	Meta      map[string]string `json:"meta,omitempty"`
}

func New(kind Kind, sessionID string, meta map[string]string) Event {
	return Event{
		Kind:      kind,
		Time:      time.Now(),
		SessionID: sessionID,
		Meta:      cloneMeta(meta),
	}
}

func NewText(kind Kind, sessionID string, seq int, text string, meta map[string]string) Event {
	ev := New(kind, sessionID, meta)
	ev.Seq = seq
	ev.Text = text
	return ev
}

// Emitter delivers events to interested parties. Implementations must
// not block the caller.
type Emitter interface {
	Emit(ev Event)
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(ev Event)

func (f EmitterFunc) Emit(ev Event) { f(ev) }

// NopEmitter drops every event.
type NopEmitter struct{}

func (NopEmitter) Emit(Event) {}

func cloneMeta(meta map[string]string) map[string]string {
	if meta == nil {
		return nil
	}
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}
