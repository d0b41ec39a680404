package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-memory store for tests and examples. Error fields,
// when set, force the matching operation to fail.
type Memory struct {
	mu          sync.Mutex
	meetings    map[string]Meeting
	suggestions map[string][]Suggestion

	InsertMeetingErr      error
	UpdateSummaryErr      error
	InsertSuggestionsErr  error
	SetAudioURLErr        error
	insertMeetingFailures int
}

func NewMemory() *Memory {
	return &Memory{
		meetings:    make(map[string]Meeting),
		suggestions: make(map[string][]Suggestion),
	}
}

// FailInsertsOnce makes the next n InsertMeeting calls fail with err,
// then recover. Used to exercise the insert retry.
func (s *Memory) FailInsertsOnce(n int, err error) {
	s.mu.Lock()
	s.insertMeetingFailures = n
	s.InsertMeetingErr = err
	s.mu.Unlock()
}

func (s *Memory) InsertMeeting(ctx context.Context, m *Meeting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertMeetingFailures > 0 {
		s.insertMeetingFailures--
		err := s.InsertMeetingErr
		if s.insertMeetingFailures == 0 {
			s.InsertMeetingErr = nil
		}
		return err
	}
	if s.InsertMeetingErr != nil {
		return s.InsertMeetingErr
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	s.meetings[m.ID] = *m
	return nil
}

func (s *Memory) GetMeeting(ctx context.Context, id string) (Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meetings[id]
	if !ok {
		return Meeting{}, ErrNotFound
	}
	return m, nil
}

func (s *Memory) ListMeetings(ctx context.Context, userID string) ([]Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Meeting
	for _, m := range s.meetings {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Memory) UpdateSummary(ctx context.Context, meetingID string, upd SummaryUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.UpdateSummaryErr != nil {
		return s.UpdateSummaryErr
	}
	m, ok := s.meetings[meetingID]
	if !ok {
		return ErrNotFound
	}
	if upd.Title != "" {
		m.Title = upd.Title
	}
	m.Summary = upd.Summary
	m.SummaryShort = upd.SummaryShort
	m.SummaryDetailed = upd.SummaryDetailed
	m.SummaryMode = upd.Mode
	m.SummaryRegenerated = upd.Regenerated
	m.SummaryFailed = false
	s.meetings[meetingID] = m
	return nil
}

func (s *Memory) MarkSummaryFailed(ctx context.Context, meetingID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meetings[meetingID]
	if !ok {
		return ErrNotFound
	}
	m.SummaryFailed = true
	s.meetings[meetingID] = m
	return nil
}

func (s *Memory) SetAudioURL(ctx context.Context, meetingID, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SetAudioURLErr != nil {
		return s.SetAudioURLErr
	}
	m, ok := s.meetings[meetingID]
	if !ok {
		return ErrNotFound
	}
	m.AudioURL = url
	s.meetings[meetingID] = m
	return nil
}

func (s *Memory) SetNotes(ctx context.Context, meetingID, notes string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meetings[meetingID]
	if !ok {
		return ErrNotFound
	}
	m.Notes = notes
	s.meetings[meetingID] = m
	return nil
}

func (s *Memory) InsertSuggestions(ctx context.Context, suggestions []Suggestion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.InsertSuggestionsErr != nil {
		return s.InsertSuggestionsErr
	}
	for _, sg := range suggestions {
		if sg.ID == "" {
			sg.ID = uuid.NewString()
		}
		if sg.CreatedAt.IsZero() {
			sg.CreatedAt = time.Now()
		}
		s.suggestions[sg.MeetingID] = append(s.suggestions[sg.MeetingID], sg)
	}
	return nil
}

func (s *Memory) ListSuggestions(ctx context.Context, meetingID string) ([]Suggestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Suggestion, len(s.suggestions[meetingID]))
	copy(out, s.suggestions[meetingID])
	return out, nil
}

var _ Store = (*Memory)(nil)
