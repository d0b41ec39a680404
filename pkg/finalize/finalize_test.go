package finalize

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/reunio/reunio/pkg/adapters/assist"
	"github.com/reunio/reunio/pkg/adapters/capture"
	"github.com/reunio/reunio/pkg/providers/mock"
	"github.com/reunio/reunio/pkg/storage"
	"github.com/reunio/reunio/pkg/store"
	"github.com/reunio/reunio/pkg/suggest"
	"github.com/reunio/reunio/pkg/transcript"
)

func baseInput() Input {
	return Input{
		SessionID: "s1",
		UserID:    "u1",
		Chunks: []transcript.Chunk{
			{Seq: 0, Text: "Bonjour à tous, bienvenue à cette réunion de planification"},
			{Seq: 1, Text: "Nous devons valider le budget du deuxième trimestre"},
		},
		Duration:  5 * time.Minute,
		StartedAt: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
	}
}

func TestRunInsertsBeforeSummary(t *testing.T) {
	st := store.NewMemory()
	a := mock.NewAssist(mock.AssistConfig{
		Summary: assist.Summary{Title: "Planification Q2", Summary: "Le budget a été discuté."},
	})
	f := New(st, a, Config{})

	var phases []Phase
	in := baseInput()
	in.OnPhase = func(p Phase) { phases = append(phases, p) }

	res, err := f.Run(context.Background(), in)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.MeetingID == "" {
		t.Fatalf("expected a meeting id")
	}
	if res.SummaryFailed {
		t.Fatalf("unexpected summary failure")
	}
	m, err := st.GetMeeting(context.Background(), res.MeetingID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if m.Summary != "Le budget a été discuté." || m.Title != "Planification Q2" {
		t.Fatalf("unexpected meeting %+v", m)
	}
	if m.SummaryMode != "short" || m.SummaryShort == "" {
		t.Fatalf("expected short mode fields, got %+v", m)
	}
	if len(phases) != 2 || phases[0] != PhaseSummary || phases[1] != PhaseDone {
		t.Fatalf("unexpected phases %v", phases)
	}
}

func TestRunRetriesInsertOnce(t *testing.T) {
	st := store.NewMemory()
	st.FailInsertsOnce(1, errors.New("connection reset"))
	f := New(st, mock.NewAssist(mock.AssistConfig{}), Config{})

	res, err := f.Run(context.Background(), baseInput())
	if err != nil {
		t.Fatalf("insert should succeed on retry: %v", err)
	}
	if res.MeetingID == "" {
		t.Fatalf("expected a meeting id after retry")
	}
}

func TestRunInsertFailureIsFatal(t *testing.T) {
	st := store.NewMemory()
	st.FailInsertsOnce(2, errors.New("db down"))
	f := New(st, mock.NewAssist(mock.AssistConfig{}), Config{InsertRetries: 1})

	if _, err := f.Run(context.Background(), baseInput()); err == nil {
		t.Fatalf("expected fatal error when insert keeps failing")
	}
}

func TestRunSummaryFailureKeepsTranscript(t *testing.T) {
	st := store.NewMemory()
	a := mock.NewAssist(mock.AssistConfig{SummarizeErr: errors.New("model overloaded")})
	f := New(st, a, Config{})

	var phases []Phase
	in := baseInput()
	in.OnPhase = func(p Phase) { phases = append(phases, p) }

	res, err := f.Run(context.Background(), in)
	if err != nil {
		t.Fatalf("summary failure must not fail the run: %v", err)
	}
	if !res.SummaryFailed {
		t.Fatalf("expected SummaryFailed")
	}
	m, _ := st.GetMeeting(context.Background(), res.MeetingID)
	if !m.SummaryFailed {
		t.Fatalf("expected summary_failed flag on the meeting")
	}
	if m.Transcript == "" {
		t.Fatalf("transcript must survive a summary failure")
	}
	want := []Phase{PhaseSummary, PhaseSummaryFailed, PhaseDone}
	if len(phases) != len(want) {
		t.Fatalf("unexpected phases %v", phases)
	}
	for i := range want {
		if phases[i] != want[i] {
			t.Fatalf("unexpected phases %v", phases)
		}
	}
}

func TestRunDedupesSuggestions(t *testing.T) {
	st := store.NewMemory()
	f := New(st, mock.NewAssist(mock.AssistConfig{}), Config{})

	in := baseInput()
	in.Suggestions = []suggest.Record{
		{Segment: 1, Clarifications: []string{"Pourriez-vous préciser le budget marketing ?"}},
		{Segment: 2, Clarifications: []string{"pouvez-vous préciser le budget marketing"}},
		{Segment: 2, Topics: []string{"Plan de recrutement"}},
		{Segment: 3, Topics: []string{"plan de recrutement"}},
	}
	res, err := f.Run(context.Background(), in)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.SuggestionCount != 2 {
		t.Fatalf("expected 2 deduped suggestions, got %d", res.SuggestionCount)
	}
	got, _ := st.ListSuggestions(context.Background(), res.MeetingID)
	if len(got) != 2 {
		t.Fatalf("expected 2 stored suggestions, got %d", len(got))
	}
	if got[0].Segment != 1 {
		t.Fatalf("first occurrence should win, got segment %d", got[0].Segment)
	}
}

func TestRunFallsBackToFullTranscription(t *testing.T) {
	st := store.NewMemory()
	f := New(st, mock.NewAssist(mock.AssistConfig{}), Config{})
	f.SetTranscriber(mock.NewTranscriber(mock.TranscribeConfig{
		Results: []mock.TranscribeResult{{Text: "Bonjour à tous. Nous avons validé le budget du deuxième trimestre. La réunion est terminée."}},
	}))

	in := baseInput()
	in.Chunks = nil
	in.Recording = capture.Clip{Data: make([]byte, 8192), MIME: "audio/webm"}

	res, err := f.Run(context.Background(), in)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	m, _ := st.GetMeeting(context.Background(), res.MeetingID)
	if !strings.Contains(m.Transcript, "budget du deuxième trimestre") {
		t.Fatalf("fallback transcript missing: %q", m.Transcript)
	}
}

func TestRunUploadsAudioInBackground(t *testing.T) {
	st := store.NewMemory()
	objects := storage.NewMemoryStore()
	f := New(st, mock.NewAssist(mock.AssistConfig{}), Config{})
	f.SetObjectStore(objects)

	in := baseInput()
	in.Title = "Réunion budget"
	in.Recording = capture.Clip{Data: []byte("audio-bytes"), MIME: "audio/webm"}

	res, err := f.Run(context.Background(), in)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	f.Wait()

	objs := objects.Objects()
	if len(objs) != 1 {
		t.Fatalf("expected 1 uploaded object, got %d", len(objs))
	}
	if !strings.HasPrefix(objs[0].Path, "u1/2026-03-14/") {
		t.Fatalf("unexpected object path %s", objs[0].Path)
	}
	m, _ := st.GetMeeting(context.Background(), res.MeetingID)
	if !strings.HasPrefix(m.AudioURL, "memory://") {
		t.Fatalf("expected audio url, got %q", m.AudioURL)
	}
}

func TestRunUploadFailureLeavesMeetingIntact(t *testing.T) {
	st := store.NewMemory()
	objects := storage.NewMemoryStore()
	objects.UploadErr = errors.New("bucket unavailable")
	objects.Failures = -1
	f := New(st, mock.NewAssist(mock.AssistConfig{}), Config{UploadRetries: 1})
	f.SetObjectStore(objects)

	in := baseInput()
	in.Recording = capture.Clip{Data: []byte("audio"), MIME: "audio/webm"}
	res, err := f.Run(context.Background(), in)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	f.Wait()
	m, _ := st.GetMeeting(context.Background(), res.MeetingID)
	if m.AudioURL != "" {
		t.Fatalf("failed upload must leave audio_url empty, got %q", m.AudioURL)
	}
}

func TestRegenerate(t *testing.T) {
	st := store.NewMemory()
	a := mock.NewAssist(mock.AssistConfig{
		Summary: assist.Summary{Title: "Planification Q2", Summary: "Résumé détaillé de la réunion."},
	})
	f := New(st, a, Config{})

	res, err := f.Run(context.Background(), baseInput())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	sum, err := f.Regenerate(context.Background(), res.MeetingID, assist.ModeDetailed)
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if sum.Summary == "" {
		t.Fatalf("expected regenerated summary")
	}
	m, _ := st.GetMeeting(context.Background(), res.MeetingID)
	if !m.SummaryRegenerated {
		t.Fatalf("expected summary_regenerated flag")
	}
	if m.SummaryMode != "detailed" || m.SummaryDetailed == "" {
		t.Fatalf("expected detailed fields, got %+v", m)
	}
	if m.SummaryShort == "" {
		t.Fatalf("regeneration must keep the other mode's text")
	}
}

func TestRecommendedModeDetailedForLongTranscripts(t *testing.T) {
	st := store.NewMemory()
	a := mock.NewAssist(mock.AssistConfig{
		Summary: assist.Summary{Title: "Longue réunion", Summary: "Résumé."},
	})
	f := New(st, a, Config{})

	var words []string
	for i := 0; i < 900; i++ {
		words = append(words, "mot"+strings.Repeat("s", i%3))
	}
	in := baseInput()
	in.Chunks = []transcript.Chunk{{Seq: 0, Text: strings.Join(words, " ")}}

	res, err := f.Run(context.Background(), in)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Mode != assist.ModeDetailed {
		t.Fatalf("expected detailed mode, got %s", res.Mode)
	}
	if a.LastMode() != assist.ModeDetailed {
		t.Fatalf("summarizer should be asked for detailed mode")
	}
}
