package finalize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/reunio/reunio/pkg/adapters/assist"
	"github.com/reunio/reunio/pkg/adapters/capture"
	"github.com/reunio/reunio/pkg/adapters/transcribe"
	"github.com/reunio/reunio/pkg/errorsx"
	"github.com/reunio/reunio/pkg/events"
	"github.com/reunio/reunio/pkg/metrics"
	"github.com/reunio/reunio/pkg/resilience"
	"github.com/reunio/reunio/pkg/storage"
	"github.com/reunio/reunio/pkg/store"
	"github.com/reunio/reunio/pkg/suggest"
	"github.com/reunio/reunio/pkg/textnorm"
	"github.com/reunio/reunio/pkg/transcript"
)

// Phase marks the finalization milestones the session lifecycle tracks.
type Phase string

const (
	// PhaseSummary fires once the transcript is durably inserted.
	PhaseSummary Phase = "summary"
	// PhaseSummaryFailed fires when summary generation or its update
	// failed; the transcript is already safe.
	PhaseSummaryFailed Phase = "summary_failed"
	// PhaseDone fires when finalization finished. Audio upload may
	// still be running in the background.
	PhaseDone Phase = "done"
)

type Config struct {
	// Window is the rolling cadence the chunk timestamps were captured at.
	Window time.Duration
	// SimilarityThreshold is the Jaccard cutoff for suggestion dedup.
	SimilarityThreshold float64
	// InsertRetries is how many times a failed meeting insert is retried.
	InsertRetries int
	// UploadRetries is how many times a failed audio upload is retried.
	UploadRetries int
	// UploadTimeout bounds the background audio upload.
	UploadTimeout time.Duration
}

// Input is everything a stopped session hands over for finalization.
type Input struct {
	SessionID   string
	UserID      string
	Title       string
	Notes       string
	Chunks      []transcript.Chunk
	Suggestions []suggest.Record
	Recording   capture.Clip
	Duration    time.Duration
	StartedAt   time.Time
	// OnPhase, when set, is called as finalization crosses each phase.
	OnPhase func(Phase)
}

// Result reports what finalization produced.
type Result struct {
	MeetingID       string
	Title           string
	Summary         string
	Mode            assist.Mode
	SummaryFailed   bool
	SuggestionCount int
}

// Finalizer turns a stopped session into a persisted meeting. The
// transcript insert happens before any summary work so a summary
// failure never loses the transcript.
type Finalizer struct {
	store       store.Store
	objects     storage.ObjectStore
	summarizer  assist.Summarizer
	transcriber transcribe.Transcriber
	cfg         Config
	logger      *slog.Logger

	obs     metrics.Observer
	emitter events.Emitter
	bg      sync.WaitGroup
}

func New(st store.Store, summarizer assist.Summarizer, cfg Config) *Finalizer {
	if cfg.Window <= 0 {
		cfg.Window = 15 * time.Second
	}
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = 0.8
	}
	if cfg.InsertRetries <= 0 {
		cfg.InsertRetries = 1
	}
	if cfg.UploadRetries <= 0 {
		cfg.UploadRetries = 2
	}
	if cfg.UploadTimeout <= 0 {
		cfg.UploadTimeout = 2 * time.Minute
	}
	return &Finalizer{
		store:      st,
		summarizer: summarizer,
		cfg:        cfg,
		logger:     slog.Default().With(slog.String("component", "finalize")),
		emitter:    events.NopEmitter{},
	}
}

// SetObjectStore enables background audio upload.
func (f *Finalizer) SetObjectStore(objects storage.ObjectStore) { f.objects = objects }

// SetTranscriber enables the full-recording fallback for sessions whose
// rolling transcript came back nearly empty.
func (f *Finalizer) SetTranscriber(t transcribe.Transcriber) { f.transcriber = t }

func (f *Finalizer) SetObserver(obs metrics.Observer) { f.obs = obs }

func (f *Finalizer) SetEmitter(emitter events.Emitter) {
	if emitter != nil {
		f.emitter = emitter
	}
}

// Run finalizes one session. It returns an error only when the meeting
// could not be persisted; summary, suggestion, and upload failures are
// reported through the result and flags instead.
func (f *Finalizer) Run(ctx context.Context, in Input) (Result, error) {
	clean, display := f.buildTranscripts(ctx, in)

	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = "Réunion du " + in.StartedAt.Format("2006-01-02")
	}

	meeting := &store.Meeting{
		UserID:            in.UserID,
		Title:             title,
		Transcript:        clean,
		DisplayTranscript: display,
		DurationSeconds:   int(in.Duration.Seconds()),
		Notes:             in.Notes,
		CreatedAt:         in.StartedAt,
	}
	retry := resilience.NewRetryPolicy(f.cfg.InsertRetries, 500*time.Millisecond)
	err := retry.DoCtx(ctx, func(ctx context.Context) error {
		return f.store.InsertMeeting(ctx, meeting)
	})
	if err != nil {
		err = errorsx.Wrapf(err, errorsx.ReasonMeetingInsert, "insert meeting for session %s", in.SessionID)
		f.logger.Error("meeting_insert_failed",
			"session_id", in.SessionID,
			"reason_code", string(errorsx.Reason(err)),
			"error", err.Error())
		return Result{}, err
	}
	f.record(metrics.EventMeetingInserted, in)
	f.logger.Info("meeting_inserted", "session_id", in.SessionID, "meeting_id", meeting.ID,
		"duration_s", meeting.DurationSeconds, "transcript_chars", len(clean))

	res := Result{MeetingID: meeting.ID, Title: title}
	f.phase(in, PhaseSummary)

	summary, mode, err := f.generateSummary(ctx, clean)
	if err != nil {
		res.SummaryFailed = true
		f.markSummaryFailed(ctx, in, meeting.ID, err)
		f.phase(in, PhaseSummaryFailed)
	} else {
		res.Summary = summary.Summary
		res.Mode = mode
		if summary.Title != "" {
			res.Title = summary.Title
		}
		upd := store.SummaryUpdate{
			Title:   summary.Title,
			Summary: summary.Summary,
			Mode:    string(mode),
		}
		if mode == assist.ModeDetailed {
			upd.SummaryDetailed = summary.Summary
		} else {
			upd.SummaryShort = summary.Summary
		}
		if uerr := f.store.UpdateSummary(ctx, meeting.ID, upd); uerr != nil {
			res.SummaryFailed = true
			f.markSummaryFailed(ctx, in, meeting.ID, errorsx.Wrap(uerr, errorsx.ReasonMeetingUpdate))
			f.phase(in, PhaseSummaryFailed)
		} else {
			f.record(metrics.EventSummaryGenerated, in)
			f.emitter.Emit(events.NewText(events.KindSummary, in.SessionID, 0, summary.Summary, map[string]string{
				events.MetaMeetingID: meeting.ID,
				events.MetaMode:      string(mode),
			}))
		}
	}

	res.SuggestionCount = f.saveSuggestions(ctx, in, meeting.ID)
	f.uploadAudio(in, meeting.ID, title)
	f.phase(in, PhaseDone)
	return res, nil
}

// Wait blocks until background uploads have finished.
func (f *Finalizer) Wait() {
	f.bg.Wait()
}

// Regenerate produces a fresh summary for an existing meeting in the
// requested mode, keeping the previously generated text of the other
// mode. A success clears the summary_failed flag.
func (f *Finalizer) Regenerate(ctx context.Context, meetingID string, mode assist.Mode) (assist.Summary, error) {
	meeting, err := f.store.GetMeeting(ctx, meetingID)
	if err != nil {
		return assist.Summary{}, err
	}
	if strings.TrimSpace(meeting.Transcript) == "" {
		return assist.Summary{}, fmt.Errorf("meeting %s has no transcript", meetingID)
	}
	summary, err := f.summarizer.Summarize(ctx, meeting.Transcript, mode)
	if err != nil {
		return assist.Summary{}, errorsx.Wrap(err, errorsx.ReasonSummaryGenerate)
	}
	upd := store.SummaryUpdate{
		Title:           summary.Title,
		Summary:         summary.Summary,
		SummaryShort:    meeting.SummaryShort,
		SummaryDetailed: meeting.SummaryDetailed,
		Mode:            string(mode),
		Regenerated:     true,
	}
	if mode == assist.ModeDetailed {
		upd.SummaryDetailed = summary.Summary
	} else {
		upd.SummaryShort = summary.Summary
	}
	if err := f.store.UpdateSummary(ctx, meetingID, upd); err != nil {
		return assist.Summary{}, errorsx.Wrap(err, errorsx.ReasonMeetingUpdate)
	}
	f.logger.Info("summary_regenerated", "meeting_id", meetingID, "mode", string(mode))
	return summary, nil
}

// buildTranscripts prefers the rolling accumulator; when it is nearly
// empty and a full recording exists, the whole blob is transcribed once
// as a fallback.
func (f *Finalizer) buildTranscripts(ctx context.Context, in Input) (clean, display string) {
	clean = transcript.Clean(in.Chunks)
	display = transcript.Display(in.Chunks, f.cfg.Window)
	if len(clean) > transcript.MinLiveChars || f.transcriber == nil || in.Recording.Size() == 0 {
		return clean, display
	}

	hint := fmt.Sprintf("%s_full.webm", in.SessionID)
	text, err := f.transcriber.Transcribe(ctx, in.Recording, 0, hint)
	if err != nil {
		err = errorsx.Wrap(err, errorsx.ReasonTranscribeFallback)
		f.logger.Info("fallback_transcription_failed",
			"session_id", in.SessionID,
			"reason_code", string(errorsx.Reason(err)),
			"error", err.Error())
		return clean, display
	}
	text = strings.TrimSpace(text)
	if len(text) <= len(clean) {
		return clean, display
	}
	f.logger.Info("fallback_transcription_used", "session_id", in.SessionID, "chars", len(text))
	kept := transcript.CleanSentences(transcript.SplitSentences(text))
	if len(kept) > 0 {
		clean = strings.Join(kept, ". ") + "."
	}
	return clean, text
}

func (f *Finalizer) generateSummary(ctx context.Context, clean string) (assist.Summary, assist.Mode, error) {
	mode := assist.RecommendMode(clean)
	if f.summarizer == nil || strings.TrimSpace(clean) == "" {
		return assist.Summary{}, mode, errorsx.Wrap(fmt.Errorf("nothing to summarize"), errorsx.ReasonSummaryGenerate)
	}
	summary, err := f.summarizer.Summarize(ctx, clean, mode)
	if err != nil {
		return assist.Summary{}, mode, errorsx.Wrap(err, errorsx.ReasonSummaryGenerate)
	}
	return summary, mode, nil
}

// markSummaryFailed flags the meeting best-effort: the transcript is
// already durable and a later regeneration can clear the flag.
func (f *Finalizer) markSummaryFailed(ctx context.Context, in Input, meetingID string, cause error) {
	f.logger.Error("summary_failed",
		"session_id", in.SessionID,
		"meeting_id", meetingID,
		"reason_code", string(errorsx.Reason(cause)),
		"error", cause.Error())
	f.record(metrics.EventSummaryFailed, in)
	if err := f.store.MarkSummaryFailed(ctx, meetingID); err != nil {
		f.logger.Error("summary_failed_flag_error", "meeting_id", meetingID, "error", err.Error())
	}
}

// saveSuggestions canonicalizes and near-dedups the collected
// suggestions, then inserts them in one batch. Failures are non-fatal.
func (f *Finalizer) saveSuggestions(ctx context.Context, in Input, meetingID string) int {
	suggestions := f.dedupeSuggestions(in.Suggestions, meetingID)
	if len(suggestions) == 0 {
		return 0
	}
	if err := f.store.InsertSuggestions(ctx, suggestions); err != nil {
		err = errorsx.Wrap(err, errorsx.ReasonSuggestionInsert)
		f.logger.Error("suggestion_insert_failed",
			"session_id", in.SessionID,
			"meeting_id", meetingID,
			"reason_code", string(errorsx.Reason(err)),
			"error", err.Error())
		return 0
	}
	return len(suggestions)
}

// dedupeSuggestions keeps the first of each near-duplicate group per
// kind, comparing canonicalized token sets.
func (f *Finalizer) dedupeSuggestions(records []suggest.Record, meetingID string) []store.Suggestion {
	type cand struct {
		kind    store.SuggestionKind
		text    string
		segment int
	}
	var cands []cand
	for _, r := range records {
		for _, c := range r.Clarifications {
			cands = append(cands, cand{store.SuggestionClarification, c, r.Segment})
		}
		for _, t := range r.Topics {
			cands = append(cands, cand{store.SuggestionTopic, t, r.Segment})
		}
	}
	var out []store.Suggestion
	keptTokens := make(map[store.SuggestionKind][]map[string]struct{})
	for _, c := range cands {
		text := strings.TrimSpace(c.text)
		toks := textnorm.Tokens(text)
		if len(toks) == 0 {
			continue
		}
		dup := false
		for _, prev := range keptTokens[c.kind] {
			if textnorm.Jaccard(toks, prev) >= f.cfg.SimilarityThreshold {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		keptTokens[c.kind] = append(keptTokens[c.kind], toks)
		out = append(out, store.Suggestion{
			MeetingID: meetingID,
			Kind:      c.kind,
			Text:      text,
			Segment:   c.segment,
		})
	}
	return out
}

// uploadAudio stores the recording in the background. Finalization does
// not wait for it; a failed upload leaves audio_url empty.
func (f *Finalizer) uploadAudio(in Input, meetingID, title string) {
	if f.objects == nil || in.Recording.Size() == 0 {
		return
	}
	path := storage.ObjectPath(in.UserID, title, in.StartedAt, extFromMIME(in.Recording.MIME))
	f.bg.Add(1)
	go func() {
		defer f.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), f.cfg.UploadTimeout)
		defer cancel()

		var url string
		retry := resilience.NewRetryPolicy(f.cfg.UploadRetries, time.Second)
		err := retry.DoCtx(ctx, func(ctx context.Context) error {
			var uerr error
			url, uerr = f.objects.Upload(ctx, path, in.Recording.Data, in.Recording.MIME)
			return uerr
		})
		if err != nil {
			err = errorsx.Wrap(err, errorsx.ReasonStorageUpload)
			f.logger.Error("audio_upload_failed",
				"session_id", in.SessionID,
				"meeting_id", meetingID,
				"path", path,
				"reason_code", string(errorsx.Reason(err)),
				"error", err.Error())
			f.record(metrics.EventUploadFailed, in)
			return
		}
		if err := f.store.SetAudioURL(ctx, meetingID, url); err != nil {
			f.logger.Error("audio_url_update_failed", "meeting_id", meetingID, "error", err.Error())
			return
		}
		f.record(metrics.EventAudioUploaded, in)
		f.emitter.Emit(events.New(events.KindUpload, in.SessionID, map[string]string{
			events.MetaMeetingID: meetingID,
			events.MetaURL:       url,
		}))
		f.logger.Info("audio_uploaded", "session_id", in.SessionID, "meeting_id", meetingID, "url", url)
	}()
}

func (f *Finalizer) phase(in Input, p Phase) {
	if in.OnPhase != nil {
		in.OnPhase(p)
	}
}

func (f *Finalizer) record(name string, in Input) {
	if f.obs == nil {
		return
	}
	f.obs.RecordEvent(metrics.MetricsEvent{
		Name: name,
		Time: time.Now(),
		Tags: map[string]string{events.MetaSessionID: in.SessionID, "component": "finalize"},
	})
}

func extFromMIME(mime string) string {
	switch {
	case strings.Contains(mime, "ogg"):
		return "ogg"
	case strings.Contains(mime, "wav"):
		return "wav"
	case strings.Contains(mime, "mp4"), strings.Contains(mime, "m4a"):
		return "m4a"
	default:
		return "webm"
	}
}
