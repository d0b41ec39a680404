package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/reunio/reunio/pkg/adapters/capture"
	"github.com/reunio/reunio/pkg/events"
	"github.com/reunio/reunio/pkg/finalize"
	"github.com/reunio/reunio/pkg/metrics"
	"github.com/reunio/reunio/pkg/quota"
	"github.com/reunio/reunio/pkg/rolling"
	"github.com/reunio/reunio/pkg/suggest"
)

// QuotaChecker evaluates whether recording must pause because the
// user's plan ran out of minutes.
type QuotaChecker interface {
	Exceeded(ctx context.Context, userID string, elapsed time.Duration) (bool, error)
}

// Hooks let the embedding application participate in lifecycle
// decisions. All hooks are optional.
type Hooks struct {
	// ConfirmShortStop is asked whether a session below the minimum
	// duration should still be saved. Returning false discards it.
	// A nil hook saves short sessions without asking; callers that
	// want the confirm-discard flow must set it.
	ConfirmShortStop func() bool
	// OnReminder fires for duration reminders ("soft_limit",
	// "hard_limit").
	OnReminder func(kind string, elapsed time.Duration)
	// OnQuotaReached fires once when the quota pause triggers.
	OnQuotaReached func()
	// OnSummaryFailed fires when the meeting was saved but its summary
	// could not be generated.
	OnSummaryFailed func(meetingID string)
}

type Config struct {
	SessionID string
	UserID    string
	Title     string
	// MinDuration is the floor below which a stop asks for
	// confirmation before saving.
	MinDuration time.Duration
	// SoftLimit triggers a one-time duration reminder.
	SoftLimit time.Duration
	// HardLimit force-stops the session.
	HardLimit time.Duration
	// PollInterval is the cadence of the quota and duration checks.
	PollInterval time.Duration
}

// Outcome is what a Stop produced.
type Outcome struct {
	Discarded bool
	Result    finalize.Result
}

// Controller owns one recording session: the capture source, the
// rolling transcription driver, the suggestion collector, the duration
// and quota policies, and the handoff to finalization.
type Controller struct {
	cfg       Config
	source    capture.Capture
	driver    *rolling.Driver
	collector *suggest.Collector
	finalizer *finalize.Finalizer
	checker   QuotaChecker
	usage     quota.Recorder
	hooks     Hooks
	sm        *stateMachine
	logger    *slog.Logger

	obs     metrics.Observer
	emitter events.Emitter

	mu           sync.Mutex
	ctx          context.Context
	startedAt    time.Time
	segmentStart time.Time
	accumulated  time.Duration
	notes        string
	monitorQuit  chan struct{}
	softWarned   bool
	hardStopped  bool
	quotaPaused  bool

	finalizing atomic.Bool
}

func NewController(source capture.Capture, driver *rolling.Driver, collector *suggest.Collector, finalizer *finalize.Finalizer, cfg Config) *Controller {
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}
	if cfg.MinDuration <= 0 {
		cfg.MinDuration = time.Minute
	}
	if cfg.SoftLimit <= 0 {
		cfg.SoftLimit = 2 * time.Hour
	}
	if cfg.HardLimit <= 0 {
		cfg.HardLimit = 4 * time.Hour
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	return &Controller{
		cfg:       cfg,
		source:    source,
		driver:    driver,
		collector: collector,
		finalizer: finalizer,
		sm:        newStateMachine(),
		logger:    slog.Default().With(slog.String("component", "session")),
		emitter:   events.NopEmitter{},
	}
}

// SetQuota wires the quota policy. The recorder, when set, is credited
// with consumed minutes after finalization.
func (c *Controller) SetQuota(checker QuotaChecker, usage quota.Recorder) {
	c.checker = checker
	c.usage = usage
}

func (c *Controller) SetHooks(hooks Hooks) { c.hooks = hooks }

func (c *Controller) SetObserver(obs metrics.Observer) { c.obs = obs }

func (c *Controller) SetEmitter(emitter events.Emitter) {
	if emitter != nil {
		c.emitter = emitter
	}
}

// AddListener registers a state change listener.
func (c *Controller) AddListener(l StateListener) { c.sm.AddListener(l) }

// State returns the current lifecycle state.
func (c *Controller) State() State { return c.sm.State() }

// SessionID returns the session identifier.
func (c *Controller) SessionID() string { return c.cfg.SessionID }

// UpdateNotes replaces the free-form notes saved with the meeting.
func (c *Controller) UpdateNotes(notes string) {
	c.mu.Lock()
	c.notes = notes
	c.mu.Unlock()
}

// Elapsed returns the recorded time so far, excluding paused spans.
func (c *Controller) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elapsedLocked()
}

func (c *Controller) elapsedLocked() time.Duration {
	elapsed := c.accumulated
	if c.sm.State() == StateRecording && !c.segmentStart.IsZero() {
		elapsed += time.Since(c.segmentStart)
	}
	return elapsed
}

// Start begins a new recording session.
func (c *Controller) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.sm.State() == StateDone {
		_ = c.sm.Transition(StateIdle, "new session")
	}
	if err := c.sm.Transition(StateRecording, "start requested"); err != nil {
		return err
	}
	if err := c.source.Start(ctx); err != nil {
		_ = c.sm.Transition(StateStopping, "capture start failed")
		_ = c.sm.Transition(StateIdle, "capture start failed")
		return err
	}

	c.driver.Reset()
	if c.collector != nil {
		c.collector.Reset()
	}
	c.mu.Lock()
	c.ctx = ctx
	c.startedAt = time.Now()
	c.segmentStart = c.startedAt
	c.accumulated = 0
	c.softWarned = false
	c.hardStopped = false
	c.quotaPaused = false
	quit := make(chan struct{})
	c.monitorQuit = quit
	c.mu.Unlock()
	c.finalizing.Store(false)

	if err := c.driver.Start(ctx); err != nil {
		return err
	}
	go c.monitor(ctx, quit)

	c.logger.Info("session_started", "session_id", c.cfg.SessionID, "user_id", c.cfg.UserID)
	c.emitState(StateRecording, "started")
	return nil
}

// Pause suspends recording. Elapsed time stops accumulating.
func (c *Controller) Pause() error {
	if err := c.sm.Transition(StatePaused, "pause requested"); err != nil {
		return err
	}
	c.mu.Lock()
	if !c.segmentStart.IsZero() {
		c.accumulated += time.Since(c.segmentStart)
		c.segmentStart = time.Time{}
	}
	c.mu.Unlock()
	c.driver.Pause()
	if err := c.source.Pause(); err != nil {
		c.logger.Error("capture_pause_failed", "session_id", c.cfg.SessionID, "error", err.Error())
	}
	c.logger.Info("session_paused", "session_id", c.cfg.SessionID, "elapsed_s", int(c.Elapsed().Seconds()))
	c.emitState(StatePaused, "paused")
	return nil
}

// Resume continues a paused session.
func (c *Controller) Resume() error {
	if err := c.sm.Transition(StateRecording, "resume requested"); err != nil {
		return err
	}
	c.mu.Lock()
	c.segmentStart = time.Now()
	c.quotaPaused = false
	c.mu.Unlock()
	if err := c.source.Resume(); err != nil {
		c.logger.Error("capture_resume_failed", "session_id", c.cfg.SessionID, "error", err.Error())
	}
	c.driver.Resume()
	c.logger.Info("session_resumed", "session_id", c.cfg.SessionID)
	c.emitState(StateRecording, "resumed")
	return nil
}

// Stop ends the session and runs finalization. Sessions below the
// minimum duration ask the ConfirmShortStop hook first; an unconfirmed
// short stop discards everything.
func (c *Controller) Stop(ctx context.Context) (Outcome, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	duration, err := c.enterStopping()
	if err != nil {
		return Outcome{}, err
	}

	if duration < c.cfg.MinDuration && c.hooks.ConfirmShortStop != nil && !c.hooks.ConfirmShortStop() {
		c.discardStopped("below_min_duration")
		return Outcome{Discarded: true}, nil
	}

	if !c.finalizing.CompareAndSwap(false, true) {
		return Outcome{}, &InvalidTransitionError{From: c.sm.State(), To: StateFinalizingTranscript}
	}
	if err := c.sm.Transition(StateFinalizingTranscript, "finalizing"); err != nil {
		return Outcome{}, err
	}
	c.emitState(StateFinalizingTranscript, "finalizing")

	// Let in-flight windows and analyses land before building the
	// transcript.
	c.driver.Wait()
	if c.collector != nil {
		c.collector.Wait()
	}

	recording, rerr := c.source.Recording()
	if rerr != nil {
		c.logger.Error("recording_fetch_failed", "session_id", c.cfg.SessionID, "error", rerr.Error())
	}

	c.mu.Lock()
	notes := c.notes
	startedAt := c.startedAt
	c.mu.Unlock()

	var records []suggest.Record
	if c.collector != nil {
		records = c.collector.Records()
	}
	in := finalize.Input{
		SessionID:   c.cfg.SessionID,
		UserID:      c.cfg.UserID,
		Title:       c.cfg.Title,
		Notes:       notes,
		Chunks:      c.driver.Chunks(),
		Suggestions: records,
		Recording:   recording,
		Duration:    duration,
		StartedAt:   startedAt,
		OnPhase:     c.onPhase,
	}
	res, err := c.finalizer.Run(ctx, in)
	if err != nil {
		// Transcript could not be persisted; the session ends in Idle
		// and the caller decides what to do with the error.
		_ = c.sm.Transition(StateIdle, "finalization failed")
		c.emitState(StateIdle, "finalization_failed")
		return Outcome{}, err
	}
	if res.SummaryFailed && c.hooks.OnSummaryFailed != nil {
		c.hooks.OnSummaryFailed(res.MeetingID)
	}
	c.creditUsage(ctx, duration)

	c.logger.Info("session_finalized",
		"session_id", c.cfg.SessionID,
		"meeting_id", res.MeetingID,
		"duration_s", int(duration.Seconds()),
		"summary_failed", res.SummaryFailed,
		"suggestions", res.SuggestionCount)
	return Outcome{Result: res}, nil
}

// Discard ends the session without saving anything.
func (c *Controller) Discard() error {
	if _, err := c.enterStopping(); err != nil {
		return err
	}
	c.discardStopped("discard requested")
	return nil
}

// enterStopping transitions into Stopping, freezes the elapsed clock,
// and shuts down the moving parts.
func (c *Controller) enterStopping() (time.Duration, error) {
	c.mu.Lock()
	if c.sm.State() == StateRecording && !c.segmentStart.IsZero() {
		c.accumulated += time.Since(c.segmentStart)
		c.segmentStart = time.Time{}
	}
	duration := c.accumulated
	c.mu.Unlock()

	if err := c.sm.Transition(StateStopping, "stop requested"); err != nil {
		return 0, err
	}
	c.stopMonitor()
	c.driver.Stop()
	if err := c.source.Stop(); err != nil {
		c.logger.Error("capture_stop_failed", "session_id", c.cfg.SessionID, "error", err.Error())
	}
	c.emitState(StateStopping, "stopping")
	return duration, nil
}

func (c *Controller) discardStopped(reason string) {
	_ = c.sm.Transition(StateIdle, reason)
	c.driver.Reset()
	if c.collector != nil {
		c.collector.Reset()
	}
	c.logger.Info("session_discarded", "session_id", c.cfg.SessionID, "reason", reason)
	c.emitState(StateIdle, "discarded")
}

// onPhase maps finalization milestones onto lifecycle transitions.
func (c *Controller) onPhase(p finalize.Phase) {
	switch p {
	case finalize.PhaseSummary:
		_ = c.sm.Transition(StateFinalizingSummary, "transcript persisted")
		c.emitState(StateFinalizingSummary, "transcript_persisted")
	case finalize.PhaseSummaryFailed:
		_ = c.sm.Transition(StateSummaryFailed, "summary failed")
		c.emitState(StateSummaryFailed, "summary_failed")
	case finalize.PhaseDone:
		_ = c.sm.Transition(StateDone, "finalization complete")
		c.emitState(StateDone, "done")
	}
}

func (c *Controller) creditUsage(ctx context.Context, duration time.Duration) {
	if c.usage == nil || duration <= 0 {
		return
	}
	minutes := int((duration + time.Minute - 1) / time.Minute)
	if err := c.usage.AddUsage(ctx, c.cfg.UserID, minutes); err != nil {
		c.logger.Error("usage_credit_failed", "user_id", c.cfg.UserID, "minutes", minutes, "error", err.Error())
	}
}

func (c *Controller) stopMonitor() {
	c.mu.Lock()
	if c.monitorQuit != nil {
		close(c.monitorQuit)
		c.monitorQuit = nil
	}
	c.mu.Unlock()
}

// monitor polls the duration and quota policies while the session is
// live. Only recording time counts; paused sessions are left alone.
func (c *Controller) monitor(ctx context.Context, quit chan struct{}) {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-quit:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.sm.State() != StateRecording {
				continue
			}
			elapsed := c.Elapsed()
			if c.checkHardLimit(elapsed) {
				return
			}
			c.checkSoftLimit(elapsed)
			c.checkQuota(ctx, elapsed)
		}
	}
}

func (c *Controller) checkHardLimit(elapsed time.Duration) bool {
	if elapsed < c.cfg.HardLimit {
		return false
	}
	c.mu.Lock()
	already := c.hardStopped
	c.hardStopped = true
	c.mu.Unlock()
	if already {
		return true
	}
	c.logger.Warn("hard_limit_reached", "session_id", c.cfg.SessionID, "elapsed_s", int(elapsed.Seconds()))
	c.record(metrics.EventHardStop)
	c.emitReminder("hard_limit", elapsed)
	if c.hooks.OnReminder != nil {
		c.hooks.OnReminder("hard_limit", elapsed)
	}
	// Stop runs off the monitor goroutine; it will close the quit
	// channel this loop exits on.
	go func() {
		if _, err := c.Stop(context.Background()); err != nil {
			c.logger.Error("hard_stop_failed", "session_id", c.cfg.SessionID, "error", err.Error())
		}
	}()
	return true
}

func (c *Controller) checkSoftLimit(elapsed time.Duration) {
	if elapsed < c.cfg.SoftLimit {
		return
	}
	c.mu.Lock()
	already := c.softWarned
	c.softWarned = true
	c.mu.Unlock()
	if already {
		return
	}
	c.logger.Info("soft_limit_reached", "session_id", c.cfg.SessionID, "elapsed_s", int(elapsed.Seconds()))
	c.record(metrics.EventReminder)
	c.emitReminder("soft_limit", elapsed)
	if c.hooks.OnReminder != nil {
		c.hooks.OnReminder("soft_limit", elapsed)
	}
}

func (c *Controller) checkQuota(ctx context.Context, elapsed time.Duration) {
	if c.checker == nil {
		return
	}
	exceeded, err := c.checker.Exceeded(ctx, c.cfg.UserID, elapsed)
	if err != nil || !exceeded {
		// Fetch failures already logged by the checker; recording
		// continues and the next poll retries.
		return
	}
	c.mu.Lock()
	already := c.quotaPaused
	c.quotaPaused = true
	c.mu.Unlock()
	if already {
		return
	}
	c.logger.Warn("quota_reached", "session_id", c.cfg.SessionID, "user_id", c.cfg.UserID)
	c.record(metrics.EventQuotaReached)
	c.emitter.Emit(events.New(events.KindQuota, c.cfg.SessionID, map[string]string{
		events.MetaUserID: c.cfg.UserID,
	}))
	if err := c.Pause(); err != nil {
		c.logger.Error("quota_pause_failed", "session_id", c.cfg.SessionID, "error", err.Error())
	}
	if c.hooks.OnQuotaReached != nil {
		c.hooks.OnQuotaReached()
	}
}

func (c *Controller) emitState(s State, reason string) {
	c.emitter.Emit(events.New(events.KindState, c.cfg.SessionID, map[string]string{
		events.MetaState:  s.String(),
		events.MetaReason: reason,
	}))
}

func (c *Controller) emitReminder(kind string, elapsed time.Duration) {
	c.emitter.Emit(events.NewText(events.KindReminder, c.cfg.SessionID, 0, kind, map[string]string{
		events.MetaElapsed: elapsed.Truncate(time.Second).String(),
	}))
}

func (c *Controller) record(name string) {
	if c.obs == nil {
		return
	}
	c.obs.RecordEvent(metrics.MetricsEvent{
		Name: name,
		Time: time.Now(),
		Tags: map[string]string{events.MetaSessionID: c.cfg.SessionID, "component": "session"},
	})
}
