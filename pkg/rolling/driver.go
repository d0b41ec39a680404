package rolling

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/reunio/reunio/pkg/adapters/capture"
	"github.com/reunio/reunio/pkg/adapters/transcribe"
	"github.com/reunio/reunio/pkg/errorsx"
	"github.com/reunio/reunio/pkg/events"
	"github.com/reunio/reunio/pkg/metrics"
	"github.com/reunio/reunio/pkg/redact"
	"github.com/reunio/reunio/pkg/resilience"
	"github.com/reunio/reunio/pkg/suggest"
	"github.com/reunio/reunio/pkg/transcript"
)

type DriverConfig struct {
	// Interval is the rolling window cadence.
	Interval time.Duration
	// MinClipBytes is the silence heuristic: smaller snapshots skip
	// the tick entirely.
	MinClipBytes int
	SessionID    string
}

// Driver pulls a trailing audio window from the capture source on a
// fixed cadence, transcribes it, and folds accepted chunks into the
// session transcript. Each window carries a sequence number assigned at
// capture time, so late transcription results fold back in recording
// order.
type Driver struct {
	cfg         DriverConfig
	source      capture.Capture
	transcriber transcribe.Transcriber
	collector   *suggest.Collector
	chunks      *transcript.ChunkList
	breaker     *resilience.CircuitBreaker
	logger      *slog.Logger

	obs     metrics.Observer
	emitter events.Emitter

	mu           sync.Mutex
	tickerQuit   chan struct{}
	ticker       *time.Ticker
	ctx         context.Context
	seq         int
	breakerOpen bool

	// stopped makes in-flight results arriving after Stop no-ops.
	stopped atomic.Bool
	wg      sync.WaitGroup
}

func NewDriver(source capture.Capture, transcriber transcribe.Transcriber, collector *suggest.Collector, cfg DriverConfig) *Driver {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}
	if cfg.MinClipBytes <= 0 {
		cfg.MinClipBytes = 1000
	}
	return &Driver{
		cfg:         cfg,
		source:      source,
		transcriber: transcriber,
		collector:   collector,
		chunks:      transcript.NewChunkList(),
		breaker:     resilience.NewCircuitBreaker(3, 30*time.Second),
		logger:      slog.Default().With(slog.String("component", "rolling")),
		emitter:     events.NopEmitter{},
	}
}

func (d *Driver) SetObserver(obs metrics.Observer) { d.obs = obs }

func (d *Driver) SetEmitter(emitter events.Emitter) {
	if emitter != nil {
		d.emitter = emitter
	}
}

// Start begins the rolling cadence.
func (d *Driver) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.tickerQuit != nil {
		return fmt.Errorf("driver already running")
	}
	d.ctx = ctx
	d.stopped.Store(false)
	d.startTickerLocked()
	return nil
}

// Pause clears the ticker. Buffered audio keeps accumulating in the
// capture source; no windows are pulled until Resume.
func (d *Driver) Pause() {
	d.mu.Lock()
	d.stopTickerLocked()
	d.mu.Unlock()
}

// Resume restarts the ticker.
func (d *Driver) Resume() {
	d.mu.Lock()
	if d.tickerQuit == nil && !d.stopped.Load() {
		d.startTickerLocked()
	}
	d.mu.Unlock()
}

// Stop clears the ticker permanently for this session. In-flight
// transcription results are ignored once Stop returns.
func (d *Driver) Stop() {
	d.stopped.Store(true)
	d.mu.Lock()
	d.stopTickerLocked()
	d.mu.Unlock()
}

// Wait blocks until in-flight window transcriptions have finished.
func (d *Driver) Wait() {
	d.wg.Wait()
}

// Chunks returns accepted chunks in sequence order.
func (d *Driver) Chunks() []transcript.Chunk {
	return d.chunks.Chunks()
}

// Accumulated returns the live transcript.
func (d *Driver) Accumulated() string {
	return d.chunks.Accumulated()
}

// Reset clears transcript state for a new session.
func (d *Driver) Reset() {
	d.chunks.Reset()
	d.mu.Lock()
	d.seq = 0
	d.mu.Unlock()
}

func (d *Driver) startTickerLocked() {
	ticker := time.NewTicker(d.cfg.Interval)
	quit := make(chan struct{})
	d.ticker = ticker
	d.tickerQuit = quit
	go func() {
		for {
			select {
			case <-quit:
				ticker.Stop()
				return
			case <-ticker.C:
				d.tick()
			}
		}
	}()
}

func (d *Driver) stopTickerLocked() {
	if d.tickerQuit != nil {
		close(d.tickerQuit)
		d.tickerQuit = nil
		d.ticker = nil
	}
}

// tick pulls one window and hands it to the transcriber off-loop. A
// delayed call never holds up the next tick.
func (d *Driver) tick() {
	d.mu.Lock()
	seq := d.seq
	d.seq++
	ctx := d.ctx
	d.mu.Unlock()

	clip, err := d.source.Snapshot()
	if err != nil {
		d.logger.Info("window_snapshot_error", "session_id", d.cfg.SessionID, "seq", seq, "error", err.Error())
		d.record(metrics.EventWindowSkipped, seq)
		return
	}
	if clip.Size() < d.cfg.MinClipBytes {
		d.record(metrics.EventWindowSkipped, seq)
		return
	}
	if !d.breaker.Allow() {
		d.setBreakerOpen(true, seq)
		d.logger.Info("transcribe_circuit_open", "session_id", d.cfg.SessionID, "seq", seq,
			"reason_code", string(errorsx.ReasonTranscribeCircuit))
		d.record(metrics.EventBreakerDenied, seq)
		return
	}
	d.setBreakerOpen(false, seq)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.transcribeWindow(ctx, clip, seq)
	}()
}

func (d *Driver) transcribeWindow(ctx context.Context, clip capture.Clip, seq int) {
	offset := seq * int(d.cfg.Interval.Seconds())
	hint := fmt.Sprintf("%s_window_%03d.webm", d.cfg.SessionID, seq)
	text, err := d.transcriber.Transcribe(ctx, clip, offset, hint)
	if d.stopped.Load() {
		return
	}
	if err != nil {
		err = errorsx.Wrap(err, errorsx.ReasonTranscribeWindow)
		d.logger.Info("window_transcribe_error", "session_id", d.cfg.SessionID, "seq", seq,
			"reason_code", string(errorsx.Reason(err)), "error", err.Error())
		if resilience.IsRateLimit(err) {
			d.record(metrics.EventRateLimit, seq)
		}
		d.breaker.OnError(err)
		d.record(metrics.EventTranscribeError, seq)
		return
	}
	d.breaker.OnSuccess()

	text = strings.TrimSpace(text)
	if len(text) <= transcript.MinChunkChars {
		return
	}
	if !d.chunks.Add(seq, text) {
		d.record(metrics.EventChunkDuplicate, seq)
		return
	}
	d.record(metrics.EventChunkAccepted, seq)
	d.logger.Info("chunk_accepted", "session_id", d.cfg.SessionID, "seq", seq,
		"text", clipText(redact.Text(text)))
	d.emitter.Emit(events.NewText(events.KindChunk, d.cfg.SessionID, seq, text, nil))

	// The analysis window is the chunk preceding this one by sequence,
	// not by completion order, so a delayed window never pairs
	// non-adjacent chunks.
	window := strings.TrimSpace(d.chunks.Before(seq) + " " + text)
	if d.collector != nil {
		d.collector.Submit(ctx, d.cfg.SessionID, window, seq)
	}
}

func (d *Driver) setBreakerOpen(open bool, seq int) {
	d.mu.Lock()
	changed := d.breakerOpen != open
	d.breakerOpen = open
	d.mu.Unlock()
	if !changed {
		return
	}
	if open {
		d.record(metrics.EventBreakerOpen, seq)
		return
	}
	d.record(metrics.EventBreakerClose, seq)
}

func (d *Driver) record(name string, seq int) {
	if d.obs == nil {
		return
	}
	d.obs.RecordEvent(metrics.MetricsEvent{
		Name:  name,
		Time:  time.Now(),
		Value: float64(seq),
		Tags:  map[string]string{events.MetaSessionID: d.cfg.SessionID, "component": "rolling"},
	})
}

func clipText(text string) string {
	text = strings.TrimSpace(text)
	if len(text) <= 120 {
		return text
	}
	return text[:120] + "..."
}
