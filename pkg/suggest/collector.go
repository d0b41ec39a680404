package suggest

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/reunio/reunio/pkg/adapters/assist"
	"github.com/reunio/reunio/pkg/errorsx"
	"github.com/reunio/reunio/pkg/events"
	"github.com/reunio/reunio/pkg/metrics"
)

// Record is one analysis result, tagged with the transcript segment
// that produced it. Records are append-only.
type Record struct {
	Segment        int
	Clarifications []string
	Topics         []string
}

type CollectorConfig struct {
	// Timeout bounds one analysis call.
	Timeout time.Duration
}

// Collector runs live suggestion analysis off the transcription path.
// Every submission gets its own goroutine; a slow or failed analysis
// never blocks the rolling driver's next tick.
type Collector struct {
	cfg      CollectorConfig
	analyzer assist.Analyzer
	logger   *slog.Logger

	mu      sync.Mutex
	records []Record
	wg      sync.WaitGroup

	obs     metrics.Observer
	emitter events.Emitter
}

func NewCollector(analyzer assist.Analyzer, cfg CollectorConfig) *Collector {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Collector{
		cfg:      cfg,
		analyzer: analyzer,
		logger:   slog.Default().With(slog.String("component", "suggest")),
		emitter:  events.NopEmitter{},
	}
}

func (c *Collector) SetObserver(obs metrics.Observer) { c.obs = obs }

func (c *Collector) SetEmitter(emitter events.Emitter) {
	if emitter != nil {
		c.emitter = emitter
	}
}

// Submit schedules analysis of a transcript window. Non-blocking.
func (c *Collector) Submit(ctx context.Context, sessionID, window string, segment int) {
	if c.analyzer == nil || window == "" {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
		out, err := c.analyzer.Analyze(callCtx, window)
		if err != nil {
			err = errorsx.Wrap(err, errorsx.ReasonSuggestAnalyze)
			c.logger.Info("suggestion_analysis_failed",
				"session_id", sessionID,
				"segment", segment,
				"reason_code", string(errorsx.Reason(err)),
				"error", err.Error())
			c.record(metrics.EventSuggestionError, sessionID)
			return
		}
		if len(out.Clarifications) == 0 && len(out.Topics) == 0 {
			return
		}
		c.mu.Lock()
		c.records = append(c.records, Record{
			Segment:        segment,
			Clarifications: out.Clarifications,
			Topics:         out.Topics,
		})
		c.mu.Unlock()
		c.record(metrics.EventSuggestionRecorded, sessionID)
		c.emitter.Emit(events.NewText(events.KindSuggestion, sessionID, segment, "", nil))
	}()
}

// Records returns a snapshot in completion order.
func (c *Collector) Records() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Record, len(c.records))
	copy(out, c.records)
	return out
}

// Wait blocks until every submitted analysis has completed.
func (c *Collector) Wait() {
	c.wg.Wait()
}

// Reset clears collected records for a new session.
func (c *Collector) Reset() {
	c.mu.Lock()
	c.records = nil
	c.mu.Unlock()
}

func (c *Collector) record(name, sessionID string) {
	if c.obs == nil {
		return
	}
	c.obs.RecordEvent(metrics.MetricsEvent{
		Name: name,
		Time: time.Now(),
		Tags: map[string]string{events.MetaSessionID: sessionID, "component": "suggest"},
	})
}
