package mock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/reunio/reunio/pkg/adapters/capture"
)

type CaptureConfig struct {
	// Snapshots are returned in order by Snapshot; the last one repeats.
	Snapshots []capture.Clip
	// Full is returned by Recording.
	Full capture.Clip
	// SnapshotErr forces Snapshot to fail.
	SnapshotErr error
}

// Capture is a scripted audio source for tests and examples.
type Capture struct {
	cfg     CaptureConfig
	mu      sync.Mutex
	started bool
	paused  bool
	calls   int
}

func NewCapture(cfg CaptureConfig) *Capture {
	if len(cfg.Snapshots) == 0 && cfg.SnapshotErr == nil {
		cfg.Snapshots = []capture.Clip{{
			Data:     make([]byte, 4096),
			MIME:     "audio/webm",
			Duration: 15 * time.Second,
		}}
	}
	return &Capture{cfg: cfg}
}

func (c *Capture) Name() string { return "mock_capture" }

func (c *Capture) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = true
	c.paused = false
	c.calls = 0
	return nil
}

func (c *Capture) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return errors.New("not started")
	}
	c.paused = true
	return nil
}

func (c *Capture) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return errors.New("not started")
	}
	c.paused = false
	return nil
}

func (c *Capture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = false
	return nil
}

func (c *Capture) Snapshot() (capture.Clip, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cfg.SnapshotErr != nil {
		return capture.Clip{}, c.cfg.SnapshotErr
	}
	idx := c.calls
	if idx >= len(c.cfg.Snapshots) {
		idx = len(c.cfg.Snapshots) - 1
	}
	c.calls++
	return c.cfg.Snapshots[idx], nil
}

func (c *Capture) Recording() (capture.Clip, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.Full, nil
}

// SnapshotCalls reports how many windows were pulled.
func (c *Capture) SnapshotCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

var _ capture.Capture = (*Capture)(nil)
