package capture

import (
	"context"
	"time"
)

// Clip is an encoded audio segment.
type Clip struct {
	Data     []byte
	MIME     string
	Duration time.Duration
}

// Size returns the encoded byte length.
func (c Clip) Size() int { return len(c.Data) }

// Capture defines the contract for any audio capture implementation
// (microphone bridge, system/visio tap, test double).
type Capture interface {
	// Name returns the implementation name for logging/metrics.
	Name() string
	// Start begins capturing.
	Start(ctx context.Context) error
	// Pause suspends capture without discarding buffered audio.
	Pause() error
	// Resume continues a paused capture.
	Resume() error
	// Stop ends the session. The full recording stays readable until
	// the next Start.
	Stop() error
	// Snapshot returns the trailing rolling window as an encoded clip.
	Snapshot() (Clip, error)
	// Recording returns the full session blob captured so far.
	Recording() (Clip, error)
}
