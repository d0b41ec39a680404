package transcribe

import (
	"context"

	"github.com/reunio/reunio/pkg/adapters/capture"
)

// Transcriber defines the contract for any speech-to-text vendor
// implementation working on prerecorded clips.
//
// Implementations must tolerate short or noisy clips and return an
// empty string for silence rather than an error.
type Transcriber interface {
	// Name returns the vendor name for logging/metrics.
	Name() string
	// Transcribe converts one clip to text. offsetSeconds is the
	// clip's position in the recording; hint is a filename hint for
	// vendors that key behavior on it.
	Transcribe(ctx context.Context, clip capture.Clip, offsetSeconds int, hint string) (string, error)
}

// Config contains vendor-agnostic transcription configuration.
type Config struct {
	Model    string
	Language string
}
