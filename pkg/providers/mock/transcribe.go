package mock

import (
	"context"
	"sync"

	"github.com/reunio/reunio/pkg/adapters/capture"
	"github.com/reunio/reunio/pkg/adapters/transcribe"
)

type TranscribeResult struct {
	Text string
	Err  error
}

type TranscribeConfig struct {
	// Results are consumed in call order; the last one repeats.
	Results []TranscribeResult
	// Delay, when set, is waited on per call (or until ctx is done).
	Delay func(ctx context.Context) error
}

// Transcriber is a scripted speech-to-text double.
type Transcriber struct {
	cfg   TranscribeConfig
	mu    sync.Mutex
	calls int
}

func NewTranscriber(cfg TranscribeConfig) *Transcriber {
	if len(cfg.Results) == 0 {
		cfg.Results = []TranscribeResult{{Text: "mock transcript"}}
	}
	return &Transcriber{cfg: cfg}
}

func (t *Transcriber) Name() string { return "mock_transcriber" }

func (t *Transcriber) Transcribe(ctx context.Context, clip capture.Clip, offsetSeconds int, hint string) (string, error) {
	if t.cfg.Delay != nil {
		if err := t.cfg.Delay(ctx); err != nil {
			return "", err
		}
	}
	t.mu.Lock()
	idx := t.calls
	if idx >= len(t.cfg.Results) {
		idx = len(t.cfg.Results) - 1
	}
	t.calls++
	res := t.cfg.Results[idx]
	t.mu.Unlock()
	return res.Text, res.Err
}

// Calls reports how many transcriptions were requested.
func (t *Transcriber) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

var _ transcribe.Transcriber = (*Transcriber)(nil)
