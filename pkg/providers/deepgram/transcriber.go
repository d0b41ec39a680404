package deepgram

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/reunio/reunio/pkg/adapters/capture"
	"github.com/reunio/reunio/pkg/adapters/transcribe"
	"github.com/reunio/reunio/pkg/logging"
	"github.com/reunio/reunio/pkg/resilience"

	listenv1rest "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest"
	restinterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
)

type Config struct {
	APIKey   string
	Model    string
	Language string
}

// Transcriber sends prerecorded clips to Deepgram's listen REST API.
type Transcriber struct {
	cfg    Config
	dg     *listenv1rest.Client
	logger *slog.Logger
}

func New(cfg Config) *Transcriber {
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	if cfg.Language == "" {
		cfg.Language = "fr"
	}

	logger := logging.NewComponentLogger(slog.Default(), "deepgram_transcriber")

	rest := client.NewREST(cfg.APIKey, &interfaces.ClientOptions{})
	return &Transcriber{
		cfg:    cfg,
		dg:     listenv1rest.New(rest),
		logger: logger,
	}
}

func (t *Transcriber) Name() string { return "deepgram_prerecorded" }

func (t *Transcriber) Transcribe(ctx context.Context, clip capture.Clip, offsetSeconds int, hint string) (string, error) {
	if clip.Size() == 0 {
		return "", nil
	}

	options := &interfaces.PreRecordedTranscriptionOptions{
		Model:       t.cfg.Model,
		Language:    t.cfg.Language,
		SmartFormat: true,
		Punctuate:   true,
	}

	start := time.Now()
	res, err := t.dg.FromStream(ctx, bytes.NewReader(clip.Data), options)
	if err != nil {
		if strings.Contains(err.Error(), "429") {
			return "", resilience.RateLimitError{Provider: "deepgram", Message: err.Error()}
		}
		return "", fmt.Errorf("deepgram transcription: %w", err)
	}

	text := firstTranscript(res)
	t.logger.Debug("clip_transcribed",
		slog.Int("offset_s", offsetSeconds),
		slog.String("hint", hint),
		slog.Int("clip_bytes", clip.Size()),
		slog.Int("text_len", len(text)),
		slog.Duration("elapsed", time.Since(start)))
	return text, nil
}

// firstTranscript pulls the best alternative of the first channel.
// Silence comes back as an empty transcript, not an error.
func firstTranscript(res *restinterfaces.PreRecordedResponse) string {
	if res == nil || res.Results == nil {
		return ""
	}
	if len(res.Results.Channels) == 0 {
		return ""
	}
	alts := res.Results.Channels[0].Alternatives
	if len(alts) == 0 {
		return ""
	}
	return strings.TrimSpace(alts[0].Transcript)
}

var _ transcribe.Transcriber = (*Transcriber)(nil)
