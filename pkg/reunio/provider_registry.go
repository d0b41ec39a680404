package reunio

import (
	"fmt"
	"strings"

	"github.com/reunio/reunio/pkg/adapters/assist"
	"github.com/reunio/reunio/pkg/adapters/capture"
	"github.com/reunio/reunio/pkg/adapters/transcribe"
	"github.com/reunio/reunio/pkg/configutil"
	"github.com/reunio/reunio/pkg/providers/deepgram"
	"github.com/reunio/reunio/pkg/providers/mock"
	"github.com/reunio/reunio/pkg/providers/openai"
)

type CaptureFactory func(cfg Config) (capture.Capture, error)
type TranscriberFactory func(cfg Config) (transcribe.Transcriber, error)
type AssistFactory func(cfg Config) (assist.Summarizer, assist.Analyzer, error)

// ProviderRegistry maps vendor names from config to adapter
// constructors. The built-in providers are pre-registered; embedders
// can add or override entries before building the engine.
type ProviderRegistry struct {
	capture     map[string]CaptureFactory
	transcriber map[string]TranscriberFactory
	assist      map[string]AssistFactory
}

func NewProviderRegistry() *ProviderRegistry {
	r := &ProviderRegistry{
		capture:     make(map[string]CaptureFactory),
		transcriber: make(map[string]TranscriberFactory),
		assist:      make(map[string]AssistFactory),
	}
	r.registerBuiltins()
	return r
}

func (r *ProviderRegistry) RegisterCapture(name string, factory CaptureFactory) {
	r.capture[strings.ToLower(strings.TrimSpace(name))] = factory
}

func (r *ProviderRegistry) RegisterTranscriber(name string, factory TranscriberFactory) {
	r.transcriber[strings.ToLower(strings.TrimSpace(name))] = factory
}

func (r *ProviderRegistry) RegisterAssist(name string, factory AssistFactory) {
	r.assist[strings.ToLower(strings.TrimSpace(name))] = factory
}

func (r *ProviderRegistry) BuildCapture(provider string, cfg Config) (capture.Capture, error) {
	fn := r.capture[strings.ToLower(strings.TrimSpace(provider))]
	if fn == nil {
		return nil, fmt.Errorf("capture provider not registered: %s", provider)
	}
	return fn(cfg)
}

func (r *ProviderRegistry) BuildTranscriber(provider string, cfg Config) (transcribe.Transcriber, error) {
	fn := r.transcriber[strings.ToLower(strings.TrimSpace(provider))]
	if fn == nil {
		return nil, fmt.Errorf("transcribe provider not registered: %s", provider)
	}
	return fn(cfg)
}

func (r *ProviderRegistry) BuildAssist(provider string, cfg Config) (assist.Summarizer, assist.Analyzer, error) {
	fn := r.assist[strings.ToLower(strings.TrimSpace(provider))]
	if fn == nil {
		return nil, nil, fmt.Errorf("assist provider not registered: %s", provider)
	}
	return fn(cfg)
}

type deepgramSettings struct {
	APIKey   string `mapstructure:"api_key"`
	Model    string `mapstructure:"model"`
	Language string `mapstructure:"language"`
}

type openaiSettings struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

func (r *ProviderRegistry) registerBuiltins() {
	r.RegisterCapture("mock", func(cfg Config) (capture.Capture, error) {
		return mock.NewCapture(mock.CaptureConfig{}), nil
	})
	r.RegisterTranscriber("mock", func(cfg Config) (transcribe.Transcriber, error) {
		return mock.NewTranscriber(mock.TranscribeConfig{}), nil
	})
	r.RegisterAssist("mock", func(cfg Config) (assist.Summarizer, assist.Analyzer, error) {
		a := mock.NewAssist(mock.AssistConfig{})
		return a, a, nil
	})
	r.RegisterTranscriber("deepgram", func(cfg Config) (transcribe.Transcriber, error) {
		if err := configutil.ValidateSettings(cfg.Vendors.Transcribe.Settings, configutil.Schema{
			Required: []string{"api_key"},
			Optional: []string{"model", "language"},
		}); err != nil {
			return nil, fmt.Errorf("vendors.transcribe.settings: %w", err)
		}
		var s deepgramSettings
		if err := configutil.DecodeSettings(cfg.Vendors.Transcribe.Settings, &s); err != nil {
			return nil, err
		}
		return deepgram.New(deepgram.Config{
			APIKey:   s.APIKey,
			Model:    s.Model,
			Language: s.Language,
		}), nil
	})
	r.RegisterAssist("openai", func(cfg Config) (assist.Summarizer, assist.Analyzer, error) {
		if err := configutil.ValidateSettings(cfg.Vendors.Assist.Settings, configutil.Schema{
			Required: []string{"api_key"},
			Optional: []string{"model", "base_url"},
		}); err != nil {
			return nil, nil, fmt.Errorf("vendors.assist.settings: %w", err)
		}
		var s openaiSettings
		if err := configutil.DecodeSettings(cfg.Vendors.Assist.Settings, &s); err != nil {
			return nil, nil, err
		}
		a := openai.NewAdapter(s.APIKey, s.Model)
		if s.BaseURL != "" {
			a.BaseURL = s.BaseURL
		}
		return a, a, nil
	})
}
