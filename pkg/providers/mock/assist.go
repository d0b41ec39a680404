package mock

import (
	"context"
	"sync"

	"github.com/reunio/reunio/pkg/adapters/assist"
)

type AssistConfig struct {
	Summary        assist.Summary
	SummarizeErr   error
	Clarifications []string
	Topics         []string
	AnalyzeErr     error
}

// Assist is a scripted summarizer/analyzer double.
type Assist struct {
	cfg AssistConfig

	mu             sync.Mutex
	summarizeCalls int
	analyzeCalls   int
	lastMode       assist.Mode
	windows        []string
}

func NewAssist(cfg AssistConfig) *Assist {
	if cfg.Summary.Title == "" && cfg.SummarizeErr == nil {
		cfg.Summary = assist.Summary{Title: "Réunion", Summary: "Résumé de la réunion."}
	}
	return &Assist{cfg: cfg}
}

func (a *Assist) Name() string { return "mock_assist" }

func (a *Assist) Summarize(ctx context.Context, transcript string, mode assist.Mode) (assist.Summary, error) {
	a.mu.Lock()
	a.summarizeCalls++
	a.lastMode = mode
	a.mu.Unlock()
	if a.cfg.SummarizeErr != nil {
		return assist.Summary{}, a.cfg.SummarizeErr
	}
	return a.cfg.Summary, nil
}

func (a *Assist) Analyze(ctx context.Context, window string) (assist.Suggestions, error) {
	a.mu.Lock()
	a.analyzeCalls++
	a.windows = append(a.windows, window)
	a.mu.Unlock()
	if a.cfg.AnalyzeErr != nil {
		return assist.Suggestions{}, a.cfg.AnalyzeErr
	}
	return assist.Suggestions{
		Clarifications: a.cfg.Clarifications,
		Topics:         a.cfg.Topics,
	}, nil
}

func (a *Assist) SummarizeCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.summarizeCalls
}

func (a *Assist) AnalyzeCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.analyzeCalls
}

func (a *Assist) LastMode() assist.Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastMode
}

func (a *Assist) Windows() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.windows))
	copy(out, a.windows)
	return out
}

var (
	_ assist.Summarizer = (*Assist)(nil)
	_ assist.Analyzer   = (*Assist)(nil)
)
