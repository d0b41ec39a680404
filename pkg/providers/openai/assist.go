package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/reunio/reunio/pkg/adapters/assist"
	"github.com/reunio/reunio/pkg/resilience"
)

const (
	summarySystemPrompt = "Tu es un assistant de réunion. À partir de la transcription fournie, " +
		"réponds uniquement en JSON avec les clés \"title\" (titre court de la réunion) et " +
		"\"summary\" (résumé en français)."
	analyzeSystemPrompt = "Tu es un assistant de réunion en direct. À partir de l'extrait fourni, " +
		"réponds uniquement en JSON avec les clés \"clarifications\" (points à clarifier, questions) et " +
		"\"topics\" (sujets à explorer), chacune une liste de chaînes en français. Listes vides si rien à signaler."
)

// Adapter implements the summarizer and analyzer contracts over the
// OpenAI chat completions API.
type Adapter struct {
	APIKey  string
	Model   string
	BaseURL string
	Client  *http.Client
}

func NewAdapter(apiKey, model string) *Adapter {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &Adapter{
		APIKey:  apiKey,
		Model:   model,
		BaseURL: "https://api.openai.com/v1",
		Client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (a *Adapter) Name() string { return "openai" }

func (a *Adapter) Summarize(ctx context.Context, transcript string, mode assist.Mode) (assist.Summary, error) {
	depth := "Résumé court: 3 à 5 phrases."
	if mode == assist.ModeDetailed {
		depth = "Résumé détaillé: points de discussion, décisions prises et actions à suivre."
	}
	content, err := a.complete(ctx, summarySystemPrompt, depth+"\n\nTranscription:\n"+transcript)
	if err != nil {
		return assist.Summary{}, err
	}
	var out struct {
		Title   string `json:"title"`
		Summary string `json:"summary"`
	}
	if err := json.Unmarshal([]byte(cleanJSON(content)), &out); err != nil {
		return assist.Summary{}, fmt.Errorf("parse summary response: %w", err)
	}
	if strings.TrimSpace(out.Summary) == "" {
		return assist.Summary{}, errors.New("empty summary from provider")
	}
	return assist.Summary{Title: strings.TrimSpace(out.Title), Summary: out.Summary}, nil
}

func (a *Adapter) Analyze(ctx context.Context, window string) (assist.Suggestions, error) {
	content, err := a.complete(ctx, analyzeSystemPrompt, "Extrait:\n"+window)
	if err != nil {
		return assist.Suggestions{}, err
	}
	var out struct {
		Clarifications []string `json:"clarifications"`
		Topics         []string `json:"topics"`
	}
	if err := json.Unmarshal([]byte(cleanJSON(content)), &out); err != nil {
		return assist.Suggestions{}, fmt.Errorf("parse suggestions response: %w", err)
	}
	return assist.Suggestions{Clarifications: out.Clarifications, Topics: out.Topics}, nil
}

func (a *Adapter) complete(ctx context.Context, system, user string) (string, error) {
	payload := map[string]any{
		"model": a.Model,
		"messages": []map[string]any{
			{"role": "system", "content": system},
			{"role": "user", "content": user},
		},
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+"/chat/completions", bytes.NewBuffer(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.APIKey)

	resp, err := a.client().Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		body, _ := io.ReadAll(resp.Body)
		return "", resilience.RateLimitError{Provider: "openai", Message: string(body)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return "", errors.New(string(body))
	}
	var raw struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return "", err
	}
	if len(raw.Choices) == 0 {
		return "", errors.New("no choices")
	}
	return raw.Choices[0].Message.Content, nil
}

func (a *Adapter) client() *http.Client {
	if a.Client != nil {
		return a.Client
	}
	return http.DefaultClient
}

// cleanJSON strips markdown fences and surrounding prose from a model
// response expected to be a single JSON object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return text
	}
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(text, "```")
		text = strings.TrimSpace(text)
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return text
}

var (
	_ assist.Summarizer = (*Adapter)(nil)
	_ assist.Analyzer   = (*Adapter)(nil)
)
