package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/reunio/reunio/pkg/adapters/assist"
	"github.com/reunio/reunio/pkg/resilience"
)

func newServer(t *testing.T, content string, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`rate limited`))
			return
		}
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestSummarizeParsesJSON(t *testing.T) {
	srv := newServer(t, "```json\n{\"title\":\"Point budget\",\"summary\":\"Le budget a été validé.\"}\n```", http.StatusOK)
	defer srv.Close()

	a := NewAdapter("key", "gpt-4o-mini")
	a.BaseURL = srv.URL
	out, err := a.Summarize(context.Background(), "Le budget est de 10000 euros.", assist.ModeShort)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if out.Title != "Point budget" {
		t.Fatalf("unexpected title %q", out.Title)
	}
	if out.Summary == "" {
		t.Fatalf("expected a summary")
	}
}

func TestSummarizeEmptyIsError(t *testing.T) {
	srv := newServer(t, `{"title":"x","summary":"  "}`, http.StatusOK)
	defer srv.Close()

	a := NewAdapter("key", "")
	a.BaseURL = srv.URL
	if _, err := a.Summarize(context.Background(), "transcript", assist.ModeShort); err == nil {
		t.Fatalf("expected error for empty summary")
	}
}

func TestAnalyzeParsesLists(t *testing.T) {
	srv := newServer(t, `{"clarifications":["Pourriez-vous préciser le budget ?"],"topics":["Plan de recrutement"]}`, http.StatusOK)
	defer srv.Close()

	a := NewAdapter("key", "")
	a.BaseURL = srv.URL
	out, err := a.Analyze(context.Background(), "on parle du budget")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(out.Clarifications) != 1 || len(out.Topics) != 1 {
		t.Fatalf("unexpected suggestions %+v", out)
	}
}

func TestRateLimitSurfacesTypedError(t *testing.T) {
	srv := newServer(t, "", http.StatusTooManyRequests)
	defer srv.Close()

	a := NewAdapter("key", "")
	a.BaseURL = srv.URL
	_, err := a.Summarize(context.Background(), "transcript", assist.ModeShort)
	if !resilience.IsRateLimit(err) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
}

func TestCleanJSON(t *testing.T) {
	in := "Voici la réponse:\n```json\n{\"title\":\"t\"}\n```"
	if got := cleanJSON(in); got != `{"title":"t"}` {
		t.Fatalf("unexpected clean result %q", got)
	}
}
