package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestObjectPath(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 30, 5, 0, time.UTC)
	got := ObjectPath("u1", "Réunion budget / Q2", at, "webm")
	want := "u1/2026-03-14/R_union_budget_Q2_093005.webm"
	if got != want {
		t.Fatalf("path mismatch:\n got %s\nwant %s", got, want)
	}
}

func TestObjectPathEmptyTitle(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 30, 5, 0, time.UTC)
	got := ObjectPath("u1", "   ", at, "")
	if !strings.Contains(got, "/meeting_") || !strings.HasSuffix(got, ".webm") {
		t.Fatalf("unexpected fallback path %s", got)
	}
}

func TestSupabaseUpload(t *testing.T) {
	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		if len(body) == 0 {
			t.Errorf("empty upload body")
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewSupabase(srv.URL, "key", "recordings")
	url, err := s.Upload(context.Background(), "u1/2026-03-14/meeting_093005.webm", []byte("audio"), "audio/webm")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if gotPath != "/storage/v1/object/recordings/u1/2026-03-14/meeting_093005.webm" {
		t.Fatalf("unexpected request path %s", gotPath)
	}
	if gotAuth != "Bearer key" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if !strings.Contains(url, "/object/public/recordings/") {
		t.Fatalf("expected public url, got %s", url)
	}
}

func TestSupabaseUploadFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bucket not found", http.StatusNotFound)
	}))
	defer srv.Close()

	s := NewSupabase(srv.URL, "key", "recordings")
	if _, err := s.Upload(context.Background(), "p", []byte("audio"), ""); err == nil {
		t.Fatalf("expected upload error")
	}
}

func TestSpoolUploadAndPurge(t *testing.T) {
	dir := t.TempDir()
	s := NewSpool(dir)
	url, err := s.Upload(context.Background(), "u1/2026-03-14/meeting.webm", []byte("audio"), "audio/webm")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !strings.HasPrefix(url, "file://") {
		t.Fatalf("unexpected url %s", url)
	}
	full := filepath.Join(dir, "u1", "2026-03-14", "meeting.webm")
	if _, err := os.Stat(full); err != nil {
		t.Fatalf("spooled file missing: %v", err)
	}

	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(full, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	removed, err := s.Purge(24 * time.Hour)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
}

func TestSpoolRejectsEscapingPath(t *testing.T) {
	s := NewSpool(t.TempDir())
	if _, err := s.Upload(context.Background(), "../escape.webm", []byte("x"), ""); err == nil {
		t.Fatalf("expected path escape error")
	}
}
