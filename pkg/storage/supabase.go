package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Supabase uploads recordings to a Supabase storage bucket over the
// REST API.
type Supabase struct {
	BaseURL string
	APIKey  string
	Bucket  string
	Client  *http.Client
}

func NewSupabase(baseURL, apiKey, bucket string) *Supabase {
	if bucket == "" {
		bucket = "recordings"
	}
	return &Supabase{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Bucket:  bucket,
		Client:  &http.Client{Timeout: 120 * time.Second},
	}
}

func (s *Supabase) Name() string { return "supabase" }

func (s *Supabase) Upload(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = "audio/webm"
	}
	url := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.BaseURL, s.Bucket, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+s.APIKey)
	req.Header.Set("apikey", s.APIKey)
	// Overwrite on retry instead of failing with a duplicate error.
	req.Header.Set("x-upsert", "true")

	resp, err := s.client().Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return "", errors.New("supabase upload failed: " + string(body))
	}
	return s.PublicURL(path), nil
}

// PublicURL returns the public object URL for a stored path.
func (s *Supabase) PublicURL(path string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.BaseURL, s.Bucket, path)
}

func (s *Supabase) client() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	return http.DefaultClient
}

var _ ObjectStore = (*Supabase)(nil)
