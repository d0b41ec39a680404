package storage

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ObjectStore uploads finished recordings. Upload returns a URL the
// meeting record can reference.
type ObjectStore interface {
	Name() string
	Upload(ctx context.Context, path string, data []byte, contentType string) (string, error)
}

var unsafePathChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// ObjectPath builds the storage path for a session recording:
// userID/date/safeTitle_time.ext. The title is sanitized to a safe
// path segment.
func ObjectPath(userID, title string, at time.Time, ext string) string {
	safe := unsafePathChars.ReplaceAllString(strings.TrimSpace(title), "_")
	safe = strings.Trim(safe, "_")
	if safe == "" {
		safe = "meeting"
	}
	if len(safe) > 60 {
		safe = safe[:60]
	}
	if ext == "" {
		ext = "webm"
	}
	return fmt.Sprintf("%s/%s/%s_%s.%s",
		userID, at.Format("2006-01-02"), safe, at.Format("150405"), ext)
}
