package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Spool writes recordings to a local directory. It serves as the
// offline fallback when no remote bucket is configured, and as the
// staging area for uploads that will be retried later.
type Spool struct {
	Dir string
}

func NewSpool(dir string) *Spool {
	return &Spool{Dir: dir}
}

func (s *Spool) Name() string { return "spool" }

func (s *Spool) Upload(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	full := filepath.Join(s.Dir, filepath.FromSlash(path))
	if !strings.HasPrefix(filepath.Clean(full), filepath.Clean(s.Dir)) {
		return "", errors.New("spool path escapes directory")
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", err
	}
	return "file://" + full, nil
}

// Purge removes spooled files older than maxAge. Returns deleted count.
func (s *Spool) Purge(maxAge time.Duration) (int, error) {
	if s.Dir == "" || maxAge <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-maxAge)
	var removed int
	var errs error
	err := filepath.WalkDir(s.Dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			errs = errors.Join(errs, err)
			return nil
		}
		if info.ModTime().After(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			errs = errors.Join(errs, err)
			return nil
		}
		removed++
		return nil
	})
	if err != nil {
		errs = errors.Join(errs, err)
	}
	return removed, errs
}

var _ ObjectStore = (*Spool)(nil)
