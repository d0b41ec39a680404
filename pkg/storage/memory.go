package storage

import (
	"context"
	"sync"
)

// MemoryObject is one uploaded object captured by the Memory store.
type MemoryObject struct {
	Path        string
	Data        []byte
	ContentType string
}

// Memory is an in-memory object store for tests. UploadErr, when set,
// fails the next Failures uploads.
type Memory struct {
	mu        sync.Mutex
	objects   []MemoryObject
	UploadErr error
	Failures  int
}

func NewMemoryStore() *Memory {
	return &Memory{}
}

func (m *Memory) Name() string { return "memory" }

func (m *Memory) Upload(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UploadErr != nil && m.Failures != 0 {
		if m.Failures > 0 {
			m.Failures--
		}
		return "", m.UploadErr
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	m.objects = append(m.objects, MemoryObject{Path: path, Data: buf, ContentType: contentType})
	return "memory://" + path, nil
}

// Objects returns a snapshot of uploaded objects.
func (m *Memory) Objects() []MemoryObject {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MemoryObject, len(m.objects))
	copy(out, m.objects)
	return out
}

var _ ObjectStore = (*Memory)(nil)
