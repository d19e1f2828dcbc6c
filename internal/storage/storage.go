// Package storage keeps processed deal images in object storage.
package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/pinnity/pinnity/internal/config"
)

// ObjectStore stores an object and returns its public URL.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, body []byte) (string, error)
}

// New builds the store selected by STORAGE_DRIVER.
func New(ctx context.Context, cfg config.StorageConfig) (ObjectStore, error) {
	switch cfg.Driver {
	case "s3":
		return NewS3Store(ctx, cfg)
	case "memory", "":
		return NewMemoryStore(cfg.PublicBaseURL), nil
	}
	return nil, fmt.Errorf("storage: unknown driver %q", cfg.Driver)
}

// Object is a stored blob.
type Object struct {
	ContentType string
	Body        []byte
}

// MemoryStore keeps objects in process and serves them through the API.
type MemoryStore struct {
	mu      sync.RWMutex
	baseURL string
	objects map[string]Object
}

func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		objects: make(map[string]Object),
	}
}

func (m *MemoryStore) Put(_ context.Context, key, contentType string, body []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	buf := make([]byte, len(body))
	copy(buf, body)
	m.objects[key] = Object{ContentType: contentType, Body: buf}
	return fmt.Sprintf("%s/%s", m.baseURL, key), nil
}

// Get returns the object stored under key.
func (m *MemoryStore) Get(key string) (Object, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[key]
	return obj, ok
}
