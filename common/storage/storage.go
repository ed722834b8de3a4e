// Package storage defines the object-store collaborator boundary. The
// archive core never speaks the object-storage wire protocol; it consumes
// this interface for existence checks, content reads and presigned
// retrieval.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"
)

// BlobStore is the content-addressable object store behind asset blobs and
// zarr files
type BlobStore interface {
	// Exists reports whether an object lives at key
	Exists(ctx context.Context, key string) (bool, error)

	// Size returns the object size in bytes
	Size(ctx context.Context, key string) (int64, error)

	// Reader streams the object content; the caller closes it
	Reader(ctx context.Context, key string) (io.ReadCloser, error)

	// PresignedGetURL returns a time-limited download URL serving the
	// object under the given filename
	PresignedGetURL(ctx context.Context, key, filename string, expires time.Duration) (string, error)
}

// MemoryStore is an in-process blob store for tests and single-node
// development
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryStore creates an empty in-memory blob store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

// Put stores an object
func (s *MemoryStore) Put(key string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = append([]byte(nil), content...)
}

// Exists reports whether an object lives at key
func (s *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[key]
	return ok, nil
}

// Size returns the object size in bytes
func (s *MemoryStore) Size(ctx context.Context, key string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	content, ok := s.objects[key]
	if !ok {
		return 0, fmt.Errorf("object %q does not exist", key)
	}
	return int64(len(content)), nil
}

// Reader streams the object content
func (s *MemoryStore) Reader(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	content, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %q does not exist", key)
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

// PresignedGetURL returns a stand-in URL; real deployments presign against
// the object store
func (s *MemoryStore) PresignedGetURL(ctx context.Context, key, filename string, expires time.Duration) (string, error) {
	return fmt.Sprintf("memory://%s?filename=%s&expires=%d",
		url.PathEscape(key), url.QueryEscape(filename), int64(expires.Seconds())), nil
}
