// Package memory provides in-memory stores for development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/sitewise/inspection-exporter/internal/export"
)

// BlobStore keeps archived artifacts in a map.
type BlobStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewBlobStore creates an in-memory blob store.
func NewBlobStore() *BlobStore {
	return &BlobStore{blobs: make(map[string][]byte)}
}

// PutObject stores data under path and returns a mem:// URI.
func (s *BlobStore) PutObject(_ context.Context, path string, _ string, data []byte) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[path] = append([]byte(nil), data...)
	return "mem://" + path, nil
}

// GetObject returns a stored blob.
func (s *BlobStore) GetObject(path string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[path]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

// Len reports how many blobs are stored.
func (s *BlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}

// AuditStore records export audit rows in memory.
type AuditStore struct {
	mu      sync.RWMutex
	records []export.AuditRecord
}

// NewAuditStore creates an in-memory audit store.
func NewAuditStore() *AuditStore {
	return &AuditStore{}
}

// RecordExport appends the record.
func (s *AuditStore) RecordExport(_ context.Context, rec export.AuditRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("audit record id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

// Records returns a copy of everything recorded so far.
func (s *AuditStore) Records() []export.AuditRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]export.AuditRecord, len(s.records))
	copy(out, s.records)
	return out
}
