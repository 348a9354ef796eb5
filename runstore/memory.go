// Package runstore provides RunStatusStore implementations: an in-memory
// store for tests and single-process use, a file store for local
// persistence, and a Redis store for multi-process deployments.
package runstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/deepnoodle-ai/helm"
)

// MemoryStore is an in-memory RunStatusStore.
//
// Suitable for development, testing, and single-instance deployments.
// State is lost when the process exits.
type MemoryStore struct {
	mu       sync.RWMutex
	statuses map[string]helm.RunStatus
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		statuses: make(map[string]helm.RunStatus),
	}
}

func (s *MemoryStore) GetStatus(ctx context.Context, runID string) (helm.RunStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status, ok := s.statuses[runID]
	if !ok {
		return "", fmt.Errorf("%w: %q", helm.ErrRunNotFound, runID)
	}
	return status, nil
}

func (s *MemoryStore) SetStatus(ctx context.Context, runID string, status helm.RunStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[runID] = status
	return nil
}
