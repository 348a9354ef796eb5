package runstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/deepnoodle-ai/helm"
	"github.com/deepnoodle-ai/helm/internal/random"
)

// ErrInvalidRunID is returned when a run ID contains path separators,
// relative path components, or other characters that could cause path
// traversal.
var ErrInvalidRunID = errors.New("invalid run ID")

// FileStore persists run statuses as one JSON file per run.
//
// Each run is stored as {dir}/{run_id}.json. Writes go through a temp file
// rename so readers never observe a partial write.
type FileStore struct {
	mu  sync.RWMutex
	dir string
}

// NewFileStore creates a FileStore rooted at dir. The directory is created
// if it does not exist.
func NewFileStore(dir string) (*FileStore, error) {
	if strings.HasPrefix(dir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(home, dir[2:])
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir}, nil
}

// validateID rejects run IDs that could escape the store directory.
func validateID(id string) error {
	if id == "" || id == "." || id == ".." ||
		strings.ContainsAny(id, "/\\") ||
		strings.Contains(id, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidRunID, id)
	}
	return nil
}

func (s *FileStore) path(runID string) string {
	return filepath.Join(s.dir, runID+".json")
}

type runRecord struct {
	RunID  string         `json:"run_id"`
	Status helm.RunStatus `json:"status"`
}

func (s *FileStore) GetStatus(ctx context.Context, runID string) (helm.RunStatus, error) {
	if err := validateID(runID); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, err := os.ReadFile(s.path(runID))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %q", helm.ErrRunNotFound, runID)
		}
		return "", err
	}
	var record runRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return "", fmt.Errorf("corrupt run record %q: %w", runID, err)
	}
	return record.Status, nil
}

func (s *FileStore) SetStatus(ctx context.Context, runID string, status helm.RunStatus) error {
	if err := validateID(runID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.Marshal(runRecord{RunID: runID, Status: status})
	if err != nil {
		return err
	}
	tmp := s.path(runID) + ".tmp." + random.Hex(4)
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path(runID))
}
