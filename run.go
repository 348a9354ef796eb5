package helm

import (
	"context"
	"errors"
)

// ErrRunNotFound is returned by a RunStatusStore when the run id is unknown.
// The controller treats this as fatal: a run cannot safely continue without
// knowing its cancellation state.
var ErrRunNotFound = errors.New("run not found")

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunStatusRunning     RunStatus = "running"
	RunStatusAborted     RunStatus = "aborted"
	RunStatusCompleted   RunStatus = "completed"
	RunStatusInterrupted RunStatus = "interrupted"
	RunStatusExhausted   RunStatus = "exhausted"
	RunStatusFailed      RunStatus = "failed"
)

func (s RunStatus) String() string {
	return string(s)
}

// Run identifies one execution of the turn loop for a given session.
type Run struct {
	SessionID string `json:"session_id"`
	RunID     string `json:"run_id"`
}

// RunStatusStore is the authoritative source of whether a run has been
// cancelled. The controller only reacts to RunStatusAborted; all other
// statuses let the run proceed. Implementations must be safe for concurrent
// use by multiple controllers.
type RunStatusStore interface {
	// GetStatus returns the current status for the run. Returns
	// ErrRunNotFound if the run id is unknown.
	GetStatus(ctx context.Context, runID string) (RunStatus, error)

	// SetStatus records a new status for the run.
	SetStatus(ctx context.Context, runID string, status RunStatus) error
}
