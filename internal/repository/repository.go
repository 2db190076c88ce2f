package repository

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when no record matches the lookup.
	ErrNotFound = errors.New("record not found")

	ErrUnknownStatus = errors.New("unknown status")
)

type Status string

const (
	StatusDispatched Status = "dispatched"
	StatusRunning    Status = "running"
	StatusSuccess    Status = "success"
	StatusFailure    Status = "failure"
	StatusError      Status = "error"
	StatusCancelled  Status = "cancelled"
)

// Final reports whether no further status change is expected.
func (s Status) Final() bool {
	switch s {
	case StatusSuccess, StatusFailure, StatusError, StatusCancelled:
		return true
	}
	return false
}

func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusDispatched, StatusRunning, StatusSuccess, StatusFailure, StatusError, StatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownStatus, s)
}

// Repository is the dispatch ledger: one record per launched action.
type Repository interface {
	RecordDispatch(ctx context.Context, rec *ActionRecord) error
	UpdateStatus(ctx context.Context, jobID, action string, status Status, message string) error
	GetAction(ctx context.Context, jobID, action string) (*ActionRecord, error)
	ListActions(ctx context.Context, filter ActionFilter) ([]*ActionRecord, error)

	// ListStale returns dispatched or running actions not updated since
	// olderThan, oldest first.
	ListStale(ctx context.Context, olderThan time.Time, limit int) ([]*ActionRecord, error)

	Close() error
}

// ActionRecord is the persisted state of one dispatched action. Command is
// stored sanitized.
type ActionRecord struct {
	JobID          string    `json:"job_id"`
	Action         string    `json:"action"`
	ExecutorID     string    `json:"executor_id"`
	Runner         string    `json:"runner"`
	Launcher       string    `json:"launcher"`
	DispatchID     string    `json:"dispatch_id"`
	Status         Status    `json:"status"`
	ExecutablePath string    `json:"executable_path"`
	Command        string    `json:"command"`
	Message        string    `json:"message,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
