// Package launcher starts prepared actions on an execution backend.
package launcher

import (
	"context"
	"errors"

	"github.com/roadan/incubator-amaterasu/internal/dispatch"
)

// ErrNotRunning is returned by Cancel when the backend has no worker for the
// id, e.g. one started by another process that has since exited.
var ErrNotRunning = errors.New("worker not running")

type Launcher interface {
	// Kind names the backend, e.g. "nomad" or "local".
	Kind() string

	// Launch starts the worker for pkg and returns the backend's id for it.
	Launch(ctx context.Context, pkg *dispatch.Package) (string, error)

	// Cancel stops a launched worker.
	Cancel(ctx context.Context, id string) error
}
