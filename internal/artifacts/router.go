package artifacts

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roadan/incubator-amaterasu/internal/action"
)

// Router implements Store by sending each repository id to its backend.
// Results keep the order of the requested repositories.
type Router struct {
	mu       sync.RWMutex
	backends map[string]Backend
	logger   *slog.Logger
}

func NewRouter(logger *slog.Logger) *Router {
	return &Router{
		backends: make(map[string]Backend),
		logger:   logger,
	}
}

// Register binds a repository id to a backend, replacing any previous one.
func (r *Router) Register(id string, b Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[id] = b
}

func (r *Router) LocalArtifacts(ctx context.Context, repos []string, jobID string, coord action.Artifact) ([]Artifact, error) {
	var found []Artifact
	for _, id := range repos {
		r.mu.RLock()
		b, ok := r.backends[id]
		r.mu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownRepo, id)
		}

		arts, err := b.Fetch(ctx, jobID, coord)
		if err != nil {
			return nil, fmt.Errorf("fetch %s from %s: %w", coord, id, err)
		}
		r.logger.Debug("artifact lookup", "job_id", jobID, "repo", id, "artifact", coord.String(), "matches", len(arts))

		for _, a := range arts {
			a.Repo = id
			found = append(found, a)
		}
	}
	return found, nil
}
