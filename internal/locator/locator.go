// Package locator resolves the local path of the executable an action runs.
//
// Resolution checks three sources in order and the first match wins:
//
//  1. artifact-based actions are looked up in the artifact store scoped to
//     the action's repo and the job;
//  2. a Src the classifier recognizes as a URL is downloaded;
//  3. anything else is assumed pre-staged under repo/src.
//
// The third branch performs no existence check. A missing file surfaces when
// the worker process is launched, not here.
package locator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roadan/incubator-amaterasu/internal/action"
	"github.com/roadan/incubator-amaterasu/internal/artifacts"
	"github.com/roadan/incubator-amaterasu/internal/download"
	"github.com/roadan/incubator-amaterasu/internal/paths"
)

var (
	// ErrArtifactNotFound is returned when an artifact query has no matches.
	ErrArtifactNotFound = errors.New("artifact not found")

	// ErrDownload is returned when fetching a URL-based source fails.
	ErrDownload = errors.New("download failed")
)

// ResolutionError is the error returned by ResolveExecutable.
type ResolutionError struct {
	JobID  string
	Action string
	Err    error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve executable for %s/%s: %v", e.JobID, e.Action, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// Options overrides Locator defaults.
type Options struct {
	// TieBreak chooses among several artifact matches. Defaults to
	// artifacts.First.
	TieBreak artifacts.TieBreak
	Logger   *slog.Logger
}

// Locator implements executable resolution. It holds no per-call state and
// is safe for concurrent use.
type Locator struct {
	store      artifacts.Store
	classifier download.Classifier
	downloader download.Downloader
	tieBreak   artifacts.TieBreak
	logger     *slog.Logger
}

func New(store artifacts.Store, classifier download.Classifier, downloader download.Downloader, optFns ...func(o *Options)) *Locator {
	opts := Options{
		TieBreak: artifacts.First,
		Logger:   slog.Default(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Locator{
		store:      store,
		classifier: classifier,
		downloader: downloader,
		tieBreak:   opts.TieBreak,
		logger:     opts.Logger,
	}
}

// ResolveExecutable returns the local path of the action's executable.
// Errors are *ResolutionError and match ErrArtifactNotFound, ErrDownload,
// artifacts.ErrAmbiguousArtifact or context errors with errors.Is.
func (l *Locator) ResolveExecutable(ctx context.Context, jobID string, act action.Action) (string, error) {
	p, err := l.resolve(ctx, jobID, act)
	if err != nil {
		return "", &ResolutionError{JobID: jobID, Action: act.Name, Err: err}
	}
	return p, nil
}

func (l *Locator) resolve(ctx context.Context, jobID string, act action.Action) (string, error) {
	if act.HasArtifact() {
		return l.fromArtifact(ctx, jobID, act)
	}

	if l.classifier.IsSupportedURL(act.Src) {
		p, err := l.downloader.Download(ctx, act.Src)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			return "", fmt.Errorf("%w: %s: %w", ErrDownload, act.Src, err)
		}
		l.logger.Debug("executable downloaded", "job_id", jobID, "action", act.Name, "url", act.Src, "path", p)
		return p, nil
	}

	return paths.RepoSourcePath(act.Src), nil
}

func (l *Locator) fromArtifact(ctx context.Context, jobID string, act action.Action) (string, error) {
	candidates, err := l.store.LocalArtifacts(ctx, []string{act.Repo}, jobID, *act.Artifact)
	if err != nil {
		return "", fmt.Errorf("query %s: %w", act.Repo, err)
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("%w: %s in %s", ErrArtifactNotFound, act.Artifact, act.Repo)
	}

	chosen, err := l.tieBreak(candidates)
	if err != nil {
		return "", err
	}
	if len(candidates) > 1 {
		l.logger.Warn("artifact query returned several candidates", "job_id", jobID, "action", act.Name, "artifact", act.Artifact.String(), "candidates", len(candidates), "chosen", chosen.Path)
	}
	return chosen.Path, nil
}
