// Package coordinator ties preparation, launching and status tracking of
// actions together. It owns executor identity: every prepared action gets an
// executor id and a signed callback token scoped to it.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/roadan/incubator-amaterasu/internal/action"
	"github.com/roadan/incubator-amaterasu/internal/dispatch"
	"github.com/roadan/incubator-amaterasu/internal/launcher"
	"github.com/roadan/incubator-amaterasu/internal/repository"
	"github.com/roadan/incubator-amaterasu/internal/runner"
	"github.com/roadan/incubator-amaterasu/internal/sanitize"
)

var (
	// ErrNoLauncher is returned by Dispatch when no launcher is configured.
	ErrNoLauncher = errors.New("no launcher configured")

	// ErrStaleExecutor is returned when a report comes from an executor that
	// has since been replaced by a newer dispatch of the same action.
	ErrStaleExecutor = errors.New("stale executor")

	// ErrFinalStatus is returned when a report targets an action that has
	// already finished.
	ErrFinalStatus = errors.New("action already finished")
)

// EnvFunc returns the runner configuration for a runner type.
type EnvFunc func(typeID string) runner.Env

// StatusEvent is broadcast for every ledger status change.
type StatusEvent struct {
	JobID      string            `json:"job_id"`
	Action     string            `json:"action"`
	ExecutorID string            `json:"executor_id"`
	Status     repository.Status `json:"status"`
	Message    string            `json:"message,omitempty"`
	At         time.Time         `json:"at"`
}

type Coordinator struct {
	registry     *runner.Registry
	builder      *dispatch.Builder
	launcher     launcher.Launcher
	repo         repository.Repository
	env          EnvFunc
	callbackBase string
	jwtSecret    []byte
	logger       *slog.Logger
	now          func() time.Time

	statusFeed     *StatusFeed
}

type Config struct {
	Registry     *runner.Registry
	Builder      *dispatch.Builder
	Launcher     launcher.Launcher // optional for Prepare-only use
	Repository   repository.Repository
	Env          EnvFunc
	CallbackBase string
	Secret       string
}

func New(logger *slog.Logger, cfg Config) *Coordinator {
	env := cfg.Env
	if env == nil {
		env = func(string) runner.Env { return nil }
	}
	return &Coordinator{
		registry:       cfg.Registry,
		builder:        cfg.Builder,
		launcher:       cfg.Launcher,
		repo:           cfg.Repository,
		env:            env,
		callbackBase:   cfg.CallbackBase,
		jwtSecret:      []byte(cfg.Secret),
		logger:         logger,
		now:            time.Now,
		statusFeed:     NewStatusFeed(logger),
	}
}

// Prepare builds the dispatch package for act. The runner is chosen by
// act.TypeID. An empty executorID gets a fresh one.
func (c *Coordinator) Prepare(ctx context.Context, jobID string, act action.Action, executorID string) (*dispatch.Package, error) {
	provider, err := c.registry.Lookup(act.TypeID)
	if err != nil {
		return nil, fmt.Errorf("prepare %s/%s: %w", jobID, act.Name, err)
	}

	if executorID == "" {
		executorID = uuid.NewString()
	}

	token, err := c.generateToken(Claims{JobID: jobID, Action: act.Name, ExecutorID: executorID})
	if err != nil {
		return nil, err
	}
	callback, err := callbackAddress(c.callbackBase, token)
	if err != nil {
		return nil, err
	}

	return c.builder.Prepare(ctx, dispatch.Request{
		JobID:           jobID,
		Action:          act,
		Runner:          provider,
		Env:             c.env(act.TypeID),
		ExecutorID:      executorID,
		CallbackAddress: callback,
	})
}

// Dispatch prepares act, launches it and records it in the ledger as
// dispatched. A launch that succeeds but cannot be recorded is cancelled.
func (c *Coordinator) Dispatch(ctx context.Context, jobID string, act action.Action) (*repository.ActionRecord, error) {
	if c.launcher == nil {
		return nil, ErrNoLauncher
	}

	pkg, err := c.Prepare(ctx, jobID, act, "")
	if err != nil {
		return nil, err
	}

	dispatchID, err := c.launcher.Launch(ctx, pkg)
	if err != nil {
		return nil, fmt.Errorf("launch %s/%s: %w", jobID, act.Name, err)
	}

	now := c.now()
	rec := &repository.ActionRecord{
		JobID:          jobID,
		Action:         act.Name,
		ExecutorID:     pkg.ExecutorID,
		Runner:         act.TypeID,
		Launcher:       c.launcher.Kind(),
		DispatchID:     dispatchID,
		Status:         repository.StatusDispatched,
		ExecutablePath: pkg.ExecutablePath,
		Command:        sanitize.Command(pkg.Command),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := c.repo.RecordDispatch(ctx, rec); err != nil {
		if cancelErr := c.launcher.Cancel(context.WithoutCancel(ctx), dispatchID); cancelErr != nil {
			c.logger.Error("failed to cancel unrecorded launch", "job_id", jobID, "action", act.Name, "dispatch_id", dispatchID, "error", cancelErr)
		}
		return nil, fmt.Errorf("record dispatch: %w", err)
	}

	c.logger.Info("action dispatched", "job_id", jobID, "action", act.Name, "executor_id", pkg.ExecutorID, "launcher", rec.Launcher, "dispatch_id", dispatchID, "command", rec.Command)
	c.broadcast(rec.JobID, rec.Action, rec.ExecutorID, rec.Status, "")
	return rec, nil
}

// ReportStatus applies a status report sent by an executor. The token
// identifies the executor; reports from replaced executors and reports for
// finished actions are rejected.
func (c *Coordinator) ReportStatus(ctx context.Context, token string, status repository.Status, message string) error {
	claims, err := c.ValidateToken(token)
	if err != nil {
		return err
	}

	rec, err := c.repo.GetAction(ctx, claims.JobID, claims.Action)
	if err != nil {
		return fmt.Errorf("lookup action: %w", err)
	}
	if rec.ExecutorID != claims.ExecutorID {
		return fmt.Errorf("%w: %s reported for %s/%s, current executor is %s", ErrStaleExecutor, claims.ExecutorID, claims.JobID, claims.Action, rec.ExecutorID)
	}
	if rec.Status.Final() {
		return fmt.Errorf("%w: %s/%s is %s", ErrFinalStatus, claims.JobID, claims.Action, rec.Status)
	}

	if err := c.repo.UpdateStatus(ctx, claims.JobID, claims.Action, status, message); err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	c.logger.Info("status reported", "job_id", claims.JobID, "action", claims.Action, "executor_id", claims.ExecutorID, "status", status)
	c.broadcast(claims.JobID, claims.Action, claims.ExecutorID, status, message)
	return nil
}

func (c *Coordinator) ListActions(ctx context.Context, filter repository.ActionFilter) ([]*repository.ActionRecord, error) {
	return c.repo.ListActions(ctx, filter)
}

// SubscribeStatus streams status changes of jobID, or of all jobs when
// jobID is empty.
func (c *Coordinator) SubscribeStatus(jobID string) chan StatusEvent {
	return c.statusFeed.Subscribe(jobID)
}

func (c *Coordinator) UnsubscribeStatus(ch chan StatusEvent) {
	c.statusFeed.Unsubscribe(ch)
}

func (c *Coordinator) broadcast(jobID, act, executorID string, status repository.Status, message string) {
	n := c.statusFeed.Publish(StatusEvent{
		JobID:      jobID,
		Action:     act,
		ExecutorID: executorID,
		Status:     status,
		Message:    message,
		At:         c.now(),
	})
	c.logger.Debug("status published", "job_id", jobID, "action", act, "delivered", n, "subscribers", c.statusFeed.Subscribers())
}
