// Package dispatch assembles everything a worker needs to run one action:
// the resources to stage, the dependencies to install, the resolved
// executable and the launch command.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roadan/incubator-amaterasu/internal/action"
	"github.com/roadan/incubator-amaterasu/internal/orchestration"
	"github.com/roadan/incubator-amaterasu/internal/paths"
	"github.com/roadan/incubator-amaterasu/internal/runner"
)

// ExecutableResolver is satisfied by *locator.Locator.
type ExecutableResolver interface {
	ResolveExecutable(ctx context.Context, jobID string, act action.Action) (string, error)
}

type Request struct {
	JobID           string
	Action          action.Action
	Runner          runner.Provider
	Env             runner.Env
	ExecutorID      string
	CallbackAddress string
}

// Package is a fully prepared action, ready to hand to a launcher.
type Package struct {
	JobID            string   `json:"job_id"`
	Action           string   `json:"action"`
	ExecutorID       string   `json:"executor_id"`
	CallbackAddress  string   `json:"callback_address"`
	Resources        []string `json:"resources"`
	Dependencies     []string `json:"dependencies"`
	RunnerResources  []string `json:"runner_resources"`
	ExecutablePath   string   `json:"executable_path"`
	SourceKey        string   `json:"source_key,omitempty"`
	Command          string   `json:"command"`
	RequiresExecutor bool     `json:"requires_executor"`
}

type Builder struct {
	resolver    ExecutableResolver
	logProvider orchestration.LogProvider
	logger      *slog.Logger
}

// NewBuilder returns a builder. logProvider may be nil.
func NewBuilder(resolver ExecutableResolver, logProvider orchestration.LogProvider, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{resolver: resolver, logProvider: logProvider, logger: logger}
}

// Prepare builds the package for req. It is all-or-nothing: on any error
// the returned package is nil.
func (b *Builder) Prepare(ctx context.Context, req Request) (*Package, error) {
	if req.Runner == nil {
		return nil, fmt.Errorf("%w: no runner for action %q", action.ErrUnsupportedConfiguration, req.Action.Name)
	}

	jobID, act, r := req.JobID, req.Action, req.Runner
	pkg := &Package{
		JobID:           jobID,
		Action:          act.Name,
		ExecutorID:      req.ExecutorID,
		CallbackAddress: req.CallbackAddress,
	}

	err := orchestration.NewPipeline(jobID+"/"+act.Name, b.logProvider, b.logger).
		AddStep("validate", "Validating action", func(ctx context.Context) error {
			return act.Validate()
		}).
		AddStep("resources", "Collecting resources", func(ctx context.Context) error {
			pkg.Resources = paths.ActionResourcePaths(jobID, act, r.ActionUserResources(jobID, act))
			pkg.RunnerResources = r.RunnerResources()
			return nil
		}).
		AddStep("dependencies", "Collecting dependencies", func(ctx context.Context) error {
			pkg.Dependencies = r.ActionDependencies(jobID, act)
			return nil
		}).
		AddStep("executable", "Resolving executable", func(ctx context.Context) error {
			p, err := b.resolver.ResolveExecutable(ctx, jobID, act)
			if err != nil {
				return err
			}
			pkg.ExecutablePath = p
			if !act.HasArtifact() && p != paths.RepoSourcePath(act.Src) {
				// Downloaded here; staged from ExecutablePath.
				pkg.SourceKey = paths.SourceStagingPath(jobID, act)
			}
			return nil
		}).
		AddStep("command", "Building command", func(ctx context.Context) error {
			cmd, err := r.Command(jobID, act, req.Env, req.ExecutorID, req.CallbackAddress)
			if err != nil {
				return err
			}
			pkg.Command = cmd
			pkg.RequiresExecutor = r.HasExecutor()
			return nil
		}).
		Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare %s/%s: %w", jobID, act.Name, err)
	}

	b.logger.Info("action prepared", "job_id", jobID, "action", act.Name, "resources", len(pkg.Resources), "executable", pkg.ExecutablePath)
	return pkg, nil
}
