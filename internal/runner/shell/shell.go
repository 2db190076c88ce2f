// Package shell runs actions as shell scripts.
package shell

import (
	"sort"

	"github.com/kballard/go-shellquote"

	"github.com/roadan/incubator-amaterasu/internal/action"
	"github.com/roadan/incubator-amaterasu/internal/paths"
	"github.com/roadan/incubator-amaterasu/internal/runner"
)

const (
	TypeID = "shell"

	defaultBin = "bash"
)

type Provider struct{}

func New() *Provider {
	return &Provider{}
}

func (p *Provider) RunnerResources() []string {
	return nil
}

func (p *Provider) ActionUserResources(jobID string, act action.Action) []string {
	if act.HasArtifact() {
		return nil
	}
	return []string{paths.SourceStagingPath(jobID, act)}
}

func (p *Provider) ActionDependencies(jobID string, act action.Action) []string {
	return nil
}

func (p *Provider) HasExecutor() bool {
	return false
}

// Command runs the entrypoint under {bin} with the AMA_* variables set.
// Action exports are passed as additional variables, sorted by name.
func (p *Provider) Command(jobID string, act action.Action, env runner.Env, executorID, callbackAddress string) (string, error) {
	args := []string{
		"env",
		"AMA_JOB_ID=" + jobID,
		"AMA_ACTION=" + act.Name,
		"AMA_EXECUTOR_ID=" + executorID,
		"AMA_CALLBACK=" + callbackAddress,
	}

	names := make([]string, 0, len(act.Exports))
	for name := range act.Exports {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		args = append(args, name+"="+act.Exports[name])
	}

	args = append(args, runner.StringOr(env, "bin", defaultBin), runner.Entrypoint(jobID, act))
	return shellquote.Join(args...), nil
}
