// Package python runs plain Python actions with the Amaterasu SDK.
package python

import (
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/roadan/incubator-amaterasu/internal/action"
	"github.com/roadan/incubator-amaterasu/internal/paths"
	"github.com/roadan/incubator-amaterasu/internal/runner"
)

const (
	TypeID = "python"

	SDKResource   = "amaterasu-sdk.zip"
	SDKDependency = "amaterasu-sdk"

	defaultInterpreter = "python3"
)

type Provider struct{}

func New() *Provider {
	return &Provider{}
}

func (p *Provider) RunnerResources() []string {
	return []string{SDKResource}
}

func (p *Provider) ActionUserResources(jobID string, act action.Action) []string {
	if act.HasArtifact() {
		return nil
	}
	return []string{paths.SourceStagingPath(jobID, act)}
}

func (p *Provider) ActionDependencies(jobID string, act action.Action) []string {
	deps := make([]string, 0, len(act.Packages)+1)
	deps = append(deps, SDKDependency)
	return append(deps, act.Packages...)
}

func (p *Provider) HasExecutor() bool {
	return false
}

// Command installs the action dependencies with pip and runs the entrypoint:
//
//	{interpreter} -m pip install --quiet deps... && {interpreter} entry --job-id ... --callback ...
func (p *Provider) Command(jobID string, act action.Action, env runner.Env, executorID, callbackAddress string) (string, error) {
	interpreter := runner.StringOr(env, "interpreter", defaultInterpreter)

	install := append([]string{interpreter, "-m", "pip", "install", "--quiet"}, p.ActionDependencies(jobID, act)...)
	install = append(install, runner.StringSlice(env, "pip_args")...)

	run := []string{
		interpreter, runner.Entrypoint(jobID, act),
		"--job-id", jobID,
		"--action", act.Name,
		"--executor", executorID,
		"--callback", callbackAddress,
	}

	return strings.Join([]string{shellquote.Join(install...), shellquote.Join(run...)}, " && "), nil
}
