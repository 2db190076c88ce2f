// Package spark runs actions through spark-submit.
//
// Two variants share the command layout: the JVM "spark" runner keeps an
// executor process alive for the action, the "pyspark" runner does not and
// additionally ships the Python SDK.
package spark

import (
	"sort"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/roadan/incubator-amaterasu/internal/action"
	"github.com/roadan/incubator-amaterasu/internal/paths"
	"github.com/roadan/incubator-amaterasu/internal/runner"
)

const (
	TypeSpark   = "spark"
	TypePySpark = "pyspark"

	RuntimeResource = "spark-runtime.zip"
	SDKResource     = "amaterasu-sdk.zip"
	DefaultsFile    = "spark-defaults.conf"

	defaultHome = "/opt/spark"
)

type Provider struct {
	python bool
}

// New returns the JVM spark runner.
func New() *Provider {
	return &Provider{}
}

// NewPySpark returns the pyspark runner.
func NewPySpark() *Provider {
	return &Provider{python: true}
}

func (p *Provider) RunnerResources() []string {
	if p.python {
		return []string{RuntimeResource, SDKResource}
	}
	return []string{RuntimeResource}
}

func (p *Provider) ActionUserResources(jobID string, act action.Action) []string {
	res := []string{paths.ActionFile(jobID, act, DefaultsFile)}
	if p.python && !act.HasArtifact() {
		res = append(res, paths.SourceStagingPath(jobID, act))
	}
	return res
}

func (p *Provider) ActionDependencies(jobID string, act action.Action) []string {
	return append([]string(nil), act.Packages...)
}

func (p *Provider) HasExecutor() bool {
	return !p.python
}

// Command builds the spark-submit invocation. The "master" setting is
// required. "conf" entries are "key=value" strings and are emitted sorted.
func (p *Provider) Command(jobID string, act action.Action, env runner.Env, executorID, callbackAddress string) (string, error) {
	master, err := runner.RequireString(env, "master")
	if err != nil {
		return "", err
	}
	home := strings.TrimSuffix(runner.StringOr(env, "home", defaultHome), "/")

	args := []string{
		home + "/bin/spark-submit",
		"--master", master,
		"--name", "amaterasu-" + jobID + "-" + act.Name,
		"--properties-file", paths.ActionFile(jobID, act, DefaultsFile),
	}

	if mode := runner.StringOr(env, "deploy_mode", ""); mode != "" {
		args = append(args, "--deploy-mode", mode)
	}

	conf := runner.StringSlice(env, "conf")
	sorted := append([]string(nil), conf...)
	sort.Strings(sorted)
	for _, kv := range sorted {
		args = append(args, "--conf", kv)
	}

	// pyspark packages are python libraries the worker installs itself.
	if !p.python {
		if len(act.Packages) > 0 {
			args = append(args, "--packages", strings.Join(act.Packages, ","))
		}
		if main := runner.StringOr(env, "main_class", ""); main != "" {
			args = append(args, "--class", main)
		}
	}

	args = append(args,
		runner.Entrypoint(jobID, act),
		"--job-id", jobID,
		"--action", act.Name,
		"--executor", executorID,
		"--callback", callbackAddress,
	)
	return shellquote.Join(args...), nil
}
