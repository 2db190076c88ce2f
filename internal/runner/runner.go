// Package runner defines the contract every framework runner implements and
// a static registry mapping runner type ids to providers.
package runner

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/roadan/incubator-amaterasu/internal/action"
	"github.com/roadan/incubator-amaterasu/internal/paths"
)

// ErrUnknownRunner is returned by Registry.Lookup for unregistered types.
var ErrUnknownRunner = errors.New("unknown runner")

// Env is the runner configuration subtree. *viper.Viper satisfies it.
type Env interface {
	GetString(key string) string
	GetStringSlice(key string) []string
	IsSet(key string) bool
}

// Provider describes how a framework runs an action.
type Provider interface {
	// RunnerResources lists the files the framework itself needs on the
	// worker, independent of any action.
	RunnerResources() []string

	// Command returns the shell command that launches the worker process.
	// It must be deterministic for identical inputs.
	Command(jobID string, act action.Action, env Env, executorID, callbackAddress string) (string, error)

	// ActionUserResources lists extra per-action files beyond the standard
	// env.yaml, runtime.yaml and datasets.yaml.
	ActionUserResources(jobID string, act action.Action) []string

	// ActionDependencies lists the libraries the action needs installed.
	ActionDependencies(jobID string, act action.Action) []string

	// HasExecutor reports whether the framework runs a long-lived executor
	// process per action.
	HasExecutor() bool
}

// Registry maps runner type ids to providers.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds p under typeID, replacing any previous provider.
func (r *Registry) Register(typeID string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[typeID] = p
}

func (r *Registry) Lookup(typeID string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[typeID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRunner, typeID)
	}
	return p, nil
}

// Types returns the registered type ids, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.providers))
	for t := range r.providers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// RequireString returns env[key] or an error wrapping
// action.ErrUnsupportedConfiguration when it is missing or empty.
func RequireString(env Env, key string) (string, error) {
	if env == nil || !env.IsSet(key) || env.GetString(key) == "" {
		return "", fmt.Errorf("%w: missing runner setting %q", action.ErrUnsupportedConfiguration, key)
	}
	return env.GetString(key), nil
}

// StringOr returns env[key] or def when it is not set.
func StringOr(env Env, key, def string) string {
	if env == nil || !env.IsSet(key) {
		return def
	}
	if v := env.GetString(key); v != "" {
		return v
	}
	return def
}

// StringSlice returns env[key] or nil.
func StringSlice(env Env, key string) []string {
	if env == nil || !env.IsSet(key) {
		return nil
	}
	return env.GetStringSlice(key)
}

// Entrypoint is the worker-relative path of the executable a command
// launches: the staged source for plain actions, the artifact file name for
// artifact-based ones.
func Entrypoint(jobID string, act action.Action) string {
	if act.HasArtifact() {
		return act.Entrypoint()
	}
	return paths.SourceStagingPath(jobID, act)
}
