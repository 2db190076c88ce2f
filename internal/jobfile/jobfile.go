// Package jobfile loads job definitions from YAML or HCL files.
//
// Both formats describe the same document: a job name and an ordered list of
// actions. Action order is file order.
package jobfile

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/roadan/incubator-amaterasu/internal/action"
)

var (
	// ErrUnknownFormat is returned for file extensions with no loader.
	ErrUnknownFormat = errors.New("unknown job file format")

	// ErrInvalidJob is returned for structurally invalid job files.
	ErrInvalidJob = errors.New("invalid job file")
)

type Job struct {
	Name    string
	Actions []action.Action
}

// Load reads a .yaml, .yml or .hcl job file.
func Load(path string) (*Job, error) {
	var (
		job *Job
		err error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		job, err = loadYAML(path)
	case ".hcl":
		job, err = loadHCL(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, ext)
	}
	if err != nil {
		return nil, err
	}
	if err := job.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return job, nil
}

// Action returns the action named name.
func (j *Job) Action(name string) (action.Action, bool) {
	for _, a := range j.Actions {
		if a.Name == name {
			return a, true
		}
	}
	return action.Action{}, false
}

func (j *Job) validate() error {
	if strings.TrimSpace(j.Name) == "" {
		return fmt.Errorf("%w: job name is required", ErrInvalidJob)
	}
	if len(j.Actions) == 0 {
		return fmt.Errorf("%w: job %q has no actions", ErrInvalidJob, j.Name)
	}
	seen := make(map[string]bool, len(j.Actions))
	for _, a := range j.Actions {
		if seen[a.Name] {
			return fmt.Errorf("%w: duplicate action %q", ErrInvalidJob, a.Name)
		}
		seen[a.Name] = true
		if a.TypeID == "" {
			return fmt.Errorf("%w: action %q has no runner", ErrInvalidJob, a.Name)
		}
	}
	return nil
}

// entry is the format-independent shape of one action entry.
type entry struct {
	ID       string
	Name     string
	Runner   string
	Group    string
	Src      string
	Repo     string
	Artifact string
	Config   string
	Packages []string
	Exports  map[string]string
}

func (s entry) toAction() (action.Action, error) {
	act := action.Action{
		ID:       s.ID,
		Name:     s.Name,
		Src:      s.Src,
		Repo:     s.Repo,
		GroupID:  s.Group,
		TypeID:   s.Runner,
		Config:   s.Config,
		Packages: s.Packages,
		Exports:  s.Exports,
	}
	if act.ID == "" {
		act.ID = act.Name
	}
	if s.Artifact != "" {
		coord, err := action.ParseArtifact(s.Artifact)
		if err != nil {
			return action.Action{}, fmt.Errorf("%w: action %q: %w", ErrInvalidJob, s.Name, err)
		}
		act.Artifact = &coord
	}
	return act, nil
}
