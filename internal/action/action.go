package action

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrUnsupportedConfiguration reports an action or runner configuration that
// cannot be dispatched as declared.
var ErrUnsupportedConfiguration = errors.New("unsupported configuration")

// Action describes one unit of work within a job. It is built by the job
// submission layer and treated as read-only afterwards.
type Action struct {
	ID       string
	Name     string
	Src      string
	Repo     string
	Artifact *Artifact

	GroupID  string // framework group, e.g. "spark"
	TypeID   string // runner type, e.g. "pyspark"
	Config   string
	Packages []string
	Exports  map[string]string
}

// HasArtifact reports whether the executable comes from an artifact repository.
func (a Action) HasArtifact() bool {
	return a.Artifact != nil
}

// Entrypoint is the file name a runner launches: the artifact file for
// artifact-based actions, Src otherwise.
func (a Action) Entrypoint() string {
	if a.HasArtifact() {
		return a.Artifact.FileName()
	}
	return a.Src
}

// Validate checks the descriptor for combinations no resolution path can
// serve. It only inspects strings; Src is never classified as a URL here.
func (a Action) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("%w: action name is required", ErrUnsupportedConfiguration)
	}
	if strings.Contains(a.Name, "/") {
		return fmt.Errorf("%w: action name %q must not contain '/'", ErrUnsupportedConfiguration, a.Name)
	}

	if a.HasArtifact() {
		if strings.TrimSpace(a.Repo) == "" {
			return fmt.Errorf("%w: action %q has an artifact but no repo", ErrUnsupportedConfiguration, a.Name)
		}
		if err := a.Artifact.Validate(); err != nil {
			return fmt.Errorf("%w: action %q: %v", ErrUnsupportedConfiguration, a.Name, err)
		}
		return nil
	}

	src := strings.TrimSpace(a.Src)
	if src == "" {
		return fmt.Errorf("%w: action %q has neither artifact nor src", ErrUnsupportedConfiguration, a.Name)
	}
	if strings.Contains(src, "://") {
		return nil
	}
	if path.IsAbs(src) {
		return fmt.Errorf("%w: action %q src %q must be relative", ErrUnsupportedConfiguration, a.Name, a.Src)
	}
	if cleaned := path.Clean(src); cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return fmt.Errorf("%w: action %q src %q escapes the repo", ErrUnsupportedConfiguration, a.Name, a.Src)
	}
	return nil
}
