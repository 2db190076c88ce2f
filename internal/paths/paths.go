// Package paths composes the staging paths shared by the coordinator, the
// staging uploader and the worker-side fetcher. Paths are joined with a
// literal "/" and never cleaned, so every component derives byte-identical
// strings from the same inputs.
package paths

import (
	"net/url"
	"path"
	"strings"

	"github.com/roadan/incubator-amaterasu/internal/action"
)

// RepoSourceDir is where pre-staged sources live relative to the worker root.
const RepoSourceDir = "repo/src"

var actionFiles = [...]string{"env.yaml", "runtime.yaml", "datasets.yaml"}

// ActionFiles returns the standard per-action resource file names in their
// fixed order.
func ActionFiles() []string {
	files := make([]string, len(actionFiles))
	copy(files, actionFiles[:])
	return files
}

// ActionFile returns "{jobID}/{action}/{name}".
func ActionFile(jobID string, act action.Action, name string) string {
	return jobID + "/" + act.Name + "/" + name
}

// StandardResourcePaths returns the paths of env.yaml, runtime.yaml and
// datasets.yaml for the action, in that order.
func StandardResourcePaths(jobID string, act action.Action) []string {
	out := make([]string, 0, len(actionFiles))
	for _, f := range actionFiles {
		out = append(out, ActionFile(jobID, act, f))
	}
	return out
}

// ActionResourcePaths returns the standard resource paths followed by the
// runner-supplied user resources. Fetchers enumerate resources in this order.
func ActionResourcePaths(jobID string, act action.Action, userResources []string) []string {
	out := make([]string, 0, len(actionFiles)+len(userResources))
	out = append(out, StandardResourcePaths(jobID, act)...)
	return append(out, userResources...)
}

// SourceStagingPath is where a downloadable source is staged for the action.
func SourceStagingPath(jobID string, act action.Action) string {
	return ActionFile(jobID, act, SourceName(act.Src))
}

// defaultSourceName names URL sources whose path has no file name.
const defaultSourceName = "source"

// SourceName is the file name src is staged under: the last path segment
// for URL sources, src itself otherwise.
func SourceName(src string) string {
	if !strings.Contains(src, "://") {
		return src
	}
	u, err := url.Parse(src)
	if err != nil {
		return defaultSourceName
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == ".." {
		return defaultSourceName
	}
	return name
}

// RepoSourcePath is the conventional location of a pre-staged source.
func RepoSourcePath(src string) string {
	return RepoSourceDir + "/" + src
}
