package artifacts

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"

	"github.com/roadan/incubator-amaterasu/internal/action"
)

// LatestVersion asks a backend for every published version of a coordinate.
const LatestVersion = "latest"

var (
	// ErrUnknownRepo is returned when an action names a repository id that
	// has no registered backend.
	ErrUnknownRepo = errors.New("unknown artifact repository")

	// ErrAmbiguousArtifact is returned by the unique tie-break when a query
	// matches more than one artifact file.
	ErrAmbiguousArtifact = errors.New("ambiguous artifact")
)

// Artifact is a local copy of a repository artifact file.
type Artifact struct {
	Coordinate action.Artifact // Version is the concrete version found
	Repo       string
	Path       string
	Size       int64
	ModTime    time.Time
}

// Store resolves a coordinate against a list of repositories, scoped to a
// job, and returns the matching local artifacts in repository order.
type Store interface {
	LocalArtifacts(ctx context.Context, repos []string, jobID string, coord action.Artifact) ([]Artifact, error)
}

// Backend serves a single artifact repository.
type Backend interface {
	Fetch(ctx context.Context, jobID string, coord action.Artifact) ([]Artifact, error)
}

var metadataSuffixes = []string{".sha1", ".sha256", ".sha512", ".md5", ".asc", ".pom"}

// matchFile reports whether a file inside a version directory belongs to the
// coordinate for that version. Checksums and metadata files never match.
func matchFile(coord action.Artifact, version, name string) bool {
	name = path.Base(name)
	if !strings.HasPrefix(name, coord.ArtifactID+"-"+version) {
		return false
	}
	for _, suffix := range metadataSuffixes {
		if strings.HasSuffix(name, suffix) {
			return false
		}
	}
	return true
}

// artifactDir is the repository-relative directory listing the versions of
// a coordinate.
func artifactDir(coord action.Artifact) string {
	return strings.ReplaceAll(coord.GroupID, ".", "/") + "/" + coord.ArtifactID
}
