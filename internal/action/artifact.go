package action

import (
	"errors"
	"fmt"
	"strings"
)

// Artifact is a repository coordinate in group:artifact:version form.
type Artifact struct {
	GroupID    string
	ArtifactID string
	Version    string
}

// ParseArtifact parses "group:artifact:version".
func ParseArtifact(s string) (Artifact, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return Artifact{}, fmt.Errorf("invalid artifact coordinate %q: expected group:artifact:version", s)
	}
	a := Artifact{GroupID: parts[0], ArtifactID: parts[1], Version: parts[2]}
	if err := a.Validate(); err != nil {
		return Artifact{}, fmt.Errorf("invalid artifact coordinate %q: %w", s, err)
	}
	return a, nil
}

func (a Artifact) Validate() error {
	if strings.TrimSpace(a.GroupID) == "" {
		return errors.New("artifact group is required")
	}
	if strings.TrimSpace(a.ArtifactID) == "" {
		return errors.New("artifact id is required")
	}
	if strings.TrimSpace(a.Version) == "" {
		return errors.New("artifact version is required")
	}
	return nil
}

func (a Artifact) String() string {
	return a.GroupID + ":" + a.ArtifactID + ":" + a.Version
}

// FileName is the file name prefix artifact files share, {artifact}-{version}.
func (a Artifact) FileName() string {
	return a.ArtifactID + "-" + a.Version
}

// Dir is the repository-relative directory holding the artifact files,
// maven style: group dots become path separators.
func (a Artifact) Dir() string {
	return strings.ReplaceAll(a.GroupID, ".", "/") + "/" + a.ArtifactID + "/" + a.Version
}
