package artifacts

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// TieBreak picks one artifact out of the candidates a store returned.
// Candidates are never empty when a TieBreak is called by the locator.
type TieBreak func(candidates []Artifact) (Artifact, error)

var errNoCandidates = errors.New("no artifact candidates")

// First keeps the store order and takes the first candidate.
func First(candidates []Artifact) (Artifact, error) {
	if len(candidates) == 0 {
		return Artifact{}, errNoCandidates
	}
	return candidates[0], nil
}

// HighestVersion takes the candidate with the greatest version. Equal
// versions keep store order.
func HighestVersion(candidates []Artifact) (Artifact, error) {
	if len(candidates) == 0 {
		return Artifact{}, errNoCandidates
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if CompareVersions(c.Coordinate.Version, best.Coordinate.Version) > 0 {
			best = c
		}
	}
	return best, nil
}

// Newest takes the most recently modified candidate.
func Newest(candidates []Artifact) (Artifact, error) {
	if len(candidates) == 0 {
		return Artifact{}, errNoCandidates
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.ModTime.After(best.ModTime) {
			best = c
		}
	}
	return best, nil
}

// Unique refuses to choose between several candidates.
func Unique(candidates []Artifact) (Artifact, error) {
	switch len(candidates) {
	case 0:
		return Artifact{}, errNoCandidates
	case 1:
		return candidates[0], nil
	default:
		paths := make([]string, len(candidates))
		for i, c := range candidates {
			paths[i] = c.Path
		}
		return Artifact{}, fmt.Errorf("%w: %d candidates: %s", ErrAmbiguousArtifact, len(candidates), strings.Join(paths, ", "))
	}
}

// ParseTieBreak maps a configuration name to a strategy. The empty name
// selects First.
func ParseTieBreak(name string) (TieBreak, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "first":
		return First, nil
	case "highest-version":
		return HighestVersion, nil
	case "newest":
		return Newest, nil
	case "unique":
		return Unique, nil
	default:
		return nil, fmt.Errorf("unknown tie-break %q", name)
	}
}

// CompareVersions compares dotted versions segment by segment, numerically
// when both segments are numbers and lexically otherwise. A version that
// runs out of segments first is the lower one.
func CompareVersions(a, b string) int {
	as := splitVersion(a)
	bs := splitVersion(b)
	for i := 0; i < len(as) && i < len(bs); i++ {
		if c := compareSegment(as[i], bs[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(as) < len(bs):
		return -1
	case len(as) > len(bs):
		return 1
	default:
		return 0
	}
}

func splitVersion(v string) []string {
	return strings.FieldsFunc(v, func(r rune) bool { return r == '.' || r == '-' || r == '_' })
}

func compareSegment(a, b string) int {
	an, aErr := strconv.ParseUint(a, 10, 64)
	bn, bErr := strconv.ParseUint(b, 10, 64)
	if aErr == nil && bErr == nil {
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a, b)
}
