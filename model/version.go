package model

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Version wraps an ordered version string, e.g. "v1.2.3". Citations,
// drafts, and messages are all keyed in part by a Version.
type Version struct {
	v *semver.Version
}

// ParseVersion parses a version string such as "1.2.3" or "v1.2.3".
func ParseVersion(s string) (Version, error) {
	v, err := semver.NewVersion(s)
	if err != nil {
		return Version{}, fmt.Errorf("model: invalid version %q: %w", s, err)
	}
	return Version{v: v}, nil
}

// MustVersion parses s and panics on error. Intended for literals in tests
// and constructors, not for untrusted input.
func MustVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the canonical "vMAJOR.MINOR.PATCH" form.
func (v Version) String() string {
	if v.v == nil {
		return ""
	}
	return "v" + v.v.String()
}

// IsZero reports whether v was never assigned.
func (v Version) IsZero() bool { return v.v == nil }

// Next returns the next monotonic version by bumping the patch component.
func (v Version) Next() Version {
	if v.v == nil {
		return MustVersion("0.0.1")
	}
	n := v.v.IncPatch()
	return Version{v: &n}
}

// Compare orders v against other; negative/zero/positive like strings.Compare.
func (v Version) Compare(other Version) int {
	if v.v == nil || other.v == nil {
		return 0
	}
	return v.v.Compare(other.v)
}

// Equal reports whether v and other denote the same version.
func (v Version) Equal(other Version) bool {
	return v.Compare(other) == 0 && v.v != nil && other.v != nil
}
