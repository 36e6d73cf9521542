package ident

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is a major.minor.patch triple with a total order.
type Version struct {
	Major uint32 `json:"major" yaml:"major"`
	Minor uint32 `json:"minor" yaml:"minor"`
	Patch uint32 `json:"patch" yaml:"patch"`
}

// V is shorthand for Version{major, minor, patch}.
func V(major, minor, patch uint32) Version {
	return Version{Major: major, Minor: minor, Patch: patch}
}

// Compare returns -1, 0 or 1 ordering v against other field by field.
func (v Version) Compare(other Version) int {
	for _, pair := range [3][2]uint32{
		{v.Major, other.Major},
		{v.Minor, other.Minor},
		{v.Patch, other.Patch},
	} {
		if pair[0] < pair[1] {
			return -1
		}
		if pair[0] > pair[1] {
			return 1
		}
	}
	return 0
}

// Less reports whether v sorts before other.
func (v Version) Less(other Version) bool {
	return v.Compare(other) < 0
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// ParseVersion parses "1.2.3". A leading "v" is accepted.
func ParseVersion(s string) (Version, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(s), "v")
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("%w: %q", ErrInvalidVersion, s)
	}
	var nums [3]uint32
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return Version{}, fmt.Errorf("%w: %q: %v", ErrInvalidVersion, s, err)
		}
		nums[i] = uint32(n)
	}
	return V(nums[0], nums[1], nums[2]), nil
}

// VersionRange constrains versions with an optional inclusive lower bound
// and an optional exclusive upper bound. The zero value matches everything.
type VersionRange struct {
	min, max       Version
	hasMin, hasMax bool
}

// AnyVersion matches every version.
func AnyVersion() VersionRange {
	return VersionRange{}
}

// Exactly matches only v.
func Exactly(v Version) VersionRange {
	next := v
	next.Patch++
	if next.Patch == 0 {
		// Patch overflowed; bump minor so the bound stays exclusive.
		next.Minor++
	}
	return VersionRange{min: v, max: next, hasMin: true, hasMax: true}
}

// AtLeast matches v and everything above it.
func AtLeast(v Version) VersionRange {
	return VersionRange{min: v, hasMin: true}
}

// Below matches everything strictly below v.
func Below(v Version) VersionRange {
	return VersionRange{max: v, hasMax: true}
}

// Between matches lo <= x < hi.
func Between(lo, hi Version) VersionRange {
	return VersionRange{min: lo, max: hi, hasMin: true, hasMax: true}
}

// Compatible matches versions with the same major that are not older than v.
func Compatible(v Version) VersionRange {
	return Between(v, V(v.Major+1, 0, 0))
}

// Contains reports whether v falls inside the range.
func (r VersionRange) Contains(v Version) bool {
	if r.hasMin && v.Less(r.min) {
		return false
	}
	if r.hasMax && !v.Less(r.max) {
		return false
	}
	return true
}

// Min returns the lower bound, if any.
func (r VersionRange) Min() (Version, bool) {
	return r.min, r.hasMin
}

// Max returns the exclusive upper bound, if any.
func (r VersionRange) Max() (Version, bool) {
	return r.max, r.hasMax
}

// IsEmpty reports whether no version can satisfy the range.
func (r VersionRange) IsEmpty() bool {
	return r.hasMin && r.hasMax && !r.min.Less(r.max)
}

func (r VersionRange) String() string {
	switch {
	case r.hasMin && r.hasMax:
		return fmt.Sprintf(">=%s <%s", r.min, r.max)
	case r.hasMin:
		return ">=" + r.min.String()
	case r.hasMax:
		return "<" + r.max.String()
	}
	return "*"
}

// ParseVersionRange parses the textual forms:
//
//	*                  any version
//	1.2.3  =1.2.3      exactly
//	^1.2.3             compatible (same major, >= 1.2.3)
//	>=1.2.3            at least
//	<2.0.0             below
//	>=1.0.0 <2.0.0     between
//
// Only >= and < may be combined.
func ParseVersionRange(s string) (VersionRange, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" {
		return AnyVersion(), nil
	}
	toks := strings.Fields(s)
	var r VersionRange
	for _, tok := range toks {
		var err error
		switch {
		case strings.HasPrefix(tok, ">="):
			r.min, err = ParseVersion(tok[2:])
			r.hasMin = true
		case strings.HasPrefix(tok, "<"):
			r.max, err = ParseVersion(tok[1:])
			r.hasMax = true
		case len(toks) > 1:
			return VersionRange{}, fmt.Errorf("%w: %q: %q cannot be combined with other bounds", ErrInvalidRange, s, tok)
		case strings.HasPrefix(tok, "^"):
			var v Version
			v, err = ParseVersion(tok[1:])
			r = Compatible(v)
		default:
			var v Version
			v, err = ParseVersion(strings.TrimPrefix(tok, "="))
			r = Exactly(v)
		}
		if err != nil {
			return VersionRange{}, fmt.Errorf("%w: %q: %v", ErrInvalidRange, s, err)
		}
	}
	if r.IsEmpty() {
		return VersionRange{}, fmt.Errorf("%w: %q matches nothing", ErrInvalidRange, s)
	}
	return r, nil
}
