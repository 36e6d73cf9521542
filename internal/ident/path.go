package ident

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// MaxSegments is the fixed number of slots in a path.
const MaxSegments = 8

// Separator joins path segments in the textual form.
const Separator = "/"

// Path names a class of resources with up to 8 segments.
//
// Unused slots are empty. Equality is slot-wise over all 8 slots, which
// is exactly Go array equality, so Path works with == and as a map key.
// Segments are NFC-normalized on construction so visually identical text
// always compares equal.
//
// Paths are issued by the environment. NewPath exists for environment
// implementations; client code builds queries with LocalPath instead.
type Path struct {
	nodes [MaxSegments]string
}

// NewPath builds a Path from segments.
// Returns ErrEmptyPath for no segments, ErrTooManySegments for more than 8,
// ErrEmptySegment if any segment is blank.
func NewPath(segs ...string) (Path, error) {
	nodes, err := buildNodes(segs)
	if err != nil {
		return Path{}, err
	}
	return Path{nodes: nodes}, nil
}

// ParsePath parses "a/b/c" into a Path.
func ParsePath(s string) (Path, error) {
	return NewPath(splitPath(s)...)
}

// MustPath is like ParsePath but panics on error.
// Use only in tests or with literal paths known to be valid.
func MustPath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Segment returns the segment in slot i, or "" for an unused slot.
func (p Path) Segment(i int) string {
	if i < 0 || i >= MaxSegments {
		return ""
	}
	return p.nodes[i]
}

// Segments returns the used segments in order.
func (p Path) Segments() []string {
	return usedNodes(p.nodes)
}

// Len returns the number of used segments.
func (p Path) Len() int {
	return len(usedNodes(p.nodes))
}

// IsZero reports whether p has no segments.
func (p Path) IsZero() bool {
	return p == Path{}
}

// HasPrefix reports whether every segment of prefix matches the
// corresponding leading segment of p.
func (p Path) HasPrefix(prefix Path) bool {
	return hasPrefix(p.nodes, prefix.nodes)
}

// Parent returns p without its last segment. The parent of a single-segment
// path is the zero Path.
func (p Path) Parent() Path {
	n := p.Len()
	if n == 0 {
		return p
	}
	p.nodes[n-1] = ""
	return p
}

func (p Path) String() string {
	return strings.Join(p.Segments(), Separator)
}

// LocalPath is a caller-owned path used to build queries.
//
// It carries the same 8 slots as Path and compares the same way, but it may
// be built from arbitrary caller strings.
type LocalPath struct {
	nodes [MaxSegments]string
}

// LocalPathFrom copies an environment-issued Path into a LocalPath.
func LocalPathFrom(p Path) LocalPath {
	return LocalPath{nodes: p.nodes}
}

// NewLocalPath builds a LocalPath with the same validation as NewPath.
func NewLocalPath(segs ...string) (LocalPath, error) {
	nodes, err := buildNodes(segs)
	if err != nil {
		return LocalPath{}, err
	}
	return LocalPath{nodes: nodes}, nil
}

// ParseLocalPath parses "a/b/c" into a LocalPath.
func ParseLocalPath(s string) (LocalPath, error) {
	return NewLocalPath(splitPath(s)...)
}

// MustLocalPath is like ParseLocalPath but panics on error.
func MustLocalPath(s string) LocalPath {
	lp, err := ParseLocalPath(s)
	if err != nil {
		panic(err)
	}
	return lp
}

// Equal reports slot-wise equality over all 8 slots.
func (lp LocalPath) Equal(other LocalPath) bool {
	return lp.nodes == other.nodes
}

// Matches reports whether lp names exactly the path p.
func (lp LocalPath) Matches(p Path) bool {
	return lp.nodes == p.nodes
}

// Segment returns the segment in slot i, or "" for an unused slot.
func (lp LocalPath) Segment(i int) string {
	if i < 0 || i >= MaxSegments {
		return ""
	}
	return lp.nodes[i]
}

// Segments returns the used segments in order.
func (lp LocalPath) Segments() []string {
	return usedNodes(lp.nodes)
}

// IsZero reports whether lp has no segments.
func (lp LocalPath) IsZero() bool {
	return lp == LocalPath{}
}

func (lp LocalPath) String() string {
	return strings.Join(lp.Segments(), Separator)
}

func splitPath(s string) []string {
	s = strings.Trim(strings.TrimSpace(s), Separator)
	if s == "" {
		return nil
	}
	return strings.Split(s, Separator)
}

func buildNodes(segs []string) ([MaxSegments]string, error) {
	var nodes [MaxSegments]string
	if len(segs) == 0 {
		return nodes, ErrEmptyPath
	}
	if len(segs) > MaxSegments {
		return nodes, fmt.Errorf("%w: got %d", ErrTooManySegments, len(segs))
	}
	for i, seg := range segs {
		seg = norm.NFC.String(strings.TrimSpace(seg))
		if seg == "" {
			return nodes, fmt.Errorf("%w at slot %d", ErrEmptySegment, i)
		}
		if strings.Contains(seg, Separator) {
			return nodes, fmt.Errorf("ident: segment %q contains %q", seg, Separator)
		}
		nodes[i] = seg
	}
	return nodes, nil
}

func usedNodes(nodes [MaxSegments]string) []string {
	out := make([]string, 0, MaxSegments)
	for _, n := range nodes {
		if n == "" {
			break
		}
		out = append(out, n)
	}
	return out
}

func hasPrefix(nodes, prefix [MaxSegments]string) bool {
	for i := range prefix {
		if prefix[i] == "" {
			return true
		}
		if nodes[i] != prefix[i] {
			return false
		}
	}
	return true
}
