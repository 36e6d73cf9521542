package ident

import (
	"fmt"
	"strings"
)

// Interface identifies a versioned contract a thread can implement.
// Equality requires both the path and the version to match.
type Interface struct {
	Path    Path
	Version Version
}

// NewInterface pairs a path with a version.
func NewInterface(p Path, v Version) Interface {
	return Interface{Path: p, Version: v}
}

// ParseInterface parses "a/b@1.2.3".
func ParseInterface(s string) (Interface, error) {
	path, ver, ok := strings.Cut(strings.TrimSpace(s), "@")
	if !ok {
		return Interface{}, fmt.Errorf("%w: %q: missing @version", ErrInvalidIface, s)
	}
	p, err := ParsePath(path)
	if err != nil {
		return Interface{}, fmt.Errorf("%w: %q: %v", ErrInvalidIface, s, err)
	}
	v, err := ParseVersion(ver)
	if err != nil {
		return Interface{}, fmt.Errorf("%w: %q: %v", ErrInvalidIface, s, err)
	}
	return Interface{Path: p, Version: v}, nil
}

// MustInterface is like ParseInterface but panics on error.
// Use only in tests or with literals known to be valid.
func MustInterface(s string) Interface {
	i, err := ParseInterface(s)
	if err != nil {
		panic(err)
	}
	return i
}

// IsZero reports whether i is unset.
func (i Interface) IsZero() bool {
	return i.Path.IsZero()
}

func (i Interface) String() string {
	return i.Path.String() + "@" + i.Version.String()
}

// InstanceID identifies one concrete implementer of an interface currently
// known to the network.
type InstanceID struct {
	Interface Interface
	Uid       Uid
}

// Path returns the path of the implemented interface.
func (id InstanceID) Path() Path {
	return id.Interface.Path
}

// Version returns the version of the implemented interface.
func (id InstanceID) Version() Version {
	return id.Interface.Version
}

func (id InstanceID) String() string {
	return id.Interface.String() + "/" + id.Uid.Short()
}
