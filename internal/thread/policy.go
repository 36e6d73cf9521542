package thread

import (
	"fmt"

	"github.com/roach88/kobzar/internal/ident"
)

// PerformancePolicy is how CPU time is allocated to a thread.
// Policies are ordered: Normal < Performance.
type PerformancePolicy uint8

const (
	// Normal makes no special request.
	Normal PerformancePolicy = iota
	// Performance requests the best performance available.
	Performance
)

func (p PerformancePolicy) String() string {
	switch p {
	case Normal:
		return "normal"
	case Performance:
		return "performance"
	}
	return fmt.Sprintf("policy(%d)", p)
}

// ParsePerformancePolicy parses "normal" or "performance". Empty is Normal.
func ParsePerformancePolicy(s string) (PerformancePolicy, error) {
	switch s {
	case "", "normal":
		return Normal, nil
	case "performance":
		return Performance, nil
	}
	return Normal, fmt.Errorf("thread: unknown performance policy %q", s)
}

// Publicity defines who may initiate communication with a thread and who
// may discover it.
type Publicity uint8

const (
	// Public threads accept any initiator.
	Public Publicity = iota
	// Package threads accept initiators from the same or a descendant package.
	Package
	// Descendant threads accept initiators from descendant packages only.
	Descendant
	// Private threads accept no initiators.
	Private
)

func (p Publicity) String() string {
	switch p {
	case Public:
		return "public"
	case Package:
		return "package"
	case Descendant:
		return "descendant"
	case Private:
		return "private"
	}
	return fmt.Sprintf("publicity(%d)", p)
}

// ParsePublicity parses the String form. Empty is Public.
func ParsePublicity(s string) (Publicity, error) {
	switch s {
	case "", "public":
		return Public, nil
	case "package":
		return Package, nil
	case "descendant":
		return Descendant, nil
	case "private":
		return Private, nil
	}
	return Public, fmt.Errorf("thread: unknown publicity %q", s)
}

// Admits reports whether a thread at caller may initiate communication with
// a thread at target under publicity p. A thread's package is its path
// without the last segment. Paths are not unique, so a thread reaching
// itself is decided by uid and never passes through here.
func (p Publicity) Admits(target, caller ident.Path) bool {
	targetPkg, callerPkg := target.Parent(), caller.Parent()
	switch p {
	case Public:
		return true
	case Package:
		return callerPkg.HasPrefix(targetPkg)
	case Descendant:
		return callerPkg != targetPkg && callerPkg.HasPrefix(targetPkg)
	}
	return false
}
