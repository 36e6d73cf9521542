// Package discovery resolves an interface path and optional version range to
// the instances currently known to the environment.
//
// Discovery is best-effort. A node may only know part of the network, and an
// empty result is a valid answer rather than an error.
package discovery

import (
	"context"
	"fmt"

	"github.com/roach88/kobzar/internal/handle"
	"github.com/roach88/kobzar/internal/ident"
)

// InlineCapacity is the number of instances a result holds before growing.
const InlineCapacity = 16

// Finder is the environment side of discovery.
type Finder interface {
	FindPackageInstances(ctx context.Context, req *FindInstanceRequest) (Instances, error)
}

// FindInstanceRequest is a lazily executed discovery query. Building one has
// no effect on the environment until Find is called.
type FindInstanceRequest struct {
	path     ident.LocalPath
	versions ident.VersionRange
}

// New starts a request for implementers of path, any version.
func New(path ident.LocalPath) *FindInstanceRequest {
	return &FindInstanceRequest{path: path, versions: ident.AnyVersion()}
}

// WithVersion narrows the request to versions inside r.
func (r *FindInstanceRequest) WithVersion(v ident.VersionRange) *FindInstanceRequest {
	r.versions = v
	return r
}

// Path returns the requested interface path.
func (r *FindInstanceRequest) Path() ident.LocalPath { return r.path }

// Versions returns the accepted version range.
func (r *FindInstanceRequest) Versions() ident.VersionRange { return r.versions }

// Matches reports whether iface satisfies the request.
func (r *FindInstanceRequest) Matches(iface ident.Interface) bool {
	return r.path.Matches(iface.Path) && r.versions.Contains(iface.Version)
}

// Find runs the request against f.
func (r *FindInstanceRequest) Find(ctx context.Context, f Finder) (Instances, error) {
	if r.path.IsZero() {
		return nil, fmt.Errorf("discovery: %w", ident.ErrEmptyPath)
	}
	found, err := f.FindPackageInstances(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("find %s (%s): %w", r.path, r.versions, err)
	}
	if found == nil {
		found = NewInstances()
	}
	return found, nil
}

func (r *FindInstanceRequest) String() string {
	return r.path.String() + " " + r.versions.String()
}

// Instances holds one shared handle per discovered implementer.
// Callers own the handles and release them with Release.
type Instances []*handle.Shared[ident.InstanceID]

// NewInstances returns an empty result with InlineCapacity room.
func NewInstances() Instances {
	return make(Instances, 0, InlineCapacity)
}

// Uids returns the instance uids in result order.
func (in Instances) Uids() []ident.Uid {
	out := make([]ident.Uid, len(in))
	for i, h := range in {
		out[i] = h.Uid()
	}
	return out
}

// IDs returns the instance records in result order.
func (in Instances) IDs() []ident.InstanceID {
	out := make([]ident.InstanceID, len(in))
	for i, h := range in {
		out[i] = h.Value()
	}
	return out
}

// Release drops every handle in the result.
func (in Instances) Release() {
	for _, h := range in {
		h.Release()
	}
}
