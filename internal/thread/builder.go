package thread

import (
	"context"
	"fmt"

	"github.com/roach88/kobzar/internal/ident"
)

// Builder describes a thread to create.
type Builder struct {
	// Path is where the new thread lives.
	Path ident.LocalPath
	Type Type

	Publicity   Publicity
	Performance PerformancePolicy

	// Implements is the interface the new thread must implement.
	Implements ident.Interface

	PowersaveNotify        bool
	PowersaveDisableNotify bool
}

// Validate checks the builder before it reaches the environment.
func (b *Builder) Validate() error {
	if b.Path.IsZero() {
		return fmt.Errorf("thread builder: %w", ident.ErrEmptyPath)
	}
	if b.Implements.IsZero() {
		return fmt.Errorf("thread builder: %w", ident.ErrInvalidIface)
	}
	return b.Type.Validate()
}

// Build asks the environment to create the thread. The new thread starts
// Paused and is owned by the caller. Creation failures are *BuildError.
func (b *Builder) Build(ctx context.Context, ctl Controller) (*OwnedThread, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return ctl.CreateThread(ctx, b)
}
