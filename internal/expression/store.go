// Package expression tracks the facial expression shown for each slot:
// classifier results, manual overrides, and locks that pin an expression
// against further classification.
package expression

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no override exists for the requested name.
var ErrNotFound = errors.New("expression: not found")

// Override is the stored expression state for one name.
type Override struct {
	// Name is the display name as last written.
	Name string

	// Expression is the current expression label.
	Expression string

	// Locked pins the expression: classifier results must not replace it.
	Locked bool

	// UpdatedAt is the time of the last write.
	UpdatedAt time.Time
}

// Store persists expression overrides. Names are matched case-insensitively;
// the display casing of the most recent write is preserved.
type Store interface {
	// Get returns the override for name, or [ErrNotFound].
	Get(ctx context.Context, name string) (Override, error)

	// Set upserts the expression for name. Setting an expression on a
	// locked entry is allowed; the lock only fences automatic updates.
	Set(ctx context.Context, name, expr string) error

	// SetLocked flips the lock on an existing entry. Returns [ErrNotFound]
	// when no entry exists for name.
	SetLocked(ctx context.Context, name string, locked bool) error

	// Delete removes the override for name. Returns [ErrNotFound] when no
	// entry exists.
	Delete(ctx context.Context, name string) error

	// List returns all overrides in unspecified order.
	List(ctx context.Context) ([]Override, error)
}
