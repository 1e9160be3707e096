package schema

import "context"

// Repository persists the single current schema specification.
type Repository interface {
	// GetSpecification loads the current specification. It returns
	// dberr.ErrNotFound when no specification has been stored yet.
	GetSpecification(context context.Context) (Spec, error)

	// SaveSpecification stores spec, guarded by optimistic concurrency:
	// the write only succeeds while the stored version still equals
	// expectedVersion. A lost race returns dberr.ErrConflict.
	SaveSpecification(context context.Context, spec Spec, expectedVersion int) error
}
