// Package state defines the StateSource collaborator contract and the
// StateSampler/StateDiff machinery built on top of it (spec.md §4.3-4.4).
package state

import (
	"context"

	"apiconform/internal/model"
)

// Source is the external collaborator the engine samples persistent state
// through. Implementations must be concurrency-safe for reads (spec.md
// §4.3). apiconform never writes through this interface.
type Source interface {
	// EntityKinds enumerates every collection the store knows about.
	EntityKinds(ctx context.Context) ([]model.EntityKindDescriptor, error)

	// Count returns the number of rows/documents currently in kind.
	Count(ctx context.Context, kind string) (int, error)

	// ListAll returns every record of kind in a stable order (by key),
	// used to compute checksums. Records are opaque to the caller other
	// than being JSON-marshalable.
	ListAll(ctx context.Context, kind string) ([]interface{}, error)

	// RandomKey returns an opaque identifier for one existing record of
	// kind, or (nil, false) if the kind is empty.
	RandomKey(ctx context.Context, kind string) (interface{}, bool, error)
}
