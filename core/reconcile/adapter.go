package reconcile

import (
	"context"
)

// Adapter defines the interface a side of the reconciliation must implement.
// Each adapter knows how to load its full inventory into a Snapshot and how to
// apply create, update and delete primitives against its own store
// (e.g., an Infoblox appliance or the inventory database).
type Adapter interface {
	// Name returns the unique name of this adapter (e.g., "infoblox", "inventory").
	Name() string

	// Load enumerates every entity of every kind visible to this side.
	// It returns either a complete snapshot or an error; partial snapshots are never returned.
	// The engine wraps load errors in a FetchError.
	Load(ctx context.Context) (*Snapshot, error)

	// Create creates the entity described by rec and returns the identifier the side assigned
	// to it (e.g., a generated reference key). An empty string is allowed when the side does
	// not assign one.
	// Implementations should return a *ConflictError when the entity already exists.
	Create(ctx context.Context, rec Record) (string, error)

	// Update applies only the changed attributes to the entity addressed by rec.
	// The record is the target's own copy, so rec.Ref carries the side-specific reference.
	Update(ctx context.Context, rec Record, changes []FieldChange) error

	// Delete removes the entity addressed by rec.
	// Implementations should return ErrNotFound (possibly wrapped) when nothing matched;
	// the executor treats that as success.
	Delete(ctx context.Context, rec Record) error
}

// Spec bundles the two sides of a run and the kinds they exchange.
type Spec struct {
	// Schema lists the kinds to reconcile.
	Schema *Schema

	// Source is the side whose state is desired for this run.
	Source Adapter

	// Target is the side that receives operations.
	Target Adapter
}
