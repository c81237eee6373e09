package project

import (
	"context"
	"fmt"

	"github.com/hexlight/docuflow/constraint"
)

// Inspector answers "which document types does this project have, and
// where do they live". Implementations must return errors on storage
// failures rather than masking them with empty state.
type Inspector interface {
	Inspect(ctx context.Context, projectID int) (*State, error)
}

// StoreInspector derives project state from the KV file store.
type StoreInspector struct {
	catalog *constraint.Catalog
	store   *Store
}

// NewInspector creates an Inspector over the given store.
func NewInspector(catalog *constraint.Catalog, store *Store) *StoreInspector {
	return &StoreInspector{catalog: catalog, store: store}
}

// Inspect reads the project's records and folds them into State.
func (i *StoreInspector) Inspect(ctx context.Context, projectID int) (*State, error) {
	records, err := i.store.ListRecords(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("inspect project %d: %w", projectID, err)
	}
	return DeriveState(i.catalog, projectID, records), nil
}
