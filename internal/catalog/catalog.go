// Package catalog implements the venue-catalog collaborators Scout queries
// for candidate venues by activity and location. Dedup/merge logic lives in
// internal/planner (planner.mergeVenues) to keep
// the dependency one-directional: catalog depends on planner's types, not
// the reverse.
package catalog

import (
	"context"

	"github.com/Aahiro/deerhacks/internal/planner"
)

// Provider satisfies planner.CatalogProvider structurally; kept as a named
// type here so this package's constructors can return a concrete documented
// contract without importing planner.CatalogProvider itself.
type Provider interface {
	// Name identifies the catalog for logging/source-tagging.
	Name() string

	// Search looks up venues by activity and location. Implementations
	// must respect ctx cancellation/deadline and return a wrapped error
	// (never panic) on failure; Scout treats any error as "this catalog
	// produced nothing" rather than failing the run.
	Search(ctx context.Context, activity, location string) ([]planner.VenueRecord, error)
}
