package catalog

import (
	"context"

	"github.com/Aahiro/deerhacks/internal/planner"
)

// Mock is a deterministic Provider test double: it returns Records
// verbatim, or Err if set, regardless of the query.
type Mock struct {
	NameVal string
	Records []planner.VenueRecord
	Err     error
}

// Name implements Provider.
func (m *Mock) Name() string { return m.NameVal }

// Search implements Provider.
func (m *Mock) Search(ctx context.Context, activity, location string) ([]planner.VenueRecord, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Records, nil
}
