package planner

import (
	"context"
	"math"
	"strings"
)

// CatalogProvider is the venue-catalog collaborator contract Scout depends
// on: search by activity and location, asynchronously, may fail. Declared
// here rather than in the catalog package so that package can depend on
// planner's types without planner depending back on it; catalog's concrete
// providers satisfy this structurally.
type CatalogProvider interface {
	Name() string

	// Search looks up venues by activity and location. Implementations
	// must respect ctx cancellation/deadline and return a wrapped error
	// (never panic) on failure; Scout treats any error as "this catalog
	// produced nothing" rather than failing the run.
	Search(ctx context.Context, activity, location string) ([]VenueRecord, error)
}

const maxCandidateVenues = 10

// earthRadiusMeters is used by haversine distance checks in mergeVenues.
const earthRadiusMeters = 6371000.0

// mergeVenues combines catalog_a then catalog_b results, deduplicates by
// normalized-name + coarse-coordinate proximity (≈75m), keeping the
// higher-rated record on a collision, and caps the result at 10 entries
// while preserving catalog_a-first ordering.
func mergeVenues(catalogA, catalogB []VenueRecord) []VenueRecord {
	combined := make([]VenueRecord, 0, len(catalogA)+len(catalogB))
	combined = append(combined, catalogA...)
	combined = append(combined, catalogB...)

	deduped := make([]VenueRecord, 0, len(combined))
	for _, candidate := range combined {
		if idx := findDuplicateVenue(deduped, candidate); idx >= 0 {
			if candidate.Rating > deduped[idx].Rating {
				deduped[idx] = candidate
			}
			continue
		}
		deduped = append(deduped, candidate)
	}

	if len(deduped) > maxCandidateVenues {
		deduped = deduped[:maxCandidateVenues]
	}
	return deduped
}

func findDuplicateVenue(existing []VenueRecord, candidate VenueRecord) int {
	for i, e := range existing {
		if sameVenue(e, candidate) {
			return i
		}
	}
	return -1
}

func sameVenue(a, b VenueRecord) bool {
	if !strings.EqualFold(normalizeVenueName(a.Name), normalizeVenueName(b.Name)) {
		return false
	}
	return haversineMeters(a.Lat, a.Lng, b.Lat, b.Lng) <= 75.0
}

func normalizeVenueName(name string) string {
	return strings.TrimSpace(strings.ToLower(name))
}

// haversineMeters returns the great-circle distance between two lat/lng
// points in meters.
func haversineMeters(lat1, lng1, lat2, lng2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}
