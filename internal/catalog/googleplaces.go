package catalog

import (
	"context"
	"fmt"

	"googlemaps.github.io/maps"

	"github.com/Aahiro/deerhacks/internal/planner"
)

// GooglePlaces is the catalog_a provider: Google's Places API via a text
// search on "<activity> in <location>", enriched with up to 3 photo
// references per result for VibeMatcher's multimodal prompt.
type GooglePlaces struct {
	client *maps.Client
	apiKey string
}

// NewGooglePlaces builds a GooglePlaces provider from an API key.
func NewGooglePlaces(apiKey string) (*GooglePlaces, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create google maps client: %w", err)
	}
	return &GooglePlaces{client: client, apiKey: apiKey}, nil
}

// Name implements Provider.
func (g *GooglePlaces) Name() string { return string(planner.SourceCatalogA) }

const maxPhotosPerVenue = 3

// Search implements Provider via a Google Places text search.
func (g *GooglePlaces) Search(ctx context.Context, activity, location string) ([]planner.VenueRecord, error) {
	req := &maps.TextSearchRequest{Query: activity + " in " + location}

	resp, err := g.client.TextSearch(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("google places text search: %w", err)
	}

	records := make([]planner.VenueRecord, 0, len(resp.Results))
	for _, r := range resp.Results {
		records = append(records, planner.VenueRecord{
			VenueID:     "catalog_a:" + r.PlaceID,
			Name:        r.Name,
			Lat:         r.Geometry.Location.Lat,
			Lng:         r.Geometry.Location.Lng,
			Rating:      float64(r.Rating),
			ReviewCount: r.UserRatingsTotal,
			Photos:      g.photoURLs(r.Photos),
			Category:    primaryType(r.Types),
			Source:      planner.SourceCatalogA,
			PriceRange:  priceLevelToRange(r.PriceLevel),
			GooglePrice: priceLevelToRange(r.PriceLevel),
		})
	}

	return records, nil
}

func primaryType(types []string) string {
	if len(types) == 0 {
		return ""
	}
	return types[0]
}

// priceLevelToRange maps Google's 0-4 price_level to the four-band scale.
// Google's 0 ("free") has no equivalent band and is left unknown.
func priceLevelToRange(level int) planner.PriceRange {
	switch level {
	case 1:
		return planner.Price1
	case 2:
		return planner.Price2
	case 3:
		return planner.Price3
	case 4:
		return planner.Price4
	default:
		return ""
	}
}

// photoURLs resolves up to maxPhotosPerVenue photo references into fetchable
// Places Photo URLs; VibeMatcher fetches these directly.
func (g *GooglePlaces) photoURLs(photos []maps.Photo) []string {
	urls := make([]string, 0, maxPhotosPerVenue)
	for i, p := range photos {
		if i >= maxPhotosPerVenue {
			break
		}
		if p.PhotoReference == "" {
			continue
		}
		urls = append(urls, fmt.Sprintf(
			"https://maps.googleapis.com/maps/api/place/photo?photoreference=%s&maxwidth=800&key=%s",
			p.PhotoReference, g.apiKey,
		))
	}
	return urls
}
