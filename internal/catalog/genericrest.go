package catalog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Aahiro/deerhacks/graph/tool"
	"github.com/Aahiro/deerhacks/internal/planner"
)

// GenericREST is the catalog_b provider: a venue search against any REST
// API shaped like {results: [{id, name, lat, lng, rating, review_count,
// photos, category, website, price_range}]}, via the shared tool.HTTPTool
// rather than a dedicated SDK.
type GenericREST struct {
	BaseURL string
	APIKey  string
	http    *tool.HTTPTool
}

// NewGenericREST builds a GenericREST provider against baseURL.
func NewGenericREST(baseURL, apiKey string) *GenericREST {
	return &GenericREST{BaseURL: baseURL, APIKey: apiKey, http: tool.NewHTTPTool()}
}

// Name implements Provider.
func (g *GenericREST) Name() string { return string(planner.SourceCatalogB) }

type restVenue struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Lat         float64  `json:"lat"`
	Lng         float64  `json:"lng"`
	Rating      float64  `json:"rating"`
	ReviewCount int      `json:"review_count"`
	Photos      []string `json:"photos"`
	Category    string   `json:"category"`
	Website     string   `json:"website"`
	PriceRange  string   `json:"price_range"`
}

type restSearchResponse struct {
	Results []restVenue `json:"results"`
}

// Search implements Provider over the configured REST catalog.
func (g *GenericREST) Search(ctx context.Context, activity, location string) ([]planner.VenueRecord, error) {
	url := fmt.Sprintf("%s/search?q=%s&location=%s&apikey=%s", g.BaseURL, activity, location, g.APIKey)

	result, err := g.http.Call(ctx, map[string]interface{}{
		"method": "GET",
		"url":    url,
	})
	if err != nil {
		return nil, fmt.Errorf("catalog_b search request: %w", err)
	}

	statusCode, _ := result["status_code"].(int)
	if statusCode != 0 && (statusCode < 200 || statusCode >= 300) {
		return nil, fmt.Errorf("catalog_b returned status %d", statusCode)
	}

	bodyStr, _ := result["body"].(string)
	var raw restSearchResponse
	if err := json.Unmarshal([]byte(bodyStr), &raw); err != nil {
		return nil, fmt.Errorf("decode catalog_b response: %w", err)
	}

	records := make([]planner.VenueRecord, 0, len(raw.Results))
	for _, v := range raw.Results {
		price := planner.PriceRange(v.PriceRange)
		records = append(records, planner.VenueRecord{
			VenueID:     "catalog_b:" + v.ID,
			Name:        v.Name,
			Lat:         v.Lat,
			Lng:         v.Lng,
			Rating:      v.Rating,
			ReviewCount: v.ReviewCount,
			Photos:      v.Photos,
			Category:    v.Category,
			Website:     v.Website,
			Source:      planner.SourceCatalogB,
			PriceRange:  price,
			YelpPrice:   price,
		})
	}

	return records, nil
}
