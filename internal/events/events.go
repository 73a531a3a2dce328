// Package events implements the events.nearby(lat, lng, radius) external
// collaborator: a small, rank-sorted list of nearby happenings used by the
// Critic to spot scheduling conflicts (street closures, festivals, etc.).
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/Aahiro/deerhacks/graph/tool"
)

const defaultLimit = 5

// Event is a single nearby happening.
type Event struct {
	Title    string
	Category string
	Start    string
	Rank     int
}

// Provider looks up nearby events, already rank-sorted and capped at limit.
type Provider interface {
	Nearby(ctx context.Context, lat, lng float64, radiusMeters float64) ([]Event, error)
}

// HTTPProvider calls a generic REST events API via the shared tool.HTTPTool.
type HTTPProvider struct {
	BaseURL string
	APIKey  string
	http    *tool.HTTPTool
}

// NewHTTPProvider builds an HTTPProvider against baseURL.
func NewHTTPProvider(baseURL, apiKey string) *HTTPProvider {
	return &HTTPProvider{BaseURL: baseURL, APIKey: apiKey, http: tool.NewHTTPTool()}
}

type rawEvent struct {
	Name      string  `json:"name"`
	Category  string  `json:"category"`
	StartTime string  `json:"start_time"`
	Relevance float64 `json:"relevance"`
}

type rawEventsResponse struct {
	Events []rawEvent `json:"events"`
}

// Nearby implements Provider over the configured HTTP events API.
func (p *HTTPProvider) Nearby(ctx context.Context, lat, lng float64, radiusMeters float64) ([]Event, error) {
	url := fmt.Sprintf("%s?lat=%f&lng=%f&radius=%f&apikey=%s", p.BaseURL, lat, lng, radiusMeters, p.APIKey)

	result, err := p.http.Call(ctx, map[string]interface{}{
		"method": "GET",
		"url":    url,
	})
	if err != nil {
		return nil, fmt.Errorf("events lookup request: %w", err)
	}

	statusCode, _ := result["status_code"].(int)
	if statusCode != 0 && (statusCode < 200 || statusCode >= 300) {
		return nil, fmt.Errorf("events provider returned status %d", statusCode)
	}

	bodyStr, _ := result["body"].(string)
	var raw rawEventsResponse
	if err := json.Unmarshal([]byte(bodyStr), &raw); err != nil {
		return nil, fmt.Errorf("decode events response: %w", err)
	}

	return rankAndLimit(raw.Events, defaultLimit), nil
}

func rankAndLimit(raw []rawEvent, limit int) []Event {
	sort.SliceStable(raw, func(i, j int) bool {
		return raw[i].Relevance > raw[j].Relevance
	})

	if len(raw) > limit {
		raw = raw[:limit]
	}

	out := make([]Event, len(raw))
	for i, e := range raw {
		out[i] = Event{Title: e.Name, Category: e.Category, Start: e.StartTime, Rank: i + 1}
	}
	return out
}
