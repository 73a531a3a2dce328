package server

import (
	"fmt"

	"github.com/Aahiro/deerhacks/internal/planner"
)

// LatLng is a decimal-degree coordinate, used for member_locations.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// PlanRequest is the body of POST /plan and the single message a WS client
// sends on GET /ws/plan.
type PlanRequest struct {
	Prompt          string   `json:"prompt"`
	GroupSize       int      `json:"group_size,omitempty"`
	Budget          string   `json:"budget,omitempty"`
	Location        string   `json:"location,omitempty"`
	Vibe            string   `json:"vibe,omitempty"`
	MemberLocations []LatLng `json:"member_locations,omitempty"`
	ChatHistory     any      `json:"chat_history,omitempty"`
}

// RankedVenueDTO is the wire shape of a planner.RankedVenue.
type RankedVenueDTO struct {
	VenueID         string   `json:"venue_id"`
	Name            string   `json:"name"`
	Lat             float64  `json:"lat"`
	Lng             float64  `json:"lng"`
	Rating          float64  `json:"rating"`
	ReviewCount     int      `json:"review_count"`
	Photos          []string `json:"photos,omitempty"`
	Category        string   `json:"category,omitempty"`
	Website         string   `json:"website,omitempty"`
	Rank            int      `json:"rank"`
	CompositeScore  float64  `json:"composite_score"`
	VibeScore       *float64 `json:"vibe_score,omitempty"`
	PriceRange      string   `json:"price_range,omitempty"`
	PriceConfidence string   `json:"price_confidence,omitempty"`
	Why             string   `json:"why,omitempty"`
	WatchOut        string   `json:"watch_out,omitempty"`
}

// PlanResponse is the body of a successful POST /plan or a WS "result" event.
type PlanResponse struct {
	Venues           []RankedVenueDTO `json:"venues"`
	ExecutionSummary string           `json:"execution_summary"`
}

func toRankedVenueDTO(v planner.RankedVenue) RankedVenueDTO {
	return RankedVenueDTO{
		VenueID:         v.VenueID,
		Name:            v.Name,
		Lat:             v.Lat,
		Lng:             v.Lng,
		Rating:          v.Rating,
		ReviewCount:     v.ReviewCount,
		Photos:          v.Photos,
		Category:        v.Category,
		Website:         v.Website,
		Rank:            v.Rank,
		CompositeScore:  v.CompositeScore,
		VibeScore:       v.VibeScore,
		PriceRange:      string(v.PriceRange),
		PriceConfidence: string(v.PriceConfidence),
		Why:             v.Why,
		WatchOut:        v.WatchOut,
	}
}

func toPlanResponse(state planner.State) PlanResponse {
	venues := make([]RankedVenueDTO, 0, len(state.RankedResults))
	for _, v := range state.RankedResults {
		venues = append(venues, toRankedVenueDTO(v))
	}

	summary := ""
	for i, line := range state.ExecutionSummary {
		if i > 0 {
			summary += "; "
		}
		summary += line
	}

	return PlanResponse{Venues: venues, ExecutionSummary: summary}
}

// initialState seeds the run. Structured hints on the request are folded
// into raw_prompt text rather than parsed_intent directly, since Commander
// always overwrites parsed_intent wholesale from its own LLM parse
// (including on its fallback path) — the hints are there to help the LLM
// parse, not to survive independently of it.
func initialState(req PlanRequest, userProfile map[string]any) planner.State {
	prompt := req.Prompt
	if hints := formatHints(req); hints != "" {
		prompt += "\n\n" + hints
	}

	return planner.State{
		RawPrompt:   prompt,
		UserProfile: userProfile,
	}
}

func formatHints(req PlanRequest) string {
	hints := ""
	if req.GroupSize > 0 {
		hints += fmt.Sprintf("group_size: %d\n", req.GroupSize)
	}
	if req.Budget != "" {
		hints += fmt.Sprintf("budget: %s\n", req.Budget)
	}
	if req.Location != "" {
		hints += fmt.Sprintf("location: %s\n", req.Location)
	}
	if req.Vibe != "" {
		hints += fmt.Sprintf("vibe: %s\n", req.Vibe)
	}
	return hints
}

// wsMessage is the envelope for every server->client WS frame.
type wsMessage struct {
	Type    string        `json:"type"`
	Node    string        `json:"node,omitempty"`
	Label   string        `json:"label,omitempty"`
	Data    *PlanResponse `json:"data,omitempty"`
	Message string        `json:"message,omitempty"`
}

// nodeLabels is the fixed node -> user-readable progress mapping.
var nodeLabels = map[string]string{
	"commander":         "Parsing your request...",
	"scout":             "Discovering venues...",
	"parallel_analysts": "Analysing vibes, cost & risks...",
	"synthesizer":       "Ranking results...",
}
