package planner

import (
	"context"
	"fmt"
	"time"

	"github.com/Aahiro/deerhacks/internal/events"
	"github.com/Aahiro/deerhacks/internal/llmclient"
	"github.com/Aahiro/deerhacks/internal/memory"
	"github.com/Aahiro/deerhacks/internal/weather"
)

const (
	criticTopK                = 3
	criticPerVenueDeadline    = 25 * time.Second
	defaultEventsRadiusMeters = 2000.0
)

const criticSystemPrompt = `You are a risk reviewer for an activity recommendation.
Given a venue, the requester's intent, a weather forecast and nearby events,
respond with a single JSON object and nothing else:
{"risks": [{"type": "weather|event|other", "severity": "high|medium|low", "detail": ""}],
 "fast_fail": false, "fast_fail_reason": ""}
Set fast_fail=true only when the venue is a genuine dealbreaker for the stated intent.`

type criticLLMOutput struct {
	Risks []struct {
		Type     string `json:"type"`
		Severity string `json:"severity"`
		Detail   string `json:"detail"`
	} `json:"risks"`
	FastFail       bool   `json:"fast_fail"`
	FastFailReason string `json:"fast_fail_reason"`
}

// Critic fetches weather and nearby events for the top candidates and asks
// the LLM to flag dealbreakers, possibly vetoing the leading candidate.
type Critic struct {
	Weather            weather.Provider
	Events             events.Provider
	LLM                *llmclient.Client
	Memory             memory.Store
	EventsRadiusMeters float64
}

// NewCritic builds a Critic. radiusMeters <= 0 falls back to
// defaultEventsRadiusMeters; mem may be nil to use memory.NoopStore{}.
func NewCritic(w weather.Provider, e events.Provider, llm *llmclient.Client, mem memory.Store, radiusMeters float64) *Critic {
	if radiusMeters <= 0 {
		radiusMeters = defaultEventsRadiusMeters
	}
	if mem == nil {
		mem = memory.NoopStore{}
	}
	return &Critic{Weather: w, Events: e, LLM: llm, Memory: mem, EventsRadiusMeters: radiusMeters}
}

type criticVenueResult struct {
	venueID        string
	risks          []RiskRecord
	fastFail       bool
	fastFailReason string
}

// Run analyzes the top criticTopK candidates concurrently and returns the
// merged risk flags plus whether the top-1 candidate was vetoed by the
// fast-fail rule.
func (c *Critic) Run(ctx context.Context, candidates []VenueRecord, intent ParsedIntent) (map[string][]RiskRecord, bool, string) {
	n := len(candidates)
	if n > criticTopK {
		n = criticTopK
	}

	results := make(chan criticVenueResult, n)
	for i := 0; i < n; i++ {
		venue := candidates[i]
		go func() {
			results <- c.analyzeVenue(ctx, venue, intent)
		}()
	}

	riskFlags := make(map[string][]RiskRecord, n)
	byVenue := make(map[string]criticVenueResult, n)
	for i := 0; i < n; i++ {
		r := <-results
		byVenue[r.venueID] = r
		riskFlags[r.venueID] = r.risks
	}

	if n == 0 {
		return riskFlags, false, ""
	}

	top1 := byVenue[candidates[0].VenueID]
	if top1.fastFail {
		c.logRisk(ctx, top1.venueID, top1.fastFailReason)
	}
	return riskFlags, top1.fastFail, top1.fastFailReason
}

// logRisk persists a fast-fail veto to the memory store for future runs'
// context lookups; failures are swallowed, matching the store's advisory
// nature (Commander's lookup degrades the same way on a down store).
func (c *Critic) logRisk(ctx context.Context, venueID, detail string) {
	if c.Memory == nil {
		return
	}
	logCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_ = c.Memory.LogRisk(logCtx, venueID, detail)
}

func (c *Critic) analyzeVenue(ctx context.Context, venue VenueRecord, intent ParsedIntent) criticVenueResult {
	venueCtx, cancel := context.WithTimeout(ctx, criticPerVenueDeadline)
	defer cancel()

	type weatherResult struct {
		forecast *weather.Forecast
	}
	type eventsResult struct {
		list []events.Event
	}

	weatherCh := make(chan weatherResult, 1)
	eventsCh := make(chan eventsResult, 1)

	go func() {
		f, err := c.Weather.Forecast(venueCtx, venue.Lat, venue.Lng)
		if err != nil {
			f = nil
		}
		weatherCh <- weatherResult{forecast: f}
	}()
	go func() {
		list, err := c.Events.Nearby(venueCtx, venue.Lat, venue.Lng, c.EventsRadiusMeters)
		if err != nil {
			list = nil
		}
		eventsCh <- eventsResult{list: list}
	}()

	wr := <-weatherCh
	er := <-eventsCh

	prompt := buildCriticPrompt(venue, intent, wr.forecast, er.list)

	var out criticLLMOutput
	if err := c.LLM.GenerateJSON(venueCtx, "critic", criticSystemPrompt, prompt, nil, &out); err != nil {
		return criticVenueResult{venueID: venue.VenueID}
	}

	risks := make([]RiskRecord, 0, len(out.Risks))
	for _, r := range out.Risks {
		risks = append(risks, RiskRecord{
			Type:     RiskKind(r.Type),
			Severity: RiskSeverity(r.Severity),
			Detail:   r.Detail,
		})
	}

	return criticVenueResult{
		venueID:        venue.VenueID,
		risks:          risks,
		fastFail:       out.FastFail,
		fastFailReason: out.FastFailReason,
	}
}

func buildCriticPrompt(venue VenueRecord, intent ParsedIntent, forecast *weather.Forecast, nearby []events.Event) string {
	weatherLine := "no forecast available"
	if forecast != nil {
		weatherLine = fmt.Sprintf("heavy_precipitation_likely=%v summary=%q", forecast.HeavyPrecipitationLikely, forecast.Summary)
	}

	eventLines := "none"
	if len(nearby) > 0 {
		eventLines = ""
		for _, e := range nearby {
			eventLines += fmt.Sprintf("- %s (%s) at %s\n", e.Title, e.Category, e.Start)
		}
	}

	return fmt.Sprintf(
		"venue: %s (%s)\nactivity: %s\ngroup_size: %d\nweather: %s\nnearby_events:\n%s",
		venue.Name, venue.Category, intent.Activity, intent.GroupSize, weatherLine, eventLines,
	)
}
