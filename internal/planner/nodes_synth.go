package planner

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Aahiro/deerhacks/graph"
	"github.com/Aahiro/deerhacks/internal/llmclient"
)

const (
	topResultCount      = 3
	neutralVibeScore    = 0.5
	highRiskPenalty     = 0.15
	mediumRiskPenalty   = 0.05
	defaultAgentWeight  = 1.0
)

const explanationSystemPrompt = `You write a short recommendation blurb for one venue.
Given its thematic fit, cost, and flagged risks, respond with a single JSON object
and nothing else: {"why": "", "watch_out": ""}. watch_out may be empty if there is
nothing notable to flag.`

const consensusSystemPrompt = `You summarize a shortlist of recommended venues in one or
two sentences. Respond with a single JSON object and nothing else: {"summary": ""}.`

type explanationOutput struct {
	Why      string `json:"why"`
	WatchOut string `json:"watch_out"`
}

// Synthesizer computes each candidate's composite score, ranks the top 3,
// and asks the LLM to ground a short explanation for each.
type Synthesizer struct {
	LLM *llmclient.Client
}

// NewSynthesizer builds a Synthesizer.
func NewSynthesizer(llm *llmclient.Client) *Synthesizer {
	return &Synthesizer{LLM: llm}
}

func (s *Synthesizer) Run(ctx context.Context, state State) graph.NodeResult[State] {
	if len(state.CandidateVenues) == 0 {
		return graph.NodeResult[State]{
			Delta: State{
				RankedResults:    []RankedVenue{},
				ExecutionSummary: []string{"synthesizer: no candidates to rank"},
			},
			Route: graph.Stop(),
		}
	}

	scored := make([]scoredVenue, 0, len(state.CandidateVenues))
	for _, venue := range state.CandidateVenues {
		scored = append(scored, scoreVenue(venue, state))
	}

	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.composite != b.composite {
			return a.composite > b.composite
		}
		if a.venue.Rating != b.venue.Rating {
			return a.venue.Rating > b.venue.Rating
		}
		return a.venue.ReviewCount > b.venue.ReviewCount
	})

	if len(scored) > topResultCount {
		scored = scored[:topResultCount]
	}

	explanations := s.explainTop(ctx, scored, state)

	results := make([]RankedVenue, 0, len(scored))
	for i, sv := range scored {
		expl := explanations[sv.venue.VenueID]
		results = append(results, RankedVenue{
			VenueRecord:     sv.venue,
			Rank:            i + 1,
			CompositeScore:  sv.composite,
			VibeScore:       sv.vibeScore,
			PriceRange:      sv.costRecord.PriceRange,
			PriceConfidence: sv.costRecord.Confidence,
			Why:             expl.Why,
			WatchOut:        expl.WatchOut,
		})
	}

	delta := State{
		RankedResults:    results,
		ExecutionSummary: []string{"synthesizer: ranked top " + fmt.Sprint(len(results)) + " candidates"},
	}

	return graph.NodeResult[State]{Delta: delta, Route: graph.Stop()}
}

type scoredVenue struct {
	venue      VenueRecord
	composite  float64
	vibeScore  *float64
	costRecord CostRecord
}

func scoreVenue(venue VenueRecord, state State) scoredVenue {
	wVibe := agentWeight(state.AgentWeights, AgentVibeMatcher)
	wCost := agentWeight(state.AgentWeights, AgentCostAnalyst)

	sVibe := neutralVibeScore
	var vibeScorePtr *float64
	if rec, ok := state.VibeScores[venue.VenueID]; ok {
		vibeScorePtr = rec.VibeScore
		if rec.VibeScore != nil {
			sVibe = *rec.VibeScore
		}
	}

	sCost := neutralValueScore
	costRecord := CostRecord{Confidence: ConfidenceNone, ValueScore: neutralValueScore}
	if rec, ok := state.CostProfile[venue.VenueID]; ok {
		costRecord = rec
		sCost = rec.ValueScore
	}

	var highCount, mediumCount int
	for _, risk := range state.RiskFlags[venue.VenueID] {
		switch risk.Severity {
		case SeverityHigh:
			highCount++
		case SeverityMedium:
			mediumCount++
		}
	}
	riskPenalty := highRiskPenalty*float64(highCount) + mediumRiskPenalty*float64(mediumCount)

	denom := wVibe + wCost
	var composite float64
	if denom > 0 {
		composite = (wVibe*sVibe+wCost*sCost)/denom - riskPenalty
	} else {
		composite = -riskPenalty
	}

	return scoredVenue{venue: venue, composite: composite, vibeScore: vibeScorePtr, costRecord: costRecord}
}

func agentWeight(weights map[Analyzer]float64, agent Analyzer) float64 {
	if weights == nil {
		return defaultAgentWeight
	}
	if w, ok := weights[agent]; ok {
		return w
	}
	return defaultAgentWeight
}

func (s *Synthesizer) explainTop(ctx context.Context, scored []scoredVenue, state State) map[string]explanationOutput {
	explanations := make(map[string]explanationOutput, len(scored))
	if s.LLM == nil || len(scored) == 0 {
		return explanations
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(len(scored))
	for _, sv := range scored {
		sv := sv
		go func() {
			defer wg.Done()
			out := s.explainVenue(ctx, sv, state)
			mu.Lock()
			explanations[sv.venue.VenueID] = out
			mu.Unlock()
		}()
	}
	wg.Wait()

	s.consensusSummary(ctx, scored, state)

	return explanations
}

func (s *Synthesizer) explainVenue(ctx context.Context, sv scoredVenue, state State) explanationOutput {
	vibeScoreText := "unknown"
	if sv.vibeScore != nil {
		vibeScoreText = fmt.Sprintf("%.2f", *sv.vibeScore)
	}

	prompt := fmt.Sprintf(
		"venue: %s\nvibe_score: %s\nprice_range: %s (%s confidence)\nrisk_count: %d\ndesired vibe: %s",
		sv.venue.Name, vibeScoreText, sv.costRecord.PriceRange, sv.costRecord.Confidence,
		len(state.RiskFlags[sv.venue.VenueID]), state.ParsedIntent.Vibe,
	)

	var out explanationOutput
	if err := s.LLM.GenerateJSON(ctx, "synthesizer", explanationSystemPrompt, prompt, nil, &out); err != nil {
		return explanationOutput{}
	}
	return out
}

// consensusSummary makes one final whole-shortlist LLM call; its text is
// informational only and is not carried in RankedVenue, so a failure here
// is silently ignored.
func (s *Synthesizer) consensusSummary(ctx context.Context, scored []scoredVenue, state State) {
	names := ""
	for _, sv := range scored {
		names += sv.venue.Name + "; "
	}
	prompt := fmt.Sprintf("activity: %s\nshortlist: %s", state.ParsedIntent.Activity, names)

	var out struct {
		Summary string `json:"summary"`
	}
	_ = s.LLM.GenerateJSON(ctx, "synthesizer_consensus", consensusSystemPrompt, prompt, nil, &out)
}
