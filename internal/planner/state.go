// Package planner implements the activity-planning agent pipeline: the
// Commander/Scout/ParallelAnalysts/Synthesizer nodes and the shared state
// record they operate on, wired onto the generic graph.Engine runtime.
package planner

import "time"

// ComplexityTier classifies how much planning work a prompt warrants.
type ComplexityTier string

const (
	TierOne   ComplexityTier = "tier_1"
	TierTwo   ComplexityTier = "tier_2"
	TierThree ComplexityTier = "tier_3"
)

// Analyzer names the independent analyzers Commander may activate.
type Analyzer string

const (
	AgentScout       Analyzer = "scout"
	AgentVibeMatcher Analyzer = "vibe_matcher"
	AgentCostAnalyst Analyzer = "cost_analyst"
	AgentCritic      Analyzer = "critic"
)

// PriceRange is one of the four catalog price bands, or empty when unknown.
type PriceRange string

const (
	Price1 PriceRange = "$"
	Price2 PriceRange = "$$"
	Price3 PriceRange = "$$$"
	Price4 PriceRange = "$$$$"
)

// CostConfidence grades how much the two catalog price signals agreed.
type CostConfidence string

const (
	ConfidenceHigh   CostConfidence = "high"
	ConfidenceMedium CostConfidence = "medium"
	ConfidenceLow    CostConfidence = "low"
	ConfidenceNone   CostConfidence = "none"
)

// CatalogSource identifies which venue catalog produced a VenueRecord.
type CatalogSource string

const (
	SourceCatalogA CatalogSource = "catalog_a"
	SourceCatalogB CatalogSource = "catalog_b"
)

// RiskKind classifies a single RiskRecord.
type RiskKind string

const (
	RiskWeather RiskKind = "weather"
	RiskEvent   RiskKind = "event"
	RiskOther   RiskKind = "other"
)

// RiskSeverity grades how serious a RiskRecord is.
type RiskSeverity string

const (
	SeverityHigh   RiskSeverity = "high"
	SeverityMedium RiskSeverity = "medium"
	SeverityLow    RiskSeverity = "low"
)

// ParsedIntent is Commander's structured read of the free-form prompt.
// Fields may be empty when the LLM plan omitted them; callers must not
// assume all fields are populated.
type ParsedIntent struct {
	Activity  string
	GroupSize int
	Budget    string
	Location  string
	Vibe      string
}

// VenueRecord is a catalog-qualified candidate venue. venue_id is unique
// within the catalog that produced it; Scout qualifies it further.
type VenueRecord struct {
	VenueID     string
	Name        string
	Lat         float64
	Lng         float64
	Rating      float64
	ReviewCount int
	Photos      []string
	Category    string
	Website     string
	Source      CatalogSource
	PriceRange  PriceRange // "" when unknown

	// GooglePrice/YelpPrice carry catalog-specific price signals that may
	// differ from PriceRange; CostAnalyst reads these directly.
	GooglePrice PriceRange
	YelpPrice   PriceRange
}

// VibeRecord is VibeMatcher's per-venue thematic-fit score.
type VibeRecord struct {
	VibeScore         *float64 // nil == null score; fallback path taken
	PrimaryStyle      string
	VisualDescriptors []string
	Confidence        float64 // must be 0 when VibeScore is nil
}

// CostRecord is CostAnalyst's per-venue price/value read.
type CostRecord struct {
	PriceRange PriceRange // "" when Confidence == ConfidenceNone
	Confidence CostConfidence
	ValueScore float64
}

// RiskRecord is a single dealbreaker or caution flagged by the Critic.
type RiskRecord struct {
	Type     RiskKind
	Severity RiskSeverity
	Detail   string
}

// RankedVenue is a top-3 shortlist entry: the source venue plus the
// Synthesizer's composite score, rank, and generated explanation.
type RankedVenue struct {
	VenueRecord
	Rank            int
	CompositeScore  float64
	VibeScore       *float64
	PriceRange      PriceRange
	PriceConfidence CostConfidence
	Why             string
	WatchOut        string
}

// State is the shared record threaded through the graph. It is passed by
// value between nodes; nodes receive a read-only snapshot and return a
// partial update that Reduce merges in.
type State struct {
	RawPrompt string

	ParsedIntent   ParsedIntent
	ComplexityTier ComplexityTier
	ActiveAgents   []Analyzer
	AgentWeights   map[Analyzer]float64
	MemoryContext  []string

	CandidateVenues []VenueRecord

	VibeScores  map[string]VibeRecord
	CostProfile map[string]CostRecord
	RiskFlags   map[string][]RiskRecord

	FastFail       bool
	FastFailReason string
	// Veto is an alias of FastFail, preserved for wire-compatibility with
	// collaborators that still speak both names; decide_next only
	// consults FastFail.
	Veto       bool
	VetoReason string

	RetryCount int

	// fastFailWritten/retryCountWritten/parsedIntentWritten mark that a
	// node's delta explicitly set these fields, since their zero values
	// (false, 0, ParsedIntent{}) are themselves meaningful writes (Commander
	// clearing a veto, or clearing a stale ParsedIntent on a fallback retry).
	// Unexported: only Reduce and the nodes in this package touch them.
	fastFailWritten     bool
	retryCountWritten   bool
	parsedIntentWritten bool

	RankedResults []RankedVenue

	// UserProfile carries optional identity-claim-derived preferences used
	// by Commander's weight-adjustment rules.
	UserProfile map[string]any

	// ExecutionSummary is a short human-readable trace of which nodes ran,
	// surfaced in the POST /plan response.
	ExecutionSummary []string

	// StartedAt backs the global deadline check; set once by the caller,
	// never mutated by nodes.
	StartedAt time.Time
}

// Reduce merges a node's partial update (delta) into the accumulated state,
// matching graph.Reducer[S]'s contract: zero-valued fields in delta are
// treated as "not written" and left alone, except for fields whose nodes
// always set them meaningfully (RetryCount, ParsedIntent, boolean flags),
// which always take the delta's value once that node has run, guarded by a
// written marker rather than a zero-value check. Maps and slices are
// replaced wholesale when the delta sets them, except ExecutionSummary,
// which is appended.
func Reduce(prev, delta State) State {
	if delta.RawPrompt != "" {
		prev.RawPrompt = delta.RawPrompt
	}
	if !delta.StartedAt.IsZero() {
		prev.StartedAt = delta.StartedAt
	}

	if delta.parsedIntentWritten {
		prev.ParsedIntent = delta.ParsedIntent
	}
	if delta.ComplexityTier != "" {
		prev.ComplexityTier = delta.ComplexityTier
	}
	if delta.ActiveAgents != nil {
		prev.ActiveAgents = delta.ActiveAgents
	}
	if delta.AgentWeights != nil {
		prev.AgentWeights = delta.AgentWeights
	}
	if delta.MemoryContext != nil {
		prev.MemoryContext = delta.MemoryContext
	}
	if delta.UserProfile != nil {
		prev.UserProfile = delta.UserProfile
	}

	if delta.CandidateVenues != nil {
		prev.CandidateVenues = delta.CandidateVenues
	}

	// Each analyzer map is replaced wholesale when the delta sets it;
	// ParallelAnalysts' single delta already carries the merged maps.
	if delta.VibeScores != nil {
		prev.VibeScores = delta.VibeScores
	}
	if delta.CostProfile != nil {
		prev.CostProfile = delta.CostProfile
	}
	if delta.RiskFlags != nil {
		prev.RiskFlags = delta.RiskFlags
	}

	// Commander always clears these on entry (even to false/""), so the
	// delta's value is authoritative whenever Commander or Critic ran.
	if delta.fastFailWritten {
		prev.FastFail = delta.FastFail
		prev.FastFailReason = delta.FastFailReason
		prev.Veto = delta.Veto
		prev.VetoReason = delta.VetoReason
	}

	if delta.retryCountWritten {
		prev.RetryCount = delta.RetryCount
	}

	if delta.RankedResults != nil {
		prev.RankedResults = delta.RankedResults
	}

	if len(delta.ExecutionSummary) > 0 {
		prev.ExecutionSummary = append(prev.ExecutionSummary, delta.ExecutionSummary...)
	}

	return prev
}
