package planner

import (
	"context"
	"fmt"
	"time"

	"github.com/Aahiro/deerhacks/graph"
	"github.com/Aahiro/deerhacks/internal/llmclient"
	"github.com/Aahiro/deerhacks/internal/memory"
)

const commanderNodeID = "commander"

const commanderSystemPrompt = `You are the planning stage of an activity-recommendation pipeline.
Given a free-form activity request, respond with a single JSON object and nothing else:
{"parsed_intent": {"activity": "", "group_size": 0, "budget": "", "location": "", "vibe": ""},
 "complexity_tier": "tier_1|tier_2|tier_3",
 "active_agents": ["scout", "vibe_matcher", "cost_analyst", "critic"],
 "agent_weights": {"vibe_matcher": 1.0, "cost_analyst": 1.0, "critic": 1.0}}
"scout" must always be included in active_agents.`

const defaultMemoryLookupK = 2

// commanderPlan is the wire shape of the LLM's structured planning output.
type commanderPlan struct {
	ParsedIntent struct {
		Activity  string `json:"activity"`
		GroupSize int    `json:"group_size"`
		Budget    string `json:"budget"`
		Location  string `json:"location"`
		Vibe      string `json:"vibe"`
	} `json:"parsed_intent"`
	ComplexityTier string             `json:"complexity_tier"`
	ActiveAgents   []string           `json:"active_agents"`
	AgentWeights   map[string]float64 `json:"agent_weights"`
}

// Commander is the planning node: parses the prompt into structured intent,
// picks which analyzers run, assigns their weights, and pre-fetches memory
// context. It also owns clearing any incoming veto and bumping retry_count,
// enforcing the pipeline's at-most-one-retry invariant.
type Commander struct {
	LLM           *llmclient.Client
	Memory        memory.Store
	Rules         *ruleEngine
	MemoryLookupK int
}

// NewCommander builds a Commander. rules may be nil to use the default
// weight-adjustment rule set; lookupK <= 0 falls back to defaultMemoryLookupK.
func NewCommander(llm *llmclient.Client, mem memory.Store, rules *ruleEngine, lookupK int) *Commander {
	if rules == nil {
		rules = defaultRuleEngine
	}
	if mem == nil {
		mem = memory.NoopStore{}
	}
	if lookupK <= 0 {
		lookupK = defaultMemoryLookupK
	}
	return &Commander{LLM: llm, Memory: mem, Rules: rules, MemoryLookupK: lookupK}
}

// Run implements graph.Node[State].
func (c *Commander) Run(ctx context.Context, state State) graph.NodeResult[State] {
	delta := State{
		RawPrompt:           state.RawPrompt,
		fastFailWritten:     true,
		retryCountWritten:   true,
		parsedIntentWritten: true,
		RetryCount:          state.RetryCount,
	}

	if state.FastFail || state.Veto {
		delta.RetryCount = state.RetryCount + 1
	}
	// FastFail/Veto/reasons left at zero value: this is the clear step.

	plan, err := c.generatePlan(ctx, state.RawPrompt)
	if err != nil {
		applyFallbackPlan(&delta)
		delta.ExecutionSummary = []string{"commander: fallback plan (llm unavailable or malformed)"}
		delta.MemoryContext = c.lookupMemory(ctx, state.RawPrompt)
		return graph.NodeResult[State]{Delta: delta, Route: graph.Goto("scout")}
	}

	intent := ParsedIntent{
		Activity:  plan.ParsedIntent.Activity,
		GroupSize: plan.ParsedIntent.GroupSize,
		Budget:    plan.ParsedIntent.Budget,
		Location:  plan.ParsedIntent.Location,
		Vibe:      plan.ParsedIntent.Vibe,
	}

	agents := normalizeActiveAgents(plan.ActiveAgents)
	llmWeights := make(map[Analyzer]float64, len(plan.AgentWeights))
	for name, w := range plan.AgentWeights {
		llmWeights[Analyzer(name)] = clampWeight(w)
	}
	weights := c.Rules.Apply(llmWeights, state.UserProfile, intent)

	delta.ParsedIntent = intent
	delta.ComplexityTier = normalizeTier(plan.ComplexityTier)
	delta.ActiveAgents = agents
	delta.AgentWeights = weights
	delta.MemoryContext = c.lookupMemory(ctx, state.RawPrompt)
	delta.ExecutionSummary = []string{"commander: parsed intent and selected analyzers"}

	return graph.NodeResult[State]{Delta: delta, Route: graph.Goto("scout")}
}

func (c *Commander) generatePlan(ctx context.Context, prompt string) (*commanderPlan, error) {
	var plan commanderPlan
	if err := c.LLM.GenerateJSON(ctx, commanderNodeID, commanderSystemPrompt, prompt, nil, &plan); err != nil {
		return nil, fmt.Errorf("commander plan generation: %w", err)
	}
	return &plan, nil
}

func (c *Commander) lookupMemory(ctx context.Context, prompt string) []string {
	lookupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	results, err := c.Memory.Search(lookupCtx, prompt, c.MemoryLookupK)
	if err != nil {
		return []string{}
	}
	return results
}

// applyFallbackPlan sets the safe fallback plan used when the LLM is
// unavailable or its response can't be parsed.
func applyFallbackPlan(delta *State) {
	delta.ParsedIntent = ParsedIntent{}
	delta.ComplexityTier = TierOne
	delta.ActiveAgents = []Analyzer{AgentScout}
	delta.AgentWeights = map[Analyzer]float64{AgentScout: 1.0}
}

// normalizeActiveAgents ensures scout is always present.
func normalizeActiveAgents(raw []string) []Analyzer {
	agents := make([]Analyzer, 0, len(raw)+1)
	sawScout := false
	for _, a := range raw {
		agent := Analyzer(a)
		if agent == AgentScout {
			sawScout = true
		}
		agents = append(agents, agent)
	}
	if !sawScout {
		agents = append([]Analyzer{AgentScout}, agents...)
	}
	return agents
}

func normalizeTier(raw string) ComplexityTier {
	switch ComplexityTier(raw) {
	case TierOne, TierTwo, TierThree:
		return ComplexityTier(raw)
	default:
		return TierOne
	}
}

func clampWeight(w float64) float64 {
	if w < 0 {
		return 0
	}
	if w > 1 {
		return 1
	}
	return w
}
