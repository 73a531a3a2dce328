package planner

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// WeightRule adjusts one analyzer's default weight when its When expression
// evaluates true against the current profile/intent environment. Expressions
// are expr-lang boolean expressions over "profile" (the UserProfile map) and
// "intent" (the ParsedIntent struct), e.g. `profile.tier == "premium"` or
// `intent.Budget == "low"`.
type WeightRule struct {
	Name   string
	When   string
	Target Analyzer
	Delta  float64
}

// defaultWeights are the starting per-analyzer weights before any rule
// adjusts them, applied to every analyzer regardless of ActiveAgents.
var defaultWeights = map[Analyzer]float64{
	AgentVibeMatcher: 1.0,
	AgentCostAnalyst: 1.0,
	AgentCritic:      1.0,
}

// defaultWeightBump is the fallback nudge for the tight_budget_intent rule
// when no operator-configured value is supplied.
const defaultWeightBump = 0.2

// buildDefaultRules encodes the profile-driven nudges Commander applies on
// top of defaultWeights: a budget-conscious profile leans harder on
// CostAnalyst, a vibe-forward profile leans harder on VibeMatcher, a
// cautious profile leans harder on the Critic, and a request that states a
// low budget gets an extra bump sized by bump (config.Tunables.BudgetWeightBump).
func buildDefaultRules(bump float64) []WeightRule {
	if bump <= 0 {
		bump = defaultWeightBump
	}
	return []WeightRule{
		{Name: "budget_conscious", When: `profile.priceSensitivity == "high"`, Target: AgentCostAnalyst, Delta: 0.5},
		{Name: "vibe_forward", When: `profile.stylePriority == "high"`, Target: AgentVibeMatcher, Delta: 0.5},
		{Name: "risk_averse", When: `profile.riskTolerance == "low"`, Target: AgentCritic, Delta: 0.5},
		{Name: "tight_budget_intent", When: `intent.Budget == "low"`, Target: AgentCostAnalyst, Delta: bump},
	}
}

var defaultRules = buildDefaultRules(defaultWeightBump)

// ruleEnv is the evaluation environment exposed to each WeightRule expression.
type ruleEnv struct {
	Profile map[string]any
	Intent  ParsedIntent
}

// ruleEngine compiles and caches WeightRule expressions, following the
// compiled-program cache pattern used for condition evaluation elsewhere in
// the pack (expr.Compile once, expr.Run many times).
type ruleEngine struct {
	mu      sync.RWMutex
	cache   map[string]*vm.Program
	rules   []WeightRule
	weights map[Analyzer]float64
}

// newRuleEngine builds a ruleEngine over the given rule set and base weights.
func newRuleEngine(rules []WeightRule, base map[Analyzer]float64) *ruleEngine {
	return &ruleEngine{
		cache:   make(map[string]*vm.Program),
		rules:   rules,
		weights: base,
	}
}

// Apply returns a fresh weight map layering every matching rule's delta on
// top of base (typically the LLM's own agent_weights, already clamped), for
// the given profile and parsed intent. Any analyzer base leaves unset falls
// back to the engine's default weight. A rule whose expression fails to
// compile or evaluate is skipped rather than failing the whole pipeline —
// a malformed weight rule should degrade to the default weight, not veto
// planning.
func (re *ruleEngine) Apply(base map[Analyzer]float64, profile map[string]any, intent ParsedIntent) map[Analyzer]float64 {
	weights := make(map[Analyzer]float64, len(re.weights))
	for k, v := range re.weights {
		weights[k] = v
	}
	for k, v := range base {
		weights[k] = v
	}

	if profile == nil {
		profile = map[string]any{}
	}
	env := map[string]any{
		"profile": profile,
		"intent":  intent,
	}

	for _, rule := range re.rules {
		program, err := re.compile(rule.When, env)
		if err != nil {
			continue
		}
		out, err := expr.Run(program, env)
		if err != nil {
			continue
		}
		matched, ok := out.(bool)
		if !ok || !matched {
			continue
		}
		weights[rule.Target] += rule.Delta
	}

	return weights
}

func (re *ruleEngine) compile(condition string, env any) (*vm.Program, error) {
	re.mu.RLock()
	program, found := re.cache[condition]
	re.mu.RUnlock()
	if found {
		return program, nil
	}

	program, err := expr.Compile(condition, expr.Env(env), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile weight rule %q: %w", condition, err)
	}

	re.mu.Lock()
	re.cache[condition] = program
	re.mu.Unlock()

	return program, nil
}

// defaultRuleEngine is the ruleEngine Commander uses when none is injected,
// built from defaultRules/defaultWeights.
var defaultRuleEngine = newRuleEngine(defaultRules, defaultWeights)

// NewRuleEngine builds a ruleEngine with the tight_budget_intent rule's bump
// sized from an operator-configured Tunables value.
func NewRuleEngine(budgetWeightBump float64) *ruleEngine {
	return newRuleEngine(buildDefaultRules(budgetWeightBump), defaultWeights)
}
