package planner

import (
	"context"
	"sync"
	"time"

	"github.com/Aahiro/deerhacks/graph"
)

const (
	vibeTaskTimeout   = 45 * time.Second
	criticTaskTimeout = 45 * time.Second
	costTaskTimeout   = 10 * time.Second
)

// ParallelAnalysts fans out VibeMatcher, CostAnalyst, and Critic over the
// candidate set and merges their disjoint partial updates into one delta.
// It also evaluates decide_next: on a top-1 veto with no retry spent yet,
// it routes back to Commander instead of Synthesizer.
type ParallelAnalysts struct {
	Vibe   *VibeMatcher
	Cost   *CostAnalyst
	Critic *Critic
	Worker *costWorker
}

// NewParallelAnalysts builds a ParallelAnalysts node. worker may be nil, in
// which case CostAnalyst runs without the worker, on runWithTimeout's goroutine.
func NewParallelAnalysts(vibe *VibeMatcher, cost *CostAnalyst, critic *Critic, worker *costWorker) *ParallelAnalysts {
	return &ParallelAnalysts{Vibe: vibe, Cost: cost, Critic: critic, Worker: worker}
}

func (p *ParallelAnalysts) Run(ctx context.Context, state State) graph.NodeResult[State] {
	candidates := state.CandidateVenues
	active := activeAgentSet(state.ActiveAgents)

	var vibeScores map[string]VibeRecord
	var costProfile map[string]CostRecord
	var riskFlags map[string][]RiskRecord
	var fastFail bool
	var fastFailReason string

	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		vibeScores = p.runVibe(ctx, candidates, state.ParsedIntent, active)
	}()
	go func() {
		defer wg.Done()
		costProfile = p.runCost(ctx, candidates, active)
	}()
	go func() {
		defer wg.Done()
		riskFlags, fastFail, fastFailReason = p.runCritic(ctx, candidates, state.ParsedIntent, active)
	}()

	wg.Wait()

	delta := State{
		VibeScores:       vibeScores,
		CostProfile:      costProfile,
		RiskFlags:        riskFlags,
		FastFail:         fastFail,
		FastFailReason:   fastFailReason,
		Veto:             fastFail,
		VetoReason:       fastFailReason,
		fastFailWritten:  true,
		ExecutionSummary: []string{"parallel_analysts: scored candidates"},
	}

	route := graph.Goto("synthesizer")
	if fastFail && state.RetryCount < 1 {
		route = graph.Goto("commander")
	}

	return graph.NodeResult[State]{Delta: delta, Route: route}
}

// activeAgentSet returns which analyzers should run. An empty active_agents
// list is a degenerate plan and runs everything.
func activeAgentSet(agents []Analyzer) map[Analyzer]bool {
	set := make(map[Analyzer]bool, len(agents))
	for _, a := range agents {
		set[a] = true
	}
	if len(set) == 0 {
		set[AgentVibeMatcher] = true
		set[AgentCostAnalyst] = true
		set[AgentCritic] = true
	}
	return set
}

func (p *ParallelAnalysts) runVibe(ctx context.Context, candidates []VenueRecord, intent ParsedIntent, active map[Analyzer]bool) map[string]VibeRecord {
	empty := map[string]VibeRecord{}
	if !active[AgentVibeMatcher] || p.Vibe == nil {
		return empty
	}

	return runWithTimeout(ctx, vibeTaskTimeout, empty, func(taskCtx context.Context) map[string]VibeRecord {
		scores := make(map[string]VibeRecord, len(candidates))
		var mu sync.Mutex
		var wg sync.WaitGroup
		wg.Add(len(candidates))
		for _, venue := range candidates {
			venue := venue
			go func() {
				defer wg.Done()
				record := p.Vibe.Score(taskCtx, venue, intent)
				mu.Lock()
				scores[venue.VenueID] = record
				mu.Unlock()
			}()
		}
		wg.Wait()
		return scores
	})
}

func (p *ParallelAnalysts) runCost(ctx context.Context, candidates []VenueRecord, active map[Analyzer]bool) map[string]CostRecord {
	empty := map[string]CostRecord{}
	if !active[AgentCostAnalyst] || p.Cost == nil {
		return empty
	}

	compute := func(taskCtx context.Context) map[string]CostRecord {
		profiles := make(map[string]CostRecord, len(candidates))
		for _, venue := range candidates {
			profiles[venue.VenueID] = p.Cost.Score(venue)
		}
		return profiles
	}

	if p.Worker == nil {
		return runWithTimeout(ctx, costTaskTimeout, empty, compute)
	}

	return runWithTimeout(ctx, costTaskTimeout, empty, func(taskCtx context.Context) map[string]CostRecord {
		var result map[string]CostRecord
		p.Worker.Do(taskCtx, func() { result = compute(taskCtx) })
		if result == nil {
			return empty
		}
		return result
	})
}

type criticOutcome struct {
	riskFlags      map[string][]RiskRecord
	fastFail       bool
	fastFailReason string
}

func (p *ParallelAnalysts) runCritic(ctx context.Context, candidates []VenueRecord, intent ParsedIntent, active map[Analyzer]bool) (map[string][]RiskRecord, bool, string) {
	empty := criticOutcome{riskFlags: map[string][]RiskRecord{}}
	if !active[AgentCritic] || p.Critic == nil {
		return empty.riskFlags, empty.fastFail, empty.fastFailReason
	}

	out := runWithTimeout(ctx, criticTaskTimeout, empty, func(taskCtx context.Context) criticOutcome {
		flags, fail, reason := p.Critic.Run(taskCtx, candidates, intent)
		return criticOutcome{riskFlags: flags, fastFail: fail, fastFailReason: reason}
	})

	return out.riskFlags, out.fastFail, out.fastFailReason
}

// runWithTimeout runs fn on its own goroutine bounded by timeout; if the
// deadline elapses first, it returns empty instead of waiting for fn, so a
// stuck collaborator call never blocks the fan-in.
func runWithTimeout[T any](ctx context.Context, timeout time.Duration, empty T, fn func(context.Context) T) T {
	taskCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result := make(chan T, 1)
	go func() { result <- fn(taskCtx) }()

	select {
	case v := <-result:
		return v
	case <-taskCtx.Done():
		return empty
	}
}
