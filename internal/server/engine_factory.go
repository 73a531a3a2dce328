package server

import (
	"github.com/Aahiro/deerhacks/graph"
	"github.com/Aahiro/deerhacks/graph/emit"
	"github.com/Aahiro/deerhacks/internal/planner"
)

// EngineFactory builds a fresh graph.Engine for each run from a fixed set
// of already-constructed, stateless planner nodes. Nodes are reused across
// engines; only the store and emitter are per-run, so one client's progress
// events can never leak into another's (internal/server/progress.go).
type EngineFactory struct {
	Commander *planner.Commander
	Scout     *planner.Scout
	Parallel  *planner.ParallelAnalysts
	Synth     *planner.Synthesizer
	Metrics   *graph.PrometheusMetrics
	Costs     *graph.CostTracker
}

// New builds an engine. If emitter is nil, a progressEmitter is created and
// returned alongside the engine so the caller can drain its channel; pass a
// non-nil emitter (e.g. emit.NewNullEmitter()) to opt out of progress
// streaming entirely.
func (f *EngineFactory) New(emitter emit.Emitter) (*graph.Engine[planner.State], *progressEmitter, error) {
	var progress *progressEmitter
	if emitter == nil {
		progress = newProgressEmitter()
		emitter = progress
	}

	opts := []graph.Option{}
	if f.Metrics != nil {
		opts = append(opts, graph.WithMetrics(f.Metrics))
	}
	if f.Costs != nil {
		opts = append(opts, graph.WithCostTracker(f.Costs))
	}

	engine, err := planner.NewEngine(f.Commander, f.Scout, f.Parallel, f.Synth, emitter, opts...)
	if err != nil {
		return nil, nil, err
	}

	return engine, progress, nil
}
