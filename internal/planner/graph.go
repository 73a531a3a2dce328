package planner

import (
	"time"

	"github.com/Aahiro/deerhacks/graph"
	"github.com/Aahiro/deerhacks/graph/emit"
	"github.com/Aahiro/deerhacks/graph/store"
)

const globalPipelineTimeout = 120 * time.Second

// NewEngine wires the four pipeline nodes onto a fresh graph.Engine with
// the 120s default global deadline. No edges are connected: each node's own
// Route picks its successor, and ParallelAnalysts' Route makes the retry choice.
func NewEngine(commander *Commander, scout *Scout, parallel *ParallelAnalysts, synth *Synthesizer, emitter emit.Emitter, opts ...graph.Option) (*graph.Engine[State], error) {
	st := store.NewMemStore[State]()

	if emitter == nil {
		emitter = emit.NewNullEmitter()
	}

	options := []interface{}{
		graph.WithRunWallClockBudget(globalPipelineTimeout),
		graph.WithDefaultNodeTimeout(globalPipelineTimeout),
	}
	for _, o := range opts {
		options = append(options, o)
	}

	engine := graph.New[State](Reduce, st, emitter, options...)

	if err := engine.Add("commander", commander); err != nil {
		return nil, err
	}
	if err := engine.Add("scout", scout); err != nil {
		return nil, err
	}
	if err := engine.Add("parallel_analysts", parallel); err != nil {
		return nil, err
	}
	if err := engine.Add("synthesizer", synth); err != nil {
		return nil, err
	}
	if err := engine.StartAt("commander"); err != nil {
		return nil, err
	}

	return engine, nil
}
