package server

import (
	"context"

	"github.com/Aahiro/deerhacks/graph/emit"
)

// progressEmitter forwards node_end events from one engine run onto a
// channel, so the WebSocket handler can push a progress frame after each
// node completes without coupling the executor to the transport. Progress
// labels are cosmetic only and never influence executor decisions.
type progressEmitter struct {
	nodeDone chan string
}

func newProgressEmitter() *progressEmitter {
	return &progressEmitter{nodeDone: make(chan string, 8)}
}

func (p *progressEmitter) Emit(event emit.Event) {
	if event.Msg != "node_end" {
		return
	}
	select {
	case p.nodeDone <- event.NodeID:
	default:
		// Slow consumer: drop rather than block the run.
	}
}

func (p *progressEmitter) EmitBatch(_ context.Context, events []emit.Event) error {
	for _, e := range events {
		p.Emit(e)
	}
	return nil
}

func (p *progressEmitter) Flush(_ context.Context) error { return nil }

func (p *progressEmitter) close() { close(p.nodeDone) }
