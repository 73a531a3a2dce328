package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleWSPlan runs one planning request over a WebSocket connection,
// pushing a progress frame after each node completes and exactly one
// terminal frame ("result" or "error") before closing.
func (s *Server) handleWSPlan(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer func() { _ = conn.Close() }()

	var req PlanRequest
	if err := conn.ReadJSON(&req); err != nil {
		_ = conn.WriteJSON(wsMessage{Type: "error", Message: "invalid request"})
		return
	}
	if req.Prompt == "" {
		_ = conn.WriteJSON(wsMessage{Type: "error", Message: "prompt is required"})
		return
	}

	profile := userProfileFromContext(r.Context())
	runID := uuid.NewString()

	engine, progress, err := s.Engines.New(nil)
	if err != nil {
		s.Log.Error().Err(err).Msg("build engine")
		_ = conn.WriteJSON(wsMessage{Type: "error", Message: "internal error"})
		return
	}

	done := make(chan struct{})
	go s.pumpProgress(conn, progress, done)

	final, err := engine.Run(r.Context(), runID, initialState(req, profile))
	progress.close()
	<-done

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.Log.Warn().Err(err).Str("run_id", runID).Msg("plan run timed out")
			_ = conn.WriteJSON(wsMessage{Type: "error", Message: "pipeline timed out"})
			return
		}
		s.Log.Error().Err(err).Str("run_id", runID).Msg("plan run failed")
		_ = conn.WriteJSON(wsMessage{Type: "error", Message: "planning failed"})
		return
	}

	response := toPlanResponse(final)
	_ = conn.WriteJSON(wsMessage{Type: "result", Data: &response})
}

// pumpProgress relays node_end events as progress frames until the
// emitter's channel is closed, then signals done. Runs concurrently with
// engine.Run so the client sees progress as it happens rather than only at
// the end.
func (s *Server) pumpProgress(conn *websocket.Conn, progress *progressEmitter, done chan<- struct{}) {
	defer close(done)
	for nodeID := range progress.nodeDone {
		label, ok := nodeLabels[nodeID]
		if !ok {
			continue
		}
		if err := conn.WriteJSON(wsMessage{Type: "progress", Node: nodeID, Label: label}); err != nil {
			return
		}
	}
}
