package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/Aahiro/deerhacks/graph/emit"
	"github.com/Aahiro/deerhacks/internal/identity"
	"github.com/Aahiro/deerhacks/internal/tts"
)

// Server holds the collaborators the HTTP/WS handlers need. A fresh engine
// is built per run from Engines, since graph nodes are stateless and a
// shared engine instance would mix one run's emitted events with another's.
type Server struct {
	Engines  *EngineFactory
	Verifier *identity.Verifier
	TTS      tts.Synthesizer
	Log      zerolog.Logger
}

// NewRouter builds the full route table.
func (s *Server) NewRouter() *mux.Router {
	r := mux.NewRouter()
	r.Use(logRequest(s.Log))

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	auth := requireAuth(s.Verifier, s.Log)

	plan := r.PathPrefix("/plan").Subrouter()
	plan.Use(auth)
	plan.HandleFunc("", s.handlePlan).Methods(http.MethodPost)

	ws := r.PathPrefix("/ws").Subrouter()
	ws.Use(auth)
	ws.HandleFunc("/plan", s.handleWSPlan)

	voice := r.PathPrefix("/voice").Subrouter()
	voice.Use(auth)
	voice.HandleFunc("/synthesize", s.handleSynthesize).Methods(http.MethodPost)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	var req PlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Prompt == "" {
		http.Error(w, "prompt is required", http.StatusBadRequest)
		return
	}

	profile := userProfileFromContext(r.Context())
	runID := uuid.NewString()

	engine, _, err := s.Engines.New(emit.NewNullEmitter())
	if err != nil {
		s.Log.Error().Err(err).Msg("build engine")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	final, err := engine.Run(r.Context(), runID, initialState(req, profile))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.Log.Warn().Err(err).Str("run_id", runID).Msg("plan run timed out")
			http.Error(w, "pipeline timed out", http.StatusGatewayTimeout)
			return
		}
		s.Log.Error().Err(err).Str("run_id", runID).Msg("plan run failed")
		http.Error(w, "planning failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toPlanResponse(final))
}

func (s *Server) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text    string `json:"text"`
		VoiceID string `json:"voice_id,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}

	audio, err := s.TTS.Synthesize(r.Context(), req.Text, req.VoiceID)
	if err != nil {
		if errors.Is(err, tts.ErrUnavailable) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadGateway)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = audio.Close() }()

	w.Header().Set("Content-Type", "audio/mpeg")
	_, _ = io.Copy(w, audio)
}
