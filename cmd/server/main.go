// Command server runs the activity-planning HTTP/WebSocket API.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Aahiro/deerhacks/graph"
	"github.com/Aahiro/deerhacks/graph/model"
	"github.com/Aahiro/deerhacks/graph/model/anthropic"
	"github.com/Aahiro/deerhacks/graph/model/google"
	"github.com/Aahiro/deerhacks/graph/model/openai"
	"github.com/Aahiro/deerhacks/internal/catalog"
	"github.com/Aahiro/deerhacks/internal/config"
	"github.com/Aahiro/deerhacks/internal/events"
	"github.com/Aahiro/deerhacks/internal/identity"
	"github.com/Aahiro/deerhacks/internal/llmclient"
	"github.com/Aahiro/deerhacks/internal/memory"
	"github.com/Aahiro/deerhacks/internal/planner"
	"github.com/Aahiro/deerhacks/internal/server"
	"github.com/Aahiro/deerhacks/internal/tts"
	"github.com/Aahiro/deerhacks/internal/weather"
)

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load configuration")
	}

	tunables, err := config.LoadTunables(cfg.TunablesPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load tunables")
	}

	registry := prometheus.NewRegistry()
	metrics := graph.NewPrometheusMetrics(registry)
	costs := graph.NewCostTracker("activity-planner", "USD")

	chatModel, modelName := newChatModel(cfg, log)
	llm := llmclient.New(chatModel, costs, modelName)

	var catalogA catalog.Provider
	if places, err := catalog.NewGooglePlaces(cfg.CatalogAAPIKey); err == nil {
		catalogA = places
	} else {
		log.Warn().Err(err).Msg("google places client unavailable, falling back to generic REST catalog")
		catalogA = catalog.NewGenericREST(cfg.CatalogABaseURL, cfg.CatalogAAPIKey)
	}
	catalogB := catalog.NewGenericREST(cfg.CatalogBBaseURL, cfg.CatalogBAPIKey)

	weatherProvider := weather.NewHTTPProvider(cfg.WeatherBaseURL, cfg.WeatherAPIKey)
	eventsProvider := events.NewHTTPProvider(cfg.EventsBaseURL, cfg.EventsAPIKey)

	var memStore memory.Store = memory.NoopStore{}
	if cfg.MemoryDBAddr != "" {
		memStore = memory.NewPostgresStore(cfg.MemoryDBAddr, cfg.MemoryDBName, cfg.MemoryDBUser, cfg.MemoryDBPassword)
	}

	rules := planner.NewRuleEngine(tunables.BudgetWeightBump)

	commander := planner.NewCommander(llm, memStore, rules, tunables.MemoryLookupK)
	scout := planner.NewScout(catalogA, catalogB)
	vibe := planner.NewVibeMatcher(llm)
	cost := planner.NewCostAnalyst()
	critic := planner.NewCritic(weatherProvider, eventsProvider, llm, memStore, tunables.EventsRadiusMeters)
	worker := planner.NewCostWorker()
	parallel := planner.NewParallelAnalysts(vibe, cost, critic, worker)
	synth := planner.NewSynthesizer(llm)

	verifier := identity.NewVerifier(cfg.IdentityDomain, cfg.IdentityAudience)
	synthesizer := tts.NewHTTPSynthesizer(cfg.TTSBaseURL, cfg.TTSAPIKey)

	srv := &server.Server{
		Engines: &server.EngineFactory{
			Commander: commander,
			Scout:     scout,
			Parallel:  parallel,
			Synth:     synth,
			Metrics:   metrics,
			Costs:     costs,
		},
		Verifier: verifier,
		TTS:      synthesizer,
		Log:      log,
	}

	router := srv.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("http server starting")
		serverErrors <- httpServer.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Fatal().Err(err).Msg("server error")

	case sig := <-shutdown:
		log.Info().Str("signal", sig.String()).Msg("shutdown initiated")

		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("graceful shutdown failed")
			if err := httpServer.Close(); err != nil {
				log.Error().Err(err).Msg("server close failed")
			}
		}

		log.Info().Msg("server stopped")
	}
}

// newChatModel picks the graph/model adapter named by cfg.LLMProvider. An
// unrecognized provider falls back to anthropic, matching the zero-value
// behavior of config.Load's own envOrDefault default.
func newChatModel(cfg config.Config, log zerolog.Logger) (model.ChatModel, string) {
	switch cfg.LLMProvider {
	case "openai":
		return openai.NewChatModel(cfg.OpenAIAPIKey, cfg.OpenAIModel), cfg.OpenAIModel
	case "google":
		return google.NewChatModel(cfg.GoogleAPIKey, cfg.GoogleModel), cfg.GoogleModel
	case "anthropic", "":
		return anthropic.NewChatModel(cfg.AnthropicAPIKey, cfg.AnthropicModel), cfg.AnthropicModel
	default:
		log.Warn().Str("llm_provider", cfg.LLMProvider).Msg("unrecognized llm provider, falling back to anthropic")
		return anthropic.NewChatModel(cfg.AnthropicAPIKey, cfg.AnthropicModel), cfg.AnthropicModel
	}
}
