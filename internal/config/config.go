// Package config loads process configuration from the environment: a .env
// file for local development plus os.Getenv for the values that actually
// matter at runtime.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every environment-derived setting the server needs to wire
// its collaborators and transport: credentials for each external provider,
// plus the identity domain and audience.
type Config struct {
	Port string

	// LLMProvider selects which graph/model adapter backs the pipeline's
	// LLM calls: "anthropic" (default), "openai", or "google".
	LLMProvider string

	AnthropicAPIKey string
	AnthropicModel  string

	OpenAIAPIKey string
	OpenAIModel  string

	GoogleAPIKey string
	GoogleModel  string

	CatalogAAPIKey  string
	CatalogABaseURL string
	CatalogBAPIKey  string
	CatalogBBaseURL string

	WeatherAPIKey  string
	WeatherBaseURL string

	EventsAPIKey  string
	EventsBaseURL string

	TTSAPIKey  string
	TTSBaseURL string

	MemoryDBAddr     string
	MemoryDBName     string
	MemoryDBUser     string
	MemoryDBPassword string

	IdentityDomain   string
	IdentityAudience string

	// TunablesPath points at an optional YAML file of operator-adjustable
	// knobs (see Tunables); empty means "use DefaultTunables".
	TunablesPath string

	ShutdownTimeout time.Duration
}

// Load reads a .env file if present (ignored if missing, since production
// deployments set real environment variables instead) and then populates a
// Config from the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	shutdownTimeout, err := parseDurationEnv("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port: envOrDefault("PORT", "8080"),

		LLMProvider: envOrDefault("LLM_PROVIDER", "anthropic"),

		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:  envOrDefault("ANTHROPIC_MODEL", "claude-3-5-sonnet-20241022"),

		OpenAIAPIKey: os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:  envOrDefault("OPENAI_MODEL", "gpt-4o"),

		GoogleAPIKey: os.Getenv("GOOGLE_API_KEY"),
		GoogleModel:  envOrDefault("GOOGLE_MODEL", "gemini-2.5-flash"),

		CatalogAAPIKey:  os.Getenv("CATALOG_A_API_KEY"),
		CatalogABaseURL: os.Getenv("CATALOG_A_BASE_URL"),
		CatalogBAPIKey:  os.Getenv("CATALOG_B_API_KEY"),
		CatalogBBaseURL: os.Getenv("CATALOG_B_BASE_URL"),

		WeatherAPIKey:  os.Getenv("WEATHER_API_KEY"),
		WeatherBaseURL: envOrDefault("WEATHER_BASE_URL", "https://api.openweathermap.org/data/2.5/forecast"),

		EventsAPIKey:  os.Getenv("EVENTS_API_KEY"),
		EventsBaseURL: os.Getenv("EVENTS_BASE_URL"),

		TTSAPIKey:  os.Getenv("TTS_API_KEY"),
		TTSBaseURL: os.Getenv("TTS_BASE_URL"),

		MemoryDBAddr:     os.Getenv("MEMORY_DB_ADDR"),
		MemoryDBName:     envOrDefault("MEMORY_DB_NAME", "planner"),
		MemoryDBUser:     envOrDefault("MEMORY_DB_USER", "planner"),
		MemoryDBPassword: os.Getenv("MEMORY_DB_PASSWORD"),

		IdentityDomain:   os.Getenv("IDENTITY_DOMAIN"),
		IdentityAudience: os.Getenv("IDENTITY_AUDIENCE"),

		TunablesPath: os.Getenv("TUNABLES_PATH"),

		ShutdownTimeout: shutdownTimeout,
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDurationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return time.Duration(d) * time.Second, nil
}
