package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// App
	Port string
	Env  string

	// Neo4j
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string

	// Capture
	BookmarksURL    string
	CookiesFile     string
	NavigateTimeout time.Duration
	SettleDelay     time.Duration
	ScrollPixels    int

	// Collector
	StagnationThreshold  int
	MaxPassesFull        int
	MaxPassesIncremental int
	SeenIDCapacity       int

	// Sync state
	StateFile string

	// X API (enrichment)
	XAPIBaseURL     string
	XBearerToken    string
	EnrichBudget    int // requests per 15-minute window
	EnrichBatchSize int

	// Embeddings (OpenAI-compatible)
	EmbeddingAPIKey     string
	EmbeddingBaseURL    string
	EmbeddingModel      string
	EmbeddingDimensions int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		Env:             getEnv("ENV", "development"),
		Neo4jURI:        getEnv("NEO4J_URI", "bolt://localhost:7687"),
		Neo4jUser:       getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword:   getEnv("NEO4J_PASSWORD", "password"),
		BookmarksURL:    getEnv("BOOKMARKS_URL", "https://x.com/i/bookmarks"),
		CookiesFile:     getEnv("COOKIES_FILE", "cookies.json"),
		NavigateTimeout: time.Duration(getEnvInt("NAVIGATE_TIMEOUT_MS", 30000)) * time.Millisecond,
		SettleDelay:     time.Duration(getEnvInt("SETTLE_DELAY_MS", 2000)) * time.Millisecond,
		ScrollPixels:    getEnvInt("SCROLL_PIXELS", 2000),

		StagnationThreshold:  getEnvInt("STAGNATION_THRESHOLD", 15),
		MaxPassesFull:        getEnvInt("MAX_PASSES_FULL", 500),
		MaxPassesIncremental: getEnvInt("MAX_PASSES_INCREMENTAL", 50),
		SeenIDCapacity:       getEnvInt("SEEN_ID_CAPACITY", 1000),

		StateFile: getEnv("STATE_FILE", "state.json"),

		XAPIBaseURL:     getEnv("X_API_BASE_URL", "https://api.twitter.com/2"),
		XBearerToken:    getEnv("X_BEARER_TOKEN", ""),
		EnrichBudget:    getEnvInt("ENRICH_BUDGET_PER_15MIN", 300),
		EnrichBatchSize: getEnvInt("ENRICH_BATCH_SIZE", 100),

		EmbeddingAPIKey:     getEnv("EMBEDDING_API_KEY", ""),
		EmbeddingBaseURL:    getEnv("EMBEDDING_API_BASE", "https://api.openai.com/v1"),
		EmbeddingModel:      getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingDimensions: getEnvInt("EMBEDDING_DIMENSIONS", 1536),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	if c.Neo4jURI == "" {
		return fmt.Errorf("NEO4J_URI is required")
	}
	if c.Neo4jUser == "" {
		return fmt.Errorf("NEO4J_USER is required")
	}
	if c.Neo4jPassword == "" {
		return fmt.Errorf("NEO4J_PASSWORD is required")
	}
	if c.BookmarksURL == "" {
		return fmt.Errorf("BOOKMARKS_URL is required")
	}
	if c.StagnationThreshold <= 0 {
		return fmt.Errorf("STAGNATION_THRESHOLD must be positive")
	}
	if c.EnrichBatchSize <= 0 || c.EnrichBatchSize > 100 {
		return fmt.Errorf("ENRICH_BATCH_SIZE must be between 1 and 100")
	}
	// X bearer token and embedding key are optional; without them the
	// pipeline degrades to browser-only capture and no vectors.
	return nil
}

// EnrichmentEnabled returns true when an X API bearer token is configured
func (c *Config) EnrichmentEnabled() bool {
	return c.XBearerToken != ""
}

// EmbeddingsEnabled returns true when an embedding API key is configured
func (c *Config) EmbeddingsEnabled() bool {
	return c.EmbeddingAPIKey != ""
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}
