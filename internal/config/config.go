// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// SessionTTL is the fixed lifetime of an issued session cookie. The gateway
// never renews a credential silently; re-authentication is the only refresh.
const SessionTTL = 24 * time.Hour

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	DBPath      string
	LogFile     string

	AgentAPIURL string
	AgentName   string

	Identity IdentityConfig
	Stream   StreamConfig

	// RevocationSweepInterval controls how often expired denylist rows are purged.
	RevocationSweepInterval time.Duration
}

// IdentityConfig configures the identity-provider REST client.
type IdentityConfig struct {
	BaseURL          string
	APIKey           string
	AdminHeaderValue string
	RequestTimeout   time.Duration
}

// StreamConfig bounds the SSE reassembly buffer.
type StreamConfig struct {
	// MaxBufferBytes is the largest number of bytes the reassembler will hold
	// without seeing a newline before discarding the buffer.
	MaxBufferBytes int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	maxBuffer := getEnvInt("STREAM_MAX_BUFFER_BYTES", 1<<20)
	if maxBuffer <= 0 {
		maxBuffer = 1 << 20
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		DBPath:      getEnv("DB_PATH", "./data/promoreels.db"),
		LogFile:     getEnv("LOG_FILE", ""),
		AgentAPIURL: getEnv("AGENT_API_URL", "http://localhost:8000"),
		AgentName:   getEnv("AGENT_NAME", "movie_maker_agent"),
		Identity: IdentityConfig{
			BaseURL:          getEnv("IDENTITY_BASE_URL", "https://identitytoolkit.googleapis.com"),
			APIKey:           getEnv("IDENTITY_WEB_API_KEY", ""),
			AdminHeaderValue: getEnv("ADMIN_HEADER_VALUE", ""),
			RequestTimeout:   getEnvDuration("IDENTITY_REQUEST_TIMEOUT", 10*time.Second),
		},
		Stream: StreamConfig{
			MaxBufferBytes: maxBuffer,
		},
		RevocationSweepInterval: getEnvDuration("REVOCATION_SWEEP_INTERVAL", 10*time.Minute),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.AgentAPIURL == "" {
		return fmt.Errorf("AGENT_API_URL cannot be empty")
	}
	if c.AgentName == "" {
		return fmt.Errorf("AGENT_NAME cannot be empty")
	}
	if c.Identity.BaseURL == "" {
		return fmt.Errorf("IDENTITY_BASE_URL cannot be empty")
	}
	if c.Stream.MaxBufferBytes <= 0 {
		return fmt.Errorf("STREAM_MAX_BUFFER_BYTES must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// AllowedOrigins returns the CORS origins derived from FRONTEND_URL.
// An empty FRONTEND_URL (development) allows any origin.
func (c *Config) AllowedOrigins() []string {
	if c.FrontendURL == "" {
		return []string{"*"}
	}
	parts := strings.Split(c.FrontendURL, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			origins = append(origins, p)
		}
	}
	return origins
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
