package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the complete application configuration. It is loaded
// once at startup and treated as immutable for the process lifetime.
type Config struct {
	Server        ServerConfig
	Database      *DatabaseConfig // Optional: attempt audit store. When nil, auditing is disabled.
	Providers     ProvidersConfig
	Auth          AuthConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL configuration for the attempt audit store.
type DatabaseConfig struct {
	ConnectionString string // From DATABASE_URL
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// AuthConfig holds gateway authentication configuration
type AuthConfig struct {
	// JWTSecret is the HMAC secret for bearer tokens. Empty disables auth.
	JWTSecret string
}

// ProvidersConfig holds the backend provider configurations
type ProvidersConfig struct {
	OpenAI OpenAIConfig
	Azure  AzureConfig
}

// OpenAIConfig holds the primary provider configuration
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// AzureConfig holds the secondary provider configuration. The secondary
// provider addresses models through per-family deployments and may expose
// several regional mirrors of the same deployments.
type AzureConfig struct {
	// APIType selects the secondary dialect ("azure"). Empty disables the
	// secondary provider entirely.
	APIType string

	BaseURL    string
	APIKey     string
	APIVersion string

	// Per-family deployment identifiers. A family with an empty identifier
	// is not provisioned on this provider.
	DeploymentGPT35   string
	DeploymentGPT4    string
	DeploymentGPT432K string

	// Pool holds the parsed regional mirrors; nil when AZURE_MULTI_REGION
	// is absent, empty, or malformed.
	Pool []RegionEndpoint

	// PoolRaw preserves the raw AZURE_MULTI_REGION value so callers can
	// report a malformed pool without failing startup.
	PoolRaw string
}

// RegionEndpoint is one (url, credential) pair of the regional pool.
type RegionEndpoint struct {
	URL    string
	APIKey string
}

// ObservabilityConfig holds logging configuration
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // json or text
}

// New creates a new Config instance by loading environment variables
func New() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load(".env")

	poolRaw := getEnv("AZURE_MULTI_REGION", "")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 180*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: loadDatabaseConfig(),
		Auth: AuthConfig{
			JWTSecret: getEnv("GATEWAY_JWT_SECRET", ""),
		},
		Providers: ProvidersConfig{
			OpenAI: OpenAIConfig{
				APIKey:  getEnv("OPENAI_API_KEY", ""),
				BaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
				Timeout: getEnvAsDuration("OPENAI_TIMEOUT", 120*time.Second),
			},
			Azure: AzureConfig{
				APIType:           getEnv("SECONDARY_API_TYPE", ""),
				BaseURL:           getEnv("AZURE_API_BASE", ""),
				APIKey:            getEnv("AZURE_API_KEY", ""),
				APIVersion:        getEnv("AZURE_API_VERSION", "2023-07-01-preview"),
				DeploymentGPT35:   getEnv("AZURE_DEPLOYMENT_GPT35", ""),
				DeploymentGPT4:    getEnv("AZURE_DEPLOYMENT_GPT4", ""),
				DeploymentGPT432K: getEnv("AZURE_DEPLOYMENT_GPT4_32K", ""),
				Pool:              ParseRegionPool(poolRaw),
				PoolRaw:           poolRaw,
			},
		},
		Observability: ObservabilityConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// ParseRegionPool parses the AZURE_MULTI_REGION value: a JSON array of
// [url, key] pairs. Any malformation (bad JSON, a pair that is not exactly
// two non-empty strings, or an empty array) yields nil so the caller
// degrades to the single-endpoint secondary configuration instead of
// crashing or silently skipping the secondary provider.
func ParseRegionPool(raw string) []RegionEndpoint {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	var pairs [][]string
	if err := json.Unmarshal([]byte(raw), &pairs); err != nil {
		return nil
	}
	if len(pairs) == 0 {
		return nil
	}

	pool := make([]RegionEndpoint, 0, len(pairs))
	for _, pair := range pairs {
		if len(pair) != 2 || pair[0] == "" || pair[1] == "" {
			return nil
		}
		pool = append(pool, RegionEndpoint{URL: pair[0], APIKey: pair[1]})
	}

	return pool
}

// PoolMalformed reports whether AZURE_MULTI_REGION was set but could not be
// parsed into a usable pool.
func (c *AzureConfig) PoolMalformed() bool {
	return strings.TrimSpace(c.PoolRaw) != "" && len(c.Pool) == 0
}

// Enabled reports whether the secondary provider is configured at all.
func (c *AzureConfig) Enabled() bool {
	return c.APIType != ""
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	// At least one backend credential is required in production
	if c.IsProduction() {
		if c.Providers.OpenAI.APIKey == "" && c.Providers.Azure.APIKey == "" {
			return fmt.Errorf("at least one backend provider must be configured in production")
		}
	}

	if c.Providers.Azure.Enabled() && c.Providers.Azure.APIType != "azure" {
		return fmt.Errorf("unsupported secondary provider type: %s", c.Providers.Azure.APIType)
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return c.ConnectionString
}

// LogString returns a safe string for logging (no password).
func (c *DatabaseConfig) LogString() string {
	u, err := url.Parse(c.ConnectionString)
	if err != nil {
		return "host=<from DATABASE_URL>"
	}
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "5432"
	}
	db := strings.TrimPrefix(u.Path, "/")
	return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
}

// loadDatabaseConfig loads the audit store config from DATABASE_URL.
// Returns nil when not set (auditing disabled).
func loadDatabaseConfig() *DatabaseConfig {
	dbURL := getEnv("DATABASE_URL", "")
	if dbURL == "" {
		return nil
	}
	return &DatabaseConfig{
		ConnectionString: dbURL,
		MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
