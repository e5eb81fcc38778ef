package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"expensehq.app/web/core/db"
)

type Config struct {
	OTel        OTelConfig
	Backend     BackendConfig
	Session     SessionConfig
	Env         string
	Port        string
	SiteURL     string
	DataBackend DataBackend
	DB          db.Config
}

// BackendConfig holds the two values the hosted service handle is built from.
type BackendConfig struct {
	URL     string
	AnonKey string
	Timeout time.Duration
}

type OTelConfig struct {
	Endpoint       string
	Headers        string
	ServiceName    string
	ServiceVersion string
}

type SessionConfig struct {
	RedisURL    string
	KeyPrefix   string
	TTL         time.Duration
	// IdleTimeout is how long a browser's in-process state outlives its last request.
	// The stored session is kept for TTL either way.
	IdleTimeout time.Duration
}

type DataBackend string

const (
	DataBackendREST     DataBackend = "rest"
	DataBackendPostgres DataBackend = "postgres"
)

// Load loads configuration from environment variables.
// In development, a .env file in the working directory is loaded first.
//
// A missing backend URL or key is not an error: the server starts and serves
// the remediation page instead.
func Load() (Config, error) {
	if getEnv("APP_ENV", "development") == "development" {
		_ = godotenv.Load(".env")
	}

	cfg := Config{
		Env:         getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		SiteURL:     strings.TrimRight(getEnv("SITE_URL", "http://localhost:8080"), "/"),
		DataBackend: DataBackend(strings.ToLower(getEnv("DATA_BACKEND", string(DataBackendREST)))),
		Backend: BackendConfig{
			URL:     firstEnv("SUPABASE_URL", "VITE_SUPABASE_URL"),
			AnonKey: firstEnv("SUPABASE_ANON_KEY", "VITE_SUPABASE_ANON_KEY"),
			Timeout: time.Duration(getEnvInt("BACKEND_TIMEOUT_SECONDS", 30)) * time.Second,
		},
		Session: SessionConfig{
			RedisURL:    getEnv("REDIS_URL", ""),
			KeyPrefix:   getEnv("SESSION_KEY_PREFIX", "expensehq:session:"),
			TTL:         time.Duration(getEnvInt("SESSION_TTL_HOURS", 7*24)) * time.Hour,
			IdleTimeout: time.Duration(getEnvInt("SESSION_IDLE_MINUTES", 30)) * time.Minute,
		},
		DB: db.Config{
			DSN:      getEnv("DATABASE_URL", ""),
			MaxConns: getEnvInt32("DB_MAX_CONNS", 10),
			MinConns: getEnvInt32("DB_MIN_CONNS", 2),
		},
		OTel: OTelConfig{
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:        getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "expensehq"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
		},
	}

	if cfg.DataBackend != DataBackendREST && cfg.DataBackend != DataBackendPostgres {
		return Config{}, &InvalidError{Key: "DATA_BACKEND", Value: string(cfg.DataBackend)}
	}

	if cfg.DataBackend == DataBackendPostgres && cfg.DB.DSN == "" {
		return Config{}, &InvalidError{Key: "DATABASE_URL", Value: "", Reason: "required when DATA_BACKEND=postgres"}
	}

	return cfg, nil
}

// InvalidError reports an environment value the server cannot start with.
type InvalidError struct {
	Key    string
	Value  string
	Reason string
}

func (e *InvalidError) Error() string {
	if e.Reason != "" {
		return e.Key + " " + e.Reason
	}
	return "invalid " + e.Key + ": " + strconv.Quote(e.Value)
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c OTelConfig) Enabled() bool {
	return c.Endpoint != ""
}

func (c SessionConfig) RedisEnabled() bool {
	return c.RedisURL != ""
}

// IsConfigured reports whether both the service URL and the anonymous key are present.
func (c BackendConfig) IsConfigured() bool {
	return strings.TrimSpace(c.URL) != "" && strings.TrimSpace(c.AnonKey) != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return value
		}
	}
	return ""
}

func getEnvInt32(key string, fallback int32) int32 {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(i)
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}
