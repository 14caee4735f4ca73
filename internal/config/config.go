package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates application configuration values.
type Config struct {
	Store   StoreConfig
	Server  ServerConfig
	Auth    AuthConfig
	Ledger  LedgerConfig
	Logging LoggingConfig
}

// StoreConfig selects and configures the storage backend.
type StoreConfig struct {
	DataDir     string
	Namespace   string
	RemoteAddr  string // host:port of a propertydex-stored daemon
	DatabaseURL string // Postgres connection string ("real mode")
	DialTimeout time.Duration
	SealKey     []byte // optional AES-256 key; values are encrypted before they reach the backend
}

// ServerConfig governs the daemon's listeners.
type ServerConfig struct {
	TCPPort         string
	HTTPPort        string
	CORSOrigins     []string
	ShutdownTimeout time.Duration
}

// AuthConfig drives session token issuance.
type AuthConfig struct {
	JWTSecret  string
	JWTIssuer  string
	SessionTTL time.Duration
}

// LedgerConfig toggles settlement behaviours.
type LedgerConfig struct {
	RecomputeAveragePrice bool
	RecordTransactions    bool
	DefaultCurrency       string
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level         string
	Format        string // text|json
	IncludeCaller bool
}

const (
	defaultDataDir         = "./data"
	defaultNamespace       = "propertydex"
	defaultTCPPort         = "7101"
	defaultHTTPPort        = "7102"
	defaultDialTimeout     = 10 * time.Second
	defaultShutdownTimeout = 15 * time.Second
	defaultJWTSecret       = "propertydex-local-secret"
	defaultJWTIssuer       = "propertydex-store"
	defaultSessionTTL      = time.Hour
	defaultCurrency        = "USD"
	defaultLoggingLevel    = "info"
	defaultLoggingFormat   = "text"
)

// Load reads configuration from environment variables, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		Store: StoreConfig{
			DataDir:     valueOrDefault("PROPERTYDEX_DATA_DIR", defaultDataDir),
			Namespace:   valueOrDefault("PROPERTYDEX_NAMESPACE", defaultNamespace),
			RemoteAddr:  strings.TrimSpace(os.Getenv("PROPERTYDEX_STORE_ADDR")),
			DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
			DialTimeout: defaultDialTimeout,
		},
		Server: ServerConfig{
			TCPPort:         valueOrDefault("PROPERTYDEX_PORT", defaultTCPPort),
			HTTPPort:        valueOrDefault("PROPERTYDEX_HTTP_PORT", defaultHTTPPort),
			CORSOrigins:     parseCSV(valueOrDefault("CORS_ALLOWED_ORIGINS", "*")),
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Auth: AuthConfig{
			JWTSecret:  valueOrDefault("PROPERTYDEX_JWT_SECRET", defaultJWTSecret),
			JWTIssuer:  valueOrDefault("PROPERTYDEX_JWT_ISSUER", defaultJWTIssuer),
			SessionTTL: defaultSessionTTL,
		},
		Ledger: LedgerConfig{
			RecomputeAveragePrice: parseBoolWithDefault("LEDGER_RECOMPUTE_AVG_PRICE", false),
			RecordTransactions:    parseBoolWithDefault("LEDGER_RECORD_TRANSACTIONS", true),
			DefaultCurrency:       strings.ToUpper(valueOrDefault("LEDGER_DEFAULT_CURRENCY", defaultCurrency)),
		},
		Logging: LoggingConfig{
			Level:         valueOrDefault("LOG_LEVEL", defaultLoggingLevel),
			Format:        valueOrDefault("LOG_FORMAT", defaultLoggingFormat),
			IncludeCaller: parseBoolWithDefault("LOG_INCLUDE_CALLER", false),
		},
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"PROPERTYDEX_SESSION_TTL", &cfg.Auth.SessionTTL},
		{"PROPERTYDEX_DIAL_TIMEOUT", &cfg.Store.DialTimeout},
		{"PROPERTYDEX_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout},
	}
	for _, d := range durations {
		v := strings.TrimSpace(os.Getenv(d.key))
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		if parsed <= 0 {
			return Config{}, fmt.Errorf("%s must be positive, got %s", d.key, v)
		}
		*d.dst = parsed
	}

	if v := strings.TrimSpace(os.Getenv("PROPERTYDEX_SEAL_KEY")); v != "" {
		key, err := hex.DecodeString(v)
		if err != nil || len(key) != 32 {
			return Config{}, fmt.Errorf("PROPERTYDEX_SEAL_KEY must be 64 hex characters")
		}
		cfg.Store.SealKey = key
	}

	for _, p := range []struct{ key, value string }{
		{"PROPERTYDEX_PORT", cfg.Server.TCPPort},
		{"PROPERTYDEX_HTTP_PORT", cfg.Server.HTTPPort},
	} {
		if err := validatePort(p.key, p.value); err != nil {
			return Config{}, err
		}
	}

	return cfg, nil
}

// HTTPAddress returns the host:port pair for the HTTP server to bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%s", c.Server.HTTPPort)
}

func valueOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func parseBoolWithDefault(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		val, err := strconv.ParseBool(v)
		if err != nil {
			return fallback
		}
		return val
	}
	return fallback
}

func parseCSV(input string) []string {
	var out []string
	for _, part := range strings.Split(input, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

func validatePort(key, value string) error {
	port, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	if port < 0 || port > 65535 {
		return fmt.Errorf("port %d is out of range", port)
	}
	return nil
}
