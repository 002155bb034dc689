// Package config handles client configuration and environment loading.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Defaults for values not set in the environment.
const (
	DefaultBaseURL       = "https://dune.xyz"
	DefaultGraphURL      = "https://core-hsr.dune.xyz/v1/graphql"
	DefaultMaxRetries    = 2
	DefaultPingFrequency = 5 * time.Second
	DefaultHTTPTimeout   = 30 * time.Second
	DefaultRateLimitRPS  = 5
	DefaultRateBurst     = 5
	DefaultHistoryDBPath = "dune_history.sqlite"
)

// Config holds the client configuration.
type Config struct {
	// Credentials. Token, when set, is used as a fixed bearer token and
	// the login handshake is skipped.
	Username string
	Password string
	Token    string

	// QueryID is the scratch query id that ad-hoc fetches are stored under.
	QueryID int64

	BaseURL  string
	GraphURL string

	MaxRetries    int           // full lifecycle restarts after the first attempt (default 2)
	PingFrequency time.Duration // pause between status polls (default 5s)
	PollTimeout   time.Duration // 0 waits for a result indefinitely
	HTTPTimeout   time.Duration // per-request timeout (default 30s)
	ReuseToken    bool          // reuse a session token until shortly before it expires

	// Rate limiting of outgoing GraphQL calls.
	RateLimitRPS   float64
	RateLimitBurst int

	HistoryDBPath string // SQLite file for run history; "off" disables it
	LogLevel      string // debug, info, warn, error (default "info")

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// HasCredentials reports whether a login or a fixed token is configured.
func (c *Config) HasCredentials() bool {
	return c.Token != "" || (c.Username != "" && c.Password != "")
}

// HistoryEnabled reports whether runs should be recorded.
func (c *Config) HistoryEnabled() bool {
	return c.HistoryDBPath != "" && !strings.EqualFold(c.HistoryDBPath, "off")
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Username:      os.Getenv("DUNE_USER"),
		Password:      os.Getenv("DUNE_PASSWORD"),
		Token:         os.Getenv("DUNE_TOKEN"),
		BaseURL:       strings.TrimRight(os.Getenv("DUNE_BASE_URL"), "/"),
		GraphURL:      os.Getenv("DUNE_GRAPH_URL"),
		HistoryDBPath: os.Getenv("HISTORY_DB_PATH"),
		LogLevel:      os.Getenv("LOG_LEVEL"),
		ReuseToken:    parseBoolEnvDefault("DUNE_REUSE_TOKEN", false),
		MaxRetries:    DefaultMaxRetries,
	}

	if v := os.Getenv("DUNE_QUERY_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("DUNE_QUERY_ID must be a positive integer, got %q", v)
		}
		cfg.QueryID = id
	}
	if v := os.Getenv("DUNE_MAX_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("DUNE_MAX_RETRIES must be a non-negative integer, got %q", v)
		}
		cfg.MaxRetries = n
	}

	var err error
	if cfg.PingFrequency, err = parseDurationEnv("DUNE_PING_FREQUENCY"); err != nil {
		return nil, err
	}
	if cfg.PollTimeout, err = parseDurationEnv("DUNE_POLL_TIMEOUT"); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = parseDurationEnv("DUNE_HTTP_TIMEOUT"); err != nil {
		return nil, err
	}

	// Rate limiting
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimitRPS = f
		} else {
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("ignoring invalid RATE_LIMIT_RPS %q", v))
		}
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitBurst = n
		} else {
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("ignoring invalid RATE_LIMIT_BURST %q", v))
		}
	}

	// Defaults
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.GraphURL == "" {
		cfg.GraphURL = DefaultGraphURL
	}
	if cfg.PingFrequency == 0 {
		cfg.PingFrequency = DefaultPingFrequency
	}
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = DefaultHTTPTimeout
	}
	if cfg.RateLimitRPS == 0 {
		cfg.RateLimitRPS = DefaultRateLimitRPS
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = DefaultRateBurst
	}
	if cfg.HistoryDBPath == "" {
		cfg.HistoryDBPath = DefaultHistoryDBPath
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if cfg.Token != "" && cfg.Username != "" {
		cfg.Warnings = append(cfg.Warnings, "both DUNE_TOKEN and DUNE_USER are set; using the fixed token and skipping login")
	}
	if cfg.Username != "" && cfg.Password == "" && cfg.Token == "" {
		cfg.Warnings = append(cfg.Warnings, "DUNE_USER is set but DUNE_PASSWORD is empty")
	}
	if cfg.PollTimeout > 0 && cfg.PollTimeout < cfg.PingFrequency {
		cfg.Warnings = append(cfg.Warnings, "DUNE_POLL_TIMEOUT is shorter than DUNE_PING_FREQUENCY; at most one poll will run")
	}

	return cfg, nil
}

// parseDurationEnv accepts Go durations ("1m30s") or a bare number of seconds.
func parseDurationEnv(key string) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, nil
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		if secs < 0 {
			return 0, fmt.Errorf("%s must not be negative, got %q", key, v)
		}
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%s must be a duration or a number of seconds, got %q", key, v)
	}
	return d, nil
}

func parseBoolEnvDefault(key string, defaultVal bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if v == "" {
		return defaultVal
	}
	if v == "0" || v == "false" || v == "no" || v == "off" {
		return false
	}
	if v == "1" || v == "true" || v == "yes" || v == "on" {
		return true
	}
	return defaultVal
}

// LoadDotEnv reads a .env file and sets any variables not already in the
// environment. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}
