package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"DUNE_USER", "DUNE_PASSWORD", "DUNE_TOKEN", "DUNE_QUERY_ID", "DUNE_BASE_URL", "DUNE_GRAPH_URL",
		"DUNE_MAX_RETRIES", "DUNE_PING_FREQUENCY", "DUNE_POLL_TIMEOUT", "DUNE_HTTP_TIMEOUT", "DUNE_REUSE_TOKEN",
		"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "HISTORY_DB_PATH", "LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, DefaultGraphURL, cfg.GraphURL)
	assert.Equal(t, 2, cfg.MaxRetries)
	assert.Equal(t, 5*time.Second, cfg.PingFrequency)
	assert.Zero(t, cfg.PollTimeout)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, float64(5), cfg.RateLimitRPS)
	assert.Equal(t, 5, cfg.RateLimitBurst)
	assert.Equal(t, DefaultHistoryDBPath, cfg.HistoryDBPath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Zero(t, cfg.QueryID)
	assert.False(t, cfg.HasCredentials())
	assert.True(t, cfg.HistoryEnabled())
}

func TestLoadFromEnv_AllVarsSet(t *testing.T) {
	clearEnv(t)
	t.Setenv("DUNE_USER", "alice")
	t.Setenv("DUNE_PASSWORD", "hunter2")
	t.Setenv("DUNE_QUERY_ID", "1234")
	t.Setenv("DUNE_BASE_URL", "http://localhost:9000/")
	t.Setenv("DUNE_GRAPH_URL", "http://localhost:9000/v1/graphql")
	t.Setenv("DUNE_MAX_RETRIES", "0")
	t.Setenv("DUNE_PING_FREQUENCY", "2")
	t.Setenv("DUNE_POLL_TIMEOUT", "10m")
	t.Setenv("DUNE_REUSE_TOKEN", "yes")
	t.Setenv("RATE_LIMIT_RPS", "0.5")
	t.Setenv("HISTORY_DB_PATH", "off")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "alice", cfg.Username)
	assert.Equal(t, int64(1234), cfg.QueryID)
	assert.Equal(t, "http://localhost:9000", cfg.BaseURL)
	assert.Equal(t, 0, cfg.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.PingFrequency)
	assert.Equal(t, 10*time.Minute, cfg.PollTimeout)
	assert.True(t, cfg.ReuseToken)
	assert.Equal(t, 0.5, cfg.RateLimitRPS)
	assert.False(t, cfg.HistoryEnabled())
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	assert.True(t, cfg.HasCredentials())
	assert.Empty(t, cfg.Warnings)
}

func TestLoadFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		key, value, errMsg string
	}{
		{"DUNE_QUERY_ID", "abc", "DUNE_QUERY_ID"},
		{"DUNE_QUERY_ID", "-3", "DUNE_QUERY_ID"},
		{"DUNE_MAX_RETRIES", "-1", "DUNE_MAX_RETRIES"},
		{"DUNE_PING_FREQUENCY", "soon", "DUNE_PING_FREQUENCY"},
		{"DUNE_POLL_TIMEOUT", "-5s", "DUNE_POLL_TIMEOUT"},
	}
	for _, tc := range tests {
		t.Run(tc.key+"="+tc.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tc.key, tc.value)
			_, err := LoadFromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errMsg)
		})
	}
}

func TestLoadFromEnv_Warnings(t *testing.T) {
	clearEnv(t)
	t.Setenv("DUNE_USER", "alice")
	t.Setenv("DUNE_TOKEN", "tok")
	t.Setenv("RATE_LIMIT_BURST", "many")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Len(t, cfg.Warnings, 2)
	assert.True(t, cfg.HasCredentials())
}

func TestSlogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"chatty":  slog.LevelInfo,
	}
	for in, want := range tests {
		cfg := &Config{LogLevel: in}
		assert.Equal(t, want, cfg.SlogLevel(), in)
	}
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "# comment\nDUNE_USER=from-file\nDUNE_PASSWORD=\"quoted secret\"\nDUNE_QUERY_ID=77\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	require.NoError(t, os.Unsetenv("DUNE_QUERY_ID"))
	require.NoError(t, os.Unsetenv("DUNE_USER"))
	require.NoError(t, os.Unsetenv("DUNE_PASSWORD"))
	t.Setenv("DUNE_PASSWORD", "from-env")
	require.NoError(t, LoadDotEnv(path))

	assert.Equal(t, "from-file", os.Getenv("DUNE_USER"))
	assert.Equal(t, "from-env", os.Getenv("DUNE_PASSWORD"), "existing variables win")
	assert.Equal(t, "77", os.Getenv("DUNE_QUERY_ID"))
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "nope.env")))
}
