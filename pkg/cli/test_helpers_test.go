package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"dune-client/internal/testutil"
)

const testUser = "TestUser"

// captureStdout redirects os.Stdout to a pipe and returns a function
// that restores stdout and returns the captured output.
// Uses a goroutine to read concurrently, avoiding pipe buffer deadlocks.
func captureStdout(t *testing.T) func() string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	os.Stdout = w

	var buf bytes.Buffer
	done := make(chan struct{})
	go func() {
		_, _ = buf.ReadFrom(r)
		close(done)
	}()

	return func() string {
		_ = w.Close()
		<-done
		os.Stdout = old
		return buf.String()
	}
}

// isolateEnv points HOME at a temp dir and clears every variable the CLI reads.
func isolateEnv(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, k := range []string{
		"DUNE_USER", "DUNE_PASSWORD", "DUNE_TOKEN", "DUNE_QUERY_ID", "DUNE_BASE_URL", "DUNE_GRAPH_URL",
		"DUNE_MAX_RETRIES", "DUNE_PING_FREQUENCY", "DUNE_POLL_TIMEOUT", "DUNE_HTTP_TIMEOUT", "DUNE_REUSE_TOKEN",
		"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "HISTORY_DB_PATH", "LOG_LEVEL", "DUNE_OUTPUT",
	} {
		t.Setenv(k, "")
	}
	t.Setenv("LOG_LEVEL", "error")
	return home
}

// fakeEnv starts a FakeDune and points the CLI at it with a fixed token.
func fakeEnv(t *testing.T) *testutil.FakeDune {
	t.Helper()
	home := isolateEnv(t)
	fake := testutil.NewFakeDune(t, testUser, "secret")
	t.Setenv("DUNE_USER", testUser)
	t.Setenv("DUNE_TOKEN", fake.IssueToken())
	t.Setenv("DUNE_BASE_URL", fake.BaseURL())
	t.Setenv("DUNE_GRAPH_URL", fake.GraphURL())
	t.Setenv("DUNE_PING_FREQUENCY", "5ms")
	t.Setenv("RATE_LIMIT_RPS", "1000")
	t.Setenv("RATE_LIMIT_BURST", "100")
	t.Setenv("HISTORY_DB_PATH", filepath.Join(home, "history.sqlite"))
	return fake
}

// runCLI executes the root command with args and returns what it printed to stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	cmd.SetArgs(append([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env")}, args...))
	cmd.SetIn(strings.NewReader(""))
	stop := captureStdout(t)
	err := cmd.Execute()
	return stop(), err
}

func mustRunCLI(t *testing.T, args ...string) string {
	t.Helper()
	out, err := runCLI(t, args...)
	require.NoError(t, err)
	return out
}
