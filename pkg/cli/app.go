package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"dune-client/internal/config"
	"dune-client/internal/db"
	"dune-client/internal/db/repository"
	"dune-client/internal/domain"
	"dune-client/internal/history"
	"dune-client/internal/orchestrator"
	"dune-client/internal/session"
	"dune-client/internal/transport"
)

type globalFlags struct {
	output    string
	profile   string
	envFile   string
	user      string
	token     string
	baseURL   string
	graphURL  string
	historyDB string
	verbose   bool
}

// app carries the resolved configuration and lazily built clients shared by
// all commands of one invocation.
type app struct {
	flags  globalFlags
	cfg    *config.Config
	logger *slog.Logger

	store   *db.Store
	history *history.Service
}

// init resolves configuration with precedence flag > env > profile > default.
func (a *app) init(cmd *cobra.Command) error {
	if err := config.LoadDotEnv(a.flags.envFile); err != nil {
		return err
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}

	ucfg, err := LoadUserConfig()
	if err != nil {
		ucfg = emptyUserConfig()
	}
	p, err := ucfg.ActiveProfile(a.flags.profile)
	if err != nil {
		return err
	}
	applyProfile(cfg, p)

	flags := cmd.Flags()
	if flags.Changed("user") {
		cfg.Username = a.flags.user
	}
	if flags.Changed("token") {
		cfg.Token = a.flags.token
	}
	if flags.Changed("base-url") {
		cfg.BaseURL = a.flags.baseURL
	}
	if flags.Changed("graph-url") {
		cfg.GraphURL = a.flags.graphURL
	}
	if flags.Changed("history-db") {
		cfg.HistoryDBPath = a.flags.historyDB
	}
	if !flags.Changed("output") {
		if v := os.Getenv("DUNE_OUTPUT"); v != "" {
			a.flags.output = v
		} else if p.Output != "" {
			a.flags.output = p.Output
		}
	}
	if err := validateOutputFormat(a.flags.output); err != nil {
		return err
	}

	level := cfg.SlogLevel()
	if a.flags.verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	for _, w := range cfg.Warnings {
		a.logger.Warn(w)
	}
	a.cfg = cfg
	return nil
}

// applyProfile fills values the environment left unset.
func applyProfile(cfg *config.Config, p Profile) {
	fill := func(env string, dst *string, v string) {
		if os.Getenv(env) == "" && v != "" {
			*dst = v
		}
	}
	fill("DUNE_USER", &cfg.Username, p.User)
	fill("DUNE_TOKEN", &cfg.Token, p.Token)
	fill("DUNE_BASE_URL", &cfg.BaseURL, p.BaseURL)
	fill("DUNE_GRAPH_URL", &cfg.GraphURL, p.GraphURL)
	fill("HISTORY_DB_PATH", &cfg.HistoryDBPath, p.HistoryDB)
	if os.Getenv("DUNE_QUERY_ID") == "" && p.QueryID > 0 {
		cfg.QueryID = p.QueryID
	}
}

func (a *app) sessionProvider() (domain.SessionProvider, error) {
	if a.cfg.Token != "" {
		return session.StaticSession(a.cfg.Token), nil
	}
	if a.cfg.Username == "" || a.cfg.Password == "" {
		return nil, domain.ErrValidation("no credentials: set DUNE_USER and DUNE_PASSWORD, or DUNE_TOKEN (see 'dune login')")
	}
	return session.New(session.Config{
		Username:   a.cfg.Username,
		Password:   a.cfg.Password,
		BaseURL:    a.cfg.BaseURL,
		ReuseToken: a.cfg.ReuseToken,
		Timeout:    a.cfg.HTTPTimeout,
		Logger:     a.logger,
	})
}

// orchestrator builds the query client. When record is set and history is
// enabled, finished fetches are written to the run history; a history store
// that cannot be opened is logged and skipped.
func (a *app) orchestrator(record bool) (*orchestrator.Orchestrator, error) {
	sess, err := a.sessionProvider()
	if err != nil {
		return nil, err
	}
	client := transport.NewClient(transport.Config{
		GraphURL:  a.cfg.GraphURL,
		Origin:    a.cfg.BaseURL,
		Timeout:   a.cfg.HTTPTimeout,
		RateLimit: a.cfg.RateLimitRPS,
		RateBurst: a.cfg.RateLimitBurst,
		Logger:    a.logger,
	})
	opts := orchestrator.Options{
		MaxRetries:   a.cfg.MaxRetries,
		PollInterval: a.cfg.PingFrequency,
		PollTimeout:  a.cfg.PollTimeout,
		Logger:       a.logger,
	}
	if record && a.cfg.HistoryEnabled() {
		h, err := a.runHistory()
		if err != nil {
			a.logger.Warn("run history disabled", "error", err)
		} else {
			opts.Recorder = h
		}
	}
	return orchestrator.New(client, sess, opts), nil
}

func (a *app) runHistory() (*history.Service, error) {
	if a.history != nil {
		return a.history, nil
	}
	if !a.cfg.HistoryEnabled() {
		return nil, domain.ErrValidation("run history is disabled (HISTORY_DB_PATH=off)")
	}
	store, err := db.Open(a.cfg.HistoryDBPath)
	if err != nil {
		return nil, fmt.Errorf("open run history: %w", err)
	}
	a.store = store
	a.history = history.NewService(repository.NewRunRepo(store.Write, store.Read), a.logger)
	return a.history, nil
}

func (a *app) sessionUser() (string, error) {
	if a.cfg.Username == "" {
		return "", domain.ErrValidation("a username is required: set DUNE_USER or --user")
	}
	return a.cfg.Username, nil
}

func (a *app) close() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	a.history = nil
	return err
}
