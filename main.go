// Package main fetches a sample parameterised query and decodes its rows into
// typed records. Credentials and the query id come from the environment or .env.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"time"

	"dune-client/internal/config"
	"dune-client/internal/domain"
	"dune-client/internal/orchestrator"
	"dune-client/internal/session"
	"dune-client/internal/transport"
)

const sampleSQL = `select
    '{{TextParam}}' as text_field,
    {{IntParam}} as number_field,
    '{{DateParam}}'::timestamptz as date_field,
    encode(hash, 'hex') as block_hash,
    number,
    (base_fee_per_gas * gas_used) / 1e18 as tx_fees,
    time
from ethereum.blocks
order by number desc
limit 5`

// blockRecord is one decoded sample row.
type blockRecord struct {
	BlockHash string
	Number    int64
	TxFees    float64
	Time      time.Time
}

func parseBlockRecord(r domain.Record) (blockRecord, error) {
	number, err := strconv.ParseInt(r["number"], 10, 64)
	if err != nil {
		return blockRecord{}, fmt.Errorf("number: %w", err)
	}
	fees, err := strconv.ParseFloat(r["tx_fees"], 64)
	if err != nil {
		return blockRecord{}, fmt.Errorf("tx_fees: %w", err)
	}
	// service timestamps are UTC
	ts, err := time.Parse("2006-01-02T15:04:05+00:00", r["time"])
	if err != nil {
		return blockRecord{}, fmt.Errorf("time: %w", err)
	}
	return blockRecord{BlockHash: r["block_hash"], Number: number, TxFees: fees, Time: ts}, nil
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := run(logger); err != nil {
		logger.Error("sample fetch failed", "error", err, "code", domain.ErrorCode(err))
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	if err := config.LoadDotEnv(".env"); err != nil {
		return err
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}
	if cfg.QueryID <= 0 {
		return domain.ErrValidation("DUNE_QUERY_ID must be set")
	}

	var sess domain.SessionProvider
	if cfg.Token != "" {
		sess = session.StaticSession(cfg.Token)
	} else {
		sess, err = session.New(session.Config{
			Username:   cfg.Username,
			Password:   cfg.Password,
			BaseURL:    cfg.BaseURL,
			ReuseToken: cfg.ReuseToken,
			Timeout:    cfg.HTTPTimeout,
			Logger:     logger,
		})
		if err != nil {
			return err
		}
	}

	client := transport.NewClient(transport.Config{
		GraphURL:  cfg.GraphURL,
		Origin:    cfg.BaseURL,
		Timeout:   cfg.HTTPTimeout,
		RateLimit: cfg.RateLimitRPS,
		RateBurst: cfg.RateLimitBurst,
		Logger:    logger,
	})
	orch := orchestrator.New(client, sess, orchestrator.Options{
		MaxRetries:   cfg.MaxRetries,
		PollInterval: cfg.PingFrequency,
		PollTimeout:  cfg.PollTimeout,
		Logger:       logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rs, err := orch.Fetch(ctx, domain.Query{
		ID:      cfg.QueryID,
		Name:    "Sample Query",
		RawSQL:  sampleSQL,
		Network: domain.NetworkMainnet,
		Parameters: []domain.QueryParameter{
			domain.NewNumberParameter("IntParam", 10),
			domain.NewDateParameter("DateParam", time.Date(2022, 3, 10, 12, 30, 30, 0, time.UTC)),
			domain.NewTextParameter("TextParam", "aba"),
		},
	})
	if err != nil {
		return err
	}

	fmt.Printf("result %s (%d ms, generated %s)\n", rs.Meta.ID, rs.Meta.RuntimeMs, rs.Meta.GeneratedAtRaw)
	for _, row := range rs.Rows {
		rec, err := parseBlockRecord(row)
		if err != nil {
			return err
		}
		fmt.Printf("%d\t%s\t%.6f\t%s\n", rec.Number, rec.BlockHash, rec.TxFees, rec.Time.Format(time.RFC3339))
	}
	return nil
}
