// Package db opens the SQLite run-history store and applies its migrations.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
)

// Mode selects how a pool is configured.
type Mode string

// Pool modes. A writer pool holds a single connection so that concurrent
// recorders serialize inside the process instead of hitting SQLITE_BUSY.
const (
	ModeWrite Mode = "write"
	ModeRead  Mode = "read"
)

const (
	busyTimeoutMs   = "5000"
	defaultReadPool = 4
	pingTimeout     = 5 * time.Second
)

// OpenSQLite opens a *sql.DB pool for the SQLite file at path. maxOpen sizes
// read pools and is ignored for write pools; 0 picks the default of 4.
func OpenSQLite(path string, mode Mode, maxOpen int) (*sql.DB, error) {
	if mode != ModeRead && mode != ModeWrite {
		return nil, fmt.Errorf("invalid SQLite mode %q: must be %q or %q", mode, ModeRead, ModeWrite)
	}

	db, err := sql.Open("sqlite3", buildDSN(path, mode))
	if err != nil {
		return nil, fmt.Errorf("open sqlite (%s): %w", mode, err)
	}

	if mode == ModeWrite {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		if maxOpen <= 0 {
			maxOpen = defaultReadPool
		}
		db.SetMaxOpenConns(maxOpen)
		db.SetMaxIdleConns(maxOpen)
	}
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite (%s): %w", mode, err)
	}
	return db, nil
}

func buildDSN(path string, mode Mode) string {
	params := url.Values{}
	params.Set("_journal_mode", "WAL")
	params.Set("_busy_timeout", busyTimeoutMs)
	params.Set("_synchronous", "NORMAL")
	if mode == ModeWrite {
		params.Set("_txlock", "immediate")
	}
	return path + "?" + params.Encode()
}

// Store is a migrated history database with separate write and read pools.
type Store struct {
	Path  string
	Write *sql.DB
	Read  *sql.DB
}

// Open creates the parent directory if needed, opens both pools and brings
// the schema up to date.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}

	writeDB, err := OpenSQLite(path, ModeWrite, 0)
	if err != nil {
		return nil, err
	}
	if err := RunMigrations(writeDB); err != nil {
		_ = writeDB.Close()
		return nil, err
	}
	readDB, err := OpenSQLite(path, ModeRead, 0)
	if err != nil {
		_ = writeDB.Close()
		return nil, err
	}
	return &Store{Path: path, Write: writeDB, Read: readDB}, nil
}

// Close closes both pools.
func (s *Store) Close() error {
	rerr := s.Read.Close()
	if err := s.Write.Close(); err != nil {
		return err
	}
	return rerr
}
