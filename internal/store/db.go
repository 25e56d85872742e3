// Package store persists orders and products in a single SQLite database.
//
// Order writes replace the order row and all of its article lines inside
// one transaction. Product writes never touch the favorite flag, which only
// SetFavorite changes.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/law-makers/cmhistory/internal/errs"
)

//go:embed schema.sql
var Schema string

var (
	// ErrNotFound is returned by point lookups and updates of unknown keys.
	ErrNotFound = errs.New(errs.CodeNotFound, "record not found", nil)
	// ErrMissingID rejects orders without an identifier.
	ErrMissingID = errs.New(errs.CodeValidation, "order has no identifier", nil)
)

const pragmas = "_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

// Store is the SQLite-backed persistence layer.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, errs.New(errs.CodeConfig, "database path is empty", nil)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, persistence("create database directory", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?"+pragmas)
	if err != nil {
		return nil, persistence("open database", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, persistence("ping database", err)
	}
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		db.Close()
		return nil, persistence("apply schema", err)
	}

	log.Debug().Str("path", path).Msg("Store opened")
	return &Store{db: db, now: time.Now}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func persistence(op string, err error) error {
	return errs.New(errs.CodePersistence, op, err)
}
