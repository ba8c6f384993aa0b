// Package sqlite stores the leaderboard record as a single SQLite row.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/louisbranch/echochambers/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/echochambers/internal/services/leaderboard/storage"
	"github.com/louisbranch/echochambers/internal/services/leaderboard/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// recordID is the primary key of the only leaderboard row.
const recordID = 1

// Store persists the leaderboard record in SQLite.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

// Open opens a SQLite leaderboard store and applies embedded migrations.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(context.Background(), sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Initialize inserts an empty record when the row is missing.
func (s *Store) Initialize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	payload, err := storage.EncodeRecord(storage.Record{})
	if err != nil {
		return err
	}
	if _, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT OR IGNORE INTO leaderboard_records (id, payload, updated_at) VALUES (?, ?, ?)`,
		recordID,
		string(payload),
		s.now().UTC().UnixMilli(),
	); err != nil {
		return fmt.Errorf("initialize leaderboard record: %w", err)
	}
	return nil
}

// Read returns the stored record.
func (s *Store) Read(ctx context.Context) (storage.Record, error) {
	if err := ctx.Err(); err != nil {
		return storage.Record{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Record{}, fmt.Errorf("storage is not configured")
	}
	var payload string
	err := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT payload FROM leaderboard_records WHERE id = ?`,
		recordID,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Record{}, storage.ErrNotFound
		}
		return storage.Record{}, fmt.Errorf("read leaderboard record: %w", err)
	}
	return storage.DecodeRecord([]byte(payload))
}

// Write replaces the stored record.
func (s *Store) Write(ctx context.Context, record storage.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	payload, err := storage.EncodeRecord(record)
	if err != nil {
		return err
	}
	if _, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO leaderboard_records (id, payload, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   payload = excluded.payload,
		   updated_at = excluded.updated_at`,
		recordID,
		string(payload),
		s.now().UTC().UnixMilli(),
	); err != nil {
		return fmt.Errorf("write leaderboard record: %w", err)
	}
	return nil
}

var _ storage.RecordStore = (*Store)(nil)
