// Package jsonfile stores the leaderboard record as a pretty-printed JSON file.
package jsonfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/louisbranch/echochambers/internal/services/leaderboard/storage"
)

const filePerm = 0o644

// Store persists the leaderboard record in one file.
type Store struct {
	path string
}

// Open returns a file-backed store for path, creating its parent directory.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	if dir := filepath.Dir(cleanPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	return &Store{path: cleanPath}, nil
}

// Path returns the file backing the store.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Initialize writes an empty record when the file does not exist.
func (s *Store) Initialize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.path == "" {
		return fmt.Errorf("storage is not configured")
	}
	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat leaderboard file: %w", err)
	}
	data, err := storage.EncodeRecord(storage.Record{})
	if err != nil {
		return err
	}
	// O_EXCL keeps a concurrent initializer from clobbering a fresh record.
	file, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil
		}
		return fmt.Errorf("create leaderboard file: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		_ = file.Close()
		return fmt.Errorf("write leaderboard file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close leaderboard file: %w", err)
	}
	return nil
}

// Read loads and parses the record file.
func (s *Store) Read(ctx context.Context) (storage.Record, error) {
	if err := ctx.Err(); err != nil {
		return storage.Record{}, err
	}
	if s == nil || s.path == "" {
		return storage.Record{}, fmt.Errorf("storage is not configured")
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return storage.Record{}, fmt.Errorf("read leaderboard file: %w", err)
	}
	return storage.DecodeRecord(data)
}

// Write atomically replaces the record file.
func (s *Store) Write(ctx context.Context, record storage.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.path == "" {
		return fmt.Errorf("storage is not configured")
	}
	data, err := storage.EncodeRecord(record)
	if err != nil {
		return err
	}
	return replaceFile(s.path, data)
}

// replaceFile writes data beside path and renames it into place, so readers
// see either the previous record or the new one.
func replaceFile(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp leaderboard file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpPath)
		}
	}()
	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write leaderboard file: %w", err)
	}
	if err = tmp.Chmod(filePerm); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod leaderboard file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close leaderboard file: %w", err)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace leaderboard file: %w", err)
	}
	return nil
}

// Close is a no-op; the file is opened per operation.
func (s *Store) Close() error {
	return nil
}

var _ storage.RecordStore = (*Store)(nil)
