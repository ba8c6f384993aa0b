// Package storage defines persistence contracts for the leaderboard record.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/louisbranch/echochambers/internal/services/leaderboard/domain"
)

// ErrNotFound indicates the leaderboard record has not been initialized.
var ErrNotFound = errors.New("record not found")

// Record is the durable leaderboard document, rewritten wholesale on every
// mutation.
type Record struct {
	Scores []domain.ScoreEntry `json:"scores"`
}

// RecordStore persists the single leaderboard record.
type RecordStore interface {
	// Initialize creates an empty record when none exists. It is idempotent.
	Initialize(ctx context.Context) error
	// Read returns the stored record.
	Read(ctx context.Context) (Record, error)
	// Write replaces the stored record.
	Write(ctx context.Context, record Record) error
	// Close releases backend resources.
	Close() error
}

// EncodeRecord renders record as indented JSON for human inspection.
func EncodeRecord(record Record) ([]byte, error) {
	if record.Scores == nil {
		record.Scores = []domain.ScoreEntry{}
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode leaderboard record: %w", err)
	}
	return data, nil
}

// DecodeRecord parses a stored record. A missing scores array decodes as empty.
func DecodeRecord(data []byte) (Record, error) {
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return Record{}, fmt.Errorf("decode leaderboard record: %w", err)
	}
	if record.Scores == nil {
		record.Scores = []domain.ScoreEntry{}
	}
	return record, nil
}
