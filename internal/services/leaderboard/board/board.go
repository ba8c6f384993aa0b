// Package board implements the leaderboard store: every operation is a
// read-modify-write cycle over one durable record.
package board

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	apperrors "github.com/louisbranch/echochambers/internal/platform/errors"
	"github.com/louisbranch/echochambers/internal/services/leaderboard/domain"
	"github.com/louisbranch/echochambers/internal/services/leaderboard/storage"
)

// ErrStorage reports that a submission could not be persisted.
var ErrStorage = apperrors.New(apperrors.CodeStorageWriteFailed, "failed to save score")

// SubmitResult is the outcome of a successful submission.
type SubmitResult struct {
	Success bool              `json:"success"`
	Rank    int               `json:"rank"`
	Entry   domain.ScoreEntry `json:"entry"`
}

// Ranked reports whether the submitted entry survived truncation.
func (r SubmitResult) Ranked() bool {
	return r.Rank > 0
}

// Store serves leaderboard reads and writes over a RecordStore.
type Store struct {
	records storage.RecordStore
	now     func() time.Time
	logf    func(format string, args ...any)

	// writeMu serializes submissions so concurrent read-modify-write
	// cycles cannot lose updates.
	writeMu sync.Mutex
}

// Option customizes a Store.
type Option func(*Store)

// WithClock sets the clock used to stamp new entries.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogf sets the logger for operator-visible faults.
func WithLogf(logf func(format string, args ...any)) Option {
	return func(s *Store) {
		if logf != nil {
			s.logf = logf
		}
	}
}

// New returns a Store backed by records.
func New(records storage.RecordStore, opts ...Option) (*Store, error) {
	if records == nil {
		return nil, errors.New("record store is required")
	}
	s := &Store{
		records: records,
		now:     time.Now,
		logf:    log.Printf,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Initialize ensures the durable record exists.
func (s *Store) Initialize(ctx context.Context) error {
	return s.records.Initialize(ctx)
}

// Load returns every stored entry. Any failure is logged and yields an
// empty collection.
func (s *Store) Load(ctx context.Context) []domain.ScoreEntry {
	if err := s.records.Initialize(ctx); err != nil {
		s.logf("leaderboard: initialize record: %v", err)
		return []domain.ScoreEntry{}
	}
	record, err := s.records.Read(ctx)
	if err != nil {
		s.logf("leaderboard: read record: %v", err)
		return []domain.ScoreEntry{}
	}
	return record.Scores
}

// Save overwrites the durable record. It reports false on failure.
func (s *Store) Save(ctx context.Context, entries []domain.ScoreEntry) bool {
	if err := s.records.Write(ctx, storage.Record{Scores: entries}); err != nil {
		s.logf("leaderboard: write record: %v", err)
		return false
	}
	return true
}

// TopScores returns the highest TopScoresLimit entries.
func (s *Store) TopScores(ctx context.Context) []domain.ScoreEntry {
	return domain.Top(s.Load(ctx), domain.TopScoresLimit)
}

// SubmitScore validates input, records the entry and reports its rank.
// Validation failures return domain.ErrInvalidData or domain.ErrNameRequired;
// persistence failures return ErrStorage.
func (s *Store) SubmitScore(ctx context.Context, input domain.SubmitInput) (SubmitResult, error) {
	entry, err := domain.NewEntry(input, s.now())
	if err != nil {
		return SubmitResult{}, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	entries := domain.Rank(s.Load(ctx), entry)
	if !s.Save(ctx, entries) {
		return SubmitResult{}, ErrStorage
	}
	return SubmitResult{
		Success: true,
		Rank:    domain.RankOf(entries, entry),
		Entry:   entry,
	}, nil
}

// PlayerBest returns the highest entry for playerID, if any.
func (s *Store) PlayerBest(ctx context.Context, playerID string) (domain.ScoreEntry, bool) {
	return domain.BestFor(s.Load(ctx), playerID)
}
