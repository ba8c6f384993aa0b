// Package domain defines leaderboard entries and the rules that shape them.
package domain

import (
	"encoding/json"
	"math"
	"slices"
	"strings"
	"time"

	apperrors "github.com/louisbranch/echochambers/internal/platform/errors"
)

const (
	// MaxNameRunes caps a sanitized display name.
	MaxNameRunes = 15
	// MaxStoredEntries caps the durable record.
	MaxStoredEntries = 100
	// TopScoresLimit is the size of the public top window.
	TopScoresLimit = 10

	// DateLayout renders entry dates in UTC with exactly three fractional digits.
	DateLayout = "2006-01-02T15:04:05.000Z07:00"
)

var (
	// ErrInvalidData rejects submissions with missing or malformed fields.
	ErrInvalidData = apperrors.New(apperrors.CodeScoreInvalidData, "invalid score submission")
	// ErrNameRequired rejects names that sanitize to nothing.
	ErrNameRequired = apperrors.New(apperrors.CodeScoreNameRequired, "name is required")
)

// ScoreEntry is one persisted score submission.
type ScoreEntry struct {
	Name     string    `json:"name"`
	Score    int64     `json:"score"`
	PlayerID string    `json:"playerId"`
	Date     time.Time `json:"date"`
}

// MarshalJSON writes Date with DateLayout so every stored and served entry
// carries millisecond digits, including trailing zeros.
func (e ScoreEntry) MarshalJSON() ([]byte, error) {
	type plainEntry ScoreEntry
	return json.Marshal(struct {
		plainEntry
		Date string `json:"date"`
	}{
		plainEntry: plainEntry(e),
		Date:       e.Date.UTC().Format(DateLayout),
	})
}

// SubmitInput is a decoded submission before validation.
//
// Pointer fields distinguish "absent" from zero values.
type SubmitInput struct {
	Name     *string  `json:"name"`
	Score    *float64 `json:"score"`
	PlayerID *string  `json:"playerId"`
}

// NewSubmitInput builds an input with every field present.
func NewSubmitInput(name string, score float64, playerID string) SubmitInput {
	return SubmitInput{Name: &name, Score: &score, PlayerID: &playerID}
}

// NewEntry validates input and builds the entry to store at time now.
func NewEntry(input SubmitInput, now time.Time) (ScoreEntry, error) {
	if input.Name == nil || *input.Name == "" {
		return ScoreEntry{}, ErrInvalidData
	}
	if input.PlayerID == nil || *input.PlayerID == "" {
		return ScoreEntry{}, ErrInvalidData
	}
	score, ok := FloorScore(input.Score)
	if !ok {
		return ScoreEntry{}, ErrInvalidData
	}
	name := SanitizeName(*input.Name)
	if name == "" {
		return ScoreEntry{}, ErrNameRequired
	}
	return ScoreEntry{
		Name:     name,
		Score:    score,
		PlayerID: *input.PlayerID,
		Date:     Timestamp(now),
	}, nil
}

// SanitizeName trims whitespace, keeps the first MaxNameRunes runes and
// removes angle brackets, in that order.
func SanitizeName(name string) string {
	name = strings.TrimSpace(name)
	if runes := []rune(name); len(runes) > MaxNameRunes {
		name = string(runes[:MaxNameRunes])
	}
	return strings.Map(func(r rune) rune {
		if r == '<' || r == '>' {
			return -1
		}
		return r
	}, name)
}

// FloorScore floors value toward negative infinity. It reports false for a
// missing, non-finite, or out-of-range value.
func FloorScore(value *float64) (int64, bool) {
	if value == nil {
		return 0, false
	}
	floored := math.Floor(*value)
	if math.IsNaN(floored) || math.IsInf(floored, 0) {
		return 0, false
	}
	// float64(math.MaxInt64) rounds up to 2^63, which does not fit.
	if floored < math.MinInt64 || floored >= math.MaxInt64 {
		return 0, false
	}
	return int64(floored), true
}

// Timestamp normalizes t to UTC with millisecond precision, the resolution
// the durable record stores.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// SortByScore orders entries by score, highest first. Equal scores keep their
// existing relative order.
func SortByScore(entries []ScoreEntry) {
	slices.SortStableFunc(entries, func(a, b ScoreEntry) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})
}

// Rank appends entry, sorts, truncates to MaxStoredEntries and returns the
// resulting collection.
func Rank(entries []ScoreEntry, entry ScoreEntry) []ScoreEntry {
	next := make([]ScoreEntry, 0, len(entries)+1)
	next = append(next, entries...)
	next = append(next, entry)
	SortByScore(next)
	if len(next) > MaxStoredEntries {
		next = next[:MaxStoredEntries]
	}
	return next
}

// RankOf returns the 1-based position of the first entry matching entry's
// player, score and date, or 0 when it is not present.
func RankOf(entries []ScoreEntry, entry ScoreEntry) int {
	for i, candidate := range entries {
		if candidate.PlayerID == entry.PlayerID &&
			candidate.Score == entry.Score &&
			candidate.Date.Equal(entry.Date) {
			return i + 1
		}
	}
	return 0
}

// Top returns at most limit entries, highest score first. entries is not
// modified.
func Top(entries []ScoreEntry, limit int) []ScoreEntry {
	sorted := slices.Clone(entries)
	SortByScore(sorted)
	if limit >= 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	if sorted == nil {
		sorted = []ScoreEntry{}
	}
	return sorted
}

// BestFor returns the highest-scoring entry for playerID.
func BestFor(entries []ScoreEntry, playerID string) (ScoreEntry, bool) {
	var (
		best  ScoreEntry
		found bool
	)
	for _, entry := range entries {
		if entry.PlayerID != playerID {
			continue
		}
		if !found || entry.Score > best.Score {
			best = entry
			found = true
		}
	}
	return best, found
}
