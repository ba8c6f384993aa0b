// Package httpapi exposes the leaderboard store over JSON HTTP routes.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	apperrors "github.com/louisbranch/echochambers/internal/platform/errors"
	errori18n "github.com/louisbranch/echochambers/internal/platform/errors/i18n"
	"github.com/louisbranch/echochambers/internal/platform/httpx"
	platformi18n "github.com/louisbranch/echochambers/internal/platform/i18n"
	"github.com/louisbranch/echochambers/internal/services/leaderboard/board"
	"github.com/louisbranch/echochambers/internal/services/leaderboard/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/language"
)

const (
	// LangParam selects the response language for error messages.
	LangParam = "lang"

	maxRequestBodyBytes = 64 << 10
)

// Leaderboard is the store surface the routes depend on.
type Leaderboard interface {
	TopScores(ctx context.Context) []domain.ScoreEntry
	SubmitScore(ctx context.Context, input domain.SubmitInput) (board.SubmitResult, error)
	PlayerBest(ctx context.Context, playerID string) (domain.ScoreEntry, bool)
}

// Handler serves the leaderboard routes.
type Handler struct {
	leaderboard Leaderboard
	logf        func(format string, args ...any)
}

// NewHandler returns the leaderboard routes wrapped in request-id and panic
// recovery middleware.
func NewHandler(leaderboard Leaderboard) http.Handler {
	h := &Handler{leaderboard: leaderboard, logf: log.Printf}
	return httpx.Chain(h.routes(), httpx.RecoverPanic(), httpx.RequestID("lb"))
}

func (h *Handler) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /up", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.HandleFunc("GET /api/scores", h.handleTopScores)
	mux.HandleFunc("POST /api/scores", h.handleSubmitScore)
	mux.HandleFunc("GET /api/scores/player/{playerId}", h.handlePlayerBest)
	return mux
}

func (h *Handler) handleTopScores(w http.ResponseWriter, r *http.Request) {
	_ = httpx.WriteJSON(w, http.StatusOK, h.leaderboard.TopScores(r.Context()))
}

func (h *Handler) handleSubmitScore(w http.ResponseWriter, r *http.Request) {
	input, err := decodeSubmitInput(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.leaderboard.SubmitScore(r.Context(), input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	trace.SpanFromContext(r.Context()).SetAttributes(
		attribute.Int("leaderboard.rank", result.Rank),
		attribute.Bool("leaderboard.ranked", result.Ranked()),
	)
	_ = httpx.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handlePlayerBest(w http.ResponseWriter, r *http.Request) {
	best, ok := h.leaderboard.PlayerBest(r.Context(), r.PathValue("playerId"))
	if !ok {
		_ = httpx.WriteJSON(w, http.StatusOK, nil)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, best)
}

// decodeSubmitInput reads one JSON object. Malformed bodies and wrongly typed
// fields are reported as invalid data.
func decodeSubmitInput(w http.ResponseWriter, r *http.Request) (domain.SubmitInput, error) {
	var input domain.SubmitInput
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	if err := decoder.Decode(&input); err != nil {
		return domain.SubmitInput{}, apperrors.Wrap(apperrors.CodeScoreInvalidData, "decode submission", err)
	}
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return domain.SubmitInput{}, apperrors.New(apperrors.CodeScoreInvalidData, "trailing data after submission")
	}
	return input, nil
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperrors.CodeOf(err)
	if !code.IsValidation() {
		h.logf("leaderboard: %s %s request_id=%s: %v", r.Method, r.URL.Path, r.Header.Get(httpx.RequestIDHeader), err)
	}
	message := errori18n.Message(resolveTag(r), string(code))
	_ = httpx.WriteJSONError(w, code.HTTPStatus(), message)
}

// resolveTag picks the response language from ?lang= or Accept-Language.
func resolveTag(r *http.Request) language.Tag {
	if value := strings.TrimSpace(r.URL.Query().Get(LangParam)); value != "" {
		if tag, ok := platformi18n.ParseTag(value); ok {
			return tag
		}
	}
	return platformi18n.MatchAcceptLanguage(r.Header.Get("Accept-Language"))
}
