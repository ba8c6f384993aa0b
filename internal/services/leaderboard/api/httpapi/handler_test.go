package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/louisbranch/echochambers/internal/services/leaderboard/board"
	"github.com/louisbranch/echochambers/internal/services/leaderboard/domain"
	"github.com/louisbranch/echochambers/internal/services/leaderboard/storage/jsonfile"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	records, err := jsonfile.Open(filepath.Join(t.TempDir(), "leaderboard.json"))
	if err != nil {
		t.Fatalf("open records: %v", err)
	}
	store, err := board.New(records, board.WithLogf(t.Logf))
	if err != nil {
		t.Fatalf("new board: %v", err)
	}
	return NewHandler(store)
}

func do(t *testing.T, handler http.Handler, method, target, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

type submitResponse struct {
	Success bool              `json:"success"`
	Rank    int               `json:"rank"`
	Entry   domain.ScoreEntry `json:"entry"`
}

func TestUpEndpoint(t *testing.T) {
	rr := do(t, newTestHandler(t), http.MethodGet, "/up", "")
	if rr.Code != http.StatusOK || strings.TrimSpace(rr.Body.String()) != "OK" {
		t.Fatalf("up = %d %q", rr.Code, rr.Body.String())
	}
}

func TestTopScoresEmptyIsArray(t *testing.T) {
	rr := do(t, newTestHandler(t), http.MethodGet, "/api/scores", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if got := strings.TrimSpace(rr.Body.String()); got != "[]" {
		t.Fatalf("body = %q, want []", got)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected request id header")
	}
}

func TestSubmitAndQueryScenario(t *testing.T) {
	handler := newTestHandler(t)

	rr := do(t, handler, http.MethodPost, "/api/scores", `{"name":"Ann","score":42.9,"playerId":"p1"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("submit Ann status = %d body=%s", rr.Code, rr.Body.String())
	}
	var ann submitResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &ann); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !ann.Success || ann.Rank != 1 || ann.Entry.Score != 42 || ann.Entry.Name != "Ann" {
		t.Fatalf("Ann response = %+v", ann)
	}
	if time.Since(ann.Entry.Date) > time.Minute {
		t.Fatalf("entry date = %v, want server time", ann.Entry.Date)
	}

	rr = do(t, handler, http.MethodPost, "/api/scores", `{"name":"Bob","score":50,"playerId":"p2"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("submit Bob status = %d", rr.Code)
	}

	rr = do(t, handler, http.MethodGet, "/api/scores", "")
	var top []domain.ScoreEntry
	if err := json.Unmarshal(rr.Body.Bytes(), &top); err != nil {
		t.Fatalf("decode top: %v", err)
	}
	if len(top) != 2 || top[0].Name != "Bob" || top[1].Name != "Ann" {
		t.Fatalf("top = %+v", top)
	}

	rr = do(t, handler, http.MethodGet, "/api/scores/player/p1", "")
	var best domain.ScoreEntry
	if err := json.Unmarshal(rr.Body.Bytes(), &best); err != nil {
		t.Fatalf("decode best: %v", err)
	}
	if best.Score != 42 || best.PlayerID != "p1" {
		t.Fatalf("best = %+v", best)
	}
}

func TestPlayerBestUnknownIsNull(t *testing.T) {
	rr := do(t, newTestHandler(t), http.MethodGet, "/api/scores/player/nobody", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if got := strings.TrimSpace(rr.Body.String()); got != "null" {
		t.Fatalf("body = %q, want null", got)
	}
}

func TestSubmitRejectsInvalidData(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{name: "empty name", body: `{"name":"","score":1,"playerId":"p1"}`, wantMsg: "Invalid data"},
		{name: "blank name", body: `{"name":"   ","score":1,"playerId":"p1"}`, wantMsg: "Name is required"},
		{name: "missing score", body: `{"name":"Ann","playerId":"p1"}`, wantMsg: "Invalid data"},
		{name: "null score", body: `{"name":"Ann","score":null,"playerId":"p1"}`, wantMsg: "Invalid data"},
		{name: "string score", body: `{"name":"Ann","score":"42","playerId":"p1"}`, wantMsg: "Invalid data"},
		{name: "missing player", body: `{"name":"Ann","score":1}`, wantMsg: "Invalid data"},
		{name: "numeric name", body: `{"name":7,"score":1,"playerId":"p1"}`, wantMsg: "Invalid data"},
		{name: "malformed json", body: `{"name":`, wantMsg: "Invalid data"},
		{name: "trailing data", body: `{"name":"Ann","score":1,"playerId":"p1"} {}`, wantMsg: "Invalid data"},
		{name: "oversized body", body: `{"name":"` + strings.Repeat("a", maxRequestBodyBytes) + `","score":1,"playerId":"p1"}`, wantMsg: "Invalid data"},
	}

	handler := newTestHandler(t)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := do(t, handler, http.MethodPost, "/api/scores", tc.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rr.Code)
			}
			var body map[string]string
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body["error"] != tc.wantMsg {
				t.Fatalf("error = %q, want %q", body["error"], tc.wantMsg)
			}
		})
	}

	rr := do(t, handler, http.MethodGet, "/api/scores", "")
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Fatalf("rejected submissions must not be stored: %s", rr.Body.String())
	}
}

func TestSubmitLocalizesErrors(t *testing.T) {
	handler := newTestHandler(t)
	body := `{"name":"  ","score":1,"playerId":"p1"}`

	rr := do(t, handler, http.MethodPost, "/api/scores?lang=pt-BR", body)
	if !strings.Contains(rr.Body.String(), "O nome é obrigatório") {
		t.Fatalf("lang param body = %s", rr.Body.String())
	}

	rr = do(t, handler, http.MethodPost, "/api/scores", body, "Accept-Language", "pt-BR,pt;q=0.9")
	if !strings.Contains(rr.Body.String(), "O nome é obrigatório") {
		t.Fatalf("accept-language body = %s", rr.Body.String())
	}
}

type failingLeaderboard struct{}

func (failingLeaderboard) TopScores(context.Context) []domain.ScoreEntry { return nil }

func (failingLeaderboard) SubmitScore(context.Context, domain.SubmitInput) (board.SubmitResult, error) {
	return board.SubmitResult{}, board.ErrStorage
}

func (failingLeaderboard) PlayerBest(context.Context, string) (domain.ScoreEntry, bool) {
	return domain.ScoreEntry{}, false
}

func TestSubmitStorageFailureIs500(t *testing.T) {
	var logged []string
	h := &Handler{leaderboard: failingLeaderboard{}, logf: func(format string, args ...any) {
		logged = append(logged, format)
	}}

	rr := do(t, h.routes(), http.MethodPost, "/api/scores", `{"name":"Ann","score":1,"playerId":"p1"}`)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "Failed to save score" {
		t.Fatalf("error = %q", body["error"])
	}
	if len(logged) != 1 {
		t.Fatalf("logged %d lines, want 1", len(logged))
	}
}

func TestUnsupportedMethod(t *testing.T) {
	rr := do(t, newTestHandler(t), http.MethodDelete, "/api/scores", "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rr.Code)
	}
	if allow := rr.Header().Get("Allow"); !strings.Contains(allow, http.MethodPost) {
		t.Fatalf("allow = %q", allow)
	}
}

func TestDecodeSubmitInputWrapsCause(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/scores", strings.NewReader("nope"))
	_, err := decodeSubmitInput(httptest.NewRecorder(), req)
	var syntaxErr *json.SyntaxError
	if !errors.As(err, &syntaxErr) {
		t.Fatalf("err = %v, want wrapped syntax error", err)
	}
}
