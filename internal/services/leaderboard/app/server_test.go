package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

func TestNewServerRequiresHTTPAddress(t *testing.T) {
	_, err := NewServer(context.Background(), Config{FilePath: filepath.Join(t.TempDir(), "scores.json")})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestNewServerRejectsUnknownBackend(t *testing.T) {
	_, err := NewServer(context.Background(), Config{HTTPAddr: "127.0.0.1:0", Backend: "redis"})
	if err == nil || !strings.Contains(err.Error(), "redis") {
		t.Fatalf("err = %v, want unknown backend error", err)
	}
}

func TestNewServerCreatesRecordFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "leaderboard.json")
	srv, err := NewServer(context.Background(), Config{HTTPAddr: "127.0.0.1:0", FilePath: path})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	defer srv.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read record: %v", err)
	}
	if !strings.Contains(string(data), `"scores": []`) {
		t.Fatalf("record = %s, want empty scores", data)
	}
}

func TestListenAndServeRequiresServer(t *testing.T) {
	var srv *Server
	if err := srv.ListenAndServe(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	srv.Close()
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	srv := newTestServer(t, Config{FilePath: filepath.Join(t.TempDir(), "leaderboard.json")})
	ctx, cancel := context.WithCancel(context.Background())
	done := serve(t, ctx, srv)
	cancel()
	waitServe(t, done)
}

func TestServerRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		config func(dir string) Config
	}{
		{
			name: "file",
			config: func(dir string) Config {
				return Config{Backend: BackendFile, FilePath: filepath.Join(dir, "leaderboard.json")}
			},
		},
		{
			name: "sqlite",
			config: func(dir string) Config {
				return Config{Backend: BackendSQLite, DBPath: filepath.Join(dir, "data", "leaderboard.db")}
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTestServer(t, tc.config(t.TempDir()))
			ctx, cancel := context.WithCancel(context.Background())
			done := serve(t, ctx, srv)
			t.Cleanup(func() {
				cancel()
				waitServe(t, done)
			})

			base := "http://" + srv.Addr()
			resp, err := http.Post(base+"/api/scores", "application/json", strings.NewReader(`{"name":"Ann","score":50.9,"playerId":"p1"}`))
			if err != nil {
				t.Fatalf("post score: %v", err)
			}
			var submit struct {
				Success bool  `json:"success"`
				Rank    int   `json:"rank"`
				Entry   entry `json:"entry"`
			}
			decodeBody(t, resp, http.StatusOK, &submit)
			if !submit.Success || submit.Rank != 1 || submit.Entry.Score != 50 {
				t.Fatalf("submit = %+v", submit)
			}

			resp, err = http.Get(base + "/api/scores")
			if err != nil {
				t.Fatalf("get scores: %v", err)
			}
			var top []entry
			decodeBody(t, resp, http.StatusOK, &top)
			if len(top) != 1 || top[0].Name != "Ann" {
				t.Fatalf("top = %+v", top)
			}

			resp, err = http.Get(base + "/api/scores/player/p1")
			if err != nil {
				t.Fatalf("get player best: %v", err)
			}
			var best entry
			decodeBody(t, resp, http.StatusOK, &best)
			if best.PlayerID != "p1" || best.Score != 50 {
				t.Fatalf("best = %+v", best)
			}
		})
	}
}

func TestServerReportsHealth(t *testing.T) {
	srv := newTestServer(t, Config{
		HealthAddr: "127.0.0.1:0",
		FilePath:   filepath.Join(t.TempDir(), "leaderboard.json"),
	})
	if srv.HealthAddr() == "" {
		t.Fatal("expected health address")
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := serve(t, ctx, srv)
	t.Cleanup(func() {
		cancel()
		waitServe(t, done)
	})

	conn, err := grpc.NewClient(srv.HealthAddr(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial health server: %v", err)
	}
	t.Cleanup(func() {
		if closeErr := conn.Close(); closeErr != nil {
			t.Fatalf("close gRPC connection: %v", closeErr)
		}
	})

	checkCtx, checkCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer checkCancel()
	resp, err := grpc_health_v1.NewHealthClient(conn).Check(checkCtx, &grpc_health_v1.HealthCheckRequest{Service: healthServiceName})
	if err != nil {
		t.Fatalf("health check: %v", err)
	}
	if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
		t.Fatalf("status = %v, want SERVING", resp.GetStatus())
	}
}

func TestServerLimitsConnections(t *testing.T) {
	srv := newTestServer(t, Config{
		MaxConnections: 1,
		FilePath:       filepath.Join(t.TempDir(), "leaderboard.json"),
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := serve(t, ctx, srv)
	t.Cleanup(func() {
		cancel()
		waitServe(t, done)
	})

	resp, err := http.Get("http://" + srv.Addr() + "/up")
	if err != nil {
		t.Fatalf("get up: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK || strings.TrimSpace(string(body)) != "OK" {
		t.Fatalf("up = %d %q", resp.StatusCode, body)
	}
}

type entry struct {
	Name     string `json:"name"`
	Score    int64  `json:"score"`
	PlayerID string `json:"playerId"`
	Date     string `json:"date"`
}

func newTestServer(t *testing.T, config Config) *Server {
	t.Helper()
	config.HTTPAddr = "127.0.0.1:0"
	srv, err := NewServer(context.Background(), config)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(srv.Close)
	return srv
}

func serve(t *testing.T, ctx context.Context, srv *Server) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() {
		done <- srv.ListenAndServe(ctx)
	}()
	return done
}

func waitServe(t *testing.T, done <-chan error) {
	t.Helper()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for server shutdown")
	}
}

func decodeBody(t *testing.T, resp *http.Response, wantStatus int, target any) {
	t.Helper()
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, want %d: %s", resp.StatusCode, wantStatus, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}
