// Package server wires the leaderboard store, HTTP routes and health probe
// into one process lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/louisbranch/echochambers/internal/platform/timeouts"
	"github.com/louisbranch/echochambers/internal/services/leaderboard/api/httpapi"
	"github.com/louisbranch/echochambers/internal/services/leaderboard/board"
	"github.com/louisbranch/echochambers/internal/services/leaderboard/storage"
	"github.com/louisbranch/echochambers/internal/services/leaderboard/storage/jsonfile"
	leaderboardsqlite "github.com/louisbranch/echochambers/internal/services/leaderboard/storage/sqlite"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/netutil"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// Storage backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// healthServiceName is the gRPC health service reported for the leaderboard.
const healthServiceName = "echochambers.leaderboard"

// Config defines the inputs for the leaderboard process.
type Config struct {
	HTTPAddr          string
	HealthAddr        string
	Backend           string
	FilePath          string
	DBPath            string
	MaxConnections    int
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Server hosts the leaderboard HTTP API and optional gRPC health probe.
type Server struct {
	shutdownTimeout time.Duration
	httpListener    net.Listener
	httpServer      *http.Server
	healthListener  net.Listener
	grpcServer      *grpc.Server
	health          *health.Server
	records         storage.RecordStore
}

// NewServer opens storage, initializes the record and binds listeners.
func NewServer(ctx context.Context, config Config) (*Server, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	httpAddr := strings.TrimSpace(config.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	if config.ReadHeaderTimeout <= 0 {
		config.ReadHeaderTimeout = timeouts.ReadHeader
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = timeouts.Shutdown
	}

	records, err := openRecordStore(config)
	if err != nil {
		return nil, err
	}
	leaderboard, err := board.New(records)
	if err != nil {
		_ = records.Close()
		return nil, err
	}
	if err := leaderboard.Initialize(ctx); err != nil {
		_ = records.Close()
		return nil, fmt.Errorf("initialize leaderboard: %w", err)
	}

	s := &Server{
		shutdownTimeout: config.ShutdownTimeout,
		records:         records,
	}

	listener, err := net.Listen("tcp", httpAddr)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("listen on %s: %w", httpAddr, err)
	}
	if config.MaxConnections > 0 {
		listener = netutil.LimitListener(listener, config.MaxConnections)
	}
	s.httpListener = listener
	s.httpServer = &http.Server{
		Handler:           otelhttp.NewHandler(httpapi.NewHandler(leaderboard), "leaderboard"),
		ReadHeaderTimeout: config.ReadHeaderTimeout,
		IdleTimeout:       timeouts.Idle,
	}

	if healthAddr := strings.TrimSpace(config.HealthAddr); healthAddr != "" {
		healthListener, err := net.Listen("tcp", healthAddr)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("listen on %s: %w", healthAddr, err)
		}
		s.healthListener = healthListener
		s.grpcServer = grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
		s.health = health.NewServer()
		grpc_health_v1.RegisterHealthServer(s.grpcServer, s.health)
		s.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
		s.health.SetServingStatus(healthServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	}

	return s, nil
}

// Run creates and serves a leaderboard server until the context ends.
func Run(ctx context.Context, config Config) error {
	server, err := NewServer(ctx, config)
	if err != nil {
		return fmt.Errorf("init leaderboard server: %w", err)
	}
	defer server.Close()

	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve leaderboard: %w", err)
	}
	return nil
}

// Addr returns the HTTP listener address.
func (s *Server) Addr() string {
	if s == nil || s.httpListener == nil {
		return ""
	}
	return s.httpListener.Addr().String()
}

// HealthAddr returns the gRPC health listener address, if enabled.
func (s *Server) HealthAddr() string {
	if s == nil || s.healthListener == nil {
		return ""
	}
	return s.healthListener.Addr().String()
}

// ListenAndServe serves until the context ends, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil || s.httpServer == nil {
		return errors.New("leaderboard server is nil")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	serveErr := make(chan error, 2)
	log.Printf("leaderboard server listening on %s", s.Addr())
	go func() {
		serveErr <- s.httpServer.Serve(s.httpListener)
	}()
	if s.grpcServer != nil {
		log.Printf("leaderboard health listening on %s", s.HealthAddr())
		go func() {
			if err := s.grpcServer.Serve(s.healthListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				serveErr <- fmt.Errorf("serve gRPC health: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		return s.shutdown()
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		_ = s.shutdown()
		return fmt.Errorf("serve http: %w", err)
	}
}

func (s *Server) shutdown() error {
	if s.health != nil {
		s.health.Shutdown()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	err := s.httpServer.Shutdown(shutdownCtx)
	if s.grpcServer != nil {
		s.grpcServer.GracefulStop()
	}
	if err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

// Close releases listeners and storage.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.health != nil {
		s.health.Shutdown()
	}
	if s.grpcServer != nil {
		s.grpcServer.Stop()
	}
	if s.healthListener != nil {
		_ = s.healthListener.Close()
	}
	if s.httpServer != nil {
		_ = s.httpServer.Close()
	}
	if s.httpListener != nil {
		_ = s.httpListener.Close()
	}
	if s.records != nil {
		if err := s.records.Close(); err != nil {
			log.Printf("close leaderboard store: %v", err)
		}
	}
}

func openRecordStore(config Config) (storage.RecordStore, error) {
	switch backend := strings.ToLower(strings.TrimSpace(config.Backend)); backend {
	case "", BackendFile:
		store, err := jsonfile.Open(config.FilePath)
		if err != nil {
			return nil, fmt.Errorf("open leaderboard file store: %w", err)
		}
		return store, nil
	case BackendSQLite:
		if err := ensureParentDir(config.DBPath); err != nil {
			return nil, err
		}
		store, err := leaderboardsqlite.Open(config.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open leaderboard sqlite store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}
