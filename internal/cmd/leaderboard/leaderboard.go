// Package leaderboard parses leaderboard service flags and launches the service.
package leaderboard

import (
	"context"
	"flag"
	"fmt"
	"strconv"
	"strings"

	entrypoint "github.com/louisbranch/echochambers/internal/platform/cmd"
	"github.com/louisbranch/echochambers/internal/platform/timeouts"
	server "github.com/louisbranch/echochambers/internal/services/leaderboard/app"
)

// Config holds leaderboard command configuration.
type Config struct {
	Port           int    `env:"PORT" envDefault:"3000"`
	Backend        string `env:"ECHO_CHAMBERS_LEADERBOARD_BACKEND" envDefault:"file"`
	Path           string `env:"ECHO_CHAMBERS_LEADERBOARD_PATH" envDefault:"leaderboard.json"`
	DBPath         string `env:"ECHO_CHAMBERS_LEADERBOARD_DB_PATH" envDefault:"data/leaderboard.db"`
	HealthPort     int    `env:"ECHO_CHAMBERS_HEALTH_PORT" envDefault:"0"`
	MaxConnections int    `env:"ECHO_CHAMBERS_MAX_CONNECTIONS" envDefault:"0"`
}

// ParseConfig parses the process environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	return ParseConfigFrom(fs, args, nil)
}

// ParseConfigFrom parses environment and flags into Config. A nil environment
// reads the process environment.
func ParseConfigFrom(fs *flag.FlagSet, args []string, environment map[string]string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg, environment); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The leaderboard HTTP server port")
	fs.StringVar(&cfg.Backend, "backend", cfg.Backend, "Storage backend (file or sqlite)")
	fs.StringVar(&cfg.Path, "path", cfg.Path, "Leaderboard JSON record path")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "Leaderboard SQLite database path")
	fs.IntVar(&cfg.HealthPort, "health-port", cfg.HealthPort, "gRPC health port (0 disables)")
	fs.IntVar(&cfg.MaxConnections, "max-connections", cfg.MaxConnections, "Concurrent HTTP connection limit (0 is unlimited)")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	switch c.Backend {
	case server.BackendFile, server.BackendSQLite:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.HealthPort < 0 || c.HealthPort > 65535 {
		return fmt.Errorf("invalid health port %d", c.HealthPort)
	}
	if c.MaxConnections < 0 {
		return fmt.Errorf("max connections must be non-negative")
	}
	return nil
}

// ServerConfig maps command configuration onto the server lifecycle.
func (c Config) ServerConfig() server.Config {
	cfg := server.Config{
		HTTPAddr:       ":" + strconv.Itoa(c.Port),
		Backend:        c.Backend,
		FilePath:       c.Path,
		DBPath:         c.DBPath,
		MaxConnections: c.MaxConnections,
	}
	if c.HealthPort > 0 {
		cfg.HealthAddr = ":" + strconv.Itoa(c.HealthPort)
	}
	return cfg
}

// Run starts the leaderboard HTTP service.
func Run(ctx context.Context, cfg Config) error {
	options := entrypoint.RunOptions{ShutdownTimeout: timeouts.Shutdown}
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceLeaderboard, options, func(ctx context.Context) error {
		return server.Run(ctx, cfg.ServerConfig())
	})
}
