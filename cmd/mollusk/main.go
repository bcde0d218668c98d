package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/henondesigns/mollusk/internal/config"
	"github.com/henondesigns/mollusk/internal/graph"
	"github.com/henondesigns/mollusk/internal/mollusk"
	"github.com/henondesigns/mollusk/internal/repo"
)

var cfg *config.Config

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	rootCmd := &cobra.Command{
		Use:   "mollusk",
		Short: "Mollusk — digital object repository over a graph store",
		Long:  "Mollusk manages Items, their Files, and the FileCopies holding each file's content, persisting entities and their relationships in a graph-oriented store.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return nil
		},
	}

	rootCmd.AddCommand(
		initCmd(),
		pingCmd(),
		itemCmd(),
		fileCmd(),
		copyCmd(),
		relateCmd(),
		statsCmd(),
		healthCmd(),
	)

	rootCmd.SetContext(ctx)

	err := rootCmd.Execute()
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if cfg != nil && cfg.Logging.Level == "debug" {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg != nil && cfg.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func newStore(ctx context.Context) (graph.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		return graph.NewMemoryStore(), nil
	case config.BackendSQLite:
		return graph.NewSQLiteStore(ctx, cfg.Store.SQLitePath)
	case config.BackendNeo4j:
		return graph.NewNeo4jStore(ctx, graph.Neo4jConfig{
			URI:      cfg.Neo4j.URI,
			Username: cfg.Neo4j.Username,
			Password: cfg.Neo4j.Password,
			Database: cfg.Neo4j.Database,
		})
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// newService opens the store and a session over it. The returned cleanup
// closes both.
func newService(ctx context.Context, logger *slog.Logger) (*mollusk.Service, func(), error) {
	st, err := newStore(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to store: %w", err)
	}
	session := repo.New(st, repo.WithLogger(logger))
	cleanup := func() {
		session.Close()
		_ = st.Close(ctx)
	}
	return mollusk.NewService(session, logger), cleanup, nil
}
