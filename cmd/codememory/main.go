// Command codememory indexes source trees into a project memory and serves
// it to MCP clients.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/codememory-mcp/internal/config"
	"github.com/dshills/codememory-mcp/internal/indexer"
	"github.com/dshills/codememory-mcp/internal/storage"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	flagConfig   string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:           "codememory",
	Short:         "Project memory for AI coding assistants",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default <project>/"+config.DefaultFileName+")")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// app bundles the components every command needs
type app struct {
	root    string
	cfg     *config.Config
	logger  *slog.Logger
	store   storage.Storage // nil with the json backend
	indexer *indexer.Indexer
}

// openApp resolves configuration for the project at root and opens storage
func openApp(root string) (*app, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Resolve(abs, flagConfig)
	if err != nil {
		return nil, err
	}
	if flagLogLevel != "" {
		if _, err := config.ParseLevel(flagLogLevel); err != nil {
			return nil, err
		}
		cfg.Log.Level = flagLogLevel
	}

	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	a := &app{root: abs, cfg: cfg, logger: logger}

	if cfg.Storage.Backend == config.BackendSQLite {
		dbPath, err := cfg.ResolvedDBPath()
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
		store, err := storage.NewSQLiteStorage(dbPath)
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
		a.store = store
		logger.Debug("storage opened", "path", dbPath, "driver", storage.DriverName)
	}

	a.indexer, err = indexer.New(a.store, indexer.Config{
		Workers:   cfg.Indexer.Workers,
		OutputDir: cfg.Indexer.OutputDir,
		Walker:    cfg.WalkerOptions(),
		Limits:    cfg.Memory,
		Chunking:  cfg.ChunkProfiles(),
		Logger:    logger,
	})
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) Close() error {
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

// projectArg returns the project root argument, defaulting to the working directory
func projectArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "."
}

// withApp opens the app for the project argument and closes it after fn
func withApp(args []string, fn func(a *app) error) error {
	a, err := openApp(projectArg(args))
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

