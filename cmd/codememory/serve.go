package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/dshills/codememory-mcp/internal/generator"
	"github.com/dshills/codememory-mcp/internal/mcp"
)

var flagMetricsAddr string

var serveCmd = &cobra.Command{
	Use:   "serve [path]",
	Short: "Run the MCP server on stdio",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(args, func(a *app) error {
			client, err := generator.NewOllamaClient(a.cfg.Generator, a.logger)
			if err != nil {
				return err
			}

			srv, err := mcp.NewServer(mcp.Options{
				Indexer:   a.indexer,
				Generator: client,
				Policy:    a.cfg.Relevance,
				Logger:    a.logger,
			})
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if flagMetricsAddr != "" {
				stop := startMetrics(flagMetricsAddr, a)
				defer stop()
			}

			a.logger.Info("MCP server ready, listening on stdio", "version", version, "driver", storageDriver(a))
			errCh := make(chan error, 1)
			go func() { errCh <- srv.Serve(ctx) }()

			select {
			case <-ctx.Done():
				a.logger.Info("shutting down")
				return nil
			case err := <-errCh:
				return err
			}
		})
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
	rootCmd.AddCommand(serveCmd)
}

// startMetrics serves /metrics and /health until the returned stop is called
func startMetrics(addr string, a *app) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"up"}`))
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	a.logger.Info("metrics server starting", "addr", addr)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server failed", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
}
