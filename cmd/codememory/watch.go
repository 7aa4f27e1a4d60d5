package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/codememory-mcp/internal/indexer"
	"github.com/dshills/codememory-mcp/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Re-index the project whenever source files change",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(args, func(a *app) error {
			ctx := cmd.Context()

			if _, err := a.indexer.IndexProject(ctx, a.root, nil); err != nil {
				return err
			}

			reindex := func(ctx context.Context, paths []string) error {
				a.logger.Info("changes detected", "files", len(paths))
				stats, err := a.indexer.IndexProject(ctx, a.root, nil)
				if errors.Is(err, indexer.ErrIndexInProgress) {
					a.logger.Warn("index run already in progress; batch skipped", "files", len(paths))
					return nil
				}
				if err != nil {
					return err
				}
				a.logger.Info("re-indexed",
					"run_id", stats.RunID,
					"extracted", stats.FilesExtracted,
					"regenerate", len(stats.FilesToRegenerate),
					"duration_ms", stats.Duration.Milliseconds())
				return nil
			}

			debounce := a.cfg.Watch.Debounce
			if cmd.Flags().Changed("debounce") {
				debounce = flagDebounce
			}

			w, err := watch.New(a.root, a.indexer.Walker(), debounce, reindex, a.logger)
			if err != nil {
				return err
			}
			a.logger.Info("watching", "root", a.root, "debounce", debounce)
			return w.Run(ctx)
		})
	},
}

var flagDebounce time.Duration

func init() {
	watchCmd.Flags().DurationVar(&flagDebounce, "debounce", watch.DefaultDebounce, "quiet period before re-indexing")
	rootCmd.AddCommand(watchCmd)
}
