package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/codememory-mcp/internal/indexer"
)

var (
	flagForce bool
	flagJSON  bool
)

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Extract facts and rebuild the project memory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(args, func(a *app) error {
			stats, err := a.indexer.IndexProject(cmd.Context(), a.root, &indexer.Options{Force: flagForce})
			if err != nil {
				return err
			}
			if flagJSON {
				return printJSON(stats)
			}
			printStats(stats)
			return nil
		})
	},
}

func init() {
	indexCmd.Flags().BoolVar(&flagForce, "force", false, "re-extract every file and rewrite the snapshots")
	indexCmd.Flags().BoolVar(&flagJSON, "json", false, "print statistics as JSON")
	rootCmd.AddCommand(indexCmd)
}

func printStats(stats *indexer.Statistics) {
	fmt.Printf("Run %s done in %s\n", stats.RunID, stats.Duration.Round(time.Millisecond))
	fmt.Printf("  Files:   %d discovered, %d extracted, %d reused, %d failed\n",
		stats.FilesDiscovered, stats.FilesExtracted, stats.FilesReused, stats.FilesFailed)
	if len(stats.FilesPruned) > 0 {
		fmt.Printf("  Pruned:  %d\n", len(stats.FilesPruned))
	}
	fmt.Printf("  Symbols: %d extracted, %d unique\n", stats.SymbolsExtracted, stats.UniqueSymbols)
	fmt.Printf("  Chunks:  %d\n", stats.ChunksCreated)
	fmt.Printf("  Memory:  %d open items, %d links\n", stats.OpenItems, stats.Links)
	if stats.Unchanged {
		fmt.Println("  No changes; snapshots left untouched")
	} else {
		fmt.Printf("  Regenerate: %d files\n", len(stats.FilesToRegenerate))
	}
	for _, msg := range stats.ErrorMessages {
		fmt.Fprintf(os.Stderr, "  error: %s\n", msg)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
