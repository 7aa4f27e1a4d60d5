package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/codememory-mcp/internal/indexer"
	"github.com/dshills/codememory-mcp/internal/relevance"
)

var (
	flagThreshold    float64
	flagIncludeFiles bool
)

var relevantCmd = &cobra.Command{
	Use:   "relevant <file> [path]",
	Short: "Show the project memory relevant to one file",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(args[1:], func(a *app) error {
			target, err := indexer.RelPath(a.root, args[0])
			if err != nil {
				return err
			}
			pm, err := a.indexer.LoadProjectMemory(cmd.Context(), a.root)
			if err != nil {
				return fmt.Errorf("load project memory (run index first): %w", err)
			}

			policy := a.cfg.Relevance
			if cmd.Flags().Changed("threshold") {
				policy.Threshold = flagThreshold
			}
			if err := policy.Validate(); err != nil {
				return err
			}

			indexer.RelevanceQueries.Inc()
			return printJSON(relevance.NewEngine(*pm, policy).Score(target))
		})
	},
}

var memoryCmd = &cobra.Command{
	Use:   "memory [path]",
	Short: "Print the latest project memory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(args, func(a *app) error {
			pm, err := a.indexer.LoadProjectMemory(cmd.Context(), a.root)
			if err != nil {
				return fmt.Errorf("load project memory (run index first): %w", err)
			}
			if !flagIncludeFiles {
				pm.Files = nil
			}
			return printJSON(pm)
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status [path]",
	Short: "Show index statistics for a project",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(args, func(a *app) error {
			if a.store == nil {
				pm, err := a.indexer.LoadProjectMemory(cmd.Context(), a.root)
				if err != nil {
					return fmt.Errorf("load project memory (run index first): %w", err)
				}
				fmt.Printf("Project: %s (json backend)\n", a.root)
				fmt.Printf("  Files:   %d\n", pm.FileCount)
				fmt.Printf("  Symbols: %d unique\n", pm.UniqueSymbolCount)
				fmt.Printf("  Memory:  %d open items, %d links\n", len(pm.OpenItems), len(pm.Links))
				return nil
			}

			project, err := a.store.GetProject(cmd.Context(), a.root)
			if err != nil {
				return fmt.Errorf("project %s (run index first): %w", a.root, err)
			}
			status, err := a.store.GetStatus(cmd.Context(), project.ID)
			if err != nil {
				return err
			}
			fmt.Printf("Project: %s\n", project.RootPath)
			fmt.Printf("  Last run:  %s at %s\n", project.LastRunID, project.LastIndexedAt.Format("2006-01-02 15:04:05"))
			fmt.Printf("  Files:     %d\n", status.FilesCount)
			for lang, n := range status.Languages {
				fmt.Printf("    %-12s %d\n", lang, n)
			}
			fmt.Printf("  Symbols:   %d\n", status.SymbolsCount)
			fmt.Printf("  Imports:   %d\n", status.ImportsCount)
			fmt.Printf("  Chunks:    %d\n", status.ChunksCount)
			fmt.Printf("  Snapshots: %d\n", status.SnapshotsCount)
			fmt.Printf("  Size:      %.2f MB\n", status.IndexSizeMB)
			return nil
		})
	},
}

func init() {
	relevantCmd.Flags().Float64Var(&flagThreshold, "threshold", relevance.DefaultPolicy().Threshold, "minimum relevance score")
	memoryCmd.Flags().BoolVar(&flagIncludeFiles, "files", false, "include per-file memories")
	rootCmd.AddCommand(relevantCmd, memoryCmd, statusCmd)
}
