package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/codememory-mcp/internal/docs"
	"github.com/dshills/codememory-mcp/internal/generator"
	"github.com/dshills/codememory-mcp/internal/indexer"
)

var flagDocumentation bool

var docsCmd = &cobra.Command{
	Use:   "docs [path]",
	Short: "Index, then write file summaries and the project summary and architecture",
	Long: `Index the project, summarize every file whose facts changed, and rebuild
the project summary and architecture documents when the project memory
changed. Documents are written below <output>/docs.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(args, func(a *app) error {
			client, err := generator.NewOllamaClient(a.cfg.Generator, a.logger)
			if err != nil {
				return err
			}

			stats, err := a.indexer.IndexProject(cmd.Context(), a.root, &indexer.Options{Force: flagForce})
			if err != nil {
				return err
			}

			g := docs.New(a.indexer, client, a.cfg.Relevance, a.logger)
			report, err := g.Generate(cmd.Context(), a.root, stats, docs.Options{
				Documentation: flagDocumentation,
				Force:         flagForce,
			})
			if err != nil {
				return err
			}
			if flagJSON {
				return printJSON(report)
			}

			fmt.Printf("Docs written to %s in %s\n", g.Dir(a.root), report.Duration.Round(time.Millisecond))
			fmt.Printf("  Summaries: %d generated, %d reused\n", report.SummariesGenerated, report.SummariesReused)
			if flagDocumentation {
				fmt.Printf("  Docs:      %d generated\n", report.DocsGenerated)
			}
			for _, path := range report.Skipped {
				fmt.Printf("  skipped:   %s\n", path)
			}
			if report.ProjectUnchanged {
				fmt.Println("  Project memory unchanged; summary and architecture left untouched")
			}
			return nil
		})
	},
}

func init() {
	docsCmd.Flags().BoolVar(&flagDocumentation, "documentation", false, "also write reference documentation per file")
	docsCmd.Flags().BoolVar(&flagForce, "force", false, "re-extract every file and regenerate every document")
	docsCmd.Flags().BoolVar(&flagJSON, "json", false, "print the report as JSON")
	rootCmd.AddCommand(docsCmd)
}
