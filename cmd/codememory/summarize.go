package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/codememory-mcp/internal/generator"
)

var flagTask string

var summarizeCmd = &cobra.Command{
	Use:   "summarize <file> [path]",
	Short: "Generate Markdown for one file with the configured model",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		task, err := generator.ParseTask(flagTask)
		if err != nil {
			return err
		}
		return withApp(args[1:], func(a *app) error {
			client, err := generator.NewOllamaClient(a.cfg.Generator, a.logger)
			if err != nil {
				return err
			}

			fc, err := a.indexer.FileContext(cmd.Context(), a.root, args[0], a.cfg.Relevance)
			if err != nil {
				return err
			}
			summary, err := generator.NewSummarizer(client, a.logger).SummarizeFile(cmd.Context(), task, fc.Memory, fc.Relevant, fc.Index)
			if err != nil {
				return err
			}
			a.logger.Info("generated", "file", summary.Path, "profile", summary.Profile,
				"memory_pressure", summary.Pressure, "duration_ms", summary.Duration.Milliseconds())
			fmt.Println(summary.Output)
			return nil
		})
	},
}

func init() {
	summarizeCmd.Flags().StringVar(&flagTask, "task", string(generator.TaskSummarize), "summarize or documentation (use the docs command for project documents)")
	rootCmd.AddCommand(summarizeCmd)
}
