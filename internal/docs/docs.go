package docs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dshills/codememory-mcp/internal/cache"
	"github.com/dshills/codememory-mcp/internal/generator"
	"github.com/dshills/codememory-mcp/internal/indexer"
	"github.com/dshills/codememory-mcp/internal/relevance"
	"github.com/dshills/codememory-mcp/pkg/types"
)

// Output layout below the indexer output directory
const (
	DirName              = "docs"
	FilesDirName         = "files"
	SummaryFileName      = "summary.md"
	ArchitectureFileName = "architecture.md"
	FileDocsFileName     = "docs.md"
)

var documentsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "codememory",
	Name:      "documents_generated_total",
	Help:      "Documents written by the docs generator, by task.",
}, []string{"task"})

// Options tunes one generation run
type Options struct {
	Documentation bool // Also write docs.md for each regenerated file
	Force         bool // Regenerate every document
}

// Report describes what a run wrote
type Report struct {
	SummariesGenerated int           `json:"summaries_generated"`
	SummariesReused    int           `json:"summaries_reused"`
	DocsGenerated      int           `json:"docs_generated"`
	Skipped            []string      `json:"skipped,omitempty"`
	ProjectUnchanged   bool          `json:"project_unchanged"`
	SummaryPath        string        `json:"summary_path,omitempty"`
	ArchitecturePath   string        `json:"architecture_path,omitempty"`
	Duration           time.Duration `json:"duration"`
}

// Generator writes per-file and project documents from the latest snapshots
type Generator struct {
	indexer    *indexer.Indexer
	summarizer *generator.Summarizer
	policy     relevance.Policy
	logger     *slog.Logger
}

// New creates a Generator
func New(idx *indexer.Indexer, client generator.Client, policy relevance.Policy, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		indexer:    idx,
		summarizer: generator.NewSummarizer(client, logger),
		policy:     policy,
		logger:     logger,
	}
}

// Dir returns the documentation directory of root
func (g *Generator) Dir(root string) string {
	return filepath.Join(g.indexer.OutputDir(root), DirName)
}

// FilePath returns where the document name for the source file rel lives
func (g *Generator) FilePath(root, rel, name string) string {
	return filepath.Join(g.Dir(root), FilesDirName, filepath.FromSlash(rel), name)
}

// Generate documents the project at rootPath after the index run described
// by stats. Files in stats.FilesToRegenerate get new documents; the others
// reuse what is on disk. Project documents are rebuilt only when the run
// changed the project memory or they are missing. A nil stats regenerates
// everything.
func (g *Generator) Generate(ctx context.Context, rootPath string, stats *indexer.Statistics, opts Options) (*Report, error) {
	start := time.Now()
	root, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, err
	}

	pm, err := g.indexer.LoadProjectMemory(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("load project memory: %w", err)
	}
	sources, err := g.indexer.LoadSourceIndex(root)
	if err != nil {
		return nil, fmt.Errorf("load source index: %w", err)
	}

	force := opts.Force || stats == nil
	regenerate := make(map[string]bool)
	if stats != nil {
		for _, p := range stats.FilesToRegenerate {
			regenerate[p] = true
		}
	}

	byPath := make(map[string]types.SourceIndex, len(sources))
	for _, si := range sources {
		byPath[si.Path] = si
	}
	engine := relevance.NewEngine(*pm, g.policy)

	files := append([]types.FileMemory(nil), pm.Files...)
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	report := &Report{}
	summaries := make([]generator.FileSummary, 0, len(files))
	for _, fm := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fresh := force || regenerate[fm.Path]
		rm := engine.RelevantFor(fm.Path)
		indexer.RelevanceQueries.Inc()
		si := byPath[fm.Path]

		summaryPath := g.FilePath(root, fm.Path, SummaryFileName)
		text, ok := readDocument(summaryPath)
		if ok && !fresh {
			report.SummariesReused++
		} else {
			text, ok, err = g.fileDocument(ctx, generator.TaskSummarize, fm, rm, si, summaryPath)
			if err != nil {
				return nil, err
			}
			if !ok {
				report.Skipped = append(report.Skipped, fm.Path)
				continue
			}
			report.SummariesGenerated++
		}
		summaries = append(summaries, generator.FileSummary{Path: fm.Path, Summary: text})

		if !opts.Documentation {
			continue
		}
		docsPath := g.FilePath(root, fm.Path, FileDocsFileName)
		if _, exists := readDocument(docsPath); exists && !fresh {
			continue
		}
		_, ok, err = g.fileDocument(ctx, generator.TaskDocumentation, fm, rm, si, docsPath)
		if err != nil {
			return nil, err
		}
		if ok {
			report.DocsGenerated++
		}
	}

	summaryPath := filepath.Join(g.Dir(root), SummaryFileName)
	architecturePath := filepath.Join(g.Dir(root), ArchitectureFileName)
	needsProject := stats == nil || stats.NeedsRegeneration
	if !force && !needsProject && fileExists(summaryPath) && fileExists(architecturePath) {
		report.ProjectUnchanged = true
		report.Duration = time.Since(start)
		g.logger.Info("project memory unchanged; project documents left untouched", "root", root)
		return report, nil
	}

	project := filepath.Base(root)
	if len(summaries) > 0 {
		if err := g.projectDocument(ctx, generator.TaskProjectSummary, project, pm, summaries, sources, summaryPath); err != nil {
			return nil, err
		}
		report.SummaryPath = summaryPath
	} else {
		g.logger.Warn("no file summaries; project summary skipped", "root", root)
	}
	if err := g.projectDocument(ctx, generator.TaskArchitecture, project, pm, summaries, sources, architecturePath); err != nil {
		return nil, err
	}
	report.ArchitecturePath = architecturePath

	report.Duration = time.Since(start)
	g.logger.Info("documentation generated",
		"root", root,
		"summaries_generated", report.SummariesGenerated,
		"summaries_reused", report.SummariesReused,
		"docs_generated", report.DocsGenerated,
		"skipped", len(report.Skipped),
		"duration_ms", report.Duration.Milliseconds())
	return report, nil
}

// fileDocument generates and writes one per-file document. ok is false when
// the file was skipped because the model refused or stayed unavailable.
func (g *Generator) fileDocument(ctx context.Context, task generator.Task, fm types.FileMemory, rm types.RelevantMemory, si types.SourceIndex, path string) (string, bool, error) {
	sum, err := g.summarizer.SummarizeFile(ctx, task, fm, rm, si)
	if skippable(err) {
		g.logger.Warn("generation skipped", "file", fm.Path, "task", task, "error", err)
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%s %s: %w", task, fm.Path, err)
	}
	if err := cache.WriteFile(path, []byte(sum.Output+"\n")); err != nil {
		return "", false, err
	}
	documentsGenerated.WithLabelValues(string(task)).Inc()
	g.logger.Debug("document written", "file", fm.Path, "task", task, "profile", sum.Profile,
		"duration_ms", sum.Duration.Milliseconds())
	return sum.Output, true, nil
}

func (g *Generator) projectDocument(ctx context.Context, task generator.Task, project string, pm *types.ProjectMemory, summaries []generator.FileSummary, sources []types.SourceIndex, path string) error {
	sum, err := g.summarizer.SummarizeProject(ctx, task, project, *pm, summaries, sources)
	if err != nil {
		return fmt.Errorf("%s: %w", task, err)
	}
	if err := cache.WriteFile(path, []byte(sum.Output+"\n")); err != nil {
		return err
	}
	documentsGenerated.WithLabelValues(string(task)).Inc()
	g.logger.Info("project document written", "task", task, "path", path,
		"duration_ms", sum.Duration.Milliseconds())
	return nil
}

func skippable(err error) bool {
	return err != nil && (errors.Is(err, generator.ErrRefused) || generator.IsTransient(err))
}

// readDocument returns the trimmed content of an existing, non-empty document
func readDocument(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	text := strings.TrimSpace(string(data))
	return text, text != ""
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
