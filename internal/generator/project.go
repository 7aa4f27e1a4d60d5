package generator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dshills/codememory-mcp/pkg/types"
)

// Bounds of the project-level prompt inputs
const (
	DigestGlobalSymbols = 60
	DigestOpenItems     = 24
	DigestLinks         = 40
	PreviewChars        = 200
	FileSummaryChars    = 1200
)

// FileSummary is one generated per-file summary fed to the project summary
type FileSummary struct {
	Path    string `json:"path"`
	Summary string `json:"summary"`
}

// ProjectSummaryInput is the context of the project_summary task
type ProjectSummaryInput struct {
	Project           string        `json:"project"`
	FileCount         int           `json:"file_count"`
	UniqueSymbolCount int           `json:"unique_symbol_count"`
	Files             []FileSummary `json:"file_summaries"`
}

// DigestFile is the per-file line of a ProjectDigest
type DigestFile struct {
	Path        string         `json:"path"`
	Language    types.Language `json:"language"`
	LineCount   int            `json:"line_count"`
	ChunkCount  int            `json:"chunk_count"`
	SymbolCount int            `json:"symbol_count"`
	Preview     string         `json:"preview,omitempty"`
}

// ProjectDigest is the bounded project view used by the architecture task
type ProjectDigest struct {
	Project           string                `json:"project"`
	FileCount         int                   `json:"file_count"`
	UniqueSymbolCount int                   `json:"unique_symbol_count"`
	Files             []DigestFile          `json:"files"`
	GlobalSymbols     []types.GlobalSymbol  `json:"global_symbols"`
	OpenItems         []types.OpenItem      `json:"open_items"`
	Links             []types.CrossFileLink `json:"links"`
}

// BuildProjectDigest condenses the project memory and source index into a
// digest: one line per file with a preview of its first chunk, and the
// global symbols, open items and links clamped to the digest bounds.
func BuildProjectDigest(project string, pm types.ProjectMemory, sources []types.SourceIndex) ProjectDigest {
	byPath := make(map[string]*types.SourceIndex, len(sources))
	for i := range sources {
		byPath[sources[i].Path] = &sources[i]
	}

	files := make([]DigestFile, 0, len(pm.Files))
	for _, fm := range pm.Files {
		df := DigestFile{
			Path:        fm.Path,
			Language:    fm.Language,
			SymbolCount: fm.SymbolCount,
		}
		if si, ok := byPath[fm.Path]; ok {
			df.LineCount = si.LineCount
			df.ChunkCount = si.ChunkCount
			if len(si.Chunks) > 0 {
				df.Preview = truncateRunes(strings.TrimSpace(si.Chunks[0].Content), PreviewChars)
			}
		}
		files = append(files, df)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	return ProjectDigest{
		Project:           project,
		FileCount:         pm.FileCount,
		UniqueSymbolCount: pm.UniqueSymbolCount,
		Files:             files,
		GlobalSymbols:     headOf(pm.GlobalSymbols, DigestGlobalSymbols),
		OpenItems:         headOf(pm.OpenItems, DigestOpenItems),
		Links:             headOf(pm.Links, DigestLinks),
	}
}

// BuildProjectSummaryInput orders the file summaries by path and strips the
// disclaimer each of them carries
func BuildProjectSummaryInput(project string, pm types.ProjectMemory, summaries []FileSummary) ProjectSummaryInput {
	files := make([]FileSummary, 0, len(summaries))
	for _, fs := range summaries {
		text := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(fs.Summary), Disclaimer))
		if text == "" {
			continue
		}
		files = append(files, FileSummary{Path: fs.Path, Summary: truncateRunes(text, FileSummaryChars)})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	return ProjectSummaryInput{
		Project:           project,
		FileCount:         pm.FileCount,
		UniqueSymbolCount: pm.UniqueSymbolCount,
		Files:             files,
	}
}

// SummarizeProject generates a project-scoped document. project_summary is
// built from the per-file summaries, architecture from the project digest.
func (s *Summarizer) SummarizeProject(ctx context.Context, task Task, project string, pm types.ProjectMemory, summaries []FileSummary, sources []types.SourceIndex) (*Summary, error) {
	var input any
	switch task {
	case TaskProjectSummary:
		input = BuildProjectSummaryInput(project, pm, summaries)
	case TaskArchitecture:
		input = BuildProjectDigest(project, pm, sources)
	default:
		return nil, fmt.Errorf("%w: %s is a file task", ErrTaskScope, task)
	}

	start := time.Now()
	prompt, err := RenderPrompt(task, input)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("project prompt", "task", task, "project", project, "prompt_bytes", len(prompt))

	out, err := s.client.Generate(ctx, task, prompt)
	if err != nil {
		return nil, err
	}
	if IsRefusal(out) {
		return nil, fmt.Errorf("%w: %s", ErrRefused, task)
	}
	return &Summary{
		Path:     project,
		Task:     task,
		Profile:  "project",
		Output:   EnsureDisclaimer(out),
		Duration: time.Since(start),
	}, nil
}
