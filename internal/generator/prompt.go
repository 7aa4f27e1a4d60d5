package generator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dshills/codememory-mcp/pkg/types"
)

// PromptProfile selects how much context goes into a file prompt
type PromptProfile int

const (
	ProfileStandard PromptProfile = iota
	ProfileCompact
)

func (p PromptProfile) String() string {
	if p == ProfileCompact {
		return "compact"
	}
	return "standard"
}

// Memory pressure thresholds
const (
	PressureHigh     = 200
	PressureCritical = 350
)

// Limits bounds the context of one file prompt
type Limits struct {
	MaxSymbols    int
	MaxImports    int
	MaxChunks     int
	MaxChunkChars int
	GlobalSymbols int
	OpenItems     int
	Links         int
}

// LimitsFor returns the base limits of a profile before pressure scaling
func LimitsFor(p PromptProfile) Limits {
	if p == ProfileCompact {
		return Limits{MaxSymbols: 40, MaxImports: 30, MaxChunks: 4, MaxChunkChars: 900, GlobalSymbols: 20, OpenItems: 5, Links: 10}
	}
	return Limits{MaxSymbols: 80, MaxImports: 60, MaxChunks: 8, MaxChunkChars: 1600, GlobalSymbols: 40, OpenItems: 10, Links: 20}
}

// scale shrinks limits as memory pressure grows
func (l Limits) scale(pressure int) Limits {
	if pressure > PressureHigh {
		l.MaxChunks = max(l.MaxChunks-2, 3)
		l.MaxChunkChars = max(l.MaxChunkChars-250, 800)
		l.GlobalSymbols = (l.GlobalSymbols + 1) / 2
		l.OpenItems = (l.OpenItems + 1) / 2
		l.Links = (l.Links + 1) / 2
	}
	if pressure > PressureCritical {
		l.MaxChunks = max(l.MaxChunks-1, 2)
		l.MaxChunkChars = max(l.MaxChunkChars-150, 650)
	}
	return l
}

// MemoryPressure measures how much context a file drags along
func MemoryPressure(fm *types.FileMemory, rm *types.RelevantMemory) int {
	return len(fm.Symbols) + len(fm.Imports) + rm.Pressure()
}

// FileInput is the structured context rendered into a file prompt
type FileInput struct {
	Path     string               `json:"path"`
	Language types.Language       `json:"language"`
	Profile  string               `json:"profile"`
	Pressure int                  `json:"memory_pressure"`
	Memory   types.FileMemory     `json:"file_memory"`
	Relevant types.RelevantMemory `json:"relevant_memory"`
	Chunks   []types.SourceChunk  `json:"chunks"`
}

// BuildFileInput assembles a bounded prompt input for one file. Inputs are
// not modified; counts on the copies are recomputed after truncation.
func BuildFileInput(fm types.FileMemory, rm types.RelevantMemory, idx types.SourceIndex, profile PromptProfile) FileInput {
	pressure := MemoryPressure(&fm, &rm)
	limits := LimitsFor(profile).scale(pressure)

	memory := fm.Clone()
	memory.Truncate(limits.MaxSymbols, limits.MaxImports)

	relevant := types.RelevantMemory{
		FileCount:         rm.FileCount,
		UniqueSymbolCount: rm.UniqueSymbolCount,
		GlobalSymbols:     headOf(rm.GlobalSymbols, limits.GlobalSymbols),
		OpenItems:         headOf(rm.OpenItems, limits.OpenItems),
		Links:             headOf(rm.Links, limits.Links),
	}

	chunks := headOf(idx.Chunks, limits.MaxChunks)
	for i := range chunks {
		chunks[i].Content = truncateRunes(chunks[i].Content, limits.MaxChunkChars)
	}

	return FileInput{
		Path:     fm.Path,
		Language: fm.Language,
		Profile:  profile.String(),
		Pressure: pressure,
		Memory:   memory,
		Relevant: relevant,
		Chunks:   chunks,
	}
}

// headOf copies at most n leading elements
func headOf[T any](s []T, n int) []T {
	if n < 0 {
		n = 0
	}
	if len(s) > n {
		s = s[:n]
	}
	return append([]T{}, s...)
}

func truncateRunes(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i] + "..."
		}
		count++
	}
	return s
}

var taskInstructions = map[Task]string{
	TaskSummarize: `Summarize the source file described by the JSON context below.
Start with "## Purpose". Describe what the file does, its main symbols and
how it relates to the linked files. Use only facts present in the context.`,
	TaskDocumentation: `Write developer documentation for the source file described by
the JSON context below. Start with "## Overview", then document the public
symbols. Use only facts present in the context.`,
	TaskProjectSummary: `Summarize the project from the per-file summaries in the JSON
context below. Start with "## Overview", then describe the main components
and how they fit together. Use only facts present in the summaries.`,
	TaskArchitecture: `Describe the architecture of the project from the JSON digest
below: its files, shared symbols, open items and cross-file links. Start
with "## System Context", then cover components and their dependencies.
Use only facts present in the digest.`,
}

// RenderPrompt renders the instructions for task followed by the JSON
// encoded input
func RenderPrompt(task Task, input any) (string, error) {
	instructions, ok := taskInstructions[task]
	if !ok {
		return "", fmt.Errorf("unknown task %q", task)
	}

	payload, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("serializing prompt input: %w", err)
	}

	var b strings.Builder
	b.WriteString(instructions)
	b.WriteString("\n\nContext:\n")
	b.Write(payload)
	b.WriteString("\n")
	return b.String(), nil
}
