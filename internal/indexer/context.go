package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dshills/codememory-mcp/internal/relevance"
	"github.com/dshills/codememory-mcp/internal/storage"
	"github.com/dshills/codememory-mcp/pkg/types"
)

// ErrOutsideRoot is returned for a file path that escapes the project root
var ErrOutsideRoot = errors.New("path is outside the project root")

// FileContext is everything known about one file for prompt assembly
type FileContext struct {
	Path     string               `json:"path"`
	Memory   types.FileMemory     `json:"file_memory"`
	Relevant types.RelevantMemory `json:"relevant_memory"`
	Index    types.SourceIndex    `json:"source_index"`
}

// FileContext reads target (relative to rootPath or absolute inside it),
// extracts its facts and chunks, and selects the relevant subset of the
// latest project memory. A project that was never indexed yields an empty
// RelevantMemory.
func (idx *Indexer) FileContext(ctx context.Context, rootPath, target string, policy relevance.Policy) (*FileContext, error) {
	root, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, err
	}
	rel, err := RelPath(root, target)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rel, err)
	}
	source := string(data)
	lang := types.DetectLanguage(rel)

	fc := &FileContext{
		Path:   rel,
		Memory: idx.parser.BuildFileMemory(rel, lang, source),
		Index:  idx.chunker.Chunk(source, lang),
	}
	fc.Index.Path = rel

	pm, err := idx.LoadProjectMemory(ctx, root)
	switch {
	case err == nil:
		fc.Relevant = relevance.NewEngine(*pm, policy).RelevantFor(rel)
		RelevanceQueries.Inc()
	case isMissingSnapshot(err):
		idx.logger.Debug("no project memory yet; relevant memory is empty", "root", root)
	default:
		return nil, err
	}
	return fc, nil
}

// RelPath converts target to a slash-separated path relative to root
func RelPath(root, target string) (string, error) {
	if !filepath.IsAbs(target) {
		target = filepath.Join(root, filepath.FromSlash(target))
	}
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, target)
	}
	return rel, nil
}

func isMissingSnapshot(err error) bool {
	return errors.Is(err, os.ErrNotExist) || errors.Is(err, storage.ErrNotFound)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
