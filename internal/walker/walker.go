// Package walker discovers the source files of a project.
package walker

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gobwas/glob"

	"github.com/dshills/codememory-mcp/pkg/types"
)

// DefaultMaxFileSize skips generated blobs and vendored bundles
const DefaultMaxFileSize = 1 << 20

// Options controls which files are discovered
type Options struct {
	Extensions   []string // Without the leading dot; empty means types.SourceExtensions()
	ExcludeDirs  []string // Glob patterns matched against each directory name
	ExcludeFiles []string // Glob patterns matched against the base name and the relative path
	MaxFileSize  int64    // Bytes; <= 0 disables the limit
}

// DefaultOptions returns the discovery defaults
func DefaultOptions() Options {
	return Options{
		Extensions:  types.SourceExtensions(),
		ExcludeDirs: []string{".git", "target", "docs"},
		MaxFileSize: DefaultMaxFileSize,
	}
}

// File is a discovered source file
type File struct {
	Path     string // Absolute path
	RelPath  string // Slash-separated, relative to the walk root
	Language types.Language
	Size     int64
	ModTime  time.Time
}

// Walker enumerates candidate source files
type Walker struct {
	extensions   map[string]bool
	excludeDirs  []glob.Glob
	excludeFiles []glob.Glob
	maxFileSize  int64
	logger       *slog.Logger
}

// New compiles the options into a Walker
func New(opts Options, logger *slog.Logger) (*Walker, error) {
	if logger == nil {
		logger = slog.Default()
	}

	exts := opts.Extensions
	if len(exts) == 0 {
		exts = types.SourceExtensions()
	}
	extFilter := make(map[string]bool, len(exts))
	for _, ext := range exts {
		normalized := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if normalized == "" {
			continue
		}
		extFilter[normalized] = true
	}

	dirGlobs, err := compileAll(opts.ExcludeDirs)
	if err != nil {
		return nil, fmt.Errorf("invalid exclude dir pattern: %w", err)
	}
	fileGlobs, err := compileAll(opts.ExcludeFiles)
	if err != nil {
		return nil, fmt.Errorf("invalid exclude file pattern: %w", err)
	}

	return &Walker{
		extensions:   extFilter,
		excludeDirs:  dirGlobs,
		excludeFiles: fileGlobs,
		maxFileSize:  opts.MaxFileSize,
		logger:       logger,
	}, nil
}

func compileAll(patterns []string) ([]glob.Glob, error) {
	compiled := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("%q: %w", p, err)
		}
		compiled = append(compiled, g)
	}
	return compiled, nil
}

// Walk returns the matching files under root ordered by relative path
func (w *Walker) Walk(ctx context.Context, root string) ([]File, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	var files []File
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if d.IsDir() {
			if path != absRoot && w.ExcludeDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !w.MatchFile(rel) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		if w.maxFileSize > 0 && info.Size() > w.maxFileSize {
			w.logger.Debug("skipping oversized file", "file", rel, "size", info.Size())
			return nil
		}

		files = append(files, File{
			Path:     path,
			RelPath:  rel,
			Language: types.DetectLanguage(rel),
			Size:     info.Size(),
			ModTime:  info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	return files, nil
}

// ExcludeDir reports whether a directory with this name is skipped
func (w *Walker) ExcludeDir(name string) bool {
	for _, g := range w.excludeDirs {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// MatchFile reports whether a slash-separated relative path would be
// discovered, ignoring size
func (w *Walker) MatchFile(rel string) bool {
	rel = filepath.ToSlash(rel)
	dir, base := "", rel
	if i := strings.LastIndex(rel, "/"); i >= 0 {
		dir, base = rel[:i], rel[i+1:]
	}

	if dir != "" {
		for _, part := range strings.Split(dir, "/") {
			if w.ExcludeDir(part) {
				return false
			}
		}
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(base), "."))
	if !w.extensions[ext] {
		return false
	}

	for _, g := range w.excludeFiles {
		if g.Match(base) || g.Match(rel) {
			return false
		}
	}
	return true
}
