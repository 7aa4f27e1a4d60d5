package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/codememory-mcp/internal/cache"
	"github.com/dshills/codememory-mcp/internal/chunker"
	"github.com/dshills/codememory-mcp/internal/memory"
	"github.com/dshills/codememory-mcp/internal/parser"
	"github.com/dshills/codememory-mcp/internal/storage"
	"github.com/dshills/codememory-mcp/internal/walker"
	"github.com/dshills/codememory-mcp/pkg/types"
)

// Snapshot file names written into the output directory
const (
	MemoryFileName      = ".memory.json"
	SourceIndexFileName = ".source_index.json"
)

// ErrIndexInProgress is returned when a run is already active on this Indexer
var ErrIndexInProgress = errors.New("indexing already in progress")

// Indexer coordinates an index run: discover -> hash -> decide -> extract
// and chunk (parallel) -> barrier -> build project memory -> persist
type Indexer struct {
	parser  *parser.Parser
	chunker *chunker.Chunker
	builder *memory.Builder
	walker  *walker.Walker
	storage storage.Storage // nil keeps the cache in a JSON file
	logger  *slog.Logger

	workers   int
	outputDir string
	lock      IndexLock
}

// Config contains configuration for the indexer
type Config struct {
	Workers   int    // Concurrent extraction workers (default: runtime.NumCPU())
	OutputDir string // Snapshot directory; empty means the project root
	Walker    walker.Options
	Limits    memory.Limits
	Chunking  map[types.Language]chunker.Profile
	Logger    *slog.Logger
}

// DefaultConfig returns the indexer defaults
func DefaultConfig() Config {
	return Config{
		Workers: runtime.NumCPU(),
		Walker:  walker.DefaultOptions(),
		Limits:  memory.DefaultLimits(),
	}
}

// Options tunes a single run
type Options struct {
	Force bool // Ignore cached facts and re-extract every file
}

// Statistics contains statistics about an index run
type Statistics struct {
	RunID             string        `json:"run_id"`
	FilesDiscovered   int           `json:"files_discovered"`
	FilesExtracted    int           `json:"files_extracted"`
	FilesReused       int           `json:"files_reused"`
	FilesFailed       int           `json:"files_failed"`
	FilesPruned       []string      `json:"files_pruned,omitempty"`
	FilesToRegenerate []string      `json:"files_to_regenerate"`
	SymbolsExtracted  int           `json:"symbols_extracted"`
	ChunksCreated     int           `json:"chunks_created"`
	UniqueSymbols     int           `json:"unique_symbols"`
	OpenItems         int           `json:"open_items"`
	Links             int           `json:"links"`
	NeedsRegeneration bool          `json:"needs_regeneration"`
	Unchanged         bool          `json:"unchanged"`
	MemoryPath        string        `json:"memory_path,omitempty"`
	SourceIndexPath   string        `json:"source_index_path,omitempty"`
	Duration          time.Duration `json:"duration"`
	ErrorMessages     []string      `json:"errors,omitempty"`
}

// New creates an Indexer. db may be nil, in which case the cache is kept in
// a JSON file in the project root and nothing else is persisted.
func New(db storage.Storage, cfg Config) (*Indexer, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}

	w, err := walker.New(cfg.Walker, cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create walker: %w", err)
	}

	return &Indexer{
		parser:    parser.New(),
		chunker:   chunker.NewWithProfiles(cfg.Chunking),
		builder:   memory.NewBuilder(cfg.Limits),
		walker:    w,
		storage:   db,
		logger:    cfg.Logger,
		workers:   cfg.Workers,
		outputDir: cfg.OutputDir,
	}, nil
}

// Walker returns the file filter used for discovery
func (idx *Indexer) Walker() *walker.Walker {
	return idx.walker
}

// Storage returns the backing store, nil for the JSON backend
func (idx *Indexer) Storage() storage.Storage {
	return idx.storage
}

// fileResult is the outcome of processing one discovered file
type fileResult struct {
	rel    string
	reason cache.Reason
	memory *types.FileMemory
	index  *types.SourceIndex
	err    error
}

// IndexProject runs one incremental index of the project at rootPath
func (idx *Indexer) IndexProject(ctx context.Context, rootPath string, opts *Options) (*Statistics, error) {
	if !idx.lock.TryAcquire() {
		return nil, ErrIndexInProgress
	}
	defer idx.lock.Release()

	if opts == nil {
		opts = &Options{}
	}

	root, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to access project root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("project root %s is not a directory", root)
	}

	startTime := time.Now()
	stats := &Statistics{
		RunID:             uuid.NewString(),
		FilesToRegenerate: []string{},
	}
	logger := idx.logger.With("run_id", stats.RunID, "root", root)
	logger.Info("index run started", "force", opts.Force)

	var project *storage.Project
	if idx.storage != nil {
		project, err = idx.getOrCreateProject(ctx, root)
		if err != nil {
			return nil, fmt.Errorf("failed to get or create project: %w", err)
		}
	}

	store := idx.cacheStore(root, project)
	c, err := store.Load(ctx)
	if errors.Is(err, cache.ErrCorruptCache) {
		logger.Warn("discarding unreadable cache", "error", err)
		c = cache.New()
	} else if err != nil {
		return nil, fmt.Errorf("failed to load cache: %w", err)
	}

	files, err := idx.walker.Walk(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("failed to discover files: %w", err)
	}
	stats.FilesDiscovered = len(files)
	filesDiscovered.Add(float64(len(files)))

	results, err := idx.processFiles(ctx, files, c, opts.Force, logger)
	if err != nil {
		return nil, err
	}

	// Barrier: every per-file result is available from here on
	run := idx.collect(results, c, stats, logger)
	plan, memories, indexes := run.plan, run.memories, run.indexes

	stats.FilesExtracted = len(plan.Regenerate())
	stats.FilesReused = plan.Reused()
	stats.FilesPruned = plan.Pruned()
	stats.FilesToRegenerate = append(stats.FilesToRegenerate, plan.Regenerate()...)
	stats.NeedsRegeneration = plan.NeedsRegeneration() || opts.Force
	filesExtracted.Add(float64(stats.FilesExtracted))
	filesReused.Add(float64(stats.FilesReused))
	filesFailed.Add(float64(stats.FilesFailed))

	outDir := idx.OutputDir(root)
	memoryPath := filepath.Join(outDir, MemoryFileName)
	sourceIndexPath := filepath.Join(outDir, SourceIndexFileName)

	if !plan.NeedsRegeneration() && !opts.Force && fileExists(memoryPath) {
		stats.Unchanged = true
		logger.Info("no file changed; project outputs left untouched")
	} else {
		pm := idx.builder.Build(memories)
		stats.UniqueSymbols = pm.UniqueSymbolCount
		stats.OpenItems = len(pm.OpenItems)
		stats.Links = len(pm.Links)
		recordProjectMemory(&pm)

		if err := cache.WriteJSON(memoryPath, pm); err != nil {
			return nil, fmt.Errorf("failed to write project memory: %w", err)
		}
		if err := cache.WriteJSON(sourceIndexPath, sourceIndexSnapshot{Files: indexes}); err != nil {
			return nil, fmt.Errorf("failed to write source index: %w", err)
		}
		stats.MemoryPath = memoryPath
		stats.SourceIndexPath = sourceIndexPath

		if project != nil {
			snap := &storage.Snapshot{ProjectID: project.ID, RunID: stats.RunID, Memory: &pm}
			if err := idx.storage.SaveSnapshot(ctx, snap); err != nil {
				return nil, fmt.Errorf("failed to save snapshot: %w", err)
			}
		}
	}

	if err := store.Save(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to save cache: %w", err)
	}

	if project != nil {
		if err := idx.persistChunks(ctx, project, plan.Regenerate(), indexes); err != nil {
			return nil, fmt.Errorf("failed to store chunks: %w", err)
		}
		project.LastRunID = stats.RunID
		if err := idx.updateProjectStats(ctx, project, memories, indexes); err != nil {
			return nil, fmt.Errorf("failed to update project stats: %w", err)
		}
	}

	stats.Duration = time.Since(startTime)
	runDuration.Observe(stats.Duration.Seconds())
	logger.Info("index run finished",
		"discovered", stats.FilesDiscovered,
		"extracted", stats.FilesExtracted,
		"reused", stats.FilesReused,
		"failed", stats.FilesFailed,
		"pruned", len(stats.FilesPruned),
		"unchanged", stats.Unchanged,
		"duration_ms", stats.Duration.Milliseconds())
	return stats, nil
}

// runResults is the aggregate of one run's per-file results
type runResults struct {
	plan     *cache.Plan
	memories []types.FileMemory
	indexes  []types.SourceIndex
}

// collect folds per-file results into the run plan. A file that could not
// be read is left out of the project memory; when it was cached before, its
// entry is dropped so the next successful read re-extracts it, and the plan
// records it so project outputs are rebuilt without it.
func (idx *Indexer) collect(results []fileResult, c *cache.Cache, stats *Statistics, logger *slog.Logger) runResults {
	run := runResults{
		plan:     &cache.Plan{},
		memories: make([]types.FileMemory, 0, len(results)),
		indexes:  make([]types.SourceIndex, 0, len(results)),
	}
	keep := make([]string, 0, len(results))
	for _, r := range results {
		keep = append(keep, r.rel)
		if r.err != nil {
			stats.FilesFailed++
			stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", r.rel, r.err))
			if _, ok := c.Get(r.rel); ok {
				logger.Warn("dropping cached facts of unreadable file", "file", r.rel, "error", r.err)
				c.Delete(r.rel)
				run.plan.AddFailed(r.rel)
			}
			continue
		}
		run.plan.Add(r.rel, r.reason)
		run.memories = append(run.memories, *r.memory)
		run.indexes = append(run.indexes, *r.index)
		stats.SymbolsExtracted += r.memory.SymbolCount
		stats.ChunksCreated += r.index.ChunkCount
	}
	run.plan.AddPruned(c.Prune(keep)...)
	return run
}

// sourceIndexSnapshot is the layout of SourceIndexFileName
type sourceIndexSnapshot struct {
	Files []types.SourceIndex `json:"files"`
}

// OutputDir returns where snapshots for root are written
func (idx *Indexer) OutputDir(root string) string {
	switch {
	case idx.outputDir == "":
		return root
	case filepath.IsAbs(idx.outputDir):
		return idx.outputDir
	default:
		return filepath.Join(root, idx.outputDir)
	}
}

func (idx *Indexer) cacheStore(root string, project *storage.Project) cache.Store {
	if project != nil {
		return cache.NewStorageStore(idx.storage, project.ID)
	}
	return cache.NewJSONStore(filepath.Join(root, cache.DefaultFileName))
}

// processFiles hashes, decides and extracts every file on a bounded worker
// pool. Per-file failures are recorded on the result; only cancellation
// aborts the run.
func (idx *Indexer) processFiles(ctx context.Context, files []walker.File, c *cache.Cache, force bool, logger *slog.Logger) ([]fileResult, error) {
	results := make([]fileResult, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.workers)

	for i := range files {
		f := files[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = idx.processFile(f, c, force)
			if results[i].err != nil {
				logger.Warn("skipping file", "file", f.RelPath, "error", results[i].err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// processFile reuses cached facts when the content hash and language still
// match, and re-extracts otherwise. The file is always re-chunked.
func (idx *Indexer) processFile(f walker.File, c *cache.Cache, force bool) fileResult {
	res := fileResult{rel: f.RelPath}

	data, err := os.ReadFile(f.Path)
	if err != nil {
		res.err = err
		return res
	}
	source := string(data)
	hash := cache.ContentHash(data)

	res.reason = cache.ReasonMissing
	if !force {
		res.reason = c.Decide(f.RelPath, hash, f.Language)
	}
	if res.reason == cache.ReasonUnchanged {
		if entry, ok := c.Get(f.RelPath); ok && entry.Memory != nil {
			res.memory = entry.Memory
		} else {
			res.reason = cache.ReasonMissing
		}
	}

	if res.memory == nil {
		start := time.Now()
		fm := idx.parser.BuildFileMemory(f.RelPath, f.Language, source)
		extractionDuration.WithLabelValues(f.Language.String()).Observe(time.Since(start).Seconds())
		c.Put(f.RelPath, types.CacheEntry{Hash: hash, Language: f.Language, Memory: &fm})
		res.memory = &fm
	}

	si := idx.chunker.Chunk(source, f.Language)
	si.Path = f.RelPath
	res.index = &si
	return res
}

// getOrCreateProject retrieves an existing project or creates a new one
func (idx *Indexer) getOrCreateProject(ctx context.Context, rootPath string) (*storage.Project, error) {
	project, err := idx.storage.GetProject(ctx, rootPath)
	if err == nil {
		return project, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	project = &storage.Project{
		RootPath:     rootPath,
		IndexVersion: storage.CurrentSchemaVersion,
	}
	if err := idx.storage.CreateProject(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

// persistChunks replaces the stored chunks of every recomputed file
func (idx *Indexer) persistChunks(ctx context.Context, project *storage.Project, paths []string, indexes []types.SourceIndex) error {
	if len(paths) == 0 {
		return nil
	}
	byPath := make(map[string]*types.SourceIndex, len(indexes))
	for i := range indexes {
		byPath[indexes[i].Path] = &indexes[i]
	}

	tx, err := idx.storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, p := range paths {
		si, ok := byPath[p]
		if !ok {
			continue
		}
		file, err := tx.GetFile(ctx, project.ID, p)
		if err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
		if err := tx.DeleteChunksByFile(ctx, file.ID); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
		for _, chunk := range si.Chunks {
			tokens := chunker.EstimateTokenCount(chunk.Content)
			if err := tx.UpsertChunk(ctx, storage.FromSourceChunk(chunk, file.ID, tokens)); err != nil {
				return fmt.Errorf("%s: %w", p, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chunks: %w", err)
	}
	return nil
}

// updateProjectStats updates the project's file, symbol and chunk counts
func (idx *Indexer) updateProjectStats(ctx context.Context, project *storage.Project, memories []types.FileMemory, indexes []types.SourceIndex) error {
	symbols, chunks := 0, 0
	for i := range memories {
		symbols += memories[i].SymbolCount
	}
	for i := range indexes {
		chunks += indexes[i].ChunkCount
	}

	project.TotalFiles = len(memories)
	project.TotalSymbols = symbols
	project.TotalChunks = chunks
	project.LastIndexedAt = time.Now()
	return idx.storage.UpdateProject(ctx, project)
}

// LoadProjectMemory returns the latest project memory for root, from the
// newest stored snapshot when storage is configured and from the snapshot
// file otherwise.
func (idx *Indexer) LoadProjectMemory(ctx context.Context, rootPath string) (*types.ProjectMemory, error) {
	root, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, err
	}

	if idx.storage != nil {
		project, err := idx.storage.GetProject(ctx, root)
		if err != nil {
			return nil, fmt.Errorf("project %s: %w", root, err)
		}
		snap, err := idx.storage.LatestSnapshot(ctx, project.ID)
		if err != nil {
			return nil, fmt.Errorf("snapshot for %s: %w", root, err)
		}
		return snap.Memory, nil
	}

	var pm types.ProjectMemory
	if err := readJSON(filepath.Join(idx.OutputDir(root), MemoryFileName), &pm); err != nil {
		return nil, err
	}
	return &pm, nil
}

// LoadSourceIndex returns the chunked files of the latest run from the
// source index snapshot
func (idx *Indexer) LoadSourceIndex(rootPath string) ([]types.SourceIndex, error) {
	root, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, err
	}
	var snap sourceIndexSnapshot
	if err := readJSON(filepath.Join(idx.OutputDir(root), SourceIndexFileName), &snap); err != nil {
		return nil, err
	}
	return snap.Files, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
