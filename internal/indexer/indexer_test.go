package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codememory-mcp/internal/cache"
	"github.com/dshills/codememory-mcp/internal/relevance"
	"github.com/dshills/codememory-mcp/internal/storage"
	"github.com/dshills/codememory-mcp/internal/walker"
	"github.com/dshills/codememory-mcp/pkg/types"
)

const serverSource = `package app

import "net/http"

type Server struct {
	mux *http.ServeMux
}

func NewServer() *Server {
	return &Server{mux: http.NewServeMux()}
}
`

const handlerSource = `package app

func Handle(s *Server) {}
`

// setupTestStorage creates an in-memory SQLite database for testing
func setupTestStorage(t testing.TB) storage.Storage {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err, "Failed to create test storage")
	t.Cleanup(func() { _ = store.Close() })

	return store
}

// createTestFile creates a source file under dir
func createTestFile(t testing.TB, dir, name, content string) string {
	t.Helper()

	filePath := filepath.Join(dir, name)
	err := os.MkdirAll(filepath.Dir(filePath), 0755)
	require.NoError(t, err)

	err = os.WriteFile(filePath, []byte(content), 0644)
	require.NoError(t, err)

	return filePath
}

func newTestIndexer(t testing.TB, db storage.Storage) *Indexer {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Workers = 2
	idx, err := New(db, cfg)
	require.NoError(t, err)
	return idx
}

func setupProject(t testing.TB) string {
	t.Helper()

	dir := t.TempDir()
	createTestFile(t, dir, "server.go", serverSource)
	createTestFile(t, dir, "handler.go", handlerSource)
	return dir
}

func TestNew(t *testing.T) {
	idx := newTestIndexer(t, nil)
	assert.NotNil(t, idx.parser)
	assert.NotNil(t, idx.chunker)
	assert.NotNil(t, idx.walker)
	assert.Nil(t, idx.Storage())
	assert.Equal(t, 2, idx.workers)
}

func TestNew_InvalidWalkerOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Walker.ExcludeDirs = []string{"[unclosed"}
	_, err := New(nil, cfg)
	assert.Error(t, err)
}

func TestIndexProject_JSONBackend(t *testing.T) {
	dir := setupProject(t)
	idx := newTestIndexer(t, nil)

	stats, err := idx.IndexProject(context.Background(), dir, nil)
	require.NoError(t, err)

	assert.NotEmpty(t, stats.RunID)
	assert.Equal(t, 2, stats.FilesDiscovered)
	assert.Equal(t, 2, stats.FilesExtracted)
	assert.Equal(t, 0, stats.FilesReused)
	assert.Equal(t, []string{"handler.go", "server.go"}, stats.FilesToRegenerate)
	assert.False(t, stats.Unchanged)
	assert.Positive(t, stats.SymbolsExtracted)
	assert.Positive(t, stats.ChunksCreated)

	// Cache file
	c, err := cache.NewJSONStore(filepath.Join(dir, cache.DefaultFileName)).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"handler.go", "server.go"}, c.Paths())

	// Project memory snapshot
	var pm types.ProjectMemory
	require.NoError(t, readJSON(filepath.Join(dir, MemoryFileName), &pm))
	assert.Equal(t, 2, pm.FileCount)
	fm, ok := pm.File("server.go")
	require.True(t, ok)
	assert.Equal(t, types.LanguageGo, fm.Language)

	// Source index snapshot
	data, err := os.ReadFile(filepath.Join(dir, SourceIndexFileName))
	require.NoError(t, err)
	var snap struct {
		Files []types.SourceIndex `json:"files"`
	}
	require.NoError(t, json.Unmarshal(data, &snap))
	require.Len(t, snap.Files, 2)
	assert.Equal(t, "handler.go", snap.Files[0].Path)
	assert.Equal(t, snap.Files[0].ChunkCount, len(snap.Files[0].Chunks))
}

func TestIndexProject_Unchanged(t *testing.T) {
	dir := setupProject(t)
	idx := newTestIndexer(t, nil)

	_, err := idx.IndexProject(context.Background(), dir, nil)
	require.NoError(t, err)

	memoryPath := filepath.Join(dir, MemoryFileName)
	before, err := os.Stat(memoryPath)
	require.NoError(t, err)

	stats, err := idx.IndexProject(context.Background(), dir, nil)
	require.NoError(t, err)
	assert.True(t, stats.Unchanged)
	assert.Equal(t, 0, stats.FilesExtracted)
	assert.Equal(t, 2, stats.FilesReused)
	assert.Empty(t, stats.FilesToRegenerate)
	assert.Empty(t, stats.MemoryPath)

	after, err := os.Stat(memoryPath)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime(), "snapshot must not be rewritten")
}

func TestIndexProject_IncrementalUpdate(t *testing.T) {
	dir := setupProject(t)
	store := setupTestStorage(t)
	idx := newTestIndexer(t, store)

	stats1, err := idx.IndexProject(context.Background(), dir, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, stats1.FilesExtracted)

	createTestFile(t, dir, "handler.go", handlerSource+"\nfunc Shutdown(s *Server) {}\n")

	stats2, err := idx.IndexProject(context.Background(), dir, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats2.FilesExtracted, "only the modified file is re-extracted")
	assert.Equal(t, 1, stats2.FilesReused)
	assert.Equal(t, []string{"handler.go"}, stats2.FilesToRegenerate)
	assert.False(t, stats2.Unchanged)

	project, err := store.GetProject(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, stats2.RunID, project.LastRunID)
	assert.Equal(t, 2, project.TotalFiles)

	snap, err := store.LatestSnapshot(context.Background(), project.ID)
	require.NoError(t, err)
	assert.Equal(t, stats2.RunID, snap.RunID)
	fm, ok := snap.Memory.File("handler.go")
	require.True(t, ok)
	names := make([]string, 0, len(fm.Symbols))
	for _, s := range fm.Symbols {
		names = append(names, s.Name)
	}
	assert.Contains(t, names, "Shutdown")

	// Cache lives in storage, not in a JSON file
	_, err = os.Stat(filepath.Join(dir, cache.DefaultFileName))
	assert.True(t, os.IsNotExist(err))

	file, err := store.GetFile(context.Background(), project.ID, "handler.go")
	require.NoError(t, err)
	chunks, err := store.ListChunksByFile(context.Background(), file.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, chunks)
}

func TestIndexProject_PrunesDeletedFiles(t *testing.T) {
	dir := setupProject(t)
	store := setupTestStorage(t)
	idx := newTestIndexer(t, store)

	_, err := idx.IndexProject(context.Background(), dir, nil)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(dir, "handler.go")))

	stats, err := idx.IndexProject(context.Background(), dir, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"handler.go"}, stats.FilesPruned)
	assert.Empty(t, stats.FilesToRegenerate)
	assert.False(t, stats.Unchanged, "a removed file changes project outputs")

	project, err := store.GetProject(context.Background(), dir)
	require.NoError(t, err)
	_, err = store.GetFile(context.Background(), project.ID, "handler.go")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	pm, err := idx.LoadProjectMemory(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, pm.FileCount)
	_, ok := pm.File("handler.go")
	assert.False(t, ok)
}

func TestIndexProject_Force(t *testing.T) {
	dir := setupProject(t)
	idx := newTestIndexer(t, nil)

	_, err := idx.IndexProject(context.Background(), dir, nil)
	require.NoError(t, err)

	stats, err := idx.IndexProject(context.Background(), dir, &Options{Force: true})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.FilesExtracted)
	assert.False(t, stats.Unchanged)
}

func TestIndexProject_CorruptCacheIsRebuilt(t *testing.T) {
	dir := setupProject(t)
	createTestFile(t, dir, cache.DefaultFileName, "{not json")
	idx := newTestIndexer(t, nil)

	stats, err := idx.IndexProject(context.Background(), dir, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.FilesExtracted)

	_, err = cache.NewJSONStore(filepath.Join(dir, cache.DefaultFileName)).Load(context.Background())
	assert.NoError(t, err)
}

func TestIndexProject_EmptyProject(t *testing.T) {
	idx := newTestIndexer(t, nil)

	stats, err := idx.IndexProject(context.Background(), t.TempDir(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.FilesDiscovered)
	assert.Empty(t, stats.FilesToRegenerate)
}

func TestIndexProject_Excludes(t *testing.T) {
	dir := setupProject(t)
	createTestFile(t, dir, "target/debug/build.rs", "fn main() {}\n")
	createTestFile(t, dir, "README.md", "# readme\n")

	idx := newTestIndexer(t, nil)
	stats, err := idx.IndexProject(context.Background(), dir, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.FilesDiscovered)
}

func TestIndexProject_OutputDir(t *testing.T) {
	dir := setupProject(t)
	cfg := DefaultConfig()
	cfg.OutputDir = "out"
	idx, err := New(nil, cfg)
	require.NoError(t, err)

	stats, err := idx.IndexProject(context.Background(), dir, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "out", MemoryFileName), stats.MemoryPath)
	assert.FileExists(t, filepath.Join(dir, "out", SourceIndexFileName))

	pm, err := idx.LoadProjectMemory(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 2, pm.FileCount)
}

func TestIndexProject_InvalidRoot(t *testing.T) {
	idx := newTestIndexer(t, nil)

	_, err := idx.IndexProject(context.Background(), filepath.Join(t.TempDir(), "missing"), nil)
	assert.Error(t, err)

	file := createTestFile(t, t.TempDir(), "main.go", "package main\n")
	_, err = idx.IndexProject(context.Background(), file, nil)
	assert.Error(t, err)
}

func TestIndexProject_ContextCancellation(t *testing.T) {
	dir := setupProject(t)
	idx := newTestIndexer(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := idx.IndexProject(ctx, dir, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIndexProject_ConcurrentCalls(t *testing.T) {
	dir := setupProject(t)
	idx := newTestIndexer(t, nil)

	require.True(t, idx.lock.TryAcquire())
	_, err := idx.IndexProject(context.Background(), dir, nil)
	assert.ErrorIs(t, err, ErrIndexInProgress)

	idx.lock.Release()
	_, err = idx.IndexProject(context.Background(), dir, nil)
	assert.NoError(t, err)
}

func TestProcessFile_ReadError(t *testing.T) {
	idx := newTestIndexer(t, nil)

	res := idx.processFile(walker.File{
		Path:     filepath.Join(t.TempDir(), "gone.go"),
		RelPath:  "gone.go",
		Language: types.LanguageGo,
	}, cache.New(), false)
	assert.Error(t, res.err)
	assert.Nil(t, res.memory)
}

func TestCollect_UnreadableCachedFileForcesRegeneration(t *testing.T) {
	idx := newTestIndexer(t, nil)

	kept := types.FileMemory{Path: "server.go", Language: types.LanguageGo, SymbolCount: 2}
	c := cache.New()
	c.Put("server.go", types.CacheEntry{Hash: "h1", Language: types.LanguageGo, Memory: &kept})
	c.Put("handler.go", types.CacheEntry{Hash: "h2", Language: types.LanguageGo, Memory: &types.FileMemory{Path: "handler.go"}})
	c.MarkClean()

	results := []fileResult{
		{rel: "handler.go", err: os.ErrPermission},
		{rel: "server.go", reason: cache.ReasonUnchanged, memory: &kept, index: &types.SourceIndex{Path: "server.go"}},
	}

	stats := &Statistics{}
	run := idx.collect(results, c, stats, idx.logger)

	assert.True(t, run.plan.NeedsRegeneration(), "dropping a file changes the project memory")
	assert.Equal(t, []string{"handler.go"}, run.plan.Failed())
	assert.Empty(t, run.plan.Regenerate())
	assert.Empty(t, run.plan.Pruned())
	require.Len(t, run.memories, 1)
	assert.Equal(t, "server.go", run.memories[0].Path)
	assert.Equal(t, 1, stats.FilesFailed)

	_, ok := c.Get("handler.go")
	assert.False(t, ok, "the next successful read must re-extract the file")
	_, removed := c.Changes()
	assert.Equal(t, []string{"handler.go"}, removed)
}

func TestCollect_UnreadableNewFileKeepsPlanClean(t *testing.T) {
	idx := newTestIndexer(t, nil)
	c := cache.New()

	stats := &Statistics{}
	run := idx.collect([]fileResult{{rel: "new.go", err: os.ErrPermission}}, c, stats, idx.logger)

	assert.False(t, run.plan.NeedsRegeneration())
	assert.Empty(t, run.plan.Failed())
	assert.Equal(t, 1, stats.FilesFailed)
	assert.Len(t, stats.ErrorMessages, 1)
}

func TestProcessFile_ReusesCachedMemory(t *testing.T) {
	dir := t.TempDir()
	path := createTestFile(t, dir, "server.go", serverSource)
	idx := newTestIndexer(t, nil)

	cached := types.FileMemory{Path: "server.go", Language: types.LanguageGo}
	c := cache.New()
	c.Put("server.go", types.CacheEntry{
		Hash:     cache.ContentHash([]byte(serverSource)),
		Language: types.LanguageGo,
		Memory:   &cached,
	})

	f := walker.File{Path: path, RelPath: "server.go", Language: types.LanguageGo}
	res := idx.processFile(f, c, false)
	require.NoError(t, res.err)
	assert.Equal(t, cache.ReasonUnchanged, res.reason)
	assert.Empty(t, res.memory.Symbols, "cached facts are returned as-is")
	assert.Positive(t, res.index.ChunkCount)

	res = idx.processFile(f, c, true)
	assert.Equal(t, cache.ReasonMissing, res.reason)
	assert.NotEmpty(t, res.memory.Symbols)
}

func TestFileContext(t *testing.T) {
	dir := setupProject(t)
	idx := newTestIndexer(t, nil)

	// Before indexing there is no project memory
	fc, err := idx.FileContext(context.Background(), dir, "server.go", relevance.DefaultPolicy())
	require.NoError(t, err)
	assert.True(t, fc.Relevant.IsEmpty())
	assert.NotEmpty(t, fc.Memory.Symbols)
	assert.Equal(t, "server.go", fc.Index.Path)

	_, err = idx.IndexProject(context.Background(), dir, nil)
	require.NoError(t, err)

	fc, err = idx.FileContext(context.Background(), dir, filepath.Join(dir, "server.go"), relevance.DefaultPolicy())
	require.NoError(t, err)
	assert.Equal(t, "server.go", fc.Path)
	assert.False(t, fc.Relevant.IsEmpty())

	var names []string
	for _, s := range fc.Relevant.GlobalSymbols {
		names = append(names, s.Name)
	}
	assert.Contains(t, names, "Server")
}

func TestFileContext_Errors(t *testing.T) {
	dir := setupProject(t)
	idx := newTestIndexer(t, nil)

	_, err := idx.FileContext(context.Background(), dir, "../outside.go", relevance.DefaultPolicy())
	assert.ErrorIs(t, err, ErrOutsideRoot)

	_, err = idx.FileContext(context.Background(), dir, "missing.go", relevance.DefaultPolicy())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRelPath(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "repo")

	tests := []struct {
		target  string
		want    string
		wantErr bool
	}{
		{"src/lib.rs", "src/lib.rs", false},
		{filepath.Join(root, "src", "lib.rs"), "src/lib.rs", false},
		{"./a/../b.go", "b.go", false},
		{"../x.go", "", true},
		{filepath.Join(string(filepath.Separator), "other", "x.go"), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			got, err := RelPath(root, tt.target)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrOutsideRoot)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIndexLock_ConcurrentAcquisition(t *testing.T) {
	var lock IndexLock
	const numGoroutines = 100

	acquired := make([]bool, numGoroutines)
	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(i int) {
			defer wg.Done()
			acquired[i] = lock.TryAcquire()
		}(i)
	}
	wg.Wait()

	count := 0
	for _, ok := range acquired {
		if ok {
			count++
		}
	}
	assert.Equal(t, 1, count, "exactly one goroutine acquires the lock")
	assert.True(t, lock.Locked())

	lock.Release()
	assert.False(t, lock.Locked())
	assert.True(t, lock.TryAcquire())
	lock.Release()
}

func TestIndexProject_ManyFiles(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 50; i++ {
		createTestFile(t, dir, fmt.Sprintf("pkg%d/file%d.go", i%5, i),
			fmt.Sprintf("package pkg\n\nfunc Func%d() int { return %d }\n", i, i))
	}

	idx := newTestIndexer(t, setupTestStorage(t))
	stats, err := idx.IndexProject(context.Background(), dir, nil)
	require.NoError(t, err)
	assert.Equal(t, 50, stats.FilesExtracted)
	assert.Equal(t, 50, stats.UniqueSymbols)
	assert.Empty(t, stats.ErrorMessages)
}
