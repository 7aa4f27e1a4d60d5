package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codememory-mcp/pkg/types"
)

func setupTestDB(t *testing.T) *SQLiteStorage {
	// Use in-memory database for testing
	storage, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	require.NotNil(t, storage)
	t.Cleanup(func() { _ = storage.Close() })
	return storage
}

func createTestProject(t *testing.T, s *SQLiteStorage) *Project {
	project := &Project{RootPath: "/test/path", IndexVersion: CurrentSchemaVersion}
	require.NoError(t, s.CreateProject(context.Background(), project))
	return project
}

func createTestFile(t *testing.T, s *SQLiteStorage, projectID int64, path string) *File {
	file := &File{
		ProjectID:   projectID,
		FilePath:    path,
		Language:    types.LanguageRust,
		ContentHash: "abc123",
		SizeBytes:   42,
		ModTime:     time.Now(),
	}
	require.NoError(t, s.UpsertFile(context.Background(), file))
	return file
}

func TestNewSQLiteStorage(t *testing.T) {
	storage := setupTestDB(t)
	assert.NotNil(t, storage.db)

	version, err := SchemaVersion(context.Background(), storage.db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version)
}

func TestCreateProject(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	project := createTestProject(t, storage)
	assert.Greater(t, project.ID, int64(0))

	// Try to create duplicate - should fail
	err := storage.CreateProject(ctx, &Project{RootPath: "/test/path", IndexVersion: "x"})
	assert.Error(t, err)
}

func TestGetProject(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	project := createTestProject(t, storage)

	retrieved, err := storage.GetProject(ctx, "/test/path")
	require.NoError(t, err)
	assert.Equal(t, project.ID, retrieved.ID)
	assert.Equal(t, project.RootPath, retrieved.RootPath)
	assert.Empty(t, retrieved.LastRunID)
	assert.True(t, retrieved.LastIndexedAt.IsZero())
}

func TestGetProject_NotFound(t *testing.T) {
	storage := setupTestDB(t)

	_, err := storage.GetProject(context.Background(), "/missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateProject(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	project := createTestProject(t, storage)

	project.TotalFiles = 3
	project.TotalSymbols = 12
	project.TotalChunks = 5
	project.LastRunID = "run-1"
	project.LastIndexedAt = time.Now()
	require.NoError(t, storage.UpdateProject(ctx, project))

	retrieved, err := storage.GetProject(ctx, project.RootPath)
	require.NoError(t, err)
	assert.Equal(t, 3, retrieved.TotalFiles)
	assert.Equal(t, 12, retrieved.TotalSymbols)
	assert.Equal(t, 5, retrieved.TotalChunks)
	assert.Equal(t, "run-1", retrieved.LastRunID)
	assert.False(t, retrieved.LastIndexedAt.IsZero())

	missing := &Project{ID: 999, IndexVersion: "x"}
	assert.ErrorIs(t, storage.UpdateProject(ctx, missing), ErrNotFound)
}

func TestUpsertFile(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	project := createTestProject(t, storage)

	file := createTestFile(t, storage, project.ID, "src/lib.rs")
	firstID := file.ID
	assert.Greater(t, firstID, int64(0))

	// Upsert same path keeps the row id and replaces the payload
	file.ContentHash = "def456"
	file.Memory = &types.FileMemory{
		Path:        "src/lib.rs",
		Language:    types.LanguageRust,
		Symbols:     []types.SymbolFact{{Name: "Config", Kind: types.KindStruct, Line: 3, Confidence: types.ConfidenceHigh}},
		Imports:     []string{"use std::io"},
		SymbolCount: 1,
		ImportCount: 1,
	}
	require.NoError(t, storage.UpsertFile(ctx, file))
	assert.Equal(t, firstID, file.ID)

	retrieved, err := storage.GetFile(ctx, project.ID, "src/lib.rs")
	require.NoError(t, err)
	assert.Equal(t, "def456", retrieved.ContentHash)
	assert.Equal(t, types.LanguageRust, retrieved.Language)
	require.NotNil(t, retrieved.Memory)
	assert.Equal(t, file.Memory.Symbols, retrieved.Memory.Symbols)
	assert.Equal(t, []string{"use std::io"}, retrieved.Memory.Imports)

	entry := retrieved.CacheEntry()
	assert.Equal(t, "def456", entry.Hash)
	assert.Equal(t, types.LanguageRust, entry.Language)
}

func TestGetFile_NotFound(t *testing.T) {
	storage := setupTestDB(t)
	project := createTestProject(t, storage)

	_, err := storage.GetFile(context.Background(), project.ID, "nope.rs")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListFiles(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	project := createTestProject(t, storage)

	createTestFile(t, storage, project.ID, "b.rs")
	createTestFile(t, storage, project.ID, "a.rs")

	files, err := storage.ListFiles(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "a.rs", files[0].FilePath)
	assert.Equal(t, "b.rs", files[1].FilePath)
	assert.Nil(t, files[0].Memory)
}

func TestDeleteFile_Cascades(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	project := createTestProject(t, storage)
	file := createTestFile(t, storage, project.ID, "a.rs")

	require.NoError(t, storage.UpsertSymbol(ctx, &Symbol{FileID: file.ID, Name: "a", Kind: "function", Line: 1, Confidence: "high"}))
	require.NoError(t, storage.UpsertImport(ctx, &Import{FileID: file.ID, Statement: "use x", Ordinal: 0}))
	require.NoError(t, storage.UpsertChunk(ctx, &Chunk{FileID: file.ID, ChunkIndex: 0, Content: "fn a() {}", ContentHash: "h", StartLine: 1, EndLine: 1}))

	require.NoError(t, storage.DeleteFile(ctx, file.ID))

	symbols, err := storage.ListSymbolsByFile(ctx, file.ID)
	require.NoError(t, err)
	assert.Empty(t, symbols)
	imports, err := storage.ListImportsByFile(ctx, file.ID)
	require.NoError(t, err)
	assert.Empty(t, imports)
	chunks, err := storage.ListChunksByFile(ctx, file.ID)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSymbols(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	project := createTestProject(t, storage)
	file := createTestFile(t, storage, project.ID, "src/lib.rs")

	facts := []types.SymbolFact{
		{Name: "parse_config", Kind: types.KindFunction, Line: 10, Confidence: types.ConfidenceHigh,
			Details: &types.SymbolDetails{Signature: "pub fn parse_config()", Visibility: "public"}},
		{Name: "Config", Kind: types.KindStruct, Line: 2, Confidence: types.ConfidenceHigh},
		{Name: "ConfigError", Kind: types.KindEnum, Line: 5, Confidence: types.ConfidenceMedium},
	}
	for _, f := range facts {
		require.NoError(t, storage.UpsertSymbol(ctx, FromSymbolFact(f, file.ID)))
	}

	// Re-upserting the same identity does not duplicate
	require.NoError(t, storage.UpsertSymbol(ctx, FromSymbolFact(facts[1], file.ID)))

	symbols, err := storage.ListSymbolsByFile(ctx, file.ID)
	require.NoError(t, err)
	require.Len(t, symbols, 3)
	assert.Equal(t, "Config", symbols[0].Name)
	assert.Equal(t, "parse_config", symbols[2].Name)

	fact := symbols[2].ToSymbolFact()
	assert.Equal(t, facts[0].Name, fact.Name)
	assert.Equal(t, types.KindFunction, fact.Kind)
	assert.Equal(t, types.ConfidenceHigh, fact.Confidence)
	require.NotNil(t, fact.Details)
	assert.Equal(t, "public", fact.Details.Visibility)

	found, err := storage.SearchSymbols(ctx, project.ID, "Config", 10)
	require.NoError(t, err)
	require.Len(t, found, 3)
	assert.Equal(t, "Config", found[0].Name, "exact match ranks first")

	limited, err := storage.SearchSymbols(ctx, project.ID, "Config", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	none, err := storage.SearchSymbols(ctx, project.ID, "100%", 10)
	require.NoError(t, err)
	assert.Empty(t, none)

	require.NoError(t, storage.DeleteSymbolsByFile(ctx, file.ID))
	symbols, err = storage.ListSymbolsByFile(ctx, file.ID)
	require.NoError(t, err)
	assert.Empty(t, symbols)
}

func TestImports(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	project := createTestProject(t, storage)
	file := createTestFile(t, storage, project.ID, "main.py")

	for i, stmt := range []string{"import os", "from typing import List"} {
		require.NoError(t, storage.UpsertImport(ctx, &Import{FileID: file.ID, Statement: stmt, Ordinal: i}))
	}

	imports, err := storage.ListImportsByFile(ctx, file.ID)
	require.NoError(t, err)
	require.Len(t, imports, 2)
	assert.Equal(t, "import os", imports[0].Statement)
	assert.Equal(t, "from typing import List", imports[1].Statement)

	require.NoError(t, storage.DeleteImportsByFile(ctx, file.ID))
	imports, err = storage.ListImportsByFile(ctx, file.ID)
	require.NoError(t, err)
	assert.Empty(t, imports)
}

func TestChunks(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	project := createTestProject(t, storage)
	file := createTestFile(t, storage, project.ID, "a.rs")

	src := types.SourceChunk{ChunkID: 0, StartLine: 1, EndLine: 2, Content: "fn a() {}\nfn b() {}"}
	chunk := FromSourceChunk(src, file.ID, 7)
	require.NoError(t, storage.UpsertChunk(ctx, chunk))
	assert.Greater(t, chunk.ID, int64(0))
	assert.Equal(t, src.ContentHash(), chunk.ContentHash)

	chunks, err := storage.ListChunksByFile(ctx, file.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 7, chunks[0].TokenCount)
	assert.Equal(t, src, chunks[0].ToSourceChunk())

	require.NoError(t, storage.DeleteChunksByFile(ctx, file.ID))
	chunks, err = storage.ListChunksByFile(ctx, file.ID)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSnapshots(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	project := createTestProject(t, storage)

	_, err := storage.LatestSnapshot(ctx, project.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Error(t, storage.SaveSnapshot(ctx, &Snapshot{ProjectID: project.ID, RunID: "r0"}))

	first := &Snapshot{ProjectID: project.ID, RunID: "r1", Memory: &types.ProjectMemory{FileCount: 1}}
	require.NoError(t, storage.SaveSnapshot(ctx, first))
	second := &Snapshot{
		ProjectID: project.ID,
		RunID:     "r2",
		Memory: &types.ProjectMemory{
			FileCount:         2,
			UniqueSymbolCount: 1,
			GlobalSymbols:     []types.GlobalSymbol{{Name: "Config", Kind: types.KindStruct, DefinedIn: []string{"a.rs"}}},
		},
	}
	require.NoError(t, storage.SaveSnapshot(ctx, second))

	latest, err := storage.LatestSnapshot(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, "r2", latest.RunID)
	require.NotNil(t, latest.Memory)
	assert.Equal(t, 2, latest.Memory.FileCount)
	assert.Equal(t, second.Memory.GlobalSymbols, latest.Memory.GlobalSymbols)
}

func TestGetStatus(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	project := createTestProject(t, storage)

	a := createTestFile(t, storage, project.ID, "a.rs")
	b := &File{ProjectID: project.ID, FilePath: "b.py", Language: types.LanguagePython, ContentHash: "x"}
	require.NoError(t, storage.UpsertFile(ctx, b))
	require.NoError(t, storage.UpsertSymbol(ctx, &Symbol{FileID: a.ID, Name: "a", Kind: "function", Line: 1, Confidence: "high"}))
	require.NoError(t, storage.UpsertImport(ctx, &Import{FileID: b.ID, Statement: "import os"}))

	status, err := storage.GetStatus(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, status.FilesCount)
	assert.Equal(t, 1, status.SymbolsCount)
	assert.Equal(t, 1, status.ImportsCount)
	assert.Equal(t, 0, status.ChunksCount)
	assert.Equal(t, map[types.Language]int{types.LanguageRust: 1, types.LanguagePython: 1}, status.Languages)
	assert.True(t, status.Health.DatabaseAccessible)
	assert.False(t, status.Health.SnapshotAvailable)

	_, err = storage.GetStatus(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTransaction_Commit(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	project := createTestProject(t, storage)

	tx, err := storage.BeginTx(ctx)
	require.NoError(t, err)

	file := &File{ProjectID: project.ID, FilePath: "tx.rs", Language: types.LanguageRust, ContentHash: "h"}
	require.NoError(t, tx.UpsertFile(ctx, file))
	require.NoError(t, tx.UpsertSymbol(ctx, &Symbol{FileID: file.ID, Name: "x", Kind: "function", Line: 1, Confidence: "high"}))

	// Reads inside the transaction see uncommitted writes
	got, err := tx.GetFile(ctx, project.ID, "tx.rs")
	require.NoError(t, err)
	assert.Equal(t, file.ID, got.ID)

	require.NoError(t, tx.Commit())

	got, err = storage.GetFile(ctx, project.ID, "tx.rs")
	require.NoError(t, err)
	assert.Equal(t, file.ID, got.ID)
}

func TestTransaction_Rollback(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	project := createTestProject(t, storage)

	tx, err := storage.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.UpsertFile(ctx, &File{ProjectID: project.ID, FilePath: "gone.rs", Language: types.LanguageRust, ContentHash: "h"}))
	require.NoError(t, tx.Rollback())

	_, err = storage.GetFile(ctx, project.ID, "gone.rs")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTransaction_Nested(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	tx, err := storage.BeginTx(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback() }()

	_, err = tx.BeginTx(ctx)
	assert.Error(t, err)
	assert.NoError(t, tx.Close())
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `a\%b\_c\\d`, escapeLike(`a%b_c\d`))
	assert.Equal(t, "plain", escapeLike("plain"))
}
