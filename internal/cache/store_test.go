package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codememory-mcp/internal/storage"
	"github.com/dshills/codememory-mcp/pkg/types"
)

func TestJSONStore_MissingFileIsEmpty(t *testing.T) {
	store := NewJSONStore(filepath.Join(t.TempDir(), DefaultFileName))

	c, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len())
}

func TestJSONStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", DefaultFileName)
	store := NewJSONStore(path)

	c := New()
	c.Put("src/lib.rs", types.CacheEntry{Hash: "h1", Language: types.LanguageRust, Memory: rustMemory("src/lib.rs", "Config")})
	c.Put("main.py", types.CacheEntry{Hash: "h2", Language: types.LanguagePython})
	require.NoError(t, store.Save(ctx, c))

	written, _ := c.Changes()
	assert.Empty(t, written, "save marks the cache clean")

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, c.Entries(), loaded.Entries())

	// No temp files are left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestJSONStore_Format(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte(`{"files":{"a.rs":{"hash":"abc"}}}`), 0o644))

	c, err := NewJSONStore(path).Load(ctx)
	require.NoError(t, err)

	entry, ok := c.Get("a.rs")
	require.True(t, ok)
	assert.Equal(t, "abc", entry.Hash)
	assert.Nil(t, entry.Memory)
	assert.True(t, c.NeedsRecompute("a.rs", "abc", types.LanguageRust), "entry without language is stale")
}

func TestJSONStore_Corrupt(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{"invalid json", `{"files": {`},
		{"wrong shape", `{"files": []}`},
		{"empty hash", `{"files":{"a.rs":{"hash":""}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			_, err := NewJSONStore(path).Load(ctx)
			assert.ErrorIs(t, err, ErrCorruptCache)
		})
	}
}

func TestJSONStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := NewJSONStore(filepath.Join(t.TempDir(), DefaultFileName))
	_, err := store.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, store.Save(ctx, New()), context.Canceled)
}

func TestStorageStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	project := &storage.Project{RootPath: "/p", IndexVersion: storage.CurrentSchemaVersion}
	require.NoError(t, db.CreateProject(ctx, project))
	store := NewStorageStore(db, project.ID)

	c, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len())

	fm := rustMemory("src/lib.rs", "Config", "Error")
	fm.Imports = []string{"use std::io"}
	fm.ImportCount = 1
	c.Put("src/lib.rs", types.CacheEntry{Hash: "h1", Language: types.LanguageRust, Memory: fm})
	c.Put("old.rs", types.CacheEntry{Hash: "h0", Language: types.LanguageRust})
	require.NoError(t, store.Save(ctx, c))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"old.rs", "src/lib.rs"}, loaded.Paths())
	entry, ok := loaded.Get("src/lib.rs")
	require.True(t, ok)
	assert.Equal(t, "h1", entry.Hash)
	require.NotNil(t, entry.Memory)
	assert.Equal(t, fm.Symbols, entry.Memory.Symbols)

	file, err := db.GetFile(ctx, project.ID, "src/lib.rs")
	require.NoError(t, err)
	symbols, err := db.ListSymbolsByFile(ctx, file.ID)
	require.NoError(t, err)
	assert.Len(t, symbols, 2)
	imports, err := db.ListImportsByFile(ctx, file.ID)
	require.NoError(t, err)
	assert.Len(t, imports, 1)

	// Prune and replace; only the changed rows are written
	loaded.Prune([]string{"src/lib.rs"})
	loaded.Put("src/lib.rs", types.CacheEntry{Hash: "h2", Language: types.LanguageRust, Memory: rustMemory("src/lib.rs", "Config")})
	require.NoError(t, store.Save(ctx, loaded))

	_, err = db.GetFile(ctx, project.ID, "old.rs")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	symbols, err = db.ListSymbolsByFile(ctx, file.ID)
	require.NoError(t, err)
	assert.Len(t, symbols, 1)
	imports, err = db.ListImportsByFile(ctx, file.ID)
	require.NoError(t, err)
	assert.Empty(t, imports)
}
