package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dshills/codememory-mcp/internal/storage"
	"github.com/dshills/codememory-mcp/pkg/types"
)

// DefaultFileName is the JSON cache file kept in the project root
const DefaultFileName = ".meta.json"

// ErrCorruptCache is returned when a persisted cache cannot be decoded.
// Callers may recover by starting from an empty cache.
var ErrCorruptCache = errors.New("corrupt cache")

// Store loads and saves a Cache
type Store interface {
	Load(ctx context.Context) (*Cache, error)
	Save(ctx context.Context, c *Cache) error
}

// fileFormat is the on-disk layout of the JSON cache
type fileFormat struct {
	Files map[string]types.CacheEntry `json:"files"`
}

// JSONStore persists the cache as a single JSON document
type JSONStore struct {
	path string
}

// NewJSONStore creates a store backed by the file at path
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

// Path returns the backing file path
func (s *JSONStore) Path() string {
	return s.path
}

// Load reads the cache file. A missing file yields an empty cache.
func (s *JSONStore) Load(ctx context.Context) (*Cache, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache %s: %w", s.path, err)
	}

	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptCache, s.path, err)
	}
	for path, entry := range f.Files {
		if err := entry.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %s: entry %s: %v", ErrCorruptCache, s.path, path, err)
		}
	}
	return FromEntries(f.Files), nil
}

// Save writes the cache atomically via a temp file and rename
func (s *JSONStore) Save(ctx context.Context, c *Cache) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(fileFormat{Files: c.Entries()}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode cache: %w", err)
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		return err
	}
	c.MarkClean()
	return nil
}

// writeFileAtomic replaces path with data without exposing partial writes
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// WriteFile atomically replaces path with data, creating parent directories
func WriteFile(path string, data []byte) error {
	return writeFileAtomic(path, data)
}

// WriteJSON atomically writes v as indented JSON to path
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	return writeFileAtomic(path, data)
}

// StorageStore persists cache entries as file records in the database.
// Symbols and imports of each written entry are replaced alongside it.
type StorageStore struct {
	db        storage.Storage
	projectID int64
}

// NewStorageStore creates a store for one project
func NewStorageStore(db storage.Storage, projectID int64) *StorageStore {
	return &StorageStore{db: db, projectID: projectID}
}

// Load reads every file record of the project
func (s *StorageStore) Load(ctx context.Context) (*Cache, error) {
	files, err := s.db.ListFiles(ctx, s.projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cached files: %w", err)
	}

	entries := make(map[string]types.CacheEntry, len(files))
	for _, f := range files {
		entries[f.FilePath] = f.CacheEntry()
	}
	return FromEntries(entries), nil
}

// Save writes the entries changed since the last save in one transaction
func (s *StorageStore) Save(ctx context.Context, c *Cache) error {
	written, removed := c.Changes()
	if len(written) == 0 && len(removed) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, path := range written {
		entry, ok := c.Get(path)
		if !ok {
			continue
		}
		if err := s.writeEntry(ctx, tx, path, entry); err != nil {
			return fmt.Errorf("failed to save %s: %w", path, err)
		}
	}

	for _, path := range removed {
		file, err := tx.GetFile(ctx, s.projectID, path)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if err := tx.DeleteFile(ctx, file.ID); err != nil {
			return fmt.Errorf("failed to delete %s: %w", path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cache: %w", err)
	}
	c.MarkClean()
	return nil
}

func (s *StorageStore) writeEntry(ctx context.Context, tx storage.Tx, path string, entry types.CacheEntry) error {
	file := &storage.File{
		ProjectID:   s.projectID,
		FilePath:    path,
		Language:    entry.Language,
		ContentHash: entry.Hash,
		Memory:      entry.Memory,
	}
	if err := tx.UpsertFile(ctx, file); err != nil {
		return err
	}

	if err := tx.DeleteSymbolsByFile(ctx, file.ID); err != nil {
		return err
	}
	if err := tx.DeleteImportsByFile(ctx, file.ID); err != nil {
		return err
	}
	if entry.Memory == nil {
		return nil
	}

	for _, sym := range entry.Memory.Symbols {
		if err := tx.UpsertSymbol(ctx, storage.FromSymbolFact(sym, file.ID)); err != nil {
			return err
		}
	}
	for i, imp := range entry.Memory.Imports {
		if err := tx.UpsertImport(ctx, &storage.Import{FileID: file.ID, Statement: imp, Ordinal: i}); err != nil {
			return err
		}
	}
	return nil
}
