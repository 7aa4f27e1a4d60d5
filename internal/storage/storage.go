package storage

import (
	"context"
	"time"

	"github.com/dshills/codememory-mcp/pkg/types"
)

// Storage defines the interface for persisting project memory and its inputs
type Storage interface {
	// Project operations
	CreateProject(ctx context.Context, project *Project) error
	GetProject(ctx context.Context, rootPath string) (*Project, error)
	UpdateProject(ctx context.Context, project *Project) error

	// File operations
	UpsertFile(ctx context.Context, file *File) error
	GetFile(ctx context.Context, projectID int64, filePath string) (*File, error)
	DeleteFile(ctx context.Context, fileID int64) error
	ListFiles(ctx context.Context, projectID int64) ([]*File, error)

	// Symbol operations
	UpsertSymbol(ctx context.Context, symbol *Symbol) error
	ListSymbolsByFile(ctx context.Context, fileID int64) ([]*Symbol, error)
	DeleteSymbolsByFile(ctx context.Context, fileID int64) error
	SearchSymbols(ctx context.Context, projectID int64, query string, limit int) ([]*Symbol, error)

	// Import operations
	UpsertImport(ctx context.Context, imp *Import) error
	ListImportsByFile(ctx context.Context, fileID int64) ([]*Import, error)
	DeleteImportsByFile(ctx context.Context, fileID int64) error

	// Chunk operations
	UpsertChunk(ctx context.Context, chunk *Chunk) error
	ListChunksByFile(ctx context.Context, fileID int64) ([]*Chunk, error)
	DeleteChunksByFile(ctx context.Context, fileID int64) error

	// Snapshot operations
	SaveSnapshot(ctx context.Context, snapshot *Snapshot) error
	LatestSnapshot(ctx context.Context, projectID int64) (*Snapshot, error)

	// Status operations
	GetStatus(ctx context.Context, projectID int64) (*ProjectStatus, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage // Embed Storage interface for transaction operations
}

// Project represents an indexed source tree
type Project struct {
	ID            int64
	RootPath      string
	TotalFiles    int
	TotalSymbols  int
	TotalChunks   int
	IndexVersion  string
	LastRunID     string
	LastIndexedAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// File is the cache record of one tracked source file
type File struct {
	ID            int64
	ProjectID     int64
	FilePath      string // Relative to project root, slash separated
	Language      types.Language
	ContentHash   string // Hex SHA-256
	SizeBytes     int64
	ModTime       time.Time
	Memory        *types.FileMemory // Nullable
	LastIndexedAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CacheEntry converts the record to the cache representation
func (f *File) CacheEntry() types.CacheEntry {
	return types.CacheEntry{
		Hash:     f.ContentHash,
		Language: f.Language,
		Memory:   f.Memory,
	}
}

// Symbol is a stored symbol fact
type Symbol struct {
	ID         int64
	FileID     int64
	Name       string
	Kind       string
	Line       int
	Confidence string
	Signature  string
	Visibility string
	CreatedAt  time.Time
}

// Import is a stored, normalized import line
type Import struct {
	ID        int64
	FileID    int64
	Statement string
	Ordinal   int
	CreatedAt time.Time
}

// Chunk is a stored source chunk
type Chunk struct {
	ID          int64
	FileID      int64
	ChunkIndex  int
	Content     string
	ContentHash string
	TokenCount  int
	StartLine   int
	EndLine     int
	CreatedAt   time.Time
}

// Snapshot is a persisted ProjectMemory build
type Snapshot struct {
	ID        int64
	ProjectID int64
	RunID     string
	Memory    *types.ProjectMemory
	CreatedAt time.Time
}

// ProjectStatus contains statistics about an indexed project
type ProjectStatus struct {
	Project        *Project
	FilesCount     int
	SymbolsCount   int
	ImportsCount   int
	ChunksCount    int
	SnapshotsCount int
	IndexSizeMB    float64
	LastIndexedAt  time.Time
	Languages      map[types.Language]int
	Health         HealthStatus
}

// HealthStatus represents the health of the index
type HealthStatus struct {
	DatabaseAccessible bool
	SnapshotAvailable  bool
}

// FromSymbolFact converts an extracted fact to a storage Symbol
func FromSymbolFact(s types.SymbolFact, fileID int64) *Symbol {
	sym := &Symbol{
		FileID:     fileID,
		Name:       s.Name,
		Kind:       string(s.Kind),
		Line:       s.Line,
		Confidence: s.Confidence.String(),
	}
	if s.Details != nil {
		sym.Signature = s.Details.Signature
		sym.Visibility = s.Details.Visibility
	}
	return sym
}

// ToSymbolFact converts a storage Symbol back to a fact
func (s *Symbol) ToSymbolFact() types.SymbolFact {
	fact := types.SymbolFact{
		Name:       s.Name,
		Kind:       types.SymbolKind(s.Kind),
		Line:       s.Line,
		Confidence: types.ParseConfidence(s.Confidence),
	}
	if s.Signature != "" || s.Visibility != "" {
		fact.Details = &types.SymbolDetails{Signature: s.Signature, Visibility: s.Visibility}
	}
	return fact
}

// FromSourceChunk converts a chunk to its storage form
func FromSourceChunk(c types.SourceChunk, fileID int64, tokens int) *Chunk {
	return &Chunk{
		FileID:      fileID,
		ChunkIndex:  c.ChunkID,
		Content:     c.Content,
		ContentHash: c.ContentHash(),
		TokenCount:  tokens,
		StartLine:   c.StartLine,
		EndLine:     c.EndLine,
	}
}

// ToSourceChunk converts a stored chunk back to a SourceChunk
func (c *Chunk) ToSourceChunk() types.SourceChunk {
	return types.SourceChunk{
		ChunkID:   c.ChunkIndex,
		StartLine: c.StartLine,
		EndLine:   c.EndLine,
		Content:   c.Content,
	}
}
