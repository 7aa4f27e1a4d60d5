package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dshills/codememory-mcp/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when trying to create a duplicate entity
	ErrAlreadyExists = errors.New("already exists")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Apply migrations
	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

// querier returns the transaction querier
func (t *sqliteTx) querier() querier {
	return t.tx
}

// querier returns the DB querier
func (s *SQLiteStorage) querier() querier {
	return s.db
}

// Project operations

func (s *SQLiteStorage) createProjectWithQuerier(ctx context.Context, q querier, project *Project) error {
	query := `
		INSERT INTO projects (root_path, index_version, created_at, updated_at)
		VALUES (?, ?, ?, ?)
	`
	now := time.Now()
	result, err := q.ExecContext(ctx, query, project.RootPath, project.IndexVersion, now, now)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	project.ID = id
	project.CreatedAt = now
	project.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) CreateProject(ctx context.Context, project *Project) error {
	return s.createProjectWithQuerier(ctx, s.querier(), project)
}

func (s *SQLiteStorage) getProjectWithQuerier(ctx context.Context, q querier, where string, arg interface{}) (*Project, error) {
	query := `
		SELECT id, root_path, total_files, total_symbols, total_chunks,
		       index_version, last_run_id, last_indexed_at, created_at, updated_at
		FROM projects
		WHERE ` + where
	var (
		project       Project
		lastRunID     sql.NullString
		lastIndexedAt sql.NullTime
	)
	err := q.QueryRowContext(ctx, query, arg).Scan(
		&project.ID, &project.RootPath, &project.TotalFiles, &project.TotalSymbols,
		&project.TotalChunks, &project.IndexVersion, &lastRunID, &lastIndexedAt,
		&project.CreatedAt, &project.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	project.LastRunID = lastRunID.String
	if lastIndexedAt.Valid {
		project.LastIndexedAt = lastIndexedAt.Time
	}
	return &project, nil
}

func (s *SQLiteStorage) GetProject(ctx context.Context, rootPath string) (*Project, error) {
	return s.getProjectWithQuerier(ctx, s.querier(), "root_path = ?", rootPath)
}

func (s *SQLiteStorage) updateProjectWithQuerier(ctx context.Context, q querier, project *Project) error {
	query := `
		UPDATE projects
		SET total_files = ?, total_symbols = ?, total_chunks = ?, index_version = ?,
		    last_run_id = ?, last_indexed_at = ?, updated_at = ?
		WHERE id = ?
	`
	now := time.Now()
	result, err := q.ExecContext(ctx, query,
		project.TotalFiles, project.TotalSymbols, project.TotalChunks, project.IndexVersion,
		project.LastRunID, project.LastIndexedAt, now, project.ID)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	project.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) UpdateProject(ctx context.Context, project *Project) error {
	return s.updateProjectWithQuerier(ctx, s.querier(), project)
}

// File operations

func (s *SQLiteStorage) upsertFileWithQuerier(ctx context.Context, q querier, file *File) error {
	var memoryJSON sql.NullString
	if file.Memory != nil {
		data, err := json.Marshal(file.Memory)
		if err != nil {
			return fmt.Errorf("failed to encode file memory: %w", err)
		}
		memoryJSON = sql.NullString{String: string(data), Valid: true}
	}

	query := `
		INSERT INTO files (project_id, file_path, language, content_hash, size_bytes, mod_time, memory_json, last_indexed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_id, file_path) DO UPDATE SET
			language = excluded.language,
			content_hash = excluded.content_hash,
			size_bytes = excluded.size_bytes,
			mod_time = excluded.mod_time,
			memory_json = excluded.memory_json,
			last_indexed_at = excluded.last_indexed_at,
			updated_at = excluded.updated_at
		RETURNING id
	`
	now := time.Now()
	err := q.QueryRowContext(ctx, query,
		file.ProjectID, file.FilePath, string(file.Language), file.ContentHash,
		file.SizeBytes, file.ModTime, memoryJSON, now, now, now).Scan(&file.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert file: %w", err)
	}
	file.LastIndexedAt = now
	file.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) UpsertFile(ctx context.Context, file *File) error {
	return s.upsertFileWithQuerier(ctx, s.querier(), file)
}

const fileColumns = `id, project_id, file_path, language, content_hash, size_bytes, mod_time,
		       memory_json, last_indexed_at, created_at, updated_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFile(row rowScanner) (*File, error) {
	var (
		file          File
		language      string
		sizeBytes     sql.NullInt64
		modTime       sql.NullTime
		memoryJSON    sql.NullString
		lastIndexedAt sql.NullTime
	)
	err := row.Scan(
		&file.ID, &file.ProjectID, &file.FilePath, &language, &file.ContentHash,
		&sizeBytes, &modTime, &memoryJSON, &lastIndexedAt, &file.CreatedAt, &file.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	file.Language = types.Language(language)
	file.SizeBytes = sizeBytes.Int64
	if modTime.Valid {
		file.ModTime = modTime.Time
	}
	if lastIndexedAt.Valid {
		file.LastIndexedAt = lastIndexedAt.Time
	}
	if memoryJSON.Valid && memoryJSON.String != "" {
		var mem types.FileMemory
		if err := json.Unmarshal([]byte(memoryJSON.String), &mem); err != nil {
			return nil, fmt.Errorf("failed to decode memory for %s: %w", file.FilePath, err)
		}
		file.Memory = &mem
	}
	return &file, nil
}

func (s *SQLiteStorage) getFileWithQuerier(ctx context.Context, q querier, projectID int64, filePath string) (*File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE project_id = ? AND file_path = ?`
	file, err := scanFile(q.QueryRowContext(ctx, query, projectID, filePath))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return file, err
}

func (s *SQLiteStorage) GetFile(ctx context.Context, projectID int64, filePath string) (*File, error) {
	return s.getFileWithQuerier(ctx, s.querier(), projectID, filePath)
}

func (s *SQLiteStorage) deleteFileWithQuerier(ctx context.Context, q querier, fileID int64) error {
	_, err := q.ExecContext(ctx, "DELETE FROM files WHERE id = ?", fileID)
	return err
}

func (s *SQLiteStorage) DeleteFile(ctx context.Context, fileID int64) error {
	return s.deleteFileWithQuerier(ctx, s.querier(), fileID)
}

func (s *SQLiteStorage) listFilesWithQuerier(ctx context.Context, q querier, projectID int64) ([]*File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE project_id = ? ORDER BY file_path`
	rows, err := q.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var files []*File
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, rows.Err()
}

func (s *SQLiteStorage) ListFiles(ctx context.Context, projectID int64) ([]*File, error) {
	return s.listFilesWithQuerier(ctx, s.querier(), projectID)
}

// Symbol operations

func (s *SQLiteStorage) upsertSymbolWithQuerier(ctx context.Context, q querier, symbol *Symbol) error {
	query := `
		INSERT INTO symbols (file_id, name, kind, line, confidence, signature, visibility, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_id, name, kind, line, confidence) DO UPDATE SET
			signature = excluded.signature,
			visibility = excluded.visibility
		RETURNING id
	`
	now := time.Now()
	err := q.QueryRowContext(ctx, query,
		symbol.FileID, symbol.Name, symbol.Kind, symbol.Line, symbol.Confidence,
		symbol.Signature, symbol.Visibility, now).Scan(&symbol.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert symbol: %w", err)
	}
	symbol.CreatedAt = now
	return nil
}

func (s *SQLiteStorage) UpsertSymbol(ctx context.Context, symbol *Symbol) error {
	return s.upsertSymbolWithQuerier(ctx, s.querier(), symbol)
}

func scanSymbols(rows *sql.Rows) ([]*Symbol, error) {
	defer func() { _ = rows.Close() }()

	var symbols []*Symbol
	for rows.Next() {
		var (
			sym        Symbol
			signature  sql.NullString
			visibility sql.NullString
		)
		if err := rows.Scan(&sym.ID, &sym.FileID, &sym.Name, &sym.Kind, &sym.Line,
			&sym.Confidence, &signature, &visibility, &sym.CreatedAt); err != nil {
			return nil, err
		}
		sym.Signature = signature.String
		sym.Visibility = visibility.String
		symbols = append(symbols, &sym)
	}
	return symbols, rows.Err()
}

func (s *SQLiteStorage) listSymbolsByFileWithQuerier(ctx context.Context, q querier, fileID int64) ([]*Symbol, error) {
	query := `
		SELECT id, file_id, name, kind, line, confidence, signature, visibility, created_at
		FROM symbols
		WHERE file_id = ?
		ORDER BY line, id
	`
	rows, err := q.QueryContext(ctx, query, fileID)
	if err != nil {
		return nil, err
	}
	return scanSymbols(rows)
}

func (s *SQLiteStorage) ListSymbolsByFile(ctx context.Context, fileID int64) ([]*Symbol, error) {
	return s.listSymbolsByFileWithQuerier(ctx, s.querier(), fileID)
}

func (s *SQLiteStorage) deleteSymbolsByFileWithQuerier(ctx context.Context, q querier, fileID int64) error {
	_, err := q.ExecContext(ctx, "DELETE FROM symbols WHERE file_id = ?", fileID)
	return err
}

func (s *SQLiteStorage) DeleteSymbolsByFile(ctx context.Context, fileID int64) error {
	return s.deleteSymbolsByFileWithQuerier(ctx, s.querier(), fileID)
}

func (s *SQLiteStorage) searchSymbolsWithQuerier(ctx context.Context, q querier, projectID int64, query string, limit int) ([]*Symbol, error) {
	if limit <= 0 {
		limit = 50
	}
	sqlQuery := `
		SELECT s.id, s.file_id, s.name, s.kind, s.line, s.confidence, s.signature, s.visibility, s.created_at
		FROM symbols s
		JOIN files f ON f.id = s.file_id
		WHERE f.project_id = ? AND s.name LIKE ? ESCAPE '\'
		ORDER BY CASE WHEN s.name = ? THEN 0 ELSE 1 END, s.name, f.file_path, s.line
		LIMIT ?
	`
	rows, err := q.QueryContext(ctx, sqlQuery, projectID, "%"+escapeLike(query)+"%", query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search symbols: %w", err)
	}
	return scanSymbols(rows)
}

func (s *SQLiteStorage) SearchSymbols(ctx context.Context, projectID int64, query string, limit int) ([]*Symbol, error) {
	return s.searchSymbolsWithQuerier(ctx, s.querier(), projectID, query, limit)
}

func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}

// Import operations

func (s *SQLiteStorage) upsertImportWithQuerier(ctx context.Context, q querier, imp *Import) error {
	query := `
		INSERT INTO imports (file_id, statement, ordinal, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(file_id, statement) DO UPDATE SET ordinal = excluded.ordinal
		RETURNING id
	`
	now := time.Now()
	if err := q.QueryRowContext(ctx, query, imp.FileID, imp.Statement, imp.Ordinal, now).Scan(&imp.ID); err != nil {
		return fmt.Errorf("failed to upsert import: %w", err)
	}
	imp.CreatedAt = now
	return nil
}

func (s *SQLiteStorage) UpsertImport(ctx context.Context, imp *Import) error {
	return s.upsertImportWithQuerier(ctx, s.querier(), imp)
}

func (s *SQLiteStorage) listImportsByFileWithQuerier(ctx context.Context, q querier, fileID int64) ([]*Import, error) {
	query := `
		SELECT id, file_id, statement, ordinal, created_at
		FROM imports
		WHERE file_id = ?
		ORDER BY ordinal
	`
	rows, err := q.QueryContext(ctx, query, fileID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var imports []*Import
	for rows.Next() {
		var imp Import
		if err := rows.Scan(&imp.ID, &imp.FileID, &imp.Statement, &imp.Ordinal, &imp.CreatedAt); err != nil {
			return nil, err
		}
		imports = append(imports, &imp)
	}
	return imports, rows.Err()
}

func (s *SQLiteStorage) ListImportsByFile(ctx context.Context, fileID int64) ([]*Import, error) {
	return s.listImportsByFileWithQuerier(ctx, s.querier(), fileID)
}

func (s *SQLiteStorage) deleteImportsByFileWithQuerier(ctx context.Context, q querier, fileID int64) error {
	_, err := q.ExecContext(ctx, "DELETE FROM imports WHERE file_id = ?", fileID)
	return err
}

func (s *SQLiteStorage) DeleteImportsByFile(ctx context.Context, fileID int64) error {
	return s.deleteImportsByFileWithQuerier(ctx, s.querier(), fileID)
}

// Chunk operations

func (s *SQLiteStorage) upsertChunkWithQuerier(ctx context.Context, q querier, chunk *Chunk) error {
	query := `
		INSERT INTO chunks (file_id, chunk_index, content, content_hash, token_count, start_line, end_line, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_id, chunk_index) DO UPDATE SET
			content = excluded.content,
			content_hash = excluded.content_hash,
			token_count = excluded.token_count,
			start_line = excluded.start_line,
			end_line = excluded.end_line
		RETURNING id
	`
	now := time.Now()
	err := q.QueryRowContext(ctx, query,
		chunk.FileID, chunk.ChunkIndex, chunk.Content, chunk.ContentHash,
		chunk.TokenCount, chunk.StartLine, chunk.EndLine, now).Scan(&chunk.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert chunk: %w", err)
	}
	chunk.CreatedAt = now
	return nil
}

func (s *SQLiteStorage) UpsertChunk(ctx context.Context, chunk *Chunk) error {
	return s.upsertChunkWithQuerier(ctx, s.querier(), chunk)
}

func (s *SQLiteStorage) listChunksByFileWithQuerier(ctx context.Context, q querier, fileID int64) ([]*Chunk, error) {
	query := `
		SELECT id, file_id, chunk_index, content, content_hash, token_count, start_line, end_line, created_at
		FROM chunks
		WHERE file_id = ?
		ORDER BY chunk_index
	`
	rows, err := q.QueryContext(ctx, query, fileID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var chunks []*Chunk
	for rows.Next() {
		var (
			c          Chunk
			tokenCount sql.NullInt64
		)
		if err := rows.Scan(&c.ID, &c.FileID, &c.ChunkIndex, &c.Content, &c.ContentHash,
			&tokenCount, &c.StartLine, &c.EndLine, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.TokenCount = int(tokenCount.Int64)
		chunks = append(chunks, &c)
	}
	return chunks, rows.Err()
}

func (s *SQLiteStorage) ListChunksByFile(ctx context.Context, fileID int64) ([]*Chunk, error) {
	return s.listChunksByFileWithQuerier(ctx, s.querier(), fileID)
}

func (s *SQLiteStorage) deleteChunksByFileWithQuerier(ctx context.Context, q querier, fileID int64) error {
	_, err := q.ExecContext(ctx, "DELETE FROM chunks WHERE file_id = ?", fileID)
	return err
}

func (s *SQLiteStorage) DeleteChunksByFile(ctx context.Context, fileID int64) error {
	return s.deleteChunksByFileWithQuerier(ctx, s.querier(), fileID)
}

// Snapshot operations

func (s *SQLiteStorage) saveSnapshotWithQuerier(ctx context.Context, q querier, snapshot *Snapshot) error {
	if snapshot.Memory == nil {
		return errors.New("snapshot memory is required")
	}
	data, err := json.Marshal(snapshot.Memory)
	if err != nil {
		return fmt.Errorf("failed to encode project memory: %w", err)
	}

	query := `
		INSERT INTO memory_snapshots (project_id, run_id, file_count, unique_symbol_count, memory_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	result, err := q.ExecContext(ctx, query,
		snapshot.ProjectID, snapshot.RunID, snapshot.Memory.FileCount,
		snapshot.Memory.UniqueSymbolCount, string(data), now)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	snapshot.ID = id
	snapshot.CreatedAt = now
	return nil
}

func (s *SQLiteStorage) SaveSnapshot(ctx context.Context, snapshot *Snapshot) error {
	return s.saveSnapshotWithQuerier(ctx, s.querier(), snapshot)
}

func (s *SQLiteStorage) latestSnapshotWithQuerier(ctx context.Context, q querier, projectID int64) (*Snapshot, error) {
	query := `
		SELECT id, project_id, run_id, memory_json, created_at
		FROM memory_snapshots
		WHERE project_id = ?
		ORDER BY id DESC
		LIMIT 1
	`
	var (
		snap       Snapshot
		memoryJSON string
	)
	err := q.QueryRowContext(ctx, query, projectID).Scan(&snap.ID, &snap.ProjectID, &snap.RunID, &memoryJSON, &snap.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var pm types.ProjectMemory
	if err := json.Unmarshal([]byte(memoryJSON), &pm); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %d: %w", snap.ID, err)
	}
	snap.Memory = &pm
	return &snap, nil
}

func (s *SQLiteStorage) LatestSnapshot(ctx context.Context, projectID int64) (*Snapshot, error) {
	return s.latestSnapshotWithQuerier(ctx, s.querier(), projectID)
}

// Status operations

func (s *SQLiteStorage) getStatusWithQuerier(ctx context.Context, q querier, projectID int64) (*ProjectStatus, error) {
	project, err := s.getProjectWithQuerier(ctx, q, "id = ?", projectID)
	if err != nil {
		return nil, err
	}

	status := &ProjectStatus{
		Project:       project,
		LastIndexedAt: project.LastIndexedAt,
		Languages:     make(map[types.Language]int),
		Health:        HealthStatus{DatabaseAccessible: true},
	}

	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM files WHERE project_id = ?", &status.FilesCount},
		{"SELECT COUNT(*) FROM symbols s JOIN files f ON f.id = s.file_id WHERE f.project_id = ?", &status.SymbolsCount},
		{"SELECT COUNT(*) FROM imports i JOIN files f ON f.id = i.file_id WHERE f.project_id = ?", &status.ImportsCount},
		{"SELECT COUNT(*) FROM chunks c JOIN files f ON f.id = c.file_id WHERE f.project_id = ?", &status.ChunksCount},
		{"SELECT COUNT(*) FROM memory_snapshots WHERE project_id = ?", &status.SnapshotsCount},
	}
	for _, c := range counts {
		if err := q.QueryRowContext(ctx, c.query, projectID).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to count: %w", err)
		}
	}
	status.Health.SnapshotAvailable = status.SnapshotsCount > 0

	rows, err := q.QueryContext(ctx, "SELECT language, COUNT(*) FROM files WHERE project_id = ? GROUP BY language", projectID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var (
			lang  string
			count int
		)
		if err := rows.Scan(&lang, &count); err != nil {
			return nil, err
		}
		status.Languages[types.Language(lang)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Approximate index size from the page count
	var pageCount, pageSize int64
	if err := q.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		if err := q.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err == nil {
			status.IndexSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
		}
	}

	return status, nil
}

func (s *SQLiteStorage) GetStatus(ctx context.Context, projectID int64) (*ProjectStatus, error) {
	return s.getStatusWithQuerier(ctx, s.querier(), projectID)
}

// Transaction delegates

func (t *sqliteTx) CreateProject(ctx context.Context, project *Project) error {
	return t.storage.createProjectWithQuerier(ctx, t.querier(), project)
}

func (t *sqliteTx) GetProject(ctx context.Context, rootPath string) (*Project, error) {
	return t.storage.getProjectWithQuerier(ctx, t.querier(), "root_path = ?", rootPath)
}

func (t *sqliteTx) UpdateProject(ctx context.Context, project *Project) error {
	return t.storage.updateProjectWithQuerier(ctx, t.querier(), project)
}

func (t *sqliteTx) UpsertFile(ctx context.Context, file *File) error {
	return t.storage.upsertFileWithQuerier(ctx, t.querier(), file)
}

func (t *sqliteTx) GetFile(ctx context.Context, projectID int64, filePath string) (*File, error) {
	return t.storage.getFileWithQuerier(ctx, t.querier(), projectID, filePath)
}

func (t *sqliteTx) DeleteFile(ctx context.Context, fileID int64) error {
	return t.storage.deleteFileWithQuerier(ctx, t.querier(), fileID)
}

func (t *sqliteTx) ListFiles(ctx context.Context, projectID int64) ([]*File, error) {
	return t.storage.listFilesWithQuerier(ctx, t.querier(), projectID)
}

func (t *sqliteTx) UpsertSymbol(ctx context.Context, symbol *Symbol) error {
	return t.storage.upsertSymbolWithQuerier(ctx, t.querier(), symbol)
}

func (t *sqliteTx) ListSymbolsByFile(ctx context.Context, fileID int64) ([]*Symbol, error) {
	return t.storage.listSymbolsByFileWithQuerier(ctx, t.querier(), fileID)
}

func (t *sqliteTx) DeleteSymbolsByFile(ctx context.Context, fileID int64) error {
	return t.storage.deleteSymbolsByFileWithQuerier(ctx, t.querier(), fileID)
}

func (t *sqliteTx) SearchSymbols(ctx context.Context, projectID int64, query string, limit int) ([]*Symbol, error) {
	return t.storage.searchSymbolsWithQuerier(ctx, t.querier(), projectID, query, limit)
}

func (t *sqliteTx) UpsertImport(ctx context.Context, imp *Import) error {
	return t.storage.upsertImportWithQuerier(ctx, t.querier(), imp)
}

func (t *sqliteTx) ListImportsByFile(ctx context.Context, fileID int64) ([]*Import, error) {
	return t.storage.listImportsByFileWithQuerier(ctx, t.querier(), fileID)
}

func (t *sqliteTx) DeleteImportsByFile(ctx context.Context, fileID int64) error {
	return t.storage.deleteImportsByFileWithQuerier(ctx, t.querier(), fileID)
}

func (t *sqliteTx) UpsertChunk(ctx context.Context, chunk *Chunk) error {
	return t.storage.upsertChunkWithQuerier(ctx, t.querier(), chunk)
}

func (t *sqliteTx) ListChunksByFile(ctx context.Context, fileID int64) ([]*Chunk, error) {
	return t.storage.listChunksByFileWithQuerier(ctx, t.querier(), fileID)
}

func (t *sqliteTx) DeleteChunksByFile(ctx context.Context, fileID int64) error {
	return t.storage.deleteChunksByFileWithQuerier(ctx, t.querier(), fileID)
}

func (t *sqliteTx) SaveSnapshot(ctx context.Context, snapshot *Snapshot) error {
	return t.storage.saveSnapshotWithQuerier(ctx, t.querier(), snapshot)
}

func (t *sqliteTx) LatestSnapshot(ctx context.Context, projectID int64) (*Snapshot, error) {
	return t.storage.latestSnapshotWithQuerier(ctx, t.querier(), projectID)
}

func (t *sqliteTx) GetStatus(ctx context.Context, projectID int64) (*ProjectStatus, error) {
	return t.storage.getStatusWithQuerier(ctx, t.querier(), projectID)
}

func (t *sqliteTx) Close() error {
	// Transactions don't close the underlying connection
	return nil
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	// SQLite does not support true nested transactions
	return nil, errors.New("nested transactions not supported")
}
