// Package storage provides SQLite-based persistence for the memory index.
//
// The storage layer keeps:
//   - Project metadata and run bookkeeping
//   - One cache record per tracked file (content hash, language, FileMemory)
//   - Extracted symbols and normalized imports
//   - Source chunks
//   - ProjectMemory snapshots, one per indexing run
//
// # Database Schema
//
// Tables:
//   - projects: root path, totals, last run id
//   - files: relative path, hex SHA-256, language, memory_json
//   - symbols: name, kind, line, confidence, signature, visibility
//   - imports: normalized import lines in source order
//   - chunks: line windows with their hash and token estimate
//   - memory_snapshots: serialized ProjectMemory per run
//
// Migrations are versioned with semver and applied on open.
//
// # Basic Usage
//
//	db, err := storage.NewSQLiteStorage(".codememory/index.db")
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	tx, err := db.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer func() { _ = tx.Rollback() }()
//
//	if err := tx.UpsertFile(ctx, file); err != nil {
//	    return err
//	}
//	return tx.Commit()
//
// # Build Tags
//
// The default build uses modernc.org/sqlite and needs no C compiler.
// Building with -tags cgo_sqlite switches to github.com/mattn/go-sqlite3.
package storage
