// Package indexer runs the project-memory pipeline over a source tree.
//
// The indexer orchestrates discovery, hashing, the incremental cache
// decision, fact extraction, chunking and persistence. Extraction is the
// only parallel stage; the project memory is built after every per-file
// result is in.
//
// # Basic Usage
//
//	idx, err := indexer.New(db, indexer.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//
//	stats, err := idx.IndexProject(ctx, "/path/to/project", nil)
//	fmt.Printf("extracted %d, reused %d in %v\n",
//	    stats.FilesExtracted, stats.FilesReused, stats.Duration)
//
// # Pipeline
//
//  1. Discover: walk the tree with the configured extensions and globs
//  2. Decide: hash each file and compare hash and language to its cache entry
//  3. Extract and chunk: re-extract changed files on a bounded worker pool
//  4. Barrier: prune entries of files that disappeared
//  5. Build: aggregate every FileMemory into a ProjectMemory
//  6. Persist: snapshots, cache entries, chunks and project counters
//
// # Incremental Runs
//
// A file is reused when its SHA-256 and detected language match the cached
// entry. When no file was recomputed and nothing was pruned, the snapshot
// files are left untouched and Statistics.Unchanged is set.
//
//	stats1, _ := idx.IndexProject(ctx, root, nil)
//	// FilesExtracted: 247, FilesReused: 0
//
//	stats2, _ := idx.IndexProject(ctx, root, nil)
//	// FilesExtracted: 0, FilesReused: 247, Unchanged: true
//
// Force a full re-extraction with:
//
//	idx.IndexProject(ctx, root, &indexer.Options{Force: true})
//
// # Storage Backends
//
// With a storage.Storage the cache lives in the files table, each run saves
// a snapshot row and the chunks of recomputed files are stored. With a nil
// storage the cache is the .meta.json file in the project root.
//
// Every run writes .memory.json and .source_index.json into the output
// directory, which defaults to the project root.
//
// # Error Handling
//
// Unreadable files are logged, counted in FilesFailed and skipped; their
// previous cache entry is kept. A cache that cannot be decoded is discarded
// and rebuilt. Storage failures and cancellation abort the run.
package indexer
