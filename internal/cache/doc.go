// Package cache decides which files need their facts re-extracted.
//
// A Cache maps project-relative paths to types.CacheEntry records. An entry
// is reused only when both its content hash and its language tag match the
// current file; otherwise the file is recomputed and the entry is replaced
// wholesale. A Plan collects the per-file decisions of one run and answers
// whether anything project-wide needs regeneration.
//
// Caches are loaded and saved through a Store:
//
//	store := cache.NewJSONStore(filepath.Join(root, cache.DefaultFileName))
//	c, err := store.Load(ctx)
//	if err != nil {
//	    return err
//	}
//	if c.NeedsRecompute(path, hash, lang) {
//	    c.Put(path, types.CacheEntry{Hash: hash, Language: lang, Memory: fm})
//	}
//	return store.Save(ctx, c)
package cache
