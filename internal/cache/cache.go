package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"sync"

	"github.com/dshills/codememory-mcp/pkg/types"
)

// Reason explains a recompute decision
type Reason string

const (
	ReasonUnchanged       Reason = "unchanged"
	ReasonMissing         Reason = "missing"
	ReasonHashChanged     Reason = "hash_changed"
	ReasonLanguageChanged Reason = "language_changed"
)

// ContentHash returns the hex SHA-256 of data
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Decide reports whether entry can be reused for a file with the given
// hash and language, and why not when it can't.
func Decide(entry *types.CacheEntry, hash string, lang types.Language) Reason {
	switch {
	case entry == nil:
		return ReasonMissing
	case entry.Hash != hash:
		return ReasonHashChanged
	case entry.Language != lang:
		return ReasonLanguageChanged
	default:
		return ReasonUnchanged
	}
}

// NeedsRecompute reports whether a file must be re-extracted
func NeedsRecompute(entry *types.CacheEntry, hash string, lang types.Language) bool {
	return Decide(entry, hash, lang) != ReasonUnchanged
}

// Cache is the in-memory set of per-file cache entries for one project.
// It is safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]types.CacheEntry
	dirty   map[string]struct{}
	removed map[string]struct{}
}

// New returns an empty cache
func New() *Cache {
	return &Cache{
		entries: make(map[string]types.CacheEntry),
		dirty:   make(map[string]struct{}),
		removed: make(map[string]struct{}),
	}
}

// FromEntries builds a clean cache from previously persisted entries
func FromEntries(entries map[string]types.CacheEntry) *Cache {
	c := New()
	for path, entry := range entries {
		c.entries[path] = entry
	}
	return c
}

// Len returns the number of entries
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Get returns the entry for path
func (c *Cache) Get(path string) (types.CacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[path]
	return entry, ok
}

// Decide is Decide applied to the entry stored for path
func (c *Cache) Decide(path, hash string, lang types.Language) Reason {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if entry, ok := c.entries[path]; ok {
		return Decide(&entry, hash, lang)
	}
	return ReasonMissing
}

// NeedsRecompute reports whether path must be re-extracted
func (c *Cache) NeedsRecompute(path, hash string, lang types.Language) bool {
	return c.Decide(path, hash, lang) != ReasonUnchanged
}

// Put replaces the entry for path. Entries are never merged.
func (c *Cache) Put(path string, entry types.CacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry.Memory != nil {
		m := entry.Memory.Clone()
		entry.Memory = &m
	}
	c.entries[path] = entry
	c.dirty[path] = struct{}{}
	delete(c.removed, path)
}

// Delete drops the entry for path
func (c *Cache) Delete(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleteLocked(path)
}

func (c *Cache) deleteLocked(path string) {
	if _, ok := c.entries[path]; !ok {
		return
	}
	delete(c.entries, path)
	delete(c.dirty, path)
	c.removed[path] = struct{}{}
}

// Prune drops every entry whose path is not in keep and returns the
// dropped paths in sorted order.
func (c *Cache) Prune(keep []string) []string {
	keepSet := make(map[string]struct{}, len(keep))
	for _, p := range keep {
		keepSet[p] = struct{}{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var pruned []string
	for path := range c.entries {
		if _, ok := keepSet[path]; !ok {
			pruned = append(pruned, path)
		}
	}
	sort.Strings(pruned)
	for _, path := range pruned {
		c.deleteLocked(path)
	}
	return pruned
}

// Paths returns all cached paths in sorted order
func (c *Cache) Paths() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedKeys(c.entries)
}

// Entries returns a copy of all entries
func (c *Cache) Entries() map[string]types.CacheEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]types.CacheEntry, len(c.entries))
	for path, entry := range c.entries {
		out[path] = entry
	}
	return out
}

// Changes returns the paths written and removed since the last MarkClean
func (c *Cache) Changes() (written, removed []string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedKeys(c.dirty), sortedKeys(c.removed)
}

// MarkClean forgets pending changes after a successful save
func (c *Cache) MarkClean() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dirty = make(map[string]struct{})
	c.removed = make(map[string]struct{})
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
