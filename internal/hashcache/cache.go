// Package hashcache implements the two-tier content-hash cache (spec.md
// §4.3, C3). Hash computation is not the cache's responsibility — it
// receives pre-computed values from whatever upstream hash handler reads
// file content; this package only caches and serves them.
package hashcache

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mecondev/oncutf-sub007/internal/pathkey"
	"github.com/mecondev/oncutf-sub007/internal/store"
)

type hotKey struct {
	path      string
	algorithm string
}

// Cache is the two-tier hash cache.
type Cache struct {
	st *store.Store

	mu  sync.Mutex
	hot *lru.Cache[hotKey, string]
}

// New builds a Cache with the given hot-tier capacity over st.
func New(st *store.Store, hotCapacity int) (*Cache, error) {
	if hotCapacity <= 0 {
		hotCapacity = 1024
	}
	hot, err := lru.New[hotKey, string](hotCapacity)
	if err != nil {
		return nil, err
	}
	return &Cache{st: st, hot: hot}, nil
}

// StoreHash caches and write-throughs hashValue for (filePath, algorithm).
// An empty algorithm defaults to AlgoCRC32 (spec invariant I4: rewriting
// replaces the prior value).
func (c *Cache) StoreHash(ctx context.Context, filePath, algorithm, hashValue string, fileSize *int64) error {
	algorithm = normalizeAlgorithm(algorithm)
	canon := pathkey.Canonicalize(filePath)

	if _, err := c.st.StoreHash(ctx, canon, algorithm, hashValue, fileSize); err != nil {
		return err
	}

	c.mu.Lock()
	c.hot.Add(hotKey{canon, algorithm}, hashValue)
	c.mu.Unlock()
	return nil
}

// GetHash returns the cached or stored hash for (filePath, algorithm).
func (c *Cache) GetHash(ctx context.Context, filePath, algorithm string) (string, bool, error) {
	algorithm = normalizeAlgorithm(algorithm)
	canon := pathkey.Canonicalize(filePath)

	c.mu.Lock()
	val, ok := c.hot.Get(hotKey{canon, algorithm})
	c.mu.Unlock()
	if ok {
		return val, true, nil
	}

	val, found, err := c.st.GetHash(ctx, canon, algorithm)
	if err != nil || !found {
		return "", found, err
	}
	c.mu.Lock()
	c.hot.Add(hotKey{canon, algorithm}, val)
	c.mu.Unlock()
	return val, true, nil
}

// HasHash reports whether filePath has a hash recorded for algorithm.
func (c *Cache) HasHash(ctx context.Context, filePath, algorithm string) (bool, error) {
	_, ok, err := c.GetHash(ctx, filePath, algorithm)
	return ok, err
}

// GetFilesWithHashBatch returns the subset of filePaths with a recorded
// hash for algorithm.
func (c *Cache) GetFilesWithHashBatch(ctx context.Context, filePaths []string, algorithm string) (map[string]bool, error) {
	algorithm = normalizeAlgorithm(algorithm)
	result := make(map[string]bool, len(filePaths))
	var miss []string

	for _, p := range filePaths {
		canon := pathkey.Canonicalize(p)
		c.mu.Lock()
		_, ok := c.hot.Get(hotKey{canon, algorithm})
		c.mu.Unlock()
		if ok {
			result[p] = true
		} else {
			miss = append(miss, p)
		}
	}
	if len(miss) == 0 {
		return result, nil
	}

	fromStore, err := c.st.GetFilesWithHashBatch(ctx, miss, algorithm)
	if err != nil {
		return nil, err
	}
	for _, p := range miss {
		result[p] = fromStore[p]
	}
	return result, nil
}

// FindDuplicates groups filePaths by hash value for algorithm, returning
// only groups with two or more members.
func (c *Cache) FindDuplicates(ctx context.Context, filePaths []string, algorithm string) (map[string][]string, error) {
	groups := make(map[string][]string)
	for _, p := range filePaths {
		hash, ok, err := c.GetHash(ctx, p, algorithm)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		groups[hash] = append(groups[hash], p)
	}

	out := make(map[string][]string, len(groups))
	for hash, paths := range groups {
		if len(paths) >= 2 {
			out[hash] = paths
		}
	}
	return out, nil
}

func normalizeAlgorithm(algorithm string) string {
	if algorithm == "" {
		return AlgoCRC32
	}
	return algorithm
}
