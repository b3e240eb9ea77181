// Package metadatacache implements the two-tier metadata cache (spec.md
// §4.2, C2): an LRU hot tier in front of the persistent store, with
// read-through/write-through coherence and the monotone-extended merge
// policy (C2-I2).
package metadatacache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mecondev/oncutf-sub007/internal/coreerr"
	"github.com/mecondev/oncutf-sub007/internal/pathkey"
	"github.com/mecondev/oncutf-sub007/internal/store"
)

// Entry is the structured cache entry, mirroring MetadataRecord plus the
// cache's own timestamp.
type Entry struct {
	Payload    store.Payload
	Kind       store.MetadataKind
	IsModified bool
	Timestamp  time.Time
}

// Stats summarizes hot-tier effectiveness.
type Stats struct {
	HotSize   int
	Hits      int64
	Misses    int64
	HitRate   float64
	StoreInfo store.Stats
}

// Cache is the two-tier metadata cache.
type Cache struct {
	st *store.Store

	mu  sync.Mutex
	hot *lru.Cache[string, Entry]

	hits, misses int64
}

// New builds a Cache with the given hot-tier capacity over st.
func New(st *store.Store, hotCapacity int) (*Cache, error) {
	if hotCapacity <= 0 {
		hotCapacity = 1024
	}
	hot, err := lru.New[string, Entry](hotCapacity)
	if err != nil {
		return nil, err
	}
	return &Cache{st: st, hot: hot}, nil
}

// Set strips internal flag keys, write-throughs to the store and refreshes
// the hot tier, applying the monotone-extended merge policy: once a path
// has extended metadata, a later fast write merges into it instead of
// downgrading (C2-I2).
func (c *Cache) Set(ctx context.Context, filePath string, payload store.Payload, extended, modified bool) error {
	canon := pathkey.Canonicalize(filePath)
	clean := stripFlags(payload)

	kind := store.KindFast
	if extended {
		kind = store.KindExtended
	}

	c.mu.Lock()
	prevEntry, inHot := c.hot.Get(canon)
	c.mu.Unlock()

	var merged store.Payload
	var effectiveKind store.MetadataKind

	if inHot {
		merged, effectiveKind = mergeMonotone(prevEntry.Payload, prevEntry.Kind, clean, kind)
	} else {
		prevPayload, found, err := c.st.GetMetadata(ctx, canon)
		if err != nil {
			return err
		}
		if found {
			prevKind := store.KindFast
			if b, _ := prevPayload[store.FlagExtended].(bool); b {
				prevKind = store.KindExtended
			}
			merged, effectiveKind = mergeMonotone(stripFlags(prevPayload), prevKind, clean, kind)
		} else {
			merged, effectiveKind = clean, kind
		}
	}

	if _, err := c.st.StoreMetadata(ctx, canon, merged, effectiveKind, modified); err != nil {
		return err
	}

	entry := Entry{
		Payload:    merged,
		Kind:       effectiveKind,
		IsModified: modified,
		Timestamp:  time.Now(),
	}
	c.mu.Lock()
	c.hot.Add(canon, entry)
	c.mu.Unlock()
	return nil
}

// mergeMonotone implements C2-I2: extended never downgrades to fast; a
// fast write against an extended record merges its fields in instead.
func mergeMonotone(prev store.Payload, prevKind store.MetadataKind, next store.Payload, nextKind store.MetadataKind) (store.Payload, store.MetadataKind) {
	if prevKind == store.KindExtended && nextKind == store.KindFast {
		merged := make(store.Payload, len(prev)+len(next))
		for k, v := range prev {
			merged[k] = v
		}
		for k, v := range next {
			merged[k] = v
		}
		return merged, store.KindExtended
	}
	return next, nextKind
}

// Get returns the payload for filePath, synthesizing the two internal flag
// keys, or (nil, false) if nothing is known about it.
func (c *Cache) Get(ctx context.Context, filePath string) (store.Payload, bool, error) {
	entry, ok, err := c.GetEntry(ctx, filePath)
	if err != nil || !ok {
		return nil, ok, err
	}
	out := make(store.Payload, len(entry.Payload)+2)
	for k, v := range entry.Payload {
		out[k] = v
	}
	if entry.Kind == store.KindExtended {
		out[store.FlagExtended] = true
	}
	if entry.IsModified {
		out[store.FlagModified] = true
	}
	return out, true, nil
}

// GetEntry returns the structured cache entry for filePath.
func (c *Cache) GetEntry(ctx context.Context, filePath string) (Entry, bool, error) {
	canon := pathkey.Canonicalize(filePath)

	c.mu.Lock()
	entry, ok := c.hot.Get(canon)
	c.mu.Unlock()
	if ok {
		c.recordHit()
		return entry, true, nil
	}
	c.recordMiss()

	payload, found, err := c.st.GetMetadata(ctx, canon)
	if err != nil {
		return Entry{}, false, err
	}
	if !found {
		return Entry{}, false, nil
	}

	kind := store.KindFast
	if b, _ := payload[store.FlagExtended].(bool); b {
		kind = store.KindExtended
	}
	modified, _ := payload[store.FlagModified].(bool)
	loaded := Entry{Payload: stripFlags(payload), Kind: kind, IsModified: modified, Timestamp: time.Now()}

	c.mu.Lock()
	c.hot.Add(canon, loaded)
	c.mu.Unlock()
	return loaded, true, nil
}

// IsExtended reports whether filePath's current entry (hot or cold) already
// carries extended metadata, used by MetadataWorker to resolve
// "previous_extended OR use_extended OR payload.__extended__" (spec.md
// §4.7).
func (c *Cache) IsExtended(ctx context.Context, filePath string) (bool, error) {
	entry, ok, err := c.GetEntry(ctx, filePath)
	if err != nil || !ok {
		return false, err
	}
	return entry.Kind == store.KindExtended, nil
}

// Has reports whether filePath is known to the hot tier or the store.
func (c *Cache) Has(ctx context.Context, filePath string) (bool, error) {
	canon := pathkey.Canonicalize(filePath)
	c.mu.Lock()
	_, ok := c.hot.Get(canon)
	c.mu.Unlock()
	if ok {
		return true, nil
	}
	return c.st.HasMetadata(ctx, canon, nil)
}

// Add behaves like Set but fails with coreerr.ErrAlreadyExists if filePath
// is already known.
func (c *Cache) Add(ctx context.Context, filePath string, payload store.Payload, extended bool) error {
	exists, err := c.Has(ctx, filePath)
	if err != nil {
		return err
	}
	if exists {
		return coreerr.ErrAlreadyExists
	}
	return c.Set(ctx, filePath, payload, extended, false)
}

// Remove drops filePath from the hot tier and cascades its deletion in the
// store. Returns true iff a store row existed.
func (c *Cache) Remove(ctx context.Context, filePath string) (bool, error) {
	canon := pathkey.Canonicalize(filePath)
	c.mu.Lock()
	c.hot.Remove(canon)
	c.mu.Unlock()
	return c.st.RemovePath(ctx, canon)
}

// CleanupOrphans drops hot entries whose backing file no longer exists,
// then delegates to the store for the same cleanup.
func (c *Cache) CleanupOrphans(ctx context.Context) (int, error) {
	c.mu.Lock()
	for _, key := range c.hot.Keys() {
		if !pathExists(key) {
			c.hot.Remove(key)
		}
	}
	c.mu.Unlock()
	return c.st.CleanupOrphans(ctx)
}

// Stats reports hot-tier effectiveness alongside the backing store's row
// counts.
func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	storeStats, err := c.st.Stats(ctx)
	if err != nil {
		return Stats{}, err
	}

	c.mu.Lock()
	hits, misses := c.hits, c.misses
	size := c.hot.Len()
	c.mu.Unlock()

	var rate float64
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}
	return Stats{HotSize: size, Hits: hits, Misses: misses, HitRate: rate, StoreInfo: storeStats}, nil
}

// HasMetadataBatch checks metadata presence for every path in filePaths in
// a single store round trip, consulting the hot tier first.
func (c *Cache) HasMetadataBatch(ctx context.Context, filePaths []string) (map[string]bool, error) {
	result := make(map[string]bool, len(filePaths))
	var miss []string

	for _, p := range filePaths {
		canon := pathkey.Canonicalize(p)
		c.mu.Lock()
		_, ok := c.hot.Get(canon)
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

	fromStore, err := c.st.HasMetadataBatch(ctx, miss)
	if err != nil {
		return nil, err
	}
	for _, p := range miss {
		result[p] = fromStore[p]
	}
	return result, nil
}

// GetEntriesBatch loads structured entries for every path in filePaths by
// calling GetEntry once per path, so each hot-tier miss costs its own store
// query; paths are not fetched from the store in a single batched query.
func (c *Cache) GetEntriesBatch(ctx context.Context, filePaths []string) (map[string]Entry, error) {
	out := make(map[string]Entry, len(filePaths))
	for _, p := range filePaths {
		entry, ok, err := c.GetEntry(ctx, p)
		if err != nil {
			return nil, err
		}
		if ok {
			out[p] = entry
		}
	}
	return out, nil
}

func (c *Cache) recordHit() {
	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
}

func (c *Cache) recordMiss() {
	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
}

func stripFlags(p store.Payload) store.Payload {
	out := make(store.Payload, len(p))
	for k, v := range p {
		if k == store.FlagExtended || k == store.FlagModified {
			continue
		}
		out[k] = v
	}
	return out
}
