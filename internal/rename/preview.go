package rename

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/mecondev/oncutf-sub007/internal/pathkey"
)

// NamePair is one (old, new) basename pair produced by a preview.
type NamePair struct {
	Old string
	New string
}

// PreviewResult is the output of PreviewEngine.Generate (spec.md §4.4.2).
type PreviewResult struct {
	NamePairs  []NamePair
	HasChanges bool
	Errors     []string
}

// PreviewEngine generates rename previews, memoized for PreviewCacheTTL
// per (files, modules, post_transform) key.
type PreviewEngine struct {
	queries *BatchQueryManager
	ttl     time.Duration

	mu    sync.Mutex
	cache map[string]previewCacheEntry
}

type previewCacheEntry struct {
	result    PreviewResult
	expiresAt time.Time
}

// NewPreviewEngine builds a PreviewEngine. queries may be nil, in which
// case every file is treated as having neither hash nor metadata.
func NewPreviewEngine(queries *BatchQueryManager, ttl time.Duration) *PreviewEngine {
	if ttl <= 0 {
		ttl = 100 * time.Millisecond
	}
	return &PreviewEngine{queries: queries, ttl: ttl, cache: make(map[string]previewCacheEntry)}
}

// Generate produces name pairs for files, applying modules in order and
// then postTransform, preserving input order exactly (spec.md §4.4.2).
func (p *PreviewEngine) Generate(ctx context.Context, files []string, modules []Module, postTransform PostTransform) (PreviewResult, error) {
	key := previewCacheKey(files, modules, postTransform)

	p.mu.Lock()
	if entry, ok := p.cache[key]; ok && time.Now().Before(entry.expiresAt) {
		p.mu.Unlock()
		return entry.result, nil
	}
	p.mu.Unlock()

	var avail map[string]FileContext
	if p.queries != nil {
		var err error
		avail, err = p.queries.Resolve(ctx, files)
		if err != nil {
			return PreviewResult{}, err
		}
	}

	result := PreviewResult{NamePairs: make([]NamePair, 0, len(files))}

	for i, f := range files {
		oldBase := pathkey.Basename(f)
		stem, ext := pathkey.SplitExt(oldBase)

		fc := avail[f]
		fc.Index = i
		fc.Path = f

		newStem, errStr := p.applyModules(ctx, stem, fc, modules)
		if errStr != "" {
			result.Errors = append(result.Errors, errStr)
			result.NamePairs = append(result.NamePairs, NamePair{Old: oldBase, New: oldBase})
			continue
		}

		candidate := newStem + ext
		if postTransform != nil && postTransform.Effective(candidate) {
			candidate = postTransform.Apply(candidate)
		}

		if !isSafeFilename(candidate) {
			result.Errors = append(result.Errors, "invalid characters in candidate name for "+oldBase)
			result.NamePairs = append(result.NamePairs, NamePair{Old: oldBase, New: oldBase})
			continue
		}

		result.NamePairs = append(result.NamePairs, NamePair{Old: oldBase, New: candidate})
	}

	for _, pair := range result.NamePairs {
		if pair.Old != pair.New {
			result.HasChanges = true
			break
		}
	}

	p.mu.Lock()
	p.cache[key] = previewCacheEntry{result: result, expiresAt: time.Now().Add(p.ttl)}
	p.mu.Unlock()

	return result, nil
}

// applyModules runs the module chain over stem, later modules seeing
// earlier modules' output (spec.md §4.4.2 tie-break rule). A module error
// is swallowed: the pair becomes (old, old) with an error string attached,
// per the failure-semantics table.
func (p *PreviewEngine) applyModules(ctx context.Context, stem string, fc FileContext, modules []Module) (result string, errStr string) {
	defer func() {
		if r := recover(); r != nil {
			errStr = "module panicked"
		}
	}()

	out := stem
	for _, m := range modules {
		switch m.Category() {
		case CategoryHash:
			if !fc.HasHash {
				out = SentinelMissingHash
				continue
			}
		case CategoryMetadataKeys:
			if !fc.HasMetadata {
				out = SentinelMissingMetadata
				continue
			}
		}

		next, err := m.Apply(ctx, out, fc)
		if err != nil {
			return stem, err.Error()
		}
		out = next
	}
	return out, ""
}

// cacheKeyer lets a Module contribute its own configuration to the preview
// cache key (the "canonical_json(modules)" component of spec.md §4.4.2),
// instead of collapsing to just its category.
type cacheKeyer interface {
	CacheKey() string
}

// postTransformCacheKeyer lets a PostTransform contribute its own
// configuration to the preview cache key, the same way cacheKeyer does for
// Module. Without it two different non-nil post-transforms collapse to the
// same presence bit and collide within the TTL window.
type postTransformCacheKeyer interface {
	CacheKey() string
}

// previewCacheKey hashes (files, modules identity, post_transform) into a
// stable cache key, per spec.md §4.4.2.
func previewCacheKey(files []string, modules []Module, postTransform PostTransform) string {
	h := sha256.New()
	for _, f := range files {
		h.Write([]byte(f))
		h.Write([]byte{0})
	}
	moduleSpec := make([]string, len(modules))
	for i, m := range modules {
		if ck, ok := m.(cacheKeyer); ok {
			moduleSpec[i] = ck.CacheKey()
		} else {
			moduleSpec[i] = string(m.Category())
		}
	}
	specJSON, _ := json.Marshal(moduleSpec)
	h.Write(specJSON)
	if postTransform != nil {
		h.Write([]byte{1})
		if ck, ok := postTransform.(postTransformCacheKeyer); ok {
			h.Write([]byte(ck.CacheKey()))
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
