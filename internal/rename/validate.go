package rename

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/mecondev/oncutf-sub007/internal/pathkey"
)

// ValidationItem is the per-pair verdict produced by ValidationEngine.Validate
// (spec.md §4.4.3).
type ValidationItem struct {
	Old         string
	New         string
	IsValid     bool
	IsDuplicate bool
	IsUnchanged bool
	Error       string
}

// ValidationResult is the output of ValidationEngine.Validate.
type ValidationResult struct {
	Items      []ValidationItem
	Duplicates map[string]bool
	HasErrors  bool
}

// ValidationEngine validates preview name pairs, memoized for
// PreviewCacheTTL keyed on the pair sequence.
type ValidationEngine struct {
	ttl time.Duration

	mu    sync.Mutex
	cache map[string]validationCacheEntry
}

type validationCacheEntry struct {
	result    ValidationResult
	expiresAt time.Time
}

// NewValidationEngine builds a ValidationEngine with the given memoization
// TTL (defaults to 100ms).
func NewValidationEngine(ttl time.Duration) *ValidationEngine {
	if ttl <= 0 {
		ttl = 100 * time.Millisecond
	}
	return &ValidationEngine{ttl: ttl, cache: make(map[string]validationCacheEntry)}
}

// Validate produces a ValidationResult for pairs (spec.md §4.4.3): the
// first occurrence of a repeated new name is not itself marked duplicate,
// but its name is recorded in Duplicates (P8).
func (v *ValidationEngine) Validate(pairs []NamePair) ValidationResult {
	key := validationCacheKey(pairs)

	v.mu.Lock()
	if entry, ok := v.cache[key]; ok && time.Now().Before(entry.expiresAt) {
		v.mu.Unlock()
		return entry.result
	}
	v.mu.Unlock()

	seen := make(map[string]bool, len(pairs))
	duplicates := make(map[string]bool)
	items := make([]ValidationItem, 0, len(pairs))

	for _, pair := range pairs {
		isDup := seen[pair.New]
		if isDup {
			duplicates[pair.New] = true
		}
		seen[pair.New] = true

		valid := isSafeFilename(pathkey.Basename(pair.New))
		item := ValidationItem{
			Old:         pair.Old,
			New:         pair.New,
			IsValid:     valid,
			IsDuplicate: isDup,
			IsUnchanged: pair.Old == pair.New,
		}
		if !valid {
			item.Error = "invalid filename characters"
		}
		items = append(items, item)
	}

	result := ValidationResult{Items: items, Duplicates: duplicates}
	for _, item := range items {
		if !item.IsValid {
			result.HasErrors = true
			break
		}
	}

	v.mu.Lock()
	v.cache[key] = validationCacheEntry{result: result, expiresAt: time.Now().Add(v.ttl)}
	v.mu.Unlock()

	return result
}

func validationCacheKey(pairs []NamePair) string {
	h := sha256.New()
	for _, p := range pairs {
		h.Write([]byte(p.Old))
		h.Write([]byte{0})
		h.Write([]byte(p.New))
		h.Write([]byte{1})
	}
	return hex.EncodeToString(h.Sum(nil))
}
