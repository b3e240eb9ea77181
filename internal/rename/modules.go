// Package rename implements the batched rename engine (spec.md §4.4, C6):
// preview generation, duplicate/name validation, conflict-resolving
// execution, and the editable-field validators, sharing a RenameState.
package rename

import (
	"context"

	"github.com/mecondev/oncutf-sub007/internal/store"
)

// ModuleCategory classifies a Module for the two availability sentinels
// (spec.md §4.4.2): "hash" modules need a content hash, "metadata_keys"
// modules need a metadata record.
type ModuleCategory string

const (
	CategoryOther        ModuleCategory = "other"
	CategoryHash         ModuleCategory = "hash"
	CategoryMetadataKeys ModuleCategory = "metadata_keys"
)

const (
	// SentinelMissingHash is emitted verbatim as a basename when a "hash"
	// category module runs against a file with no recorded hash.
	SentinelMissingHash = "missing_hash"
	// SentinelMissingMetadata is emitted verbatim when a "metadata_keys"
	// category module runs against a file with no metadata record.
	SentinelMissingMetadata = "missing_metadata"
)

// FileContext carries the per-file availability facts a module may need,
// resolved once per Preview call by the BatchQueryManager.
type FileContext struct {
	Path        string
	Index       int
	HasHash     bool
	HasMetadata bool
	Metadata    store.Payload
}

// Module is a pure function from (file, index, context) to a new basename,
// per the GLOSSARY. Implementations must not mutate shared state between
// calls — a fresh slice of modules is built once per preview call.
type Module interface {
	Category() ModuleCategory
	// Apply returns the transformed stem (without extension). Extension
	// handling is the engine's job, not the module's.
	Apply(ctx context.Context, stem string, fc FileContext) (string, error)
}

// PostTransform is a final name transformation applied after the module
// chain (separator change, case change, transliteration).
type PostTransform interface {
	// Effective reports whether applying this transform would change name.
	Effective(name string) bool
	Apply(name string) string
}

// ModuleFunc adapts a plain function to Module for "other" category
// modules (the common case for simple text transforms).
type ModuleFunc func(ctx context.Context, stem string, fc FileContext) (string, error)

func (f ModuleFunc) Category() ModuleCategory { return CategoryOther }
func (f ModuleFunc) Apply(ctx context.Context, stem string, fc FileContext) (string, error) {
	return f(ctx, stem, fc)
}

// categorized wraps a module function to tag it with a
// category that triggers sentinel substitution when availability is
// false, without requiring every caller to write a full Module.
type categorized struct {
	category ModuleCategory
	fn       func(ctx context.Context, stem string, fc FileContext) (string, error)
}

func (c categorized) Category() ModuleCategory { return c.category }
func (c categorized) Apply(ctx context.Context, stem string, fc FileContext) (string, error) {
	return c.fn(ctx, stem, fc)
}

// NewHashModule builds a "hash" category module from fn.
func NewHashModule(fn func(ctx context.Context, stem string, fc FileContext) (string, error)) Module {
	return categorized{category: CategoryHash, fn: fn}
}

// NewMetadataModule builds a "metadata_keys" category module from fn.
func NewMetadataModule(fn func(ctx context.Context, stem string, fc FileContext) (string, error)) Module {
	return categorized{category: CategoryMetadataKeys, fn: fn}
}
