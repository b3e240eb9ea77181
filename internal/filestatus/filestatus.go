// Package filestatus implements FileStatusFacade (C9): a thin read-mostly
// API over MetadataCache and HashCache for callers that only need status
// answers and don't want to depend on either cache's full surface.
package filestatus

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mecondev/oncutf-sub007/internal/coreerr"
	"github.com/mecondev/oncutf-sub007/internal/metadatacache"
	"github.com/mecondev/oncutf-sub007/internal/rename"
	"github.com/mecondev/oncutf-sub007/internal/store"
)

// Facade is FileStatusFacade: a read-mostly view for UI-style callers that
// otherwise have no business depending on the caches' write paths.
type Facade struct {
	metadata *metadatacache.Cache
	hashes   hashReader
	algo     string
}

// hashReader is the subset of hashcache.Cache the facade needs.
type hashReader interface {
	GetHash(ctx context.Context, filePath, algorithm string) (string, bool, error)
	HasHash(ctx context.Context, filePath, algorithm string) (bool, error)
	GetFilesWithHashBatch(ctx context.Context, filePaths []string, algorithm string) (map[string]bool, error)
}

// New builds a Facade over the given caches. algo selects the hash
// algorithm queried by the hash-related methods (defaults to "crc32").
func New(metadata *metadatacache.Cache, hashes hashReader, algo string) *Facade {
	if algo == "" {
		algo = "crc32"
	}
	return &Facade{metadata: metadata, hashes: hashes, algo: algo}
}

// GetMetadataForFile returns the full metadata payload for filePath.
func (f *Facade) GetMetadataForFile(ctx context.Context, filePath string) (store.Payload, bool, error) {
	return f.metadata.Get(ctx, filePath)
}

// HasMetadata reports whether filePath has any metadata recorded.
func (f *Facade) HasMetadata(ctx context.Context, filePath string) (bool, error) {
	return f.metadata.Has(ctx, filePath)
}

// GetMetadataCacheEntry returns the structured cache entry (payload, kind,
// modified flag, timestamp) for filePath.
func (f *Facade) GetMetadataCacheEntry(ctx context.Context, filePath string) (metadatacache.Entry, bool, error) {
	return f.metadata.GetEntry(ctx, filePath)
}

// SetMetadataForFile write-throughs a full payload for filePath.
func (f *Facade) SetMetadataForFile(ctx context.Context, filePath string, payload store.Payload, extended, modified bool) error {
	return f.metadata.Set(ctx, filePath, payload, extended, modified)
}

// IsMetadataExtended reports whether filePath's current record is extended.
func (f *Facade) IsMetadataExtended(ctx context.Context, filePath string) (bool, error) {
	return f.metadata.IsExtended(ctx, filePath)
}

// IsMetadataModified reports whether filePath's current record carries the
// user-edited flag.
func (f *Facade) IsMetadataModified(ctx context.Context, filePath string) (bool, error) {
	entry, ok, err := f.metadata.GetEntry(ctx, filePath)
	if err != nil || !ok {
		return false, err
	}
	return entry.IsModified, nil
}

// GetMetadataValue returns a single field's value, with Rotation handled
// specially: it is read from the "Rotation" key as stored (SetMetadataValue
// stores it already validated and normalized); the value is not parsed or
// re-validated on read (spec.md §4.4.5).
func (f *Facade) GetMetadataValue(ctx context.Context, filePath string, field rename.EditableField) (string, bool, error) {
	payload, ok, err := f.metadata.Get(ctx, filePath)
	if err != nil || !ok {
		return "", false, err
	}

	if field == rename.FieldRotation {
		raw, present := payload["Rotation"]
		if !present {
			return "", false, nil
		}
		s, _ := raw.(string)
		return s, s != "", nil
	}

	value, found := rename.ResolveTagValue(field, payload, filepath.Ext(filePath))
	return value, found, nil
}

// SetMetadataValue writes a single field's value against filePath's full
// current payload, so sibling fields survive the write (the underlying
// cache's extended write replaces the stored payload outright, it does not
// merge a partial one in). Rotation strips any prior rotation entry at any
// depth before writing the canonical top-level "Rotation" key; other
// fields resolve the standard tag key the edit should land in — an
// already-present key if one exists, otherwise the highest-priority key
// the file type supports — and write there (spec.md §4.4.5, §4.9).
func (f *Facade) SetMetadataValue(ctx context.Context, filePath string, field rename.EditableField, value string) error {
	current, _, err := f.metadata.Get(ctx, filePath)
	if err != nil {
		return err
	}

	if field == rename.FieldRotation {
		n, err := rename.ParseRotation(value)
		if err != nil {
			return err
		}
		updated := stripRotationKeys(current)
		updated["Rotation"] = strconv.Itoa(n)
		return f.metadata.Set(ctx, filePath, updated, true, true)
	}

	if err := rename.ValidateTagText(field, value); err != nil {
		return err
	}
	key := rename.ResolveTagKey(field, current, filepath.Ext(filePath))
	updated := make(store.Payload, len(current)+1)
	for k, v := range current {
		updated[k] = v
	}
	updated[key] = value
	return f.metadata.Set(ctx, filePath, updated, true, true)
}

// stripRotationKeys returns a copy of payload with every key whose
// unprefixed name is "Rotation" (case-insensitive) removed, regardless of
// what group prefix it carried (spec.md §4.9: "any prior rotation entries
// at any depth are removed").
func stripRotationKeys(payload store.Payload) store.Payload {
	cleaned := make(store.Payload, len(payload)+1)
	for k, v := range payload {
		base := k
		if idx := strings.LastIndex(k, ":"); idx >= 0 {
			base = k[idx+1:]
		}
		if strings.EqualFold(base, "Rotation") {
			continue
		}
		cleaned[k] = v
	}
	return cleaned
}

// GetHashForFile returns filePath's recorded hash value.
func (f *Facade) GetHashForFile(ctx context.Context, filePath string) (string, bool, error) {
	if f.hashes == nil {
		return "", false, coreerr.Invalid("hashes", "no hash cache configured")
	}
	return f.hashes.GetHash(ctx, filePath, f.algo)
}

// HasHash reports whether filePath has a recorded hash.
func (f *Facade) HasHash(ctx context.Context, filePath string) (bool, error) {
	if f.hashes == nil {
		return false, nil
	}
	return f.hashes.HasHash(ctx, filePath, f.algo)
}

// BatchMetadataStatus reports metadata presence for every path in
// filePaths in one round trip.
func (f *Facade) BatchMetadataStatus(ctx context.Context, filePaths []string) (map[string]bool, error) {
	return f.metadata.HasMetadataBatch(ctx, filePaths)
}

// BatchHashStatus reports hash presence for every path in filePaths in one
// round trip.
func (f *Facade) BatchHashStatus(ctx context.Context, filePaths []string) (map[string]bool, error) {
	if f.hashes == nil {
		out := make(map[string]bool, len(filePaths))
		return out, nil
	}
	return f.hashes.GetFilesWithHashBatch(ctx, filePaths, f.algo)
}
