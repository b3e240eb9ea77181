package rename

import (
	"context"

	"github.com/mecondev/oncutf-sub007/internal/store"
)

// HashAvailability is the subset of hashcache.Cache the preview engine
// needs for its once-per-call batch query (spec.md §4.4.2).
type HashAvailability interface {
	GetFilesWithHashBatch(ctx context.Context, filePaths []string, algorithm string) (map[string]bool, error)
}

// MetadataAvailability is the subset of metadatacache.Cache the preview
// engine needs for its once-per-call batch query.
type MetadataAvailability interface {
	HasMetadataBatch(ctx context.Context, filePaths []string) (map[string]bool, error)
	Get(ctx context.Context, filePath string) (store.Payload, bool, error)
}

// BatchQueryManager resolves hash/metadata availability for a whole file
// list with one availability query per cache, per spec.md §4.4.2: "asks the
// BatchQueryManager for hash_availability and metadata_availability once
// per call". Resolve then loads the metadata payload with one Get per file
// that has metadata.
type BatchQueryManager struct {
	hashes   HashAvailability
	metadata MetadataAvailability
	algo     string
}

// NewBatchQueryManager builds a BatchQueryManager over the given caches.
// algo selects which hash algorithm's availability is queried (defaults to
// "crc32" if empty).
func NewBatchQueryManager(hashes HashAvailability, metadata MetadataAvailability, algo string) *BatchQueryManager {
	if algo == "" {
		algo = "crc32"
	}
	return &BatchQueryManager{hashes: hashes, metadata: metadata, algo: algo}
}

// Resolve returns per-file FileContext availability for files, plus loaded
// metadata payloads for files that have one.
func (b *BatchQueryManager) Resolve(ctx context.Context, files []string) (map[string]FileContext, error) {
	out := make(map[string]FileContext, len(files))
	for i, f := range files {
		out[f] = FileContext{Path: f, Index: i}
	}

	if b.hashes != nil {
		hashAvail, err := b.hashes.GetFilesWithHashBatch(ctx, files, b.algo)
		if err != nil {
			return nil, err
		}
		for f, ok := range hashAvail {
			fc := out[f]
			fc.HasHash = ok
			out[f] = fc
		}
	}

	if b.metadata != nil {
		metaAvail, err := b.metadata.HasMetadataBatch(ctx, files)
		if err != nil {
			return nil, err
		}
		for f, ok := range metaAvail {
			fc := out[f]
			fc.HasMetadata = ok
			if ok {
				if payload, found, err := b.metadata.Get(ctx, f); err == nil && found {
					fc.Metadata = payload
				}
			}
			out[f] = fc
		}
	}

	return out, nil
}
