// Package metadataworker implements the cooperative metadata-ingest
// producer (spec.md §4.7, C4): it calls an injected probe per file,
// batches writes to the metadata cache, and reports progress over the
// event bus, all on a single background goroutine.
package metadataworker

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/mecondev/oncutf-sub007/internal/events"
	"github.com/mecondev/oncutf-sub007/internal/store"
)

// Prober is the injected probe client (spec.md: "reader ... the core does
// not construct it"). It never panics out of Probe; a failure is returned
// as an error and the worker records an empty payload for that file.
type Prober interface {
	Probe(ctx context.Context, filePath string) (store.Payload, error)
}

// MetadataSetter is the subset of metadatacache.Cache the worker needs.
type MetadataSetter interface {
	Set(ctx context.Context, filePath string, payload store.Payload, extended, modified bool) error
	// IsExtended reports whether filePath's current cache entry (if any)
	// already has extended metadata, used to resolve effectiveExtended.
	IsExtended(ctx context.Context, filePath string) (bool, error)
}

// ProgressEvent is published on events.TopicWorkerProgress.
type ProgressEvent struct{ Done, Total int }

// SizeProgressEvent is published on events.TopicWorkerSizeProgress.
type SizeProgressEvent struct{ ProcessedBytes, TotalBytes int64 }

// FileLoadedEvent is published on events.TopicWorkerFileLoaded, strictly in
// submission order.
type FileLoadedEvent struct{ Path string }

// FinishedEvent is published on events.TopicWorkerFinished.
type FinishedEvent struct{ Cancelled bool }

type pendingWrite struct {
	path       string
	payload    store.Payload
	extended   bool
	modified   bool
}

// Worker drives a single metadata-ingest pass over a file list.
type Worker struct {
	reader       Prober
	cache        MetadataSetter
	files        []string
	useExtended  bool
	batchEnabled bool
	batchSize    int
	bus          *events.Bus
	log          *zap.Logger

	cancelled atomic.Bool
}

// Option configures a Worker.
type Option func(*Worker)

// WithBatching enables queued writes flushed every n files (and at the
// end); a flush failure falls back to direct per-file writes.
func WithBatching(n int) Option {
	return func(w *Worker) {
		w.batchEnabled = true
		w.batchSize = n
	}
}

// WithBus attaches the event bus used for progress/file-loaded signals.
func WithBus(b *events.Bus) Option {
	return func(w *Worker) { w.bus = b }
}

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Worker) { w.log = l }
}

// New builds a Worker over files, calling reader per file and writing
// results through cache.
func New(reader Prober, cache MetadataSetter, files []string, useExtended bool, opts ...Option) *Worker {
	w := &Worker{
		reader:      reader,
		cache:       cache,
		files:       files,
		useExtended: useExtended,
		batchSize:   50,
		log:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Cancel requests cooperative cancellation; the worker checks this flag
// between files (no mid-file abort of the probe).
func (w *Worker) Cancel() {
	w.cancelled.Store(true)
}

// Run drives the worker to completion or cancellation, emitting progress
// signals as it goes. It never returns an error out of band — per-file
// probe failures are logged and recorded as an empty payload.
func (w *Worker) Run(ctx context.Context) {
	total := len(w.files)
	var pending []pendingWrite
	var totalBytes, processedBytes int64

	flush := func() {
		if len(pending) == 0 {
			return
		}
		if err := w.flushBatch(ctx, pending); err != nil {
			w.log.Warn("batched metadata flush failed, falling back to per-file writes", zap.Error(err))
			for _, pw := range pending {
				if err := w.cache.Set(ctx, pw.path, pw.payload, pw.extended, pw.modified); err != nil {
					w.log.Error("direct metadata write failed", zap.String("path", pw.path), zap.Error(err))
				}
			}
		}
		pending = nil
	}

	for i, path := range w.files {
		if w.cancelled.Load() {
			flush()
			w.publish(events.TopicWorkerFinished, FinishedEvent{Cancelled: true})
			return
		}

		payload, err := w.reader.Probe(ctx, path)
		if err != nil {
			w.log.Warn("probe failed", zap.String("path", path), zap.Error(err))
			payload = store.Payload{}
		}

		effectiveExtended := w.effectiveExtended(ctx, path, payload)

		if w.batchEnabled {
			pending = append(pending, pendingWrite{path: path, payload: payload, extended: effectiveExtended, modified: false})
			if len(pending) >= w.batchSize {
				flush()
			}
		} else if err := w.cache.Set(ctx, path, payload, effectiveExtended, false); err != nil {
			w.log.Error("metadata write failed", zap.String("path", path), zap.Error(err))
		}

		if size, ok := payload["__size_bytes__"].(int64); ok {
			processedBytes += size
			totalBytes += size
		}

		w.publish(events.TopicWorkerProgress, ProgressEvent{Done: i + 1, Total: total})
		w.publish(events.TopicWorkerSizeProgress, SizeProgressEvent{ProcessedBytes: processedBytes, TotalBytes: totalBytes})
		w.publish(events.TopicWorkerFileLoaded, FileLoadedEvent{Path: path})
	}

	flush()
	w.publish(events.TopicWorkerFinished, FinishedEvent{Cancelled: false})
}

// effectiveExtended resolves previous_extended OR use_extended OR
// payload.__extended__, per spec.md §4.7.
func (w *Worker) effectiveExtended(ctx context.Context, path string, payload store.Payload) bool {
	if w.useExtended {
		return true
	}
	if b, _ := payload[store.FlagExtended].(bool); b {
		return true
	}
	wasExtended, err := w.cache.IsExtended(ctx, path)
	return err == nil && wasExtended
}

func (w *Worker) flushBatch(ctx context.Context, pending []pendingWrite) error {
	for _, pw := range pending {
		if err := w.cache.Set(ctx, pw.path, pw.payload, pw.extended, pw.modified); err != nil {
			return err
		}
	}
	return nil
}

func (w *Worker) publish(topic string, msg any) {
	if w.bus == nil {
		return
	}
	w.bus.Publish(topic, msg)
}
