// Package metrics exposes the core's internal counters (C12) as Prometheus
// collectors: store row counts, batch-processor throughput, and snapshot
// backup status. None of this is on the hot path — each Collect call reads
// the underlying Stats()/Status() snapshot on demand.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mecondev/oncutf-sub007/internal/batch"
	"github.com/mecondev/oncutf-sub007/internal/snapshot"
	"github.com/mecondev/oncutf-sub007/internal/store"
)

// StoreStatsSource is the subset of store.Store metrics needs.
type StoreStatsSource interface {
	Stats(ctx context.Context) (store.Stats, error)
}

// BatchStatsSource is satisfied by a closure over a concrete
// *batch.Processor[I, O], since the Processor's type parameters make it
// impossible to hold a bare reference here.
type BatchStatsSource func() batch.Stats

// SnapshotStatusSource is the subset of snapshot.Manager metrics needs.
type SnapshotStatusSource interface {
	Status() snapshot.Status
}

var (
	descStorePaths    = prometheus.NewDesc("oncutf_store_paths_total", "Rows in the paths table.", nil, nil)
	descStoreMetadata = prometheus.NewDesc("oncutf_store_metadata_total", "Rows in the metadata table.", nil, nil)
	descStoreHashes   = prometheus.NewDesc("oncutf_store_hashes_total", "Rows in the hashes table.", nil, nil)
	descStoreRenames  = prometheus.NewDesc("oncutf_store_rename_entries_total", "Rows in the rename_history table.", nil, nil)

	descBatchTotal      = prometheus.NewDesc("oncutf_batch_total", "Batches processed by this processor.", nil, nil)
	descBatchItemsTotal = prometheus.NewDesc("oncutf_batch_items_total", "Items processed by this processor.", nil, nil)
	descBatchFailures   = prometheus.NewDesc("oncutf_batch_failures_total", "Failed batches for this processor.", nil, nil)
	descBatchItemsPerSec = prometheus.NewDesc("oncutf_batch_items_per_second", "Current items/sec throughput.", nil, nil)

	descSnapshotLastBackupUnix = prometheus.NewDesc("oncutf_snapshot_last_backup_unix_seconds", "Unix timestamp of the last completed backup.", nil, nil)
	descSnapshotCount          = prometheus.NewDesc("oncutf_snapshot_retained_count", "Configured retained-backup count.", nil, nil)
	descSnapshotLastFailed     = prometheus.NewDesc("oncutf_snapshot_last_failed", "1 if the most recent backup attempt failed.", nil, nil)
)

// Collector implements prometheus.Collector over the core's components.
// Any source may be nil, in which case its metrics are simply not emitted.
type Collector struct {
	store    StoreStatsSource
	batch    BatchStatsSource
	snapshot SnapshotStatusSource
}

// New builds a Collector. Pass nil for any source the caller doesn't want
// reported.
func New(storeSrc StoreStatsSource, batchSrc BatchStatsSource, snapshotSrc SnapshotStatusSource) *Collector {
	return &Collector{store: storeSrc, batch: batchSrc, snapshot: snapshotSrc}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- descStorePaths
	ch <- descStoreMetadata
	ch <- descStoreHashes
	ch <- descStoreRenames
	ch <- descBatchTotal
	ch <- descBatchItemsTotal
	ch <- descBatchFailures
	ch <- descBatchItemsPerSec
	ch <- descSnapshotLastBackupUnix
	ch <- descSnapshotCount
	ch <- descSnapshotLastFailed
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.store != nil {
		if stats, err := c.store.Stats(context.Background()); err == nil {
			ch <- prometheus.MustNewConstMetric(descStorePaths, prometheus.GaugeValue, float64(stats.Paths))
			ch <- prometheus.MustNewConstMetric(descStoreMetadata, prometheus.GaugeValue, float64(stats.Metadata))
			ch <- prometheus.MustNewConstMetric(descStoreHashes, prometheus.GaugeValue, float64(stats.Hashes))
			ch <- prometheus.MustNewConstMetric(descStoreRenames, prometheus.GaugeValue, float64(stats.RenameEntries))
		}
	}

	if c.batch != nil {
		stats := c.batch()
		ch <- prometheus.MustNewConstMetric(descBatchTotal, prometheus.CounterValue, float64(stats.TotalBatches))
		ch <- prometheus.MustNewConstMetric(descBatchItemsTotal, prometheus.CounterValue, float64(stats.TotalItems))
		ch <- prometheus.MustNewConstMetric(descBatchFailures, prometheus.CounterValue, float64(stats.Failures))
		ch <- prometheus.MustNewConstMetric(descBatchItemsPerSec, prometheus.GaugeValue, stats.ItemsPerSec)
	}

	if c.snapshot != nil {
		status := c.snapshot.Status()
		ch <- prometheus.MustNewConstMetric(descSnapshotLastBackupUnix, prometheus.GaugeValue, float64(status.LastBackup.Unix()))
		ch <- prometheus.MustNewConstMetric(descSnapshotCount, prometheus.GaugeValue, float64(status.Count))
		failed := 0.0
		if status.LastError != "" {
			failed = 1.0
		}
		ch <- prometheus.MustNewConstMetric(descSnapshotLastFailed, prometheus.GaugeValue, failed)
	}
}

// Register registers the Collector against reg. A nil reg registers
// nothing and returns nil.
func Register(reg *prometheus.Registry, c *Collector) error {
	if reg == nil {
		return nil
	}
	return reg.Register(c)
}
