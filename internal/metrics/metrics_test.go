package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/mecondev/oncutf-sub007/internal/batch"
	"github.com/mecondev/oncutf-sub007/internal/snapshot"
	"github.com/mecondev/oncutf-sub007/internal/store"
)

type fakeStoreSource struct{ stats store.Stats }

func (f fakeStoreSource) Stats(ctx context.Context) (store.Stats, error) { return f.stats, nil }

type fakeSnapshotSource struct{ status snapshot.Status }

func (f fakeSnapshotSource) Status() snapshot.Status { return f.status }

func TestCollectorRegistersAndGathers(t *testing.T) {
	storeSrc := fakeStoreSource{stats: store.Stats{Paths: 3, Metadata: 2, Hashes: 1, RenameEntries: 5}}
	snapSrc := fakeSnapshotSource{status: snapshot.Status{Count: 5}}
	batchSrc := func() batch.Stats { return batch.Stats{TotalBatches: 10, TotalItems: 100, Failures: 1} }

	c := New(storeSrc, BatchStatsSource(batchSrc), snapSrc)

	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg, c))

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]*dto.MetricFamily, len(families))
	for _, mf := range families {
		names[mf.GetName()] = mf
	}

	require.Contains(t, names, "oncutf_store_paths_total")
	require.Equal(t, 3.0, names["oncutf_store_paths_total"].Metric[0].GetGauge().GetValue())

	require.Contains(t, names, "oncutf_batch_total")
	require.Equal(t, 10.0, names["oncutf_batch_total"].Metric[0].GetCounter().GetValue())

	require.Contains(t, names, "oncutf_snapshot_retained_count")
}

func TestCollectorHandlesNilSources(t *testing.T) {
	c := New(nil, nil, nil)
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg, c))

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Empty(t, families)
}
