package core

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mecondev/oncutf-sub007/internal/config"
)

func TestNewWiresEveryComponent(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.StorePath = filepath.Join(dir, "test.db")
	cfg.PeriodicSnapshotsEnabled = false

	svc, err := New(cfg, nil)
	require.NoError(t, err)
	require.NotNil(t, svc.Store)
	require.NotNil(t, svc.Metadata)
	require.NotNil(t, svc.Hashes)
	require.NotNil(t, svc.History)
	require.NotNil(t, svc.Snapshot)
	require.NotNil(t, svc.Files)
	require.NotNil(t, svc.Engine)

	require.NoError(t, svc.Close(context.Background()))
}

func TestNewBatchProcessorUsesConfig(t *testing.T) {
	cfg := config.Default()
	cfg.BatchDefaultSize = 42

	p := NewBatchProcessor[string, string](cfg)
	require.NotNil(t, p)
}
