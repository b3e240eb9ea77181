// Package core assembles every component into one CoreServices instance
// (spec.md Design Notes: "explicit references held by a services object
// instead of global singletons").
package core

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mecondev/oncutf-sub007/internal/batch"
	"github.com/mecondev/oncutf-sub007/internal/config"
	"github.com/mecondev/oncutf-sub007/internal/events"
	"github.com/mecondev/oncutf-sub007/internal/filestatus"
	"github.com/mecondev/oncutf-sub007/internal/hashcache"
	"github.com/mecondev/oncutf-sub007/internal/history"
	"github.com/mecondev/oncutf-sub007/internal/metadatacache"
	"github.com/mecondev/oncutf-sub007/internal/rename"
	"github.com/mecondev/oncutf-sub007/internal/snapshot"
	"github.com/mecondev/oncutf-sub007/internal/store"
)

// Services is the composition root every caller (CLI, future UI, tests)
// constructs once and threads through explicitly. No field here is a
// package-level global.
type Services struct {
	Config   *config.Config
	Log      *zap.Logger
	Bus      *events.Bus
	Store    *store.Store
	Metadata *metadatacache.Cache
	Hashes   *hashcache.Cache
	History  *history.History
	Snapshot *snapshot.Manager
	Files    *filestatus.Facade
	Engine   *rename.Engine
}

// New opens the store at cfg.StorePath and wires every component around
// it. Callers own the returned Services' lifetime and must call Close.
func New(cfg *config.Config, log *zap.Logger) (*Services, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = zap.NewNop()
	}

	st, err := store.Open(cfg.StorePath, log)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	metadata, err := metadatacache.New(st, cfg.MetadataHotCapacity)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("build metadata cache: %w", err)
	}

	hashes, err := hashcache.New(st, cfg.HashHotCapacity)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("build hash cache: %w", err)
	}

	bus := events.New()

	execEngine := rename.NewExecutionEngine()
	hist := history.New(st, history.Renamer(execEngine.RenameOne), nil)

	snap := snapshot.New(st, bus, log, cfg.SnapshotCount, cfg.SnapshotInterval())
	snap.EnablePeriodic(cfg.PeriodicSnapshotsEnabled)

	files := filestatus.New(metadata, hashes, "")

	queries := rename.NewBatchQueryManager(hashes, metadata, "")
	preview := rename.NewPreviewEngine(queries, cfg.PreviewCacheTTL())
	validate := rename.NewValidationEngine(cfg.PreviewCacheTTL())
	engine := rename.NewEngine(preview, validate, execEngine, bus)

	return &Services{
		Config:   cfg,
		Log:      log,
		Bus:      bus,
		Store:    st,
		Metadata: metadata,
		Hashes:   hashes,
		History:  hist,
		Snapshot: snap,
		Files:    files,
		Engine:   engine,
	}, nil
}

// NewBatchProcessor builds a batch.Processor[I, O] tuned from cfg. It's a
// function rather than a Services field because Processor is generic and
// Go structs cannot hold an unbound type parameter.
func NewBatchProcessor[I, O any](cfg *config.Config) *batch.Processor[I, O] {
	return batch.New[I, O](batch.Config{
		BatchSize:  cfg.BatchDefaultSize,
		MaxWorkers: cfg.BatchMaxWorkers,
		SmartMode:  cfg.BatchSmartMode,
	})
}

// StartPeriodicSnapshots begins the configured periodic backup schedule.
func (s *Services) StartPeriodicSnapshots(ctx context.Context) {
	s.Snapshot.StartPeriodic(ctx)
}

// Close backs up the store (if periodic snapshots are enabled), stops the
// snapshot schedule, releases the event bus, and closes the store.
func (s *Services) Close(ctx context.Context) error {
	s.Snapshot.StopPeriodic()
	if s.Config.PeriodicSnapshotsEnabled {
		s.Snapshot.BackupOnShutdown(ctx)
	}
	s.Bus.Shutdown()
	return s.Store.Close()
}
