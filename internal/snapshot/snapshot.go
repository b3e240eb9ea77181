// Package snapshot implements SnapshotManager (C8): periodic and
// on-shutdown copies of the persistent store's database file, rotated by
// count.
package snapshot

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mecondev/oncutf-sub007/internal/coreerr"
	"github.com/mecondev/oncutf-sub007/internal/events"
)

// checkpointer is the subset of store.Store a Manager needs: the database
// path and a way to force the WAL back into the main file before copying.
type checkpointer interface {
	Path() string
	Checkpoint(ctx context.Context) error
}

// BackupInfo describes one on-disk backup file.
type BackupInfo struct {
	Path      string
	CreatedAt time.Time
}

// Status is the snapshot subsystem's current configuration and state,
// returned by Manager.Status.
type Status struct {
	Count           int
	Interval        time.Duration
	PeriodicEnabled bool
	LastBackup      time.Time
	LastError       string
}

// Manager is the SnapshotManager component.
type Manager struct {
	store checkpointer
	bus   *events.Bus
	log   *zap.Logger

	mu              sync.Mutex
	count           int
	interval        time.Duration
	periodicEnabled bool
	lastBackup      time.Time
	lastError       string

	stopCh chan struct{}
	doneCh chan struct{}
}

// New builds a Manager with the given initial backup count and interval.
func New(store checkpointer, bus *events.Bus, log *zap.Logger, count int, interval time.Duration) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	if count <= 0 {
		count = 5
	}
	return &Manager{store: store, bus: bus, log: log, count: count, interval: interval}
}

// Create takes an immediate backup, checkpointing the store first so the
// copied file is self-contained, then rotates older backups past Count.
// Publishes backup_completed or backup_failed on the event bus.
func (m *Manager) Create(ctx context.Context) (string, error) {
	if err := m.store.Checkpoint(ctx); err != nil {
		m.recordFailure(err)
		return "", err
	}

	src := m.store.Path()
	dst := backupName(src, time.Now())

	if err := copyFile(src, dst); err != nil {
		wrapped := coreerr.Io("snapshot_create", src, err)
		m.recordFailure(wrapped)
		return "", wrapped
	}

	m.mu.Lock()
	m.lastBackup = time.Now()
	m.lastError = ""
	m.mu.Unlock()

	if m.bus != nil {
		m.bus.Publish(events.TopicSnapshotCompleted, dst)
	}

	if err := m.rotate(src); err != nil {
		m.log.Warn("backup rotation failed", zap.Error(err))
	}

	return dst, nil
}

func (m *Manager) recordFailure(err error) {
	m.mu.Lock()
	m.lastError = err.Error()
	m.mu.Unlock()
	if m.bus != nil {
		m.bus.Publish(events.TopicSnapshotFailed, err.Error())
	}
	m.log.Error("snapshot backup failed", zap.Error(err))
}

// BackupOnShutdown takes a final backup, logging (but not propagating) any
// failure since shutdown must proceed regardless.
func (m *Manager) BackupOnShutdown(ctx context.Context) {
	if _, err := m.Create(ctx); err != nil {
		m.log.Warn("shutdown backup failed", zap.Error(err))
	}
}

// StartPeriodic begins taking backups every configured interval until
// StopPeriodic is called or ctx is cancelled. A zero interval is a no-op.
func (m *Manager) StartPeriodic(ctx context.Context) {
	m.mu.Lock()
	if !m.periodicEnabled || m.interval <= 0 || m.stopCh != nil {
		m.mu.Unlock()
		return
	}
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	stop := m.stopCh
	done := m.doneCh
	interval := m.interval
	m.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				_, _ = m.Create(ctx)
			}
		}
	}()
}

// StopPeriodic halts a running periodic schedule, blocking until the
// background goroutine has exited.
func (m *Manager) StopPeriodic() {
	m.mu.Lock()
	stop := m.stopCh
	done := m.doneCh
	m.stopCh = nil
	m.doneCh = nil
	m.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// SetCount updates the retained-backup count used by rotation.
func (m *Manager) SetCount(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n > 0 {
		m.count = n
	}
}

// SetInterval updates the periodic backup interval. Takes effect on the
// next StartPeriodic call.
func (m *Manager) SetInterval(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interval = d
}

// EnablePeriodic toggles whether StartPeriodic will actually run.
func (m *Manager) EnablePeriodic(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.periodicEnabled = enabled
}

// ListBackups returns every backup file for the store's database, newest
// first.
func (m *Manager) ListBackups() ([]BackupInfo, error) {
	return listBackups(m.store.Path())
}

// Status reports the manager's current configuration and last-run facts.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		Count:           m.count,
		Interval:        m.interval,
		PeriodicEnabled: m.periodicEnabled,
		LastBackup:      m.lastBackup,
		LastError:       m.lastError,
	}
}

// rotate removes the oldest backups for src beyond the configured count.
func (m *Manager) rotate(src string) error {
	m.mu.Lock()
	count := m.count
	m.mu.Unlock()

	backups, err := listBackups(src)
	if err != nil {
		return err
	}
	if len(backups) <= count {
		return nil
	}
	for _, b := range backups[count:] {
		if err := os.Remove(b.Path); err != nil {
			return err
		}
	}
	return nil
}

// backupName builds the "<stem>_YYYYMMDD_HHMMSS.db.bak" backup filename
// for src's database file.
func backupName(src string, at time.Time) string {
	dir := filepath.Dir(src)
	base := filepath.Base(src)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, fmt.Sprintf("%s_%s.db.bak", stem, at.Format("20060102_150405")))
}

// listBackups finds every backup file matching src's stem, newest first.
func listBackups(src string) ([]BackupInfo, error) {
	dir := filepath.Dir(src)
	base := filepath.Base(src)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, coreerr.Io("list_backups", dir, err)
	}

	var out []BackupInfo
	prefix := stem + "_"
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".db.bak") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, BackupInfo{Path: filepath.Join(dir, name), CreatedAt: info.ModTime()})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
