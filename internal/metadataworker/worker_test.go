package metadataworker

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mecondev/oncutf-sub007/internal/events"
	"github.com/mecondev/oncutf-sub007/internal/store"
)

type fakeProber struct {
	responses map[string]store.Payload
}

func (f *fakeProber) Probe(ctx context.Context, filePath string) (store.Payload, error) {
	return f.responses[filePath], nil
}

type fakeCache struct {
	mu      sync.Mutex
	written map[string]store.Payload
}

func newFakeCache() *fakeCache { return &fakeCache{written: make(map[string]store.Payload)} }

func (f *fakeCache) Set(ctx context.Context, filePath string, payload store.Payload, extended, modified bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written[filePath] = payload
	return nil
}

func (f *fakeCache) IsExtended(ctx context.Context, filePath string) (bool, error) {
	return false, nil
}

func TestWorkerRunEmitsProgressInOrder(t *testing.T) {
	files := []string{"/a", "/b", "/c"}
	prober := &fakeProber{responses: map[string]store.Payload{
		"/a": {"k": "1"}, "/b": {"k": "2"}, "/c": {"k": "3"},
	}}
	cache := newFakeCache()
	bus := events.New()
	defer bus.Shutdown()

	loaded := bus.Subscribe(events.TopicWorkerFileLoaded)
	finished := bus.Subscribe(events.TopicWorkerFinished)

	w := New(prober, cache, files, false, WithBus(bus))
	w.Run(context.Background())

	var order []string
	for i := 0; i < len(files); i++ {
		ev := (<-loaded).(FileLoadedEvent)
		order = append(order, ev.Path)
	}
	require.Equal(t, files, order)

	fin := (<-finished).(FinishedEvent)
	require.False(t, fin.Cancelled)

	require.Len(t, cache.written, 3)
}

func TestWorkerRunHonorsCancel(t *testing.T) {
	files := []string{"/a", "/b", "/c"}
	prober := &fakeProber{responses: map[string]store.Payload{}}
	cache := newFakeCache()

	w := New(prober, cache, files, false)
	w.Cancel()
	w.Run(context.Background())

	require.Empty(t, cache.written, "cancellation before the first file writes nothing")
}

func TestWorkerBatchingFlushes(t *testing.T) {
	files := []string{"/a", "/b", "/c", "/d", "/e"}
	prober := &fakeProber{responses: map[string]store.Payload{}}
	cache := newFakeCache()

	w := New(prober, cache, files, false, WithBatching(2))
	w.Run(context.Background())

	require.Len(t, cache.written, len(files))
}
