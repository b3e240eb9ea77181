// Package events implements the mpmc signal bus described in spec.md §9
// ("signals / slots → an event channel per component"). It is a thin
// wrapper over github.com/cskr/pubsub so components never block a
// publisher on a slow subscriber.
package events

import (
	"sync"

	"github.com/cskr/pubsub"
)

const defaultCapacity = 32

// Bus is a topic-based publish/subscribe channel shared by every core
// component. One Bus is owned by CoreServices and passed by reference to
// constructors that need to emit or observe signals.
type Bus struct {
	ps *pubsub.PubSub

	mu        sync.Mutex
	coalesced map[string]bool
	latest    map[string]interface{}
}

// New creates a Bus with the default per-topic subscriber buffer.
func New() *Bus {
	return &Bus{
		ps:        pubsub.New(defaultCapacity),
		coalesced: make(map[string]bool),
		latest:    make(map[string]interface{}),
	}
}

// Subscribe returns a channel receiving every message published to topic.
func (b *Bus) Subscribe(topic string) chan interface{} {
	return b.ps.Sub(topic)
}

// Unsubscribe detaches ch from topic.
func (b *Bus) Unsubscribe(ch chan interface{}, topic string) {
	b.ps.Unsub(ch, topic)
}

// Publish sends msg to every current subscriber of topic. Never blocks the
// caller beyond pubsub's own buffered delivery.
func (b *Bus) Publish(topic string, msg interface{}) {
	b.ps.Pub(msg, topic)
}

// PublishCoalesced publishes msg to topic, coalescing bursts: while a
// coalesced publish to topic is in flight, later messages overwrite one
// another and only the most recent is published once it completes,
// implementing the "state_changed is coalesced (latest-wins)" rule from
// spec.md §4.4.1.
func (b *Bus) PublishCoalesced(topic string, msg interface{}) {
	b.mu.Lock()
	b.latest[topic] = msg
	if b.coalesced[topic] {
		b.mu.Unlock()
		return
	}
	b.coalesced[topic] = true
	b.mu.Unlock()

	go func() {
		b.mu.Lock()
		for {
			m, ok := b.latest[topic]
			if !ok {
				break
			}
			delete(b.latest, topic)
			b.mu.Unlock()
			b.ps.Pub(m, topic)
			b.mu.Lock()
		}
		b.coalesced[topic] = false
		b.mu.Unlock()
	}()
}

// Shutdown closes the underlying pubsub, releasing all subscriber channels.
func (b *Bus) Shutdown() {
	b.ps.Shutdown()
}

// Topic name constants used across components, collected here so producers
// and consumers never hand-type a topic string differently.
const (
	TopicRenamePreviewUpdated    = "rename.preview_updated"
	TopicRenameValidationUpdated = "rename.validation_updated"
	TopicRenameExecutionDone     = "rename.execution_completed"
	TopicRenameStateChanged      = "rename.state_changed"

	TopicWorkerProgress      = "worker.progress"
	TopicWorkerSizeProgress  = "worker.size_progress"
	TopicWorkerFileLoaded    = "worker.file_metadata_loaded"
	TopicWorkerFinished      = "worker.finished"

	TopicSnapshotCompleted = "snapshot.backup_completed"
	TopicSnapshotFailed    = "snapshot.backup_failed"
)
