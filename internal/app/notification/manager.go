// Package notification fans render operations out to live subscribers.
package notification

import (
	"sync"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/vlcpanel/internal/app/reconcile"
	"github.com/osa030/vlcpanel/internal/domain/snapshot"
)

// DefaultBuffer is the number of events queued per subscriber.
const DefaultBuffer = 64

// Event is one batch of render operations.
type Event struct {
	SequenceNo uint64
	Queue      snapshot.Queue
	Ops        []reconcile.RenderOp
}

// subscription represents a subscriber's subscription.
type subscription struct {
	id     string
	events chan Event
}

// Manager manages subscriptions and broadcasting. It is a render sink:
// every applied batch is broadcast as one Event.
type Manager struct {
	mu            sync.Mutex
	subscriptions map[string]*subscription
	sequenceNo    uint64
	buffer        int
}

// NewManager creates a new notification manager.
func NewManager(buffer int) *Manager {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Manager{
		subscriptions: make(map[string]*subscription),
		buffer:        buffer,
	}
}

// Subscribe adds a new subscription and returns its ID and event channel.
// The channel is closed on Unsubscribe, on Close, or when the subscriber
// falls a full buffer behind.
func (m *Manager) Subscribe() (string, <-chan Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.NewString()
	sub := &subscription{id: id, events: make(chan Event, m.buffer)}
	m.subscriptions[id] = sub
	return id, sub.events
}

// SequenceNo returns the sequence number of the last broadcast event.
func (m *Manager) SequenceNo() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sequenceNo
}

// Unsubscribe removes a subscription. Unknown IDs are ignored.
func (m *Manager) Unsubscribe(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropLocked(id)
}

func (m *Manager) dropLocked(id string) {
	if sub, ok := m.subscriptions[id]; ok {
		close(sub.events)
		delete(m.subscriptions, id)
	}
}

// Apply implements render.Sink.
func (m *Manager) Apply(queue snapshot.Queue, ops []reconcile.RenderOp) {
	if len(ops) == 0 {
		return
	}
	m.Broadcast(queue, ops)
}

// Broadcast sends an event to all subscribers without blocking. A subscriber
// whose buffer is full has missed state and is disconnected.
func (m *Manager) Broadcast(queue snapshot.Queue, ops []reconcile.RenderOp) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sequenceNo++
	ev := Event{SequenceNo: m.sequenceNo, Queue: queue, Ops: ops}

	for id, sub := range m.subscriptions {
		select {
		case sub.events <- ev:
		default:
			zlog.Warn().Msgf("notification: subscriber %s is too slow, disconnecting", id)
			m.dropLocked(id)
		}
	}
	return ev.SequenceNo
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subscriptions)
}

// Close closes the manager and removes all subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.subscriptions {
		m.dropLocked(id)
	}
}
