package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/vlcpanel/internal/app/reconcile"
	"github.com/osa030/vlcpanel/internal/domain/snapshot"
)

func TestManager_Broadcast(t *testing.T) {
	m := NewManager(4)
	id1, ch1 := m.Subscribe()
	_, ch2 := m.Subscribe()
	assert.NotEqual(t, "", id1)
	assert.Equal(t, 2, m.SubscriberCount())

	ops := []reconcile.RenderOp{reconcile.SetScalar(reconcile.FieldVolume, 50.0)}
	m.Apply(snapshot.QueueMain, ops)

	for _, ch := range []<-chan Event{ch1, ch2} {
		ev := <-ch
		assert.Equal(t, uint64(1), ev.SequenceNo)
		assert.Equal(t, snapshot.QueueMain, ev.Queue)
		assert.Equal(t, ops, ev.Ops)
	}
	assert.Equal(t, uint64(1), m.SequenceNo())
}

func TestManager_EmptyBatchIgnored(t *testing.T) {
	m := NewManager(1)
	_, ch := m.Subscribe()

	m.Apply(snapshot.QueueMain, nil)

	assert.Empty(t, ch)
	assert.Equal(t, uint64(0), m.SequenceNo())
}

func TestManager_Unsubscribe(t *testing.T) {
	m := NewManager(1)
	id, ch := m.Subscribe()

	m.Unsubscribe(id)
	m.Unsubscribe(id)
	m.Unsubscribe("missing")

	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, m.SubscriberCount())

	// Broadcasting without subscribers still advances the sequence
	assert.Equal(t, uint64(1), m.Broadcast(snapshot.QueueStream, []reconcile.RenderOp{reconcile.ResetArtwork()}))
}

func TestManager_SlowSubscriberDisconnected(t *testing.T) {
	m := NewManager(1)
	_, slow := m.Subscribe()
	ops := []reconcile.RenderOp{reconcile.ResetArtwork()}

	m.Broadcast(snapshot.QueueMain, ops)
	m.Broadcast(snapshot.QueueMain, ops)

	ev, ok := <-slow
	require.True(t, ok)
	assert.Equal(t, uint64(1), ev.SequenceNo)
	_, ok = <-slow
	assert.False(t, ok)
	assert.Equal(t, 0, m.SubscriberCount())
}

func TestManager_Close(t *testing.T) {
	m := NewManager(0)
	_, ch1 := m.Subscribe()
	_, ch2 := m.Subscribe()

	m.Close()

	for _, ch := range []<-chan Event{ch1, ch2} {
		_, ok := <-ch
		assert.False(t, ok)
	}
	assert.Equal(t, 0, m.SubscriberCount())
}
