package reconcile

import (
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/vlcpanel/internal/app/registry"
	"github.com/osa030/vlcpanel/internal/domain/snapshot"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func newTestEnv() (*Reconciler, *registry.Registry, *fakeClock) {
	clock := &fakeClock{now: testNow}
	return New(clock.Now), registry.New(registry.Config{Now: clock.Now}), clock
}

func fullSnapshot() snapshot.Snapshot {
	return snapshot.Snapshot{
		Queue:    snapshot.QueueMain,
		State:    snapshot.StatePlaying,
		Title:    "song.mp3",
		Position: 10,
		Length:   100,
		Volume:   50,
		Rate:     1,
		Random:   true,
		Preamp:   2,
		Artwork:  "file:///art.jpg",
		Bands: []snapshot.Band{
			{ID: "0", Frequency: 60, Gain: 3},
			{ID: "1", Frequency: 170, Gain: -2},
		},
		Broadcasts: []snapshot.Broadcast{
			{Name: "Stream1", Input: "file:///a.mp4", State: snapshot.StateStopped},
		},
	}
}

func opsOfType(ops []RenderOp, t OpType) []RenderOp {
	return lo.Filter(ops, func(o RenderOp, _ int) bool { return o.Type == t })
}

func findScalar(ops []RenderOp, f Field) (RenderOp, bool) {
	return lo.Find(ops, func(o RenderOp) bool { return o.Type == OpSetScalar && o.Field == f })
}

func findFlag(ops []RenderOp, f Field) (RenderOp, bool) {
	return lo.Find(ops, func(o RenderOp) bool { return o.Type == OpSetFlag && o.Field == f })
}

func TestReconcile_FirstPassEmitsEverything(t *testing.T) {
	r, reg, _ := newTestEnv()
	next := snapshot.Snapshot{State: snapshot.StatePlaying, Position: 10, Length: 100, Volume: 50}

	ops := r.Reconcile(mo.None[snapshot.Snapshot](), next, reg)

	state, ok := findScalar(ops, FieldState)
	require.True(t, ok)
	assert.Equal(t, "playing", state.Value)

	position, ok := findScalar(ops, FieldPosition)
	require.True(t, ok)
	assert.Equal(t, 10.0, position.Value)

	length, ok := findScalar(ops, FieldLength)
	require.True(t, ok)
	assert.Equal(t, 100.0, length.Value)

	volume, ok := findScalar(ops, FieldVolume)
	require.True(t, ok)
	assert.Equal(t, 50.0, volume.Value)

	playing, ok := findFlag(ops, FieldPlaying)
	require.True(t, ok)
	assert.True(t, playing.Flag)

	assert.Len(t, opsOfType(ops, OpSetScalar), len(scalars))
	assert.Len(t, opsOfType(ops, OpSetFlag), len(flags))
	assert.Len(t, opsOfType(ops, OpResetArtwork), 1)
}

func TestReconcile_Idempotent(t *testing.T) {
	tests := []struct {
		name string
		snap snapshot.Snapshot
	}{
		{name: "full", snap: fullSnapshot()},
		{name: "zero", snap: snapshot.Snapshot{}},
		{name: "stream", snap: snapshot.Snapshot{
			Queue: snapshot.QueueStream,
			Broadcasts: []snapshot.Broadcast{
				{Name: "Current", State: snapshot.StatePlaying, Position: 5, Length: 60},
				{Name: "Stream2", Loop: true},
			},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, reg, _ := newTestEnv()
			r.Reconcile(mo.None[snapshot.Snapshot](), tt.snap, reg)

			ops := r.Reconcile(mo.Some(tt.snap), tt.snap, reg)
			assert.Empty(t, ops)
		})
	}
}

func TestReconcile_ScalarDiff(t *testing.T) {
	r, reg, _ := newTestEnv()
	prev := fullSnapshot()
	r.Reconcile(mo.None[snapshot.Snapshot](), prev, reg)

	next := prev
	next.Position = 11
	next.State = snapshot.StatePaused
	next.Loop = true

	ops := r.Reconcile(mo.Some(prev), next, reg)

	assert.Equal(t, []RenderOp{
		SetScalar(FieldState, "paused"),
		SetScalar(FieldPosition, 11.0),
		SetFlag(FieldPlaying, false),
		SetFlag(FieldLoop, true),
	}, ops)
}

func TestReconcile_LockedScalarSkippedThenReasserted(t *testing.T) {
	r, reg, _ := newTestEnv()
	prev := fullSnapshot()
	r.Reconcile(mo.None[snapshot.Snapshot](), prev, reg)

	require.NoError(t, reg.Lock(registry.ScalarKey(string(FieldVolume)), time.Second))

	next := prev
	next.Volume = 80
	ops := r.Reconcile(mo.Some(prev), next, reg)
	_, found := findScalar(ops, FieldVolume)
	assert.False(t, found, "locked volume must not be overwritten")

	reg.Unlock(registry.ScalarKey(string(FieldVolume)))

	// Same snapshot again: the skipped value is re-emitted once
	ops = r.Reconcile(mo.Some(next), next, reg)
	assert.Equal(t, []RenderOp{SetScalar(FieldVolume, 80.0)}, ops)

	ops = r.Reconcile(mo.Some(next), next, reg)
	assert.Empty(t, ops)
}

func TestReconcile_Artwork(t *testing.T) {
	r, reg, clock := newTestEnv()

	withArt := snapshot.Snapshot{Artwork: "file:///a.jpg"}
	otherArt := snapshot.Snapshot{Artwork: "file:///b.jpg"}
	noArt := snapshot.Snapshot{}

	ops := r.Reconcile(mo.None[snapshot.Snapshot](), withArt, reg)
	assert.Equal(t, []RenderOp{ReloadArtwork("1772366400000")}, opsOfType(ops, OpReloadArtwork))

	ops = r.Reconcile(mo.Some(withArt), withArt, reg)
	assert.Empty(t, ops)

	clock.now = clock.now.Add(time.Second)
	ops = r.Reconcile(mo.Some(withArt), otherArt, reg)
	assert.Equal(t, []RenderOp{ReloadArtwork("1772366401000")}, ops)

	ops = r.Reconcile(mo.Some(otherArt), noArt, reg)
	assert.Equal(t, []RenderOp{ResetArtwork()}, ops)
}

func TestReconcile_LockedBandSkipped(t *testing.T) {
	r, reg, _ := newTestEnv()
	prev := snapshot.Snapshot{Bands: []snapshot.Band{{ID: "A", Gain: 3}}}
	r.Reconcile(mo.None[snapshot.Snapshot](), prev, reg)

	require.NoError(t, reg.Lock(registry.BandKey("A"), time.Second))

	ops := r.Reconcile(mo.Some(prev), prev, reg)
	assert.Empty(t, ops)
}

func TestReconcile_LockInviolability(t *testing.T) {
	gains := []float64{-20, -3, 0, 3, 20}

	for _, from := range gains {
		for _, to := range gains {
			r, reg, _ := newTestEnv()
			prev := snapshot.Snapshot{Bands: []snapshot.Band{{ID: "0", Gain: from}, {ID: "1", Gain: from}}}
			r.Reconcile(mo.None[snapshot.Snapshot](), prev, reg)
			require.NoError(t, reg.Lock(registry.BandKey("0"), time.Minute))

			next := snapshot.Snapshot{Bands: []snapshot.Band{{ID: "0", Gain: to}, {ID: "1", Gain: to}}}
			ops := r.Reconcile(mo.Some(prev), next, reg)

			for _, op := range ops {
				assert.NotEqual(t, registry.BandKey("0"), op.Widget, "from=%v to=%v", from, to)
			}
			if from != to {
				assert.Equal(t, []RenderOp{UpdateWidget(registry.BandKey("1"), to)}, ops)
			}
		}
	}
}

func TestReconcile_SetDifference(t *testing.T) {
	r, reg, _ := newTestEnv()
	prev := snapshot.Snapshot{Broadcasts: []snapshot.Broadcast{
		{Name: "keep"}, {Name: "gone"}, {Name: "change"},
	}}
	r.Reconcile(mo.None[snapshot.Snapshot](), prev, reg)

	next := snapshot.Snapshot{Broadcasts: []snapshot.Broadcast{
		{Name: "new"}, {Name: "keep"}, {Name: "change", Loop: true}, {Name: "new"},
	}}
	ops := r.Reconcile(mo.Some(prev), next, reg)

	assert.Equal(t, []RenderOp{
		DestroyWidget(registry.BroadcastKey("gone")),
		CreateWidget(registry.BroadcastKey("new"), snapshot.Broadcast{Name: "new"}),
		UpdateWidget(registry.BroadcastKey("change"), snapshot.Broadcast{Name: "change", Loop: true}),
	}, ops)

	assert.False(t, reg.Has(registry.BroadcastKey("gone")))
	assert.Equal(t, []registry.Key{
		registry.BroadcastKey("keep"),
		registry.BroadcastKey("change"),
		registry.BroadcastKey("new"),
	}, reg.Keys(registry.KindBroadcast))
}

func TestReconcile_NewBroadcastCreatesWidget(t *testing.T) {
	r, reg, _ := newTestEnv()
	prev := snapshot.Snapshot{Queue: snapshot.QueueStream}
	r.Reconcile(mo.None[snapshot.Snapshot](), prev, reg)

	stream1 := snapshot.Broadcast{Name: "Stream1", Input: "file:///a.mp4", Loop: true}
	next := snapshot.Snapshot{Queue: snapshot.QueueStream, Broadcasts: []snapshot.Broadcast{stream1}}

	ops := r.Reconcile(mo.Some(prev), next, reg)

	assert.Equal(t, []RenderOp{CreateWidget(registry.BroadcastKey("Stream1"), stream1)}, ops)
	assert.True(t, reg.Has(registry.BroadcastKey("Stream1")))
}

func TestReconcile_DestroyLockedWidget(t *testing.T) {
	r, reg, _ := newTestEnv()
	prev := snapshot.Snapshot{Broadcasts: []snapshot.Broadcast{{Name: "Stream1"}}}
	r.Reconcile(mo.None[snapshot.Snapshot](), prev, reg)
	require.NoError(t, reg.Lock(registry.BroadcastKey("Stream1"), time.Second))

	ops := r.Reconcile(mo.Some(prev), snapshot.Snapshot{}, reg)
	assert.Equal(t, []RenderOp{DestroyWidget(registry.BroadcastKey("Stream1"))}, ops)
}

func TestReconcile_Deterministic(t *testing.T) {
	run := func() []RenderOp {
		r, reg, _ := newTestEnv()
		first := r.Reconcile(mo.None[snapshot.Snapshot](), fullSnapshot(), reg)
		next := fullSnapshot()
		next.Bands = []snapshot.Band{{ID: "1", Gain: 0}, {ID: "2", Gain: 1}}
		return append(first, r.Reconcile(mo.Some(fullSnapshot()), next, reg)...)
	}

	assert.Equal(t, run(), run())
}

func TestRenderOp_String(t *testing.T) {
	assert.Equal(t, "set_scalar(volume=50)", SetScalar(FieldVolume, 50.0).String())
	assert.Equal(t, "set_flag(random=true)", SetFlag(FieldRandom, true).String())
	assert.Equal(t, "destroy_widget(band:3)", DestroyWidget(registry.BandKey("3")).String())
	assert.Equal(t, "reset_artwork", ResetArtwork().String())
}
