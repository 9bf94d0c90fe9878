package reconcile

import (
	"strconv"
	"time"

	"github.com/samber/lo"
	"github.com/samber/mo"

	"github.com/osa030/vlcpanel/internal/app/registry"
	"github.com/osa030/vlcpanel/internal/domain/snapshot"
)

// scalar describes one scalar field of the panel.
type scalar struct {
	field    Field
	value    func(s snapshot.Snapshot) any
	lockable bool // Backed by a slider the user can drag
}

// scalars lists the scalar fields in emission order.
var scalars = []scalar{
	{FieldState, func(s snapshot.Snapshot) any { return s.State.String() }, false},
	{FieldTitle, func(s snapshot.Snapshot) any { return s.Title }, false},
	{FieldPosition, func(s snapshot.Snapshot) any { return s.Position }, true},
	{FieldLength, func(s snapshot.Snapshot) any { return s.Length }, false},
	{FieldVolume, func(s snapshot.Snapshot) any { return s.Volume }, true},
	{FieldRate, func(s snapshot.Snapshot) any { return s.Rate }, true},
	{FieldAudioDelay, func(s snapshot.Snapshot) any { return s.AudioDelay }, true},
	{FieldSubtitleDelay, func(s snapshot.Snapshot) any { return s.SubtitleDelay }, true},
	{FieldPreamp, func(s snapshot.Snapshot) any { return s.Preamp }, true},
}

// flags lists the boolean fields in emission order. Playing is derived from the state.
var flags = []struct {
	field Field
	value func(s snapshot.Snapshot) bool
}{
	{FieldPlaying, func(s snapshot.Snapshot) bool { return s.State == snapshot.StatePlaying }},
	{FieldRandom, func(s snapshot.Snapshot) bool { return s.Random }},
	{FieldLoop, func(s snapshot.Snapshot) bool { return s.Loop }},
	{FieldRepeat, func(s snapshot.Snapshot) bool { return s.Repeat }},
}

// item is one keyed element of a collection field.
type item struct {
	key   registry.Key
	value any
}

// Reconciler computes render operations from snapshot diffs.
// Given identical inputs and clock it returns identical, order-stable output:
// scalars, flags, artwork, bands, broadcasts.
type Reconciler struct {
	now func() time.Time
}

// New creates a new reconciler. now supplies artwork reload tokens (time.Now when nil).
func New(now func() time.Time) *Reconciler {
	if now == nil {
		now = time.Now
	}
	return &Reconciler{now: now}
}

// Reconcile diffs next against prev and the registry, mutating the registry to
// track created, destroyed and rendered widgets. Locked widgets are never updated.
func (r *Reconciler) Reconcile(prev mo.Option[snapshot.Snapshot], next snapshot.Snapshot, reg *registry.Registry) []RenderOp {
	var ops []RenderOp
	ops = append(ops, r.reconcileScalars(prev, next, reg)...)
	ops = append(ops, r.reconcileFlags(prev, next)...)
	ops = append(ops, r.reconcileArtwork(prev, next)...)
	ops = append(ops, r.reconcileCollection(registry.KindBand, bandItems(next), reg)...)
	ops = append(ops, r.reconcileCollection(registry.KindBroadcast, broadcastItems(next), reg)...)
	return ops
}

func (r *Reconciler) reconcileScalars(prev mo.Option[snapshot.Snapshot], next snapshot.Snapshot, reg *registry.Registry) []RenderOp {
	var ops []RenderOp
	p, hasPrev := prev.Get()

	for _, s := range scalars {
		v := s.value(next)
		changed := !hasPrev || s.value(p) != v

		if s.lockable {
			key := registry.ScalarKey(string(s.field))
			if reg.IsLocked(key) {
				if changed {
					reg.MarkStale(key)
				}
				continue
			}
			if reg.IsStale(key) {
				changed = true
			}
			if changed {
				reg.Ensure(key)
				reg.SetRendered(key, v)
			}
		}

		if changed {
			ops = append(ops, SetScalar(s.field, v))
		}
	}
	return ops
}

func (r *Reconciler) reconcileFlags(prev mo.Option[snapshot.Snapshot], next snapshot.Snapshot) []RenderOp {
	var ops []RenderOp
	p, hasPrev := prev.Get()

	for _, f := range flags {
		v := f.value(next)
		if hasPrev && f.value(p) == v {
			continue
		}
		ops = append(ops, SetFlag(f.field, v))
	}
	return ops
}

func (r *Reconciler) reconcileArtwork(prev mo.Option[snapshot.Snapshot], next snapshot.Snapshot) []RenderOp {
	if p, ok := prev.Get(); ok && p.Artwork == next.Artwork {
		return nil
	}
	if next.Artwork == "" {
		return []RenderOp{ResetArtwork()}
	}
	return []RenderOp{ReloadArtwork(strconv.FormatInt(r.now().UnixMilli(), 10))}
}

// reconcileCollection destroys vanished widgets (registry order), then creates or
// updates present ones (snapshot order). Duplicate keys keep their first occurrence.
func (r *Reconciler) reconcileCollection(kind registry.Kind, items []item, reg *registry.Registry) []RenderOp {
	var ops []RenderOp

	items = lo.UniqBy(items, func(it item) registry.Key { return it.key })
	present := lo.Map(items, func(it item, _ int) registry.Key { return it.key })

	for _, key := range lo.Without(reg.Keys(kind), present...) {
		if reg.Forget(key) {
			ops = append(ops, DestroyWidget(key))
		}
	}

	for _, it := range items {
		state, created := reg.Ensure(it.key)
		if created {
			reg.SetRendered(it.key, it.value)
			ops = append(ops, CreateWidget(it.key, it.value))
			continue
		}
		if reg.IsLocked(it.key) {
			continue
		}
		if state.Rendered && state.LastRendered == it.value && !reg.IsStale(it.key) {
			continue
		}
		reg.SetRendered(it.key, it.value)
		ops = append(ops, UpdateWidget(it.key, it.value))
	}
	return ops
}

func bandItems(s snapshot.Snapshot) []item {
	return lo.Map(s.Bands, func(b snapshot.Band, _ int) item {
		return item{key: registry.BandKey(b.ID), value: b.Gain}
	})
}

func broadcastItems(s snapshot.Snapshot) []item {
	return lo.Map(s.Broadcasts, func(b snapshot.Broadcast, _ int) item {
		return item{key: registry.BroadcastKey(b.Name), value: b}
	})
}
