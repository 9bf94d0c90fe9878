package render

import (
	"maps"
	"sync"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/vlcpanel/internal/app/reconcile"
	"github.com/osa030/vlcpanel/internal/app/registry"
	"github.com/osa030/vlcpanel/internal/domain/snapshot"
)

// WidgetValue is a rendered widget.
type WidgetValue struct {
	Key   registry.Key
	Value any
}

// State is a copy of the rendered panel.
type State struct {
	Queue        snapshot.Queue
	Scalars      map[reconcile.Field]any
	Flags        map[reconcile.Field]bool
	ArtworkToken string // Empty shows the default artwork
	Bands        []WidgetValue
	Broadcasts   []WidgetValue
	Version      uint64 // Incremented per applied pass
}

// View keeps the panel as the render operations describe it.
// Ops for a different queue than the last one reset the view first.
type View struct {
	mu      sync.RWMutex
	queue   snapshot.Queue
	scalars map[reconcile.Field]any
	flags   map[reconcile.Field]bool
	artwork string
	widgets map[registry.Key]any
	order   []registry.Key
	version uint64
}

// NewView creates an empty view.
func NewView() *View {
	v := &View{}
	v.reset("")
	return v
}

func (v *View) reset(queue snapshot.Queue) {
	v.queue = queue
	v.scalars = make(map[reconcile.Field]any)
	v.flags = make(map[reconcile.Field]bool)
	v.artwork = ""
	v.widgets = make(map[registry.Key]any)
	v.order = nil
}

// Apply implements Sink.
func (v *View) Apply(queue snapshot.Queue, ops []reconcile.RenderOp) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if queue != v.queue {
		zlog.Debug().Msgf("view: switching from %q to %q", v.queue, queue)
		v.reset(queue)
	}

	for _, op := range ops {
		switch op.Type {
		case reconcile.OpSetScalar:
			v.scalars[op.Field] = op.Value
		case reconcile.OpSetFlag:
			v.flags[op.Field] = op.Flag
		case reconcile.OpReloadArtwork:
			v.artwork = op.Token
		case reconcile.OpResetArtwork:
			v.artwork = ""
		case reconcile.OpCreateWidget, reconcile.OpUpdateWidget:
			if _, ok := v.widgets[op.Widget]; !ok {
				v.order = append(v.order, op.Widget)
			}
			v.widgets[op.Widget] = op.Value
		case reconcile.OpDestroyWidget:
			v.remove(op.Widget)
		}
	}
	v.version++
}

func (v *View) remove(key registry.Key) {
	if _, ok := v.widgets[key]; !ok {
		return
	}
	delete(v.widgets, key)
	for i, k := range v.order {
		if k == key {
			v.order = append(v.order[:i], v.order[i+1:]...)
			break
		}
	}
}

// State returns a copy of the rendered panel.
func (v *View) State() State {
	v.mu.RLock()
	defer v.mu.RUnlock()

	s := State{
		Queue:        v.queue,
		Scalars:      maps.Clone(v.scalars),
		Flags:        maps.Clone(v.flags),
		ArtworkToken: v.artwork,
		Version:      v.version,
	}
	for _, k := range v.order {
		w := WidgetValue{Key: k, Value: v.widgets[k]}
		switch k.Kind {
		case registry.KindBand:
			s.Bands = append(s.Bands, w)
		case registry.KindBroadcast:
			s.Broadcasts = append(s.Broadcasts, w)
		}
	}
	return s
}
