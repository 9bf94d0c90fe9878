// Package render applies reconciliation output to panel surfaces.
package render

import (
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"

	"github.com/osa030/vlcpanel/internal/app/reconcile"
	"github.com/osa030/vlcpanel/internal/domain/snapshot"
)

var (
	ErrUnknownSink = errors.New("unknown render sink")
)

// Sink consumes render operations for one queue.
// Apply is called with the ops of one reconciliation pass, in order.
type Sink interface {
	Apply(queue snapshot.Queue, ops []reconcile.RenderOp)
}

// Plugin is a sink that can be enabled from configuration.
type Plugin interface {
	Sink
	// Name returns the sink name (used in config).
	Name() string
	// Description returns a human-readable description.
	Description() string
	// ValidateConfig validates and stores the sink settings.
	ValidateConfig(settings map[string]any) error
}

// factories holds registered sink factories.
var factories = make(map[string]func() Plugin)

// Register registers a sink factory.
func Register(name string, factory func() Plugin) {
	factories[name] = factory
}

// GetRegistered returns all registered sink factories.
func GetRegistered() map[string]func() Plugin {
	return factories
}

// Build creates the named sinks with their settings, in name order.
func Build(enabled map[string]map[string]any) ([]Plugin, error) {
	names := lo.Keys(enabled)
	slices.Sort(names)

	plugins := make([]Plugin, 0, len(names))
	for _, name := range names {
		factory, ok := factories[name]
		if !ok {
			return nil, errors.Wrapf(ErrUnknownSink, "%s", name)
		}
		p := factory()
		if err := p.ValidateConfig(enabled[name]); err != nil {
			return nil, errors.Wrapf(err, "sink %s", name)
		}
		plugins = append(plugins, p)
	}
	return plugins, nil
}

// Fanout applies ops to every sink in order.
type Fanout []Sink

// Apply implements Sink.
func (f Fanout) Apply(queue snapshot.Queue, ops []reconcile.RenderOp) {
	for _, s := range f {
		s.Apply(queue, ops)
	}
}
