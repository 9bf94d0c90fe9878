package registry

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// DefaultLockTimeout bounds a lock whose interaction-end event never arrives.
const DefaultLockTimeout = 5 * time.Second

var (
	ErrUnknownWidget = errors.New("unknown widget")
)

// Config holds registry configuration.
type Config struct {
	LockTimeout time.Duration    // Default lock duration (DefaultLockTimeout when zero)
	Now         func() time.Time // Clock (time.Now when nil)
}

// Registry manages widget states with thread-safe access.
// It is the only owner of WidgetState entries; callers receive copies.
type Registry struct {
	mu      sync.RWMutex
	widgets map[Key]*WidgetState
	order   []Key // Insertion order

	lockTimeout time.Duration
	now         func() time.Time
}

// New creates a new widget registry.
func New(cfg Config) *Registry {
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = DefaultLockTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Registry{
		widgets:     make(map[Key]*WidgetState),
		lockTimeout: cfg.LockTimeout,
		now:         cfg.Now,
	}
}

// Ensure returns the existing state or creates a new unlocked one.
// created is true when the widget did not exist before.
func (r *Registry) Ensure(key Key) (state WidgetState, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, created := r.ensureLocked(key)
	return *w, created
}

func (r *Registry) ensureLocked(key Key) (*WidgetState, bool) {
	if w, ok := r.widgets[key]; ok {
		return w, false
	}
	w := &WidgetState{Key: key}
	r.widgets[key] = w
	r.order = append(r.order, key)
	return w, true
}

// Get retrieves a widget state by key.
func (r *Registry) Get(key Key) (WidgetState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	w, ok := r.widgets[key]
	if !ok {
		return WidgetState{}, false
	}
	return *w, true
}

// Has returns true if the widget exists.
func (r *Registry) Has(key Key) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.widgets[key]
	return ok
}

// Forget removes a widget. It returns false if the widget did not exist.
func (r *Registry) Forget(key Key) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.widgets[key]; !ok {
		return false
	}
	delete(r.widgets, key)
	for i, k := range r.order {
		if k == key {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Lock marks a widget as under user interaction until Unlock or until d elapses.
// A non-positive d uses the configured lock timeout. Scalar widgets are created on
// demand; other kinds must already be known.
func (r *Registry) Lock(key Key, d time.Duration) error {
	if d <= 0 {
		d = r.lockTimeout
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.widgets[key]
	if !ok {
		if key.Kind != KindScalar {
			return errors.Wrapf(ErrUnknownWidget, "%s", key)
		}
		w, _ = r.ensureLocked(key)
	}

	w.LockedByUser = true
	w.LockExpiry = r.now().Add(d)
	zlog.Debug().Msgf("registry: locked %s for %v", key, d)
	return nil
}

// Unlock releases a lock and marks the widget stale so the next reconciliation
// re-asserts the server value. Unlocking an unknown or unlocked widget is a no-op.
func (r *Registry) Unlock(key Key) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if w, ok := r.widgets[key]; ok && w.LockedByUser {
		w.release()
		zlog.Debug().Msgf("registry: unlocked %s", key)
	}
}

// IsLocked reports whether the widget is locked now. Expired locks count as released.
func (r *Registry) IsLocked(key Key) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.widgets[key]
	if !ok {
		return false
	}
	if w.LockedByUser && !w.lockedAt(r.now()) {
		w.release()
		zlog.Debug().Msgf("registry: lock on %s expired", key)
	}
	return w.LockedByUser
}

// SetRendered records the value last handed to the render sink and clears staleness.
func (r *Registry) SetRendered(key Key, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if w, ok := r.widgets[key]; ok {
		w.LastRendered = value
		w.Rendered = true
		w.Stale = false
	}
}

// MarkStale records that the widget must be rendered on the next pass.
func (r *Registry) MarkStale(key Key) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if w, ok := r.widgets[key]; ok {
		w.Stale = true
	}
}

// IsStale reports whether the widget must be rendered on the next pass.
func (r *Registry) IsStale(key Key) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	w, ok := r.widgets[key]
	return ok && w.Stale
}

// Keys returns the keys of the given kind in insertion order.
func (r *Registry) Keys(kind Kind) []Key {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]Key, 0, len(r.order))
	for _, k := range r.order {
		if k.Kind == kind {
			keys = append(keys, k)
		}
	}
	return keys
}

// Count returns the number of widgets.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.widgets)
}
