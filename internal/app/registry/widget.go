// Package registry tracks live widgets by stable identity.
package registry

import "time"

// Kind represents the kind of widget a key refers to.
type Kind int

const (
	KindScalar    Kind = iota // Fixed panel control (seek, volume, rate, delays, preamp)
	KindBand                  // Equalizer band slider
	KindBroadcast             // VLM broadcast panel
)

// ParseKind converts a kind name.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "scalar":
		return KindScalar, true
	case "band":
		return KindBand, true
	case "broadcast":
		return KindBroadcast, true
	default:
		return 0, false
	}
}

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindBand:
		return "band"
	case KindBroadcast:
		return "broadcast"
	default:
		return "unknown"
	}
}

// Key identifies a widget.
type Key struct {
	Kind Kind
	ID   string
}

// String returns "<kind>:<id>".
func (k Key) String() string {
	return k.Kind.String() + ":" + k.ID
}

// ScalarKey returns the key of a fixed panel control.
func ScalarKey(field string) Key {
	return Key{Kind: KindScalar, ID: field}
}

// BandKey returns the key of an equalizer band.
func BandKey(id string) Key {
	return Key{Kind: KindBand, ID: id}
}

// BroadcastKey returns the key of a broadcast panel.
func BroadcastKey(name string) Key {
	return Key{Kind: KindBroadcast, ID: name}
}

// WidgetState is the per-identity record owned by the registry.
type WidgetState struct {
	Key          Key
	LastRendered any       // Last value handed to the render sink
	Rendered     bool      // LastRendered is meaningful
	LockedByUser bool      // User interaction in progress
	LockExpiry   time.Time // Lock is released automatically at this time
	Stale        bool      // Must be rendered on the next pass
}

// lockedAt reports whether the lock is held at the given time.
func (w *WidgetState) lockedAt(now time.Time) bool {
	return w.LockedByUser && now.Before(w.LockExpiry)
}

// release drops the lock. The widget may show a user-set value, so it turns stale.
func (w *WidgetState) release() {
	w.LockedByUser = false
	w.LockExpiry = time.Time{}
	w.Stale = true
}
