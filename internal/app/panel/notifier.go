package panel

import (
	"sync"

	"github.com/osa030/vlcpanel/internal/app/dispatch"
)

const defaultMaxErrors = 20

// Notifier keeps the most recent command errors reported by the player.
type Notifier struct {
	mu   sync.Mutex
	size int
	errs []dispatch.CommandError
}

// NewNotifier creates a notifier keeping up to size errors.
func NewNotifier(size int) *Notifier {
	if size <= 0 {
		size = defaultMaxErrors
	}
	return &Notifier{size: size}
}

// Notify implements dispatch.ErrorNotifier.
func (n *Notifier) Notify(err *dispatch.CommandError) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.errs = append(n.errs, *err)
	if over := len(n.errs) - n.size; over > 0 {
		n.errs = n.errs[over:]
	}
}

// Recent returns the kept errors, oldest first.
func (n *Notifier) Recent() []dispatch.CommandError {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]dispatch.CommandError(nil), n.errs...)
}

// Clear drops every kept error.
func (n *Notifier) Clear() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errs = nil
}
