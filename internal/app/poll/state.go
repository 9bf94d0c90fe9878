// Package poll drives the fetch, reconcile and render cycle of one queue.
package poll

import "time"

// State represents the poll loop state.
type State int

const (
	StateIdle      State = iota // Not started
	StatePolling                // A fetch is in flight
	StateScheduled              // Waiting for the next cycle
	StateStopped                // Stopped; terminal
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateScheduled:
		return "scheduled"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Scheduler runs f once after d. The returned func cancels it.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) (cancel func())
}

// TimerScheduler schedules with the runtime timer.
type TimerScheduler struct{}

// AfterFunc implements Scheduler.
func (TimerScheduler) AfterFunc(d time.Duration, f func()) func() {
	t := time.AfterFunc(d, f)
	return func() { t.Stop() }
}
