package snapshot

import "strings"

// PlaybackState represents the player state.
type PlaybackState int

const (
	StateStopped PlaybackState = iota // Nothing playing
	StatePlaying                      // Playing
	StatePaused                       // Paused
)

// ParseState converts the player's state text. Unknown values map to stopped.
func ParseState(s string) PlaybackState {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "playing":
		return StatePlaying
	case "paused":
		return StatePaused
	default:
		return StateStopped
	}
}

// String returns the string representation of the state.
func (s PlaybackState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}
