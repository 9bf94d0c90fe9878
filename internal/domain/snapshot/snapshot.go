// Package snapshot provides the player state entities parsed from one poll.
package snapshot

// Queue identifies the active control context.
type Queue string

const (
	QueueMain   Queue = "main"   // Main player
	QueueStream Queue = "stream" // VLM broadcast manager
)

// ParseQueue converts a string into a Queue.
func ParseQueue(s string) (Queue, bool) {
	switch Queue(s) {
	case QueueMain:
		return QueueMain, true
	case QueueStream:
		return QueueStream, true
	default:
		return "", false
	}
}

// String returns the string representation of the queue.
func (q Queue) String() string {
	return string(q)
}

// CurrentBroadcast is the broadcast whose instance drives the stream queue view.
const CurrentBroadcast = "Current"

// Band represents one equalizer band.
type Band struct {
	ID        string  // Band index as reported by the player
	Frequency float64 // Center frequency in Hz
	Gain      float64 // Gain in dB
}

// Broadcast represents a VLM broadcast descriptor.
type Broadcast struct {
	Name     string
	Input    string        // Input MRL
	Output   string        // Output chain
	Loop     bool          // Loop flag
	State    PlaybackState // Instance state (stopped when there is no instance)
	Position float64       // Instance time in seconds
	Length   float64       // Instance length in seconds
}

// Snapshot is an immutable value parsed from one poll response.
// Slices must not be modified after the snapshot is built.
type Snapshot struct {
	Queue         Queue
	State         PlaybackState
	Title         string
	Position      float64 // Seconds, 0 <= Position <= Length
	Length        float64 // Seconds
	Volume        float64 // 0-100
	Rate          float64
	AudioDelay    float64 // Signed seconds
	SubtitleDelay float64 // Signed seconds
	Random        bool
	Loop          bool
	Repeat        bool
	Preamp        float64
	Bands         []Band
	Artwork       string // Opaque artwork identifier, empty means none
	Broadcasts    []Broadcast
}

// SeekPercent returns the position as a percentage of the length.
// A zero length yields zero.
func (s Snapshot) SeekPercent() float64 {
	if s.Length <= 0 {
		return 0
	}
	return s.Position / s.Length * 100
}

// Broadcast returns the broadcast with the given name.
func (s Snapshot) Broadcast(name string) (Broadcast, bool) {
	for _, b := range s.Broadcasts {
		if b.Name == name {
			return b, true
		}
	}
	return Broadcast{}, false
}

// ClampPosition keeps position within [0, length] and length non-negative.
func ClampPosition(position, length float64) (float64, float64) {
	if length < 0 {
		length = 0
	}
	if position < 0 {
		position = 0
	}
	if position > length {
		position = length
	}
	return position, length
}
