// Package dispatch sends user commands to the player and triggers re-polls.
package dispatch

import (
	"fmt"
	"math"
	"net/url"
	"strconv"

	"github.com/osa030/vlcpanel/internal/domain/snapshot"
	"github.com/osa030/vlcpanel/internal/infra/vlc"
)

// Kind represents the endpoint a command is sent to.
type Kind int

const (
	KindStatus    Kind = iota // requests/status.xml
	KindVLM                   // requests/vlm_cmd.xml
	KindEqualizer             // requests/equalizer.xml
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindStatus:
		return "status"
	case KindVLM:
		return "vlm"
	case KindEqualizer:
		return "equalizer"
	default:
		return "unknown"
	}
}

// Command is a user-initiated mutation.
type Command struct {
	Kind   Kind
	Params url.Values // KindStatus
	VLM    string     // KindVLM, semicolon separated batch
	Band   string     // KindEqualizer
	Gain   float64    // KindEqualizer

	// Queue the command was issued from. Empty means the active queue.
	Queue snapshot.Queue
	// NoPlaylistReload skips the playlist refresh after a main queue status command.
	NoPlaylistReload bool
}

// String returns a compact description used in logs.
func (c Command) String() string {
	switch c.Kind {
	case KindStatus:
		return fmt.Sprintf("status(%s)", c.Params.Encode())
	case KindVLM:
		return fmt.Sprintf("vlm(%s)", c.VLM)
	case KindEqualizer:
		return fmt.Sprintf("equalizer(band=%s gain=%v)", c.Band, c.Gain)
	default:
		return "unknown"
	}
}

// Status returns a status command with the given parameters.
func Status(command string, kv ...string) Command {
	params := url.Values{}
	params.Set("command", command)
	for i := 0; i+1 < len(kv); i += 2 {
		params.Set(kv[i], kv[i+1])
	}
	return Command{Kind: KindStatus, Params: params}
}

// VLM returns a VLM command. Batches are separated by ';'.
func VLM(command string) Command {
	return Command{Kind: KindVLM, VLM: command}
}

// Seek moves playback to percent (0-100) of the current item.
// The main queue seeks in seconds; the stream queue seeks the Current broadcast.
func Seek(queue snapshot.Queue, percent, length float64) Command {
	percent = clampPercent(percent)
	if queue == snapshot.QueueStream {
		cmd := VLM(fmt.Sprintf("control %s seek %d", snapshot.CurrentBroadcast, int(math.Round(percent))))
		cmd.Queue = queue
		return cmd
	}
	cmd := Status("seek", "val", strconv.Itoa(int(math.Round(percent/100*length))))
	cmd.Queue = queue
	cmd.NoPlaylistReload = true
	return cmd
}

// clampPercent limits percent to [0, 100]; non-numbers become 0.
func clampPercent(percent float64) float64 {
	if math.IsNaN(percent) {
		return 0
	}
	return math.Max(0, math.Min(100, percent))
}

// Volume sets the volume in percent (0-100).
func Volume(percent float64) Command {
	percent = clampPercent(percent)
	cmd := Status("volume", "val", strconv.Itoa(int(math.Round(percent*vlc.VolumeScale))))
	cmd.NoPlaylistReload = true
	return cmd
}

// PlayPause toggles playback based on the displayed state.
// When stopped, the main queue plays playlistID (the current item when empty).
func PlayPause(queue snapshot.Queue, state snapshot.PlaybackState, playlistID string) Command {
	var cmd Command
	switch {
	case queue == snapshot.QueueStream && state == snapshot.StateStopped:
		cmd = BroadcastControl(snapshot.CurrentBroadcast, "play")
	case queue == snapshot.QueueStream:
		cmd = BroadcastControl(snapshot.CurrentBroadcast, "pause")
	case state == snapshot.StateStopped && playlistID != "":
		cmd = Status("pl_play", "id", playlistID)
	case state == snapshot.StateStopped:
		cmd = Status("pl_play")
	default:
		cmd = Status("pl_pause")
	}
	cmd.Queue = queue
	return cmd
}

// Stop stops playback.
func Stop(queue snapshot.Queue) Command {
	var cmd Command
	if queue == snapshot.QueueStream {
		cmd = BroadcastControl(snapshot.CurrentBroadcast, "stop")
	} else {
		cmd = Status("pl_stop")
	}
	cmd.Queue = queue
	return cmd
}

// Fullscreen toggles fullscreen on the player.
func Fullscreen() Command {
	return Status("fullscreen")
}

// InPlay adds a local file to the playlist and plays it.
func InPlay(path string) Command {
	return Status("in_play", "input", "file://"+path)
}

// EqualizerBand sets one band's gain in dB.
func EqualizerBand(band string, gain float64) Command {
	return Command{Kind: KindEqualizer, Band: band, Gain: gain}
}

// BroadcastControl sends play, pause or stop to a broadcast.
func BroadcastControl(name, action string) Command {
	return VLM(fmt.Sprintf("control %s %s", name, action))
}

// BroadcastSeek seeks a broadcast to percent (0-100).
func BroadcastSeek(name string, percent float64) Command {
	percent = clampPercent(percent)
	return VLM(fmt.Sprintf("control %s seek %d", name, int(math.Round(percent))))
}

// BroadcastLoop enables or disables looping of a broadcast.
func BroadcastLoop(name string, loop bool) Command {
	if loop {
		return VLM(fmt.Sprintf("setup %s loop", name))
	}
	return VLM(fmt.Sprintf("setup %s unloop", name))
}

// BroadcastDelete removes a broadcast.
func BroadcastDelete(name string) Command {
	return VLM("del " + name)
}
