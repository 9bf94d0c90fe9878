package panel

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cast"

	"github.com/osa030/vlcpanel/internal/app/dispatch"
	"github.com/osa030/vlcpanel/internal/app/poll"
	"github.com/osa030/vlcpanel/internal/app/reconcile"
	"github.com/osa030/vlcpanel/internal/app/render"
	"github.com/osa030/vlcpanel/internal/domain/snapshot"
)

var (
	ErrNothingToDo = errors.New("player already in requested state")
)

// Control names accepted by Command.
const (
	ControlToggle     = "toggle"
	ControlPlay       = "play"
	ControlPause      = "pause"
	ControlStop       = "stop"
	ControlSeek       = "seek"
	ControlVolume     = "volume"
	ControlFullscreen = "fullscreen"
	ControlInPlay     = "in_play"
	ControlEqualizer  = "eq"
	ControlVLM        = "vlm"
	ControlStatus     = "status"
	ControlBroadcast  = "broadcast"
)

// Status is the rendered panel with poll loop health.
type Status struct {
	render.State
	PollState  poll.State
	Failures   int
	LastError  string
	ArtworkURL string // Empty when the default artwork is shown
	CurrentID  string // Current playlist item
	Errors     []dispatch.CommandError
}

// Status returns the current panel status.
func (m *Manager) Status() Status {
	s := Status{State: m.view.State()}

	if c, err := m.active(); err == nil {
		s.PollState = c.State()
		failures, lastErr := c.Failures()
		s.Failures = failures
		if lastErr != nil {
			s.LastError = lastErr.Error()
		}
	}
	if s.ArtworkToken != "" {
		s.ArtworkURL = m.player.ArtworkURL(s.ArtworkToken)
	}
	_, s.CurrentID = m.Playlist()
	s.Errors = m.Errors()
	return s
}

// Command builds the command for a named control. Arguments are coerced leniently;
// the displayed playback state and length fill in what the control needs.
func (m *Manager) Command(control string, args map[string]any) (dispatch.Command, error) {
	queue := m.ActiveQueue()
	view := m.view.State()
	state := snapshot.ParseState(cast.ToString(view.Scalars[reconcile.FieldState]))
	_, currentID := m.Playlist()
	if id := cast.ToString(args["id"]); id != "" {
		currentID = id
	}

	switch strings.ToLower(control) {
	case ControlToggle:
		return dispatch.PlayPause(queue, state, currentID), nil
	case ControlPlay:
		if state == snapshot.StatePlaying {
			return dispatch.Command{}, ErrNothingToDo
		}
		return dispatch.PlayPause(queue, state, currentID), nil
	case ControlPause:
		if state != snapshot.StatePlaying {
			return dispatch.Command{}, ErrNothingToDo
		}
		return dispatch.PlayPause(queue, state, currentID), nil
	case ControlStop:
		return dispatch.Stop(queue), nil
	case ControlSeek:
		length := cast.ToFloat64(view.Scalars[reconcile.FieldLength])
		return dispatch.Seek(queue, cast.ToFloat64(args["percent"]), length), nil
	case ControlVolume:
		return dispatch.Volume(cast.ToFloat64(args["percent"])), nil
	case ControlFullscreen:
		return dispatch.Fullscreen(), nil
	case ControlInPlay:
		path := cast.ToString(args["path"])
		if path == "" {
			return dispatch.Command{}, errors.New("in_play needs a path")
		}
		return dispatch.InPlay(path), nil
	case ControlEqualizer:
		band := cast.ToString(args["band"])
		if band == "" {
			return dispatch.Command{}, errors.New("eq needs a band")
		}
		return dispatch.EqualizerBand(band, cast.ToFloat64(args["gain"])), nil
	case ControlVLM:
		return dispatch.VLM(cast.ToString(args["command"])), nil
	case ControlStatus:
		return statusCommand(args)
	case ControlBroadcast:
		return broadcastCommand(args)
	default:
		return dispatch.Command{}, errors.Wrapf(ErrUnknownControl, "%q", control)
	}
}

// statusCommand passes arbitrary parameters to requests/status.xml.
func statusCommand(args map[string]any) (dispatch.Command, error) {
	name := cast.ToString(args["command"])
	if name == "" {
		return dispatch.Command{}, errors.New("status needs a command")
	}
	cmd := dispatch.Status(name)
	for k, v := range args {
		if k == "command" || k == "plreload" {
			continue
		}
		cmd.Params.Set(k, cast.ToString(v))
	}
	if v, ok := args["plreload"]; ok {
		cmd.NoPlaylistReload = !cast.ToBool(v)
	}
	return cmd, nil
}

func broadcastCommand(args map[string]any) (dispatch.Command, error) {
	name := cast.ToString(args["name"])
	if name == "" {
		return dispatch.Command{}, errors.New("broadcast needs a name")
	}

	switch action := cast.ToString(args["action"]); action {
	case "play", "pause", "stop":
		return dispatch.BroadcastControl(name, action), nil
	case "seek":
		return dispatch.BroadcastSeek(name, cast.ToFloat64(args["percent"])), nil
	case "loop":
		return dispatch.BroadcastLoop(name, true), nil
	case "unloop":
		return dispatch.BroadcastLoop(name, false), nil
	case "del":
		return dispatch.BroadcastDelete(name), nil
	default:
		return dispatch.Command{}, errors.Wrapf(ErrUnknownControl, "broadcast action %q", action)
	}
}
