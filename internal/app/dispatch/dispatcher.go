package dispatch

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/vlcpanel/internal/domain/snapshot"
)

var (
	ErrUnknownCommand = errors.New("unknown command kind")
	ErrEmptyCommand   = errors.New("empty command")
)

// CommandError is an error reported by the player for one command.
type CommandError struct {
	ID      string // Dispatch id, shared by every command of a batch
	Command string
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %q failed: %s", e.Command, e.Message)
}

// Commander sends commands to the player.
type Commander interface {
	SendStatusCommand(ctx context.Context, params url.Values) error
	SendVLMCommand(ctx context.Context, command string) (string, error)
	SetEqualizerBand(ctx context.Context, band string, gain float64) (float64, []snapshot.Band, error)
}

// ErrorNotifier receives errors reported by the player.
type ErrorNotifier interface {
	Notify(err *CommandError)
}

// Repoller re-polls the active queue.
type Repoller interface {
	Trigger()
}

// PlaylistRefresher reloads the playlist.
type PlaylistRefresher interface {
	RefreshPlaylist(ctx context.Context) error
}

// Config holds dispatcher dependencies. Notifier, Repoller and Playlist are optional.
type Config struct {
	Commander Commander
	Notifier  ErrorNotifier
	Repoller  Repoller
	Playlist  PlaylistRefresher
}

// Dispatcher sends commands and reacts to their acknowledgement.
type Dispatcher struct {
	commander Commander
	notifier  ErrorNotifier
	repoller  Repoller
	playlist  PlaylistRefresher

	wg sync.WaitGroup
}

// New creates a new dispatcher.
func New(cfg Config) *Dispatcher {
	return &Dispatcher{
		commander: cfg.Commander,
		notifier:  cfg.Notifier,
		repoller:  cfg.Repoller,
		playlist:  cfg.Playlist,
	}
}

// Dispatch runs the command in the background. Failures are logged.
// The command outlives ctx cancellation but keeps its values.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command, onAck func()) {
	ctx = context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.Run(ctx, cmd, onAck); err != nil {
			zlog.Warn().Msgf("dispatch: %s: %v", cmd, err)
		}
	}()
}

// Wait blocks until every dispatched command has completed.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Run sends the command and blocks until it and its follow-ups complete.
// Player-reported errors go to the notifier and do not stop a batch;
// transport errors abort it and skip onAck and the re-poll.
func (d *Dispatcher) Run(ctx context.Context, cmd Command, onAck func()) error {
	id := uuid.NewString()
	zlog.Debug().Msgf("dispatch[%s]: %s", id, cmd)

	if err := d.send(ctx, id, cmd); err != nil {
		return err
	}

	if onAck != nil {
		onAck()
	}
	if d.repoller != nil {
		d.repoller.Trigger()
	}
	if d.shouldRefreshPlaylist(cmd) {
		if err := d.playlist.RefreshPlaylist(ctx); err != nil {
			zlog.Warn().Msgf("dispatch[%s]: playlist refresh failed: %v", id, err)
		}
	}
	return nil
}

func (d *Dispatcher) send(ctx context.Context, id string, cmd Command) error {
	switch cmd.Kind {
	case KindStatus:
		if cmd.Params.Get("command") == "" {
			return ErrEmptyCommand
		}
		return errors.Wrap(d.commander.SendStatusCommand(ctx, cmd.Params), "status command")

	case KindVLM:
		parts := splitBatch(cmd.VLM)
		if len(parts) == 0 {
			return ErrEmptyCommand
		}
		for _, part := range parts {
			msg, err := d.commander.SendVLMCommand(ctx, part)
			if err != nil {
				return errors.Wrapf(err, "vlm command %q", part)
			}
			if msg != "" {
				d.notify(&CommandError{ID: id, Command: part, Message: msg})
			}
		}
		return nil

	case KindEqualizer:
		_, _, err := d.commander.SetEqualizerBand(ctx, cmd.Band, cmd.Gain)
		return errors.Wrapf(err, "equalizer band %s", cmd.Band)

	default:
		return errors.Wrapf(ErrUnknownCommand, "%d", cmd.Kind)
	}
}

func (d *Dispatcher) notify(err *CommandError) {
	zlog.Warn().Msgf("dispatch[%s]: %v", err.ID, err)
	if d.notifier != nil {
		d.notifier.Notify(err)
	}
}

// shouldRefreshPlaylist reports whether the playlist must be reloaded after cmd.
// Stream queue status commands always refresh.
func (d *Dispatcher) shouldRefreshPlaylist(cmd Command) bool {
	if d.playlist == nil || cmd.Kind != KindStatus {
		return false
	}
	return cmd.Queue == snapshot.QueueStream || !cmd.NoPlaylistReload
}

func splitBatch(batch string) []string {
	var parts []string
	for _, p := range strings.Split(batch, ";") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}
