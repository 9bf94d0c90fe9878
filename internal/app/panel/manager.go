// Package panel owns the active queue and wires polling, commands and rendering.
package panel

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/osa030/vlcpanel/internal/app/dispatch"
	"github.com/osa030/vlcpanel/internal/app/poll"
	"github.com/osa030/vlcpanel/internal/app/reconcile"
	"github.com/osa030/vlcpanel/internal/app/registry"
	"github.com/osa030/vlcpanel/internal/app/render"
	"github.com/osa030/vlcpanel/internal/domain/snapshot"
)

var (
	ErrNotStarted     = errors.New("panel not started")
	ErrUnknownQueue   = errors.New("unknown queue")
	ErrUnknownControl = errors.New("unknown control")
)

// Player is the remote player the panel controls.
type Player interface {
	poll.Fetcher
	dispatch.Commander
	FetchPlaylist(ctx context.Context) ([]snapshot.PlaylistItem, error)
	Browse(ctx context.Context, dir string, extensions []string) ([]snapshot.BrowseEntry, error)
	ArtworkURL(token string) string
}

// Config holds panel configuration.
type Config struct {
	Player       Player
	View         *render.View  // Created when nil
	Sinks        []render.Sink // Applied after the view
	InitialQueue snapshot.Queue
	Interval     time.Duration
	RetryDelay   time.Duration
	LockTimeout  time.Duration
	Extensions   []string // Browsable file extensions
	MaxErrors    int
	Scheduler    poll.Scheduler
	Now          func() time.Time
}

// Manager runs one poll loop for the active queue.
type Manager struct {
	player     Player
	view       *render.View
	sink       render.Fanout
	reconciler *reconcile.Reconciler
	notifier   *Notifier
	dispatcher *dispatch.Dispatcher
	cfg        Config

	mu         sync.RWMutex
	ctx        context.Context
	queue      snapshot.Queue
	controller *poll.Controller

	playlistMu sync.RWMutex
	playlist   []snapshot.PlaylistItem
	currentID  string
}

// New creates a new panel manager.
func New(cfg Config) *Manager {
	if cfg.View == nil {
		cfg.View = render.NewView()
	}
	if cfg.InitialQueue == "" {
		cfg.InitialQueue = snapshot.QueueMain
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	m := &Manager{
		player:     cfg.Player,
		view:       cfg.View,
		sink:       append(render.Fanout{cfg.View}, cfg.Sinks...),
		reconciler: reconcile.New(cfg.Now),
		notifier:   NewNotifier(cfg.MaxErrors),
		queue:      cfg.InitialQueue,
		cfg:        cfg,
	}
	m.dispatcher = dispatch.New(dispatch.Config{
		Commander: cfg.Player,
		Notifier:  m.notifier,
		Repoller:  m,
		Playlist:  m,
	})
	return m
}

// Start polls the initial queue and loads the playlist.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.controller != nil {
		m.mu.Unlock()
		return errors.New("panel already started")
	}
	m.ctx = ctx
	err := m.startLocked(m.queue)
	m.mu.Unlock()
	if err != nil {
		return err
	}

	if err := m.RefreshPlaylist(ctx); err != nil {
		zlog.Warn().Msgf("panel: initial playlist load failed: %v", err)
	}
	return nil
}

// Close stops polling and waits for dispatched commands.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.controller != nil {
		m.controller.Stop()
	}
	m.mu.Unlock()

	m.dispatcher.Wait()
}

func (m *Manager) startLocked(queue snapshot.Queue) error {
	c := poll.New(poll.Config{
		Queue:      queue,
		Fetcher:    m.player,
		Registry:   registry.New(registry.Config{LockTimeout: m.cfg.LockTimeout, Now: m.cfg.Now}),
		Reconciler: m.reconciler,
		Sink:       m.sink,
		Interval:   m.cfg.Interval,
		RetryDelay: m.cfg.RetryDelay,
		Scheduler:  m.cfg.Scheduler,
	})
	if err := c.Start(m.ctx); err != nil {
		return err
	}
	m.queue = queue
	m.controller = c
	return nil
}

// SwitchQueue stops the active poll loop and starts one for queue.
// Widgets of the previous queue are dropped.
func (m *Manager) SwitchQueue(queue snapshot.Queue) error {
	if _, ok := snapshot.ParseQueue(string(queue)); !ok {
		return errors.Wrapf(ErrUnknownQueue, "%q", queue)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.controller == nil {
		return ErrNotStarted
	}
	if queue == m.queue {
		return nil
	}

	zlog.Info().Msgf("panel: switching queue %s -> %s", m.queue, queue)
	m.controller.Stop()
	return m.startLocked(queue)
}

// ActiveQueue returns the polled queue.
func (m *Manager) ActiveQueue() snapshot.Queue {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.queue
}

func (m *Manager) active() (*poll.Controller, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.controller == nil {
		return nil, ErrNotStarted
	}
	return m.controller, nil
}

// Trigger re-polls the active queue. It implements dispatch.Repoller.
func (m *Manager) Trigger() {
	if c, err := m.active(); err == nil {
		c.Trigger()
	}
}

// Lock marks a widget of the active queue as under user interaction.
func (m *Manager) Lock(key registry.Key, d time.Duration) error {
	c, err := m.active()
	if err != nil {
		return err
	}
	return c.Registry().Lock(key, d)
}

// Unlock ends a user interaction started with Lock.
func (m *Manager) Unlock(key registry.Key) error {
	c, err := m.active()
	if err != nil {
		return err
	}
	c.Registry().Unlock(key)
	return nil
}

// RefreshPlaylist reloads the playlist and the current item id.
// It implements dispatch.PlaylistRefresher.
func (m *Manager) RefreshPlaylist(ctx context.Context) error {
	items, err := m.player.FetchPlaylist(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to fetch playlist")
	}

	m.playlistMu.Lock()
	defer m.playlistMu.Unlock()

	m.playlist = items
	if cur, ok := lo.Find(items, func(it snapshot.PlaylistItem) bool { return it.Current }); ok {
		m.currentID = cur.ID
	}
	return nil
}

// Playlist returns the last loaded playlist and the current item id.
func (m *Manager) Playlist() ([]snapshot.PlaylistItem, string) {
	m.playlistMu.RLock()
	defer m.playlistMu.RUnlock()
	return append([]snapshot.PlaylistItem(nil), m.playlist...), m.currentID
}

// Browse lists a directory on the player host.
func (m *Manager) Browse(ctx context.Context, dir string) ([]snapshot.BrowseEntry, error) {
	return m.player.Browse(ctx, dir, m.cfg.Extensions)
}

// Send dispatches cmd without waiting. Commands without a queue target the active one.
func (m *Manager) Send(ctx context.Context, cmd dispatch.Command, onAck func()) {
	m.dispatcher.Dispatch(ctx, m.stamp(cmd), onAck)
}

// Run sends cmd and waits for it and its follow-ups.
func (m *Manager) Run(ctx context.Context, cmd dispatch.Command) error {
	return m.dispatcher.Run(ctx, m.stamp(cmd), nil)
}

func (m *Manager) stamp(cmd dispatch.Command) dispatch.Command {
	if cmd.Queue == "" {
		cmd.Queue = m.ActiveQueue()
	}
	return cmd
}

// Errors returns recent errors reported by the player.
func (m *Manager) Errors() []dispatch.CommandError {
	return m.notifier.Recent()
}

// ClearErrors drops the recent errors.
func (m *Manager) ClearErrors() {
	m.notifier.Clear()
}
