package connect

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/vlcpanel/internal/app/dispatch"
	"github.com/osa030/vlcpanel/internal/app/notification"
	"github.com/osa030/vlcpanel/internal/app/panel"
	"github.com/osa030/vlcpanel/internal/app/poll"
	"github.com/osa030/vlcpanel/internal/app/reconcile"
	"github.com/osa030/vlcpanel/internal/app/registry"
	"github.com/osa030/vlcpanel/internal/app/render"
	"github.com/osa030/vlcpanel/internal/domain/snapshot"
)

const testToken = "secret"

// fakePanel records the calls made by the handlers.
type fakePanel struct {
	mu       sync.Mutex
	sent     []dispatch.Command
	ran      []dispatch.Command
	queue    snapshot.Queue
	locked   map[registry.Key]time.Duration
	unlocked []registry.Key
	cleared  bool
}

func (p *fakePanel) Status() panel.Status {
	return panel.Status{
		State: render.State{
			Queue:   snapshot.QueueStream,
			Scalars: map[reconcile.Field]any{reconcile.FieldState: "playing", reconcile.FieldVolume: 50.0},
			Flags:   map[reconcile.Field]bool{reconcile.FieldPlaying: true},
			Bands:   []render.WidgetValue{{Key: registry.BandKey("0"), Value: 2.5}},
			Broadcasts: []render.WidgetValue{
				{Key: registry.BroadcastKey("Current"), Value: snapshot.Broadcast{Name: "Current", Loop: true, State: snapshot.StatePlaying}},
			},
			Version: 3,
		},
		PollState:  poll.StateScheduled,
		ArtworkURL: "http://vlc/art?1",
		CurrentID:  "5",
		Errors:     []dispatch.CommandError{{Command: "del x", Message: "unknown"}},
	}
}

func (p *fakePanel) Command(control string, args map[string]any) (dispatch.Command, error) {
	switch control {
	case "stop":
		return dispatch.Stop(snapshot.QueueMain), nil
	case "volume":
		return dispatch.Volume(args["percent"].(float64)), nil
	case "play":
		return dispatch.Command{}, panel.ErrNothingToDo
	default:
		return dispatch.Command{}, errors.Wrapf(panel.ErrUnknownControl, "%q", control)
	}
}

func (p *fakePanel) Send(_ context.Context, cmd dispatch.Command, _ func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, cmd)
}

func (p *fakePanel) Run(_ context.Context, cmd dispatch.Command) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ran = append(p.ran, cmd)
	return nil
}

func (p *fakePanel) SwitchQueue(queue snapshot.Queue) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := snapshot.ParseQueue(string(queue)); !ok {
		return panel.ErrUnknownQueue
	}
	p.queue = queue
	return nil
}

func (p *fakePanel) Lock(key registry.Key, d time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if key.Kind != registry.KindScalar {
		return registry.ErrUnknownWidget
	}
	p.locked[key] = d
	return nil
}

func (p *fakePanel) Unlock(key registry.Key) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unlocked = append(p.unlocked, key)
	return nil
}

func (p *fakePanel) Browse(_ context.Context, dir string) ([]snapshot.BrowseEntry, error) {
	return []snapshot.BrowseEntry{{Name: "a.mp3", Path: dir + "/a.mp3", Type: "file"}}, nil
}

func (p *fakePanel) Playlist() ([]snapshot.PlaylistItem, string) {
	return []snapshot.PlaylistItem{{ID: "5", Name: "song", Duration: 90 * time.Second, Current: true}}, "5"
}

func (p *fakePanel) ClearErrors() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cleared = true
}

func newTestServer(t *testing.T) (*fakePanel, *Client) {
	t.Helper()
	p := &fakePanel{locked: map[registry.Key]time.Duration{}}

	path, handler := NewHandler(NewPanelService(p, nil), connect.WithInterceptors(NewTokenInterceptor(testToken)))
	mux := http.NewServeMux()
	mux.Handle(path, handler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return p, NewClient(srv.Client(), srv.URL, testToken)
}

func TestPanelService_GetStatus(t *testing.T) {
	_, client := newTestServer(t)

	status, err := client.GetStatus(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "stream", status["queue"])
	assert.Equal(t, "scheduled", status["poll_state"])
	assert.Equal(t, 3.0, status["version"])
	assert.Equal(t, "http://vlc/art?1", status["artwork_url"])
	assert.Equal(t, map[string]any{"state": "playing", "volume": 50.0}, status["scalars"])
	assert.Equal(t, map[string]any{"playing": true}, status["flags"])
	assert.Equal(t, []any{map[string]any{"id": "0", "gain": 2.5}}, status["bands"])

	broadcasts := status["broadcasts"].([]any)
	require.Len(t, broadcasts, 1)
	assert.Equal(t, "Current", broadcasts[0].(map[string]any)["name"])
	assert.Equal(t, "playing", broadcasts[0].(map[string]any)["state"])
	assert.Len(t, status["errors"], 1)
}

func TestPanelService_SendCommand(t *testing.T) {
	p, client := newTestServer(t)
	ctx := context.Background()

	desc, err := client.SendCommand(ctx, "stop", nil, false)
	require.NoError(t, err)
	assert.Equal(t, "status(command=pl_stop)", desc)
	assert.Len(t, p.sent, 1)

	desc, err = client.SendCommand(ctx, "volume", map[string]any{"percent": 50}, true)
	require.NoError(t, err)
	assert.Equal(t, "status(command=volume&val=256)", desc)
	assert.Len(t, p.ran, 1)
}

func TestPanelService_ErrorCodes(t *testing.T) {
	_, client := newTestServer(t)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
		code connect.Code
	}{
		{
			name: "unknown control",
			call: func() error { _, err := client.SendCommand(ctx, "rewind", nil, false); return err },
			code: connect.CodeInvalidArgument,
		},
		{
			name: "nothing to do",
			call: func() error { _, err := client.SendCommand(ctx, "play", nil, false); return err },
			code: connect.CodeFailedPrecondition,
		},
		{
			name: "unknown queue",
			call: func() error { return client.SwitchQueue(ctx, "video") },
			code: connect.CodeInvalidArgument,
		},
		{
			name: "unknown widget",
			call: func() error { return client.LockWidget(ctx, "broadcast", "ghost", 0) },
			code: connect.CodeNotFound,
		},
		{
			name: "bad widget kind",
			call: func() error { return client.LockWidget(ctx, "slider", "volume", 0) },
			code: connect.CodeInvalidArgument,
		},
		{
			name: "missing widget id",
			call: func() error { return client.UnlockWidget(ctx, "scalar", "") },
			code: connect.CodeInvalidArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.Equal(t, tt.code, connect.CodeOf(err))
		})
	}
}

func TestPanelService_QueueAndLocks(t *testing.T) {
	p, client := newTestServer(t)
	ctx := context.Background()

	require.NoError(t, client.SwitchQueue(ctx, "stream"))
	assert.Equal(t, snapshot.QueueStream, p.queue)

	require.NoError(t, client.LockWidget(ctx, "scalar", "volume", 1500))
	assert.Equal(t, 1500*time.Millisecond, p.locked[registry.ScalarKey("volume")])

	require.NoError(t, client.UnlockWidget(ctx, "scalar", "volume"))
	assert.Equal(t, []registry.Key{registry.ScalarKey("volume")}, p.unlocked)
}

func TestPanelService_BrowseAndPlaylist(t *testing.T) {
	p, client := newTestServer(t)
	ctx := context.Background()

	entries, err := client.Browse(ctx, "/music")
	require.NoError(t, err)
	assert.Equal(t, []any{map[string]any{"name": "a.mp3", "path": "/music/a.mp3", "type": "file"}}, entries)

	items, current, err := client.GetPlaylist(ctx)
	require.NoError(t, err)
	assert.Equal(t, "5", current)
	require.Len(t, items, 1)
	assert.Equal(t, 90.0, items[0].(map[string]any)["duration"])

	require.NoError(t, client.ClearErrors(ctx))
	assert.True(t, p.cleared)
}

func TestTokenInterceptor(t *testing.T) {
	p := &fakePanel{locked: map[registry.Key]time.Duration{}}
	path, handler := NewHandler(NewPanelService(p, nil), connect.WithInterceptors(NewTokenInterceptor(testToken)))
	mux := http.NewServeMux()
	mux.Handle(path, handler)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	for _, token := range []string{"", "wrong"} {
		_, err := NewClient(srv.Client(), srv.URL, token).GetStatus(context.Background())
		require.Error(t, err)
		assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
	}
}

func TestPanelService_WatchPanel(t *testing.T) {
	p := &fakePanel{locked: map[registry.Key]time.Duration{}}
	hub := notification.NewManager(4)
	path, handler := NewHandler(NewPanelService(p, hub), connect.WithInterceptors(NewTokenInterceptor(testToken)))
	mux := http.NewServeMux()
	mux.Handle(path, handler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events := make(chan map[string]any, 4)
	done := make(chan error, 1)
	go func() {
		done <- NewClient(srv.Client(), srv.URL, testToken).WatchPanel(ctx, func(ev map[string]any) error {
			events <- ev
			return nil
		})
	}()

	initial := <-events
	assert.Equal(t, "initial", initial["type"])
	status := initial["status"].(map[string]any)
	assert.Equal(t, "stream", status["queue"])

	// The subscription exists once the initial status has been sent
	hub.Broadcast(snapshot.QueueStream, []reconcile.RenderOp{
		reconcile.SetScalar(reconcile.FieldVolume, 80.0),
		reconcile.DestroyWidget(registry.BroadcastKey("Stream1")),
	})

	ev := <-events
	assert.Equal(t, "ops", ev["type"])
	assert.Equal(t, 1.0, ev["sequence_no"])
	assert.Equal(t, []any{
		map[string]any{"op": "set_scalar", "field": "volume", "value": 80.0},
		map[string]any{"op": "destroy_widget", "widget": "broadcast:Stream1"},
	}, ev["ops"])

	// Closing the hub ends the stream
	hub.Close()
	err := <-done
	require.Error(t, err)
	assert.Equal(t, connect.CodeUnavailable, connect.CodeOf(err))
}

func TestPanelService_WatchPanelRequiresToken(t *testing.T) {
	p := &fakePanel{locked: map[registry.Key]time.Duration{}}
	path, handler := NewHandler(NewPanelService(p, notification.NewManager(1)), connect.WithInterceptors(NewTokenInterceptor(testToken)))
	mux := http.NewServeMux()
	mux.Handle(path, handler)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	err := NewClient(srv.Client(), srv.URL, "wrong").WatchPanel(context.Background(), func(map[string]any) error {
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
}

func TestPanelService_WatchPanelDisabled(t *testing.T) {
	_, client := newTestServer(t)

	err := client.WatchPanel(context.Background(), func(map[string]any) error { return nil })
	require.Error(t, err)
	assert.Equal(t, connect.CodeUnimplemented, connect.CodeOf(err))
}
