package connect

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/spf13/cast"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/osa030/vlcpanel/internal/app/dispatch"
	"github.com/osa030/vlcpanel/internal/app/notification"
	"github.com/osa030/vlcpanel/internal/app/panel"
	"github.com/osa030/vlcpanel/internal/app/reconcile"
	"github.com/osa030/vlcpanel/internal/app/registry"
	"github.com/osa030/vlcpanel/internal/domain/snapshot"
)

// Panel is the panel surface served over RPC.
type Panel interface {
	Status() panel.Status
	Command(control string, args map[string]any) (dispatch.Command, error)
	Send(ctx context.Context, cmd dispatch.Command, onAck func())
	Run(ctx context.Context, cmd dispatch.Command) error
	SwitchQueue(queue snapshot.Queue) error
	Lock(key registry.Key, d time.Duration) error
	Unlock(key registry.Key) error
	Browse(ctx context.Context, dir string) ([]snapshot.BrowseEntry, error)
	Playlist() ([]snapshot.PlaylistItem, string)
	ClearErrors()
}

// Watcher delivers render operations to live subscribers.
type Watcher interface {
	Subscribe() (string, <-chan notification.Event)
	Unsubscribe(id string)
}

// PanelService implements the PanelService RPC.
type PanelService struct {
	panel   Panel
	watcher Watcher
}

// NewPanelService creates a new PanelService. WatchPanel is unavailable when
// watcher is nil.
func NewPanelService(p Panel, watcher Watcher) *PanelService {
	return &PanelService{panel: p, watcher: watcher}
}

// NewHandler builds the HTTP handler serving every procedure of the service.
func NewHandler(s *PanelService, opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(GetStatusProcedure, connect.NewUnaryHandler(GetStatusProcedure, s.GetStatus, opts...))
	mux.Handle(SendCommandProcedure, connect.NewUnaryHandler(SendCommandProcedure, s.SendCommand, opts...))
	mux.Handle(SwitchQueueProcedure, connect.NewUnaryHandler(SwitchQueueProcedure, s.SwitchQueue, opts...))
	mux.Handle(LockWidgetProcedure, connect.NewUnaryHandler(LockWidgetProcedure, s.LockWidget, opts...))
	mux.Handle(UnlockWidgetProcedure, connect.NewUnaryHandler(UnlockWidgetProcedure, s.UnlockWidget, opts...))
	mux.Handle(BrowseProcedure, connect.NewUnaryHandler(BrowseProcedure, s.Browse, opts...))
	mux.Handle(GetPlaylistProcedure, connect.NewUnaryHandler(GetPlaylistProcedure, s.GetPlaylist, opts...))
	mux.Handle(ClearErrorsProcedure, connect.NewUnaryHandler(ClearErrorsProcedure, s.ClearErrors, opts...))
	mux.Handle(WatchPanelProcedure, connect.NewServerStreamHandler(WatchPanelProcedure, s.WatchPanel, opts...))
	return "/" + ServiceName + "/", mux
}

// GetStatus returns the rendered panel.
func (s *PanelService) GetStatus(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[structpb.Struct], error) {
	return newStructResponse(statusMap(s.panel.Status()))
}

// SendCommand sends a named control. With "wait" set it returns after the
// player acknowledged the command.
func (s *PanelService) SendCommand(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	msg := req.Msg.AsMap()
	control := cast.ToString(msg["control"])
	args, _ := msg["args"].(map[string]any)

	cmd, err := s.panel.Command(control, args)
	if err != nil {
		return nil, toConnectError(err)
	}

	if cast.ToBool(msg["wait"]) {
		if err := s.panel.Run(ctx, cmd); err != nil {
			return nil, toConnectError(err)
		}
	} else {
		s.panel.Send(ctx, cmd, nil)
	}

	zlog.Debug().Msgf("api: %s -> %s", control, cmd)
	return newStructResponse(map[string]any{"command": cmd.String()})
}

// SwitchQueue changes the polled queue.
func (s *PanelService) SwitchQueue(
	ctx context.Context,
	req *connect.Request[wrapperspb.StringValue],
) (*connect.Response[emptypb.Empty], error) {
	if err := s.panel.SwitchQueue(snapshot.Queue(req.Msg.GetValue())); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&emptypb.Empty{}), nil
}

// LockWidget starts a user interaction on a widget.
func (s *PanelService) LockWidget(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[emptypb.Empty], error) {
	msg := req.Msg.AsMap()
	key, err := widgetKey(msg)
	if err != nil {
		return nil, err
	}

	timeout := time.Duration(cast.ToInt64(msg["timeout_ms"])) * time.Millisecond
	if err := s.panel.Lock(key, timeout); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&emptypb.Empty{}), nil
}

// UnlockWidget ends a user interaction on a widget.
func (s *PanelService) UnlockWidget(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[emptypb.Empty], error) {
	key, err := widgetKey(req.Msg.AsMap())
	if err != nil {
		return nil, err
	}

	if err := s.panel.Unlock(key); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&emptypb.Empty{}), nil
}

// Browse lists a directory on the player host.
func (s *PanelService) Browse(
	ctx context.Context,
	req *connect.Request[wrapperspb.StringValue],
) (*connect.Response[structpb.Struct], error) {
	entries, err := s.panel.Browse(ctx, req.Msg.GetValue())
	if err != nil {
		return nil, toConnectError(err)
	}

	return newStructResponse(map[string]any{
		"entries": lo.Map(entries, func(e snapshot.BrowseEntry, _ int) any {
			return map[string]any{"name": e.Name, "path": e.Path, "type": e.Type}
		}),
	})
}

// GetPlaylist returns the last loaded playlist.
func (s *PanelService) GetPlaylist(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[structpb.Struct], error) {
	items, current := s.panel.Playlist()

	return newStructResponse(map[string]any{
		"current_id": current,
		"items": lo.Map(items, func(it snapshot.PlaylistItem, _ int) any {
			return map[string]any{
				"id":       it.ID,
				"name":     it.Name,
				"uri":      it.URI,
				"duration": it.Duration.Seconds(),
				"current":  it.Current,
			}
		}),
	})
}

// ClearErrors drops the errors reported by the player.
func (s *PanelService) ClearErrors(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[emptypb.Empty], error) {
	s.panel.ClearErrors()
	return connect.NewResponse(&emptypb.Empty{}), nil
}

// WatchPanel streams the rendered panel followed by every batch of render
// operations. The stream ends with CodeUnavailable when the subscriber falls
// behind or the server shuts down; clients resubscribe to resync.
func (s *PanelService) WatchPanel(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
	stream *connect.ServerStream[structpb.Struct],
) error {
	if s.watcher == nil {
		return connect.NewError(connect.CodeUnimplemented, errors.New("watching is disabled"))
	}

	// Subscribe before reading the status so no batch falls in between
	id, events := s.watcher.Subscribe()
	defer s.watcher.Unsubscribe(id)

	if err := sendStruct(stream, map[string]any{
		"type":   "initial",
		"status": statusMap(s.panel.Status()),
	}); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return connect.NewError(connect.CodeUnavailable, errors.New("subscription closed"))
			}
			if err := sendStruct(stream, eventMap(ev)); err != nil {
				return err
			}
		}
	}
}

func sendStruct(stream *connect.ServerStream[structpb.Struct], m map[string]any) error {
	st, err := structpb.NewStruct(m)
	if err != nil {
		return connect.NewError(connect.CodeInternal, errors.Wrap(err, "failed to encode event"))
	}
	return stream.Send(st)
}

func eventMap(ev notification.Event) map[string]any {
	return map[string]any{
		"type":        "ops",
		"sequence_no": ev.SequenceNo,
		"queue":       string(ev.Queue),
		"ops":         lo.Map(ev.Ops, func(op reconcile.RenderOp, _ int) any { return opMap(op) }),
	}
}

// opMap converts a render op, keeping only the fields its type uses.
func opMap(op reconcile.RenderOp) map[string]any {
	m := map[string]any{"op": op.Type.String()}
	switch op.Type {
	case reconcile.OpSetScalar:
		m["field"] = string(op.Field)
		m["value"] = plainValue(op.Value)
	case reconcile.OpSetFlag:
		m["field"] = string(op.Field)
		m["flag"] = op.Flag
	case reconcile.OpReloadArtwork:
		m["token"] = op.Token
	case reconcile.OpCreateWidget, reconcile.OpUpdateWidget:
		m["widget"] = op.Widget.String()
		m["value"] = plainValue(op.Value)
	case reconcile.OpDestroyWidget:
		m["widget"] = op.Widget.String()
	}
	return m
}

func widgetKey(msg map[string]any) (registry.Key, error) {
	kind, ok := registry.ParseKind(cast.ToString(msg["kind"]))
	if !ok {
		return registry.Key{}, connect.NewError(connect.CodeInvalidArgument, errors.Newf("unknown widget kind %q", msg["kind"]))
	}
	id := cast.ToString(msg["id"])
	if id == "" {
		return registry.Key{}, connect.NewError(connect.CodeInvalidArgument, errors.New("widget id is required"))
	}
	return registry.Key{Kind: kind, ID: id}, nil
}

func newStructResponse(m map[string]any) (*connect.Response[structpb.Struct], error) {
	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, errors.Wrap(err, "failed to encode response"))
	}
	return connect.NewResponse(st), nil
}

// toConnectError maps panel errors to RPC codes.
func toConnectError(err error) error {
	switch {
	case errors.Is(err, panel.ErrUnknownQueue),
		errors.Is(err, panel.ErrUnknownControl),
		errors.Is(err, dispatch.ErrEmptyCommand),
		errors.Is(err, dispatch.ErrUnknownCommand):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, panel.ErrNothingToDo):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, registry.ErrUnknownWidget):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, panel.ErrNotStarted):
		return connect.NewError(connect.CodeUnavailable, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}

func statusMap(s panel.Status) map[string]any {
	scalars := make(map[string]any, len(s.Scalars))
	for f, v := range s.Scalars {
		scalars[string(f)] = plainValue(v)
	}
	flags := make(map[string]any, len(s.Flags))
	for f, v := range s.Flags {
		flags[string(f)] = v
	}

	bands := make([]any, 0, len(s.Bands))
	for _, b := range s.Bands {
		bands = append(bands, map[string]any{"id": b.Key.ID, "gain": plainValue(b.Value)})
	}
	broadcasts := make([]any, 0, len(s.Broadcasts))
	for _, b := range s.Broadcasts {
		broadcasts = append(broadcasts, plainValue(b.Value))
	}
	errs := make([]any, 0, len(s.Errors))
	for _, e := range s.Errors {
		errs = append(errs, map[string]any{"command": e.Command, "message": e.Message})
	}

	return map[string]any{
		"queue":       string(s.Queue),
		"version":     s.Version,
		"poll_state":  s.PollState.String(),
		"failures":    s.Failures,
		"last_error":  s.LastError,
		"artwork_url": s.ArtworkURL,
		"current_id":  s.CurrentID,
		"scalars":     scalars,
		"flags":       flags,
		"bands":       bands,
		"broadcasts":  broadcasts,
		"errors":      errs,
	}
}

// plainValue converts a rendered value to a structpb-compatible one.
func plainValue(v any) any {
	switch v := v.(type) {
	case nil, string, bool, float64:
		return v
	case snapshot.Broadcast:
		return map[string]any{
			"name":     v.Name,
			"input":    v.Input,
			"output":   v.Output,
			"loop":     v.Loop,
			"state":    v.State.String(),
			"position": v.Position,
			"length":   v.Length,
		}
	default:
		return fmt.Sprint(v)
	}
}
