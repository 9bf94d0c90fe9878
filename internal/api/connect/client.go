package connect

import (
	"context"
	"strings"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client calls the panel service.
type Client struct {
	getStatus    *connect.Client[emptypb.Empty, structpb.Struct]
	sendCommand  *connect.Client[structpb.Struct, structpb.Struct]
	switchQueue  *connect.Client[wrapperspb.StringValue, emptypb.Empty]
	lockWidget   *connect.Client[structpb.Struct, emptypb.Empty]
	unlockWidget *connect.Client[structpb.Struct, emptypb.Empty]
	browse       *connect.Client[wrapperspb.StringValue, structpb.Struct]
	getPlaylist  *connect.Client[emptypb.Empty, structpb.Struct]
	clearErrors  *connect.Client[emptypb.Empty, emptypb.Empty]
	watchPanel   *connect.Client[emptypb.Empty, structpb.Struct]
}

// NewClient creates a client for the service at baseURL authenticating with token.
func NewClient(httpClient connect.HTTPClient, baseURL, token string) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	opt := connect.WithInterceptors(NewTokenClientInterceptor(token))

	return &Client{
		getStatus:    connect.NewClient[emptypb.Empty, structpb.Struct](httpClient, baseURL+GetStatusProcedure, opt),
		sendCommand:  connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+SendCommandProcedure, opt),
		switchQueue:  connect.NewClient[wrapperspb.StringValue, emptypb.Empty](httpClient, baseURL+SwitchQueueProcedure, opt),
		lockWidget:   connect.NewClient[structpb.Struct, emptypb.Empty](httpClient, baseURL+LockWidgetProcedure, opt),
		unlockWidget: connect.NewClient[structpb.Struct, emptypb.Empty](httpClient, baseURL+UnlockWidgetProcedure, opt),
		browse:       connect.NewClient[wrapperspb.StringValue, structpb.Struct](httpClient, baseURL+BrowseProcedure, opt),
		getPlaylist:  connect.NewClient[emptypb.Empty, structpb.Struct](httpClient, baseURL+GetPlaylistProcedure, opt),
		clearErrors:  connect.NewClient[emptypb.Empty, emptypb.Empty](httpClient, baseURL+ClearErrorsProcedure, opt),
		watchPanel:   connect.NewClient[emptypb.Empty, structpb.Struct](httpClient, baseURL+WatchPanelProcedure, opt),
	}
}

// GetStatus returns the rendered panel.
func (c *Client) GetStatus(ctx context.Context) (map[string]any, error) {
	resp, err := c.getStatus.CallUnary(ctx, connect.NewRequest(&emptypb.Empty{}))
	if err != nil {
		return nil, err
	}
	return resp.Msg.AsMap(), nil
}

// SendCommand sends a named control and returns the command description.
func (c *Client) SendCommand(ctx context.Context, control string, args map[string]any, wait bool) (string, error) {
	if args == nil {
		args = map[string]any{}
	}
	msg, err := structpb.NewStruct(map[string]any{"control": control, "args": args, "wait": wait})
	if err != nil {
		return "", err
	}

	resp, err := c.sendCommand.CallUnary(ctx, connect.NewRequest(msg))
	if err != nil {
		return "", err
	}
	return resp.Msg.GetFields()["command"].GetStringValue(), nil
}

// SwitchQueue changes the polled queue.
func (c *Client) SwitchQueue(ctx context.Context, queue string) error {
	_, err := c.switchQueue.CallUnary(ctx, connect.NewRequest(wrapperspb.String(queue)))
	return err
}

// LockWidget locks a widget for timeoutMs milliseconds (server default when zero).
func (c *Client) LockWidget(ctx context.Context, kind, id string, timeoutMs int64) error {
	msg, err := structpb.NewStruct(map[string]any{"kind": kind, "id": id, "timeout_ms": timeoutMs})
	if err != nil {
		return err
	}
	_, err = c.lockWidget.CallUnary(ctx, connect.NewRequest(msg))
	return err
}

// UnlockWidget unlocks a widget.
func (c *Client) UnlockWidget(ctx context.Context, kind, id string) error {
	msg, err := structpb.NewStruct(map[string]any{"kind": kind, "id": id})
	if err != nil {
		return err
	}
	_, err = c.unlockWidget.CallUnary(ctx, connect.NewRequest(msg))
	return err
}

// Browse lists a directory on the player host.
func (c *Client) Browse(ctx context.Context, dir string) ([]any, error) {
	resp, err := c.browse.CallUnary(ctx, connect.NewRequest(wrapperspb.String(dir)))
	if err != nil {
		return nil, err
	}
	entries, _ := resp.Msg.AsMap()["entries"].([]any)
	return entries, nil
}

// GetPlaylist returns the playlist items and the current item id.
func (c *Client) GetPlaylist(ctx context.Context) ([]any, string, error) {
	resp, err := c.getPlaylist.CallUnary(ctx, connect.NewRequest(&emptypb.Empty{}))
	if err != nil {
		return nil, "", err
	}
	m := resp.Msg.AsMap()
	items, _ := m["items"].([]any)
	current, _ := m["current_id"].(string)
	return items, current, nil
}

// ClearErrors drops the errors reported by the player.
func (c *Client) ClearErrors(ctx context.Context) error {
	_, err := c.clearErrors.CallUnary(ctx, connect.NewRequest(&emptypb.Empty{}))
	return err
}

// WatchPanel calls fn with the initial status and then with every batch of
// render operations until ctx is done, the stream ends or fn returns an error.
func (c *Client) WatchPanel(ctx context.Context, fn func(event map[string]any) error) error {
	stream, err := c.watchPanel.CallServerStream(ctx, connect.NewRequest(&emptypb.Empty{}))
	if err != nil {
		return err
	}
	defer stream.Close()

	for stream.Receive() {
		if err := fn(stream.Msg().AsMap()); err != nil {
			return err
		}
	}
	return stream.Err()
}
