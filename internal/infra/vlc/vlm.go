package vlc

import (
	"context"
	"math"
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/xmlpath.v2"

	"github.com/osa030/vlcpanel/internal/domain/snapshot"
)

var (
	broadcastPath         = xmlpath.MustCompile("/vlm/broadcast")
	broadcastNamePath     = xmlpath.MustCompile("@name")
	broadcastLoopPath     = xmlpath.MustCompile("@loop")
	broadcastOutputPath   = xmlpath.MustCompile("output")
	broadcastInputPath    = xmlpath.MustCompile("inputs/input")
	broadcastInstancePath = xmlpath.MustCompile("instances/instance")
	instanceStatePath     = xmlpath.MustCompile("@state")
	instanceTimePath      = xmlpath.MustCompile("@time")
	instanceLengthPath    = xmlpath.MustCompile("@length")
	vlmErrorPath          = xmlpath.MustCompile("//error")
)

// FetchVLM reads requests/vlm.xml into a stream queue snapshot.
func (c *Client) FetchVLM(ctx context.Context) (snapshot.Snapshot, error) {
	root, err := c.get(ctx, vlmPath, nil)
	if err != nil {
		return snapshot.Snapshot{}, err
	}
	return parseVLM(root), nil
}

// SendVLMCommand sends a single VLM command string.
// It returns the error message reported by the player, if any.
func (c *Client) SendVLMCommand(ctx context.Context, command string) (string, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return "", errors.New("empty VLM command")
	}

	params := url.Values{}
	params.Set("command", command)

	root, err := c.get(ctx, vlmCmdPath, params)
	if err != nil {
		return "", err
	}
	return text(vlmErrorPath, root), nil
}

// parseVLM builds a stream queue snapshot. The broadcast named Current drives the
// playback scalars; when it has no instance the state is stopped.
func parseVLM(root *xmlpath.Node) snapshot.Snapshot {
	var broadcasts []snapshot.Broadcast
	iter := broadcastPath.Iter(root)
	for iter.Next() {
		b, ok := parseBroadcast(iter.Node())
		if !ok {
			continue
		}
		broadcasts = append(broadcasts, b)
	}

	s := snapshot.Snapshot{
		Queue:      snapshot.QueueStream,
		State:      snapshot.StateStopped,
		Broadcasts: broadcasts,
	}
	if current, ok := s.Broadcast(snapshot.CurrentBroadcast); ok {
		s.Title = current.Input
		s.State = current.State
		s.Position = current.Position
		s.Length = current.Length
	}
	return s
}

func parseBroadcast(n *xmlpath.Node) (snapshot.Broadcast, bool) {
	name := text(broadcastNamePath, n)
	if name == "" {
		return snapshot.Broadcast{}, false
	}

	b := snapshot.Broadcast{
		Name:   name,
		Input:  text(broadcastInputPath, n),
		Output: text(broadcastOutputPath, n),
		Loop:   yes(broadcastLoopPath, n),
		State:  snapshot.StateStopped,
	}

	iter := broadcastInstancePath.Iter(n)
	if iter.Next() {
		inst := iter.Node()
		b.State = snapshot.ParseState(text(instanceStatePath, inst))
		b.Position, b.Length = snapshot.ClampPosition(
			microsToSeconds(number(instanceTimePath, inst)),
			microsToSeconds(number(instanceLengthPath, inst)),
		)
	}
	return b, true
}

// microsToSeconds converts instance times, reported in microseconds, to whole seconds.
func microsToSeconds(v float64) float64 {
	return math.Round(v / 1000000)
}
