package vlc

import (
	"context"
	"time"

	"gopkg.in/xmlpath.v2"

	"github.com/osa030/vlcpanel/internal/domain/snapshot"
)

var (
	leafPath         = xmlpath.MustCompile("//leaf")
	leafIDPath       = xmlpath.MustCompile("@id")
	leafNamePath     = xmlpath.MustCompile("@name")
	leafURIPath      = xmlpath.MustCompile("@uri")
	leafDurationPath = xmlpath.MustCompile("@duration")
	leafCurrentPath  = xmlpath.MustCompile("@current")
)

// FetchPlaylist reads requests/playlist.xml and returns its leaves in order.
func (c *Client) FetchPlaylist(ctx context.Context) ([]snapshot.PlaylistItem, error) {
	root, err := c.get(ctx, playlistPath, nil)
	if err != nil {
		return nil, err
	}

	var items []snapshot.PlaylistItem
	iter := leafPath.Iter(root)
	for iter.Next() {
		n := iter.Node()
		seconds := toNumber(text(leafDurationPath, n))
		if seconds < 0 {
			seconds = 0
		}
		items = append(items, snapshot.PlaylistItem{
			ID:       text(leafIDPath, n),
			Name:     text(leafNamePath, n),
			URI:      text(leafURIPath, n),
			Duration: time.Duration(seconds) * time.Second,
			Current:  leafCurrentPath.Exists(n),
		})
	}
	return items, nil
}
