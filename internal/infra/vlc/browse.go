package vlc

import (
	"context"
	"net/url"
	"path"
	"strings"

	"github.com/samber/lo"
	"gopkg.in/xmlpath.v2"

	"github.com/osa030/vlcpanel/internal/domain/snapshot"
)

var (
	elementPath     = xmlpath.MustCompile("//element")
	elementNamePath = xmlpath.MustCompile("@name")
	elementPathPath = xmlpath.MustCompile("@path")
	elementTypePath = xmlpath.MustCompile("@type")
)

// Browse lists a directory through requests/browse.xml. An empty dir means home.
// When extensions is non-empty, files are kept only if their extension is listed.
func (c *Client) Browse(ctx context.Context, dir string, extensions []string) ([]snapshot.BrowseEntry, error) {
	if dir == "" {
		dir = "~"
	}

	params := url.Values{}
	params.Set("dir", dir)

	root, err := c.get(ctx, browsePath, params)
	if err != nil {
		return nil, err
	}

	var entries []snapshot.BrowseEntry
	iter := elementPath.Iter(root)
	for iter.Next() {
		n := iter.Node()
		entries = append(entries, snapshot.BrowseEntry{
			Name: text(elementNamePath, n),
			Path: text(elementPathPath, n),
			Type: text(elementTypePath, n),
		})
	}

	if len(extensions) == 0 {
		return entries, nil
	}
	allowed := lo.Map(extensions, func(e string, _ int) string {
		return strings.ToLower(strings.TrimPrefix(e, "."))
	})
	return lo.Filter(entries, func(e snapshot.BrowseEntry, _ int) bool {
		if e.IsDir() {
			return true
		}
		ext := strings.ToLower(strings.TrimPrefix(path.Ext(e.Name), "."))
		return lo.Contains(allowed, ext)
	}), nil
}
