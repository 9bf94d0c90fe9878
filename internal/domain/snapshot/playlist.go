package snapshot

import "time"

// PlaylistItem represents a playable leaf of the player's playlist.
type PlaylistItem struct {
	ID       string
	Name     string
	URI      string
	Duration time.Duration
	Current  bool
}

// BrowseEntry represents a file system entry reported by the player.
type BrowseEntry struct {
	Name string
	Path string
	Type string // "dir" or "file"
}

// IsDir returns true if the entry is a directory.
func (e BrowseEntry) IsDir() bool {
	return e.Type == "dir"
}
