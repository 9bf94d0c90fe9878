package vlc

import (
	"context"
	"net/url"
	"strconv"

	"gopkg.in/xmlpath.v2"

	"github.com/osa030/vlcpanel/internal/domain/snapshot"
)

// VolumeScale converts between the player's raw volume and a 0-100 slider.
const VolumeScale = 5.12

var (
	statusStatePath         = xmlpath.MustCompile("/root/state")
	statusTimePath          = xmlpath.MustCompile("/root/time")
	statusLengthPath        = xmlpath.MustCompile("/root/length")
	statusVolumePath        = xmlpath.MustCompile("/root/volume")
	statusRatePath          = xmlpath.MustCompile("/root/rate")
	statusAudioDelayPath    = xmlpath.MustCompile("/root/audiodelay")
	statusSubtitleDelayPath = xmlpath.MustCompile("/root/subtitledelay")
	statusRandomPath        = xmlpath.MustCompile("/root/random")
	statusLoopPath          = xmlpath.MustCompile("/root/loop")
	statusRepeatPath        = xmlpath.MustCompile("/root/repeat")
	statusFilenamePath      = xmlpath.MustCompile("//info[@name='filename']")
	statusArtworkPath       = xmlpath.MustCompile("//info[@name='artwork_url']")

	preampPath        = xmlpath.MustCompile("//preamp")
	bandPath          = xmlpath.MustCompile("//band")
	bandIDPath        = xmlpath.MustCompile("@id")
	bandFreqPath      = xmlpath.MustCompile("@freqency") // sic, as emitted by the player
	bandFrequencyPath = xmlpath.MustCompile("@frequency")
)

// FetchStatus reads requests/status.xml into a main queue snapshot.
func (c *Client) FetchStatus(ctx context.Context) (snapshot.Snapshot, error) {
	root, err := c.get(ctx, statusPath, nil)
	if err != nil {
		return snapshot.Snapshot{}, err
	}
	return parseStatus(root), nil
}

// SendStatusCommand issues a command through requests/status.xml.
func (c *Client) SendStatusCommand(ctx context.Context, params url.Values) error {
	_, err := c.get(ctx, statusPath, params)
	return err
}

// parseStatus builds a snapshot from a status document. Missing fields default to zero.
func parseStatus(root *xmlpath.Node) snapshot.Snapshot {
	position, length := snapshot.ClampPosition(number(statusTimePath, root), number(statusLengthPath, root))

	volume := round2(number(statusVolumePath, root) / VolumeScale)
	if volume < 0 {
		volume = 0
	}
	if volume > 100 {
		volume = 100
	}

	preamp, bands := parseEqualizer(root)

	return snapshot.Snapshot{
		Queue:         snapshot.QueueMain,
		State:         snapshot.ParseState(text(statusStatePath, root)),
		Title:         text(statusFilenamePath, root),
		Position:      position,
		Length:        length,
		Volume:        volume,
		Rate:          number(statusRatePath, root),
		AudioDelay:    number(statusAudioDelayPath, root),
		SubtitleDelay: number(statusSubtitleDelayPath, root),
		Random:        flag(statusRandomPath, root),
		Loop:          flag(statusLoopPath, root),
		Repeat:        flag(statusRepeatPath, root),
		Preamp:        preamp,
		Bands:         bands,
		Artwork:       text(statusArtworkPath, root),
	}
}

// parseEqualizer extracts the preamp and bands in document order.
func parseEqualizer(root *xmlpath.Node) (float64, []snapshot.Band) {
	var bands []snapshot.Band
	iter := bandPath.Iter(root)
	for iter.Next() {
		n := iter.Node()
		freq := text(bandFreqPath, n)
		if freq == "" {
			freq = text(bandFrequencyPath, n)
		}
		id := text(bandIDPath, n)
		if id == "" {
			id = strconv.Itoa(len(bands))
		}
		bands = append(bands, snapshot.Band{
			ID:        id,
			Frequency: toNumber(freq),
			Gain:      toNumber(n.String()),
		})
	}
	return number(preampPath, root), bands
}
