package vlc

import (
	"context"
	"net/url"
	"strconv"

	"github.com/osa030/vlcpanel/internal/domain/snapshot"
)

// Equalizer gain bounds in dB.
const (
	MinGain = -20.0
	MaxGain = 20.0
)

// SetEqualizerBand sets one band's gain and returns the updated equalizer state.
func (c *Client) SetEqualizerBand(ctx context.Context, band string, gain float64) (float64, []snapshot.Band, error) {
	if gain < MinGain {
		gain = MinGain
	}
	if gain > MaxGain {
		gain = MaxGain
	}

	params := url.Values{}
	params.Set("command", "equalizer")
	params.Set("val", strconv.FormatFloat(gain, 'f', -1, 64))
	params.Set("band", band)

	root, err := c.get(ctx, equalizerPath, params)
	if err != nil {
		return 0, nil, err
	}

	preamp, bands := parseEqualizer(root)
	return preamp, bands, nil
}
