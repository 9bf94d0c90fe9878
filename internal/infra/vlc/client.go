// Package vlc provides a client for the media player's HTTP control interface.
package vlc

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"gopkg.in/xmlpath.v2"
)

// Request paths of the player's HTTP interface.
const (
	statusPath    = "requests/status.xml"
	vlmPath       = "requests/vlm.xml"
	vlmCmdPath    = "requests/vlm_cmd.xml"
	equalizerPath = "requests/equalizer.xml"
	playlistPath  = "requests/playlist.xml"
	browsePath    = "requests/browse.xml"
)

// ErrUnexpectedStatus is returned when the player answers with a non-2xx status.
var ErrUnexpectedStatus = errors.New("unexpected HTTP status")

// Config represents player client configuration.
type Config struct {
	BaseURL  string        // e.g. http://127.0.0.1:8080/
	Password string        // HTTP interface password (empty user name)
	Timeout  time.Duration // Per-request timeout
}

// Client is a player HTTP interface client.
type Client struct {
	baseURL    string
	password   string
	httpClient *http.Client
}

// New creates a new player client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("player base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, errors.Wrap(err, "invalid player base URL")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	baseURL := cfg.BaseURL
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	return &Client{
		baseURL:    baseURL,
		password:   cfg.Password,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ArtworkURL returns the cache-busted artwork URL for a reload token.
func (c *Client) ArtworkURL(token string) string {
	return c.baseURL + "art?" + token
}

// get performs a GET request and parses the XML response.
func (c *Client) get(ctx context.Context, path string, params url.Values) (*xmlpath.Node, error) {
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	if c.password != "" {
		req.SetBasicAuth("", c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Wrapf(ErrUnexpectedStatus, "%s: %d", path, resp.StatusCode)
	}

	root, err := xmlpath.Parse(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse response")
	}

	zlog.Debug().Msgf("vlc: GET %s ok", path)
	return root, nil
}
