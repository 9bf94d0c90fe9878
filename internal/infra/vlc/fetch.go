package vlc

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/osa030/vlcpanel/internal/domain/snapshot"
)

// ErrUnknownQueue is returned when fetching an unsupported queue.
var ErrUnknownQueue = errors.New("unknown queue")

// FetchError reports a failed poll: network failure, timeout, HTTP error or
// unparsable response. It is recoverable by retrying.
type FetchError struct {
	Queue snapshot.Queue
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s snapshot: %v", e.Queue, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Fetch performs one request to the queue's status endpoint.
// It never retries; errors are returned as *FetchError.
func (c *Client) Fetch(ctx context.Context, queue snapshot.Queue) (snapshot.Snapshot, error) {
	var (
		s   snapshot.Snapshot
		err error
	)
	switch queue {
	case snapshot.QueueMain:
		s, err = c.FetchStatus(ctx)
	case snapshot.QueueStream:
		s, err = c.FetchVLM(ctx)
	default:
		err = errors.Wrapf(ErrUnknownQueue, "%q", queue)
	}
	if err != nil {
		return snapshot.Snapshot{}, &FetchError{Queue: queue, Err: err}
	}
	return s, nil
}
