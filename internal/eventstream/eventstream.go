// Package eventstream listens to Nomad's event stream and fires a wake-up
// signal whenever new events arrive, letting the reconciler react ahead of
// its fixed timer.
package eventstream

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jmgilman/driftwatch/internal/slogger"
)

// ErrUnexpectedStatus is returned when the stream endpoint answers with a
// non-2xx status.
var ErrUnexpectedStatus = errors.New("unexpected event stream status")

// reconnectDelay is the pause before re-establishing a dropped stream.
const reconnectDelay = 10 * time.Second

// maxFrameSize bounds a single event frame.
const maxFrameSize = 1 << 20

// eventBatch is one frame of the stream: a batch of events sharing an
// index. Heartbeat frames carry neither.
type eventBatch struct {
	Events []Event `json:"Events"`
	Index  uint64  `json:"Index"`
}

// Event is a single cluster event. The payload is kept raw; the listener
// only cares that something happened.
type Event struct {
	Topic     string          `json:"Topic"`
	Type      string          `json:"Type"`
	Key       string          `json:"Key"`
	Namespace string          `json:"Namespace"`
	Index     uint64          `json:"Index"`
	Payload   json.RawMessage `json:"Payload"`
}

// ListenerConfig configures the event-stream listener.
type ListenerConfig struct {
	// Address is the base URL of the Nomad API.
	Address string

	// HTTPClient is the client used for the streaming request. Defaults to
	// a client without a timeout; the long poll is bounded by the context.
	HTTPClient *http.Client
}

// Listener long-polls the event stream and signals waiters on progress.
type Listener struct {
	http    *http.Client
	address string
	index   uint64
	notify  chan struct{}
}

// NewListener creates a Listener for the given Nomad address.
func NewListener(cfg ListenerConfig) *Listener {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Listener{
		http:    httpClient,
		address: strings.TrimSuffix(cfg.Address, "/"),
		notify:  make(chan struct{}, 1),
	}
}

// Notify returns the wake-up channel. It receives (without blocking the
// listener) each time a frame with a higher index than any seen before
// arrives.
func (l *Listener) Notify() <-chan struct{} {
	return l.notify
}

// Run streams events until the context is cancelled, reconnecting after
// transport failures. The last observed index is carried across
// reconnects so no progress is re-announced.
func (l *Listener) Run(ctx context.Context) error {
	log := slogger.L(ctx)

	for {
		if err := l.stream(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error("event stream disconnected", "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectDelay):
		}
	}
}

// stream holds one long-poll connection open, reassembling frames that
// arrive split across reads. Returns nil when the server closes the
// connection cleanly.
func (l *Listener) stream(ctx context.Context) error {
	target := fmt.Sprintf("%s/v1/event/stream?index=%d", l.address, l.index)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("build stream request: %w", err)
	}

	resp, err := l.http.Do(req)
	if err != nil {
		return fmt.Errorf("open event stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	log := slogger.L(ctx)
	log.Debug("event stream connected", "index", l.index)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameSize)

	var pending []byte
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) <= 2 {
			// Heartbeat frames keep the connection alive.
			continue
		}

		pending = append(pending, line...)

		var batch eventBatch
		if err := json.Unmarshal(pending, &batch); err != nil {
			// Partial frame; keep accumulating.
			continue
		}
		pending = pending[:0]

		if batch.Index > l.index {
			l.index = batch.Index
			log.Debug("event stream progressed", "index", batch.Index, "events", len(batch.Events))

			select {
			case l.notify <- struct{}{}:
			default:
			}
		}
	}
	return scanner.Err()
}
