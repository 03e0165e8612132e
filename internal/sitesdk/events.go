package sitesdk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/littleweb/sitebox/internal/sitemsg"
)

const (
	eventsBufferSize  = 64
	eventsDialTimeout = 10 * time.Second
	eventsPath        = "/sync/stream"
)

// eventsReconnectDelay is the fixed pause between reconnect attempts.
// Variable so tests can shorten it.
var eventsReconnectDelay = 5 * time.Second

var (
	// ErrEventsNotConnected is returned when the stream is not open
	ErrEventsNotConnected = errors.New("events: not connected")
)

// EventsAPI consumes the server's sync stream: an SSE feed of JSON objects
// in `data:` frames with periodic `:` ping comments. Any traffic, pings
// included, stamps the activity clock the engine's watchdog reads.
type EventsAPI struct {
	baseURL      string
	header       http.Header
	httpClient   *http.Client
	messages     chan *sitemsg.Message
	ctx          context.Context
	cancel       context.CancelFunc
	mu           sync.RWMutex
	connected    bool
	body         io.Closer
	lastActivity atomic.Int64 // unix nanos
	reconnecting atomic.Bool
	reconnected  chan struct{}
}

func newEventsAPI(cfg *Config) *EventsAPI {
	ctx, cancel := context.WithCancel(context.Background())

	header := http.Header{}
	header.Set(HeaderUserAgent, UserAgent)
	header.Set(HeaderAPIKey, cfg.APIKey)
	header.Set(HeaderDeviceID, cfg.DeviceID)
	header.Set("Accept", "text/event-stream")

	return &EventsAPI{
		baseURL: cfg.BaseURL,
		header:  header,
		// no client timeout; the stream is long-lived by design. The
		// header timeout bounds the dial itself.
		httpClient: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: eventsDialTimeout,
			},
		},
		ctx:         ctx,
		cancel:      cancel,
		messages:    make(chan *sitemsg.Message, eventsBufferSize),
		reconnected: make(chan struct{}, 1),
	}
}

// Connect opens the stream and keeps it alive until Close.
func (e *EventsAPI) Connect(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.connected {
		return nil
	}

	body, err := e.dial()
	if err != nil {
		return fmt.Errorf("sdk: events: connect: %w", err)
	}

	e.body = body
	e.connected = true
	e.stampActivity()

	go e.readStream(body)
	return nil
}

// Get returns the channel of parsed stream messages.
func (e *EventsAPI) Get() <-chan *sitemsg.Message {
	return e.messages
}

// Reconnected signals each time the stream has been rebuilt after a drop.
// Events published while the stream was down are lost; consumers poll on
// this signal to recover them.
func (e *EventsAPI) Reconnected() <-chan struct{} {
	return e.reconnected
}

// IsConnected returns the current connection status.
func (e *EventsAPI) IsConnected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.connected
}

// LastActivity returns the time of the last event or ping on the stream.
func (e *EventsAPI) LastActivity() time.Time {
	return time.Unix(0, e.lastActivity.Load())
}

// Close terminates the stream and stops reconnect attempts.
func (e *EventsAPI) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cancel()
	if e.body != nil {
		e.body.Close()
		e.body = nil
	}
	e.connected = false
	slog.Info("events closed")
}

func (e *EventsAPI) dial() (io.ReadCloser, error) {
	streamURL, err := url.JoinPath(e.baseURL, eventsPath)
	if err != nil {
		return nil, fmt.Errorf("join path: %w", err)
	}

	// the request context must outlive the dial: it owns the body stream.
	req, err := http.NewRequestWithContext(e.ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header = e.header.Clone()

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, parseAPIError(resp.StatusCode, body)
	}

	slog.Info("events connected", "url", streamURL)
	return resp.Body, nil
}

// readStream consumes frames until the transport fails, then schedules a
// reconnect. Per-message errors are logged and skipped; only transport
// failure tears the stream down.
func (e *EventsAPI) readStream(body io.ReadCloser) {
	err := scanEventStream(body, func(frame []byte) {
		e.stampActivity()

		var msg sitemsg.Message
		if uerr := jsonUnmarshal(frame, &msg); uerr != nil {
			slog.Warn("events decode", "error", uerr)
			return
		}

		select {
		case e.messages <- &msg:
		default:
			slog.Warn("events buffer full, dropped", "type", msg.Type)
		}
	}, e.stampActivity)

	body.Close()

	e.mu.Lock()
	e.connected = false
	e.body = nil
	e.mu.Unlock()

	select {
	case <-e.ctx.Done():
		return
	default:
	}

	if err != nil && !isExpectedStreamError(err) {
		slog.Warn("events stream", "error", err)
	}
	slog.Info("events disconnected, will reconnect", "delay", eventsReconnectDelay)
	e.startReconnect()
}

// Restart tears the current transport down so the reconnect loop rebuilds
// the stream. Safe when already disconnected; it then dials directly. The
// activity clock is reset so a single outage is not re-flagged on every
// watchdog tick.
func (e *EventsAPI) Restart() {
	e.stampActivity()

	e.mu.Lock()
	body := e.body
	e.mu.Unlock()

	if body != nil {
		// readStream notices the closed transport and reconnects
		body.Close()
		return
	}
	e.startReconnect()
}

// startReconnect runs at most one reconnect loop at a time.
func (e *EventsAPI) startReconnect() {
	if !e.reconnecting.CompareAndSwap(false, true) {
		return
	}
	go e.reconnectLoop()
}

// reconnectLoop retries the connection on a fixed delay until it succeeds
// or the client is closed, then signals the rebuild.
func (e *EventsAPI) reconnectLoop() {
	defer e.reconnecting.Store(false)

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-time.After(eventsReconnectDelay):
		}

		if err := e.Connect(e.ctx); err != nil {
			slog.Warn("events reconnect", "error", err)
			continue
		}

		select {
		case e.reconnected <- struct{}{}:
		default:
		}
		return
	}
}

func (e *EventsAPI) stampActivity() {
	e.lastActivity.Store(time.Now().UnixNano())
}

// isExpectedStreamError returns true for ordinary connection teardown.
func isExpectedStreamError(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, net.ErrClosed)
}
