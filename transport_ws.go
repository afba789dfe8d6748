package signbroker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vaultsandbox/signbroker-go/internal/wire"
)

const wsReadLimit = 4 << 20

// WebSocketTransport multiplexes concurrent calls over one WebSocket
// connection to an authority daemon. Responses are correlated by id.
type WebSocketTransport struct {
	conn   *websocket.Conn
	logger *slog.Logger

	writeMu  sync.Mutex
	inflight inflight

	mu      sync.Mutex
	calls   map[uint64]chan wire.Response
	done    chan struct{}
	doneErr error
}

// wsConfig holds configuration for DialWebSocket.
type wsConfig struct {
	httpClient *http.Client
	header     http.Header
	logger     *slog.Logger
}

// WebSocketOption configures DialWebSocket.
type WebSocketOption func(*wsConfig)

// WithWebSocketHeader adds a header to the handshake request.
func WithWebSocketHeader(key, value string) WebSocketOption {
	return func(c *wsConfig) {
		c.header.Add(key, value)
	}
}

// WithWebSocketHTTPClient sets the HTTP client used for the handshake.
func WithWebSocketHTTPClient(client *http.Client) WebSocketOption {
	return func(c *wsConfig) {
		c.httpClient = client
	}
}

// WithWebSocketLogger sets the transport logger.
func WithWebSocketLogger(logger *slog.Logger) WebSocketOption {
	return func(c *wsConfig) {
		c.logger = logger
	}
}

// DialWebSocket connects to an authority's transport endpoint, for example
// ws://localhost:7420/v1/transport.
func DialWebSocket(ctx context.Context, url string, opts ...WebSocketOption) (*WebSocketTransport, error) {
	cfg := &wsConfig{header: http.Header{}}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}

	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPClient: cfg.httpClient,
		HTTPHeader: cfg.header,
	})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	conn.SetReadLimit(wsReadLimit)

	t := &WebSocketTransport{
		conn:   conn,
		logger: cfg.logger.With("component", "transport"),
		calls:  make(map[uint64]chan wire.Response),
		done:   make(chan struct{}),
	}
	go t.readLoop()
	return t, nil
}

// Send implements Transport. Errors raised by the authority are returned as
// *RemoteError values that match the corresponding sentinel.
func (t *WebSocketTransport) Send(ctx context.Context, id uint64, p Payload) (Result, error) {
	kind := p.Kind()

	t.inflight.add(id)
	defer t.inflight.remove(id)

	ch, err := t.register(id)
	if err != nil {
		return nil, &TransportError{Kind: kind, ID: id, Err: err}
	}
	defer t.unregister(id)

	payload, err := json.Marshal(p)
	if err != nil {
		return nil, &TransportError{Kind: kind, ID: id, Err: err}
	}

	t.writeMu.Lock()
	err = wsjson.Write(ctx, t.conn, wire.Message{ID: id, Kind: string(kind), Payload: payload})
	t.writeMu.Unlock()
	if err != nil {
		return nil, &TransportError{Kind: kind, ID: id, Err: err}
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return nil, resp.Error.Err()
		}
		res, err := DecodeResult(kind, resp.Result)
		if err != nil {
			return nil, &TransportError{Kind: kind, ID: id, Err: err}
		}
		return res, nil
	case <-ctx.Done():
		return nil, &TransportError{Kind: kind, ID: id, Err: ctx.Err()}
	case <-t.done:
		return nil, &TransportError{Kind: kind, ID: id, Err: t.err()}
	}
}

// Close closes the connection. Calls still in flight fail with ErrTransportClosed.
func (t *WebSocketTransport) Close() error {
	t.shutdown(ErrTransportClosed)
	return t.conn.Close(websocket.StatusNormalClosure, "")
}

func (t *WebSocketTransport) register(id uint64) (chan wire.Response, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	select {
	case <-t.done:
		return nil, t.doneErr
	default:
	}
	ch := make(chan wire.Response, 1)
	t.calls[id] = ch
	return ch, nil
}

func (t *WebSocketTransport) unregister(id uint64) {
	t.mu.Lock()
	delete(t.calls, id)
	t.mu.Unlock()
}

func (t *WebSocketTransport) readLoop() {
	for {
		var resp wire.Response
		if err := wsjson.Read(context.Background(), t.conn, &resp); err != nil {
			t.shutdown(fmt.Errorf("%w: %v", ErrTransportClosed, err))
			return
		}

		t.mu.Lock()
		ch, ok := t.calls[resp.ID]
		delete(t.calls, resp.ID)
		t.mu.Unlock()

		if !ok {
			t.logger.Warn("response for unknown request", "id", resp.ID)
			continue
		}
		ch <- resp
	}
}

// shutdown records why the transport stopped. Only the first call counts.
func (t *WebSocketTransport) shutdown(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	select {
	case <-t.done:
	default:
		t.doneErr = err
		close(t.done)
	}
}

func (t *WebSocketTransport) err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.doneErr
}
