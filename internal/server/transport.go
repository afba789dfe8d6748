package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	signbroker "github.com/vaultsandbox/signbroker-go"
	"github.com/vaultsandbox/signbroker-go/internal/wire"
)

const (
	wsReadLimit    = 4 << 20
	wsWriteTimeout = 5 * time.Second
)

// callerConn is one caller's transport connection.
type callerConn struct {
	conn   *websocket.Conn
	origin string

	writeMu sync.Mutex

	mu       sync.Mutex
	inflight map[uint64]struct{}
}

// handleTransport accepts a caller connection. Every message is submitted to
// the Authority and answered once the request resolves. Closing the
// connection abandons the answers but leaves the requests queued.
func (s *Server) handleTransport(w http.ResponseWriter, r *http.Request) {
	opts := &websocket.AcceptOptions{}
	if len(s.origins) > 0 {
		opts.OriginPatterns = s.origins
	}
	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		s.logger.WarnContext(r.Context(), "websocket accept failed", "error", err)
		return
	}
	conn.SetReadLimit(wsReadLimit)

	origin := r.Header.Get("Origin")
	if origin == "" {
		origin = "ws://" + r.RemoteAddr
	}
	cc := &callerConn{conn: conn, origin: origin, inflight: make(map[uint64]struct{})}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	s.logger.InfoContext(ctx, "caller connected", "origin", origin)
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		var msg wire.Message
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && !errors.Is(err, context.Canceled) {
				s.logger.InfoContext(ctx, "caller disconnected", "origin", origin, "error", err)
			}
			cancel()
			_ = conn.Close(websocket.StatusNormalClosure, "closed")
			return
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.serveCall(ctx, cc, msg)
		}()
	}
}

func (s *Server) serveCall(ctx context.Context, cc *callerConn, msg wire.Message) {
	if !cc.claim(msg.ID) {
		cc.write(ctx, wire.Response{ID: msg.ID, Error: wire.NewError(
			errors.Join(signbroker.ErrInvalidPayload, errors.New("duplicate in-flight id")))})
		return
	}
	defer cc.release(msg.ID)

	payload, err := signbroker.DecodePayload(signbroker.Kind(msg.Kind), msg.Payload)
	if err != nil {
		cc.write(ctx, wire.Response{ID: msg.ID, Error: wire.NewError(err)})
		return
	}

	pending, err := s.auth.Submit(ctx, cc.origin, payload)
	if err != nil {
		cc.write(ctx, wire.Response{ID: msg.ID, Error: wire.NewError(err)})
		return
	}

	result, err := pending.Wait(ctx)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		cc.write(ctx, wire.Response{ID: msg.ID, Error: wire.NewError(err)})
		return
	}

	raw, err := json.Marshal(result)
	if err != nil {
		cc.write(ctx, wire.Response{ID: msg.ID, Error: wire.NewError(err)})
		return
	}
	cc.write(ctx, wire.Response{ID: msg.ID, Result: raw})
}

func (cc *callerConn) claim(id uint64) bool {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	if _, dup := cc.inflight[id]; dup {
		return false
	}
	cc.inflight[id] = struct{}{}
	return true
}

func (cc *callerConn) release(id uint64) {
	cc.mu.Lock()
	delete(cc.inflight, id)
	cc.mu.Unlock()
}

func (cc *callerConn) write(ctx context.Context, resp wire.Response) {
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()

	cc.writeMu.Lock()
	defer cc.writeMu.Unlock()
	_ = wsjson.Write(ctx, cc.conn, resp)
}
