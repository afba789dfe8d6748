package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	signbroker "github.com/vaultsandbox/signbroker-go"
	"github.com/vaultsandbox/signbroker-go/internal/wire"
)

// streamEvents serves queue changes as server-sent events.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, r, http.StatusInternalServerError, "Internal Server Error", "streaming unsupported")
		return
	}

	ctx := r.Context()
	events := s.auth.Watch(ctx)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case ev := <-events:
			data, err := json.Marshal(toWireEvent(ev))
			if err != nil {
				s.logger.ErrorContext(ctx, "encode event", "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func toWireEvent(ev signbroker.Event) wire.Event {
	sum := summarize(ev.Request)
	return wire.Event{
		Type:    string(ev.Type),
		Request: &sum,
		Outcome: string(ev.Outcome),
		Reason:  ev.Reason,
		Pending: ev.Pending,
	}
}
