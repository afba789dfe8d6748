package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	signbroker "github.com/vaultsandbox/signbroker-go"
	"github.com/vaultsandbox/signbroker-go/internal/brokererr"
	"github.com/vaultsandbox/signbroker-go/internal/wire"
)

// statusFor maps the broker error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, signbroker.ErrStaleRequest):
		return http.StatusConflict
	case errors.Is(err, signbroker.ErrWrongSecret):
		return http.StatusForbidden
	case errors.Is(err, signbroker.ErrInvalidAddress):
		return http.StatusUnprocessableEntity
	case errors.Is(err, signbroker.ErrInvalidPayload), errors.Is(err, signbroker.ErrUnknownKind):
		return http.StatusBadRequest
	case errors.Is(err, signbroker.ErrAuthorityClosed), errors.Is(err, signbroker.ErrQueueFull):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	detail := err.Error()
	if status == http.StatusInternalServerError {
		detail = "internal error"
	}
	writeProblem(w, r, status, http.StatusText(status), detail, brokererr.CodeOf(err))
}

func writeProblem(w http.ResponseWriter, r *http.Request, status int, title, detail string, code ...brokererr.Code) {
	p := &wire.Problem{
		Type:   "about:blank",
		Title:  title,
		Status: status,
		Detail: detail,
	}
	if len(code) > 0 {
		p.Code = code[0]
	}
	if id := middleware.GetReqID(r.Context()); id != "" {
		w.Header().Set("X-Request-ID", id)
	}
	w.Header().Set("Content-Type", wire.ProblemContentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(p)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func summarize(req signbroker.Request) wire.RequestSummary {
	payload, _ := json.Marshal(req.Payload)
	return wire.RequestSummary{
		ID:        req.ID,
		Origin:    req.Origin,
		Kind:      string(req.Kind),
		Account:   req.Account(),
		CreatedAt: req.CreatedAt,
		Payload:   payload,
	}
}
