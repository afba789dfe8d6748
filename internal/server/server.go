// Package server exposes an Authority over HTTP: a WebSocket transport for
// untrusted callers and a token-protected review API for the reviewer.
package server

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	signbroker "github.com/vaultsandbox/signbroker-go"
)

// Server routes HTTP requests to an Authority.
type Server struct {
	auth        *signbroker.Authority
	review      *signbroker.Review
	logger      *slog.Logger
	reviewToken string
	origins     []string
	heartbeat   time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithReviewToken sets the bearer token required by the review API.
func WithReviewToken(token string) Option {
	return func(s *Server) {
		s.reviewToken = token
	}
}

// WithAllowedOrigins sets the origin patterns accepted on the WebSocket
// transport, in addition to same-host requests.
func WithAllowedOrigins(patterns []string) Option {
	return func(s *Server) {
		s.origins = patterns
	}
}

// WithHeartbeat sets the interval of keep-alive comments on the event stream.
func WithHeartbeat(d time.Duration) Option {
	return func(s *Server) {
		s.heartbeat = d
	}
}

// New returns a Server for auth. The server keeps one review cursor shared
// by all review clients; call Close to release it.
func New(auth *signbroker.Authority, opts ...Option) *Server {
	s := &Server{
		auth:      auth,
		heartbeat: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	s.logger = s.logger.With("component", "server")
	s.review = signbroker.NewReview(auth)
	return s
}

// Close releases the review cursor.
func (s *Server) Close() {
	s.review.Close()
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "pending": s.auth.Len()})
	})
	r.Get("/v1/transport", s.handleTransport)

	r.Group(func(r chi.Router) {
		r.Use(s.requireToken)
		r.Get("/v1/pending", s.listPending)
		r.Get("/v1/pending/{id}", s.getPending)
		r.Post("/v1/pending/{id}/approve", s.approve)
		r.Post("/v1/pending/{id}/reject", s.reject)
		r.Get("/v1/review", s.currentReview)
		r.Post("/v1/review/navigate", s.navigate)
		r.Get("/v1/events", s.streamEvents)
	})
	return r
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || s.reviewToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.reviewToken)) != 1 {
			writeProblem(w, r, http.StatusUnauthorized, "review token required", "")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.DebugContext(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
