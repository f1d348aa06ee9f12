// Package http exposes the dialog machine to USSD gateways. The callback
// endpoint speaks the Africa's Talking form protocol: the gateway posts
// the session id, the caller's number and the cumulative choice path, and
// reads back a plain-text screen prefixed with CON (keep the session
// open) or END (hang up).
package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sediba/edubot/internal/domain"
	"github.com/sediba/edubot/internal/ussd"
)

// serviceErrorScreen ends the session when a request cannot be served.
// Gateways render END screens cleanly; an HTTP error would show the
// carrier's generic failure page instead.
const serviceErrorScreen = "Service error. Please try again later."

// Handler is the dialog side of a gateway round trip.
type Handler interface {
	Handle(ctx context.Context, sessionID, origin, path string) (*ussd.Response, error)
}

// Enqueuer schedules the background deliveries a terminal screen produced.
type Enqueuer interface {
	Enqueue(req domain.DeliveryRequest) bool
}

// Server routes gateway callbacks to the dialog machine.
type Server struct {
	machine Handler
	queue   Enqueuer

	serviceCode string
	version     string
	timeout     time.Duration
	debug       bool
	gatherer    prometheus.Gatherer
	logger      *slog.Logger
}

// Option configures the server.
type Option func(*Server)

// WithServiceCode sets the dial code reported by the info endpoint.
func WithServiceCode(code string) Option {
	return func(s *Server) { s.serviceCode = code }
}

// WithVersion sets the build version reported by the info endpoint.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// WithRequestTimeout bounds one callback end to end. Gateways abandon
// slow callbacks, so there is no point serving past their patience.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

// WithDebug relaxes CORS so browser-based gateway simulators can post
// callbacks directly.
func WithDebug(debug bool) Option {
	return func(s *Server) { s.debug = debug }
}

// WithGatherer sets the metrics registry served on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// NewServer wires the machine and the delivery queue behind the gateway
// routes.
func NewServer(machine Handler, queue Enqueuer, opts ...Option) *Server {
	s := &Server{
		machine:     machine,
		queue:       queue,
		serviceCode: "*384*123#",
		version:     "dev",
		timeout:     15 * time.Second,
		gatherer:    prometheus.DefaultGatherer,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the HTTP handler. Every route the service serves hangs
// off here.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.timeout))
	if s.debug {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodGet, http.MethodPost},
		}))
	}

	r.Get("/", s.info)
	r.Get("/health", s.health)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	// Africa's Talking posts to the configured callback URL. Accept the
	// conventional path and the bare root, which their sandbox uses.
	r.Post("/ussd/callback", s.callback)
	r.Post("/", s.callback)

	return r
}

func (s *Server) callback(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.PostFormValue("sessionId"))
	origin := strings.TrimSpace(r.PostFormValue("phoneNumber"))
	path := r.PostFormValue("text")

	if sessionID == "" || origin == "" {
		http.Error(w, "sessionId and phoneNumber are required", http.StatusBadRequest)
		return
	}

	resp, err := s.machine.Handle(r.Context(), sessionID, origin, path)
	if err != nil {
		s.logger.Error("ussd request failed",
			"session_id", sessionID,
			"error", err,
		)
		writeScreen(w, false, serviceErrorScreen)
		return
	}

	for _, d := range resp.Deliveries {
		s.queue.Enqueue(d)
	}
	writeScreen(w, resp.Continue, resp.Text)
}

func (s *Server) info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{
		"app":          "edubot",
		"version":      s.version,
		"service_code": s.serviceCode,
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func writeScreen(w http.ResponseWriter, keepOpen bool, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	prefix := "END "
	if keepOpen {
		prefix = "CON "
	}
	io.WriteString(w, prefix+text)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
