// Package gateway serves the bot over HTTP: a WebSocket "web" chat
// channel speaking a small req/res/event frame protocol, a health probe,
// Prometheus metrics and a bearer-protected reminder admin API.
package gateway

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"maps"
	"net"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/soyeahso/validade/internal/channel"
	"github.com/soyeahso/validade/internal/config"
	"github.com/soyeahso/validade/internal/domain"
	"github.com/soyeahso/validade/internal/logging"
	"github.com/soyeahso/validade/internal/metrics"
)

const (
	wsBufferSize  = 4096
	shutdownGrace = 10 * time.Second
)

// Reminders is the reminder administration the gateway exposes.
type Reminders interface {
	List(ctx context.Context, conversationID string) ([]domain.Reminder, error)
	Delete(ctx context.Context, id string) error
	Armed(id string) (time.Time, bool)
}

// Server is the gateway HTTP + WebSocket server. It is also the "web"
// domain.Channel.
type Server struct {
	cfg      config.GatewayConfig
	auth     ResolvedAuth
	log      *logging.Logger
	clients  *ClientRegistry
	handlers map[string]RequestHandler
	eventSeq atomic.Int64

	reminders   Reminders
	channels    *channel.Registry
	metrics     *metrics.Metrics
	metricsPath string

	mu        sync.RWMutex
	onMessage func(domain.InboundMessage)
	running   bool

	since    time.Time
	srv      *http.Server
	upgrader websocket.Upgrader
	limiter  *authRateLimiter
}

// ServerOption customises New.
type ServerOption func(*Server)

// WithReminders enables the reminder RPC methods and admin API.
func WithReminders(r Reminders) ServerOption {
	return func(s *Server) { s.reminders = r }
}

// WithChannels sets the channel registry for status reporting.
func WithChannels(ch *channel.Registry) ServerOption {
	return func(s *Server) { s.channels = ch }
}

// WithMetrics serves m's registry at path.
func WithMetrics(m *metrics.Metrics, path string) ServerOption {
	return func(s *Server) {
		s.metrics = m
		s.metricsPath = path
	}
}

// New wires the RPC table. Nothing listens until Start or Serve.
func New(cfg config.GatewayConfig, log *logging.Logger, opts ...ServerOption) *Server {
	s := &Server{
		cfg:      cfg,
		auth:     ResolveAuth(cfg.Auth),
		log:      log.Sub("gateway"),
		clients:  NewClientRegistry(log.Sub("clients")),
		handlers: make(map[string]RequestHandler),
		limiter:  newAuthRateLimiter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  wsBufferSize,
			WriteBufferSize: wsBufferSize,
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerRPCHandlers()
	return s
}

// originChecker admits requests without an Origin header (non-browser
// clients) and the configured origins.
func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		o := r.Header.Get("Origin")
		return o == "" || isOriginAllowed(o, allowed)
	}
}

// Handle adds or replaces the handler for an RPC method. Call it before
// Serve.
func (s *Server) Handle(method string, h RequestHandler) { s.handlers[method] = h }

// Methods lists the RPC method names, sorted.
func (s *Server) Methods() []string { return slices.Sorted(maps.Keys(s.handlers)) }

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestIDHeader)
	r.Use(middleware.Recoverer)
	r.Use(loggingMiddleware(s.log))
	r.Use(corsMiddleware(s.cfg.AllowedOrigins))

	r.Get("/health", s.handleHealth)
	r.Get("/ws", s.handleWebSocket)
	if s.metrics != nil {
		r.Method(http.MethodGet, s.metricsPath, s.metrics.Handler())
	}
	r.Route("/api", func(r chi.Router) {
		r.Use(s.requireBearer)
		r.Get("/reminders", s.handleListReminders)
		r.Delete("/reminders/{id}", s.handleDeleteReminder)
		r.Get("/channels", s.handleChannels)
	})
	r.NotFound(handleNotFound)
	return r
}

// resolveBindAddr maps the bind mode onto a listen address. Anything
// but lan or custom stays on loopback.
func resolveBindAddr(cfg config.GatewayConfig) string {
	host := "127.0.0.1"
	switch cfg.Bind {
	case "lan":
		host = "0.0.0.0"
	case "custom":
		host = cmp.Or(cfg.CustomBindHost, "0.0.0.0")
	}
	return net.JoinHostPort(host, strconv.Itoa(cfg.Port))
}

// Start listens for HTTP and WebSocket connections. It blocks until ctx
// is cancelled, Stop is called, or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	addr := resolveBindAddr(s.cfg)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("gateway listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the gateway on ln.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	s.mu.Lock()
	s.srv = srv
	s.running = true
	s.since = time.Now()
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	if s.cfg.Bind != "loopback" && s.auth.Mode == "none" {
		s.log.Warn().Msg("gateway reachable off-host without authentication")
	}
	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("bind", s.cfg.Bind).
		Str("auth", s.auth.Mode).
		Int("methods", len(s.handlers)).
		Msg("listening")

	stop := context.AfterFunc(ctx, func() {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
		defer cancel()
		_ = s.Stop(sctx)
	})
	defer stop()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop closes every client and shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.RLock()
	srv := s.srv
	s.mu.RUnlock()
	if srv == nil {
		return nil
	}
	s.log.Info().Int("clients", s.clients.Count()).Msg("shutting down")
	s.clients.CloseAll()
	return srv.Shutdown(ctx)
}
