package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/gray-logic-scheduler/internal/automation"
	"github.com/nerrad567/gray-logic-scheduler/internal/command"
	"github.com/nerrad567/gray-logic-scheduler/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-scheduler/internal/infrastructure/logging"
)

// gracefulShutdownTimeout bounds Close.
const gracefulShutdownTimeout = 10 * time.Second

// Engine is the subset of *automation.Engine the handlers call.
type Engine interface {
	SubmitNow(ctx context.Context, cmd command.Command) command.Result
	SubmitLaterString(ctx context.Context, cmd command.Command, due string) (int64, error)
	ListDevices(ctx context.Context) map[string]automation.DeviceView
	ListPending(ctx context.Context) ([]automation.PendingView, error)
	Cancel(ctx context.Context, id int64) error
}

// HealthChecker is implemented by every infrastructure client.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config config.APIConfig
	WS     config.WebSocketConfig
	Logger *logging.Logger
	Engine Engine

	// Hub is the event hub fed by the dispatcher. When nil the server
	// creates and runs its own.
	Hub *Hub

	// Audit backs GET /audit. Optional.
	Audit AuditLister

	// Health maps a component name to its checker, e.g. "database".
	Health map[string]HealthChecker

	// Gatherer backs /metrics. Nil means prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer

	Version string
}

// Server serves the scheduler's HTTP API and WebSocket feed.
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	logger    *logging.Logger
	engine    Engine
	audit     AuditLister
	health    map[string]HealthChecker
	gatherer  prometheus.Gatherer
	version   string
	startTime time.Time

	server   *http.Server
	listener net.Listener
	hub      *Hub
	cancel   context.CancelFunc
}

// New validates deps. Nothing listens until Start.
func New(deps Deps) (*Server, error) {
	switch {
	case deps.Logger == nil:
		return nil, errors.New("api: logger is required")
	case deps.Engine == nil:
		return nil, errors.New("api: engine is required")
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		logger:    deps.Logger,
		engine:    deps.Engine,
		audit:     deps.Audit,
		health:    deps.Health,
		gatherer:  deps.Gatherer,
		version:   deps.Version,
		startTime: time.Now(),
		hub:       deps.Hub,
	}
	if s.gatherer == nil {
		s.gatherer = prometheus.DefaultGatherer
	}
	return s, nil
}

// Hub returns the WebSocket hub. It is nil before Start unless injected.
func (s *Server) Hub() *Hub { return s.hub }

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Start binds the listen address and serves in the background. Bind errors
// are returned; later serve errors are logged.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.listener = ln

	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
		go s.hub.Run(srvCtx)
	}

	read := time.Duration(s.cfg.Timeouts.Read) * time.Second
	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       read,
		ReadHeaderTimeout: read,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	s.logger.Info("API server listening", "address", ln.Addr().String())
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server stopped", "error", err)
		}
	}()
	return nil
}

// Close drains in-flight requests for up to gracefulShutdownTimeout.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck fails until Start has bound the listener.
func (s *Server) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("api health check: %w", err)
	}
	if s.server == nil {
		return errors.New("api: server not started")
	}
	return nil
}
