package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-onewire/internal/ds18x"
	"github.com/nerrad567/gray-logic-onewire/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-onewire/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-onewire/internal/onewire"
)

// shutdownGrace bounds how long Close waits for in-flight requests.
const shutdownGrace = 10 * time.Second

var (
	// ErrNotStarted is reported by HealthCheck before Start.
	ErrNotStarted = errors.New("api: server not started")

	// errNoLogger rejects a Deps without a logger.
	errNoLogger = errors.New("api: logger is required")
)

// SensorSource is the live sensor registry. Implemented by *ds18x.Registry.
type SensorSource interface {
	Records() []ds18x.Record
	Get(addr onewire.Address) (ds18x.Record, bool)
}

// InventorySource is the persisted seen-device inventory.
// Implemented by *ds18x.Inventory.
type InventorySource interface {
	List(ctx context.Context) ([]ds18x.InventoryEntry, error)
	Lookup(ctx context.Context, addr onewire.Address) (ds18x.InventoryEntry, bool, error)
}

// HealthChecker is a component listed under /health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps wires the server to the rest of the bridge. Sensors and Inventory
// may be nil; their endpoints then answer 503.
type Deps struct {
	Config    config.APIConfig
	WS        config.WebSocketConfig
	Logger    *logging.Logger
	Sensors   SensorSource
	Inventory InventorySource
	Checks    map[string]HealthChecker
	// Hub is shared with the reading observers. Start creates one if nil.
	Hub     *Hub
	Version string
}

// Server is the read-only HTTP API and WebSocket stream.
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	logger    *logging.Logger
	sensors   SensorSource
	inventory InventorySource
	checks    map[string]HealthChecker
	version   string
	hub       *Hub

	server   *http.Server
	listener net.Listener
	stop     context.CancelFunc

	mu       sync.Mutex
	serveErr error
}

// New validates deps and returns an unstarted server.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, errNoLogger
	}
	return &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		logger:    deps.Logger,
		sensors:   deps.Sensors,
		inventory: deps.Inventory,
		checks:    deps.Checks,
		version:   deps.Version,
		hub:       deps.Hub,
	}, nil
}

// Hub returns the WebSocket hub, nil before Start unless injected.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Addr returns the bound address, or "" before Start. With port 0 in the
// config this is where the kernel-chosen port shows up.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// newHTTPServer applies the configured timeouts, given in seconds.
// Hijacked WebSocket connections are not subject to them.
func (s *Server) newHTTPServer() *http.Server {
	t := s.cfg.Timeouts
	return &http.Server{
		Addr:              net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port)),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(t.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(t.Read) * time.Second,
		WriteTimeout:      time.Duration(t.Write) * time.Second,
		IdleTimeout:       time.Duration(t.Idle) * time.Second,
	}
}

// Start binds the listener and serves in the background. Binding happens
// here, so a port clash fails startup instead of surfacing later in a log.
func (s *Server) Start(ctx context.Context) error {
	runCtx, stop := context.WithCancel(ctx)

	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
		go s.hub.Run(runCtx)
	}
	if s.sensors != nil {
		s.hub.SetReplay(s.replayReadings)
	}

	srv := s.newHTTPServer()
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		stop()
		return fmt.Errorf("listening on %s: %w", srv.Addr, err)
	}
	s.server, s.listener, s.stop = srv, ln, stop
	s.logger.Info("API server listening", "address", ln.Addr().String())

	go func() {
		err := srv.Serve(ln)
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return
		}
		s.logger.Error("API server stopped unexpectedly", "error", err)
		s.mu.Lock()
		s.serveErr = err
		s.mu.Unlock()
	}()
	return nil
}

// Close stops accepting requests, ends WebSocket streams and waits for
// in-flight requests. It is a no-op before Start.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	s.stop()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck fails before Start and after the serve loop has died.
func (s *Server) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("api health check: %w", err)
	}
	if s.server == nil {
		return ErrNotStarted
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.serveErr != nil {
		return fmt.Errorf("api: serve loop failed: %w", s.serveErr)
	}
	return nil
}
