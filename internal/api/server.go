// Package api provides the HTTP REST API and WebSocket server for Hearth Core.
//
// It exposes config entries, the device and entity registries, the audit
// trail, and real-time registry change events to local admin tooling.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openhearth/hearth-core/internal/audit"
	"github.com/openhearth/hearth-core/internal/bridges/hue"
	"github.com/openhearth/hearth-core/internal/configentry"
	"github.com/openhearth/hearth-core/internal/infrastructure/config"
	"github.com/openhearth/hearth-core/internal/infrastructure/logging"
	"github.com/openhearth/hearth-core/internal/registry"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Logger   *logging.Logger
	Entries  *configentry.Store
	Devices  *registry.DeviceRegistry
	Entities *registry.EntityRegistry
	Audit    audit.Repository
	Hue      *hue.Integration // optional: enables POST /config-entries/{id}/migrate
	Version  string
}

// Server is the HTTP API server for Hearth Core.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg      config.APIConfig
	wsCfg    config.WebSocketConfig
	logger   *logging.Logger
	entries  *configentry.Store
	devices  *registry.DeviceRegistry
	entities *registry.EntityRegistry
	auditor  audit.Repository
	hue      *hue.Integration
	version  string
	server   *http.Server
	hub      *Hub
	cancel   context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Entries == nil {
		return nil, fmt.Errorf("config entry store is required")
	}
	if deps.Devices == nil || deps.Entities == nil {
		return nil, fmt.Errorf("device and entity registries are required")
	}

	return &Server{
		cfg:      deps.Config,
		wsCfg:    deps.WS,
		logger:   deps.Logger,
		entries:  deps.Entries,
		devices:  deps.Devices,
		entities: deps.Entities,
		auditor:  deps.Audit,
		hue:      deps.Hue,
		version:  deps.Version,
	}, nil
}

// Hub returns the WebSocket hub. Nil until Start() has run.
// Callers wire registry event hooks to Hub.Broadcast for live updates.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the WebSocket hub, and launches the HTTP
// listener in a background goroutine. The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.hub = NewHub(s.wsCfg, s.logger)
	go s.hub.Run(srvCtx)

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
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

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
