package server

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/raaihank/pii-sentinel/internal/audit"
	"github.com/raaihank/pii-sentinel/internal/cache"
	"github.com/raaihank/pii-sentinel/internal/config"
	"github.com/raaihank/pii-sentinel/internal/engine"
	"github.com/raaihank/pii-sentinel/internal/logger"
	"github.com/raaihank/pii-sentinel/internal/websocket"
)

// Server exposes the classification engine over HTTP. The audit store and
// result cache are optional; a nil store or cache disables that path.
type Server struct {
	config  *config.Config
	logger  *logger.Logger
	engine  *engine.Engine
	store   *audit.Store
	cache   *cache.ResultCache
	router  *mux.Router
	server  *http.Server
	wsHub   *websocket.Hub
	limiter *rateLimiter
	start   time.Time
	done    chan struct{}

	totalRequests   int64
	totalDetections int64
}

// New creates a new classification server instance
func New(
	cfg *config.Config,
	log *logger.Logger,
	eng *engine.Engine,
	store *audit.Store,
	resultCache *cache.ResultCache,
) (*Server, error) {
	if eng == nil {
		return nil, fmt.Errorf("classification engine is required")
	}

	hubConfig := &websocket.HubConfig{
		BroadcastDetections:  cfg.WebSocket.Events.BroadcastDetections,
		BroadcastBatches:     cfg.WebSocket.Events.BroadcastBatches,
		BroadcastSystem:      cfg.WebSocket.Events.BroadcastSystem,
		BroadcastConnections: cfg.WebSocket.Events.BroadcastConnections,
		Username:             cfg.WebSocket.Username,
		Password:             cfg.WebSocket.Password,
	}
	wsHub := websocket.NewHub(hubConfig, log.WithComponent("websocket").Logger)

	server := &Server{
		config: cfg,
		logger: log.WithComponent("server"),
		engine: eng,
		store:  store,
		cache:  resultCache,
		router: mux.NewRouter(),
		wsHub:  wsHub,
		start:  time.Now(),
		done:   make(chan struct{}),
	}

	if cfg.Server.RateLimit.Enabled {
		server.limiter = newRateLimiter(cfg.Server.RateLimit.RequestsPerMin, cfg.Server.RateLimit.Burst)
	}

	server.setupRoutes()

	server.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return server, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// mux answers method mismatches with 404 unless told otherwise.
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusMethodNotAllowed)
		fmt.Fprint(w, `{"error":"method not allowed"}`)
	})

	// Health check endpoint
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Info endpoint
	s.router.HandleFunc("/info", s.handleInfo).Methods("GET")

	// Stats endpoint
	s.router.HandleFunc("/stats", s.handleStats).Methods("GET")

	// WebSocket endpoint for the event feed
	if s.config.WebSocket.Enabled {
		path := s.config.WebSocket.Path
		if path == "" {
			path = "/ws"
		}
		s.router.HandleFunc(path, s.handleWebSocket).Methods("GET")
	}

	// Classification endpoints
	apiRouter := s.router.PathPrefix("/v1").Subrouter()
	apiRouter.Use(s.loggingMiddleware)
	apiRouter.Use(s.rateLimitMiddleware)
	apiRouter.HandleFunc("/classify", s.handleClassify).Methods("POST")
	apiRouter.HandleFunc("/classify/batch", s.handleClassifyBatch).Methods("POST")
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("Starting classification server",
		zap.Int("port", s.config.Server.Port),
		zap.Strings("enabled_rules", s.engine.GetEnabledRules()),
		zap.Bool("audit_enabled", s.store != nil),
		zap.Bool("cache_enabled", s.cache != nil),
	)

	// Start WebSocket hub in a separate goroutine
	go s.wsHub.Run()
	go s.statusLoop()

	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping classification server")
	close(s.done)
	return s.server.Shutdown(ctx)
}

// statusLoop periodically broadcasts a system status event to the feed
func (s *Server) statusLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			hubStats := s.wsHub.GetStats()
			s.wsHub.BroadcastEvent(websocket.Event{
				Type:      websocket.EventTypeSystemStatus,
				Timestamp: time.Now(),
				Data: websocket.SystemStatusEvent{
					Status:           "healthy",
					Uptime:           time.Since(s.start).String(),
					TotalRequests:    atomic.LoadInt64(&s.totalRequests),
					TotalDetections:  atomic.LoadInt64(&s.totalDetections),
					ActiveRules:      len(s.engine.GetEnabledRules()),
					ConnectedClients: int(hubStats.ActiveConnections),
				},
			})
		}
	}
}

// Router exposes the route tree for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().Format(time.RFC3339))
}

// handleInfo handles info requests
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{
		"name":"pii-sentinel",
		"version":"0.1.0",
		"privacy_enabled":%t,
		"standalone_rules":%d,
		"quasi_identifiers":%d
	}`, s.config.Privacy.Enabled, len(s.engine.GetEnabledRules()), len(s.engine.QuasiIdentifiers()))
}

// handleWebSocket handles WebSocket connections for the event feed
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.wsHub.HandleWebSocket(w, r)
}

// GetWebSocketHub returns the WebSocket hub for broadcasting events
func (s *Server) GetWebSocketHub() *websocket.Hub {
	return s.wsHub
}
