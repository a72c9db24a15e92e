package server

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tsyne-dev/tsyne-host/internal/app"
	"github.com/tsyne-dev/tsyne-host/internal/config"
	"github.com/tsyne-dev/tsyne-host/internal/executor"
	"github.com/tsyne-dev/tsyne-host/internal/fetch"
	"github.com/tsyne-dev/tsyne-host/internal/http"
	"github.com/tsyne-dev/tsyne-host/internal/logging"
	"github.com/tsyne-dev/tsyne-host/internal/middleware"
	"github.com/tsyne-dev/tsyne-host/internal/modules"
	"github.com/tsyne-dev/tsyne-host/internal/monitoring"
	"github.com/tsyne-dev/tsyne-host/internal/registry"
	"github.com/tsyne-dev/tsyne-host/internal/sandbox"
	"github.com/tsyne-dev/tsyne-host/internal/tracing"
	"github.com/tsyne-dev/tsyne-host/internal/ws"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router  *gin.Engine
	apps    *app.Manager
	store   *registry.Store
	tokens  *sandbox.Registry
	pool    *executor.Pool
	broker  *ws.Broker
	tracer  *tracing.Tracer
	logger  *logging.Logger
	config  *config.Config
	metrics *monitoring.Metrics
}

// NewServer creates a new server instance. It registers collectors on
// the default prometheus registry, so build at most one per process.
func NewServer(cfg *config.Config, version string) (*Server, error) {
	// Initialize logger
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		OutputPaths: []string{"stdout"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	logger.Info("Initializing tsyne host",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("version", version),
	)

	// Initialize metrics first (needed by other components)
	metrics := monitoring.NewMetrics()
	logger.Info("Performance monitoring initialized")

	tracer := tracing.New("tsyne-host", logger.Logger)
	logger.Info("Request tracing initialized")

	// Sandbox plumbing
	tokens := sandbox.NewRegistry()

	execConfig := executor.DefaultConfig()
	execConfig.Timeout = cfg.Sandbox.ExecTimeout()
	execConfig.MaxCallStack = cfg.Sandbox.MaxCallStack
	exec := executor.New(execConfig)
	pool := executor.NewPool(exec, cfg.Sandbox.PoolSize, cfg.Sandbox.AcquireTimeout())
	logger.Info("Executor pool ready",
		zap.Int("size", cfg.Sandbox.PoolSize),
		zap.Duration("timeout", cfg.Sandbox.ExecTimeout()),
	)

	// Host modules served to whitelisted apps
	mods := modules.Builtin(version)

	// Package store
	store, err := registry.NewStore(cfg.Registry.StoreDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open package store: %w", err)
	}
	if loaded, err := store.LoadAll(); err != nil {
		logger.Warn("Package scan failed", zap.Error(err))
	} else if loaded > 0 {
		logger.Info("Loaded installed packages", zap.Int("count", loaded))
	}

	// Seed prebuilt apps
	logger.Info("Loading prebuilt apps...")
	seeder := registry.NewSeeder(store, cfg.Registry.AppsDir)
	if err := seeder.Seed(); err != nil {
		logger.Warn("Failed to seed prebuilt apps", zap.Error(err))
	}
	if cfg.Registry.SeedDefaults {
		if err := seeder.SeedDefaults(); err != nil {
			logger.Warn("Failed to seed default apps", zap.Error(err))
		}
	}
	metrics.SetPackagesInstalled(store.Len())

	// Remote installs (optional)
	var fetcher *fetch.Client
	if cfg.Fetch.Enabled {
		fetcher = fetch.NewClient(cfg.Fetch.MaxBytes)
		logger.Info("Remote install enabled")
	}

	// Event stream
	broker := ws.NewBroker()

	// Instance manager
	apps := app.NewManager(tokens, pool, mods).
		WithMetrics(metrics).
		WithPublisher(broker).
		WithTimeoutCeiling(cfg.Sandbox.MaxExecTimeout())

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(tracing.Middleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	// Create handlers
	handlers := http.NewHandlers(apps, store, tokens, fetcher, version).WithMetrics(metrics)
	wsHandler := ws.NewHandler(broker).WithMetrics(metrics)

	// Register routes
	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)

	// Sandbox tooling
	router.POST("/sandbox/build", handlers.BuildSandbox)
	router.POST("/sandbox/transform", handlers.TransformSandbox)
	router.POST("/sandbox/runtime", handlers.RuntimeSandbox)
	router.POST("/sandbox/audit", handlers.AuditSandbox)
	router.POST("/sandbox/token", handlers.TokenSandbox)

	// Instance management
	router.POST("/apps", handlers.LaunchApp)
	router.GET("/apps", handlers.ListApps)
	router.GET("/apps/:id", handlers.GetApp)
	router.DELETE("/apps/:id", handlers.CloseApp)

	// Registry endpoints
	router.POST("/registry/install", handlers.InstallApp)
	router.GET("/registry/apps", handlers.ListRegistryApps)
	router.GET("/registry/apps/:id", handlers.GetRegistryApp)
	router.POST("/registry/apps/:id/launch", handlers.LaunchRegistryApp)
	router.DELETE("/registry/apps/:id", handlers.DeleteRegistryApp)

	// WebSocket
	router.GET("/stream", wsHandler.HandleConnection)

	// Metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	logger.Info("Server initialized successfully")

	return &Server{
		router:  router,
		apps:    apps,
		store:   store,
		tokens:  tokens,
		pool:    pool,
		broker:  broker,
		tracer:  tracer,
		logger:  logger,
		config:  cfg,
		metrics: metrics,
	}, nil
}

// Run starts the HTTP server
func (s *Server) Run() error {
	addr := s.config.Server.Addr()
	s.logger.Info("Starting HTTP server", zap.String("addr", addr))
	return s.router.Run(addr)
}

// Close gracefully shuts down the server
func (s *Server) Close() error {
	s.logger.Info("Shutting down server...")

	s.broker.Close()
	if err := s.pool.Close(); err != nil {
		s.logger.Error("Failed to close executor pool", zap.Error(err))
	}
	s.store.Close()
	s.tracer.Close()

	// Sync logger before exit
	s.logger.Sync()

	return nil
}
