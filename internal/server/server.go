// Package server sets up the HTTP server with all routes
package server

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/partnerhq/partnerhub/internal/auth"
	"github.com/partnerhq/partnerhub/internal/billing"
	"github.com/partnerhq/partnerhub/internal/branding"
	"github.com/partnerhq/partnerhub/internal/commission"
	"github.com/partnerhq/partnerhub/internal/config"
	"github.com/partnerhq/partnerhub/internal/logging"
	"github.com/partnerhq/partnerhub/internal/metrics"
	"github.com/partnerhq/partnerhub/internal/partner"
	"github.com/partnerhq/partnerhub/internal/performance"
	"github.com/partnerhq/partnerhub/internal/ratelimit"
	"github.com/partnerhq/partnerhub/internal/realtime"
	"github.com/partnerhq/partnerhub/internal/reporting"
	"github.com/partnerhq/partnerhub/internal/security"
	"github.com/partnerhq/partnerhub/internal/traces"
	"github.com/partnerhq/partnerhub/internal/validation"
	"github.com/partnerhq/partnerhub/internal/webhooks"
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg            *config.Config
	authMgr        *auth.Manager
	partnerSvc     *partner.Service
	commissionSvc  *commission.Service
	performanceSvc *performance.Service
	brandingSvc    *branding.Service
	reportingSvc   *reporting.Service
	billingSvc     *billing.Service
	dispatcher     *webhooks.Dispatcher
	webhookStore   webhooks.Store
	hub            *realtime.Hub
	rateLimiter    *ratelimit.Limiter
	db             *sql.DB // nil if using in-memory
	router         *gin.Engine
	httpSrv        *http.Server
	logger         *slog.Logger
	shutdownTraces func(context.Context) error
	cancelRunCtx   context.CancelFunc // cancels background goroutines started in Run

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logging.New(cfg.LogLevel, "json"),
	}

	for _, opt := range opts {
		opt(s)
	}

	// Context for initialization
	ctx := context.Background()

	// Storage (Postgres if DATABASE_URL set, otherwise in-memory)
	var (
		partnerStore    partner.Store
		commissionStore commission.Store
		brandingStore   branding.Store
		authStore       auth.Store
		perfSource      performance.Source
	)

	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}

		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		s.db = db
		s.logger.Info("using PostgreSQL storage", "url", maskDSN(cfg.DatabaseURL))

		pStore := partner.NewPostgresStore(db)
		cStore := commission.NewPostgresStore(db)
		bStore := branding.NewPostgresStore(db)
		aStore := auth.NewPostgresStore(db)
		wStore := webhooks.NewPostgresStore(db)

		// In development the stores bootstrap their own tables. Production
		// deployments run cmd/migrate before starting the server.
		if cfg.IsDevelopment() {
			for name, m := range map[string]interface {
				Migrate(context.Context) error
			}{
				"partner":    pStore,
				"commission": cStore,
				"branding":   bStore,
				"auth":       aStore,
				"webhooks":   wStore,
			} {
				if err := m.Migrate(ctx); err != nil {
					s.logger.Warn("failed to migrate store", "store", name, "error", err)
				}
			}
		}

		partnerStore = pStore
		commissionStore = cStore
		brandingStore = bStore
		authStore = aStore
		s.webhookStore = wStore
		perfSource = performance.NewPostgresSource(db)
	} else {
		s.logger.Info("using in-memory storage (data will not persist)")

		partnerStore = partner.NewMemoryStore()
		commissionStore = commission.NewMemoryStore()
		brandingStore = branding.NewMemoryStore()
		authStore = auth.NewMemoryStore()
		s.webhookStore = webhooks.NewMemoryStore()
		perfSource = performance.StoreSource{Partners: partnerStore, Commissions: commissionStore}
	}

	s.authMgr = auth.NewManager(authStore)

	// Outbound webhook dispatcher and WebSocket hub both consume domain
	// events. The fanout below feeds every event to both.
	s.dispatcher = webhooks.NewDispatcher(s.webhookStore)
	s.hub = realtime.NewHub(s.logger)
	events := &eventFanout{sinks: []eventSink{webhooks.NewEmitter(s.dispatcher), s.hub}}

	s.partnerSvc = partner.NewService(partnerStore, events)
	s.commissionSvc = commission.NewService(commissionStore, partnerStore, events)
	s.performanceSvc = performance.NewService(perfSource, events)
	s.brandingSvc = branding.NewService(brandingStore, partnerStore)
	s.reportingSvc = reporting.NewService(partnerStore, commissionStore)
	s.billingSvc = billing.NewService(s.commissionSvc, cfg.StripeWebhookSecret, cfg.BillingTolerance)

	if cfg.AdminSecret == "" {
		s.logger.Warn("ADMIN_SECRET not set, admin routes are disabled")
	}

	// Configure gin
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)

	return s, nil
}

// maskDSN hides password in connection string for logging
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

// -----------------------------------------------------------------------------
// Event fan-out
// -----------------------------------------------------------------------------

// eventSink matches the EventSink interfaces declared by the domain
// packages. Both the webhook emitter and the realtime hub satisfy it.
type eventSink interface {
	Emit(ctx context.Context, event string, payload any)
}

// eventFanout delivers each domain event to every sink.
type eventFanout struct {
	sinks []eventSink
}

func (f *eventFanout) Emit(ctx context.Context, event string, payload any) {
	for _, sink := range f.sinks {
		sink.Emit(ctx, event, payload)
	}
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) setupMiddleware() {
	// Recovery with logging
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	// Security headers
	s.router.Use(security.HeadersMiddleware())

	// CORS (partner dashboards call the API from the browser)
	s.router.Use(security.CORSMiddleware([]string{"*"}))

	// Request size limit (1MB)
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	// Rate limiting
	rlCfg := ratelimit.DefaultConfig()
	if s.cfg.RateLimitRPM > 0 {
		rlCfg.RequestsPerMinute = s.cfg.RateLimitRPM
	}
	s.rateLimiter = ratelimit.New(rlCfg)
	s.router.Use(s.rateLimiter.Middleware())

	// Prometheus metrics
	s.router.Use(metrics.Middleware())

	// Request ID
	s.router.Use(s.requestIDMiddleware())

	// Logging
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for existing request ID (from load balancer, etc.)
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}

		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logger := logging.L(c.Request.Context())

		// Log level based on status code
		switch {
		case status >= 500:
			logger.Error("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		case status >= 400:
			logger.Warn("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		default:
			logger.Info("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}
	}
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	// Health & metrics endpoints
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	// WebSocket for real-time event streaming
	s.router.GET("/ws", func(c *gin.Context) {
		s.hub.HandleWebSocket(c.Writer, c.Request)
	})

	// API info
	s.router.GET("/api", s.infoHandler)

	partnerHandler := partner.NewHandler(s.partnerSvc)
	commissionHandler := commission.NewHandler(s.commissionSvc)
	performanceHandler := performance.NewHandler(s.performanceSvc)
	brandingHandler := branding.NewHandler(s.brandingSvc)
	reportingHandler := reporting.NewHandler(s.reportingSvc)
	billingHandler := billing.NewHandler(s.billingSvc)
	webhookHandler := webhooks.NewHandler(s.webhookStore)
	authHandler := auth.NewHandler(s.authMgr)

	// V1 API group. The auth middleware only extracts identity; the
	// Require* middlewares on the subgroups enforce it.
	v1 := s.router.Group("/v1")
	v1.Use(auth.Middleware(s.authMgr, s.cfg.AdminSecret))

	// PUBLIC ROUTES (no auth required)
	partnerHandler.RegisterPublicRoutes(v1)

	// Stripe posts here; the payload signature is the authentication.
	billingHandler.RegisterPublicRoutes(v1)

	// PROTECTED ROUTES (require API key; admin secret also passes)
	protected := v1.Group("")
	protected.Use(auth.RequireAuth())
	{
		partnerHandler.RegisterProtectedRoutes(protected)
		commissionHandler.RegisterProtectedRoutes(protected)
		performanceHandler.RegisterProtectedRoutes(protected)
		brandingHandler.RegisterProtectedRoutes(protected)
		reportingHandler.RegisterProtectedRoutes(protected)
		webhookHandler.RegisterProtectedRoutes(protected)
		authHandler.RegisterProtectedRoutes(protected)
	}

	// ADMIN ROUTES (require X-Admin-Secret)
	admin := v1.Group("")
	admin.Use(auth.RequireAdmin())
	{
		partnerHandler.RegisterAdminRoutes(admin)
		commissionHandler.RegisterAdminRoutes(admin)
	}
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

// HealthResponse for health check endpoints
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp string            `json:"timestamp"`
}

func (s *Server) healthHandler(c *gin.Context) {
	checks := make(map[string]string)

	if s.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		if err := s.db.PingContext(ctx); err != nil {
			checks["database"] = "unhealthy"
		} else {
			checks["database"] = "healthy"
		}
	}

	status := "healthy"
	httpStatus := http.StatusOK
	for _, v := range checks {
		if v != "healthy" {
			status = "degraded"
			httpStatus = http.StatusServiceUnavailable
			break
		}
	}

	c.JSON(httpStatus, HealthResponse{
		Status:    status,
		Version:   "0.1.0",
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) infoHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "PartnerHub",
		"description": "Partner tier and commission revenue-sharing engine",
		"version":     "0.1.0",
	})
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the HTTP server with graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	// Create a cancellable context for background goroutines so Shutdown() can stop them.
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	// Tracing (no-op when OTLP endpoint is unset)
	shutdown, err := traces.Init(runCtx, s.cfg.OTLPEndpoint, s.logger)
	if err != nil {
		s.logger.Warn("failed to initialize tracing", "error", err)
	} else {
		s.shutdownTraces = shutdown
	}

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Channel to catch server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		s.logger.Info("starting server", "port", s.cfg.Port, "env", s.cfg.Env)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Start realtime hub
	go s.hub.Run(runCtx)

	// Runtime gauges (goroutines, DB pool)
	metrics.CollectRuntime(runCtx, s.db, 15*time.Second)

	// Mark as ready after brief delay for startup
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	// Wait for shutdown signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	// Cancel the context for background goroutines (hub, runtime gauges)
	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	// Give load balancers time to stop sending traffic
	time.Sleep(5 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("shutdown error", "error", err)
		return err
	}

	// Stop rate limiter cleanup goroutine
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
		s.logger.Info("rate limiter stopped")
	}

	// Flush traces
	if s.shutdownTraces != nil {
		if err := s.shutdownTraces(ctx); err != nil {
			s.logger.Error("trace shutdown error", "error", err)
		}
	}

	// Close database connection pool
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func generateRequestID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based ID
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}
