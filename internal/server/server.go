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

	"github.com/sagwira/reuni-engine/internal/admin"
	"github.com/sagwira/reuni-engine/internal/audit"
	"github.com/sagwira/reuni-engine/internal/config"
	"github.com/sagwira/reuni-engine/internal/disputes"
	"github.com/sagwira/reuni-engine/internal/events"
	"github.com/sagwira/reuni-engine/internal/fees"
	"github.com/sagwira/reuni-engine/internal/health"
	"github.com/sagwira/reuni-engine/internal/listings"
	"github.com/sagwira/reuni-engine/internal/logging"
	"github.com/sagwira/reuni-engine/internal/metrics"
	"github.com/sagwira/reuni-engine/internal/offers"
	"github.com/sagwira/reuni-engine/internal/payments"
	"github.com/sagwira/reuni-engine/internal/payouts"
	"github.com/sagwira/reuni-engine/internal/ratelimit"
	"github.com/sagwira/reuni-engine/internal/security"
	"github.com/sagwira/reuni-engine/internal/settlement"
	"github.com/sagwira/reuni-engine/internal/traces"
	"github.com/sagwira/reuni-engine/internal/validation"
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg *config.Config

	rail          payments.Rail
	listingStore  listings.Store
	auditRecorder audit.Recorder

	offerService      *offers.Service
	settlementService *settlement.Service
	payoutService     *payouts.Service
	disputeService    *disputes.Service
	sellerService     *admin.Service

	offerTimer  *offers.Timer
	payoutTimer *payouts.Timer
	hub         *events.Hub

	healthReg   *health.Registry
	rateLimiter *ratelimit.Limiter

	db            *sql.DB // nil if using in-memory
	router        *gin.Engine
	httpSrv       *http.Server
	logger        *slog.Logger
	traceShutdown func(context.Context) error
	cancelRunCtx  context.CancelFunc // cancels background goroutines started in Run

	// Health state
	ready atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithRail sets a custom payment rail (for testing)
func WithRail(r payments.Rail) Option {
	return func(s *Server) {
		s.rail = r
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logging.New(cfg.LogLevel, "json"),
	}

	// Apply options first (may set rail/logger)
	for _, opt := range opts {
		opt(s)
	}

	ctx := context.Background()

	// Tracing (no-op when no endpoint is configured)
	shutdown, err := traces.Init(ctx, cfg.OTLPEndpoint, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to init tracing: %w", err)
	}
	s.traceShutdown = shutdown

	// Payment rail: Stripe when a key is configured, otherwise the fake
	// rail for development
	if s.rail == nil {
		if cfg.StripeSecretKey != "" {
			s.rail = payments.NewStripeRail(cfg.StripeSecretKey)
			s.logger.Info("using Stripe payment rail")
		} else {
			s.rail = payments.NewFakeRail()
			s.logger.Warn("no STRIPE_SECRET_KEY set, using fake payment rail")
		}
	}

	// Storage (Postgres if DATABASE_URL set, otherwise in-memory)
	var (
		offerStore   offers.Store
		txnStore     settlement.Store
		payoutStore  payouts.Store
		disputeStore disputes.Store
		sellerStore  admin.SellerStore
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
		s.listingStore = listings.NewPostgresStore(db)
		offerStore = offers.NewPostgresStore(db)
		txnStore = settlement.NewPostgresStore(db)
		payoutStore = payouts.NewPostgresStore(db)
		disputeStore = disputes.NewPostgresStore(db)
		sellerStore = admin.NewPostgresSellerStore(db)
		s.auditRecorder = audit.NewPostgresRecorder(db)
		s.logger.Info("using PostgreSQL storage", "url", maskDSN(cfg.DatabaseURL))
	} else {
		s.listingStore = listings.NewMemoryStore()
		offerStore = offers.NewMemoryStore()
		txnStore = settlement.NewMemoryStore()
		payoutStore = payouts.NewMemoryStore()
		disputeStore = disputes.NewMemoryStore()
		sellerStore = admin.NewMemorySellerStore()
		s.auditRecorder = audit.NewMemoryRecorder()
		s.logger.Info("using in-memory storage")
	}

	schedule := fees.Schedule{
		FlatFeePence:  cfg.FlatFeePence,
		PercentageBps: cfg.PlatformBps,
	}

	// Event hub for WebSocket subscribers
	s.hub = events.NewHub(logging.Component(s.logger, "events"))

	// Services. Settlement sits in the middle: offers settle through
	// it, payouts and offer completion hang off it, disputes read and
	// refund through it.
	s.payoutService = payouts.NewService(payoutStore, s.rail, s.auditRecorder,
		logging.Component(s.logger, "payouts")).
		WithNotifier(events.NewPayoutNotifier(s.hub))

	s.settlementService = settlement.NewService(txnStore, s.listingStore, s.rail, schedule,
		s.auditRecorder, logging.Component(s.logger, "settlement")).
		WithPayouts(s.payoutService).
		WithNotifier(events.NewSettlementNotifier(s.hub))

	s.offerService = offers.NewService(offerStore, s.listingStore, schedule,
		logging.Component(s.logger, "offers")).
		WithSettler(s.settlementService).
		WithNotifier(events.NewOfferNotifier(s.hub)).
		WithExpiry(cfg.OfferExpiry)

	// Close the settlement->offers loop so settled offers get marked
	// completed
	s.settlementService.WithOffers(s.offerService)

	s.disputeService = disputes.NewService(disputeStore, s.settlementService,
		s.auditRecorder, logging.Component(s.logger, "disputes")).
		WithRefunder(s.settlementService).
		WithNotifier(events.NewDisputeNotifier(s.hub))

	s.sellerService = admin.NewService(sellerStore, s.auditRecorder,
		logging.Component(s.logger, "admin"))

	// Background timers
	s.offerTimer = offers.NewTimer(s.offerService, cfg.SweepInterval,
		logging.Component(s.logger, "offers"))
	s.payoutTimer = payouts.NewTimer(s.payoutService, cfg.ReconcileInterval,
		logging.Component(s.logger, "payouts"))

	// Health checks
	s.healthReg = health.NewRegistry()
	if s.db != nil {
		s.healthReg.Register("database", func(ctx context.Context) health.Status {
			if err := s.db.PingContext(ctx); err != nil {
				return health.Fail("database", err.Error())
			}
			return health.OK("database")
		})
	}
	s.healthReg.Register("events", func(_ context.Context) health.Status {
		return health.Status{Name: "events", Healthy: true, Detail: fmt.Sprintf("%v clients", s.hub.Stats()["connectedClients"])}
	})

	// Router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

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

	// CORS (allow all origins for development - restrict in production)
	s.router.Use(security.CORSMiddleware([]string{"*"}))

	// Request size limit (1MB)
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	// Rate limiting
	limCfg := ratelimit.DefaultConfig()
	if s.cfg.RateLimitRPM > 0 {
		limCfg.RequestsPerMinute = s.cfg.RateLimitRPM
	}
	s.rateLimiter = ratelimit.New(limCfg)
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

		// Add to context
		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		// Set response header
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

	// WebSocket for real-time marketplace events
	s.router.GET("/ws", func(c *gin.Context) {
		s.hub.HandleWebSocket(c.Writer, c.Request)
	})

	// API info
	s.router.GET("/api", s.infoHandler)

	// V1 API group
	v1 := s.router.Group("/v1")
	// Validate :id URL params on all v1 routes (no-op when param absent)
	v1.Use(validation.IDParamMiddleware())

	fees.NewHandler(fees.Schedule{
		FlatFeePence:  s.cfg.FlatFeePence,
		PercentageBps: s.cfg.PlatformBps,
	}).RegisterRoutes(v1)

	listings.NewHandler(s.listingStore).RegisterRoutes(v1)
	offers.NewHandler(s.offerService).RegisterRoutes(v1)

	settlementHandler := settlement.NewHandler(s.settlementService)
	settlementHandler.RegisterRoutes(v1)

	payoutHandler := payouts.NewHandler(s.payoutService)
	payoutHandler.RegisterRoutes(v1)

	disputeHandler := disputes.NewHandler(s.disputeService)
	disputeHandler.RegisterRoutes(v1)

	// Admin group: privileged mutations, guarded by the shared secret.
	// The middleware stamps the acting admin onto the request context
	// so every mutation below lands in the audit log attributed.
	adm := v1.Group("/admin", admin.RequireSecret(s.cfg.AdminSecret))
	settlementHandler.RegisterAdminRoutes(adm)
	payoutHandler.RegisterAdminRoutes(adm)
	disputeHandler.RegisterAdminRoutes(adm)
	admin.NewHandler(s.sellerService).RegisterAdminRoutes(adm)
	audit.NewHandler(s.auditRecorder).RegisterAdminRoutes(adm)
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

// HealthResponse for health check endpoints
type HealthResponse struct {
	Status     string          `json:"status"`
	Subsystems []health.Status `json:"subsystems,omitempty"`
	Storage    string          `json:"storage"`
	Time       time.Time       `json:"time"`
}

func (s *Server) healthHandler(c *gin.Context) {
	healthy, statuses := s.healthReg.CheckAll(c.Request.Context())

	storage := "memory"
	if s.db != nil {
		storage = "postgres"
	}

	resp := HealthResponse{
		Status:     "ok",
		Subsystems: statuses,
		Storage:    storage,
		Time:       time.Now(),
	}
	code := http.StatusOK
	if !healthy {
		resp.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, resp)
}

func (s *Server) livenessHandler(c *gin.Context) {
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
		"name":        "reuni-engine",
		"description": "Marketplace settlement and moderation engine",
		"version":     "v1",
		"endpoints": gin.H{
			"fees":         "/v1/fees",
			"listings":     "/v1/listings",
			"offers":       "/v1/offers",
			"purchases":    "/v1/purchases",
			"transactions": "/v1/transactions",
			"payouts":      "/v1/payouts",
			"disputes":     "/v1/disputes",
			"events":       "/ws",
		},
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

	// Start event hub
	go s.hub.Run(runCtx)

	// Start offer expiry sweep
	go s.offerTimer.Start(runCtx)

	// Start payout reconciliation
	go s.payoutTimer.Start(runCtx)

	// Database pool stats for Prometheus
	if s.db != nil {
		metrics.StartDBStatsCollector(runCtx, s.db, 15*time.Second)
	}

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

	// Cancel the context for all background goroutines (hub, timers)
	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}

	// Stop offer expiry sweep
	if s.offerTimer != nil {
		s.offerTimer.Stop()
		s.logger.Info("offer sweep stopped")
	}

	// Stop payout reconciliation
	if s.payoutTimer != nil {
		s.payoutTimer.Stop()
		s.logger.Info("payout reconciler stopped")
	}

	// Stop rate limiter cleanup goroutine
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
		s.logger.Info("rate limiter stopped")
	}

	// Flush traces
	if s.traceShutdown != nil {
		if err := s.traceShutdown(ctx); err != nil {
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

func generateRequestID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based ID
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}
