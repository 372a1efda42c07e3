package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/mikey/ai-cost-optimizer/internal/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Engine is the decision pipeline exposed over HTTP
type Engine interface {
	Evaluate(ctx context.Context, req *core.Request) (*core.Decision, error)
	Process(ctx context.Context, req *core.Request) (*core.Result, error)
}

// CacheAdmin serves the administrative cache operations
type CacheAdmin interface {
	GetCacheStats(ctx context.Context) (*core.CacheStats, error)
	ClearCache(ctx context.Context, feature string) (*core.ClearResult, error)
}

// Options configures the HTTP server
type Options struct {
	ListenAddress string
	BodyLimit     int
	// Gatherer backs /metrics; nil disables the endpoint
	Gatherer prometheus.Gatherer
	// BreakerState reports the cache breaker state on /health when set
	BreakerState func() string
}

// Server is the fiber based admin and submission API
type Server struct {
	app     *fiber.App
	address string
	logger  *zap.Logger
}

// NewServer creates the HTTP server and registers every route
func NewServer(engine Engine, admin CacheAdmin, opts Options, logger *zap.Logger) *Server {
	if opts.BodyLimit <= 0 {
		opts.BodyLimit = 2 * maxTextLength
	}

	app := fiber.New(fiber.Config{
		AppName:               "ai-cost-optimizer",
		BodyLimit:             opts.BodyLimit,
		DisableStartupMessage: true,
		ReadTimeout:           30 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return errorResponse(c, err)
		},
	})
	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))

	h := &handler{engine: engine, admin: admin, breakerState: opts.BreakerState, logger: logger}
	app.Get("/health", h.health)
	if opts.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	api := app.Group("/api")
	api.Post("/evaluate", h.evaluate)
	api.Post("/process", h.process)
	api.Get("/cache/stats", h.cacheStats)
	api.Post("/cache/clear", h.clearCache)

	return &Server{
		app:     app,
		address: opts.ListenAddress,
		logger:  logger,
	}
}

// App exposes the fiber application, mainly for tests
func (s *Server) App() *fiber.App {
	return s.app
}

// Start binds the listener and serves in the background
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.address, err)
	}
	s.logger.Info("HTTP API listening", zap.String("address", ln.Addr().String()))

	go func() {
		if err := s.app.Listener(ln); err != nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Error("HTTP API stopped with error", zap.Error(err))
		}
	}()
	return nil
}

// Stop waits for in-flight requests until ctx expires
func (s *Server) Stop(ctx context.Context) error {
	if err := s.app.ShutdownWithContext(ctx); err != nil {
		return fmt.Errorf("failed to shut down HTTP API: %w", err)
	}
	s.logger.Info("HTTP API stopped")
	return nil
}
