package server

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/dshills/promptcoach/internal/config"
	"github.com/dshills/promptcoach/internal/review"
	"github.com/dshills/promptcoach/internal/usage"
)

// HeaderUserID identifies the caller for usage accounting and quotas.
const HeaderUserID = "X-User-ID"

const shutdownTimeout = 10 * time.Second

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Server exposes the review engine over HTTP.
type Server struct {
	app     *fiber.App
	engine  *review.Engine
	ledger  usage.Ledger
	cfg     atomic.Pointer[config.Config]
	checks  map[string]HealthCheck
	logger  *zap.Logger
	version string
}

// Option configures a Server.
type Option func(*Server)

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithLedger serves GET /v1/usage from l.
func WithLedger(l usage.Ledger) Option {
	return func(s *Server) { s.ledger = l }
}

// WithHealthCheck adds a named dependency check to GET /health.
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(s *Server) { s.checks[name] = check }
}

func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// New builds the fiber app and registers the routes.
func New(engine *review.Engine, cfg config.Config, opts ...Option) *Server {
	s := &Server{
		engine: engine,
		checks: make(map[string]HealthCheck),
		logger: zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	s.cfg.Store(&cfg)

	s.app = fiber.New(fiber.Config{
		AppName:               "promptcoach",
		DisableStartupMessage: true,
		ReadTimeout:           seconds(cfg.Server.ReadTimeoutSeconds),
		WriteTimeout:          seconds(cfg.Server.WriteTimeoutSeconds),
		BodyLimit:             cfg.Server.BodyLimitBytes,
		ErrorHandler:          s.handleError,
	})
	s.routes()
	return s
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func (s *Server) routes() {
	s.app.Use(recover.New())
	s.app.Use(s.logRequests)

	s.app.Get("/health", s.handleHealth)

	v1 := s.app.Group("/v1")
	v1.Get("/personas", s.handlePersonas)
	v1.Get("/providers", s.handleProviders)
	v1.Post("/reviews", s.handleReview)
	v1.Post("/compare", s.handleCompare)
	v1.Get("/usage", s.handleUsage)
}

// App returns the underlying fiber app, mainly for tests.
func (s *Server) App() *fiber.App { return s.app }

// Config returns the configuration currently in effect.
func (s *Server) Config() config.Config { return *s.cfg.Load() }

// SetConfig swaps the configuration used by subsequent requests. Settings
// baked into the engine or the listener are not affected.
func (s *Server) SetConfig(cfg config.Config) {
	s.cfg.Store(&cfg)
	s.logger.Info("configuration reloaded",
		zap.String("provider", cfg.Provider),
		zap.String("persona", cfg.Persona),
	)
}

// Run listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", addr))
		errc <- s.app.Listen(addr)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down")
		if err := s.app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			return err
		}
		if err := <-errc; err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}
}

func (s *Server) logRequests(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	status := c.Response().StatusCode()
	if err != nil {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}
	}
	s.logger.Info("request",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", status),
		zap.Duration("elapsed", time.Since(start)),
	)
	return err
}
