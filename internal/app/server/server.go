package server

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/petermyo/DecentralizeFileShare/config"
	"github.com/petermyo/DecentralizeFileShare/internal/app/provider"
	"github.com/petermyo/DecentralizeFileShare/internal/app/service"
	inthttp "github.com/petermyo/DecentralizeFileShare/internal/http/handler"
	"github.com/petermyo/DecentralizeFileShare/internal/http/middleware"
	httpUtil "github.com/petermyo/DecentralizeFileShare/internal/http/util"
	prominfra "github.com/petermyo/DecentralizeFileShare/internal/infra/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const serviceName = "DecentralizeFileShare"

// Dependencies bundles the collaborators required by the HTTP server.
type Dependencies struct {
	Logger   *zap.Logger
	Config   *config.Config
	Postgres *pgxpool.Pool
	Redis    *redis.Client
	Links    service.LinkService
	Proxy    inthttp.ContentStreamer
	Broker   inthttp.CredentialEnroller
	OAuth    provider.Authenticator
	Events   inthttp.AccessRecorder
	Metrics  *prominfra.Metrics
}

// Server wraps the Fiber application and its dependencies.
type Server struct {
	app  *fiber.App
	deps Dependencies
}

// New creates a new HTTP server instance with all routes registered.
func New(deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	app := fiber.New(fiber.Config{
		AppName:               serviceName,
		DisableStartupMessage: true,
		ReadTimeout:           15 * time.Second,
		IdleTimeout:           60 * time.Second,
	})

	s := &Server{
		app:  app,
		deps: deps,
	}

	s.registerRoutes()
	return s
}

// App exposes the Fiber application, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts the Fiber server on the given address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the Fiber server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) registerRoutes() {
	cfg := s.deps.Config
	log := s.deps.Logger

	s.app.Use(middleware.Recovery(log))
	s.app.Use(middleware.RequestID())
	s.app.Use(middleware.Logger(log))

	inthttp.NewHealthHandler(log, serviceName, s.readinessChecks()).Register(s.app)

	sessions := httpUtil.NewSessionManager([]byte(cfg.Auth.JWTSecret), cfg.Auth.SessionTTL)
	secure := strings.HasPrefix(cfg.Server.BaseURL, "https://")

	inthttp.NewAuthHandler(inthttp.AuthDeps{
		Logger:   log,
		OAuth:    s.deps.OAuth,
		Broker:   s.deps.Broker,
		Sessions: sessions,
		Secure:   secure,
	}).Register(s.app)

	api := s.app.Group("/api",
		middleware.CORS(cfg.Server.BaseURL),
		middleware.RateLimit(s.deps.Redis, middleware.RateLimitConfig{
			MaxRequests: cfg.RateLimit.MaxRequests,
			Window:      cfg.RateLimit.Window,
		}, log),
		middleware.RequireSession(sessions),
	)
	inthttp.NewAdminHandler(log, s.deps.Links).Register(api.Group("/admin", middleware.RequireAdmin(cfg.Auth.IsAdmin)))
	inthttp.NewAPIHandler(inthttp.APIDeps{
		Logger:      log,
		LinkService: s.deps.Links,
		BaseURL:     cfg.Server.BaseURL,
		Secure:      secure,
	}).Register(api)

	inthttp.NewResolveHandler(inthttp.ResolveDeps{
		Logger:  log,
		Links:   s.deps.Links,
		Proxy:   s.deps.Proxy,
		Grants:  httpUtil.NewTokenSigner([]byte(cfg.Links.GrantSecret), cfg.Links.GrantTokenTTL),
		Events:  s.deps.Events,
		Metrics: s.deps.Metrics,
	}).Register(s.app)
}

func (s *Server) readinessChecks() map[string]inthttp.Pinger {
	checks := make(map[string]inthttp.Pinger)
	if s.deps.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return s.deps.Redis.Ping(ctx).Err() }
	}
	if s.deps.Postgres != nil {
		checks["postgres"] = s.deps.Postgres.Ping
	}
	return checks
}
