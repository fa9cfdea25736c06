// Package server exposes the credential service over HTTP.
package server

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/healthcheck"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	auth "github.com/goliatone/go-credentials"
	"github.com/goliatone/go-credentials/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// Routes holds the paths served by the controller
type Routes struct {
	Token       string
	Credentials string
	Activate    string
	Email       string
	Me          string
	Metrics     string
	Health      string
	Ready       string
}

// DefaultRoutes mirror the public contract of the service
var DefaultRoutes = Routes{
	Token:       "/token",
	Credentials: "/credentials",
	Activate:    "/activate/:link",
	Email:       "/credentials/:user_id/email",
	Me:          "/me",
	Metrics:     "/metrics",
	Health:      "/healthz",
	Ready:       "/readyz",
}

type Server struct {
	app      *fiber.App
	service  *auth.Service
	register *auth.RegisterCredentialHandler
	activate *auth.ActivateAccountHandler
	routes   Routes
	logger   auth.Logger
	gatherer prometheus.Gatherer
	ready    func(ctx context.Context) error
}

type Option func(*Server)

func WithLogger(logger auth.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithGatherer serves g on the metrics route
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithReadiness sets the readiness check, usually a database ping
func WithReadiness(check func(ctx context.Context) error) Option {
	return func(s *Server) {
		s.ready = check
	}
}

func WithRoutes(routes Routes) Option {
	return func(s *Server) {
		s.routes = routes
	}
}

// New builds the fiber application and registers the routes.
func New(service *auth.Service, opts ...Option) *Server {
	if service == nil {
		panic("server: missing credential service")
	}

	s := &Server{
		service:  service,
		register: auth.NewRegisterCredentialHandler(service),
		activate: auth.NewActivateAccountHandler(service),
		routes:   DefaultRoutes,
		logger:   nopLogger{},
		gatherer: prometheus.DefaultGatherer,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "credentialsd",
		DisableStartupMessage: true,
		ErrorHandler:          s.errorHandler,
	})

	s.app.Use(recover.New())
	s.app.Use(requestid.New())
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE",
	}))
	s.app.Use(healthcheck.New(healthcheck.Config{
		LivenessEndpoint:  s.routes.Health,
		ReadinessEndpoint: s.routes.Ready,
		ReadinessProbe:    s.readinessProbe,
	}))

	s.registerRoutes()

	return s
}

func (s *Server) registerRoutes() {
	s.app.Post(s.routes.Token, s.TokenPost)
	s.app.Post(s.routes.Credentials, s.CredentialsPost)
	s.app.Get(s.routes.Activate, s.ActivateGet)
	s.app.Put(s.routes.Email, s.EmailPut)
	s.app.Get(s.routes.Me, s.RequireBearer, s.MeGet)
	if s.gatherer != nil {
		s.app.Get(s.routes.Metrics, adaptor.HTTPHandler(metrics.Handler(s.gatherer)))
	}
}

// App returns the underlying fiber application
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Listen(addr string) error {
	s.logger.Info("http server listening", "addr", addr)
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) readinessProbe(c *fiber.Ctx) bool {
	if s.ready == nil {
		return true
	}
	if err := s.ready(c.UserContext()); err != nil {
		s.logger.Warn("readiness check failed", "error", err)
		return false
	}
	return true
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
