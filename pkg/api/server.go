package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/taskhub/pkg/auth"
	"github.com/platinummonkey/taskhub/pkg/config"
	"github.com/platinummonkey/taskhub/pkg/httputil"
	"github.com/platinummonkey/taskhub/pkg/middleware"
	"github.com/platinummonkey/taskhub/pkg/observability"
	"github.com/platinummonkey/taskhub/pkg/storage"
	"github.com/platinummonkey/taskhub/pkg/tasks"
)

// Server holds the HTTP routing surface and its collaborators
type Server struct {
	router  *mux.Router
	handler http.Handler

	cfg     *config.Config
	logger  *observability.Logger
	metrics *observability.Metrics
}

// Deps carries everything the server needs; all dependencies are injected
type Deps struct {
	Config      *config.Config
	Logger      *observability.Logger
	Metrics     *observability.Metrics
	Health      *observability.HealthChecker
	Sessions    *middleware.SessionManager
	AuthMW      *middleware.AuthMiddleware
	LoginLimit  *middleware.DistributedRateLimiter
	AuthService *auth.Service
	TaskService *tasks.Service
	Avatars     storage.AvatarStore
}

// NewServer creates the server and registers all routes
func NewServer(deps Deps) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		cfg:     deps.Config,
		logger:  deps.Logger,
		metrics: deps.Metrics,
	}

	s.setupRoutes(deps)

	// Outer chain runs on every request, session acquisition last so the
	// inner handlers always see a session.
	chain := httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(deps.Logger),
		httputil.RecoveryMiddleware(deps.Logger),
		deps.Metrics.Middleware,
		httputil.MaxBytesMiddleware(deps.Config.Server.MaxBodyBytes),
		httputil.CORSMiddleware(deps.Config.Server.AllowedOrigins),
		deps.Sessions.Handler,
	)
	s.handler = chain(s.router)

	return s
}

func (s *Server) setupRoutes(deps Deps) {
	authHandlers := NewAuthHandlers(deps.AuthService, deps.Sessions, deps.Config.Auth, deps.Logger)
	taskHandlers := NewTaskHandlers(deps.TaskService, deps.Logger)
	userHandlers := NewUserHandlers(deps.AuthService, deps.Avatars, deps.Config.Auth, deps.Sessions, deps.Logger)

	// Operational endpoints
	if deps.Health != nil {
		s.router.HandleFunc("/healthz", deps.Health.Liveness).Methods("GET")
		s.router.HandleFunc("/readyz", deps.Health.Readiness).Methods("GET")
	}
	if deps.Metrics != nil {
		s.router.Handle("/metrics", deps.Metrics.Handler()).Methods("GET")
	}

	// Public auth surface; login and register share a per-IP rate limit
	authHandlers.RegisterRoutes(s.router, deps.LoginLimit)

	// Everything below requires a resolved identity
	protected := s.router.NewRoute().Subrouter()
	protected.Use(mux.MiddlewareFunc(deps.AuthMW.Handler))
	taskHandlers.RegisterRoutes(protected)
	userHandlers.RegisterRoutes(protected)
}

// Handler returns the server with its middleware chain applied
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Router exposes the bare router for tests
func (s *Server) Router() *mux.Router {
	return s.router
}
