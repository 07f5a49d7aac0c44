package router

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/practice-api/internal/handler"
	"github.com/jwalitptl/practice-api/internal/middleware"
	"github.com/jwalitptl/practice-api/pkg/metrics"
)

// Handlers groups the area handlers mounted under /api/v1. Health routes
// are public; the rest require a bearer token.
type Handlers struct {
	Health       handler.RouteRegistrar
	Permission   handler.RouteRegistrar
	Assignment   handler.RouteRegistrar
	Availability handler.RouteRegistrar
	Appointment  handler.RouteRegistrar
	Client       handler.RouteRegistrar
}

type RouterConfig struct {
	RateLimitEnabled bool
	RateLimit        middleware.RateLimiterConfig
	CORSConfig       middleware.CORSConfig
	RequestTimeout   time.Duration
	MaxBodyBytes     int64
}

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	handlers Handlers
}

func NewRouter(auth *middleware.AuthMiddleware, handlers Handlers, m *metrics.Metrics, config RouterConfig) *Router {
	engine := gin.New()

	r := &Router{
		engine:   engine,
		auth:     auth,
		handlers: handlers,
	}

	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(),
		middleware.Logger(),
		middleware.Metrics(m),
		middleware.ErrorHandler(),
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
		middleware.CORS(config.CORSConfig),
		middleware.Timeout(middleware.TimeoutConfig{Duration: config.RequestTimeout}),
	)
	if config.MaxBodyBytes > 0 {
		engine.Use(middleware.SizeLimit(config.MaxBodyBytes))
	}
	if config.RateLimitEnabled {
		engine.Use(middleware.NewRateLimiter(config.RateLimit).RateLimit())
	}

	return r
}

func (r *Router) Setup() {
	api := r.engine.Group("/api/v1")

	if r.handlers.Health != nil {
		r.handlers.Health.RegisterRoutes(api)
	}

	protected := api.Group("")
	protected.Use(r.auth.Authenticate())
	for _, h := range []handler.RouteRegistrar{
		r.handlers.Permission,
		r.handlers.Assignment,
		r.handlers.Availability,
		r.handlers.Appointment,
		r.handlers.Client,
	} {
		if h != nil {
			h.RegisterRoutes(protected)
		}
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
