package router

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/rdv-api/internal/middleware"
	"github.com/jwalitptl/rdv-api/pkg/auth"
)

// PublicHandler registers routes open to customers.
type PublicHandler interface {
	RegisterRoutes(public *gin.RouterGroup)
}

// SplitHandler registers both customer and admin routes.
type SplitHandler interface {
	RegisterRoutes(public, admin *gin.RouterGroup)
}

// AdminHandler registers admin-only routes.
type AdminHandler interface {
	RegisterRoutes(admin *gin.RouterGroup)
}

type Handlers struct {
	Health        PublicHandler
	Auth          PublicHandler
	Availability  PublicHandler
	Appointments  SplitHandler
	Catalog       SplitHandler
	Notifications AdminHandler
	Exports       AdminHandler
}

type RouterConfig struct {
	Mode           string
	RateLimit      rate.Limit
	RateBurst      int
	AllowedOrigins []string
	MaxBodySize    int64
	HSTS           bool
	MetricsPrefix  string
	// Registerer receives the HTTP metrics; nil leaves them unregistered.
	Registerer prometheus.Registerer
}

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	handlers Handlers
	metrics  *routerMetrics
}

type routerMetrics struct {
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
}

func NewRouter(authMW *middleware.AuthMiddleware, handlers Handlers, config RouterConfig) *Router {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = middleware.DefaultMaxBodySize
	}
	if config.MetricsPrefix == "" {
		config.MetricsPrefix = "rdv_http"
	}

	engine := gin.New()
	r := &Router{
		engine:   engine,
		auth:     authMW,
		handlers: handlers,
		metrics:  initRouterMetrics(config.MetricsPrefix, config.Registerer),
	}

	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(),
		middleware.Logger(),
		r.metricsMiddleware(),
		middleware.ErrorHandler(),
		middleware.SecurityHeaders(middleware.SecurityConfig{HSTS: config.HSTS, HSTSMaxAge: 31536000}),
		middleware.CORS(middleware.DefaultCORSConfig(config.AllowedOrigins)),
		middleware.SizeLimit(config.MaxBodySize),
	)

	if config.RateLimit > 0 {
		limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		})
		engine.Use(limiter.RateLimit())
	}

	return r
}

func (r *Router) Setup() {
	api := r.engine.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	r.handlers.Health.RegisterRoutes(api)
	r.handlers.Auth.RegisterRoutes(api)
	r.handlers.Availability.RegisterRoutes(api)

	admin := api.Group("")
	admin.Use(r.auth.Authenticate(), r.auth.RequireRole(auth.RoleAdmin))

	r.handlers.Appointments.RegisterRoutes(api, admin)
	r.handlers.Catalog.RegisterRoutes(api, admin)
	r.handlers.Notifications.RegisterRoutes(admin)
	r.handlers.Exports.RegisterRoutes(admin)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func initRouterMetrics(prefix string, reg prometheus.Registerer) *routerMetrics {
	m := &routerMetrics{
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: prefix + "_request_duration_seconds",
				Help: "Duration of HTTP requests in seconds",
			},
			[]string{"method", "path", "status"},
		),
		requestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.requestDuration, m.requestTotal)
	}
	return m
}

func (r *Router) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		r.metrics.requestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
		r.metrics.requestTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}
