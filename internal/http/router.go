// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, error rendering, panic
// recovery, metrics, CORS, security headers, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - One error path: every failure, including 404/405, rate limiting and
//     recovered panics, is rendered by handlers.ErrorHandler
//   - Deterministic, minimal router setup; all dependencies injected
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-subscription-service/internal/config"
	"github.com/tbourn/go-subscription-service/internal/domain"
	"github.com/tbourn/go-subscription-service/internal/http/handlers"
	"github.com/tbourn/go-subscription-service/internal/http/middleware"
	"github.com/tbourn/go-subscription-service/internal/ratelimit"
	"github.com/tbourn/go-subscription-service/internal/repo"
	"github.com/tbourn/go-subscription-service/internal/services"
)

// subscriptionRepoShim adapts the repository free functions to the
// services.SubscriptionRepo interface expected by SubscriptionService.
type subscriptionRepoShim struct{}

// FindByEmail proxies repo.FindByEmail.
func (subscriptionRepoShim) FindByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.Subscription, error) {
	return repo.FindByEmail(ctx, db, email)
}

// CreateSubscription proxies repo.CreateSubscription.
func (subscriptionRepoShim) CreateSubscription(ctx context.Context, db *gorm.DB, email string) (*domain.Subscription, error) {
	return repo.CreateSubscription(ctx, db, email)
}

// Deps are the runtime collaborators RegisterRoutes needs besides config.
type Deps struct {
	DB *gorm.DB
	// DBState answers health checks; typically the repo.Monitor.
	DBState handlers.DBState
	// Store backs both rate limiters. Nil means an in-process MemoryStore.
	Store ratelimit.Store
	// Clock drives the rate-limit windows. Nil means the system clock.
	Clock ratelimit.Clock
	// StartedAt anchors the uptime reported by /health.
	StartedAt time.Time
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: access log with PII scrubbing + scoped logger
//  4. Gzip
//  5. ErrorHandler: renders whatever the rest of the chain reports
//  6. Recovery: turns handler panics into INTERNAL_ERROR
//  7. Body size limiter, Metrics
//  8. CORS and Security headers
//  9. General rate limiter (health and metrics exempt)
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		SkipPaths: []string{"/metrics"},
	}))

	// 4) Compression wraps the writer before anything renders into it
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	// 5) Terminal error rendering
	r.Use(handlers.ErrorHandler(cfg.Mode))

	// 6) Panic recovery (rendered by 5)
	r.Use(middleware.Recovery())

	// 7) Global body size limit and Prometheus metrics
	r.Use(limitBody(cfg.BodyLimitBytes))
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 8) CORS allow-list and security headers, ahead of the limiter so a 429
	// is still readable by allowed browser origins
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", "Accept"},
		ExposeHeaders:    []string{"X-Request-ID", middleware.HeaderRateLimitLimit, middleware.HeaderRateLimitRemaining, middleware.HeaderRateLimitReset, middleware.HeaderRetryAfter},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:      cfg.Security.EnableHSTS,
		HSTSMaxAge:      cfg.Security.HSTSMaxAge,
		NoStore:         true,
		CSPSkipPrefixes: []string{"/swagger"},
	}))

	// 9) General fixed-window limiter; health checks and scrapes are exempt
	var limiterOpts []ratelimit.Option
	if deps.Store != nil {
		limiterOpts = append(limiterOpts, ratelimit.WithStore(deps.Store))
	} else {
		// Both limiters share one process-local store; keys are namespaced.
		limiterOpts = append(limiterOpts, ratelimit.WithStore(ratelimit.NewMemoryStore()))
	}
	if deps.Clock != nil {
		limiterOpts = append(limiterOpts, ratelimit.WithClock(deps.Clock))
	}
	general := ratelimit.New(cfg.RateLimit.Window, cfg.RateLimit.Max, limiterOpts...)
	subscribe := ratelimit.New(cfg.SubscribeRateLimit.Window, cfg.SubscribeRateLimit.Max, limiterOpts...)
	r.Use(middleware.RateLimit("general", general, middleware.RateLimitOptions{
		Key:       middleware.KeyByIP(),
		SkipPaths: monitoringPaths(cfg.APIBasePath),
	}))

	// Dependency injection: services ← repo/db
	subSvc := services.NewSubscriptionService(deps.DB, subscriptionRepoShim{})
	h := handlers.New(subSvc, deps.DBState, handlers.Options{
		ServiceName: cfg.ServiceName,
		Mode:        cfg.Mode,
		StartedAt:   deps.StartedAt,
	})

	// Fallbacks
	r.NoRoute(h.NotFound)
	r.NoMethod(h.MethodNotAllowed)

	// Banner and liveness
	r.GET("/", h.Root)
	r.GET("/health", h.Health)

	// Swagger UI (optional)
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Public API
	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		if cfg.APIBasePath != "/" {
			api.GET("/health", h.Health)
		}
		api.POST("/subscribe", middleware.RateLimit("subscribe", subscribe, middleware.RateLimitOptions{Key: middleware.KeyByIP()}), h.Subscribe)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to fail with *http.MaxBytesError, which
// renders as 413.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// monitoringPaths lists the monitoring endpoints the general limiter ignores.
func monitoringPaths(base string) []string {
	paths := []string{"/health", "/metrics"}
	if base != "" && base != "/" {
		paths = append(paths, base+"/health")
	}
	return paths
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
