package server

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/taxrates/taxrates-api/internal/catalog"
	"github.com/taxrates/taxrates-api/internal/handlers"
	"github.com/taxrates/taxrates-api/internal/metrics"
	"github.com/taxrates/taxrates-api/internal/middleware"
)

// Options carries the dependencies of the HTTP API.
type Options struct {
	Rates   handlers.RateResolver
	Holder  *catalog.Holder
	Metrics *metrics.Metrics
	Limiter *middleware.RateLimiter
}

// NewRouter builds the public API. Only the rate lookup is rate limited;
// metadata, health and metrics endpoints are not.
func NewRouter(opts Options) *gin.Engine {
	router := gin.New()
	InitializeRoutes(router, opts)
	return router
}

// InitializeRoutes registers middleware and routes on router.
func InitializeRoutes(router *gin.Engine, opts Options) {
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogger(opts.Metrics))
	router.Use(configureCORS())

	rateHandler := handlers.NewRateHandler(opts.Rates)
	healthHandler := handlers.NewHealthHandler(opts.Holder)

	router.GET("/health", healthHandler.Health)
	if opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}

	api := router.Group("/api")
	{
		api.GET("", healthHandler.ServiceInfo)

		rate := []gin.HandlerFunc{rateHandler.GetRate}
		if opts.Limiter != nil {
			rate = append([]gin.HandlerFunc{opts.Limiter.Middleware()}, rate...)
		}
		api.GET("/rate", rate...)

		api.GET("/states", rateHandler.ListStates)
		api.GET("/states/:state", rateHandler.GetStateMetadata)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})
	router.HandleMethodNotAllowed = true
	router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
	})
}

// configureCORS allows any origin to issue GET requests.
func configureCORS() gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{http.MethodGet, http.MethodOptions}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", middleware.CorrelationIDHeader}
	corsConfig.ExposeHeaders = []string{
		"X-RateLimit-Limit",
		"X-RateLimit-Remaining",
		"X-RateLimit-Reset",
		"Retry-After",
		middleware.CorrelationIDHeader,
	}
	return cors.New(corsConfig)
}
