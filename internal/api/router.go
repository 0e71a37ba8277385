package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"fleet-checkpoint/config"
	"fleet-checkpoint/internal/mw"
)

// NewRouter creates and configures a new Gin router. responses caches the roster and
// journal views; the journal purges it after every recorded scan.
func NewRouter(h *Handler, cfg config.ServerConfig, responses *mw.ResponseCache, gatherer prometheus.Gatherer) *gin.Engine {
	r := gin.Default()

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst, cfg.RequestIPHeader)
	caching := responses.Middleware()

	r.GET("/health", h.GetHealth)
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	// API group
	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/scanner", h.GetScanner)
		api.GET("/scanner/events", h.StreamScanner)
		api.POST("/scanner/payload", h.SubmitPayload)

		api.GET("/scans", caching, h.GetScans)
		api.GET("/drivers", caching, h.GetDrivers)
		api.POST("/drivers/:id/turn", h.ToggleTurn)

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	return r
}
