package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"safeguard-backend/internal/mw"
)

// RouterOptions carries the middleware tuning knobs.
type RouterOptions struct {
	RateLimitPerSec float64
	Burst           int
	CacheTTL        time.Duration
	RequestIPHeader string
}

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	r := gin.Default()

	if opts.RateLimitPerSec <= 0 {
		opts.RateLimitPerSec = 10
	}
	if opts.Burst <= 0 {
		opts.Burst = 5
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 30 * time.Second
	}

	rateLimiter := mw.RateLimiter(rate.Limit(opts.RateLimitPerSec), opts.Burst, opts.RequestIPHeader)

	cacheStore := cache.New(opts.CacheTTL, 2*opts.CacheTTL)
	caching := mw.Cache(cacheStore, opts.CacheTTL)
	busting := mw.CacheBust(cacheStore)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/geofences", caching, h.ListBoundaries)
		api.POST("/geofences", busting, h.CreateBoundary)
		api.PATCH("/geofences/:id", busting, h.UpdateBoundary)
		api.DELETE("/geofences/:id", busting, h.DeleteBoundary)

		api.POST("/locations", h.PushLocation)
		api.GET("/locations", h.GetLocationHistory)

		api.POST("/alerts/sos", h.TriggerSOS)
		api.GET("/alerts", h.ListAlerts)
		api.GET("/alerts/:id", h.GetAlert)
		api.PATCH("/alerts/:id", h.UpdateAlertStatus)

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	return r
}
