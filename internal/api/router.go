// Package api builds the HTTP surface: middleware chain, health and
// metrics endpoints, and per-resource route registration.
package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/calebhs/pushcast/internal/app"
	"github.com/calebhs/pushcast/internal/handlers"
	"github.com/calebhs/pushcast/internal/middleware"
)

// NewRouter builds the Gin engine, wires middleware and registers routes.
func NewRouter(db *gorm.DB, sender handlers.CampaignSender, cfg *app.Config) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if sender == nil {
		return nil, fmt.Errorf("campaign sender must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())
	// Basic rate limiting: 300 requests/minute per IP+path; the register
	// endpoint is called by every visitor of every customer site.
	r.Use(middleware.RateLimit(300, time.Minute))

	if cfg.Monitoring.Health.Enabled {
		r.GET("/health", handlers.Health())
	}
	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	api := r.Group("/api")

	websiteHandler, err := handlers.NewWebsiteHandler(db)
	if err != nil {
		return nil, err
	}
	registerWebsiteRoutes(api, websiteHandler)

	subscriberHandler, err := handlers.NewSubscriberHandler(db)
	if err != nil {
		return nil, err
	}
	registerSubscriberRoutes(api, subscriberHandler)

	segmentHandler, err := handlers.NewSegmentHandler(db)
	if err != nil {
		return nil, err
	}
	registerSegmentRoutes(api, segmentHandler)

	notificationHandler, err := handlers.NewNotificationHandler(db, sender)
	if err != nil {
		return nil, err
	}
	registerNotificationRoutes(api, notificationHandler)

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
