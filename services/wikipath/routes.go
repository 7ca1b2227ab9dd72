// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package wikipath

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/wikipath/services/wikipath/ratelimit"
)

// RegisterRoutes registers all wikipath routes with the router.
//
// Description:
//
//	Registers all /v1/wikipath/* endpoints with the given Gin router group.
//	search is the middleware applied to the search route only; pass nil
//	for none.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//	search - Extra middleware for the search route, such as rate limiting
//
// Endpoints:
//
//	GET /v1/wikipath/search - Shortest path between two articles
//	GET /v1/wikipath/titles - Title suggestions
//	GET /v1/wikipath/cache - Remembered searches
//	GET /v1/wikipath/longest - Longest successful searches
//	GET /v1/wikipath/rank - Highest PageRank articles
//	GET /v1/wikipath/farthest - Articles farthest from a destination
//	GET /v1/wikipath/stats - Graph and cache statistics
//
// Health Endpoints:
//
//	GET /v1/wikipath/health - Health check
//	GET /v1/wikipath/ready - Readiness check
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers, search ...gin.HandlerFunc) {
	wp := rg.Group("/wikipath")
	{
		wp.GET("/search", append(search, handlers.HandleSearch)...)
		wp.GET("/titles", handlers.HandleTitles)
		wp.GET("/cache", handlers.HandleCache)
		wp.GET("/longest", handlers.HandleLongest)
		wp.GET("/rank", handlers.HandleRank)
		wp.GET("/farthest", handlers.HandleFarthest)
		wp.GET("/stats", handlers.HandleStats)

		wp.GET("/health", handlers.HandleHealth)
		wp.GET("/ready", handlers.HandleReady)
	}
}

// RouterConfig configures NewRouter.
type RouterConfig struct {
	// TraceName names the otelgin middleware. Empty disables tracing.
	TraceName string

	// MetricsHandler serves /metrics when not nil.
	MetricsHandler http.Handler

	// Limiter rate limits the search route when not nil.
	Limiter *ratelimit.Limiter
}

// NewRouter builds the gin engine serving svc.
func NewRouter(svc *Service, metrics *Metrics, cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.TraceName != "" {
		router.Use(otelgin.Middleware(cfg.TraceName))
	}
	if metrics != nil {
		router.Use(requestMetrics(metrics))
	}
	if cfg.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(cfg.MetricsHandler))
	}

	var search []gin.HandlerFunc
	if cfg.Limiter != nil {
		search = append(search, ratelimit.Middleware(cfg.Limiter, func(*gin.Context) {
			if metrics != nil {
				metrics.RateLimitedTotal.Inc()
			}
		}))
	}
	RegisterRoutes(router.Group("/v1"), NewHandlers(svc), search...)
	return router
}

// requestMetrics counts requests by route template and status.
func requestMetrics(m *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RequestsTotal.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
		if route != "/metrics" {
			slog.Debug("request served",
				"route", route,
				"status", c.Writer.Status(),
				"duration", time.Since(start))
		}
	}
}
