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
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/wikipath/services/wikipath/cache"
	"github.com/AleutianAI/wikipath/services/wikipath/graph"
	"github.com/AleutianAI/wikipath/services/wikipath/telemetry"
	"github.com/AleutianAI/wikipath/services/wikipath/titles"
)

const (
	defaultListLimit = 50
	maxListLimit     = 1000
)

// Handlers contains the HTTP handlers for wikipath.
type Handlers struct {
	svc *Service
}

// NewHandlers creates handlers for the given service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// SearchQuery is the query string of GET /v1/wikipath/search.
type SearchQuery struct {
	Src string `form:"src" binding:"required"`
	Dst string `form:"dst" binding:"required"`
}

// TitlesQuery is the query string of GET /v1/wikipath/titles.
type TitlesQuery struct {
	Q     string `form:"q" binding:"required"`
	Limit int    `form:"limit" binding:"omitempty,min=1,max=100"`
}

// CacheQuery is the query string of GET /v1/wikipath/cache.
type CacheQuery struct {
	Sort  string `form:"sort"`
	Limit int    `form:"limit" binding:"omitempty,min=1"`
}

// RankQuery is the query string of GET /v1/wikipath/rank.
type RankQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1"`
}

// FarthestQuery is the query string of GET /v1/wikipath/farthest.
type FarthestQuery struct {
	Dst string `form:"dst" binding:"required"`
}

// HandleSearch handles GET /v1/wikipath/search.
//
// Description:
//
//	Finds the shortest link path between two articles. Endpoints are
//	titles or "id:" prefixed page ids.
//
// Query Parameters:
//
//	src: Source article (required)
//	dst: Destination article (required)
//
// Response:
//
//	200 OK: SearchResponse, including no_path and terminated outcomes
//	400 Bad Request: Missing or malformed endpoint
//	404 Not Found: Unknown title or id, with suggestions
//	503 Service Unavailable: No graph loaded
//	504 Gateway Timeout: Search timed out
func (h *Handlers) HandleSearch(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := requestLogger(c, requestID, "HandleSearch")

	var q SearchQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		logger.Warn("Invalid query", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "src and dst are required",
			Code:    "INVALID_REQUEST",
			Details: err.Error(),
		})
		return
	}

	resp, err := h.svc.Search(c.Request.Context(), q.Src, q.Dst)
	if err != nil {
		writeError(c, logger, err)
		return
	}

	logger.Info("Search answered",
		"src", resp.Src.Title,
		"dst", resp.Dst.Title,
		"outcome", resp.Outcome,
		"length", resp.Length,
		"cached", resp.Cached)
	c.JSON(http.StatusOK, resp)
}

// HandleTitles handles GET /v1/wikipath/titles.
//
// Query Parameters:
//
//	q: Substring to look for (required)
//	limit: Maximum number of titles (optional, default 10, max 100)
//
// Response:
//
//	200 OK: TitlesResponse
//	400 Bad Request: Missing q or bad limit
//	503 Service Unavailable: No graph loaded
func (h *Handlers) HandleTitles(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := requestLogger(c, requestID, "HandleTitles")

	var q TitlesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid query",
			Code:    "INVALID_REQUEST",
			Details: err.Error(),
		})
		return
	}

	resp, err := h.svc.Titles(c.Request.Context(), q.Q, q.Limit)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleCache handles GET /v1/wikipath/cache.
//
// Query Parameters:
//
//	sort: recent, popular, length or random (optional, default recent)
//	limit: Maximum number of entries (optional, default 50, max 1000)
//
// Response:
//
//	200 OK: CacheResponse
//	400 Bad Request: Unknown sort
//	503 Service Unavailable: No graph loaded
func (h *Handlers) HandleCache(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := requestLogger(c, requestID, "HandleCache")

	var q CacheQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid query",
			Code:    "INVALID_REQUEST",
			Details: err.Error(),
		})
		return
	}

	resp, err := h.svc.CacheList(c.Request.Context(), q.Sort, clampLimit(q.Limit))
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleLongest handles GET /v1/wikipath/longest.
//
// Response:
//
//	200 OK: LongestResponse
func (h *Handlers) HandleLongest(c *gin.Context) {
	getOrCreateRequestID(c)
	c.JSON(http.StatusOK, h.svc.Longest())
}

// HandleRank handles GET /v1/wikipath/rank.
//
// Description:
//
//	Returns the articles with the highest PageRank. The ranking is
//	computed on first request after each graph load.
//
// Query Parameters:
//
//	limit: Number of articles (optional, default 50, max 1000)
//
// Response:
//
//	200 OK: RankResponse
//	503 Service Unavailable: No graph loaded
func (h *Handlers) HandleRank(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := requestLogger(c, requestID, "HandleRank")

	var q RankQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid query",
			Code:    "INVALID_REQUEST",
			Details: err.Error(),
		})
		return
	}

	resp, err := h.svc.Rank(c.Request.Context(), clampLimit(q.Limit))
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleFarthest handles GET /v1/wikipath/farthest.
//
// Query Parameters:
//
//	dst: Destination article (required)
//
// Response:
//
//	200 OK: FarthestResponse
//	400 Bad Request: Missing or malformed dst
//	404 Not Found: Unknown title or id
//	503 Service Unavailable: No graph loaded
func (h *Handlers) HandleFarthest(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := requestLogger(c, requestID, "HandleFarthest")

	var q FarthestQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "dst is required",
			Code:    "INVALID_REQUEST",
			Details: err.Error(),
		})
		return
	}

	resp, err := h.svc.Farthest(c.Request.Context(), q.Dst)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleStats handles GET /v1/wikipath/stats.
//
// Response:
//
//	200 OK: StatsResponse
//	503 Service Unavailable: No graph loaded
func (h *Handlers) HandleStats(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := requestLogger(c, requestID, "HandleStats")

	resp, err := h.svc.Stats(c.Request.Context())
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleHealth handles GET /v1/wikipath/health.
//
// Description:
//
//	Returns the health status of the service. Always returns 200 if running.
//
// Response:
//
//	200 OK: HealthResponse
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: ServiceVersion,
	})
}

// HandleReady handles GET /v1/wikipath/ready.
//
// Description:
//
//	Returns 503 Service Unavailable until a graph is loaded.
//
// Response:
//
//	200 OK: ReadyResponse (Ready=true)
//	503 Service Unavailable: ReadyResponse (Ready=false)
func (h *Handlers) HandleReady(c *gin.Context) {
	snap := h.svc.Snapshot()
	if snap == nil {
		c.Header("Retry-After", "30")
		c.JSON(http.StatusServiceUnavailable, ReadyResponse{Ready: false})
		return
	}
	c.JSON(http.StatusOK, ReadyResponse{Ready: true, Nodes: snap.Table.Len()})
}

// writeError maps service errors to HTTP responses.
func writeError(c *gin.Context, logger *slog.Logger, err error) {
	status := http.StatusInternalServerError
	resp := ErrorResponse{Error: err.Error(), Code: "INTERNAL_ERROR"}

	var endpointErr *EndpointError
	switch {
	case errors.Is(err, ErrNotReady):
		status = http.StatusServiceUnavailable
		resp.Code = "NOT_READY"
		c.Header("Retry-After", "30")
	case errors.Is(err, ErrBadEndpoint), errors.Is(err, titles.ErrEmptyQuery):
		status = http.StatusBadRequest
		resp.Code = "INVALID_ENDPOINT"
	case errors.Is(err, titles.ErrUnknownTitle):
		status = http.StatusNotFound
		resp.Code = "UNKNOWN_TITLE"
	case errors.Is(err, graph.ErrNoSuchID):
		status = http.StatusNotFound
		resp.Code = "UNKNOWN_ID"
	case errors.Is(err, cache.ErrUnknownSort):
		status = http.StatusBadRequest
		resp.Code = "INVALID_SORT"
	case errors.Is(err, ErrSearchTimeout):
		status = http.StatusGatewayTimeout
		resp.Code = "SEARCH_TIMEOUT"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
		resp.Code = "CANCELLED"
	}
	if errors.As(err, &endpointErr) {
		resp.Suggestions = endpointErr.Suggestions
	}
	telemetry.RecordError(trace.SpanFromContext(c.Request.Context()), err,
		attribute.String("error.code", resp.Code))

	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", "error", err, "code", resp.Code)
	} else {
		logger.Info("Request rejected", "error", err, "code", resp.Code)
	}
	c.JSON(status, resp)
}

func clampLimit(limit int) int {
	if limit < 1 {
		return defaultListLimit
	}
	return min(limit, maxListLimit)
}

// getOrCreateRequestID gets or creates a request ID. The trace ID, when
// the request is traced, is returned in X-Trace-ID.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	if traceID := telemetry.TraceID(c.Request.Context()); traceID != "" {
		c.Header("X-Trace-ID", traceID)
	}
	return requestID
}

func requestLogger(c *gin.Context, requestID, handler string) *slog.Logger {
	return telemetry.LoggerWithTrace(c.Request.Context(),
		slog.With("request_id", requestID, "handler", handler))
}
