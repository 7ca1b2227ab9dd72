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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/wikipath/services/wikipath/ratelimit"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	svc     *Service
	metrics *Metrics
	router  *gin.Engine
}

func newTestServer(t *testing.T, cfg RouterConfig, publish bool) *testServer {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	svc := NewService(DefaultServiceConfig(), WithMetrics(m))
	if publish {
		require.NoError(t, svc.Publish(context.Background(), testSnapshot(t, "one")))
	}
	if cfg.MetricsHandler == nil {
		cfg.MetricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}
	return &testServer{svc: svc, metrics: m, router: NewRouter(svc, m, cfg)}
}

func (s *testServer) get(t *testing.T, target string, out any) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	s.router.ServeHTTP(w, req)
	if out != nil {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
	}
	return w
}

func TestHandleHealthAndReady(t *testing.T) {
	s := newTestServer(t, RouterConfig{}, false)

	var health HealthResponse
	w := s.get(t, "/v1/wikipath/health", &health)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, HealthResponse{Status: "healthy", Version: ServiceVersion}, health)

	var ready ReadyResponse
	w = s.get(t, "/v1/wikipath/ready", &ready)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "30", w.Header().Get("Retry-After"))
	assert.False(t, ready.Ready)

	var errResp ErrorResponse
	w = s.get(t, "/v1/wikipath/search?src=Alpha&dst=Gamma", &errResp)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "NOT_READY", errResp.Code)

	require.NoError(t, s.svc.Publish(context.Background(), testSnapshot(t, "one")))
	w = s.get(t, "/v1/wikipath/ready", &ready)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ReadyResponse{Ready: true, Nodes: 5}, ready)
}

func TestHandleSearch(t *testing.T) {
	s := newTestServer(t, RouterConfig{}, true)

	t.Run("found", func(t *testing.T) {
		var resp SearchResponse
		w := s.get(t, "/v1/wikipath/search?src=Alpha&dst=Gamma", &resp)
		require.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
		assert.Equal(t, "success", resp.Outcome)
		assert.Equal(t, 2, resp.Length)
		assert.Len(t, resp.Path, 3)
	})

	t.Run("request id echoed", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/v1/wikipath/search?src=Alpha&dst=Gamma", nil)
		req.Header.Set("X-Request-ID", "req-42")
		s.router.ServeHTTP(w, req)
		assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
	})

	t.Run("no path is not an error", func(t *testing.T) {
		var resp SearchResponse
		w := s.get(t, "/v1/wikipath/search?src=Gamma&dst=id:4", &resp)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "no_path", resp.Outcome)
	})

	tests := []struct {
		name   string
		target string
		status int
		code   string
	}{
		{"missing dst", "/v1/wikipath/search?src=Alpha", http.StatusBadRequest, "INVALID_REQUEST"},
		{"bad id", "/v1/wikipath/search?src=id:abc&dst=Alpha", http.StatusBadRequest, "INVALID_ENDPOINT"},
		{"unknown id", "/v1/wikipath/search?src=id:77&dst=Alpha", http.StatusNotFound, "UNKNOWN_ID"},
		{"unknown title", "/v1/wikipath/search?src=Alpha&dst=Gam", http.StatusNotFound, "UNKNOWN_TITLE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp ErrorResponse
			w := s.get(t, tt.target, &resp)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, resp.Code)
		})
	}

	t.Run("suggestions", func(t *testing.T) {
		var resp ErrorResponse
		s.get(t, "/v1/wikipath/search?src=Alpha&dst=Gam", &resp)
		assert.Equal(t, []string{"Gamma"}, resp.Suggestions)
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.SearchesTotal.WithLabelValues("success", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.SearchesTotal.WithLabelValues("success", "true")))
}

func TestHandleListings(t *testing.T) {
	s := newTestServer(t, RouterConfig{}, true)
	s.get(t, "/v1/wikipath/search?src=Delta&dst=Beta", nil)
	s.get(t, "/v1/wikipath/search?src=Alpha&dst=Beta", nil)

	t.Run("titles", func(t *testing.T) {
		var resp TitlesResponse
		w := s.get(t, "/v1/wikipath/titles?q=ta", &resp)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []string{"Beta", "Delta"}, resp.Titles)

		w = s.get(t, "/v1/wikipath/titles?q=ta&limit=500", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("cache", func(t *testing.T) {
		var resp CacheResponse
		w := s.get(t, "/v1/wikipath/cache?sort=longest&limit=1", &resp)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "length", resp.Sort)
		require.Len(t, resp.Entries, 1)
		assert.Equal(t, "Delta", resp.Entries[0].Src.Title)
		assert.Equal(t, 3, resp.Entries[0].Length)

		var errResp ErrorResponse
		w = s.get(t, "/v1/wikipath/cache?sort=sideways", &errResp)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_SORT", errResp.Code)
	})

	t.Run("longest", func(t *testing.T) {
		var resp LongestResponse
		w := s.get(t, "/v1/wikipath/longest", &resp)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []LongestEntry{
			{Src: "Delta", Dst: "Beta", Length: 3},
			{Src: "Alpha", Dst: "Beta", Length: 1},
		}, resp.Entries)
	})

	t.Run("rank", func(t *testing.T) {
		var resp RankResponse
		w := s.get(t, "/v1/wikipath/rank?limit=3", &resp)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, resp.Pages, 3)
		assert.NotEmpty(t, resp.Pages[0].URL)
	})

	t.Run("farthest", func(t *testing.T) {
		var resp FarthestResponse
		w := s.get(t, "/v1/wikipath/farthest?dst=Beta", &resp)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 3, resp.Distance)
		assert.Equal(t, "Delta", resp.Farthest[0].Title)

		w = s.get(t, "/v1/wikipath/farthest", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("stats", func(t *testing.T) {
		var resp StatsResponse
		w := s.get(t, "/v1/wikipath/stats", &resp)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 5, resp.Nodes)
		assert.Equal(t, 2, resp.CacheEntries)
	})
}

func TestRouter_MetricsAndRateLimit(t *testing.T) {
	limiter := ratelimit.NewLimiter(1, time.Hour, 1)
	defer limiter.Close()
	s := newTestServer(t, RouterConfig{Limiter: limiter}, true)

	w := s.get(t, "/v1/wikipath/search?src=Alpha&dst=Beta", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.get(t, "/v1/wikipath/search?src=Alpha&dst=Beta", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.RateLimitedTotal))

	// Other routes are not limited.
	w = s.get(t, "/v1/wikipath/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.get(t, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "wikipath_service_requests_total")
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.RequestsTotal.WithLabelValues("/v1/wikipath/search", "429")))
}
