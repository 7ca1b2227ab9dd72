// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_Allow(t *testing.T) {
	l := NewLimiter(60, time.Minute, 2)
	defer l.Close()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("a").Allowed)
	assert.True(t, l.Allow("a").Allowed)
	res := l.Allow("a")
	assert.False(t, res.Allowed)
	assert.Equal(t, 60, res.Limit)
	assert.Equal(t, time.Second, res.RetryAfter)

	// Other keys have their own bucket.
	assert.True(t, l.Allow("b").Allowed)

	// One token per second refills.
	now = now.Add(time.Second)
	assert.True(t, l.Allow("a").Allowed)
	assert.Equal(t, 2, l.Len())
}

func TestLimiter_Cleanup(t *testing.T) {
	l := NewLimiter(60, time.Minute, 1)
	defer l.Close()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	l.Allow("idle")
	now = now.Add(time.Hour)
	l.Allow("busy")
	l.cleanup(now.Add(-10 * time.Minute))
	assert.Equal(t, 1, l.Len())
	l.Close()
	l.Close()
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l := NewLimiter(1, time.Hour, 1)
	defer l.Close()

	rejected := 0
	router := gin.New()
	router.Use(Middleware(l, func(*gin.Context) { rejected++ }))
	router.GET("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	require.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "RATE_LIMITED")
	assert.Equal(t, 1, rejected)
}
