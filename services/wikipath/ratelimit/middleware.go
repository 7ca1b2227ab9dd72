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
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Middleware rejects requests over the limit with 429. Clients are keyed
// by gin's ClientIP. onReject, if not nil, is called for each rejection.
func Middleware(l *Limiter, onReject func(c *gin.Context)) gin.HandlerFunc {
	return func(c *gin.Context) {
		res := l.Allow(c.ClientIP())
		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		if res.Allowed {
			c.Next()
			return
		}
		if onReject != nil {
			onReject(c)
		}
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter.Seconds()))))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": "rate limit exceeded",
			"code":  "RATE_LIMITED",
		})
	}
}
