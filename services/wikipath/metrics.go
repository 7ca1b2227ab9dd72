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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "wikipath"
	serviceSubsystem = "service"
)

// Metrics holds the Prometheus collectors of the HTTP service.
//
// Thread Safety: All operations are thread-safe.
type Metrics struct {
	// SearchesTotal counts searches.
	// Labels: outcome (success, no_path, terminated, timeout), cached (true, false)
	SearchesTotal *prometheus.CounterVec

	// SearchDurationSeconds measures search latency including cache lookups.
	// Labels: cached
	SearchDurationSeconds *prometheus.HistogramVec

	// SearchRounds observes the rounds used by uncached searches.
	SearchRounds prometheus.Histogram

	// TitleLookupsTotal counts endpoint resolutions.
	// Labels: match (exact, upper, none)
	TitleLookupsTotal *prometheus.CounterVec

	// RequestsTotal counts HTTP requests.
	// Labels: route, status
	RequestsTotal *prometheus.CounterVec

	// RateLimitedTotal counts requests rejected by the rate limiter.
	RateLimitedTotal prometheus.Counter

	// GraphNodes and GraphEdges describe the loaded graph.
	GraphNodes prometheus.Gauge
	GraphEdges prometheus.Gauge

	// SnapshotsLoadedTotal counts published graph snapshots.
	SnapshotsLoadedTotal prometheus.Counter

	// CacheEntries is the size of the in-memory cache tier.
	CacheEntries prometheus.Gauge
}

// NewMetrics creates and registers the service metrics with reg.
//
// Description:
//
//	Pass prometheus.DefaultRegisterer in production so that the metrics
//	are served next to the OpenTelemetry exporter's. Tests pass a fresh
//	prometheus.NewRegistry() to avoid duplicate registration.
//
// Limitations:
//
//   - Panics if called twice with the same registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SearchesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: serviceSubsystem,
				Name:      "searches_total",
				Help:      "Total number of path searches by outcome and cache use",
			},
			[]string{"outcome", "cached"},
		),
		SearchDurationSeconds: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: serviceSubsystem,
				Name:      "search_duration_seconds",
				Help:      "Path search latency in seconds",
				Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
			},
			[]string{"cached"},
		),
		SearchRounds: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: serviceSubsystem,
				Name:      "search_rounds",
				Help:      "Rounds used by uncached searches",
				Buckets:   prometheus.LinearBuckets(1, 1, 10),
			},
		),
		TitleLookupsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: serviceSubsystem,
				Name:      "title_lookups_total",
				Help:      "Endpoint resolutions by match kind",
			},
			[]string{"match"},
		),
		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: serviceSubsystem,
				Name:      "requests_total",
				Help:      "HTTP requests by route and status",
			},
			[]string{"route", "status"},
		),
		RateLimitedTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: serviceSubsystem,
				Name:      "rate_limited_total",
				Help:      "Requests rejected by the rate limiter",
			},
		),
		GraphNodes: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: "graph",
				Name:      "nodes",
				Help:      "Articles in the loaded graph",
			},
		),
		GraphEdges: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: "graph",
				Name:      "edges",
				Help:      "Links in the loaded graph",
			},
		),
		SnapshotsLoadedTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "graph",
				Name:      "snapshots_loaded_total",
				Help:      "Graph snapshots published",
			},
		),
		CacheEntries: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: "cache",
				Name:      "entries",
				Help:      "Records in the in-memory path cache",
			},
		),
	}
}
