// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for graph operations.
var (
	tracer = otel.Tracer("wikipath.graph")
	meter  = otel.Meter("wikipath.graph")
)

// Metrics for graph building and searching.
var (
	buildLatency  metric.Float64Histogram
	buildTotal    metric.Int64Counter
	nodesBuilt    metric.Int64Histogram
	edgesBuilt    metric.Int64Histogram
	searchLatency metric.Float64Histogram
	searchTotal   metric.Int64Counter
	searchLength  metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		buildLatency, err = meter.Float64Histogram(
			"graph_build_duration_seconds",
			metric.WithDescription("Duration of graph builds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		buildTotal, err = meter.Int64Counter(
			"graph_build_total",
			metric.WithDescription("Total number of graph builds"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		nodesBuilt, err = meter.Int64Histogram(
			"graph_nodes_built",
			metric.WithDescription("Number of nodes per finalized graph"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		edgesBuilt, err = meter.Int64Histogram(
			"graph_edges_built",
			metric.WithDescription("Number of links per finalized graph"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		searchLatency, err = meter.Float64Histogram(
			"graph_search_duration_seconds",
			metric.WithDescription("Duration of bidirectional searches"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		searchTotal, err = meter.Int64Counter(
			"graph_search_total",
			metric.WithDescription("Total number of searches by outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		searchLength, err = meter.Int64Histogram(
			"graph_search_path_length",
			metric.WithDescription("Length in links of successful searches"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordBuildMetrics records metrics for a finished build.
func recordBuildMetrics(ctx context.Context, duration time.Duration, nodeCount, edgeCount int) {
	if err := initMetrics(); err != nil {
		return
	}
	buildLatency.Record(ctx, duration.Seconds())
	buildTotal.Add(ctx, 1)
	nodesBuilt.Record(ctx, int64(nodeCount))
	edgesBuilt.Record(ctx, int64(edgeCount))
}

// recordSearchMetrics records metrics for a finished search.
func recordSearchMetrics(ctx context.Context, duration time.Duration, p Path) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", p.Outcome.String()))
	searchLatency.Record(ctx, duration.Seconds(), attrs)
	searchTotal.Add(ctx, 1, attrs)
	if p.Outcome == OutcomeSuccess {
		searchLength.Record(ctx, int64(p.Len()))
	}
}

// startBuildSpan creates a span for graph finalization.
func startBuildSpan(ctx context.Context) (context.Context, trace.Span) {
	return tracer.Start(ctx, "GraphBuilder.Finalize")
}

// setBuildSpanResult sets the result attributes on a build span.
func setBuildSpanResult(span trace.Span, nodeCount, edgeCount, skipped int) {
	span.SetAttributes(
		attribute.Int("graph.node_count", nodeCount),
		attribute.Int("graph.edge_count", edgeCount),
		attribute.Int("graph.skipped_records", skipped),
	)
}

// startSearchSpan creates a span for a search.
func startSearchSpan(ctx context.Context, src, dst NodeIndex) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Graph.Search",
		trace.WithAttributes(
			attribute.Int64("graph.src", int64(src)),
			attribute.Int64("graph.dst", int64(dst)),
		),
	)
}
