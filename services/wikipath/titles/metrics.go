// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package titles

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("wikipath.titles")
	meter  = otel.Meter("wikipath.titles")
)

var (
	lookupLatency metric.Float64Histogram
	lookupTotal   metric.Int64Counter
	indexSize     metric.Int64Gauge
	suggestions   metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		lookupLatency, err = meter.Float64Histogram(
			"titles_lookup_duration_seconds",
			metric.WithDescription("Duration of title lookups"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		lookupTotal, err = meter.Int64Counter(
			"titles_lookup_total",
			metric.WithDescription("Title lookups by match kind"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		indexSize, err = meter.Int64Gauge(
			"titles_index_size",
			metric.WithDescription("Number of titles in the index"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		suggestions, err = meter.Int64Histogram(
			"titles_suggestions",
			metric.WithDescription("Number of suggestions per unresolved lookup"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func startLookupSpan(ctx context.Context, query string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Titles.Resolve",
		trace.WithAttributes(attribute.Int("titles.query_length", len(query))),
	)
}

func recordLookup(ctx context.Context, kind MatchKind, duration time.Duration, suggested int) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("match", kind.String()))
	lookupLatency.Record(ctx, duration.Seconds(), attrs)
	lookupTotal.Add(ctx, 1, attrs)
	if kind == MatchNone {
		suggestions.Record(ctx, int64(suggested))
	}
}

func recordIndexSize(ctx context.Context, size int) {
	if err := initMetrics(); err != nil {
		return
	}
	indexSize.Record(ctx, int64(size))
}
