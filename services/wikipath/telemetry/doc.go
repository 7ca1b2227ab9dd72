// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry wires OpenTelemetry for the wikipath service.
//
// Packages create their tracers and meters with otel.Tracer and otel.Meter.
// Init installs the providers behind them, so instrumented code works
// unchanged whether telemetry is exported or not.
//
// # Backends
//
// Traces go to an OTLP collector (Jaeger by default) or stdout. Metrics
// are exposed through the Prometheus exporter and served by the HTTP
// server at /metrics, next to the service's own Prometheus collectors.
//
// # Environment Variables
//
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint (default: localhost:4317)
//   - OTEL_TRACES_EXPORTER: otlp, stdout, or none (default: none)
//   - OTEL_METRICS_EXPORTER: prometheus, stdout, or none (default: prometheus)
//   - WIKIPATH_ENV: environment name (default: development)
//
// # Thread Safety
//
// All exported functions are safe for concurrent use after Init returns.
package telemetry
