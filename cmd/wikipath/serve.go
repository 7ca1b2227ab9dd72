// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/wikipath/cmd/wikipath/config"
	"github.com/AleutianAI/wikipath/services/wikipath"
	"github.com/AleutianAI/wikipath/services/wikipath/ratelimit"
	"github.com/AleutianAI/wikipath/services/wikipath/reload"
	"github.com/AleutianAI/wikipath/services/wikipath/storage/badger"
	"github.com/AleutianAI/wikipath/services/wikipath/telemetry"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve path queries over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			return a.runServe(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: from config)")
	return cmd
}

// serviceConfig maps the command configuration onto the service's.
func serviceConfig(cfg config.Config) wikipath.ServiceConfig {
	sc := wikipath.DefaultServiceConfig()
	sc.ManifestPath = cfg.Graph.Manifest
	sc.SearchTimeout = cfg.Server.SearchTimeout
	sc.CacheCapacity = cfg.Cache.Capacity
	sc.LongestSize = cfg.Cache.Longest
	sc.ArticleURL = cfg.Server.ArticleURL
	return sc
}

func (a *app) runServe(ctx context.Context) error {
	logger := a.logger.Slog().With(slog.String("command", "serve"))

	shutdownTelemetry, err := telemetry.Init(ctx, a.cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(sctx); err != nil {
			logger.Warn("Telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	metrics := wikipath.NewMetrics(prometheus.DefaultRegisterer)
	opts := []wikipath.ServiceOption{wikipath.WithMetrics(metrics), wikipath.WithLogger(logger)}
	if a.cfg.Cache.Dir != "" {
		bcfg := badger.DefaultConfig()
		bcfg.Path = a.cfg.Cache.Dir
		bcfg.Logger = logger
		db, err := badger.Open(bcfg)
		if err != nil {
			return err
		}
		defer db.Close()
		opts = append(opts, wikipath.WithPathStore(badger.NewPathStore(db)))
		logger.Info("Persistent path cache enabled", slog.String("dir", a.cfg.Cache.Dir))
	}
	svc := wikipath.NewService(serviceConfig(a.cfg), opts...)

	// The server comes up before the graph so that readiness can be probed
	// while a large manifest loads.
	loadErr := make(chan error, 1)
	go func() {
		loadErr <- svc.Reload(ctx)
	}()

	if a.cfg.Graph.Watch {
		wopts := reload.DefaultOptions()
		wopts.Logger = logger
		watcher, err := reload.NewWatcher(a.cfg.Graph.Manifest, svc.Reload, &wopts)
		if err != nil {
			return err
		}
		if err := watcher.Start(ctx); err != nil {
			return err
		}
		defer watcher.Stop()
	}

	var limiter *ratelimit.Limiter
	if rl := a.cfg.Server.RateLimit; rl.Requests > 0 {
		limiter = ratelimit.NewLimiter(rl.Requests, rl.Window, rl.Burst)
		defer limiter.Close()
	}

	gin.SetMode(gin.ReleaseMode)
	router := wikipath.NewRouter(svc, metrics, wikipath.RouterConfig{
		TraceName:      a.cfg.Telemetry.ServiceName,
		MetricsHandler: telemetry.MetricsHandler(),
		Limiter:        limiter,
	})
	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting wikipath server", slog.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	for {
		select {
		case err := <-loadErr:
			if err != nil {
				logger.Error("Failed to load graph", slog.String("error", err.Error()))
				if !a.cfg.Graph.Watch {
					return shutdown(srv, a.cfg.Server.ShutdownTimeout, err)
				}
				logger.Info("Waiting for the manifest to be replaced", slog.String("manifest", a.cfg.Graph.Manifest))
			}
			loadErr = nil
		case err, ok := <-serveErr:
			if ok {
				return fmt.Errorf("server failed: %w", err)
			}
			return nil
		case <-ctx.Done():
			logger.Info("Shutting down wikipath server")
			return shutdown(srv, a.cfg.Server.ShutdownTimeout, nil)
		}
	}
}

// shutdown stops srv gracefully and returns cause, or the shutdown error
// if cause is nil.
func shutdown(srv *http.Server, timeout time.Duration, cause error) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && cause == nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return cause
}
