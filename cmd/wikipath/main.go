// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command wikipath finds shortest link paths between Wikipedia articles.
//
// Usage:
//
//	wikipath build --config wikipath.yaml
//	wikipath serve --config wikipath.yaml
//	wikipath search "Lion" "Moon"
//	wikipath rank --limit 20
//	wikipath longest "Moon"
//
// Example requests against a running server:
//
//	# Health check
//	curl http://localhost:8080/v1/wikipath/health
//
//	# Shortest path, endpoints by title or by page id
//	curl 'http://localhost:8080/v1/wikipath/search?src=Lion&dst=id:4262'
//
//	# Most popular remembered searches
//	curl 'http://localhost:8080/v1/wikipath/cache?sort=popular&limit=10'
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/wikipath/cmd/wikipath/config"
	"github.com/AleutianAI/wikipath/pkg/logging"
)

// app carries what every command needs once flags are parsed.
type app struct {
	configPath string
	logLevel   string

	cfg    config.Config
	logger *logging.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	a := &app{}
	err := newRootCmd(a).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, styles.Error.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "wikipath",
		Short: "Shortest link paths between Wikipedia articles",
		Long: `wikipath builds a link graph from Wikipedia dump records and
answers shortest path queries over it, from the command line or over HTTP.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				a.logger.Close()
			}
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (.yaml, .yml or .toml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override the configured log level")

	root.AddCommand(
		newBuildCmd(a),
		newServeCmd(a),
		newSearchCmd(a),
		newRankCmd(a),
		newLongestCmd(a),
		newInitConfigCmd(a),
	)
	return root
}

// setup loads the configuration and installs the logger.
func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Log.Dir,
		Service: "wikipath",
		JSON:    cfg.Log.JSON,
		Color:   logging.Color(cfg.Log.Color),
	})
	slog.SetDefault(a.logger.Slog())
	return nil
}

func newInitConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init-config PATH",
		Short: "Write the default configuration to PATH",
		Args:  cobra.ExactArgs(1),
		// The default configuration must be writable without a valid one.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.WriteDefault(args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), styles.Success.Render("Configuration written to "+args[0]))
			return nil
		},
	}
}
