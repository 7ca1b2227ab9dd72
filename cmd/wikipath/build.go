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
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/wikipath/services/wikipath/graph"
	"github.com/AleutianAI/wikipath/services/wikipath/ingest"
)

func newBuildCmd(a *app) *cobra.Command {
	var (
		out    string
		shards int
	)
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the link graph from TSV records and write its manifest",
		Long: `Reads pages, redirects and link shards (optionally gzipped), builds
the link graph and writes a sharded manifest that serve, search and rank load.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				out = filepath.Dir(a.cfg.Graph.Manifest)
			}
			if shards <= 0 {
				shards = a.cfg.Graph.Shards
			}
			return a.runBuild(cmd, out, shards)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output directory (default: the configured manifest's directory)")
	cmd.Flags().IntVar(&shards, "shards", 0, "number of shard files (default: from config)")
	return cmd
}

func (a *app) runBuild(cmd *cobra.Command, out string, shards int) error {
	ctx := cmd.Context()
	logger := a.logger.Slog().With(slog.String("command", "build"))
	start := time.Now()

	src, err := ingest.OpenFiles(ctx, a.cfg.Graph.Records,
		ingest.WithLogger(logger),
		ingest.WithWorkers(a.cfg.Graph.Workers))
	if err != nil {
		return err
	}
	defer src.Close()

	table, result, err := ingest.Build(ctx, src,
		graph.WithLogger(logger),
		graph.WithProgressCallback(func(p graph.BuildProgress) {
			logger.Info("build phase",
				slog.String("phase", p.Phase.String()),
				slog.Int("pages", p.Pages),
				slog.Int("redirects", p.Redirects),
				slog.Int("links", p.Links))
		}))
	if err != nil {
		return fmt.Errorf("build graph: %w", err)
	}

	if err := os.MkdirAll(out, 0750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	m, err := graph.ExportManifest(ctx, table, out, shards, result.Aliases)
	if err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), renderBuild(result, m, filepath.Join(out, graph.ManifestFile), time.Since(start)))
	return nil
}
