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
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/wikipath/services/wikipath"
)

// loadService loads the configured manifest into a memory-only service.
func (a *app) loadService(ctx context.Context) (*wikipath.Service, error) {
	logger := a.logger.Slog()
	snap, err := wikipath.LoadSnapshot(ctx, a.cfg.Graph.Manifest, logger)
	if err != nil {
		return nil, err
	}
	svc := wikipath.NewService(serviceConfig(a.cfg), wikipath.WithLogger(logger))
	if err := svc.Publish(ctx, snap); err != nil {
		return nil, err
	}
	return svc, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newSearchCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "search SRC DST",
		Short: "Find the shortest link path between two articles",
		Long: `Finds the shortest link path from SRC to DST. Articles are titles,
matched exactly or ignoring case, or page ids written as id:<n>.
Run without arguments in a terminal to be prompted for both.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && interactive() {
				return nil
			}
			return cobra.ExactArgs(2)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.loadService(cmd.Context())
			if err != nil {
				return err
			}
			if len(args) == 0 {
				src, dst, err := promptEndpoints(cmd.Context(), svc)
				if err != nil {
					return err
				}
				args = []string{src, dst}
			}
			resp, err := svc.Search(cmd.Context(), args[0], args[1])
			if err != nil {
				return describeError(err)
			}
			a.logger.Slog().Debug("search answered", slog.Float64("duration_ms", resp.DurationMs))
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), resp)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderSearch(resp))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the response as JSON")
	return cmd
}

func newRankCmd(a *app) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "rank",
		Short: "List the articles with the highest PageRank",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.loadService(cmd.Context())
			if err != nil {
				return err
			}
			resp, err := svc.Rank(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), resp)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderRank(resp))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of articles")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the response as JSON")
	return cmd
}

func newLongestCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "longest DST",
		Short: "Find the articles farthest from DST by shortest path",
		Long: `Explores every article that links to DST, directly or not, and
reports those whose shortest path to DST is the longest.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.loadService(cmd.Context())
			if err != nil {
				return err
			}
			resp, err := svc.Farthest(cmd.Context(), args[0])
			if err != nil {
				return describeError(err)
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), resp)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderFarthest(resp))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the response as JSON")
	return cmd
}
