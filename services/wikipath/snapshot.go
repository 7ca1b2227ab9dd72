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
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/wikipath/services/wikipath/graph"
	"github.com/AleutianAI/wikipath/services/wikipath/titles"
)

// Snapshot is one loaded graph with everything derived from it.
//
// Thread Safety: Immutable once published, except for the lazily
// computed PageRank which is guarded internally.
type Snapshot struct {
	Table    *graph.Table
	Titles   *titles.Index
	Manifest *graph.Manifest
	LoadedAt time.Time

	// Stamp identifies the graph in the persistent cache.
	Stamp string

	rankMu sync.Mutex
	rank   *graph.PageRankResult
}

// NewSnapshot indexes the titles of t. aliases may be nil.
func NewSnapshot(ctx context.Context, t *graph.Table, aliases map[string]graph.NodeID, stamp string) *Snapshot {
	return &Snapshot{
		Table:    t,
		Titles:   titles.New(ctx, t, aliases),
		LoadedAt: time.Now(),
		Stamp:    stamp,
	}
}

// LoadSnapshot imports a manifest written by graph.ExportManifest.
func LoadSnapshot(ctx context.Context, path string, logger *slog.Logger) (*Snapshot, error) {
	start := time.Now()
	t, m, err := graph.ImportManifest(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("load manifest %s: %w", path, err)
	}
	s := NewSnapshot(ctx, t, m.Aliases(), m.Stamp())
	s.Manifest = m
	logger.Info("graph snapshot loaded",
		slog.String("manifest", path),
		slog.Int("nodes", t.Len()),
		slog.Int("edges", t.EdgeCount()),
		slog.Int("titles", s.Titles.Len()),
		slog.Duration("duration", time.Since(start)))
	return s, nil
}

// PageRank returns the PageRank of the snapshot's graph, computing it on
// first use. A run cut short by ctx is returned but not kept.
func (s *Snapshot) PageRank(ctx context.Context, opts *graph.PageRankOptions) *graph.PageRankResult {
	s.rankMu.Lock()
	defer s.rankMu.Unlock()
	if s.rank != nil {
		return s.rank
	}
	r := graph.PageRank(ctx, s.Table, opts)
	if ctx.Err() == nil {
		s.rank = r
	}
	return r
}
