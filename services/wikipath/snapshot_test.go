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
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/wikipath/services/wikipath/graph"
)

func TestLoadSnapshot(t *testing.T) {
	ctx := context.Background()
	src := testSnapshot(t, "")
	dir := t.TempDir()
	m, err := graph.ExportManifest(ctx, src.Table, dir, 2, map[string]graph.NodeID{"Alfa": 1})
	require.NoError(t, err)

	snap, err := LoadSnapshot(ctx, filepath.Join(dir, graph.ManifestFile), slog.Default())
	require.NoError(t, err)
	assert.Equal(t, m.Stamp(), snap.Stamp)
	assert.Equal(t, 5, snap.Table.Len())

	id, _ := snap.Titles.Lookup("Alfa")
	assert.Equal(t, graph.NodeID(1), id)

	_, err = LoadSnapshot(ctx, filepath.Join(dir, "missing.json"), slog.Default())
	assert.Error(t, err)
}

func TestSnapshot_PageRankCached(t *testing.T) {
	snap := testSnapshot(t, "one")

	cctx, cancel := context.WithCancel(context.Background())
	cancel()
	partial := snap.PageRank(cctx, nil)
	assert.False(t, partial.Converged)

	first := snap.PageRank(context.Background(), nil)
	assert.True(t, first.Converged)
	assert.NotSame(t, partial, first)
	assert.Same(t, first, snap.PageRank(context.Background(), nil))
}
