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
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func manifestFixture(t *testing.T) *Table {
	t.Helper()
	pages := NewBuilder()
	pages.AddPage(1, "Alpha", false)
	pages.AddPage(2, "Beta, with comma", false)
	pages.AddPage(3, `Gamma "quoted"`, false)
	pages.AddPage(4, "Delta", false)
	pages.AddPage(5, "Epsilon", false)
	links := pages.Redirects().Links()
	links.AddLink(1, "Beta, with comma")
	links.AddLink(2, "Alpha")
	links.AddLink(2, `Gamma "quoted"`)
	links.AddLink(3, "Delta")
	links.AddLink(4, "Alpha")
	table, _ := links.Finalize()
	return table
}

func TestManifest_RoundTrip(t *testing.T) {
	ctx := context.Background()
	table := manifestFixture(t)

	for _, shards := range []int{1, 2, 3, 10} {
		dir := t.TempDir()
		m, err := ExportManifest(ctx, table, dir, shards, nil)
		require.NoError(t, err)
		assert.Equal(t, ManifestVersion, m.Version)
		assert.Equal(t, table.Len(), m.NodeCount)
		assert.LessOrEqual(t, len(m.Shards), table.Len())

		total := 0
		for _, sh := range m.Shards {
			total += sh.Nodes
			assert.FileExists(t, filepath.Join(dir, sh.File))
		}
		assert.Equal(t, table.Len(), total)

		loaded, lm, err := ImportManifest(ctx, filepath.Join(dir, ManifestFile))
		require.NoError(t, err)
		assert.Equal(t, m.NodeCount, lm.NodeCount)
		require.Equal(t, table.Len(), loaded.Len())
		assert.Equal(t, table.EdgeCount(), loaded.EdgeCount())
		for idx := range table.All() {
			assert.Equal(t, table.Spec(idx), loaded.Spec(idx))
		}

		p := Search(loaded, mustIndex(t, loaded, 1), mustIndex(t, loaded, 4))
		assert.Equal(t, 3, p.Len())
	}
}

func TestManifest_Errors(t *testing.T) {
	ctx := context.Background()
	table := manifestFixture(t)

	t.Run("missing manifest", func(t *testing.T) {
		_, _, err := ImportManifest(ctx, filepath.Join(t.TempDir(), ManifestFile))
		assert.Error(t, err)
	})

	t.Run("wrong version", func(t *testing.T) {
		dir := t.TempDir()
		m, err := ExportManifest(ctx, table, dir, 1, nil)
		require.NoError(t, err)
		m.Version = ManifestVersion + 1
		data, err := json.Marshal(m)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestFile), data, 0640))

		_, _, err = ImportManifest(ctx, filepath.Join(dir, ManifestFile))
		assert.ErrorIs(t, err, ErrManifestVersion)
	})

	t.Run("not json", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestFile), []byte("{"), 0640))
		_, _, err := ImportManifest(ctx, filepath.Join(dir, ManifestFile))
		assert.ErrorIs(t, err, ErrCorruptManifest)
	})

	t.Run("node count mismatch", func(t *testing.T) {
		dir := t.TempDir()
		m, err := ExportManifest(ctx, table, dir, 2, nil)
		require.NoError(t, err)
		m.Shards[0].Nodes++
		data, err := json.Marshal(m)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestFile), data, 0640))

		_, _, err = ImportManifest(ctx, filepath.Join(dir, ManifestFile))
		assert.ErrorIs(t, err, ErrCorruptManifest)
	})

	t.Run("truncated shard", func(t *testing.T) {
		dir := t.TempDir()
		m, err := ExportManifest(ctx, table, dir, 1, nil)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, m.Shards[0].File), []byte(`{"id":1,"neigh`), 0640))

		_, _, err = ImportManifest(ctx, filepath.Join(dir, ManifestFile))
		assert.ErrorIs(t, err, ErrCorruptManifest)
	})

	t.Run("bad offsets", func(t *testing.T) {
		dir := t.TempDir()
		m, err := ExportManifest(ctx, table, dir, 1, nil)
		require.NoError(t, err)
		line := `{"id":1,"neighbors":[2],"last_parent":1,"first_child":0}` + "\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, m.Shards[0].File), []byte(line), 0640))

		_, _, err = ImportManifest(ctx, filepath.Join(dir, ManifestFile))
		assert.ErrorIs(t, err, ErrCorruptManifest)
	})

	t.Run("cancelled", func(t *testing.T) {
		dir := t.TempDir()
		_, err := ExportManifest(ctx, table, dir, 1, nil)
		require.NoError(t, err)

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, _, err = ImportManifest(cctx, filepath.Join(dir, ManifestFile))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestManifest_Aliases(t *testing.T) {
	ctx := context.Background()
	table := manifestFixture(t)
	dir := t.TempDir()

	aliases := map[string]NodeID{"First letter": 1, "Fourth": 4, "Gone": 99}
	m, err := ExportManifest(ctx, table, dir, 2, aliases)
	require.NoError(t, err)
	assert.Equal(t, "aliases.csv", m.AliasFile)

	_, loaded, err := ImportManifest(ctx, filepath.Join(dir, ManifestFile))
	require.NoError(t, err)
	assert.Equal(t, map[string]NodeID{"First letter": 1, "Fourth": 4}, loaded.Aliases())
}

func TestManifest_Stamp(t *testing.T) {
	m := &Manifest{Version: 1, CreatedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC), NodeCount: 3, EdgeCount: 2}
	assert.Equal(t, "1/2025-03-01T12:00:00Z/3/2", m.Stamp())

	later := *m
	later.CreatedAt = later.CreatedAt.Add(time.Second)
	assert.NotEqual(t, m.Stamp(), later.Stamp())
}
