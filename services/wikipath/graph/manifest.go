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
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// ManifestVersion is the manifest format written by ExportManifest.
const ManifestVersion = 1

// ManifestFile is the manifest file name inside an export directory.
const ManifestFile = "manifest.json"

// Manifest is the index of an exported graph.
//
// Description:
//
//	An export directory holds the manifest, one JSON-lines file per shard
//	and a CSV of titles. Shard lines store each node's neighbors as
//	external ids with the two zone offsets, so a graph can be reloaded
//	without rerunning the builder.
type Manifest struct {
	Version   int         `json:"version"`
	CreatedAt time.Time   `json:"created_at"`
	NodeCount int         `json:"node_count"`
	EdgeCount int         `json:"edge_count"`
	Shards    []ShardInfo `json:"shards"`
	Titles    string      `json:"titles"`
	AliasFile string      `json:"aliases,omitempty"`

	aliases map[string]NodeID
}

// Aliases returns the alias titles loaded by ImportManifest.
func (m *Manifest) Aliases() map[string]NodeID {
	return m.aliases
}

// Stamp identifies the exported graph. Two exports of the same table at
// different times have different stamps.
func (m *Manifest) Stamp() string {
	return fmt.Sprintf("%d/%s/%d/%d", m.Version, m.CreatedAt.UTC().Format(time.RFC3339Nano), m.NodeCount, m.EdgeCount)
}

// ShardInfo names one shard file and its node count.
type ShardInfo struct {
	File  string `json:"file"`
	Nodes int    `json:"nodes"`
}

// shardLine is one JSON line of a shard file.
type shardLine struct {
	ID         NodeID   `json:"id"`
	Neighbors  []NodeID `json:"neighbors"`
	LastParent uint32   `json:"last_parent"`
	FirstChild uint32   `json:"first_child"`
}

// ExportManifest writes t into dir as a manifest, shards and titles.
//
// Description:
//
//	Nodes are split into contiguous NodeIndex ranges, one per shard, and
//	shards are written in parallel. The manifest is written last through
//	a temporary file and rename, so a reader never sees a manifest whose
//	shards are incomplete.
//
// Inputs:
//   - ctx: Context for cancellation.
//   - t: The graph to export.
//   - dir: Output directory. Created if missing.
//   - shards: Number of shard files. Values < 1 mean 1.
//   - aliases: Extra titles for existing pages, usually
//     BuildResult.Aliases. May be nil.
//
// Outputs:
//   - *Manifest: The manifest that was written.
//   - error: Non-nil on I/O failure or cancellation.
func ExportManifest(ctx context.Context, t *Table, dir string, shards int, aliases map[string]NodeID) (*Manifest, error) {
	ctx, span := tracer.Start(ctx, "Graph.ExportManifest")
	defer span.End()

	if shards < 1 {
		shards = 1
	}
	if shards > t.Len() && t.Len() > 0 {
		shards = t.Len()
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create export directory %s: %w", dir, err)
	}

	m := &Manifest{
		Version:   ManifestVersion,
		CreatedAt: time.Now().UTC(),
		NodeCount: t.Len(),
		EdgeCount: t.EdgeCount(),
		Shards:    make([]ShardInfo, shards),
		Titles:    "titles.csv",
	}

	g, gctx := errgroup.WithContext(ctx)
	per := (t.Len() + shards - 1) / shards
	for s := 0; s < shards; s++ {
		lo := min(s*per, t.Len())
		hi := min(lo+per, t.Len())
		name := fmt.Sprintf("shard-%04d.jsonl", s)
		m.Shards[s] = ShardInfo{File: name, Nodes: hi - lo}
		g.Go(func() error {
			return writeShard(gctx, t, filepath.Join(dir, name), lo, hi)
		})
	}
	g.Go(func() error {
		return writeTitles(gctx, t, filepath.Join(dir, m.Titles))
	})
	if len(aliases) > 0 {
		m.AliasFile = "aliases.csv"
		g.Go(func() error {
			return writeAliases(gctx, aliases, filepath.Join(dir, m.AliasFile))
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := writeManifest(filepath.Join(dir, ManifestFile), m); err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("manifest.shards", shards),
		attribute.Int("manifest.nodes", m.NodeCount),
	)
	return m, nil
}

func writeShard(ctx context.Context, t *Table, path string, lo, hi int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create shard %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for i := lo; i < hi; i++ {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		e := t.Entry(NodeIndex(i))
		neighbors, lastParent, firstChild := e.Neighbors()
		line := shardLine{
			ID:         t.IDOf(NodeIndex(i)),
			Neighbors:  make([]NodeID, len(neighbors)),
			LastParent: lastParent,
			FirstChild: firstChild,
		}
		for j, nb := range neighbors {
			line.Neighbors[j] = t.IDOf(nb)
		}
		if err := enc.Encode(&line); err != nil {
			return fmt.Errorf("write shard %s: %w", path, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush shard %s: %w", path, err)
	}
	return f.Close()
}

func writeTitles(ctx context.Context, t *Table, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create titles %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(bufio.NewWriter(f))
	for idx, e := range t.All() {
		if int(idx)%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := w.Write([]string{strconv.FormatUint(uint64(t.IDOf(idx)), 10), e.Title()}); err != nil {
			return fmt.Errorf("write titles %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush titles %s: %w", path, err)
	}
	return f.Close()
}

func writeAliases(ctx context.Context, aliases map[string]NodeID, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create aliases %s: %w", path, err)
	}
	defer f.Close()

	keys := make([]string, 0, len(aliases))
	for title := range aliases {
		keys = append(keys, title)
	}
	slices.Sort(keys)

	w := csv.NewWriter(bufio.NewWriter(f))
	for _, title := range keys {
		if err := w.Write([]string{strconv.FormatUint(uint64(aliases[title]), 10), title}); err != nil {
			return fmt.Errorf("write aliases %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush aliases %s: %w", path, err)
	}
	return f.Close()
}

func writeManifest(path string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0640); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("install manifest: %w", err)
	}
	return nil
}

// ReadManifest reads and checks a manifest file without loading shards.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptManifest, err)
	}
	if m.Version != ManifestVersion {
		return nil, fmt.Errorf("%w: %d", ErrManifestVersion, m.Version)
	}
	return &m, nil
}

// ImportManifest loads a graph exported by ExportManifest.
//
// Description:
//
//	Shards and the titles file are decoded on separate goroutines. All
//	of them must finish before the table is assembled; the table is then
//	validated exactly like a freshly built one.
//
// Inputs:
//   - ctx: Context for cancellation.
//   - path: Path to the manifest file.
//
// Outputs:
//   - *Table: The loaded graph.
//   - *Manifest: The manifest that described it.
//   - error: ErrManifestVersion, ErrCorruptManifest, a validation error
//     from NewTable, or an I/O error.
func ImportManifest(ctx context.Context, path string) (*Table, *Manifest, error) {
	ctx, span := tracer.Start(ctx, "Graph.ImportManifest")
	defer span.End()
	start := time.Now()

	m, err := ReadManifest(path)
	if err != nil {
		return nil, nil, err
	}
	dir := filepath.Dir(path)

	shardSpecs := make([][]NodeSpec, len(m.Shards))
	titles := make(map[NodeID]string, m.NodeCount)
	aliases := make(map[string]NodeID)

	g, gctx := errgroup.WithContext(ctx)
	for i, sh := range m.Shards {
		g.Go(func() error {
			specs, err := readShard(gctx, filepath.Join(dir, sh.File))
			if err != nil {
				return err
			}
			if len(specs) != sh.Nodes {
				return fmt.Errorf("%w: shard %s has %d nodes, manifest says %d",
					ErrCorruptManifest, sh.File, len(specs), sh.Nodes)
			}
			shardSpecs[i] = specs
			return nil
		})
	}
	g.Go(func() error {
		return readIDTitles(gctx, filepath.Join(dir, m.Titles), func(id NodeID, title string) {
			titles[id] = title
		})
	})
	if m.AliasFile != "" {
		g.Go(func() error {
			return readIDTitles(gctx, filepath.Join(dir, m.AliasFile), func(id NodeID, title string) {
				aliases[title] = id
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	specs := make([]NodeSpec, 0, m.NodeCount)
	for _, s := range shardSpecs {
		for _, spec := range s {
			title, ok := titles[spec.ID]
			if !ok {
				return nil, nil, fmt.Errorf("%w: node %d has no title", ErrCorruptManifest, spec.ID)
			}
			spec.Title = title
			specs = append(specs, spec)
		}
	}
	if len(specs) != m.NodeCount {
		return nil, nil, fmt.Errorf("%w: %d nodes, manifest says %d",
			ErrCorruptManifest, len(specs), m.NodeCount)
	}

	t, err := NewTable(specs)
	if err != nil {
		return nil, nil, fmt.Errorf("assemble table: %w", err)
	}
	if t.EdgeCount() != m.EdgeCount {
		return nil, nil, fmt.Errorf("%w: %d edges, manifest says %d",
			ErrCorruptManifest, t.EdgeCount(), m.EdgeCount)
	}

	m.aliases = make(map[string]NodeID, len(aliases))
	for title, id := range aliases {
		if _, ok := t.IndexOf(id); ok {
			m.aliases[title] = id
		}
	}

	slog.Info("graph imported",
		slog.String("manifest", path),
		slog.Int("nodes", t.Len()),
		slog.Int("edges", t.EdgeCount()),
		slog.Int("shards", len(m.Shards)),
		slog.Int("aliases", len(m.aliases)),
		slog.Duration("duration", time.Since(start)))
	return t, m, nil
}

func readShard(ctx context.Context, path string) ([]NodeSpec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open shard: %w", err)
	}
	defer f.Close()

	var specs []NodeSpec
	dec := json.NewDecoder(bufio.NewReader(f))
	for n := 0; ; n++ {
		if n%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		var line shardLine
		err := dec.Decode(&line)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: shard %s line %d: %v", ErrCorruptManifest, path, n+1, err)
		}
		size := uint32(len(line.Neighbors))
		if line.LastParent > line.FirstChild || line.FirstChild > size {
			return nil, fmt.Errorf("%w: shard %s node %d has offsets %d/%d of %d",
				ErrCorruptManifest, path, line.ID, line.LastParent, line.FirstChild, size)
		}
		specs = append(specs, NodeSpec{
			ID:       line.ID,
			Parents:  line.Neighbors[:line.FirstChild],
			Children: line.Neighbors[line.LastParent:],
		})
	}
	return specs, nil
}

// readIDTitles reads an "id,title" CSV file and calls fn for every row.
func readIDTitles(ctx context.Context, path string, fn func(id NodeID, title string)) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	r := csv.NewReader(bufio.NewReader(f))
	r.FieldsPerRecord = 2
	r.ReuseRecord = true
	for n := 0; ; n++ {
		if n%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrCorruptManifest, filepath.Base(path), err)
		}
		id, err := strconv.ParseUint(rec[0], 10, 32)
		if err != nil {
			return fmt.Errorf("%w: %s line %d: %v", ErrCorruptManifest, filepath.Base(path), n+1, err)
		}
		fn(NodeID(id), rec[1])
	}
}
