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
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// link is a test edge between two page ids.
type link struct{ src, dst NodeID }

// buildGraph builds a table of pages 1..n titled "P<id>" with the given links.
func buildGraph(t *testing.T, n int, links []link) *Table {
	t.Helper()
	b := NewBuilder()
	for id := 1; id <= n; id++ {
		require.True(t, b.AddPage(NodeID(id), pageTitle(NodeID(id)), false))
	}
	lb := b.Redirects().Links()
	for _, l := range links {
		lb.AddLink(l.src, pageTitle(l.dst))
	}
	table, _ := lb.Finalize()
	return table
}

func pageTitle(id NodeID) string {
	return fmt.Sprintf("P%d", id)
}

// recoverValue runs fn and returns whatever it panicked with.
func recoverValue(fn func()) (v any) {
	defer func() { v = recover() }()
	fn()
	return nil
}

// assertTableInvariants checks symmetry and in-range neighbors.
func assertTableInvariants(t *testing.T, table *Table) {
	t.Helper()
	n := NodeIndex(table.Len())
	for p, e := range table.All() {
		neighbors, _, _ := e.Neighbors()
		for _, nb := range neighbors {
			require.Less(t, nb, n, "neighbor of %d out of range", p)
		}
		for _, c := range e.Children() {
			assert.Contains(t, table.Parents(c), p, "%d -> %d has no parent edge", p, c)
		}
		for _, q := range e.Parents() {
			assert.Contains(t, table.Children(q), p, "%d <- %d has no child edge", p, q)
		}
	}
	require.NoError(t, table.Validate())
}

func TestBuilder_SimpleGraph(t *testing.T) {
	table := buildGraph(t, 5, []link{{1, 2}, {2, 3}, {4, 5}})

	assert.Equal(t, 5, table.Len())
	assert.Equal(t, 3, table.EdgeCount())
	assertTableInvariants(t, table)

	a, ok := table.IndexOf(1)
	require.True(t, ok)
	b, _ := table.IndexOf(2)
	assert.Equal(t, []NodeIndex{b}, table.Children(a))
	assert.Equal(t, []NodeIndex{a}, table.Parents(b))
	assert.Equal(t, "P1", table.Title(a))
}

func TestBuilder_RedirectHandling(t *testing.T) {
	pages := NewBuilder()
	pages.AddPage(1, "A", false)
	pages.AddPage(2, "B", false)
	pages.AddPage(3, "R", true)  // R -> B
	pages.AddPage(4, "R2", true) // R2 -> R -> B
	pages.AddPage(5, "C1", true) // C1 <-> C2
	pages.AddPage(6, "C2", true)
	pages.AddPage(7, "U", true) // never gets a target
	pages.AddPage(8, "V", true) // target title unknown

	redirects := pages.Redirects()
	assert.True(t, redirects.AddRedirect(3, "B"))
	assert.True(t, redirects.AddRedirect(4, "R"))
	assert.True(t, redirects.AddRedirect(5, "C2"))
	assert.True(t, redirects.AddRedirect(6, "C1"))
	assert.False(t, redirects.AddRedirect(8, "Missing"))
	assert.False(t, redirects.AddRedirect(2, "A"), "redirect from a page")
	assert.False(t, redirects.AddRedirect(42, "A"), "redirect from unknown id")
	assert.False(t, redirects.AddRedirect(3, "A"), "second redirect for id")

	links := redirects.Links()
	assert.True(t, links.AddLink(1, "R2"), "destination resolved through chain")
	assert.True(t, links.AddLink(1, "B"))
	assert.True(t, links.AddLink(3, "A"), "source resolved through redirect")
	assert.False(t, links.AddLink(1, "C1"), "cyclic title removed by tidy")
	assert.False(t, links.AddLink(5, "A"), "source in a cycle")
	assert.False(t, links.AddLink(7, "A"), "unresolved source")
	assert.False(t, links.AddLink(1, "U"), "unresolved title removed by tidy")
	assert.False(t, links.AddLink(1, "A"), "self loop")
	assert.False(t, links.AddLink(99, "A"), "unknown source")
	assert.False(t, links.AddLink(1, "Nope"), "unknown title")

	table, result := links.Finalize()
	s := result.Stats

	assert.Equal(t, 2, s.Pages)
	assert.Equal(t, 6, s.Redirects)
	assert.Equal(t, 4, s.ResolvedRedirects)
	assert.Equal(t, 1, s.UnknownRedirectTargets)
	assert.Equal(t, 1, s.RedirectsFromPages)
	assert.Equal(t, 1, s.MissingRedirectSources)
	assert.Equal(t, 1, s.DuplicateRedirects)
	assert.Equal(t, 2, s.UnresolvedRedirects)
	assert.Equal(t, 2, s.RepointedTitles)
	assert.Equal(t, 4, s.RemovedTitles)
	assert.Equal(t, 3, s.LinksAdded)
	assert.Equal(t, 1, s.RedirectCycles)
	assert.Equal(t, 1, s.UnresolvedLinks)
	assert.Equal(t, 3, s.UnknownLinkTargets)
	assert.Equal(t, 1, s.UnknownLinkSources)
	assert.Equal(t, 1, s.SelfLoops)
	assert.Equal(t, 1, s.DuplicateLinks)
	assert.Equal(t, 4, s.StrippedRedirects)
	assert.True(t, result.HasSkips())
	assert.Equal(t, map[string]NodeID{"R": 2, "R2": 2}, result.Aliases)

	// Only the two pages survive, linked both ways.
	require.Equal(t, 2, table.Len())
	assert.Equal(t, 2, table.EdgeCount())
	for _, id := range []NodeID{3, 4, 5, 6, 7, 8} {
		_, ok := table.IndexOf(id)
		assert.False(t, ok, "redirect %d survived", id)
	}
	a, _ := table.IndexOf(1)
	b, _ := table.IndexOf(2)
	assert.Equal(t, []NodeIndex{b}, table.Children(a))
	assert.Equal(t, []NodeIndex{a}, table.Children(b))
	assert.Equal(t, 1, table.Entry(a).SharedCount())
	assertTableInvariants(t, table)
}

func TestBuilder_AddPage(t *testing.T) {
	b := NewBuilder()

	assert.True(t, b.AddPage(1, "A", false))
	assert.False(t, b.AddPage(1, "Other", false), "duplicate id")
	assert.True(t, b.AddPage(2, "A", false), "duplicate title keeps the page")
	assert.False(t, b.AddPage(NodeID(math.MaxUint32), "Reserved", false))

	links := b.Redirects().Links()
	assert.True(t, links.AddLink(2, "A"), "title still points at the first page")

	table, result := links.Finalize()
	assert.Equal(t, 1, result.Stats.DuplicatePages)
	assert.Equal(t, 1, result.Stats.DuplicateTitles)
	assert.Equal(t, 1, result.Stats.InvalidIDs)
	assert.Equal(t, 2, table.Len())
	assert.Equal(t, PhaseDone.String(), "done")
}

func TestBuilder_PhaseMisusePanics(t *testing.T) {
	t.Run("page after redirects", func(t *testing.T) {
		pages := NewBuilder()
		pages.Redirects()
		v := recoverValue(func() { pages.AddPage(1, "A", false) })
		var pe *PhaseError
		require.ErrorAs(t, v.(error), &pe)
		assert.Equal(t, PhaseAddRedirects, pe.Phase)
	})

	t.Run("redirect after links", func(t *testing.T) {
		redirects := NewBuilder().Redirects()
		redirects.Links()
		v := recoverValue(func() { redirects.AddRedirect(1, "A") })
		var pe *PhaseError
		require.ErrorAs(t, v.(error), &pe)
		assert.Equal(t, PhaseAddLinks, pe.Phase)
	})

	t.Run("finalize twice", func(t *testing.T) {
		links := NewBuilder().Redirects().Links()
		links.Finalize()
		v := recoverValue(func() { links.Finalize() })
		var pe *PhaseError
		require.ErrorAs(t, v.(error), &pe)
		assert.Equal(t, PhaseDone, pe.Phase)
	})

	t.Run("link after finalize", func(t *testing.T) {
		links := NewBuilder().Redirects().Links()
		links.Finalize()
		assert.Panics(t, func() { links.AddLink(1, "A") })
	})
}

func TestBuilder_PhaseDurationsAndProgress(t *testing.T) {
	var seen []Phase
	b := NewBuilder(WithProgressCallback(func(p BuildProgress) {
		seen = append(seen, p.Phase)
	}), WithExpectedPages(4))
	b.AddPage(1, "A", false)
	_, result := b.Redirects().Links().Finalize()

	assert.Equal(t, []Phase{
		PhaseAddPages, PhaseAddRedirects, PhaseTidyEntries, PhaseAddLinks, PhaseDone,
	}, seen)
	assert.Contains(t, result.PhaseDurations, PhaseAddPages)
	assert.GreaterOrEqual(t, result.Duration, result.PhaseDurations[PhaseAddPages])
}

func TestBuilder_RandomGraphInvariants(t *testing.T) {
	rng := newTestRand(7)
	for trial := 0; trial < 20; trial++ {
		n := 5 + rng.IntN(40)
		var links []link
		for i := 0; i < n*3; i++ {
			links = append(links, link{
				src: NodeID(1 + rng.IntN(n)),
				dst: NodeID(1 + rng.IntN(n)),
			})
		}
		table := buildGraph(t, n, links)
		assertTableInvariants(t, table)

		want := 0
		seen := make(map[link]bool)
		for _, l := range links {
			if l.src != l.dst && !seen[l] {
				seen[l] = true
				want++
			}
		}
		assert.Equal(t, want, table.EdgeCount())
	}
}

func TestIngest(t *testing.T) {
	t.Run("builds from records", func(t *testing.T) {
		src := NewSliceSource(
			PageDecl{ID: 1, Title: "A"},
			PageDecl{ID: 2, Title: "B"},
			PageDecl{ID: 3, Title: "AliasB", IsRedirect: true},
			RedirectDecl{ID: 3, TargetTitle: "B"},
			LinkDecl{SrcID: 1, DstTitle: "AliasB"},
		)
		table, result, err := Ingest(context.Background(), src)
		require.NoError(t, err)
		assert.Equal(t, 2, table.Len())
		assert.Equal(t, 1, table.EdgeCount())
		assert.Equal(t, 1, result.Stats.StrippedRedirects)
	})

	t.Run("pages only", func(t *testing.T) {
		table, _, err := Ingest(context.Background(), NewSliceSource(PageDecl{ID: 1, Title: "A"}))
		require.NoError(t, err)
		assert.Equal(t, 1, table.Len())
	})

	t.Run("page after links", func(t *testing.T) {
		src := NewSliceSource(
			PageDecl{ID: 1, Title: "A"},
			LinkDecl{SrcID: 1, DstTitle: "A"},
			PageDecl{ID: 2, Title: "B"},
		)
		_, _, err := Ingest(context.Background(), src)
		assert.ErrorIs(t, err, ErrRecordOrder)
	})

	t.Run("redirect after links", func(t *testing.T) {
		src := NewSliceSource(
			PageDecl{ID: 1, Title: "A"},
			LinkDecl{SrcID: 1, DstTitle: "A"},
			RedirectDecl{ID: 1, TargetTitle: "A"},
		)
		_, _, err := Ingest(context.Background(), src)
		assert.ErrorIs(t, err, ErrRecordOrder)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, _, err := Ingest(ctx, NewSliceSource(PageDecl{ID: 1, Title: "A"}))
		assert.ErrorIs(t, err, ErrBuildCancelled)
	})

	t.Run("read error", func(t *testing.T) {
		boom := errors.New("boom")
		_, _, err := Ingest(context.Background(), failingSource{err: boom})
		assert.ErrorIs(t, err, boom)
	})
}

type failingSource struct{ err error }

func (f failingSource) Next() (Record, error) { return nil, f.err }

func TestSliceSource(t *testing.T) {
	src := NewSliceSource(PageDecl{ID: 1, Title: "A"})
	rec, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, PageDecl{ID: 1, Title: "A"}, rec)
	_, err = src.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestEntry_Layout(t *testing.T) {
	e, err := NewEntry("x", []NodeIndex{1, 2, 3}, []NodeIndex{3, 4, 2})
	require.NoError(t, err)

	neighbors, lastParent, firstChild := e.Neighbors()
	assert.Equal(t, []NodeIndex{1, 2, 3, 4}, neighbors)
	assert.Equal(t, uint32(1), lastParent)
	assert.Equal(t, uint32(3), firstChild)
	assert.Equal(t, 2, e.SharedCount())

	parents := slices.Clone(e.Parents())
	children := slices.Clone(e.Children())
	slices.Sort(parents)
	slices.Sort(children)
	assert.Equal(t, []NodeIndex{1, 2, 3}, parents)
	assert.Equal(t, []NodeIndex{2, 3, 4}, children)
	assert.Equal(t, "x", e.Title())
}

func TestEntry_Duplicates(t *testing.T) {
	_, err := NewEntry("x", []NodeIndex{1, 1}, nil)
	assert.ErrorIs(t, err, ErrDuplicateNeighbor)

	_, err = NewEntry("x", nil, []NodeIndex{2, 3, 2})
	assert.ErrorIs(t, err, ErrDuplicateNeighbor)
}

func TestEntry_Empty(t *testing.T) {
	e, err := NewEntry("lonely", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, e.Parents())
	assert.Empty(t, e.Children())
}

func TestEntry_SortedInputs(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	sortedSample := func() []NodeIndex {
		var out []NodeIndex
		for i := NodeIndex(0); i < 40; i++ {
			if rng.IntN(3) == 0 {
				out = append(out, i)
			}
		}
		return out
	}

	for i := 0; i < 200; i++ {
		parents, children := sortedSample(), sortedSample()
		merged, err := NewEntry("x", parents, children)
		require.NoError(t, err)
		indexed, err := indexedEntry("x", parents, children)
		require.NoError(t, err)
		require.Equal(t, indexed, merged, "parents=%v children=%v", parents, children)
		assert.Equal(t, parents, slices.Sorted(slices.Values(merged.Parents())))
		assert.Equal(t, children, slices.Sorted(slices.Values(merged.Children())))
	}

	parents := []NodeIndex{1, 4, 9, 12, 30}
	children := []NodeIndex{2, 4, 12, 31}
	allocs := testing.AllocsPerRun(50, func() {
		_, _ = NewEntry("x", parents, children)
	})
	assert.LessOrEqual(t, allocs, 1.0)
}
