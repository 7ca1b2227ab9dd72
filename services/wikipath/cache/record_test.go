// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/wikipath/services/wikipath/graph"
)

// chainTable builds pages 1..n linked in a chain, plus an isolated page n+1.
func chainTable(t *testing.T, n int) *graph.Table {
	t.Helper()
	var records []graph.Record
	for id := 1; id <= n+1; id++ {
		records = append(records, graph.PageDecl{ID: graph.NodeID(id), Title: title(id)})
	}
	for id := 1; id < n; id++ {
		records = append(records, graph.LinkDecl{SrcID: graph.NodeID(id), DstTitle: title(id + 1)})
	}
	table, _, err := graph.Ingest(t.Context(), graph.NewSliceSource(records...))
	require.NoError(t, err)
	return table
}

func title(id int) string {
	return string(rune('A' + id - 1))
}

func TestNewRecord(t *testing.T) {
	table := chainTable(t, 3)
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("success", func(t *testing.T) {
		p := graph.Search(table, 0, 2)
		r := NewRecord(table, p, now)
		assert.Equal(t, int16(3), r.Result)
		assert.Equal(t, []graph.NodeID{1, 2, 3}, r.Path)
		assert.Equal(t, graph.OutcomeSuccess, r.Outcome())
		assert.Equal(t, 2, r.Length())
		assert.Equal(t, int64(1), r.Count)
		assert.Equal(t, Key{Src: 1, Dst: 3}, r.Key())
	})

	t.Run("trivial path is not confused with no path", func(t *testing.T) {
		r := NewRecord(table, graph.Search(table, 1, 1), now)
		assert.Equal(t, int16(1), r.Result)
		assert.Equal(t, 0, r.Length())
		assert.Equal(t, graph.OutcomeSuccess, r.Outcome())
	})

	t.Run("no path", func(t *testing.T) {
		r := NewRecord(table, graph.Search(table, 0, 3), now)
		assert.Equal(t, int16(0), r.Result)
		assert.Equal(t, graph.OutcomeNoPath, r.Outcome())
		assert.Equal(t, -1, r.Length())
		assert.Empty(t, r.Path)
	})

	t.Run("terminated", func(t *testing.T) {
		long := chainTable(t, 2*graph.MaxDepth+5)
		r := NewRecord(long, graph.Search(long, 0, graph.NodeIndex(2*graph.MaxDepth+4)), now)
		assert.Equal(t, int16(-graph.MaxDepth), r.Result)
		assert.Equal(t, graph.OutcomeTerminated, r.Outcome())
		assert.Equal(t, graph.MaxDepth, r.Rounds())
	})

	t.Run("touch", func(t *testing.T) {
		r := NewRecord(table, graph.Search(table, 0, 2), now)
		later := now.Add(time.Hour)
		r = r.Touch(later)
		assert.Equal(t, int64(2), r.Count)
		assert.Equal(t, later, r.Timestamp)
	})
}

func TestParseSort(t *testing.T) {
	tests := []struct {
		in   string
		want Sort
	}{
		{"", SortRecent},
		{"recent", SortRecent},
		{"Newest", SortRecent},
		{"hot", SortPopular},
		{"top", SortPopular},
		{"longest", SortLength},
		{"size", SortLength},
		{"idk", SortRandom},
		{" rand ", SortRandom},
	}
	for _, tc := range tests {
		got, err := ParseSort(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	_, err := ParseSort("sideways")
	assert.ErrorIs(t, err, ErrUnknownSort)
	assert.Equal(t, "popular", SortPopular.String())
}

func TestSortRecords(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	records := func() []Record {
		return []Record{
			{Src: 1, Dst: 2, Result: 3, Count: 5, Timestamp: base},
			{Src: 1, Dst: 3, Result: 6, Count: 1, Timestamp: base.Add(2 * time.Minute)},
			{Src: 2, Dst: 3, Result: 0, Count: 9, Timestamp: base.Add(time.Minute)},
		}
	}
	order := func(rs []Record) []Key {
		keys := make([]Key, len(rs))
		for i, r := range rs {
			keys[i] = r.Key()
		}
		return keys
	}

	rs := records()
	SortRecords(rs, SortRecent)
	assert.Equal(t, []Key{{1, 3}, {2, 3}, {1, 2}}, order(rs))

	rs = records()
	SortRecords(rs, SortPopular)
	assert.Equal(t, []Key{{2, 3}, {1, 2}, {1, 3}}, order(rs))

	rs = records()
	SortRecords(rs, SortLength)
	assert.Equal(t, []Key{{1, 3}, {1, 2}, {2, 3}}, order(rs))

	rs = records()
	SortRecords(rs, SortRandom)
	assert.ElementsMatch(t, order(records()), order(rs))
}
