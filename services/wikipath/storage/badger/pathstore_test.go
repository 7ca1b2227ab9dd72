// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/wikipath/services/wikipath/cache"
	"github.com/AleutianAI/wikipath/services/wikipath/graph"
)

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func record(src, dst graph.NodeID, result int16, count int64, age time.Duration) cache.Record {
	r := cache.Record{Src: src, Dst: dst, Result: result, Count: count, Timestamp: base.Add(-age)}
	if result > 0 {
		r.Path = make([]graph.NodeID, result)
		r.Path[0], r.Path[result-1] = src, dst
	}
	return r
}

func TestPathStore_PutLookup(t *testing.T) {
	ctx := context.Background()
	s := NewPathStore(openMemory(t))

	_, ok, err := s.Lookup(ctx, cache.Key{Src: 1, Dst: 2}, base)
	require.NoError(t, err)
	assert.False(t, ok)

	want := record(1, 2, 3, 1, time.Hour)
	require.NoError(t, s.Put(ctx, want))

	got, ok, err := s.Lookup(ctx, want.Key(), base)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want.Path, got.Path)
	assert.Equal(t, int64(2), got.Count)
	assert.True(t, base.Equal(got.Timestamp))

	// The bump is persisted.
	got, _, err = s.Lookup(ctx, want.Key(), base.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.Count)

	// Direction matters.
	_, ok, err = s.Lookup(ctx, cache.Key{Src: 2, Dst: 1}, base)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPathStore_List(t *testing.T) {
	ctx := context.Background()
	s := NewPathStore(openMemory(t))
	require.NoError(t, s.Put(ctx, record(1, 2, 2, 5, 3*time.Hour)))
	require.NoError(t, s.Put(ctx, record(3, 4, 6, 1, time.Hour)))
	require.NoError(t, s.Put(ctx, record(5, 6, 0, 9, 2*time.Hour)))

	keys := func(rs []cache.Record) []cache.Key {
		out := make([]cache.Key, len(rs))
		for i, r := range rs {
			out[i] = r.Key()
		}
		return out
	}

	recent, err := s.List(ctx, cache.SortRecent, 0)
	require.NoError(t, err)
	assert.Equal(t, []cache.Key{{Src: 3, Dst: 4}, {Src: 5, Dst: 6}, {Src: 1, Dst: 2}}, keys(recent))

	popular, err := s.List(ctx, cache.SortPopular, 2)
	require.NoError(t, err)
	assert.Equal(t, []cache.Key{{Src: 5, Dst: 6}, {Src: 1, Dst: 2}}, keys(popular))

	random, err := s.List(ctx, cache.SortRandom, 0)
	require.NoError(t, err)
	assert.Len(t, random, 3)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestPathStore_CorruptRecord(t *testing.T) {
	ctx := context.Background()
	db := openMemory(t)
	s := NewPathStore(db)
	k := cache.Key{Src: 7, Dst: 8}
	require.NoError(t, db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set(pathKey(k), []byte("{not json"))
	}))

	_, _, err := s.Lookup(ctx, k, base)
	assert.ErrorIs(t, err, cache.ErrCorruptRecord)
	_, err = s.List(ctx, cache.SortRecent, 0)
	assert.ErrorIs(t, err, cache.ErrCorruptRecord)
}

func TestPathStore_Longest(t *testing.T) {
	ctx := context.Background()
	s := NewPathStore(openMemory(t))

	entries, err := s.LoadLongest(ctx)
	require.NoError(t, err)
	assert.Nil(t, entries)

	want := []cache.LongEntry{{Src: "A", Dst: "Z", Length: 9}, {Src: "B", Dst: "C", Length: 4}}
	require.NoError(t, s.SaveLongest(ctx, want))
	entries, err = s.LoadLongest(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, entries)
}

func TestPathStore_EnsureGraph(t *testing.T) {
	ctx := context.Background()
	s := NewPathStore(openMemory(t))

	purged, err := s.EnsureGraph(ctx, "g1")
	require.NoError(t, err)
	assert.False(t, purged)

	require.NoError(t, s.Put(ctx, record(1, 2, 2, 1, 0)))
	require.NoError(t, s.SaveLongest(ctx, []cache.LongEntry{{Src: "A", Dst: "B", Length: 1}}))

	purged, err = s.EnsureGraph(ctx, "g1")
	require.NoError(t, err)
	assert.False(t, purged)
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	purged, err = s.EnsureGraph(ctx, "g2")
	require.NoError(t, err)
	assert.True(t, purged)
	n, err = s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	entries, err := s.LoadLongest(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPathStore_Persistence(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Path = t.TempDir()
	cfg.GCInterval = 0

	db, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, NewPathStore(db).Put(ctx, record(10, 20, 4, 2, 0)))
	require.NoError(t, db.Close())

	db, err = Open(cfg)
	require.NoError(t, err)
	defer db.Close()
	got, ok, err := NewPathStore(db).Lookup(ctx, cache.Key{Src: 10, Dst: 20}, base)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(3), got.Count)
	assert.Equal(t, int16(4), got.Result)
}

func TestPathKeyOrder(t *testing.T) {
	a := pathKey(cache.Key{Src: 1, Dst: 300})
	b := pathKey(cache.Key{Src: 2, Dst: 1})
	assert.Less(t, string(a), string(b))
}
