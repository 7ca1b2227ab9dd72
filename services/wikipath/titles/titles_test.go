// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package titles

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/wikipath/services/wikipath/graph"
)

func testIndex() *Index {
	return FromMap(map[string]graph.NodeID{
		"Apple":        1,
		"APPLE":        2,
		"Banana":       3,
		"Banana split": 4,
		"Bandana":      5,
		"Go (game)":    6,
	})
}

func TestLookup(t *testing.T) {
	x := testIndex()

	t.Run("exact", func(t *testing.T) {
		id, kind := x.Lookup("Banana")
		assert.Equal(t, graph.NodeID(3), id)
		assert.Equal(t, MatchExact, kind)
	})

	t.Run("exact wins over upper", func(t *testing.T) {
		id, kind := x.Lookup("APPLE")
		assert.Equal(t, graph.NodeID(2), id)
		assert.Equal(t, MatchExact, kind)
	})

	t.Run("upper case variant", func(t *testing.T) {
		id, kind := x.Lookup("go (GAME)")
		assert.Equal(t, graph.NodeID(6), id)
		assert.Equal(t, MatchUpper, kind)
	})

	t.Run("colliding upper case form is dropped", func(t *testing.T) {
		_, kind := x.Lookup("apple")
		assert.Equal(t, MatchNone, kind)
	})

	t.Run("miss", func(t *testing.T) {
		_, kind := x.Lookup("Cherry")
		assert.Equal(t, MatchNone, kind)
		assert.Equal(t, "none", kind.String())
	})
}

func TestSuggest(t *testing.T) {
	x := testIndex()
	ctx := context.Background()

	t.Run("shorter first", func(t *testing.T) {
		got, err := x.Suggest(ctx, "ana", 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"Banana", "Bandana", "Banana split"}, got)
	})

	t.Run("case insensitive", func(t *testing.T) {
		got, err := x.Suggest(ctx, "SPLIT", 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"Banana split"}, got)
	})

	t.Run("limit", func(t *testing.T) {
		got, err := x.Suggest(ctx, "a", 2)
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("empty query", func(t *testing.T) {
		got, err := x.Suggest(ctx, "", 10)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("no match", func(t *testing.T) {
		got, err := x.Suggest(ctx, "xyz", 10)
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := x.Suggest(cctx, "a", 10)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("default limit", func(t *testing.T) {
		many := make(map[string]graph.NodeID)
		for i := 1; i <= 30; i++ {
			many[fmt.Sprintf("Page %02d", i)] = graph.NodeID(i)
		}
		got, err := FromMap(many).Suggest(ctx, "page", 0)
		require.NoError(t, err)
		assert.Len(t, got, DefaultSuggestionLimit)
		assert.Equal(t, "Page 01", got[0])
	})
}

func TestResolve(t *testing.T) {
	x := testIndex()
	ctx := context.Background()

	r, err := x.Resolve(ctx, "  Bandana ")
	require.NoError(t, err)
	assert.Equal(t, Result{ID: 5, Title: "Bandana", Match: MatchExact}, r)

	r, err = x.Resolve(ctx, "banan")
	assert.ErrorIs(t, err, ErrUnknownTitle)
	assert.Equal(t, MatchNone, r.Match)
	assert.Equal(t, []string{"Banana", "Banana split"}, r.Suggestions)

	_, err = x.Resolve(ctx, "   ")
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestNewFromTable(t *testing.T) {
	b := graph.NewBuilder()
	b.AddPage(10, "Alpha", false)
	b.AddPage(20, "Beta", false)
	b.AddPage(30, "Alias of beta", true)
	r := b.Redirects()
	r.AddRedirect(30, "Beta")
	table, result := r.Links().Finalize()

	x := New(context.Background(), table, result.Aliases)
	assert.Equal(t, 3, x.Len())

	id, kind := x.Lookup("Alias of beta")
	assert.Equal(t, graph.NodeID(20), id)
	assert.Equal(t, MatchExact, kind)

	title, ok := x.Title(20)
	require.True(t, ok)
	assert.Equal(t, "Beta", title)

	res, err := x.Resolve(context.Background(), "alias of BETA")
	require.NoError(t, err)
	assert.Equal(t, "Beta", res.Title)
	assert.Equal(t, MatchUpper, res.Match)
}
