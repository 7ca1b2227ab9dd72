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
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRU_Basic(t *testing.T) {
	t.Run("get and set", func(t *testing.T) {
		c := NewLRU[string, int](10)
		c.Set("a", 1)
		c.Set("b", 2)

		v, ok := c.Get("a")
		require.True(t, ok)
		assert.Equal(t, 1, v)
		v, ok = c.Get("b")
		require.True(t, ok)
		assert.Equal(t, 2, v)
	})

	t.Run("missing key", func(t *testing.T) {
		c := NewLRU[string, int](10)
		v, ok := c.Get("missing")
		assert.False(t, ok)
		assert.Zero(t, v)
	})

	t.Run("replace keeps one entry", func(t *testing.T) {
		c := NewLRU[string, int](10)
		c.Set("a", 1)
		c.Set("a", 2)
		v, _ := c.Get("a")
		assert.Equal(t, 2, v)
		assert.Equal(t, 1, c.Len())
	})

	t.Run("delete", func(t *testing.T) {
		c := NewLRU[string, int](10)
		c.Set("a", 1)
		assert.True(t, c.Delete("a"))
		assert.False(t, c.Delete("a"))
		_, ok := c.Get("a")
		assert.False(t, ok)
	})

	t.Run("purge resets counters", func(t *testing.T) {
		c := NewLRU[string, int](10)
		c.Set("a", 1)
		c.Get("a")
		c.Get("zzz")
		c.Purge()
		assert.Equal(t, 0, c.Len())
		hits, misses := c.Stats()
		assert.Zero(t, hits)
		assert.Zero(t, misses)
	})

	t.Run("default capacity", func(t *testing.T) {
		c := NewLRU[int, int](0)
		assert.Equal(t, DefaultCapacity, c.capacity)
	})
}

func TestLRU_Eviction(t *testing.T) {
	c := NewLRU[string, int](3)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)
	c.Get("a") // a is now the most recent
	c.Set("d", 4)

	_, ok := c.Get("b")
	assert.False(t, ok, "least recently used entry should be evicted")
	_, ok = c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, int64(1), c.Evictions())
	assert.Equal(t, 3, c.Len())
}

func TestLRU_UpdateAndValues(t *testing.T) {
	c := NewLRU[string, int](3)
	c.Set("a", 1)
	c.Set("b", 2)

	v, ok := c.Update("a", func(old int) int { return old + 10 })
	require.True(t, ok)
	assert.Equal(t, 11, v)
	assert.Equal(t, []int{11, 2}, c.Values())

	_, ok = c.Update("missing", func(int) int {
		t.Fatal("fn called for a missing key")
		return 0
	})
	assert.False(t, ok)
}

func TestLRU_Concurrent(t *testing.T) {
	c := NewLRU[string, int](100)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				key := fmt.Sprintf("k%d", i%150)
				c.Set(key, i)
				c.Get(key)
				c.Update(key, func(v int) int { return v + 1 })
			}
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 100)
}
