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
	"slices"
	"sync"
)

// DefaultLongestSize is how many searches Longest keeps by default.
const DefaultLongestSize = 16

// LongEntry is one search kept by Longest.
type LongEntry struct {
	Src    string `json:"src"`
	Dst    string `json:"dst"`
	Length int    `json:"length"`
}

// less orders longer paths first, then by titles.
func (e LongEntry) less(o LongEntry) bool {
	if e.Length != o.Length {
		return e.Length > o.Length
	}
	if e.Src != o.Src {
		return e.Src < o.Src
	}
	return e.Dst < o.Dst
}

// Longest keeps the longest successful searches seen so far.
//
// Description:
//
//	Reads happen on every page view and writes are rare, so entries live
//	in a small sorted slice behind a RWMutex. A new entry is only taken
//	when there is room or it is longer than the current shortest.
//
// Thread Safety: Safe for concurrent use.
type Longest struct {
	mu      sync.RWMutex
	size    int
	entries []LongEntry
}

// NewLongest creates a tracker of the given size. Values <= 0 mean
// DefaultLongestSize.
func NewLongest(size int) *Longest {
	if size <= 0 {
		size = DefaultLongestSize
	}
	return &Longest{size: size, entries: make([]LongEntry, 0, size+1)}
}

// ShouldInsert reports whether Insert would keep e.
func (l *Longest) ShouldInsert(e LongEntry) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.shouldInsert(e)
}

func (l *Longest) shouldInsert(e LongEntry) bool {
	if slices.Contains(l.entries, e) {
		return false
	}
	if len(l.entries) < l.size {
		return true
	}
	return e.Length > l.entries[len(l.entries)-1].Length
}

// Insert records e if it is long enough. It reports whether e was kept.
func (l *Longest) Insert(e LongEntry) bool {
	if !l.ShouldInsert(e) {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.shouldInsert(e) {
		return false
	}
	i, _ := slices.BinarySearchFunc(l.entries, e, func(a, b LongEntry) int {
		switch {
		case a.less(b):
			return -1
		case b.less(a):
			return 1
		default:
			return 0
		}
	})
	l.entries = slices.Insert(l.entries, i, e)
	if len(l.entries) > l.size {
		l.entries = l.entries[:l.size]
	}
	return true
}

// Entries returns a copy of the kept searches, longest first.
func (l *Longest) Entries() []LongEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.entries)
}

// Reset drops every entry.
func (l *Longest) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = l.entries[:0]
}
