// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package intindex

// Set is a membership-only Index, used for BFS frontiers.
type Set struct {
	idx *Index[struct{}]
}

// NewSet creates a Set with 2^exponent slots.
func NewSet(exponent uint8) *Set {
	return &Set{idx: New[struct{}](exponent)}
}

// Add inserts key and reports whether it was new.
func (s *Set) Add(key uint32) bool {
	return s.idx.Insert(key, struct{}{})
}

// Contains reports whether key is a member.
func (s *Set) Contains(key uint32) bool {
	return s.idx.ContainsKey(key)
}

// Len returns the member count.
func (s *Set) Len() int {
	return s.idx.Len()
}

// Range calls fn for every member until fn returns false.
func (s *Set) Range(fn func(key uint32) bool) {
	s.idx.Range(func(k uint32, _ struct{}) bool {
		return fn(k)
	})
}

// Clear removes every member and keeps the capacity.
func (s *Set) Clear() {
	s.idx.Clear()
}
