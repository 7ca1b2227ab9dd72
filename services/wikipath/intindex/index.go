// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package intindex provides an open-addressing hash table keyed by 32-bit ids.
//
// The table is tuned for the page id domain: keys are dense and roughly
// uniformly distributed, so the hash is the low bits of the key itself.
// Entries are inserted once and looked up many times; there is no removal.
//
// # Preconditions
//
//   - Keys must be roughly uniformly distributed over their low bits.
//     Clustered keys degrade linear probing badly.
//   - The key Empty (math.MaxUint32) marks an empty slot and can never be
//     stored. Insert panics on it.
//
// # Thread Safety
//
// Index is NOT safe for concurrent mutation. A fully built Index may be read
// from many goroutines as long as no goroutine writes to it.
package intindex

import (
	"fmt"
	"math"
)

const (
	// Empty marks an unoccupied slot. It is not a legal key.
	Empty uint32 = math.MaxUint32

	// DefaultExponent gives 64 initial slots.
	DefaultExponent uint8 = 6

	// LoadFactor is the occupancy ratio that triggers doubling.
	LoadFactor = 0.5

	maxExponent uint8 = 32
)

// Index maps uint32 keys to values of type V.
//
// Description:
//
//	Open addressing with linear probing. Capacity is always a power of two
//	so the home slot is key & (cap-1). When an insert would push occupancy
//	above LoadFactor the table doubles and every entry is rehashed into a
//	fresh array; the old arrays are released afterwards, so memory briefly
//	doubles during a resize.
//
// Performance:
//
//	| Operation   | Complexity          |
//	|-------------|---------------------|
//	| Insert      | O(1) amortized      |
//	| Get         | O(1) expected       |
//	| ContainsKey | O(1) expected       |
//	| Range       | O(cap)              |
type Index[V any] struct {
	keys   []uint32
	values []V
	mask   uint32
	length int
}

// New creates an Index with 2^exponent empty slots.
//
// Inputs:
//   - exponent: log2 of the initial capacity. Clamped to [1, 32].
//
// Outputs:
//   - *Index[V]: The empty index. Never nil.
func New[V any](exponent uint8) *Index[V] {
	if exponent == 0 {
		exponent = 1
	}
	if exponent > maxExponent {
		exponent = maxExponent
	}
	capacity := uint64(1) << exponent
	idx := &Index[V]{}
	idx.allocate(capacity)
	return idx
}

// WithSize creates an Index large enough to hold n entries without resizing.
func WithSize[V any](n int) *Index[V] {
	exp := DefaultExponent
	for float64(n) > float64(uint64(1)<<exp)*LoadFactor && exp < maxExponent {
		exp++
	}
	return New[V](exp)
}

func (x *Index[V]) allocate(capacity uint64) {
	x.keys = make([]uint32, capacity)
	for i := range x.keys {
		x.keys[i] = Empty
	}
	x.values = make([]V, capacity)
	x.mask = uint32(capacity - 1)
	x.length = 0
}

// Insert stores value under key unless the key is already present.
//
// Description:
//
//	The first value inserted for a key wins. A repeated insert leaves the
//	stored value unchanged and reports false.
//
// Inputs:
//   - key: Must not be Empty.
//   - value: Value to associate with key.
//
// Outputs:
//   - bool: True if the key was newly inserted.
func (x *Index[V]) Insert(key uint32, value V) bool {
	if key == Empty {
		panic(fmt.Sprintf("intindex: key %d is reserved for empty slots", key))
	}
	if _, found := x.probe(key); found {
		return false
	}
	if float64(x.length+1) > float64(len(x.keys))*LoadFactor {
		x.grow()
	}
	slot, _ := x.probe(key)
	x.keys[slot] = key
	x.values[slot] = value
	x.length++
	return true
}

// Get returns the value stored for key.
func (x *Index[V]) Get(key uint32) (V, bool) {
	if key != Empty {
		if slot, found := x.probe(key); found {
			return x.values[slot], true
		}
	}
	var zero V
	return zero, false
}

// ContainsKey reports whether key is present.
func (x *Index[V]) ContainsKey(key uint32) bool {
	if key == Empty {
		return false
	}
	_, found := x.probe(key)
	return found
}

// Len returns the number of stored entries.
func (x *Index[V]) Len() int {
	return x.length
}

// Cap returns the number of slots.
func (x *Index[V]) Cap() int {
	return len(x.keys)
}

// Range calls fn for every stored entry in slot order until fn returns false.
//
// Slot order depends on key bits and capacity, not insertion order.
func (x *Index[V]) Range(fn func(key uint32, value V) bool) {
	for i, k := range x.keys {
		if k == Empty {
			continue
		}
		if !fn(k, x.values[i]) {
			return
		}
	}
}

// Keys returns all stored keys in slot order.
func (x *Index[V]) Keys() []uint32 {
	out := make([]uint32, 0, x.length)
	for _, k := range x.keys {
		if k != Empty {
			out = append(out, k)
		}
	}
	return out
}

// Clear empties every slot but keeps the current capacity.
func (x *Index[V]) Clear() {
	if x.length == 0 {
		return
	}
	var zero V
	for i := range x.keys {
		x.keys[i] = Empty
		x.values[i] = zero
	}
	x.length = 0
}

// probe walks from the home slot of key. It returns the slot holding key and
// true, or the first empty slot and false.
func (x *Index[V]) probe(key uint32) (uint32, bool) {
	addr := key & x.mask
	for {
		switch x.keys[addr] {
		case key:
			return addr, true
		case Empty:
			return addr, false
		}
		addr = (addr + 1) & x.mask
	}
}

func (x *Index[V]) grow() {
	oldKeys, oldValues := x.keys, x.values
	x.allocate(uint64(len(oldKeys)) * 2)
	for i, k := range oldKeys {
		if k == Empty {
			continue
		}
		slot, _ := x.probe(k)
		x.keys[slot] = k
		x.values[slot] = oldValues[i]
		x.length++
	}
}
