// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package reload swaps a served graph for a new one when its manifest
// changes on disk.
//
// Value holds the current immutable snapshot behind an atomic pointer, so
// readers never block and always see a complete snapshot. Watcher
// observes the manifest and calls a reload function after writes settle.
package reload

import "sync/atomic"

// Value holds the current snapshot.
//
// Thread Safety: Safe for concurrent use. Stored snapshots must not be
// modified afterwards.
type Value[T any] struct {
	p   atomic.Pointer[T]
	gen atomic.Uint64
}

// Load returns the current snapshot, or nil before the first Store.
func (v *Value[T]) Load() *T {
	return v.p.Load()
}

// Store publishes x and returns its generation, starting at 1.
func (v *Value[T]) Store(x *T) uint64 {
	v.p.Store(x)
	return v.gen.Add(1)
}

// Generation returns how many snapshots have been stored.
func (v *Value[T]) Generation() uint64 {
	return v.gen.Load()
}
