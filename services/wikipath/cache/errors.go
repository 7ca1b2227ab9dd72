// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cache remembers finished searches.
//
// Searches are a pure function of (graph, src, dst), so a stored Record
// can answer a repeated query without running the search again. Records
// live in two tiers:
//
//	Hot (LRU in RAM) -> Warm (Store, e.g. BadgerDB)
//
// Every lookup that hits bumps the record's count and timestamp, which
// drive the "popular" and "recent" listings. Longest tracks the longest
// successful searches seen so far.
//
// A cache is tied to the graph it was filled from. Callers must Purge it
// when a different graph is loaded.
package cache

import "errors"

// Sentinel errors for cache operations.
var (
	// ErrUnknownSort is returned by ParseSort for an unrecognized name.
	ErrUnknownSort = errors.New("unknown cache sort")

	// ErrCorruptRecord is returned when a stored record cannot be decoded.
	ErrCorruptRecord = errors.New("corrupt cache record")
)
