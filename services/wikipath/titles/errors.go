// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package titles resolves user-typed article titles to page ids.
//
// # Lookup Order
//
// Resolve tries, in order:
//   - the exact title
//   - the title in upper case, when exactly one article has that upper
//     case form
//
// When both miss it returns ErrUnknownTitle together with up to
// DefaultSuggestionLimit substring suggestions, so the caller can offer
// "did you mean" choices. The graph search itself never does fuzzy
// matching; it only receives resolved ids.
//
// # Thread Safety
//
// An Index is immutable after New and safe for concurrent use.
package titles

import "errors"

// Sentinel errors for title resolution.
var (
	// ErrEmptyQuery is returned for a blank query.
	ErrEmptyQuery = errors.New("empty title query")

	// ErrUnknownTitle is returned when no article matches the query.
	ErrUnknownTitle = errors.New("unknown title")
)
