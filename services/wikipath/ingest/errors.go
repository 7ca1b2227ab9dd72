// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ingest reads wiki dump records from TSV files.
//
// Three kinds of file feed a build, read in this order:
//
//	pages.tsv      id<TAB>title<TAB>is_redirect(0|1)
//	redirects.tsv  id<TAB>target_title
//	links*.tsv     src_id<TAB>dst_title
//
// Blank lines and lines starting with # are skipped. Lines that do not
// parse are counted, logged at debug level and skipped. Link shards are
// parsed in parallel once the redirect file is exhausted.
package ingest

import "errors"

var (
	// ErrNoPages is returned when no pages input is given.
	ErrNoPages = errors.New("ingest: pages input is required")

	// ErrLineTooLong is returned when a line exceeds MaxLineBytes.
	ErrLineTooLong = errors.New("ingest: line too long")
)
