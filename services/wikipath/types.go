// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package wikipath

import "time"

// PageRef identifies an article in responses.
type PageRef struct {
	// ID is the article's page id.
	ID uint32 `json:"id"`

	// Title is the canonical article title.
	Title string `json:"title"`

	// URL links to the article.
	URL string `json:"url"`
}

// SearchResponse is the response for GET /v1/wikipath/search.
type SearchResponse struct {
	Src PageRef `json:"src"`
	Dst PageRef `json:"dst"`

	// Outcome is "success", "no_path" or "terminated".
	Outcome string `json:"outcome"`

	// Length is the number of links on the path, -1 when none was found.
	Length int `json:"length"`

	// Rounds is how many rounds a terminated search ran before giving up.
	Rounds int `json:"rounds,omitempty"`

	// Path lists the articles from Src to Dst inclusive.
	Path []PageRef `json:"path,omitempty"`

	// Cached is true when the answer came from the path cache.
	Cached bool `json:"cached"`

	// Count is how many times this pair has been searched.
	Count int64 `json:"count"`

	// DurationMs is the time spent answering.
	DurationMs float64 `json:"duration_ms"`
}

// TitlesResponse is the response for GET /v1/wikipath/titles.
type TitlesResponse struct {
	Query  string   `json:"query"`
	Titles []string `json:"titles"`
}

// CacheEntry is one remembered search in CacheResponse.
type CacheEntry struct {
	Src       PageRef   `json:"src"`
	Dst       PageRef   `json:"dst"`
	Outcome   string    `json:"outcome"`
	Length    int       `json:"length"`
	Count     int64     `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}

// CacheResponse is the response for GET /v1/wikipath/cache.
type CacheResponse struct {
	Sort    string       `json:"sort"`
	Entries []CacheEntry `json:"entries"`
}

// LongestEntry is one search in LongestResponse.
type LongestEntry struct {
	Src    string `json:"src"`
	Dst    string `json:"dst"`
	Length int    `json:"length"`
}

// LongestResponse is the response for GET /v1/wikipath/longest.
type LongestResponse struct {
	Entries []LongestEntry `json:"entries"`
}

// RankedPage is one article in RankResponse.
type RankedPage struct {
	PageRef
	Rank  int     `json:"rank"`
	Score float64 `json:"score"`
}

// RankResponse is the response for GET /v1/wikipath/rank.
type RankResponse struct {
	Pages      []RankedPage `json:"pages"`
	Iterations int          `json:"iterations"`
	Converged  bool         `json:"converged"`
}

// FarthestResponse is the response for GET /v1/wikipath/farthest.
type FarthestResponse struct {
	Dst PageRef `json:"dst"`

	// Distance is the longest shortest path into Dst, in links.
	Distance int `json:"distance"`

	// Farthest lists the articles at Distance from Dst.
	Farthest []PageRef `json:"farthest"`

	// Reachable counts the articles that can reach Dst, Dst included.
	Reachable int `json:"reachable"`
}

// StatsResponse is the response for GET /v1/wikipath/stats.
type StatsResponse struct {
	Nodes        int       `json:"nodes"`
	Edges        int       `json:"edges"`
	Titles       int       `json:"titles"`
	LoadedAt     time.Time `json:"loaded_at"`
	Generation   uint64    `json:"generation"`
	CacheEntries int       `json:"cache_entries"`
	CacheHits    int64     `json:"cache_hits"`
	CacheMisses  int64     `json:"cache_misses"`

	// StoredRecords is the number of records in the persistent cache,
	// -1 when running without one.
	StoredRecords int `json:"stored_records"`
}

// HealthResponse is the response for GET /v1/wikipath/health.
type HealthResponse struct {
	// Status is "healthy".
	Status string `json:"status"`

	// Version is the service version.
	Version string `json:"version"`
}

// ReadyResponse is the response for GET /v1/wikipath/ready.
type ReadyResponse struct {
	// Ready is true once a graph is loaded.
	Ready bool `json:"ready"`

	// Nodes is the size of the loaded graph.
	Nodes int `json:"nodes"`
}

// ErrorResponse is returned for all errors.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is the error code (optional).
	Code string `json:"code,omitempty"`

	// Details provides additional error context (optional).
	Details string `json:"details,omitempty"`

	// Suggestions lists candidate titles for an unknown title.
	Suggestions []string `json:"suggestions,omitempty"`
}
