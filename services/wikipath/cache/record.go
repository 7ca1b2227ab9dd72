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
	"math"
	"math/rand/v2"
	"sort"
	"strings"
	"time"

	"github.com/AleutianAI/wikipath/services/wikipath/graph"
)

// Key identifies a search by its endpoints.
type Key struct {
	Src graph.NodeID
	Dst graph.NodeID
}

// Record is one remembered search.
//
// Result encodes the outcome in one number:
//
//	Result == 0   no path exists
//	Result <  0   search gave up after -Result rounds
//	Result >  0   path found with Result nodes, endpoints included
type Record struct {
	Src       graph.NodeID   `json:"src"`
	Dst       graph.NodeID   `json:"dst"`
	Result    int16          `json:"result"`
	Path      []graph.NodeID `json:"path,omitempty"`
	Count     int64          `json:"count"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewRecord converts a search result into a Record with count 1.
func NewRecord(t *graph.Table, p graph.Path, now time.Time) Record {
	r := Record{
		Src:       t.IDOf(p.Src),
		Dst:       t.IDOf(p.Dst),
		Count:     1,
		Timestamp: now,
	}
	switch p.Outcome {
	case graph.OutcomeSuccess:
		r.Result = int16(min(len(p.Nodes), math.MaxInt16))
		r.Path = make([]graph.NodeID, len(p.Nodes))
		for i, idx := range p.Nodes {
			r.Path[i] = t.IDOf(idx)
		}
	case graph.OutcomeTerminated:
		r.Result = -int16(p.Rounds)
	}
	return r
}

// Key returns the record's endpoints.
func (r Record) Key() Key {
	return Key{Src: r.Src, Dst: r.Dst}
}

// Outcome decodes Result.
func (r Record) Outcome() graph.Outcome {
	switch {
	case r.Result > 0:
		return graph.OutcomeSuccess
	case r.Result < 0:
		return graph.OutcomeTerminated
	default:
		return graph.OutcomeNoPath
	}
}

// Length returns the number of links on the path, or -1 if none was found.
func (r Record) Length() int {
	if r.Result <= 0 {
		return -1
	}
	return int(r.Result) - 1
}

// Rounds returns how many rounds a terminated search ran, 0 otherwise.
func (r Record) Rounds() int {
	if r.Result >= 0 {
		return 0
	}
	return -int(r.Result)
}

// Touch returns r with its count bumped and its timestamp set to now.
func (r Record) Touch(now time.Time) Record {
	r.Count++
	r.Timestamp = now
	return r
}

// Sort is an ordering for cache listings.
type Sort uint8

const (
	// SortRecent lists the most recently used records first.
	SortRecent Sort = iota

	// SortPopular lists the most often requested records first.
	SortPopular

	// SortLength lists the longest paths first.
	SortLength

	// SortRandom lists records in random order.
	SortRandom
)

var sortNames = map[string]Sort{
	"recent": SortRecent, "latest": SortRecent, "new": SortRecent, "newest": SortRecent,
	"popular": SortPopular, "top": SortPopular, "best": SortPopular, "hot": SortPopular,
	"length": SortLength, "longest": SortLength, "size": SortLength,
	"random": SortRandom, "rand": SortRandom, "idk": SortRandom,
}

// ParseSort reads a sort name or one of its aliases. Empty means SortRecent.
func ParseSort(s string) (Sort, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return SortRecent, nil
	}
	if v, ok := sortNames[s]; ok {
		return v, nil
	}
	return SortRecent, fmt.Errorf("%w: %q", ErrUnknownSort, s)
}

// String returns the canonical sort name.
func (s Sort) String() string {
	switch s {
	case SortRecent:
		return "recent"
	case SortPopular:
		return "popular"
	case SortLength:
		return "length"
	case SortRandom:
		return "random"
	default:
		return "unknown"
	}
}

// SortRecords orders records in place.
//
// Ties fall back to the most recent record, then to the endpoints, so
// every ordering except SortRandom is deterministic.
func SortRecords(records []Record, s Sort) {
	if s == SortRandom {
		rand.Shuffle(len(records), func(i, j int) {
			records[i], records[j] = records[j], records[i]
		})
		return
	}
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		switch s {
		case SortPopular:
			if a.Count != b.Count {
				return a.Count > b.Count
			}
		case SortLength:
			if a.Length() != b.Length() {
				return a.Length() > b.Length()
			}
		}
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.After(b.Timestamp)
		}
		if a.Src != b.Src {
			return a.Src < b.Src
		}
		return a.Dst < b.Dst
	})
}
