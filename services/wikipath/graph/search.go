// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/AleutianAI/wikipath/services/wikipath/intindex"
)

// MaxDepth is the round budget of a bidirectional search. Each round
// expands both frontiers once, so paths up to roughly 2*MaxDepth links
// can be found.
const MaxDepth = 10

// Outcome is the kind of result a search produced.
type Outcome uint8

const (
	// OutcomeSuccess means a shortest path was found.
	OutcomeSuccess Outcome = iota

	// OutcomeNoPath means a frontier ran dry: the graph has no path.
	OutcomeNoPath

	// OutcomeTerminated means MaxDepth rounds ran out with both frontiers
	// still non-empty. A longer path may exist.
	OutcomeTerminated
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeNoPath:
		return "no_path"
	case OutcomeTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Path is the result of one search. It is immutable once returned.
type Path struct {
	// Src and Dst are the endpoints that were searched.
	Src NodeIndex
	Dst NodeIndex

	// Outcome says which of the fields below are meaningful.
	Outcome Outcome

	// Nodes is the path on success, Src and Dst inclusive.
	Nodes []NodeIndex

	// Rounds is the number of rounds the search ran.
	Rounds int
}

// Found reports whether the search succeeded.
func (p Path) Found() bool {
	return p.Outcome == OutcomeSuccess
}

// Len returns the number of links on the path, or -1 if none was found.
func (p Path) Len() int {
	if p.Outcome != OutcomeSuccess {
		return -1
	}
	return len(p.Nodes) - 1
}

// Search finds a shortest path from src to dst.
//
// Description:
//
//	Alternates a downward expansion over children from src with an
//	upward expansion over parents from dst. Every newly seen node records
//	the node that discovered it. As soon as a node discovered from one
//	side has already been seen from the other, the path is stitched
//	together through it.
//
//	When several connecting nodes appear in the same round, the one
//	returned depends on frontier iteration order. Which of several
//	equally short paths comes back is therefore unspecified; the length
//	is always the shortest distance.
//
// Inputs:
//   - t: The graph. Must not be nil.
//   - src, dst: Valid indices into t.
//
// Outputs:
//   - Path: Success, NoPath or Terminated. Never an error: bad indices are
//     a programming error and panic.
//
// Thread Safety: Safe for concurrent use. Each call allocates its own
// search state and only reads t.
func Search(t *Table, src, dst NodeIndex) Path {
	if src == dst {
		return Path{Src: src, Dst: dst, Outcome: OutcomeSuccess, Nodes: []NodeIndex{src}}
	}
	s := newSearch(t, src, dst)
	return s.run()
}

// SearchIDs resolves external ids and runs Search.
//
// Outputs:
//   - Path: The search result.
//   - error: ErrNoSuchID if either id is not in t. Not-found paths are
//     reported through Path.Outcome, never through error.
func SearchIDs(ctx context.Context, t *Table, srcID, dstID NodeID) (Path, error) {
	src, ok := t.IndexOf(srcID)
	if !ok {
		return Path{}, fmt.Errorf("%w: source %d", ErrNoSuchID, srcID)
	}
	dst, ok := t.IndexOf(dstID)
	if !ok {
		return Path{}, fmt.Errorf("%w: destination %d", ErrNoSuchID, dstID)
	}

	ctx, span := startSearchSpan(ctx, src, dst)
	defer span.End()

	start := time.Now()
	p := Search(t, src, dst)
	recordSearchMetrics(ctx, time.Since(start), p)
	return p, nil
}

// search holds the state of one bidirectional search. It is single use.
type search struct {
	t        *Table
	src, dst NodeIndex

	// srcSeen maps a node to the node that discovered it from the source
	// side. dstSeen is the same from the destination side. Each side's
	// root maps to itself.
	srcSeen *intindex.Index[NodeIndex]
	dstSeen *intindex.Index[NodeIndex]

	down *intindex.Set
	up   *intindex.Set
	next *intindex.Set
}

func newSearch(t *Table, src, dst NodeIndex) *search {
	s := &search{
		t:       t,
		src:     src,
		dst:     dst,
		srcSeen: intindex.New[NodeIndex](intindex.DefaultExponent),
		dstSeen: intindex.New[NodeIndex](intindex.DefaultExponent),
		down:    intindex.NewSet(intindex.DefaultExponent),
		up:      intindex.NewSet(intindex.DefaultExponent),
		next:    intindex.NewSet(intindex.DefaultExponent),
	}
	// Seeding the roots lets a direct src->dst link meet in round one.
	s.srcSeen.Insert(uint32(src), src)
	s.dstSeen.Insert(uint32(dst), dst)
	s.down.Add(uint32(src))
	s.up.Add(uint32(dst))
	return s
}

func (s *search) run() Path {
	for round := 1; round <= MaxDepth; round++ {
		if mid, ok := s.expand(s.down, s.srcSeen, s.dstSeen, (*Table).Children); ok {
			return s.reconstruct(mid, round)
		}
		s.down, s.next = s.next, s.down
		s.next.Clear()

		if mid, ok := s.expand(s.up, s.dstSeen, s.srcSeen, (*Table).Parents); ok {
			return s.reconstruct(mid, round)
		}
		s.up, s.next = s.next, s.up
		s.next.Clear()

		if s.down.Len() == 0 || s.up.Len() == 0 {
			return Path{Src: s.src, Dst: s.dst, Outcome: OutcomeNoPath, Rounds: round}
		}
	}
	return Path{Src: s.src, Dst: s.dst, Outcome: OutcomeTerminated, Rounds: MaxDepth}
}

// expand visits the neighbors of every frontier node. Unseen neighbors are
// recorded in seen and collected into s.next. It returns the first
// neighbor that targets has already seen.
func (s *search) expand(
	frontier *intindex.Set,
	seen, targets *intindex.Index[NodeIndex],
	neighbors func(*Table, NodeIndex) []NodeIndex,
) (NodeIndex, bool) {
	var mid NodeIndex
	found := false
	frontier.Range(func(key uint32) bool {
		from := NodeIndex(key)
		for _, nb := range neighbors(s.t, from) {
			if !seen.Insert(uint32(nb), from) {
				continue
			}
			if targets.ContainsKey(uint32(nb)) {
				mid, found = nb, true
				return false
			}
			s.next.Add(uint32(nb))
		}
		return true
	})
	return mid, found
}

// reconstruct walks srcSeen back from mid to src and dstSeen forward from
// mid to dst. A missing link in either chain means the search state is
// corrupt and panics.
func (s *search) reconstruct(mid NodeIndex, rounds int) Path {
	nodes := []NodeIndex{mid}
	for cur := mid; cur != s.src; {
		prev, ok := s.srcSeen.Get(uint32(cur))
		if !ok {
			panic(&InvariantError{Invariant: "search reconstruction",
				Detail: fmt.Sprintf("index %d missing from source side", cur)})
		}
		nodes = append(nodes, prev)
		cur = prev
	}
	slices.Reverse(nodes)

	for cur := mid; cur != s.dst; {
		next, ok := s.dstSeen.Get(uint32(cur))
		if !ok {
			panic(&InvariantError{Invariant: "search reconstruction",
				Detail: fmt.Sprintf("index %d missing from destination side", cur)})
		}
		nodes = append(nodes, next)
		cur = next
	}

	return Path{Src: s.src, Dst: s.dst, Outcome: OutcomeSuccess, Nodes: nodes, Rounds: rounds}
}
