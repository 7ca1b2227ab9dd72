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
	"fmt"

	"github.com/AleutianAI/wikipath/services/wikipath/intindex"
)

// Entry is the per-node record: a title and one flattened neighbor array.
//
// Description:
//
//	The neighbor array is split into three contiguous zones by two offsets:
//
//	  [0, lastParent)          parents that are not children
//	  [lastParent, firstChild) nodes that are both parent and child
//	  [firstChild, len)        children that are not parents
//
//	Parents() is neighbors[:firstChild] and Children() is
//	neighbors[lastParent:], so the shared zone is stored once and appears
//	in both views. Wiki graphs have heavy parent/child overlap, which is
//	where the saving comes from.
//
// Thread Safety: Immutable after construction.
type Entry struct {
	title      string
	neighbors  []NodeIndex
	lastParent uint32
	firstChild uint32
}

// NewEntry builds an Entry from raw parent and child lists.
//
// Description:
//
//	Relative order inside each zone follows the input order, so sorted
//	inputs produce sorted zones. When both lists are strictly ascending,
//	as Finalize and NewTable provide them, the shared zone is found by a
//	merge walk and the only allocation is the neighbor array. Other
//	inputs are checked through intindex sets.
//
// Inputs:
//   - title: Article title.
//   - parents: Nodes linking to this node. Must not contain duplicates.
//   - children: Nodes this node links to. Must not contain duplicates.
//
// Outputs:
//   - Entry: The compacted entry.
//   - error: ErrDuplicateNeighbor if either list repeats a node.
func NewEntry(title string, parents, children []NodeIndex) (Entry, error) {
	if strictlyAscending(parents) && strictlyAscending(children) {
		return mergeEntry(title, parents, children), nil
	}
	return indexedEntry(title, parents, children)
}

func strictlyAscending(s []NodeIndex) bool {
	for i := 1; i < len(s); i++ {
		if s[i] <= s[i-1] {
			return false
		}
	}
	return true
}

// mergeEntry lays out strictly ascending lists in two merge passes: one
// to size the shared zone, one to fill all three zones.
func mergeEntry(title string, parents, children []NodeIndex) Entry {
	shared := 0
	for i, j := 0, 0; i < len(parents) && j < len(children); {
		switch {
		case parents[i] < children[j]:
			i++
		case parents[i] > children[j]:
			j++
		default:
			shared++
			i++
			j++
		}
	}

	lastParent := len(parents) - shared
	firstChild := len(parents)
	neighbors := make([]NodeIndex, len(parents)+len(children)-shared)
	po, so, co := 0, lastParent, firstChild
	for i, j := 0, 0; i < len(parents) || j < len(children); {
		switch {
		case j == len(children) || (i < len(parents) && parents[i] < children[j]):
			neighbors[po] = parents[i]
			po++
			i++
		case i == len(parents) || parents[i] > children[j]:
			neighbors[co] = children[j]
			co++
			j++
		default:
			neighbors[so] = parents[i]
			so++
			i++
			j++
		}
	}

	return Entry{
		title:      title,
		neighbors:  neighbors,
		lastParent: uint32(lastParent),
		firstChild: uint32(firstChild),
	}
}

func indexedEntry(title string, parents, children []NodeIndex) (Entry, error) {
	parentSet := intindex.WithSize[struct{}](len(parents))
	for _, p := range parents {
		if !parentSet.Insert(uint32(p), struct{}{}) {
			return Entry{}, fmt.Errorf("%w: parent %d of %q", ErrDuplicateNeighbor, p, title)
		}
	}
	childSet := intindex.WithSize[struct{}](len(children))
	for _, c := range children {
		if !childSet.Insert(uint32(c), struct{}{}) {
			return Entry{}, fmt.Errorf("%w: child %d of %q", ErrDuplicateNeighbor, c, title)
		}
	}

	neighbors := make([]NodeIndex, 0, len(parents)+len(children))
	var shared []NodeIndex
	for _, p := range parents {
		if childSet.ContainsKey(uint32(p)) {
			shared = append(shared, p)
		} else {
			neighbors = append(neighbors, p)
		}
	}
	lastParent := len(neighbors)
	neighbors = append(neighbors, shared...)
	firstChild := len(neighbors)
	for _, c := range children {
		if !parentSet.ContainsKey(uint32(c)) {
			neighbors = append(neighbors, c)
		}
	}

	return Entry{
		title:      title,
		neighbors:  neighbors,
		lastParent: uint32(lastParent),
		firstChild: uint32(firstChild),
	}, nil
}

// Title returns the article title.
func (e *Entry) Title() string {
	return e.title
}

// Parents returns the nodes that link to this node.
//
// The returned slice aliases the entry and must not be modified.
func (e *Entry) Parents() []NodeIndex {
	return e.neighbors[:e.firstChild]
}

// Children returns the nodes this node links to.
//
// The returned slice aliases the entry and must not be modified.
func (e *Entry) Children() []NodeIndex {
	return e.neighbors[e.lastParent:]
}

// Neighbors returns the flattened array with both offsets.
func (e *Entry) Neighbors() (neighbors []NodeIndex, lastParent, firstChild uint32) {
	return e.neighbors, e.lastParent, e.firstChild
}

// SharedCount returns the number of nodes that are both parent and child.
func (e *Entry) SharedCount() int {
	return int(e.firstChild - e.lastParent)
}
