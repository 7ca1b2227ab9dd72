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
	"iter"
	"slices"
	"sort"

	"github.com/AleutianAI/wikipath/services/wikipath/intindex"
)

// NodeID is the external, stable page id.
//
// intindex.Empty (math.MaxUint32) is reserved and never a legal NodeID.
type NodeID uint32

// NodeIndex is a dense position in a Table's entry array. It is only
// meaningful for the Table that produced it.
type NodeIndex uint32

// NodeSpec describes one node in terms of external ids. It is the input to
// NewTable and the unit stored in manifest shards.
type NodeSpec struct {
	ID       NodeID
	Title    string
	Parents  []NodeID
	Children []NodeID
}

// Table is the immutable, array-backed link graph.
//
// Description:
//
//	entries[i] is the node with NodeIndex i and ids[i] is its NodeID.
//	index maps NodeID back to NodeIndex. Every neighbor stored in every
//	entry is a valid NodeIndex into entries; Search relies on that and
//	does not bounds-check neighbors itself.
//
// Thread Safety: Safe for concurrent reads. There are no writers.
type Table struct {
	entries []Entry
	ids     []NodeID
	index   *intindex.Index[NodeIndex]
	edges   int
}

// NewTable builds a Table from node specs.
//
// Description:
//
//	Assigns NodeIndex values by enumerating specs in ascending NodeID
//	order, translates every neighbor id to its index and compacts each
//	node into an Entry. The result is validated for dangling references
//	and parent/child symmetry.
//
// Inputs:
//   - specs: Node descriptions in any order. Not modified.
//
// Outputs:
//   - *Table: The finalized table.
//   - error: ErrDuplicateNode, ErrDanglingNeighbor, ErrDuplicateNeighbor,
//     ErrAsymmetricLink or ErrTooManyNodes.
func NewTable(specs []NodeSpec) (*Table, error) {
	if uint64(len(specs)) >= uint64(intindex.Empty) {
		return nil, fmt.Errorf("%w: %d", ErrTooManyNodes, len(specs))
	}
	specs = slices.Clone(specs)
	sort.Slice(specs, func(i, j int) bool { return specs[i].ID < specs[j].ID })

	t := &Table{
		entries: make([]Entry, len(specs)),
		ids:     make([]NodeID, len(specs)),
		index:   intindex.WithSize[NodeIndex](len(specs)),
	}
	for i, s := range specs {
		if uint32(s.ID) == intindex.Empty {
			return nil, fmt.Errorf("%w: reserved id %d", ErrDanglingNeighbor, s.ID)
		}
		if !t.index.Insert(uint32(s.ID), NodeIndex(i)) {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateNode, s.ID)
		}
		t.ids[i] = s.ID
	}

	for i, s := range specs {
		parents, err := t.translate(s.ID, s.Parents)
		if err != nil {
			return nil, err
		}
		children, err := t.translate(s.ID, s.Children)
		if err != nil {
			return nil, err
		}
		// Indices follow id order, so sorted lists take NewEntry's merge path.
		slices.Sort(parents)
		slices.Sort(children)
		entry, err := NewEntry(s.Title, parents, children)
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", s.ID, err)
		}
		t.entries[i] = entry
		t.edges += len(children)
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Table) translate(owner NodeID, ids []NodeID) ([]NodeIndex, error) {
	out := make([]NodeIndex, len(ids))
	for i, id := range ids {
		idx, ok := t.index.Get(uint32(id))
		if !ok {
			return nil, fmt.Errorf("%w: node %d refers to %d", ErrDanglingNeighbor, owner, id)
		}
		out[i] = idx
	}
	return out, nil
}

// Len returns the number of nodes.
func (t *Table) Len() int {
	return len(t.entries)
}

// EdgeCount returns the number of directed links.
func (t *Table) EdgeCount() int {
	return t.edges
}

// Entry returns the entry at idx. Panics if idx is out of range.
func (t *Table) Entry(idx NodeIndex) *Entry {
	return &t.entries[idx]
}

// IndexOf resolves an external id.
func (t *Table) IndexOf(id NodeID) (NodeIndex, bool) {
	return t.index.Get(uint32(id))
}

// IDOf returns the external id of idx. Panics if idx is out of range.
func (t *Table) IDOf(idx NodeIndex) NodeID {
	return t.ids[idx]
}

// Title returns the title at idx. Panics if idx is out of range.
func (t *Table) Title(idx NodeIndex) string {
	return t.entries[idx].title
}

// Children returns the children of idx.
func (t *Table) Children(idx NodeIndex) []NodeIndex {
	return t.entries[idx].Children()
}

// Parents returns the parents of idx.
func (t *Table) Parents(idx NodeIndex) []NodeIndex {
	return t.entries[idx].Parents()
}

// All iterates every node in NodeIndex order.
func (t *Table) All() iter.Seq2[NodeIndex, *Entry] {
	return func(yield func(NodeIndex, *Entry) bool) {
		for i := range t.entries {
			if !yield(NodeIndex(i), &t.entries[i]) {
				return
			}
		}
	}
}

// Spec converts the node at idx back into external ids.
func (t *Table) Spec(idx NodeIndex) NodeSpec {
	e := &t.entries[idx]
	spec := NodeSpec{
		ID:       t.ids[idx],
		Title:    e.title,
		Parents:  make([]NodeID, 0, e.firstChild),
		Children: make([]NodeID, 0, len(e.neighbors)-int(e.lastParent)),
	}
	for _, p := range e.Parents() {
		spec.Parents = append(spec.Parents, t.ids[p])
	}
	for _, c := range e.Children() {
		spec.Children = append(spec.Children, t.ids[c])
	}
	return spec
}

// Validate checks that no neighbor dangles and that links are symmetric.
//
// Description:
//
//	For every pair of nodes p and c, c must be a child of p exactly when
//	p is a parent of c. Sorted copies of the adjacency lists are built for
//	the check, so memory briefly grows by the size of the edge set.
//
// Outputs:
//   - error: ErrDanglingNeighbor or ErrAsymmetricLink, nil if consistent.
func (t *Table) Validate() error {
	n := NodeIndex(len(t.entries))
	for i := range t.entries {
		for _, nb := range t.entries[i].neighbors {
			if nb >= n {
				return fmt.Errorf("%w: node %d refers to index %d of %d",
					ErrDanglingNeighbor, t.ids[i], nb, n)
			}
		}
	}

	sortedParents := make([][]NodeIndex, n)
	for i := range t.entries {
		sortedParents[i] = slices.Clone(t.entries[i].Parents())
		slices.Sort(sortedParents[i])
	}

	childEdges, parentEdges := 0, 0
	for p := range t.entries {
		for _, c := range t.entries[p].Children() {
			if _, found := slices.BinarySearch(sortedParents[c], NodeIndex(p)); !found {
				return fmt.Errorf("%w: %d links to %d but is not its parent",
					ErrAsymmetricLink, t.ids[p], t.ids[c])
			}
			childEdges++
		}
		parentEdges += len(sortedParents[p])
	}
	// Every child edge has a matching parent edge and neither list has
	// duplicates, so equal totals leave no parent edge unmatched.
	if childEdges != parentEdges {
		return fmt.Errorf("%w: %d child edges but %d parent edges",
			ErrAsymmetricLink, childEdges, parentEdges)
	}
	return nil
}
