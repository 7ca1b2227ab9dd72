// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph provides the article link graph and shortest path search.
//
// Articles are nodes identified externally by a NodeID (the page id) and
// internally by a dense NodeIndex. Links are directed edges from a parent
// article to a child article. Every node stores its parents and children in
// one flattened neighbor array (see Entry).
//
// # Lifecycle
//
// A typical graph lifecycle:
//  1. Create a builder with NewBuilder()
//  2. Declare pages with AddPage()
//  3. Move to Redirects() and resolve redirects with AddRedirect()
//  4. Move to Links() and add links with AddLink()
//  5. Call Finalize() to get an immutable *Table
//  6. Query with Search()/SearchIDs() from any number of goroutines
//
// Ingest() drives the same steps from a record stream, and ImportManifest()
// loads a previously exported Table.
//
// # Thread Safety
//
// Builders are NOT safe for concurrent use. A *Table never changes after
// construction and can be read from multiple goroutines without locking.
//
// # Failure Model
//
// Bad input (dangling redirects, unknown link targets, duplicate pages) is
// logged, counted in BuildStats and skipped. Misuse of the builder phases and
// broken structural invariants panic with *PhaseError or *InvariantError,
// because a corrupt graph must never be served.
package graph

import (
	"errors"
	"fmt"
)

// Sentinel errors for graph operations.
var (
	// ErrNoSuchID is returned when a NodeID is not present in the table.
	// It is distinct from a search that finds no path.
	ErrNoSuchID = errors.New("no such node id")

	// ErrDuplicateNeighbor is returned when a raw parent or child list
	// contains the same node twice.
	ErrDuplicateNeighbor = errors.New("duplicate neighbor")

	// ErrDuplicateNode is returned when two nodes share the same NodeID.
	ErrDuplicateNode = errors.New("duplicate node ID")

	// ErrDanglingNeighbor is returned when a neighbor refers to a node that
	// is not part of the table.
	ErrDanglingNeighbor = errors.New("dangling neighbor")

	// ErrAsymmetricLink is returned when a child edge has no matching
	// parent edge or the other way around.
	ErrAsymmetricLink = errors.New("asymmetric link")

	// ErrTooManyNodes is returned when a table would not fit in NodeIndex.
	ErrTooManyNodes = errors.New("too many nodes")

	// ErrRecordOrder is returned by Ingest when a record arrives after the
	// phase that accepts it has closed (for example a page after a link).
	ErrRecordOrder = errors.New("record out of phase order")

	// ErrBuildCancelled is returned when a build is cancelled via context.
	ErrBuildCancelled = errors.New("build cancelled")

	// ErrManifestVersion is returned for a manifest written by an
	// incompatible version.
	ErrManifestVersion = errors.New("unsupported manifest version")

	// ErrCorruptManifest is returned when manifest contents disagree with
	// the shard files they describe.
	ErrCorruptManifest = errors.New("corrupt manifest")
)

// PhaseError is the panic value for a builder operation invoked outside the
// phase that owns it.
type PhaseError struct {
	// Op is the operation that was attempted.
	Op string

	// Phase is the phase the builder was in.
	Phase Phase
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("graph builder: %s called in phase %s", e.Op, e.Phase)
}

// InvariantError is the panic value for a broken structural invariant such
// as asymmetric adjacency or a redirect left in a finalized graph.
type InvariantError struct {
	Invariant string
	Detail    string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("graph invariant %q violated: %s", e.Invariant, e.Detail)
}
