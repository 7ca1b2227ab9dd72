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
	"time"
)

// Phase is a state of the builder state machine. Phases only move forward.
type Phase int

const (
	// PhaseBegin is the state before the first page is added.
	PhaseBegin Phase = iota

	// PhaseAddPages accepts page declarations.
	PhaseAddPages

	// PhaseAddRedirects accepts redirect declarations.
	PhaseAddRedirects

	// PhaseTidyEntries removes unresolved redirects and repoints titles.
	PhaseTidyEntries

	// PhaseAddLinks accepts links.
	PhaseAddLinks

	// PhaseDone means the table has been produced.
	PhaseDone
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseBegin:
		return "begin"
	case PhaseAddPages:
		return "add_pages"
	case PhaseAddRedirects:
		return "add_redirects"
	case PhaseTidyEntries:
		return "tidy_entries"
	case PhaseAddLinks:
		return "add_links"
	case PhaseDone:
		return "done"
	default:
		return "unknown"
	}
}

// BuildStats counts what the builder accepted and what it skipped.
//
// Skipped items are expected with real dumps. They reduce graph
// completeness but never abort the build.
type BuildStats struct {
	// Pages and redirects declared and accepted.
	Pages     int
	Redirects int

	// DuplicatePages counts declarations reusing a claimed id.
	DuplicatePages int

	// DuplicateTitles counts pages whose title was already claimed.
	// The first page keeps the title.
	DuplicateTitles int

	// InvalidIDs counts records using the reserved id.
	InvalidIDs int

	// ResolvedRedirects counts redirects whose target title was found.
	ResolvedRedirects int

	// MissingRedirectSources counts redirect records for undeclared ids.
	MissingRedirectSources int

	// RedirectsFromPages counts redirect records whose id is a page.
	RedirectsFromPages int

	// UnknownRedirectTargets counts redirect records naming an unknown title.
	UnknownRedirectTargets int

	// DuplicateRedirects counts second redirect records for one id.
	DuplicateRedirects int

	// UnresolvedRedirects counts redirects dropped during tidy.
	UnresolvedRedirects int

	// RepointedTitles counts titles moved from a redirect to its final page.
	RepointedTitles int

	// RemovedTitles counts titles that resolve nowhere.
	RemovedTitles int

	// LinksAdded counts links appended to adjacency lists.
	LinksAdded int

	// UnknownLinkTargets counts links to titles that are not declared.
	UnknownLinkTargets int

	// UnknownLinkSources counts links from undeclared ids.
	UnknownLinkSources int

	// UnresolvedLinks counts links whose redirect chain ends nowhere.
	UnresolvedLinks int

	// RedirectCycles counts links whose redirect chain loops.
	RedirectCycles int

	// SelfLoops counts links from a page to itself. They are dropped.
	SelfLoops int

	// DuplicateLinks counts repeated links removed at finalize.
	DuplicateLinks int

	// StrippedRedirects counts redirect nodes removed at finalize.
	StrippedRedirects int

	// MalformedRecords counts input records that could not be parsed.
	// Set by record readers, not by the builder itself.
	MalformedRecords int

	// Nodes and Edges of the finalized table.
	Nodes int
	Edges int
}

// Skipped returns the total number of inputs dropped as bad data.
func (s BuildStats) Skipped() int {
	return s.DuplicatePages + s.InvalidIDs + s.MissingRedirectSources +
		s.RedirectsFromPages + s.UnknownRedirectTargets + s.DuplicateRedirects +
		s.UnresolvedRedirects + s.UnknownLinkTargets + s.UnknownLinkSources +
		s.UnresolvedLinks + s.RedirectCycles + s.SelfLoops + s.MalformedRecords
}

// BuildResult describes a finished build.
type BuildResult struct {
	// Stats holds the per-phase counters.
	Stats BuildStats

	// PhaseDurations records wall time spent in each phase.
	PhaseDurations map[Phase]time.Duration

	// Duration is the total build time.
	Duration time.Duration

	// Aliases maps every title that is not a page's own title, such as a
	// redirect title, to the page it resolves to.
	Aliases map[string]NodeID
}

// HasSkips reports whether any input was dropped.
func (r *BuildResult) HasSkips() bool {
	return r.Stats.Skipped() > 0
}
