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
	"log/slog"
	"slices"
	"time"

	"github.com/AleutianAI/wikipath/services/wikipath/intindex"
)

// BuildProgress is reported to a ProgressFunc when the builder changes phase.
type BuildProgress struct {
	// Phase is the phase being entered.
	Phase Phase

	// Pages is the number of pages declared so far.
	Pages int

	// Redirects is the number of redirect placeholders declared so far.
	Redirects int

	// Links is the number of links added so far.
	Links int
}

// ProgressFunc is a callback for build progress updates.
type ProgressFunc func(progress BuildProgress)

// BuilderOptions configures the builder.
type BuilderOptions struct {
	// Logger receives per-record debug output and per-phase summaries.
	// Default: slog.Default()
	Logger *slog.Logger

	// ExpectedPages pre-sizes the node arena and id index.
	// Default: 0 (grow on demand)
	ExpectedPages int

	// ProgressCallback is called on every phase transition. May be nil.
	ProgressCallback ProgressFunc
}

// DefaultBuilderOptions returns sensible defaults.
func DefaultBuilderOptions() BuilderOptions {
	return BuilderOptions{
		Logger: slog.Default(),
	}
}

// BuilderOption is a functional option for configuring the builder.
type BuilderOption func(*BuilderOptions)

// WithLogger sets the builder logger.
func WithLogger(l *slog.Logger) BuilderOption {
	return func(o *BuilderOptions) {
		if l != nil {
			o.Logger = l
		}
	}
}

// WithExpectedPages pre-sizes builder storage.
func WithExpectedPages(n int) BuilderOption {
	return func(o *BuilderOptions) {
		if n > 0 {
			o.ExpectedPages = n
		}
	}
}

// WithProgressCallback sets the phase transition callback.
func WithProgressCallback(fn ProgressFunc) BuilderOption {
	return func(o *BuilderOptions) {
		o.ProgressCallback = fn
	}
}

type nodeKind uint8

const (
	kindPage nodeKind = iota
	kindRedirect
)

// unresolved marks a redirect whose target has not been found.
const unresolved = NodeID(intindex.Empty)

// buildNode is one arena slot. Redirects point at their next hop by id.
type buildNode struct {
	title    string
	kind     nodeKind
	dead     bool
	target   NodeID
	parents  []NodeID
	children []NodeID
}

// buildState is shared by the phase objects. Exactly one phase object owns
// it at any time.
type buildState struct {
	opts    BuilderOptions
	logger  *slog.Logger
	phase   Phase
	slots   *intindex.Index[uint32]
	arena   []buildNode
	ids     []NodeID
	titles  map[string]NodeID
	walk    *intindex.Set
	stats   BuildStats
	started time.Time
	entered time.Time
	spent   map[Phase]time.Duration
}

// PageBuilder accepts page declarations. It is the entry point of the
// builder state machine.
//
// Thread Safety: NOT safe for concurrent use.
type PageBuilder struct {
	st       *buildState
	consumed bool
}

// RedirectBuilder accepts redirect declarations.
//
// Thread Safety: NOT safe for concurrent use.
type RedirectBuilder struct {
	st       *buildState
	consumed bool
}

// LinkBuilder accepts links and produces the finalized Table.
//
// Thread Safety: NOT safe for concurrent use.
type LinkBuilder struct {
	st       *buildState
	consumed bool
}

// NewBuilder starts a build in PhaseBegin.
//
// Description:
//
//	Each phase is its own type. Moving to the next phase consumes the
//	current phase object; any later call on a consumed object panics with
//	*PhaseError. The sequence is:
//
//	  NewBuilder -> AddPage* -> Redirects() -> AddRedirect* ->
//	  Links() -> AddLink* -> Finalize()
//
// Inputs:
//   - opts: Functional options.
//
// Outputs:
//   - *PageBuilder: The builder in PhaseBegin. Never nil.
func NewBuilder(opts ...BuilderOption) *PageBuilder {
	o := DefaultBuilderOptions()
	for _, opt := range opts {
		opt(&o)
	}
	now := time.Now()
	st := &buildState{
		opts:    o,
		logger:  o.Logger.With(slog.String("component", "graph_builder")),
		phase:   PhaseBegin,
		slots:   intindex.WithSize[uint32](o.ExpectedPages),
		arena:   make([]buildNode, 0, o.ExpectedPages),
		ids:     make([]NodeID, 0, o.ExpectedPages),
		titles:  make(map[string]NodeID, o.ExpectedPages),
		walk:    intindex.NewSet(intindex.DefaultExponent),
		started: now,
		entered: now,
		spent:   make(map[Phase]time.Duration, 6),
	}
	return &PageBuilder{st: st}
}

// enter moves the state machine forward. Phases never repeat.
func (st *buildState) enter(next Phase) {
	if next <= st.phase {
		panic(&PhaseError{Op: "enter " + next.String(), Phase: st.phase})
	}
	now := time.Now()
	st.spent[st.phase] += now.Sub(st.entered)
	st.entered = now
	st.phase = next

	st.logger.Debug("builder phase entered", slog.String("phase", next.String()))
	if st.opts.ProgressCallback != nil {
		st.opts.ProgressCallback(BuildProgress{
			Phase:     next,
			Pages:     st.stats.Pages,
			Redirects: st.stats.Redirects,
			Links:     st.stats.LinksAdded,
		})
	}
}

// node returns the live arena slot for id.
func (st *buildState) node(id NodeID) (*buildNode, bool) {
	slot, ok := st.slots.Get(uint32(id))
	if !ok || st.arena[slot].dead {
		return nil, false
	}
	return &st.arena[slot], true
}

func (b *PageBuilder) state(op string) *buildState {
	if b.consumed {
		panic(&PhaseError{Op: op + " on a consumed builder", Phase: b.st.phase})
	}
	if b.st.phase != PhaseBegin && b.st.phase != PhaseAddPages {
		panic(&PhaseError{Op: op, Phase: b.st.phase})
	}
	return b.st
}

// AddPage declares a page or a redirect placeholder.
//
// Description:
//
//	The title is registered in the title table so that redirects and
//	links can find the id. If the title is already claimed the first
//	page keeps it.
//
// Inputs:
//   - id: External page id. Must not be the reserved sentinel.
//   - title: Page title.
//   - isRedirect: True if the page only redirects elsewhere.
//
// Outputs:
//   - bool: False if the id was already claimed or is reserved.
func (b *PageBuilder) AddPage(id NodeID, title string, isRedirect bool) bool {
	st := b.state("AddPage")
	if st.phase == PhaseBegin {
		st.enter(PhaseAddPages)
	}

	if uint32(id) == intindex.Empty {
		st.stats.InvalidIDs++
		st.logger.Debug("reserved page id", slog.String("title", title))
		return false
	}
	if !st.slots.Insert(uint32(id), uint32(len(st.arena))) {
		st.stats.DuplicatePages++
		st.logger.Debug("duplicate page id",
			slog.Uint64("id", uint64(id)),
			slog.String("title", title))
		return false
	}

	n := buildNode{title: title, kind: kindPage, target: unresolved}
	if isRedirect {
		n.kind = kindRedirect
		st.stats.Redirects++
	} else {
		st.stats.Pages++
	}
	st.arena = append(st.arena, n)
	st.ids = append(st.ids, id)

	if _, taken := st.titles[title]; taken {
		st.stats.DuplicateTitles++
		st.logger.Debug("duplicate title",
			slog.Uint64("id", uint64(id)),
			slog.String("title", title))
	} else {
		st.titles[title] = id
	}
	return true
}

// Redirects closes the page phase and returns the redirect phase.
//
// The PageBuilder must not be used afterwards.
func (b *PageBuilder) Redirects() *RedirectBuilder {
	st := b.state("Redirects")
	b.consumed = true
	if st.phase == PhaseBegin {
		st.enter(PhaseAddPages)
	}
	st.logger.Info("pages added",
		slog.Int("pages", st.stats.Pages),
		slog.Int("redirects", st.stats.Redirects),
		slog.Int("duplicate_pages", st.stats.DuplicatePages),
		slog.Int("duplicate_titles", st.stats.DuplicateTitles))
	st.enter(PhaseAddRedirects)
	return &RedirectBuilder{st: st}
}

func (b *RedirectBuilder) state(op string) *buildState {
	if b.consumed {
		panic(&PhaseError{Op: op + " on a consumed builder", Phase: b.st.phase})
	}
	if b.st.phase != PhaseAddRedirects {
		panic(&PhaseError{Op: op, Phase: b.st.phase})
	}
	return b.st
}

// AddRedirect resolves the target of a redirect placeholder.
//
// Description:
//
//	Looks up targetTitle in the title table. The target may itself be a
//	redirect; chains are followed later when links are added. A missing
//	id, an id that is a page, an unknown title or a second redirect for
//	the same id are logged and skipped.
//
// Outputs:
//   - bool: True if the redirect now has a target.
func (b *RedirectBuilder) AddRedirect(id NodeID, targetTitle string) bool {
	st := b.state("AddRedirect")

	n, ok := st.node(id)
	switch {
	case !ok:
		st.stats.MissingRedirectSources++
		st.logger.Debug("redirect from unknown id", slog.Uint64("id", uint64(id)))
		return false
	case n.kind == kindPage:
		st.stats.RedirectsFromPages++
		st.logger.Debug("redirect from a page",
			slog.Uint64("id", uint64(id)),
			slog.String("title", n.title))
		return false
	case n.target != unresolved:
		st.stats.DuplicateRedirects++
		st.logger.Debug("second redirect for id", slog.Uint64("id", uint64(id)))
		return false
	}

	target, ok := st.titles[targetTitle]
	if !ok {
		st.stats.UnknownRedirectTargets++
		st.logger.Debug("redirect to unknown title",
			slog.Uint64("id", uint64(id)),
			slog.String("target", targetTitle))
		return false
	}
	n.target = target
	st.stats.ResolvedRedirects++
	return true
}

// Links closes the redirect phase, tidies entries and returns the link
// phase.
//
// The RedirectBuilder must not be used afterwards.
func (b *RedirectBuilder) Links() *LinkBuilder {
	st := b.state("Links")
	b.consumed = true
	st.logger.Info("redirects added",
		slog.Int("resolved", st.stats.ResolvedRedirects),
		slog.Int("missing_sources", st.stats.MissingRedirectSources),
		slog.Int("from_pages", st.stats.RedirectsFromPages),
		slog.Int("unknown_targets", st.stats.UnknownRedirectTargets))

	st.enter(PhaseTidyEntries)
	st.tidy()
	st.enter(PhaseAddLinks)
	return &LinkBuilder{st: st}
}

// tidy removes redirects that never resolved and points every title at
// the page its redirect chain ends on.
func (st *buildState) tidy() {
	for i := range st.arena {
		n := &st.arena[i]
		if n.kind == kindRedirect && n.target == unresolved {
			n.dead = true
			st.stats.UnresolvedRedirects++
		}
	}

	for title, id := range st.titles {
		final, res := st.resolve(id)
		switch {
		case res != resolvedOK:
			delete(st.titles, title)
			st.stats.RemovedTitles++
		case final != id:
			st.titles[title] = final
			st.stats.RepointedTitles++
		}
	}

	st.logger.Info("entries tidied",
		slog.Int("unresolved_redirects", st.stats.UnresolvedRedirects),
		slog.Int("repointed_titles", st.stats.RepointedTitles),
		slog.Int("removed_titles", st.stats.RemovedTitles))
}

type resolution uint8

const (
	resolvedOK resolution = iota
	resolvedMissing
	resolvedUnresolved
	resolvedCycle
)

// resolve follows redirect next hops from id until it reaches a page.
//
// The walk is iterative over the arena with a seen set, so a redirect
// cycle is reported instead of looping.
func (st *buildState) resolve(id NodeID) (NodeID, resolution) {
	st.walk.Clear()
	cur := id
	for {
		slot, ok := st.slots.Get(uint32(cur))
		if !ok {
			return 0, resolvedMissing
		}
		n := &st.arena[slot]
		if n.dead {
			return 0, resolvedUnresolved
		}
		if n.kind == kindPage {
			return cur, resolvedOK
		}
		if n.target == unresolved {
			return 0, resolvedUnresolved
		}
		if !st.walk.Add(uint32(cur)) {
			return 0, resolvedCycle
		}
		cur = n.target
	}
}

func (b *LinkBuilder) state(op string) *buildState {
	if b.consumed {
		panic(&PhaseError{Op: op + " on a consumed builder", Phase: b.st.phase})
	}
	if b.st.phase != PhaseAddLinks {
		panic(&PhaseError{Op: op, Phase: b.st.phase})
	}
	return b.st
}

// AddLink adds a link from srcID to the page titled dstTitle.
//
// Description:
//
//	Both endpoints are resolved through redirect chains before the link
//	is stored, so links never touch redirect nodes. Unknown titles,
//	unknown sources, unresolved chains and cycles are logged and skipped.
//	A link from a page to itself (after resolution) is dropped and
//	counted in SelfLoops.
//
// Outputs:
//   - bool: True if the link was stored.
func (b *LinkBuilder) AddLink(srcID NodeID, dstTitle string) bool {
	st := b.state("AddLink")

	dstID, ok := st.titles[dstTitle]
	if !ok {
		st.stats.UnknownLinkTargets++
		st.logger.Debug("link to unknown title",
			slog.Uint64("src", uint64(srcID)),
			slog.String("dst", dstTitle))
		return false
	}

	src, res := st.resolve(srcID)
	if !st.countFailure(res, srcID, true) {
		return false
	}
	dst, res := st.resolve(dstID)
	if !st.countFailure(res, dstID, false) {
		return false
	}

	if src == dst {
		st.stats.SelfLoops++
		st.logger.Debug("self loop dropped", slog.Uint64("id", uint64(src)))
		return false
	}

	srcNode, _ := st.node(src)
	dstNode, _ := st.node(dst)
	srcNode.children = append(srcNode.children, dst)
	dstNode.parents = append(dstNode.parents, src)
	st.stats.LinksAdded++
	return true
}

// countFailure records a failed resolution and reports whether res is ok.
func (st *buildState) countFailure(res resolution, id NodeID, source bool) bool {
	switch res {
	case resolvedOK:
		return true
	case resolvedMissing:
		if source {
			st.stats.UnknownLinkSources++
		} else {
			st.stats.UnresolvedLinks++
		}
	case resolvedUnresolved:
		st.stats.UnresolvedLinks++
	case resolvedCycle:
		st.stats.RedirectCycles++
	}
	st.logger.Debug("link endpoint did not resolve",
		slog.Uint64("id", uint64(id)),
		slog.Bool("source", source),
		slog.Int("resolution", int(res)))
	return false
}

// Finalize compacts the graph into an immutable Table.
//
// Description:
//
//	Sorts and deduplicates every adjacency list, strips redirect nodes,
//	asserts symmetry and asserts that no adjacency list names a redirect.
//	Then assigns dense indices and builds the Table. Assertion failures
//	mean the builder itself is broken and panic with *InvariantError.
//
// Outputs:
//   - *Table: The finalized graph. Never nil.
//   - *BuildResult: Counters and timings. Never nil.
//
// The LinkBuilder must not be used afterwards.
func (b *LinkBuilder) Finalize() (*Table, *BuildResult) {
	st := b.state("Finalize")
	b.consumed = true
	ctx, span := startBuildSpan(context.Background())
	defer span.End()

	st.logger.Info("links added",
		slog.Int("links", st.stats.LinksAdded),
		slog.Int("unknown_targets", st.stats.UnknownLinkTargets),
		slog.Int("unknown_sources", st.stats.UnknownLinkSources),
		slog.Int("unresolved", st.stats.UnresolvedLinks),
		slog.Int("cycles", st.stats.RedirectCycles),
		slog.Int("self_loops", st.stats.SelfLoops))

	for i := range st.arena {
		n := &st.arena[i]
		if n.dead {
			continue
		}
		if n.kind == kindRedirect {
			n.dead = true
			st.stats.StrippedRedirects++
			continue
		}
		before := len(n.children) + len(n.parents)
		slices.Sort(n.children)
		n.children = slices.Compact(n.children)
		slices.Sort(n.parents)
		n.parents = slices.Compact(n.parents)
		st.stats.DuplicateLinks += before - len(n.children) - len(n.parents)
	}
	// Each duplicate link was counted once on each endpoint.
	st.stats.DuplicateLinks /= 2

	st.assertNoRedirects()
	st.assertSymmetric()

	specs := make([]NodeSpec, 0, st.stats.Pages)
	for i := range st.arena {
		n := &st.arena[i]
		if n.dead {
			continue
		}
		specs = append(specs, NodeSpec{
			ID:       st.ids[i],
			Title:    n.title,
			Parents:  n.parents,
			Children: n.children,
		})
	}
	t, err := NewTable(specs)
	if err != nil {
		panic(&InvariantError{Invariant: "finalized table", Detail: err.Error()})
	}

	st.stats.Nodes = t.Len()
	st.stats.Edges = t.EdgeCount()
	st.enter(PhaseDone)

	aliases := make(map[string]NodeID)
	for title, id := range st.titles {
		if n, ok := st.node(id); ok && n.title != title {
			aliases[title] = id
		}
	}

	result := &BuildResult{
		Stats:          st.stats,
		PhaseDurations: st.spent,
		Duration:       time.Since(st.started),
		Aliases:        aliases,
	}
	setBuildSpanResult(span, t.Len(), t.EdgeCount(), result.Stats.Skipped())
	recordBuildMetrics(ctx, result.Duration, t.Len(), t.EdgeCount())

	st.logger.Info("graph finalized",
		slog.Int("nodes", t.Len()),
		slog.Int("edges", t.EdgeCount()),
		slog.Int("stripped_redirects", st.stats.StrippedRedirects),
		slog.Int("duplicate_links", st.stats.DuplicateLinks),
		slog.Duration("duration", result.Duration))
	return t, result
}

// assertNoRedirects panics if any live adjacency list names a node that is
// not a live page.
func (st *buildState) assertNoRedirects() {
	check := func(owner NodeID, ids []NodeID) {
		for _, id := range ids {
			n, ok := st.node(id)
			if ok && n.kind == kindPage {
				continue
			}
			kind := "missing"
			if slot, found := st.slots.Get(uint32(id)); found && st.arena[slot].kind == kindRedirect {
				kind = "redirect"
			}
			panic(&InvariantError{
				Invariant: "no redirects in adjacency",
				Detail:    fmt.Sprintf("node %d refers to %s node %d", owner, kind, id),
			})
		}
	}
	for i := range st.arena {
		n := &st.arena[i]
		if n.dead {
			continue
		}
		check(st.ids[i], n.parents)
		check(st.ids[i], n.children)
	}
}

// assertSymmetric panics unless c is a child of p exactly when p is a
// parent of c. Lists must already be sorted.
func (st *buildState) assertSymmetric() {
	for i := range st.arena {
		n := &st.arena[i]
		if n.dead {
			continue
		}
		p := st.ids[i]
		for _, c := range n.children {
			child, _ := st.node(c)
			if _, found := slices.BinarySearch(child.parents, p); !found {
				panic(&InvariantError{
					Invariant: "symmetry",
					Detail:    fmt.Sprintf("%d has child %d but is not its parent", p, c),
				})
			}
		}
		for _, q := range n.parents {
			parent, _ := st.node(q)
			if _, found := slices.BinarySearch(parent.children, p); !found {
				panic(&InvariantError{
					Invariant: "symmetry",
					Detail:    fmt.Sprintf("%d has parent %d but is not its child", p, q),
				})
			}
		}
	}
}
