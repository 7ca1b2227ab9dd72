// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package titles

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/wikipath/services/wikipath/graph"
)

// DefaultSuggestionLimit is the number of suggestions Resolve returns.
const DefaultSuggestionLimit = 10

// cancelCheckInterval is how many titles a scan covers between context checks.
const cancelCheckInterval = 4096

// MatchKind says how a query was resolved.
type MatchKind uint8

const (
	// MatchNone means the query did not resolve.
	MatchNone MatchKind = iota

	// MatchExact means the query is a title.
	MatchExact

	// MatchUpper means the query resolved through its upper case form.
	MatchUpper
)

// String returns the match kind name.
func (k MatchKind) String() string {
	switch k {
	case MatchNone:
		return "none"
	case MatchExact:
		return "exact"
	case MatchUpper:
		return "upper"
	default:
		return "unknown"
	}
}

// Result is a resolved query.
type Result struct {
	// ID is the resolved page. Zero when Match is MatchNone.
	ID graph.NodeID

	// Title is the canonical title of the page.
	Title string

	// Match is how the query resolved.
	Match MatchKind

	// Suggestions holds candidate titles when Match is MatchNone.
	Suggestions []string
}

// Index maps titles and alias titles to page ids.
//
// Thread Safety: Immutable after New. Safe for concurrent use.
type Index struct {
	exact map[string]graph.NodeID
	upper map[string]graph.NodeID
	names map[graph.NodeID]string

	// byLength holds every title, shortest first, with folded aligned to it.
	byLength []string
	folded   []string
}

// New builds an index over the page titles of t plus aliases.
//
// Description:
//
//	Page titles win over aliases with the same text. Upper case forms are
//	only kept when a single page owns them; colliding forms are dropped
//	so that an upper case lookup never picks an arbitrary page.
//
// Inputs:
//   - ctx: Context used for the size metric.
//   - t: The graph whose titles are indexed.
//   - aliases: Extra titles, usually redirect titles. May be nil. Aliases
//     naming a page that is not in t are ignored.
//
// Outputs:
//   - *Index: The index. Never nil.
func New(ctx context.Context, t *graph.Table, aliases map[string]graph.NodeID) *Index {
	x := &Index{
		exact: make(map[string]graph.NodeID, t.Len()+len(aliases)),
		names: make(map[graph.NodeID]string, t.Len()),
	}
	for idx, e := range t.All() {
		id := t.IDOf(idx)
		x.names[id] = e.Title()
		x.exact[e.Title()] = id
	}
	for title, id := range aliases {
		if _, ok := x.names[id]; !ok {
			continue
		}
		if _, taken := x.exact[title]; !taken {
			x.exact[title] = id
		}
	}
	x.finish()
	recordIndexSize(ctx, len(x.exact))
	return x
}

// FromMap builds an index from title to id pairs. The canonical title of
// an id is the shortest title mapped to it.
func FromMap(titles map[string]graph.NodeID) *Index {
	x := &Index{
		exact: make(map[string]graph.NodeID, len(titles)),
		names: make(map[graph.NodeID]string, len(titles)),
	}
	for title, id := range titles {
		x.exact[title] = id
		if cur, ok := x.names[id]; !ok || len(title) < len(cur) || (len(title) == len(cur) && title < cur) {
			x.names[id] = title
		}
	}
	x.finish()
	return x
}

func (x *Index) finish() {
	x.upper = make(map[string]graph.NodeID, len(x.exact))
	collided := make(map[string]bool)
	for title, id := range x.exact {
		up := strings.ToUpper(title)
		if collided[up] {
			continue
		}
		if prev, ok := x.upper[up]; ok && prev != id {
			delete(x.upper, up)
			collided[up] = true
			continue
		}
		x.upper[up] = id
	}

	x.byLength = make([]string, 0, len(x.exact))
	for title := range x.exact {
		x.byLength = append(x.byLength, title)
	}
	sort.Slice(x.byLength, func(i, j int) bool {
		a, b := x.byLength[i], x.byLength[j]
		if len(a) != len(b) {
			return len(a) < len(b)
		}
		return a < b
	})
	x.folded = make([]string, len(x.byLength))
	for i, title := range x.byLength {
		x.folded[i] = strings.ToLower(title)
	}
}

// Len returns the number of indexed titles, aliases included.
func (x *Index) Len() int {
	return len(x.exact)
}

// Title returns the canonical title of id.
func (x *Index) Title(id graph.NodeID) (string, bool) {
	title, ok := x.names[id]
	return title, ok
}

// Lookup resolves query by exact title, then by its upper case form.
func (x *Index) Lookup(query string) (graph.NodeID, MatchKind) {
	if id, ok := x.exact[query]; ok {
		return id, MatchExact
	}
	if id, ok := x.upper[strings.ToUpper(query)]; ok {
		return id, MatchUpper
	}
	return 0, MatchNone
}

// Suggest returns up to limit titles containing query, ignoring case.
//
// Description:
//
//	Shorter titles come first, ties in byte order, so the closest
//	candidates lead the list.
//
// Inputs:
//   - ctx: Context for cancellation. Checked every few thousand titles.
//   - query: The substring. An empty query returns nil.
//   - limit: Maximum number of results. Values < 1 mean
//     DefaultSuggestionLimit.
//
// Outputs:
//   - []string: Matching titles. Empty, not nil, when nothing matches.
//   - error: The context error if cancelled.
func (x *Index) Suggest(ctx context.Context, query string, limit int) ([]string, error) {
	if query == "" {
		return nil, nil
	}
	if limit < 1 {
		limit = DefaultSuggestionLimit
	}
	needle := strings.ToLower(query)
	out := make([]string, 0, limit)
	for i, f := range x.folded {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if strings.Contains(f, needle) {
			out = append(out, x.byLength[i])
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// Resolve turns a user query into a page id.
//
// Outputs:
//   - Result: The resolution. On ErrUnknownTitle it carries suggestions.
//   - error: ErrEmptyQuery, ErrUnknownTitle or a context error.
func (x *Index) Resolve(ctx context.Context, query string) (Result, error) {
	ctx, span := startLookupSpan(ctx, query)
	defer span.End()
	start := time.Now()

	query = strings.TrimSpace(query)
	if query == "" {
		return Result{}, ErrEmptyQuery
	}

	id, kind := x.Lookup(query)
	if kind != MatchNone {
		recordLookup(ctx, kind, time.Since(start), 0)
		span.SetAttributes(attribute.String("titles.match", kind.String()))
		return Result{ID: id, Title: x.names[id], Match: kind}, nil
	}

	suggestions, err := x.Suggest(ctx, query, DefaultSuggestionLimit)
	if err != nil {
		return Result{}, err
	}
	recordLookup(ctx, MatchNone, time.Since(start), len(suggestions))
	span.SetAttributes(
		attribute.String("titles.match", MatchNone.String()),
		attribute.Int("titles.suggestions", len(suggestions)),
	)
	return Result{Match: MatchNone, Suggestions: suggestions},
		fmt.Errorf("%w: %q", ErrUnknownTitle, query)
}
