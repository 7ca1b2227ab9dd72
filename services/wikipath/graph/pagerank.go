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
	"log/slog"
	"math"
	"sort"

	"go.opentelemetry.io/otel/attribute"
)

// PageRank configuration constants.
const (
	// DefaultDampingFactor is the probability of following a link (vs random jump).
	DefaultDampingFactor = 0.85

	// DefaultMaxIterations is the maximum iterations before stopping.
	DefaultMaxIterations = 500

	// DefaultConvergence is the threshold for convergence detection.
	// Power iteration stops when the max score change is at or below it.
	DefaultConvergence = 1e-8
)

// PageRankOptions configures the PageRank algorithm.
type PageRankOptions struct {
	// DampingFactor must be in [0, 1]. Default: 0.85
	DampingFactor float64

	// MaxIterations must be > 0. Default: 500
	MaxIterations int

	// Convergence must be > 0. Default: 1e-8
	Convergence float64
}

// Validate checks options and applies defaults for invalid values.
func (o *PageRankOptions) Validate() {
	if o.DampingFactor < 0 || o.DampingFactor > 1 {
		o.DampingFactor = DefaultDampingFactor
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	if o.Convergence <= 0 {
		o.Convergence = DefaultConvergence
	}
}

// DefaultPageRankOptions returns sensible defaults.
func DefaultPageRankOptions() *PageRankOptions {
	return &PageRankOptions{
		DampingFactor: DefaultDampingFactor,
		MaxIterations: DefaultMaxIterations,
		Convergence:   DefaultConvergence,
	}
}

// PageRankResult contains the output of PageRank computation.
type PageRankResult struct {
	// Scores is indexed by NodeIndex and sums to approximately 1.0.
	Scores []float64

	// Iterations is the actual number of iterations performed.
	Iterations int

	// Converged indicates whether the scores settled before MaxIterations.
	Converged bool

	// MaxDiff is the final maximum score difference.
	MaxDiff float64
}

// RankedNode is a node with its PageRank score and rank.
type RankedNode struct {
	Index NodeIndex
	ID    NodeID
	Title string
	Score float64

	// Rank is the position in the ranking (1-indexed).
	Rank int
}

// PageRank computes PageRank scores for every node.
//
// Description:
//
//	Power iteration starting from 1/N. Each node hands its score evenly
//	to its children. Nodes without children hand it evenly to every node.
//	Stops when the largest change in one iteration is at or below
//	Convergence, or after MaxIterations.
//
// Inputs:
//   - ctx: Context for cancellation. Checked once per iteration.
//   - t: The graph. Must not be nil.
//   - opts: Options, nil for defaults.
//
// Outputs:
//   - *PageRankResult: Scores indexed by NodeIndex. On cancellation the
//     scores of the last completed iteration are returned with
//     Converged false.
//
// Thread Safety: Safe for concurrent use.
func PageRank(ctx context.Context, t *Table, opts *PageRankOptions) *PageRankResult {
	if opts == nil {
		opts = DefaultPageRankOptions()
	}
	opts.Validate()

	ctx, span := tracer.Start(ctx, "Graph.PageRank")
	defer span.End()

	n := t.Len()
	result := &PageRankResult{Scores: make([]float64, n)}
	if n == 0 {
		result.Converged = true
		return result
	}

	d := opts.DampingFactor
	nf := float64(n)
	ranks := result.Scores
	for i := range ranks {
		ranks[i] = 1 / nf
	}
	next := make([]float64, n)

	for iter := 1; iter <= opts.MaxIterations; iter++ {
		if ctx.Err() != nil {
			slog.Debug("pagerank cancelled", slog.Int("iteration", iter))
			break
		}

		sinkMass := 0.0
		for i := range next {
			next[i] = 0
		}
		for i := range ranks {
			children := t.Children(NodeIndex(i))
			if len(children) == 0 {
				sinkMass += ranks[i]
				continue
			}
			share := ranks[i] / float64(len(children))
			for _, c := range children {
				next[c] += share
			}
		}

		base := (1-d)/nf + d*sinkMass/nf
		maxDiff := 0.0
		for i := range next {
			next[i] = base + d*next[i]
			maxDiff = math.Max(maxDiff, math.Abs(next[i]-ranks[i]))
		}
		ranks, next = next, ranks

		result.Iterations = iter
		result.MaxDiff = maxDiff
		if maxDiff <= opts.Convergence {
			result.Converged = true
			break
		}
	}
	result.Scores = ranks

	span.SetAttributes(
		attribute.Int("pagerank.iterations", result.Iterations),
		attribute.Bool("pagerank.converged", result.Converged),
		attribute.Float64("pagerank.max_diff", result.MaxDiff),
	)
	return result
}

// TopRanked returns the k highest scoring nodes, best first.
//
// Ties are broken by NodeID so the order is stable.
func (r *PageRankResult) TopRanked(t *Table, k int) []RankedNode {
	order := make([]int, len(r.Scores))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		sa, sb := r.Scores[order[a]], r.Scores[order[b]]
		if sa != sb {
			return sa > sb
		}
		return t.IDOf(NodeIndex(order[a])) < t.IDOf(NodeIndex(order[b]))
	})
	if k <= 0 || k > len(order) {
		k = len(order)
	}

	out := make([]RankedNode, k)
	for i := 0; i < k; i++ {
		idx := NodeIndex(order[i])
		out[i] = RankedNode{
			Index: idx,
			ID:    t.IDOf(idx),
			Title: t.Title(idx),
			Score: r.Scores[idx],
			Rank:  i + 1,
		}
	}
	return out
}
