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

	"github.com/AleutianAI/wikipath/services/wikipath/intindex"
)

// AncestryResult describes how far the ancestors of a node are from it.
type AncestryResult struct {
	// Dst is the node whose ancestors were explored.
	Dst NodeIndex

	// MaxDistance is the largest shortest-path distance from any ancestor
	// to Dst. Zero when Dst has no parents.
	MaxDistance int

	// Farthest holds the ancestors at MaxDistance.
	Farthest []NodeIndex

	// Reachable is the number of nodes that can reach Dst, Dst included.
	Reachable int
}

// Ancestry runs a full upward BFS from dst over parent links.
//
// Description:
//
//	Finds the articles that take the most clicks to reach dst. Unlike
//	Search there is no round limit; the walk ends when no new ancestor
//	appears.
//
// Inputs:
//   - ctx: Context for cancellation. Checked once per level.
//   - t: The graph.
//   - dst: A valid index into t.
//
// Outputs:
//   - AncestryResult: The result.
//   - error: The context error if cancelled.
//
// Thread Safety: Safe for concurrent use.
func Ancestry(ctx context.Context, t *Table, dst NodeIndex) (AncestryResult, error) {
	_, span := tracer.Start(ctx, "Graph.Ancestry")
	defer span.End()

	seen := intindex.NewSet(intindex.DefaultExponent)
	seen.Add(uint32(dst))
	row := []NodeIndex{dst}
	result := AncestryResult{Dst: dst, Farthest: row}

	for depth := 1; ; depth++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		var next []NodeIndex
		for _, n := range row {
			for _, p := range t.Parents(n) {
				if seen.Add(uint32(p)) {
					next = append(next, p)
				}
			}
		}
		if len(next) == 0 {
			break
		}
		row = next
		result.MaxDistance = depth
		result.Farthest = row
	}
	result.Reachable = seen.Len()
	return result, nil
}
