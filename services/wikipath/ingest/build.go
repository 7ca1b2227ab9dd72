// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ingest

import (
	"context"

	"github.com/AleutianAI/wikipath/services/wikipath/graph"
)

// Build drains src into a graph and records malformed line counts in the
// build stats.
func Build(ctx context.Context, src *Source, opts ...graph.BuilderOption) (*graph.Table, *graph.BuildResult, error) {
	t, result, err := graph.Ingest(ctx, src, opts...)
	if err != nil {
		return nil, nil, err
	}
	result.Stats.MalformedRecords = int(src.Stats().Malformed)
	return t, result, nil
}
