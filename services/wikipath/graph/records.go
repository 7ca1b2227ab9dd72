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
	"errors"
	"fmt"
	"io"
)

// Record is one typed input record: PageDecl, RedirectDecl or LinkDecl.
type Record interface {
	phase() Phase
}

// PageDecl declares a page or a redirect placeholder.
type PageDecl struct {
	ID         NodeID
	Title      string
	IsRedirect bool
}

// RedirectDecl names the target title of a redirect placeholder.
type RedirectDecl struct {
	ID          NodeID
	TargetTitle string
}

// LinkDecl is a link from a page id to a title.
type LinkDecl struct {
	SrcID    NodeID
	DstTitle string
}

func (PageDecl) phase() Phase     { return PhaseAddPages }
func (RedirectDecl) phase() Phase { return PhaseAddRedirects }
func (LinkDecl) phase() Phase     { return PhaseAddLinks }

// RecordSource yields records in page, redirect, link order.
//
// Next returns io.EOF after the last record.
type RecordSource interface {
	Next() (Record, error)
}

// SliceSource is a RecordSource over an in-memory slice.
type SliceSource struct {
	records []Record
	pos     int
}

// NewSliceSource returns a source yielding records in order.
func NewSliceSource(records ...Record) *SliceSource {
	return &SliceSource{records: records}
}

// Next implements RecordSource.
func (s *SliceSource) Next() (Record, error) {
	if s.pos >= len(s.records) {
		return nil, io.EOF
	}
	r := s.records[s.pos]
	s.pos++
	return r, nil
}

// cancelCheckInterval is how many records pass between context checks.
const cancelCheckInterval = 4096

// Ingest builds a Table from a record stream.
//
// Description:
//
//	Feeds each record to the builder phase that accepts it, moving the
//	state machine forward as the record kind changes. Redirect and link
//	phases are entered even when the stream has no records of that kind.
//	A record whose phase has already closed aborts the build with
//	ErrRecordOrder, because accepting it would silently lose data.
//
// Inputs:
//   - ctx: Context for cancellation. Checked every few thousand records.
//   - src: The record stream.
//   - opts: Builder options.
//
// Outputs:
//   - *Table: The finalized graph.
//   - *BuildResult: Build counters and timings.
//   - error: ErrRecordOrder, ErrBuildCancelled or a read error.
func Ingest(ctx context.Context, src RecordSource, opts ...BuilderOption) (*Table, *BuildResult, error) {
	pages := NewBuilder(opts...)
	var redirects *RedirectBuilder
	var links *LinkBuilder

	toRedirects := func() {
		if redirects == nil {
			redirects = pages.Redirects()
		}
	}
	toLinks := func() {
		if links == nil {
			toRedirects()
			links = redirects.Links()
		}
	}

	for n := 0; ; n++ {
		if n%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, nil, fmt.Errorf("%w: after %d records: %v", ErrBuildCancelled, n, err)
			}
		}

		rec, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read record %d: %w", n, err)
		}

		switch r := rec.(type) {
		case PageDecl:
			if redirects != nil {
				return nil, nil, fmt.Errorf("%w: page %d after redirects or links", ErrRecordOrder, r.ID)
			}
			pages.AddPage(r.ID, r.Title, r.IsRedirect)
		case RedirectDecl:
			if links != nil {
				return nil, nil, fmt.Errorf("%w: redirect %d after links", ErrRecordOrder, r.ID)
			}
			toRedirects()
			redirects.AddRedirect(r.ID, r.TargetTitle)
		case LinkDecl:
			toLinks()
			links.AddLink(r.SrcID, r.DstTitle)
		default:
			return nil, nil, fmt.Errorf("record %d: unsupported type %T", n, rec)
		}
	}

	toLinks()
	t, result := links.Finalize()
	return t, result, nil
}
