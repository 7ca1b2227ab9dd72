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
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/AleutianAI/wikipath/services/wikipath/graph"
	"github.com/AleutianAI/wikipath/services/wikipath/intindex"
)

// MaxLineBytes bounds a single input line.
const MaxLineBytes = 1 << 20

// Input is a named record stream. Name is used in logs and errors.
type Input struct {
	Name   string
	Reader io.Reader
}

// Stats counts lines seen by a source.
type Stats struct {
	// Lines is every line read, skipped ones included.
	Lines int64 `json:"lines"`

	// Records is the number of records produced.
	Records int64 `json:"records"`

	// Skipped counts blank and comment lines.
	Skipped int64 `json:"skipped"`

	// Malformed counts lines that did not parse.
	Malformed int64 `json:"malformed"`
}

func (s *Stats) add(o Stats) {
	s.Lines += o.Lines
	s.Records += o.Records
	s.Skipped += o.Skipped
	s.Malformed += o.Malformed
}

// lineReader yields the tab separated fields of each data line.
type lineReader struct {
	name    string
	scanner *bufio.Scanner
	line    int64
	stats   Stats
	logger  *slog.Logger
}

func newLineReader(in Input, logger *slog.Logger) *lineReader {
	sc := bufio.NewScanner(in.Reader)
	sc.Buffer(make([]byte, 0, 64*1024), MaxLineBytes)
	return &lineReader{name: in.Name, scanner: sc, logger: logger}
}

// next returns the fields of the next data line, or io.EOF.
func (r *lineReader) next() ([]string, error) {
	for r.scanner.Scan() {
		r.line++
		r.stats.Lines++
		text := strings.TrimRight(r.scanner.Text(), "\r")
		if strings.TrimSpace(text) == "" || strings.HasPrefix(text, "#") {
			r.stats.Skipped++
			continue
		}
		return strings.Split(text, "\t"), nil
	}
	if err := r.scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, fmt.Errorf("%w: %s:%d", ErrLineTooLong, r.name, r.line+1)
		}
		return nil, fmt.Errorf("read %s: %w", r.name, err)
	}
	return nil, io.EOF
}

func (r *lineReader) malformed(reason string, fields []string) {
	r.stats.Malformed++
	r.logger.Debug("skipping malformed line",
		slog.String("file", r.name),
		slog.Int64("line", r.line),
		slog.String("reason", reason),
		slog.Int("fields", len(fields)))
}

// parseID parses a page id. The reserved id is rejected.
func parseID(s string) (graph.NodeID, bool) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil || uint32(v) == intindex.Empty {
		return 0, false
	}
	return graph.NodeID(v), true
}

func parseFlag(s string) (bool, bool) {
	switch strings.TrimSpace(s) {
	case "0":
		return false, true
	case "1":
		return true, true
	default:
		return false, false
	}
}

// readPage returns the next page declaration.
func (r *lineReader) readPage() (graph.PageDecl, error) {
	for {
		f, err := r.next()
		if err != nil {
			return graph.PageDecl{}, err
		}
		if len(f) != 3 {
			r.malformed("want 3 fields", f)
			continue
		}
		id, ok := parseID(f[0])
		if !ok {
			r.malformed("bad id", f)
			continue
		}
		redirect, ok := parseFlag(f[2])
		if !ok {
			r.malformed("bad redirect flag", f)
			continue
		}
		if f[1] == "" {
			r.malformed("empty title", f)
			continue
		}
		r.stats.Records++
		return graph.PageDecl{ID: id, Title: f[1], IsRedirect: redirect}, nil
	}
}

// readRedirect returns the next redirect declaration.
func (r *lineReader) readRedirect() (graph.RedirectDecl, error) {
	for {
		f, err := r.next()
		if err != nil {
			return graph.RedirectDecl{}, err
		}
		if len(f) != 2 {
			r.malformed("want 2 fields", f)
			continue
		}
		id, ok := parseID(f[0])
		if !ok {
			r.malformed("bad id", f)
			continue
		}
		if f[1] == "" {
			r.malformed("empty target", f)
			continue
		}
		r.stats.Records++
		return graph.RedirectDecl{ID: id, TargetTitle: f[1]}, nil
	}
}

// readLink returns the next link declaration.
func (r *lineReader) readLink() (graph.LinkDecl, error) {
	for {
		f, err := r.next()
		if err != nil {
			return graph.LinkDecl{}, err
		}
		if len(f) != 2 {
			r.malformed("want 2 fields", f)
			continue
		}
		id, ok := parseID(f[0])
		if !ok {
			r.malformed("bad id", f)
			continue
		}
		if f[1] == "" {
			r.malformed("empty target", f)
			continue
		}
		r.stats.Records++
		return graph.LinkDecl{SrcID: id, DstTitle: f[1]}, nil
	}
}
