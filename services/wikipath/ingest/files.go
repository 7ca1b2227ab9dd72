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
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Files names the TSV files of one build. Paths ending in .gz are read
// through gzip. Each Links entry may be a glob pattern.
type Files struct {
	Pages     string   `yaml:"pages" toml:"pages" validate:"required"`
	Redirects string   `yaml:"redirects" toml:"redirects"`
	Links     []string `yaml:"links" toml:"links"`
}

// ExpandLinks resolves the Links patterns into a sorted, de-duplicated
// list of paths. A pattern without glob characters is kept as is so that
// a missing file is reported when it is opened.
func (f Files) ExpandLinks() ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, pattern := range f.Links {
		matches := []string{pattern}
		if strings.ContainsAny(pattern, "*?[") {
			m, err := filepath.Glob(pattern)
			if err != nil {
				return nil, fmt.Errorf("link pattern %q: %w", pattern, err)
			}
			sort.Strings(m)
			matches = m
		}
		for _, p := range matches {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	return out, nil
}

// OpenFiles opens f and returns a Source over it. Close the source to
// release the files.
func OpenFiles(ctx context.Context, f Files, opts ...Option) (*Source, error) {
	var closers []io.Closer
	fail := func(err error) (*Source, error) {
		for _, c := range closers {
			c.Close()
		}
		return nil, err
	}
	open := func(path string) (Input, error) {
		r, cs, err := openFile(path)
		closers = append(closers, cs...)
		return Input{Name: filepath.Base(path), Reader: r}, err
	}

	if f.Pages == "" {
		return nil, ErrNoPages
	}
	var in Inputs
	var err error
	if in.Pages, err = open(f.Pages); err != nil {
		return fail(err)
	}
	if f.Redirects != "" {
		if in.Redirects, err = open(f.Redirects); err != nil {
			return fail(err)
		}
	}
	links, err := f.ExpandLinks()
	if err != nil {
		return fail(err)
	}
	for _, p := range links {
		l, err := open(p)
		if err != nil {
			return fail(err)
		}
		in.Links = append(in.Links, l)
	}

	s, err := NewSource(ctx, in, opts...)
	if err != nil {
		return fail(err)
	}
	s.closers = closers
	return s, nil
}

func openFile(path string) (io.Reader, []io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, []io.Closer{f}, nil
	}
	zr, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("open gzip %s: %w", path, err)
	}
	return zr, []io.Closer{zr, f}, nil
}
