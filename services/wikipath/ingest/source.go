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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/wikipath/services/wikipath/graph"
)

// cancelCheckInterval is how many lines a shard worker reads between
// context checks.
const cancelCheckInterval = 4096

// Options configures a Source.
type Options struct {
	// Logger receives per-line debug output and per-file summaries.
	Logger *slog.Logger

	// Workers bounds how many link shards are parsed at once.
	// Default: runtime.GOMAXPROCS(0).
	Workers int
}

// Option is a functional option for Source.
type Option func(*Options)

// WithLogger sets the source logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

// WithWorkers sets the link shard parallelism. Values < 1 are ignored.
func WithWorkers(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.Workers = n
		}
	}
}

// Inputs names the streams of one build. Redirects may be left empty.
type Inputs struct {
	Pages     Input
	Redirects Input
	Links     []Input
}

type stage uint8

const (
	stagePages stage = iota
	stageRedirects
	stageLinks
	stageDone
)

// Source is a graph.RecordSource over TSV inputs.
//
// Description:
//
//	Pages and redirects are streamed line by line. When the first link
//	is requested, every link shard is parsed in parallel and held in
//	memory until the source has handed them all out, in shard order.
//
// Thread Safety: Not safe for concurrent use. Next is called by a single
// consumer, normally graph.Ingest.
type Source struct {
	ctx     context.Context
	opts    Options
	logger  *slog.Logger
	closers []io.Closer

	stage     stage
	pages     *lineReader
	redirects *lineReader
	links     []Input

	linkBuf    []graph.LinkDecl
	linkPos    int
	linkStats  Stats
	linkLoaded bool
}

var _ graph.RecordSource = (*Source)(nil)

// NewSource returns a source reading in.
//
// Inputs:
//   - ctx: Cancels the parallel link shard parse.
//   - in: The input streams. Pages is required.
//   - opts: Source options.
//
// Outputs:
//   - *Source: The source.
//   - error: ErrNoPages if in.Pages has no reader.
func NewSource(ctx context.Context, in Inputs, opts ...Option) (*Source, error) {
	if in.Pages.Reader == nil {
		return nil, ErrNoPages
	}
	o := Options{Logger: slog.Default(), Workers: runtime.GOMAXPROCS(0)}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.Logger.With(slog.String("component", "ingest"))

	s := &Source{
		ctx:    ctx,
		opts:   o,
		logger: logger,
		pages:  newLineReader(in.Pages, logger),
		links:  in.Links,
	}
	if in.Redirects.Reader != nil {
		s.redirects = newLineReader(in.Redirects, logger)
	}
	return s, nil
}

// Next implements graph.RecordSource.
func (s *Source) Next() (graph.Record, error) {
	for {
		switch s.stage {
		case stagePages:
			p, err := s.pages.readPage()
			if err == nil {
				return p, nil
			}
			if !errors.Is(err, io.EOF) {
				return nil, err
			}
			s.logDone(s.pages)
			s.stage = stageRedirects

		case stageRedirects:
			if s.redirects == nil {
				s.stage = stageLinks
				continue
			}
			r, err := s.redirects.readRedirect()
			if err == nil {
				return r, nil
			}
			if !errors.Is(err, io.EOF) {
				return nil, err
			}
			s.logDone(s.redirects)
			s.stage = stageLinks

		case stageLinks:
			if !s.linkLoaded {
				if err := s.loadLinks(); err != nil {
					return nil, err
				}
			}
			if s.linkPos < len(s.linkBuf) {
				l := s.linkBuf[s.linkPos]
				s.linkPos++
				return l, nil
			}
			s.linkBuf = nil
			s.stage = stageDone

		default:
			return nil, io.EOF
		}
	}
}

// loadLinks parses every link shard in parallel. Shards keep their order.
func (s *Source) loadLinks() error {
	start := time.Now()
	perShard := make([][]graph.LinkDecl, len(s.links))
	stats := make([]Stats, len(s.links))

	g, gctx := errgroup.WithContext(s.ctx)
	g.SetLimit(s.opts.Workers)
	for i, in := range s.links {
		g.Go(func() error {
			lr := newLineReader(in, s.logger)
			var out []graph.LinkDecl
			for {
				if lr.line%cancelCheckInterval == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				l, err := lr.readLink()
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					return err
				}
				out = append(out, l)
			}
			perShard[i] = out
			stats[i] = lr.stats
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("parse link shards: %w", err)
	}

	total := 0
	for i := range perShard {
		total += len(perShard[i])
		s.linkStats.add(stats[i])
	}
	s.linkBuf = make([]graph.LinkDecl, 0, total)
	for _, shard := range perShard {
		s.linkBuf = append(s.linkBuf, shard...)
	}
	s.linkLoaded = true

	s.logger.Info("link shards parsed",
		slog.Int("shards", len(s.links)),
		slog.Int("links", total),
		slog.Int64("malformed", s.linkStats.Malformed),
		slog.Duration("duration", time.Since(start)))
	return nil
}

func (s *Source) logDone(r *lineReader) {
	s.logger.Info("input read",
		slog.String("file", r.name),
		slog.Int64("records", r.stats.Records),
		slog.Int64("malformed", r.stats.Malformed))
}

// Stats returns line counts over everything read so far.
func (s *Source) Stats() Stats {
	var st Stats
	st.add(s.pages.stats)
	if s.redirects != nil {
		st.add(s.redirects.stats)
	}
	st.add(s.linkStats)
	return st
}

// Close closes any files opened by OpenFiles.
func (s *Source) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
