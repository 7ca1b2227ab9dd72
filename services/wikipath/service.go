// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package wikipath provides the wikipath HTTP service: shortest link paths
// between Wikipedia articles over a preloaded graph.
//
// The service exposes endpoints for:
//   - Searching the shortest path between two articles
//   - Title suggestions
//   - Listing remembered and longest searches
//   - PageRank and farthest-ancestor queries
package wikipath

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/AleutianAI/wikipath/services/wikipath/cache"
	"github.com/AleutianAI/wikipath/services/wikipath/graph"
	"github.com/AleutianAI/wikipath/services/wikipath/reload"
	"github.com/AleutianAI/wikipath/services/wikipath/storage/badger"
	"github.com/AleutianAI/wikipath/services/wikipath/titles"
)

// ServiceVersion is the wikipath service version.
const ServiceVersion = "0.1.0"

// IDPrefix marks a search endpoint given as a page id instead of a title.
const IDPrefix = "id:"

// DefaultArticleURL formats an article link from its page id.
const DefaultArticleURL = "https://simple.wikipedia.org/?curid=%d"

// ServiceConfig configures the wikipath service.
type ServiceConfig struct {
	// ManifestPath is the manifest loaded by Reload.
	ManifestPath string

	// SearchTimeout bounds one uncached search.
	// Default: 10s
	SearchTimeout time.Duration

	// CacheCapacity is the size of the in-memory path cache.
	// Default: cache.DefaultCapacity
	CacheCapacity int

	// LongestSize is how many longest searches are kept.
	// Default: cache.DefaultLongestSize
	LongestSize int

	// ArticleURL is a format string taking the page id.
	// Default: DefaultArticleURL
	ArticleURL string

	// Rank configures PageRank. Nil means graph.DefaultPageRankOptions.
	Rank *graph.PageRankOptions
}

// DefaultServiceConfig returns sensible defaults.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		SearchTimeout: 10 * time.Second,
		CacheCapacity: cache.DefaultCapacity,
		LongestSize:   cache.DefaultLongestSize,
		ArticleURL:    DefaultArticleURL,
	}
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithPathStore persists the path cache and longest searches.
func WithPathStore(store *badger.PathStore) ServiceOption {
	return func(s *Service) {
		s.store = store
	}
}

// WithMetrics sets the Prometheus metrics. Without it nothing is recorded.
func WithMetrics(m *Metrics) ServiceOption {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// EndpointError reports a search endpoint that did not resolve.
type EndpointError struct {
	// Role is "src" or "dst".
	Role string

	// Query is the endpoint as given.
	Query string

	// Suggestions lists candidate titles, if any.
	Suggestions []string

	Err error
}

func (e *EndpointError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Role, e.Query, e.Err)
}

func (e *EndpointError) Unwrap() error {
	return e.Err
}

// Service is the wikipath application context.
//
// Thread Safety:
//
//	Service is safe for concurrent use. Queries read the current snapshot
//	without locking; publishing a snapshot is serialized. Cache reads and
//	writes are fenced against Publish and dropped when the graph they
//	were resolved on is no longer current.
type Service struct {
	config  ServiceConfig
	snap    reload.Value[Snapshot]
	paths   *cache.Tiered
	store   *badger.PathStore
	longest *cache.Longest
	metrics *Metrics
	logger  *slog.Logger
	now     func() time.Time

	// publishMu serializes Publish. Searches hold it shared while they
	// touch paths or longest, so their records never outlive the graph
	// they were computed on.
	publishMu sync.RWMutex

	// longestMu serializes Longest updates with their persistence.
	longestMu sync.Mutex
}

// NewService creates a service with no graph loaded.
//
// Description:
//
//	Queries fail with ErrNotReady until Publish or Reload succeeds.
//	Zero config values are replaced by their defaults.
//
// Inputs:
//
//	config - Service configuration
//	opts - Optional store, metrics and logger
//
// Outputs:
//
//	*Service - The configured service
func NewService(config ServiceConfig, opts ...ServiceOption) *Service {
	def := DefaultServiceConfig()
	if config.SearchTimeout <= 0 {
		config.SearchTimeout = def.SearchTimeout
	}
	if config.CacheCapacity <= 0 {
		config.CacheCapacity = def.CacheCapacity
	}
	if config.LongestSize <= 0 {
		config.LongestSize = def.LongestSize
	}
	if config.ArticleURL == "" {
		config.ArticleURL = def.ArticleURL
	}

	s := &Service{
		config: config,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("component", "wikipath"))

	var back cache.Store
	if s.store != nil {
		back = s.store
	}
	s.paths = cache.NewTiered(config.CacheCapacity, back, s.logger)
	s.longest = cache.NewLongest(config.LongestSize)
	return s
}

// Config returns the effective configuration.
func (s *Service) Config() ServiceConfig {
	return s.config
}

// Snapshot returns the current graph snapshot, or nil before the first load.
func (s *Service) Snapshot() *Snapshot {
	return s.snap.Load()
}

// Ready reports whether a graph is loaded.
func (s *Service) Ready() bool {
	return s.snap.Load() != nil
}

// Generation counts published snapshots.
func (s *Service) Generation() uint64 {
	return s.snap.Generation()
}

// Reload loads ServiceConfig.ManifestPath and publishes it.
//
// Outputs:
//
//	error - ErrNoManifest without a manifest path, or the load error. The
//	previous snapshot stays in place on failure.
func (s *Service) Reload(ctx context.Context) error {
	if s.config.ManifestPath == "" {
		return ErrNoManifest
	}
	snap, err := LoadSnapshot(ctx, s.config.ManifestPath, s.logger)
	if err != nil {
		return err
	}
	return s.Publish(ctx, snap)
}

// Publish makes snap the graph answering queries.
//
// Description:
//
//	When the graph differs from the previous one, remembered searches
//	and longest searches are dropped since their ids may no longer mean
//	the same articles. With a path store, the store is bound to the new
//	graph and, on first publish, longest searches are restored from it.
//
// Inputs:
//
//	ctx - Context for store operations
//	snap - The snapshot. Must not be nil.
//
// Outputs:
//
//	error - Non-nil if the path store could not be bound. snap is not
//	published in that case.
func (s *Service) Publish(ctx context.Context, snap *Snapshot) error {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	prev := s.snap.Load()
	changed := prev != nil && prev.Stamp != snap.Stamp
	if s.store != nil {
		reset, err := s.store.EnsureGraph(ctx, snap.Stamp)
		if err != nil {
			return fmt.Errorf("bind path store: %w", err)
		}
		changed = changed || reset
	}

	if changed {
		if err := s.paths.Purge(ctx); err != nil {
			s.logger.Warn("path cache purge failed", slog.String("error", err.Error()))
		}
		s.longest.Reset()
		s.logger.Info("graph changed, path cache cleared", slog.String("stamp", snap.Stamp))
	}
	if s.store != nil && (prev == nil || changed) {
		entries, err := s.store.LoadLongest(ctx)
		if err != nil {
			s.logger.Warn("longest searches not restored", slog.String("error", err.Error()))
		}
		for _, e := range entries {
			s.longest.Insert(e)
		}
	}

	gen := s.snap.Store(snap)
	if s.metrics != nil {
		s.metrics.GraphNodes.Set(float64(snap.Table.Len()))
		s.metrics.GraphEdges.Set(float64(snap.Table.EdgeCount()))
		s.metrics.SnapshotsLoadedTotal.Inc()
	}
	s.logger.Info("graph snapshot published",
		slog.Uint64("generation", gen),
		slog.Int("nodes", snap.Table.Len()),
		slog.Int("edges", snap.Table.EdgeCount()))
	return nil
}

func (s *Service) current() (*Snapshot, error) {
	snap := s.snap.Load()
	if snap == nil {
		return nil, ErrNotReady
	}
	return snap, nil
}

// resolve turns a search endpoint into a page.
//
// Endpoints starting with IDPrefix are page ids; anything else is a title.
func (s *Service) resolve(ctx context.Context, snap *Snapshot, role, query string) (titles.Result, error) {
	query = strings.TrimSpace(query)
	if rest, ok := strings.CutPrefix(query, IDPrefix); ok {
		n, err := strconv.ParseUint(strings.TrimSpace(rest), 10, 32)
		if err != nil {
			return titles.Result{}, &EndpointError{Role: role, Query: query, Err: ErrBadEndpoint}
		}
		id := graph.NodeID(n)
		title, ok := snap.Titles.Title(id)
		if !ok {
			return titles.Result{}, &EndpointError{Role: role, Query: query, Err: graph.ErrNoSuchID}
		}
		s.recordLookup(titles.MatchExact)
		return titles.Result{ID: id, Title: title, Match: titles.MatchExact}, nil
	}

	r, err := snap.Titles.Resolve(ctx, query)
	s.recordLookup(r.Match)
	if err != nil {
		if errors.Is(err, titles.ErrUnknownTitle) || errors.Is(err, titles.ErrEmptyQuery) {
			return r, &EndpointError{Role: role, Query: query, Suggestions: r.Suggestions, Err: err}
		}
		return r, err
	}
	return r, nil
}

// Resolve resolves a single title or IDPrefix page id.
//
// Errors:
//
//	ErrNotReady - No graph loaded
//	*EndpointError - query did not resolve
func (s *Service) Resolve(ctx context.Context, query string) (PageRef, error) {
	snap, err := s.current()
	if err != nil {
		return PageRef{}, err
	}
	r, err := s.resolve(ctx, snap, "query", query)
	if err != nil {
		return PageRef{}, err
	}
	return s.pageRef(snap, r.ID), nil
}

func (s *Service) recordLookup(kind titles.MatchKind) {
	if s.metrics != nil {
		s.metrics.TitleLookupsTotal.WithLabelValues(kind.String()).Inc()
	}
}

// Search finds the shortest link path from src to dst.
//
// Description:
//
//	Endpoints are titles or IDPrefix page ids. Remembered searches are
//	answered from the path cache with their count bumped. Otherwise the
//	search runs on its own goroutine under SearchTimeout; if ctx ends
//	first the result is dropped. Every completed search is remembered,
//	and successful ones are offered to the longest searches.
//
// Inputs:
//
//	ctx - Context for cancellation
//	src, dst - Search endpoints
//
// Outputs:
//
//	*SearchResponse - The path or the reason there is none
//	error - Non-nil if the search could not be answered
//
// Errors:
//
//	ErrNotReady - No graph loaded
//	*EndpointError - An endpoint did not resolve (wraps ErrBadEndpoint,
//	  graph.ErrNoSuchID, titles.ErrUnknownTitle or titles.ErrEmptyQuery)
//	ErrSearchTimeout - SearchTimeout elapsed
//	context.Canceled - ctx was cancelled
func (s *Service) Search(ctx context.Context, src, dst string) (*SearchResponse, error) {
	start := time.Now()
	snap, err := s.current()
	if err != nil {
		return nil, err
	}
	from, err := s.resolve(ctx, snap, "src", src)
	if err != nil {
		return nil, err
	}
	to, err := s.resolve(ctx, snap, "dst", dst)
	if err != nil {
		return nil, err
	}

	key := cache.Key{Src: from.ID, Dst: to.ID}
	if rec, ok := s.lookupPath(ctx, snap, key); ok {
		s.recordSearch(rec.Outcome().String(), true, time.Since(start))
		return s.searchResponse(snap, rec, true, start), nil
	}

	p, err := s.runSearch(ctx, snap, from.ID, to.ID)
	if err != nil {
		if errors.Is(err, ErrSearchTimeout) {
			s.recordSearch("timeout", false, time.Since(start))
		}
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.SearchRounds.Observe(float64(p.Rounds))
	}

	rec := cache.NewRecord(snap.Table, p, s.now())
	var long *cache.LongEntry
	if p.Len() > 0 {
		long = &cache.LongEntry{Src: from.Title, Dst: to.Title, Length: p.Len()}
	}
	if !s.rememberSearch(ctx, snap, rec, long) {
		s.logger.Debug("graph replaced during search, result not cached",
			slog.String("src", from.Title),
			slog.String("dst", to.Title),
			slog.String("stamp", snap.Stamp))
	}
	s.recordSearch(p.Outcome.String(), false, time.Since(start))
	if s.metrics != nil {
		s.metrics.CacheEntries.Set(float64(s.paths.Len()))
	}

	s.logger.Debug("search complete",
		slog.String("src", from.Title),
		slog.String("dst", to.Title),
		slog.String("outcome", p.Outcome.String()),
		slog.Int("length", p.Len()),
		slog.Int("rounds", p.Rounds))
	return s.searchResponse(snap, rec, false, start), nil
}

func (s *Service) runSearch(ctx context.Context, snap *Snapshot, src, dst graph.NodeID) (graph.Path, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.SearchTimeout)
	defer cancel()
	if err := ctx.Err(); err != nil {
		return graph.Path{}, s.searchAborted(err)
	}

	type result struct {
		path graph.Path
		err  error
	}
	done := make(chan result, 1)
	go func() {
		p, err := graph.SearchIDs(ctx, snap.Table, src, dst)
		done <- result{path: p, err: err}
	}()

	select {
	case r := <-done:
		return r.path, r.err
	case <-ctx.Done():
		return graph.Path{}, s.searchAborted(ctx.Err())
	}
}

func (s *Service) searchAborted(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrSearchTimeout, s.config.SearchTimeout)
	}
	return err
}

// isCurrent reports whether snap is the published graph. Callers hold
// publishMu.
func (s *Service) isCurrent(snap *Snapshot) bool {
	cur := s.snap.Load()
	return cur != nil && cur.Stamp == snap.Stamp
}

// lookupPath answers key from the path cache while snap is still the
// published graph.
func (s *Service) lookupPath(ctx context.Context, snap *Snapshot, key cache.Key) (cache.Record, bool) {
	s.publishMu.RLock()
	defer s.publishMu.RUnlock()
	if !s.isCurrent(snap) {
		return cache.Record{}, false
	}
	return s.paths.Lookup(ctx, key)
}

// rememberSearch caches rec and offers long to the longest searches.
// It does nothing and returns false when snap was replaced by a
// different graph while the search ran.
func (s *Service) rememberSearch(ctx context.Context, snap *Snapshot, rec cache.Record, long *cache.LongEntry) bool {
	s.publishMu.RLock()
	defer s.publishMu.RUnlock()
	if !s.isCurrent(snap) {
		return false
	}
	s.paths.Put(ctx, rec)
	if long != nil {
		s.offerLongest(ctx, *long)
	}
	return true
}

func (s *Service) offerLongest(ctx context.Context, e cache.LongEntry) {
	if !s.longest.ShouldInsert(e) {
		return
	}
	s.longestMu.Lock()
	defer s.longestMu.Unlock()
	if !s.longest.Insert(e) || s.store == nil {
		return
	}
	if err := s.store.SaveLongest(ctx, s.longest.Entries()); err != nil {
		s.logger.Warn("longest searches not saved", slog.String("error", err.Error()))
	}
}

func (s *Service) recordSearch(outcome string, cached bool, d time.Duration) {
	if s.metrics == nil {
		return
	}
	c := strconv.FormatBool(cached)
	s.metrics.SearchesTotal.WithLabelValues(outcome, c).Inc()
	s.metrics.SearchDurationSeconds.WithLabelValues(c).Observe(d.Seconds())
}

func (s *Service) searchResponse(snap *Snapshot, rec cache.Record, cached bool, start time.Time) *SearchResponse {
	resp := &SearchResponse{
		Src:        s.pageRef(snap, rec.Src),
		Dst:        s.pageRef(snap, rec.Dst),
		Outcome:    rec.Outcome().String(),
		Length:     rec.Length(),
		Rounds:     rec.Rounds(),
		Cached:     cached,
		Count:      rec.Count,
		DurationMs: float64(time.Since(start).Microseconds()) / 1000,
	}
	if len(rec.Path) > 0 {
		resp.Path = make([]PageRef, len(rec.Path))
		for i, id := range rec.Path {
			resp.Path[i] = s.pageRef(snap, id)
		}
	}
	return resp
}

// pageRef describes id. Ids missing from snap keep an empty title.
func (s *Service) pageRef(snap *Snapshot, id graph.NodeID) PageRef {
	title, _ := snap.Titles.Title(id)
	return PageRef{ID: uint32(id), Title: title, URL: s.ArticleURL(id)}
}

// ArticleURL returns the link to the article with the given page id.
func (s *Service) ArticleURL(id graph.NodeID) string {
	return fmt.Sprintf(s.config.ArticleURL, uint32(id))
}

// Titles returns up to limit titles containing q.
func (s *Service) Titles(ctx context.Context, q string, limit int) (*TitlesResponse, error) {
	snap, err := s.current()
	if err != nil {
		return nil, err
	}
	q = strings.TrimSpace(q)
	found, err := snap.Titles.Suggest(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	if found == nil {
		found = []string{}
	}
	return &TitlesResponse{Query: q, Titles: found}, nil
}

// CacheList returns up to limit remembered searches in the named order.
//
// Errors:
//
//	cache.ErrUnknownSort - order is not a known sort name
func (s *Service) CacheList(ctx context.Context, order string, limit int) (*CacheResponse, error) {
	snap, err := s.current()
	if err != nil {
		return nil, err
	}
	sort, err := cache.ParseSort(order)
	if err != nil {
		return nil, err
	}
	records := s.paths.List(ctx, sort, limit)
	resp := &CacheResponse{Sort: sort.String(), Entries: make([]CacheEntry, 0, len(records))}
	for _, r := range records {
		resp.Entries = append(resp.Entries, CacheEntry{
			Src:       s.pageRef(snap, r.Src),
			Dst:       s.pageRef(snap, r.Dst),
			Outcome:   r.Outcome().String(),
			Length:    r.Length(),
			Count:     r.Count,
			Timestamp: r.Timestamp,
		})
	}
	return resp, nil
}

// Longest returns the longest successful searches, longest first.
func (s *Service) Longest() *LongestResponse {
	entries := s.longest.Entries()
	resp := &LongestResponse{Entries: make([]LongestEntry, len(entries))}
	for i, e := range entries {
		resp.Entries[i] = LongestEntry{Src: e.Src, Dst: e.Dst, Length: e.Length}
	}
	return resp
}

// Rank returns the limit highest PageRank articles. limit < 1 returns all.
func (s *Service) Rank(ctx context.Context, limit int) (*RankResponse, error) {
	snap, err := s.current()
	if err != nil {
		return nil, err
	}
	result := snap.PageRank(ctx, s.config.Rank)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	top := result.TopRanked(snap.Table, limit)
	resp := &RankResponse{
		Pages:      make([]RankedPage, len(top)),
		Iterations: result.Iterations,
		Converged:  result.Converged,
	}
	for i, r := range top {
		resp.Pages[i] = RankedPage{
			PageRef: PageRef{ID: uint32(r.ID), Title: r.Title, URL: s.ArticleURL(r.ID)},
			Rank:    r.Rank,
			Score:   r.Score,
		}
	}
	return resp, nil
}

// Farthest finds the articles farthest from dst by shortest path.
//
// Errors:
//
//	ErrNotReady - No graph loaded
//	*EndpointError - dst did not resolve
func (s *Service) Farthest(ctx context.Context, dst string) (*FarthestResponse, error) {
	snap, err := s.current()
	if err != nil {
		return nil, err
	}
	to, err := s.resolve(ctx, snap, "dst", dst)
	if err != nil {
		return nil, err
	}
	idx, _ := snap.Table.IndexOf(to.ID)
	result, err := graph.Ancestry(ctx, snap.Table, idx)
	if err != nil {
		return nil, err
	}
	resp := &FarthestResponse{
		Dst:       s.pageRef(snap, to.ID),
		Distance:  result.MaxDistance,
		Farthest:  make([]PageRef, len(result.Farthest)),
		Reachable: result.Reachable,
	}
	for i, f := range result.Farthest {
		resp.Farthest[i] = s.pageRef(snap, snap.Table.IDOf(f))
	}
	return resp, nil
}

// Stats summarizes the loaded graph and the path cache.
func (s *Service) Stats(ctx context.Context) (*StatsResponse, error) {
	snap, err := s.current()
	if err != nil {
		return nil, err
	}
	hits, misses := s.paths.Stats()
	resp := &StatsResponse{
		Nodes:         snap.Table.Len(),
		Edges:         snap.Table.EdgeCount(),
		Titles:        snap.Titles.Len(),
		LoadedAt:      snap.LoadedAt,
		Generation:    s.snap.Generation(),
		CacheEntries:  s.paths.Len(),
		CacheHits:     hits,
		CacheMisses:   misses,
		StoredRecords: -1,
	}
	if s.store != nil {
		n, err := s.store.Count(ctx)
		if err != nil {
			s.logger.Warn("path store count failed", slog.String("error", err.Error()))
		} else {
			resp.StoredRecords = n
		}
	}
	return resp, nil
}
