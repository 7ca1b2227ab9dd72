// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"context"
	"log/slog"
	"time"
)

// Store is a persistent record store behind the in-memory tier.
type Store interface {
	// Lookup returns the record for k with its count and timestamp
	// already bumped and saved.
	Lookup(ctx context.Context, k Key, now time.Time) (Record, bool, error)

	// Put saves r, replacing any record with the same key.
	Put(ctx context.Context, r Record) error

	// List returns up to limit records in the given order.
	List(ctx context.Context, s Sort, limit int) ([]Record, error)

	// Purge removes every record.
	Purge(ctx context.Context) error
}

// Tiered puts an LRU in front of an optional Store.
//
// Description:
//
//	Lookups are answered by the LRU first. A hit there bumps the count
//	and timestamp in memory and writes the bumped record through to the
//	Store. A miss falls through to the Store, which bumps its own copy,
//	and the answer refreshes the LRU. Tiered is the only writer of the
//	Store, so the two tiers agree on counts for any record the LRU
//	holds. Store failures are logged and the LRU answers alone: a lost
//	cache write costs one repeated search, never a failed request.
//
// Thread Safety: Safe for concurrent use.
type Tiered struct {
	front  *LRU[Key, Record]
	back   Store
	logger *slog.Logger
	now    func() time.Time
}

// NewTiered creates a two-tier cache. back may be nil for memory only.
func NewTiered(capacity int, back Store, logger *slog.Logger) *Tiered {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tiered{
		front:  NewLRU[Key, Record](capacity),
		back:   back,
		logger: logger.With(slog.String("component", "path_cache")),
		now:    time.Now,
	}
}

// Lookup returns the cached search for k, bumping its count.
func (c *Tiered) Lookup(ctx context.Context, k Key) (Record, bool) {
	now := c.now()
	if r, ok := c.front.Update(k, func(r Record) Record { return r.Touch(now) }); ok {
		if c.back != nil {
			if err := c.back.Put(ctx, r); err != nil {
				c.logger.Warn("path store write failed",
					slog.Uint64("src", uint64(k.Src)),
					slog.Uint64("dst", uint64(k.Dst)),
					slog.String("error", err.Error()))
			}
		}
		return r, true
	}
	if c.back == nil {
		return Record{}, false
	}

	r, ok, err := c.back.Lookup(ctx, k, now)
	if err != nil {
		c.logger.Warn("path store lookup failed",
			slog.Uint64("src", uint64(k.Src)),
			slog.Uint64("dst", uint64(k.Dst)),
			slog.String("error", err.Error()))
		return Record{}, false
	}
	if ok {
		c.front.Set(k, r)
	}
	return r, ok
}

// Put remembers r in both tiers.
func (c *Tiered) Put(ctx context.Context, r Record) {
	c.front.Set(r.Key(), r)
	if c.back == nil {
		return
	}
	if err := c.back.Put(ctx, r); err != nil {
		c.logger.Warn("path store write failed",
			slog.Uint64("src", uint64(r.Src)),
			slog.Uint64("dst", uint64(r.Dst)),
			slog.String("error", err.Error()))
	}
}

// List returns up to limit records in the given order. Without a Store,
// or when it fails, only the in-memory tier is listed.
func (c *Tiered) List(ctx context.Context, s Sort, limit int) []Record {
	if c.back != nil {
		records, err := c.back.List(ctx, s, limit)
		if err == nil {
			return records
		}
		c.logger.Warn("path store list failed", slog.String("error", err.Error()))
	}
	records := c.front.Values()
	SortRecords(records, s)
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records
}

// Purge empties both tiers.
func (c *Tiered) Purge(ctx context.Context) error {
	c.front.Purge()
	if c.back != nil {
		return c.back.Purge(ctx)
	}
	return nil
}

// Stats returns the in-memory tier's hit and miss counts.
func (c *Tiered) Stats() (hits, misses int64) {
	return c.front.Stats()
}

// Len returns the number of records in the in-memory tier.
func (c *Tiered) Len() int {
	return c.front.Len()
}
