// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/wikipath/services/wikipath/cache"
)

// Key layout:
//
//	p/<src uint32 BE><dst uint32 BE>  -> JSON cache.Record
//	m/longest                         -> JSON []cache.LongEntry
//	m/graph                           -> graph stamp string
var (
	pathPrefix  = []byte("p/")
	longestKey  = []byte("m/longest")
	graphKey    = []byte("m/graph")
	allPrefixes = [][]byte{pathPrefix, longestKey, graphKey}
)

func pathKey(k cache.Key) []byte {
	b := make([]byte, len(pathPrefix)+8)
	copy(b, pathPrefix)
	binary.BigEndian.PutUint32(b[len(pathPrefix):], uint32(k.Src))
	binary.BigEndian.PutUint32(b[len(pathPrefix)+4:], uint32(k.Dst))
	return b
}

// PathStore keeps cache records in BadgerDB. It implements cache.Store.
//
// Thread Safety: Safe for concurrent use.
type PathStore struct {
	db *DB
}

var _ cache.Store = (*PathStore)(nil)

// NewPathStore wraps an open database.
func NewPathStore(db *DB) *PathStore {
	return &PathStore{db: db}
}

// Lookup loads the record for k, bumps its count and timestamp, and
// saves it in the same transaction.
func (s *PathStore) Lookup(ctx context.Context, k cache.Key, now time.Time) (cache.Record, bool, error) {
	var rec cache.Record
	found := false
	err := s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		found = false
		item, err := txn.Get(pathKey(k))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := item.Value(func(val []byte) error { return decodeRecord(val, &rec) }); err != nil {
			return err
		}
		rec = rec.Touch(now)
		found = true
		return setJSON(txn, pathKey(k), rec)
	})
	if err != nil {
		return cache.Record{}, false, fmt.Errorf("lookup path %d->%d: %w", k.Src, k.Dst, err)
	}
	return rec, found, nil
}

// Put saves r, replacing any record for the same endpoints.
func (s *PathStore) Put(ctx context.Context, r cache.Record) error {
	err := s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		return setJSON(txn, pathKey(r.Key()), r)
	})
	if err != nil {
		return fmt.Errorf("put path %d->%d: %w", r.Src, r.Dst, err)
	}
	return nil
}

// List returns up to limit records in the given order. limit <= 0 means
// all of them.
//
// Every record is read and sorted in memory; the cache is small next to
// the graph.
func (s *PathStore) List(ctx context.Context, order cache.Sort, limit int) ([]cache.Record, error) {
	var out []cache.Record
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: true, PrefetchSize: 100, Prefix: pathPrefix})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var rec cache.Record
			if err := it.Item().Value(func(val []byte) error { return decodeRecord(val, &rec) }); err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list paths: %w", err)
	}
	cache.SortRecords(out, order)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Count returns the number of stored records.
func (s *PathStore) Count(ctx context.Context) (int, error) {
	n := 0
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: pathPrefix})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Purge deletes every record and the saved longest list.
func (s *PathStore) Purge(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, p := range allPrefixes {
		if err := s.db.DropPrefix(p); err != nil {
			return fmt.Errorf("purge %s: %w", p, err)
		}
	}
	return nil
}

// SaveLongest stores the longest searches list.
func (s *PathStore) SaveLongest(ctx context.Context, entries []cache.LongEntry) error {
	return s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		return setJSON(txn, longestKey, entries)
	})
}

// LoadLongest returns the stored longest searches, nil if none.
func (s *PathStore) LoadLongest(ctx context.Context) ([]cache.LongEntry, error) {
	var entries []cache.LongEntry
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(longestKey)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if err := json.Unmarshal(val, &entries); err != nil {
				return fmt.Errorf("%w: longest: %v", cache.ErrCorruptRecord, err)
			}
			return nil
		})
	})
	return entries, err
}

// EnsureGraph ties the store to a graph.
//
// Description:
//
//	Records only make sense for the graph they were computed on. stamp
//	identifies the loaded graph, normally graph.Manifest.Stamp. When
//	the stored stamp differs, every record is purged and the new stamp
//	saved.
//
// Outputs:
//   - bool: True if records from another graph were discarded.
//   - error: Non-nil on database failure.
func (s *PathStore) EnsureGraph(ctx context.Context, stamp string) (bool, error) {
	var current string
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(graphKey)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		v, err := item.ValueCopy(nil)
		current = string(v)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("read graph stamp: %w", err)
	}
	if current == stamp {
		return false, nil
	}
	if err := s.Purge(ctx); err != nil {
		return false, err
	}
	err = s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set(graphKey, []byte(stamp))
	})
	if err != nil {
		return true, fmt.Errorf("write graph stamp: %w", err)
	}
	return current != "", nil
}

func decodeRecord(val []byte, rec *cache.Record) error {
	if err := json.Unmarshal(val, rec); err != nil {
		return fmt.Errorf("%w: %v", cache.ErrCorruptRecord, err)
	}
	return nil
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return txn.Set(key, data)
}
