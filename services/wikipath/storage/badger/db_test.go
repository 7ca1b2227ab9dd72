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
	"errors"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemory(t *testing.T) *DB {
	t.Helper()
	db, err := Open(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen(t *testing.T) {
	t.Run("in memory", func(t *testing.T) {
		db := openMemory(t)
		assert.True(t, db.InMemory())

		ctx := context.Background()
		require.NoError(t, db.WithTxn(ctx, func(txn *badger.Txn) error {
			return txn.Set([]byte("key"), []byte("value"))
		}))
		err := db.WithReadTxn(ctx, func(txn *badger.Txn) error {
			item, err := txn.Get([]byte("key"))
			require.NoError(t, err)
			return item.Value(func(val []byte) error {
				assert.Equal(t, []byte("value"), val)
				return nil
			})
		})
		require.NoError(t, err)
	})

	t.Run("persistent", func(t *testing.T) {
		dir := t.TempDir()
		cfg := DefaultConfig()
		cfg.Path = dir
		ctx := context.Background()

		db, err := Open(cfg)
		require.NoError(t, err)
		assert.False(t, db.InMemory())
		require.NoError(t, db.WithTxn(ctx, func(txn *badger.Txn) error {
			return txn.Set([]byte("persistent-key"), []byte("persistent-value"))
		}))
		require.NoError(t, db.Close())

		db, err = Open(cfg)
		require.NoError(t, err)
		defer db.Close()
		err = db.WithReadTxn(ctx, func(txn *badger.Txn) error {
			item, err := txn.Get([]byte("persistent-key"))
			require.NoError(t, err)
			v, err := item.ValueCopy(nil)
			assert.Equal(t, "persistent-value", string(v))
			return err
		})
		require.NoError(t, err)
	})

	t.Run("missing path", func(t *testing.T) {
		_, err := Open(Config{})
		assert.Error(t, err)
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.False(t, cfg.InMemory)
	assert.False(t, cfg.SyncWrites)
	assert.Equal(t, 10*time.Minute, cfg.GCInterval)
	assert.Equal(t, 0.5, cfg.GCDiscardRatio)

	assert.True(t, InMemoryConfig().InMemory)
}

func TestWithTxn(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()

	t.Run("error rolls back", func(t *testing.T) {
		boom := errors.New("boom")
		err := db.WithTxn(ctx, func(txn *badger.Txn) error {
			require.NoError(t, txn.Set([]byte("rolled"), []byte("back")))
			return boom
		})
		assert.ErrorIs(t, err, boom)

		err = db.WithReadTxn(ctx, func(txn *badger.Txn) error {
			_, err := txn.Get([]byte("rolled"))
			return err
		})
		assert.ErrorIs(t, err, badger.ErrKeyNotFound)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		called := false
		err := db.WithTxn(cctx, func(*badger.Txn) error {
			called = true
			return nil
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, called)

		err = db.WithReadTxn(cctx, func(*badger.Txn) error { return nil })
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("conflict is retried", func(t *testing.T) {
		key := []byte("contended")
		attempts := 0
		err := db.WithTxn(ctx, func(txn *badger.Txn) error {
			attempts++
			if _, err := txn.Get(key); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			if attempts == 1 {
				// A write committed after our read forces a conflict.
				require.NoError(t, db.WithTxn(ctx, func(other *badger.Txn) error {
					return other.Set(key, []byte("other"))
				}))
			}
			return txn.Set(key, []byte("mine"))
		})
		require.NoError(t, err)
		assert.Equal(t, 2, attempts)
	})
}

func TestDropPrefix(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()
	require.NoError(t, db.WithTxn(ctx, func(txn *badger.Txn) error {
		for _, k := range []string{"a/1", "a/2", "b/1"} {
			if err := txn.Set([]byte(k), []byte("v")); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, db.DropPrefix([]byte("a/")))

	var keys []string
	require.NoError(t, db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	}))
	assert.Equal(t, []string{"b/1"}, keys)
}

func TestGCRunner(t *testing.T) {
	t.Run("validation", func(t *testing.T) {
		db := openMemory(t)
		_, err := NewGCRunner(nil, time.Second, 0.5, nil)
		assert.Error(t, err)
		_, err = NewGCRunner(db.db, 0, 0.5, nil)
		assert.Error(t, err)
		_, err = NewGCRunner(db.db, time.Second, 1.5, nil)
		assert.Error(t, err)
	})

	t.Run("start and stop", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Path = t.TempDir()
		cfg.GCInterval = 10 * time.Millisecond
		db, err := Open(cfg)
		require.NoError(t, err)
		require.NotNil(t, db.gc)

		time.Sleep(30 * time.Millisecond)
		db.gc.Stop()
		db.gc.Stop()
		require.NoError(t, db.Close())
	})
}
