// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package reload

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue(t *testing.T) {
	var v Value[string]
	assert.Nil(t, v.Load())
	assert.Equal(t, uint64(0), v.Generation())

	a, b := "a", "b"
	assert.Equal(t, uint64(1), v.Store(&a))
	assert.Equal(t, uint64(2), v.Store(&b))
	assert.Equal(t, "b", *v.Load())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s := "x"
				v.Store(&s)
				assert.NotNil(t, v.Load())
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(802), v.Generation())
}

func TestWatcher_ReloadsOnReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.json")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0640))

	var calls atomic.Int32
	w, err := NewWatcher(path, func(context.Context) error {
		calls.Add(1)
		return nil
	}, &Options{Debounce: 20 * time.Millisecond})
	require.NoError(t, err)
	defer w.Stop()
	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Start(context.Background()))

	// Unrelated files are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.json"), []byte("x"), 0640))

	// Replace by rename, the way manifests are written.
	tmp := path + ".tmp"
	require.NoError(t, os.WriteFile(tmp, []byte("v2"), 0640))
	require.NoError(t, os.Rename(tmp, path))

	require.Eventually(t, func() bool { return calls.Load() == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(1), w.Stats().Reloads)
	assert.False(t, w.Stats().LastReload.IsZero())
}

func TestWatcher_Debounces(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.json")

	var calls atomic.Int32
	w, err := NewWatcher(path, func(context.Context) error {
		calls.Add(1)
		return nil
	}, &Options{Debounce: 200 * time.Millisecond})
	require.NoError(t, err)
	defer w.Stop()
	require.NoError(t, w.Start(context.Background()))

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte{byte(i)}, 0640))
		time.Sleep(10 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return calls.Load() >= 1 }, 5*time.Second, 10*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestWatcher_Failure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.json")

	w, err := NewWatcher(path, func(context.Context) error {
		return errors.New("corrupt manifest")
	}, &Options{Debounce: 10 * time.Millisecond})
	require.NoError(t, err)
	defer w.Stop()
	require.NoError(t, w.Start(context.Background()))

	require.NoError(t, os.WriteFile(path, []byte("{"), 0640))
	require.Eventually(t, func() bool { return w.Stats().Failures == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, "corrupt manifest", w.Stats().LastError)
	assert.Equal(t, int64(0), w.Stats().Reloads)
}

func TestWatcher_StopAndCancel(t *testing.T) {
	dir := t.TempDir()

	t.Run("stop without start", func(t *testing.T) {
		w, err := NewWatcher(filepath.Join(dir, "a"), func(context.Context) error { return nil }, nil)
		require.NoError(t, err)
		w.Stop()
		w.Stop()
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		w, err := NewWatcher(filepath.Join(dir, "b"), func(context.Context) error { return nil }, nil)
		require.NoError(t, err)
		require.NoError(t, w.Start(ctx))
		cancel()
		w.Stop()
	})

	t.Run("missing directory", func(t *testing.T) {
		w, err := NewWatcher(filepath.Join(dir, "nope", "manifest.json"), func(context.Context) error { return nil }, nil)
		require.NoError(t, err)
		defer w.Stop()
		assert.Error(t, w.Start(context.Background()))
	})
}
