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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenInMemory_PutGetDelete(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	require.NoError(t, db.Put(ctx, []byte("n/1"), []byte("one")))

	val, err := db.Get(ctx, []byte("n/1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), val)

	require.NoError(t, db.Delete(ctx, []byte("n/1")))
	_, err = db.Get(ctx, []byte("n/1"))
	assert.ErrorIs(t, err, ErrNotFound)

	assert.True(t, db.InMemory())
	assert.Empty(t, db.Path())
}

func TestKeys_Prefix(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	for _, k := range []string{"n/2", "m/name", "n/1", "n/3"} {
		require.NoError(t, db.Put(ctx, []byte(k), []byte("x")))
	}

	keys, err := db.Keys(ctx, []byte("n/"))
	require.NoError(t, err)
	require.Len(t, keys, 3)
	assert.Equal(t, "n/1", string(keys[0]))
	assert.Equal(t, "n/3", string(keys[2]))
}

func TestOpen_PersistentReopen(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Path = t.TempDir()
	cfg.GCInterval = time.Hour
	ctx := context.Background()

	db, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, db.Put(ctx, []byte("m/name"), []byte("model")))
	require.NoError(t, db.Close())

	db, err = Open(cfg)
	require.NoError(t, err)
	defer db.Close()

	val, err := db.Get(ctx, []byte("m/name"))
	require.NoError(t, err)
	assert.Equal(t, "model", string(val))
	assert.Equal(t, cfg.Path, db.Path())
}

func TestOpen_InvalidConfig(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err, "persistent store without path")

	cfg := DefaultConfig()
	cfg.Path = t.TempDir()
	cfg.GCDiscardRatio = 1.5
	_, err = Open(cfg)
	assert.Error(t, err)
}

func TestWithTxn_CancelledContext(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = db.Put(ctx, []byte("k"), []byte("v"))
	assert.ErrorIs(t, err, context.Canceled)
}
