// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package network

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wu0o0yu/aika-sub001/services/interpret/storage/badger"
)

func testStores(t *testing.T) map[string]Store {
	t.Helper()
	db, err := badger.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(),
		"badger": NewBadgerStore(db),
	}
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	rec := NeuronRecord{
		NeuronSpec: NeuronSpec{ID: 12, Label: "A", Type: Inhibitory, Bias: -0.5, Function: Sigmoid},
		Inputs: []SynapseSpec{
			{ID: 3, Input: 4, Output: 12, Weight: 1.5, BiasTerm: -0.25, DistanceDecay: 0.1},
			{ID: 5, Input: 12, Output: 12, Weight: -2, Recurrent: true},
		},
		Outputs: []int{7, 12},
	}
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Put(ctx, rec))
			require.NoError(t, store.Put(ctx, NeuronRecord{NeuronSpec: NeuronSpec{ID: 2, Label: "X"}}))

			got, err := store.Get(ctx, 12)
			require.NoError(t, err)
			assert.Equal(t, rec, got)

			ids, err := store.IDs(ctx)
			require.NoError(t, err)
			assert.Equal(t, []int{2, 12}, ids)

			require.NoError(t, store.Delete(ctx, 12))
			require.NoError(t, store.Delete(ctx, 12))
			_, err = store.Get(ctx, 12)
			assert.ErrorIs(t, err, ErrNeuronNotFound)
		})
	}
}

func TestBadgerStore_LoadModel(t *testing.T) {
	ctx := context.Background()
	db, err := badger.OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	store := NewBadgerStore(db)
	m := competingModel(t, -2, -4, WithStore(store))
	require.NoError(t, m.Save(ctx))

	loaded, err := LoadModel(ctx, store)
	require.NoError(t, err)
	b, err := loaded.Neuron(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, -4.0, b.Bias())
	assert.Equal(t, -20.0, b.NegRecSum())
}
