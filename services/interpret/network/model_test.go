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
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// competingModel builds an input neuron feeding two neurons that inhibit
// each other through recurrent synapses.
func competingModel(t *testing.T, biasA, biasB float64, opts ...ModelOption) *Model {
	t.Helper()
	m := NewModel(opts...)
	for _, spec := range []NeuronSpec{
		{ID: 1, Label: "IN", Type: Input},
		{ID: 2, Label: "A", Bias: biasA},
		{ID: 3, Label: "B", Bias: biasB},
	} {
		_, err := m.AddNeuron(spec)
		require.NoError(t, err)
	}
	for _, spec := range []SynapseSpec{
		{ID: 1, Input: 1, Output: 2, Weight: 10},
		{ID: 2, Input: 1, Output: 3, Weight: 10},
		{ID: 3, Input: 3, Output: 2, Weight: -20, Recurrent: true},
		{ID: 4, Input: 2, Output: 3, Weight: -20, Recurrent: true},
	} {
		_, err := m.AddSynapse(spec)
		require.NoError(t, err)
	}
	return m
}

func TestModel_NeuronSums(t *testing.T) {
	m := NewModel()
	_, err := m.AddNeuron(NeuronSpec{ID: 1, Label: "X"})
	require.NoError(t, err)
	n, err := m.AddNeuron(NeuronSpec{ID: 2, Label: "Y", Bias: -1})
	require.NoError(t, err)

	_, err = m.AddSynapse(SynapseSpec{ID: 1, Input: 1, Output: 2, Weight: 2, BiasTerm: -0.5})
	require.NoError(t, err)
	_, err = m.AddSynapse(SynapseSpec{ID: 2, Input: 1, Output: 2, Weight: -3, Recurrent: true})
	require.NoError(t, err)
	_, err = m.AddSynapse(SynapseSpec{ID: 3, Input: 2, Output: 2, Weight: 4, Recurrent: true})
	require.NoError(t, err)

	assert.Equal(t, -1.0, n.OwnBias())
	assert.Equal(t, -1.5, n.Bias())
	assert.Equal(t, -3.0, n.NegRecSum())
	assert.Equal(t, 4.0, n.PosRecSum())
	assert.Equal(t, Excitatory, n.Type())
	assert.Equal(t, RectifiedTanh, n.Function())

	x, err := m.Neuron(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, x.OutputIDs())

	syn := n.InputSynapses()
	require.Len(t, syn, 3)
	assert.Equal(t, 1, syn[0].ID())
	assert.True(t, syn[1].IsNegative())
	assert.True(t, syn[2].IsRecurrent())
}

func TestModel_AddErrors(t *testing.T) {
	m := NewModel()
	_, err := m.AddNeuron(NeuronSpec{ID: 1, Label: "X"})
	require.NoError(t, err)

	_, err = m.AddNeuron(NeuronSpec{ID: 1, Label: "X"})
	assert.ErrorIs(t, err, ErrDuplicateID)

	_, err = m.AddNeuron(NeuronSpec{ID: 2, Function: "step"})
	assert.ErrorIs(t, err, ErrUnknownActivationFunction)

	_, err = m.AddSynapse(SynapseSpec{ID: 1, Input: 1, Output: 9, Weight: 1})
	assert.ErrorIs(t, err, ErrInvalidSynapse)

	_, err = m.AddSynapse(SynapseSpec{ID: 1, Input: 9, Output: 1, Weight: 1})
	assert.ErrorIs(t, err, ErrInvalidSynapse)

	_, err = m.AddSynapse(SynapseSpec{ID: 1, Input: 1, Output: 1, Weight: 1, Recurrent: true})
	require.NoError(t, err)
	_, err = m.AddSynapse(SynapseSpec{ID: 1, Input: 1, Output: 1, Weight: 1})
	assert.ErrorIs(t, err, ErrDuplicateID)

	_, err = m.Synapse(7)
	assert.ErrorIs(t, err, ErrSynapseNotFound)

	_, err = m.Neuron(context.Background(), 7)
	assert.ErrorIs(t, err, ErrNeuronNotFound)
}

func TestModel_CommitBumpsVersion(t *testing.T) {
	ctx := context.Background()
	m := competingModel(t, -2, -4)
	v0 := m.Version()

	require.NoError(t, m.CommitWeight(1, 10))
	assert.Equal(t, v0, m.Version(), "unchanged weight keeps the version")

	require.NoError(t, m.CommitWeight(1, 12))
	assert.Equal(t, v0+1, m.Version())
	s, err := m.Synapse(1)
	require.NoError(t, err)
	assert.Equal(t, 12.0, s.Weight())

	require.NoError(t, m.CommitBias(ctx, 2, -1))
	assert.Equal(t, v0+2, m.Version())
	n, err := m.Neuron(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, -1.0, n.Bias())

	assert.ErrorIs(t, m.CommitWeight(99, 1), ErrSynapseNotFound)
}

func TestModel_ConcurrentReadAndCommit(t *testing.T) {
	ctx := context.Background()
	m := competingModel(t, -2, -4)
	n, err := m.Neuron(ctx, 2)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_ = n.Bias()
				_ = n.NegRecSum()
				for _, s := range n.InputSynapses() {
					_ = s.Weight()
				}
			}
		}()
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				assert.NoError(t, m.CommitWeight(3, -20-float64(i*j%3)))
				assert.NoError(t, m.CommitBias(ctx, 2, -2-float64(j%2)))
			}
		}(i)
	}
	wg.Wait()
}

func TestModel_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	m := competingModel(t, -2, -4, WithStore(store))
	require.NoError(t, m.Save(ctx))

	loaded, err := LoadModel(ctx, store)
	require.NoError(t, err)
	require.Len(t, loaded.Neurons(), 3)

	a, err := loaded.Neuron(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "A", a.Label())
	assert.Equal(t, -2.0, a.Bias())
	assert.Equal(t, -20.0, a.NegRecSum())

	in, err := loaded.Neuron(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, Input, in.Type())
	assert.Equal(t, []int{2, 3}, in.OutputIDs())

	for id := 1; id <= 4; id++ {
		_, err := loaded.Synapse(id)
		require.NoError(t, err, "synapse %d", id)
	}
}

func TestModel_SuspendAndReactivate(t *testing.T) {
	ctx := context.Background()
	m := competingModel(t, -2, -4, WithStore(NewMemoryStore()))
	require.NoError(t, m.CommitWeight(2, 11))

	require.NoError(t, m.Suspend(ctx, 3))
	assert.Len(t, m.Neurons(), 2)
	_, err := m.Synapse(2)
	assert.ErrorIs(t, err, ErrSynapseNotFound)

	b, err := m.Neuron(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "B", b.Label())
	assert.Equal(t, []int{2}, b.OutputIDs())
	s, err := m.Synapse(2)
	require.NoError(t, err)
	assert.Equal(t, 11.0, s.Weight())
	assert.Len(t, m.Neurons(), 3)
}

func TestModel_PersistenceWithoutStore(t *testing.T) {
	m := competingModel(t, -2, -4)
	assert.ErrorIs(t, m.Save(context.Background()), ErrNoStore)
	assert.ErrorIs(t, m.Suspend(context.Background(), 2), ErrNoStore)
}
