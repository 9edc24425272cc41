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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wu0o0yu/aika-sub001/services/interpret/engine"
)

func TestPropagator_CompetingNetwork(t *testing.T) {
	tests := []struct {
		name         string
		biasA, biasB float64
		winner       string
	}{
		{name: "A stronger", biasA: -2, biasB: -4, winner: "A"},
		{name: "B stronger", biasA: -4, biasB: -2, winner: "B"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			p := NewPropagator(competingModel(t, tt.biasA, tt.biasB), nil)
			doc := p.NewDocument(engine.DefaultConfig())

			_, err := p.AddInput(ctx, doc, 1, 0, 1)
			require.NoError(t, err)
			require.NoError(t, doc.Process(ctx, 0))

			a, ok := doc.ActivationAt(2, 0)
			require.True(t, ok, "A created by propagation")
			b, ok := doc.ActivationAt(3, 0)
			require.True(t, ok, "B created by propagation")
			assert.Len(t, a.InputLinks(), 2)
			assert.Len(t, b.InputLinks(), 2)

			selected, err := doc.SelectedActivations()
			require.NoError(t, err)
			labels := make([]string, 0, len(selected))
			for _, act := range selected {
				labels = append(labels, act.Neuron().Label())
			}
			assert.ElementsMatch(t, []string{"IN", tt.winner}, labels)
			assert.InDelta(t, 8, doc.Stats().BestWeight.W, 1e-9)
		})
	}
}

func TestPropagator_CommitTriggersReprocess(t *testing.T) {
	ctx := context.Background()
	m := competingModel(t, -2, -4)
	p := NewPropagator(m, nil)
	doc := p.NewDocument(engine.DefaultConfig())
	_, err := p.AddInput(ctx, doc, 1, 0, 1)
	require.NoError(t, err)
	require.NoError(t, doc.Process(ctx, 0))

	a, _ := doc.ActivationAt(2, 0)
	b, _ := doc.ActivationAt(3, 0)
	dec, err := doc.FinalDecision(a)
	require.NoError(t, err)
	require.Equal(t, engine.DecisionSelected, dec)

	// Lower A below B and raise B above A.
	require.NoError(t, m.CommitBias(ctx, 2, -4))
	require.NoError(t, m.CommitBias(ctx, 3, -2))
	require.NoError(t, doc.Process(ctx, 0))

	dec, err = doc.FinalDecision(b)
	require.NoError(t, err)
	assert.Equal(t, engine.DecisionSelected, dec)
	dec, err = doc.FinalDecision(a)
	require.NoError(t, err)
	assert.Equal(t, engine.DecisionExcluded, dec)
}

func TestPropagator_ReactivatesSuspendedTargets(t *testing.T) {
	ctx := context.Background()
	m := competingModel(t, -2, -4, WithStore(NewMemoryStore()))
	require.NoError(t, m.Suspend(ctx, 2))
	require.NoError(t, m.Suspend(ctx, 3))

	p := NewPropagator(m, nil)
	doc := p.NewDocument(engine.DefaultConfig())
	_, err := p.AddInput(ctx, doc, 1, 0, 1)
	require.NoError(t, err)
	require.NoError(t, doc.Process(ctx, 0))

	_, ok := doc.ActivationAt(2, 0)
	assert.True(t, ok)
	_, ok = doc.ActivationAt(3, 0)
	assert.True(t, ok)
	assert.Len(t, m.Neurons(), 3)
}

func TestPropagator_DistanceDecayLinksAcrossPositions(t *testing.T) {
	ctx := context.Background()
	m := NewModel()
	_, err := m.AddNeuron(NeuronSpec{ID: 1, Label: "W", Type: Input})
	require.NoError(t, err)
	_, err = m.AddNeuron(NeuronSpec{ID: 2, Label: "P", Bias: -0.5})
	require.NoError(t, err)
	_, err = m.AddSynapse(SynapseSpec{ID: 1, Input: 1, Output: 2, Weight: 2, DistanceDecay: 0.5})
	require.NoError(t, err)

	p := NewPropagator(m, nil)
	doc := p.NewDocument(engine.DefaultConfig())
	_, err = p.AddInput(ctx, doc, 1, 0, 1)
	require.NoError(t, err)
	_, err = p.AddInput(ctx, doc, 1, 3, 1)
	require.NoError(t, err)
	require.NoError(t, doc.Process(ctx, 0))

	p0, ok := doc.ActivationAt(2, 0)
	require.True(t, ok)
	p3, ok := doc.ActivationAt(2, 3)
	require.True(t, ok)
	assert.Len(t, p0.InputLinks(), 2)
	assert.Len(t, p3.InputLinks(), 2)
}

func TestPropagator_UnknownNeuron(t *testing.T) {
	p := NewPropagator(NewModel(), nil)
	doc := p.NewDocument(engine.DefaultConfig())
	_, err := p.AddInput(context.Background(), doc, 42, 0, 1)
	assert.True(t, errors.Is(err, ErrNeuronNotFound))
}
