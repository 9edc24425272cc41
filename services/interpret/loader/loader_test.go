// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wu0o0yu/aika-sub001/services/interpret/engine"
	"github.com/wu0o0yu/aika-sub001/services/interpret/network"
)

const competingYAML = `
neurons:
  - {id: 1, label: IN, type: input}
  - {id: 2, label: A, bias: -2}
  - {id: 3, label: B, bias: -4}
synapses:
  - {id: 1, input: 1, output: 2, weight: 10}
  - {id: 2, input: 1, output: 3, weight: 10}
  - {id: 3, input: 3, output: 2, weight: -20, recurrent: true}
  - {id: 4, input: 2, output: 3, weight: -20, recurrent: true}
`

func competingNetwork(t *testing.T) (NetworkDefinition, *network.Model) {
	t.Helper()
	def, err := ParseNetwork([]byte(competingYAML))
	require.NoError(t, err)
	m, err := def.Build()
	require.NoError(t, err)
	return def, m
}

func TestParseNetwork(t *testing.T) {
	def, m := competingNetwork(t)
	assert.Len(t, def.Neurons, 3)
	assert.Len(t, def.Synapses, 4)
	assert.Equal(t, network.Input, def.Neurons[0].Type)
	assert.True(t, def.Synapses[2].Recurrent)
	assert.Len(t, m.Neurons(), 3)
}

func TestParseNetwork_JSON(t *testing.T) {
	def, err := ParseNetwork([]byte(`{"neurons":[{"id":1,"label":"X","function":"sigmoid"}]}`))
	require.NoError(t, err)
	assert.Equal(t, network.Sigmoid, def.Neurons[0].Function)
}

func TestParseNetwork_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"malformed", "neurons: [\n"},
		{"no neurons", "neurons: []\n"},
		{"missing label", "neurons:\n  - {id: 1}\n"},
		{"bad type", "neurons:\n  - {id: 1, label: X, type: motor}\n"},
		{"bad function", "neurons:\n  - {id: 1, label: X, function: step}\n"},
		{"duplicate neuron", "neurons:\n  - {id: 1, label: X}\n  - {id: 1, label: Y}\n"},
		{"dangling synapse", "neurons:\n  - {id: 1, label: X}\nsynapses:\n  - {id: 1, input: 1, output: 2, weight: 1}\n"},
		{"duplicate synapse", "neurons:\n  - {id: 1, label: X}\nsynapses:\n  - {id: 1, input: 1, output: 1, weight: 1, recurrent: true}\n  - {id: 1, input: 1, output: 1, weight: 2, recurrent: true}\n"},
		{"negative decay", "neurons:\n  - {id: 1, label: X}\nsynapses:\n  - {id: 1, input: 1, output: 1, weight: 1, distance_decay: -1}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseNetwork([]byte(tt.data))
			assert.ErrorIs(t, err, ErrInvalidDefinition)
		})
	}
}

func TestNetworkDefinition_Apply(t *testing.T) {
	ctx := context.Background()
	def, m := competingNetwork(t)
	v0 := m.Version()

	res, err := def.Apply(ctx, m)
	require.NoError(t, err)
	assert.False(t, res.Changed())
	assert.Equal(t, v0, m.Version())

	def.Neurons[1].Bias = -3
	def.Synapses[0].Weight = 12
	def.Neurons = append(def.Neurons, network.NeuronSpec{ID: 4, Label: "C"})
	def.Synapses = append(def.Synapses, network.SynapseSpec{ID: 5, Input: 1, Output: 4, Weight: 1})

	res, err = def.Apply(ctx, m)
	require.NoError(t, err)
	assert.Equal(t, ApplyResult{Weights: 1, Biases: 1, Neurons: 1, Synapses: 1}, res)
	assert.Equal(t, v0+2, m.Version())

	s, err := m.Synapse(1)
	require.NoError(t, err)
	assert.Equal(t, 12.0, s.Weight())
	a, err := m.Neuron(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, -3.0, a.Bias())
}

func TestDocumentDefinition_Build(t *testing.T) {
	ctx := context.Background()
	_, m := competingNetwork(t)
	p := network.NewPropagator(m, nil)

	def, err := ParseDocument([]byte(`
id: doc-1
inputs:
  - {neuron: 1, position: 0, value: 1}
`))
	require.NoError(t, err)

	doc, err := def.Build(ctx, p, engine.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, "doc-1", doc.ID())
	require.NoError(t, doc.Process(ctx, time.Second))

	a, ok := doc.ActivationAt(2, 0)
	require.True(t, ok)
	dec, err := doc.FinalDecision(a)
	require.NoError(t, err)
	assert.Equal(t, engine.DecisionSelected, dec)
}

func TestDocumentDefinition_ForcedDecision(t *testing.T) {
	ctx := context.Background()
	_, m := competingNetwork(t)
	p := network.NewPropagator(m, nil)

	def, err := ParseDocument([]byte(`
inputs:
  - {neuron: 1, position: 0, value: 1}
activations:
  - {neuron: 2, position: 0}
  - {neuron: 3, position: 0}
forced:
  - {neuron: 2, position: 0, decision: excluded}
`))
	require.NoError(t, err)

	doc, err := def.Build(ctx, p, engine.DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, doc.Process(ctx, time.Second))

	a, _ := doc.ActivationAt(2, 0)
	b, _ := doc.ActivationAt(3, 0)
	dec, err := doc.FinalDecision(a)
	require.NoError(t, err)
	assert.Equal(t, engine.DecisionExcluded, dec)
	dec, err = doc.FinalDecision(b)
	require.NoError(t, err)
	assert.Equal(t, engine.DecisionSelected, dec)
}

func TestDocumentDefinition_ExplicitLinks(t *testing.T) {
	ctx := context.Background()
	_, m := competingNetwork(t)
	p := network.NewPropagator(m, nil)

	def := DocumentDefinition{
		Inputs:      []InputSpec{{Neuron: 1, Value: 1}},
		Activations: []ActivationSpec{{Neuron: 2, Position: 1}},
		Links:       []LinkSpec{{Synapse: 1, InputPosition: 0, OutputPosition: 1}},
	}
	require.NoError(t, def.Validate())
	doc, err := def.Build(ctx, p, engine.DefaultConfig())
	require.NoError(t, err)
	a, ok := doc.ActivationAt(2, 1)
	require.True(t, ok)
	assert.Len(t, a.InputLinks(), 1)

	def.Links = []LinkSpec{{Synapse: 1, InputPosition: 5, OutputPosition: 1}}
	_, err = def.Build(ctx, p, engine.DefaultConfig())
	assert.ErrorIs(t, err, ErrUnknownActivation)

	def.Links = []LinkSpec{{Synapse: 42}}
	_, err = def.Build(ctx, p, engine.DefaultConfig())
	assert.ErrorIs(t, err, network.ErrSynapseNotFound)
}

func TestDocumentDefinition_Invalid(t *testing.T) {
	_, err := ParseDocument([]byte("inputs: []\n"))
	assert.ErrorIs(t, err, ErrInvalidDefinition)

	_, err = ParseDocument([]byte("inputs:\n  - {neuron: 1, value: 1}\nforced:\n  - {neuron: 1, position: 0, decision: maybe}\n"))
	assert.ErrorIs(t, err, ErrInvalidDefinition)

	_, err = ParseDecision("maybe")
	assert.ErrorIs(t, err, ErrInvalidDefinition)
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	netPath := filepath.Join(dir, "net.yaml")
	docPath := filepath.Join(dir, "doc.json")
	require.NoError(t, os.WriteFile(netPath, []byte(competingYAML), 0o600))
	require.NoError(t, os.WriteFile(docPath, []byte(`{"inputs":[{"neuron":1,"position":0,"value":1}]}`), 0o600))

	def, err := LoadNetworkFile(netPath)
	require.NoError(t, err)
	assert.Len(t, def.Neurons, 3)

	doc, err := LoadDocumentFile(docPath)
	require.NoError(t, err)
	assert.Len(t, doc.Inputs, 1)

	_, err = LoadNetworkFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
