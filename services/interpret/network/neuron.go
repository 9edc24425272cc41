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
	"sort"
	"sync"
)

// NeuronType classifies a neuron.
type NeuronType string

const (
	// Excitatory neurons are regular interpretation units.
	Excitatory NeuronType = "excitatory"

	// Inhibitory neurons aggregate competitors. They are transparent for
	// conflict detection.
	Inhibitory NeuronType = "inhibitory"

	// Input neurons receive document input values.
	Input NeuronType = "input"
)

// Neuron is a unit of the model.
//
// Description:
//
//	The neuron owns its bias and its input synapses. Both are guarded by
//	mu: the engine reads them with the read lock, commits take the write
//	lock.
//
// Thread Safety: Safe for concurrent use.
type Neuron struct {
	id    int
	label string
	typ   NeuronType
	fn    ActivationFunction

	mu        sync.RWMutex
	bias      float64
	inputs    []*Synapse
	outputIDs []int
}

// NewNeuron creates a neuron without synapses.
func NewNeuron(id int, label string, typ NeuronType, bias float64, fn ActivationFunction) *Neuron {
	if typ == "" {
		typ = Excitatory
	}
	if fn == "" {
		fn = RectifiedTanh
	}
	return &Neuron{id: id, label: label, typ: typ, fn: fn, bias: bias}
}

// ID returns the neuron id.
func (n *Neuron) ID() int { return n.id }

// Label returns the human readable name.
func (n *Neuron) Label() string { return n.label }

// Type returns the neuron type.
func (n *Neuron) Type() NeuronType { return n.typ }

// Function returns the activation function name.
func (n *Neuron) Function() ActivationFunction { return n.fn }

// IsInhibitory reports whether the neuron is an inhibitory aggregator.
func (n *Neuron) IsInhibitory() bool { return n.typ == Inhibitory }

// OwnBias returns the neuron's bias without synapse bias terms.
func (n *Neuron) OwnBias() float64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.bias
}

// Bias returns the own bias plus the bias terms of all input synapses.
func (n *Neuron) Bias() float64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	b := n.bias
	for _, s := range n.inputs {
		b += s.biasTerm
	}
	return b
}

// NegRecSum returns the sum of negative recurrent input weights.
func (n *Neuron) NegRecSum() float64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	sum := 0.0
	for _, s := range n.inputs {
		if s.recurrent && s.weight < 0 {
			sum += s.weight
		}
	}
	return sum
}

// PosRecSum returns the sum of positive recurrent input weights.
func (n *Neuron) PosRecSum() float64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	sum := 0.0
	for _, s := range n.inputs {
		if s.recurrent && s.weight > 0 {
			sum += s.weight
		}
	}
	return sum
}

// ActivationFunction applies the neuron's transfer function.
func (n *Neuron) ActivationFunction(net float64) float64 {
	return n.fn.Apply(net)
}

// InputSynapses returns a copy of the input synapses ordered by id.
func (n *Neuron) InputSynapses() []*Synapse {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]*Synapse(nil), n.inputs...)
}

// OutputIDs returns the ids of the neurons this neuron feeds, ascending.
// The output neurons may be suspended.
func (n *Neuron) OutputIDs() []int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]int(nil), n.outputIDs...)
}

func (n *Neuron) addInput(s *Synapse) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.inputs = insertSynapse(n.inputs, s)
}

func (n *Neuron) addOutputID(id int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	i := sort.SearchInts(n.outputIDs, id)
	if i < len(n.outputIDs) && n.outputIDs[i] == id {
		return
	}
	n.outputIDs = append(n.outputIDs, 0)
	copy(n.outputIDs[i+1:], n.outputIDs[i:])
	n.outputIDs[i] = id
}

func insertSynapse(list []*Synapse, s *Synapse) []*Synapse {
	i := sort.Search(len(list), func(i int) bool { return list[i].id >= s.id })
	list = append(list, nil)
	copy(list[i+1:], list[i:])
	list[i] = s
	return list
}

// Synapse is a weighted connection owned by its output neuron.
//
// Thread Safety: Safe for concurrent use; guarded by the output neuron.
type Synapse struct {
	id        int
	input     int
	output    int
	owner     *Neuron
	recurrent bool
	decay     float64

	// weight and biasTerm are guarded by owner.mu.
	weight   float64
	biasTerm float64
}

// ID returns the synapse id.
func (s *Synapse) ID() int { return s.id }

// InputID returns the id of the input neuron.
func (s *Synapse) InputID() int { return s.input }

// OutputID returns the id of the output neuron.
func (s *Synapse) OutputID() int { return s.output }

// Weight returns the current weight.
func (s *Synapse) Weight() float64 {
	s.owner.mu.RLock()
	defer s.owner.mu.RUnlock()
	return s.weight
}

// BiasTerm returns the bias the synapse adds to its output neuron.
func (s *Synapse) BiasTerm() float64 {
	s.owner.mu.RLock()
	defer s.owner.mu.RUnlock()
	return s.biasTerm
}

// IsNegative reports whether the current weight is negative.
func (s *Synapse) IsNegative() bool { return s.Weight() < 0 }

// IsRecurrent reports whether the synapse closes a feedback loop.
func (s *Synapse) IsRecurrent() bool { return s.recurrent }

// DistanceDecay returns the positional decay rate.
func (s *Synapse) DistanceDecay() float64 { return s.decay }
