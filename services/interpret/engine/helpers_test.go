// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// testNeuron is a minimal Neuron with rectified tanh activation.
type testNeuron struct {
	id         int
	label      string
	bias       float64
	negRec     float64
	posRec     float64
	inhibitory bool
}

func (n *testNeuron) ID() int            { return n.id }
func (n *testNeuron) Label() string      { return n.label }
func (n *testNeuron) Bias() float64      { return n.bias }
func (n *testNeuron) NegRecSum() float64 { return n.negRec }
func (n *testNeuron) PosRecSum() float64 { return n.posRec }
func (n *testNeuron) IsInhibitory() bool { return n.inhibitory }
func (n *testNeuron) ActivationFunction(net float64) float64 {
	if net <= 0 {
		return 0
	}
	return math.Tanh(net)
}

// testConn is a minimal Connection.
type testConn struct {
	id        int
	weight    float64
	recurrent bool
	decay     float64
}

func (c *testConn) ID() int                { return c.id }
func (c *testConn) Weight() float64        { return c.weight }
func (c *testConn) BiasTerm() float64      { return 0 }
func (c *testConn) IsNegative() bool       { return c.weight < 0 }
func (c *testConn) IsRecurrent() bool      { return c.recurrent }
func (c *testConn) DistanceDecay() float64 { return c.decay }

// testGraph is a small builder for test documents.
type testGraph struct {
	t       *testing.T
	doc     *Document
	neurons int
	conns   int
}

func newNet(t *testing.T, cfg Config) *testGraph {
	return &testGraph{t: t, doc: NewDocument(cfg, WithID("test"))}
}

func (b *testGraph) neuron(label string, bias float64) *testNeuron {
	b.neurons++
	return &testNeuron{id: b.neurons, label: label, bias: bias}
}

func (b *testGraph) input(label string, value float64) *Activation {
	return b.doc.AddInput(b.neuron(label, 0), 0, value)
}

func (b *testGraph) act(n *testNeuron) *Activation {
	return b.doc.AddActivation(n, 0)
}

func (b *testGraph) link(in, out *Activation, weight float64, recurrent bool) {
	b.conns++
	c := &testConn{id: b.conns, weight: weight, recurrent: recurrent}
	if recurrent && weight < 0 {
		n := out.neuron.(*testNeuron)
		n.negRec += weight
	}
	if recurrent && weight > 0 {
		n := out.neuron.(*testNeuron)
		n.posRec += weight
	}
	_, err := b.doc.AddLink(c, in, out)
	require.NoError(b.t, err)
}

// competing builds an input feeding two activations that inhibit each
// other through negative recurrent links.
func competing(t *testing.T, cfg Config, biasA, biasB float64, bFirst bool) (*Document, *Activation, *Activation) {
	b := newNet(t, cfg)
	in := b.input("IN", 1)
	na := b.neuron("A", biasA)
	nb := b.neuron("B", biasB)
	var a, bb *Activation
	if bFirst {
		bb = b.act(nb)
		a = b.act(na)
	} else {
		a = b.act(na)
		bb = b.act(nb)
	}
	b.link(in, a, 10, false)
	b.link(in, bb, 10, false)
	b.link(bb, a, -20, true)
	b.link(a, bb, -20, true)
	return b.doc, a, bb
}

func finalDecision(t *testing.T, d *Document, a *Activation) Decision {
	t.Helper()
	dec, err := d.FinalDecision(a)
	require.NoError(t, err)
	return dec
}

func finalState(t *testing.T, d *Document, a *Activation) State {
	t.Helper()
	s, err := d.FinalState(a)
	require.NoError(t, err)
	return s
}

// randomDocument builds a reproducible document with forward excitatory
// links, a few inputs and negative recurrent links between random pairs.
func randomDocument(t *testing.T, seed int64, cfg Config) *Document {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	g := newNet(t, cfg)

	inputs := []*Activation{g.input("IN0", 1), g.input("IN1", 0.8)}
	acts := make([]*Activation, 0, 8)
	for i := 0; i < 8; i++ {
		n := g.neuron(fmt.Sprintf("N%d", i), -1-3*rng.Float64())
		a := g.doc.AddActivation(n, rng.Intn(3))
		acts = append(acts, a)
	}
	for _, a := range acts {
		in := inputs[rng.Intn(len(inputs))]
		g.link(in, a, 2+4*rng.Float64(), false)
	}
	for i := 0; i < len(acts); i++ {
		for j := i + 1; j < len(acts); j++ {
			switch r := rng.Float64(); {
			case r < 0.15:
				g.link(acts[i], acts[j], 1+2*rng.Float64(), false)
			case r < 0.35:
				g.link(acts[i], acts[j], -10, true)
				g.link(acts[j], acts[i], -10, true)
			}
		}
	}
	return g.doc
}

// snapshot captures the rounds pointer and decision of every activation.
type snapshot struct {
	rounds    []*Rounds
	decisions []Decision
}

func takeSnapshot(d *Document) snapshot {
	var s snapshot
	for _, a := range d.acts {
		s.rounds = append(s.rounds, a.rounds)
		s.decisions = append(s.decisions, a.decision)
	}
	return s
}

func assertSnapshot(t *testing.T, d *Document, s snapshot) {
	t.Helper()
	require.Len(t, d.acts, len(s.rounds))
	for i, a := range d.acts {
		require.Same(t, s.rounds[i], a.rounds, "rounds of activation %d", i)
		require.Equal(t, s.decisions[i], a.decision, "decision of activation %d", i)
	}
}
