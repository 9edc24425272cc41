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

// -----------------------------------------------------------------------------
// External Collaborators
// -----------------------------------------------------------------------------

// Neuron is the read-only view of a neuron consumed by the engine.
//
// Description:
//
//	Implementations own the bias and recurrent sums and must guard them
//	with a reader/writer lock, because several documents read them
//	concurrently while the learning side commits new values.
type Neuron interface {
	// ID returns the stable neuron id.
	ID() int

	// Label returns a human readable name used in traces.
	Label() string

	// Bias returns the neuron bias including all input bias terms.
	Bias() float64

	// NegRecSum returns the sum of negative recurrent input weights (<= 0).
	NegRecSum() float64

	// PosRecSum returns the sum of positive recurrent input weights (>= 0).
	PosRecSum() float64

	// ActivationFunction maps a net input to an activation value.
	ActivationFunction(net float64) float64

	// IsInhibitory reports whether the neuron is a pure aggregator that is
	// transparent for conflict detection.
	IsInhibitory() bool
}

// Connection is the read-only view of a synapse consumed by the engine.
type Connection interface {
	// ID returns the stable connection id used to order links.
	ID() int

	// Weight returns the current connection weight.
	Weight() float64

	// BiasTerm returns the bias contributed to the output neuron.
	BiasTerm() float64

	// IsNegative reports whether the connection inhibits its output.
	IsNegative() bool

	// IsRecurrent reports whether the connection closes a feedback loop.
	IsRecurrent() bool

	// DistanceDecay returns the positional decay rate, 0 when disabled.
	DistanceDecay() float64
}

// Propagator is invoked when an activation's upper bound first becomes
// positive. It may add activations and links to the document; they are
// picked up by the same Process call.
type Propagator interface {
	Propagate(doc *Document, act *Activation) error
}

// PropagatorFunc adapts a function to the Propagator interface.
type PropagatorFunc func(doc *Document, act *Activation) error

// Propagate calls f(doc, act).
func (f PropagatorFunc) Propagate(doc *Document, act *Activation) error {
	return f(doc, act)
}

// VersionSource reports a counter that changes whenever weights or biases
// are committed. Cached search results are only reused under the version
// they were computed with.
type VersionSource interface {
	Version() uint64
}
