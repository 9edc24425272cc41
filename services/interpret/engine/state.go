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
)

// Tolerance is the epsilon used for state and weight equality.
const Tolerance = 0.001

// NotFired marks a state whose activation has not fired.
const NotFired = -1

// State is the snapshot of one activation for one round.
//
// Invariant: Value is never NaN.
type State struct {
	// Value is the activation function applied to Net.
	Value float64

	// Net is the weighted input sum including bias.
	Net float64

	// Fired is the fire-order step, or NotFired.
	Fired int

	// Weight is the contribution of this activation to the interpretation.
	Weight Weight
}

// ZeroState is the state of an activation that has not been computed.
var ZeroState = State{Fired: NotFired}

// Equal compares value and fire step within Tolerance, ignoring weight.
func (s State) Equal(o State) bool {
	return math.Abs(s.Value-o.Value) <= Tolerance && s.Fired == o.Fired
}

// EqualWithWeights additionally requires equal weights.
func (s State) EqualWithWeights(o State) bool {
	return s.Equal(o) && s.Weight.Equal(o.Weight)
}

// String formats the state for traces.
func (s State) String() string {
	fired := "-"
	if s.Fired != NotFired {
		fired = fmt.Sprintf("%d", s.Fired)
	}
	return fmt.Sprintf("v=%.4f net=%.4f f=%s w=%s", s.Value, s.Net, fired, s.Weight)
}
