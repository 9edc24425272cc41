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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWeight_Arithmetic(t *testing.T) {
	a := Weight{W: 3, N: 4}
	b := Weight{W: 1, N: 2}

	assert.Equal(t, Weight{W: 4, N: 6}, a.Add(b))
	assert.Equal(t, Weight{W: 2, N: 2}, a.Sub(b))
	assert.Equal(t, a, a.Add(ZeroWeight))
	assert.InDelta(t, 0.75, a.Norm(), 1e-12)
	assert.Equal(t, 0.0, ZeroWeight.Norm())
}

func TestWeight_CompareUsesConfidenceOnly(t *testing.T) {
	a := Weight{W: 2, N: 10}
	b := Weight{W: 2, N: 1}

	assert.Equal(t, 0, a.Compare(b))
	assert.False(t, a.Equal(b))
	assert.Equal(t, 1, Weight{W: 3}.Compare(a))
	assert.Equal(t, -1, Weight{W: 1}.Compare(a))
}

func TestWeight_EqualWithinTolerance(t *testing.T) {
	a := Weight{W: 1, N: 1}
	assert.True(t, a.Equal(Weight{W: 1 + Tolerance/2, N: 1 - Tolerance/2}))
	assert.False(t, a.Equal(Weight{W: 1 + 2*Tolerance, N: 1}))
}

func TestState_Equality(t *testing.T) {
	s := State{Value: 0.5, Net: 1, Fired: 2, Weight: Weight{W: 1, N: 1}}

	t.Run("value within tolerance", func(t *testing.T) {
		o := s
		o.Value += Tolerance / 2
		o.Net = 7
		assert.True(t, s.Equal(o))
	})

	t.Run("fired differs", func(t *testing.T) {
		o := s
		o.Fired = 3
		assert.False(t, s.Equal(o))
	})

	t.Run("weight ignored unless requested", func(t *testing.T) {
		o := s
		o.Weight = ZeroWeight
		assert.True(t, s.Equal(o))
		assert.False(t, s.EqualWithWeights(o))
	})
}
