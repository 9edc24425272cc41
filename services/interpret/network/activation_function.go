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
	"fmt"
	"math"
)

// ActivationFunction names a neuron's transfer function.
type ActivationFunction string

const (
	// RectifiedTanh is max(0, tanh(x)). It is the default.
	RectifiedTanh ActivationFunction = "rectified_tanh"

	// ReLU is max(0, x).
	ReLU ActivationFunction = "relu"

	// LimitedReLU is min(1, max(0, x)).
	LimitedReLU ActivationFunction = "limited_relu"

	// Sigmoid is 1 / (1 + e^-x).
	Sigmoid ActivationFunction = "sigmoid"

	// Identity passes the net input through.
	Identity ActivationFunction = "identity"
)

type transfer struct {
	f  func(float64) float64
	df func(float64) float64
}

var transfers = map[ActivationFunction]transfer{
	RectifiedTanh: {
		f: func(x float64) float64 {
			if x <= 0 {
				return 0
			}
			return math.Tanh(x)
		},
		df: func(x float64) float64 {
			if x <= 0 {
				return 0
			}
			t := math.Tanh(x)
			return 1 - t*t
		},
	},
	ReLU: {
		f: func(x float64) float64 { return math.Max(0, x) },
		df: func(x float64) float64 {
			if x <= 0 {
				return 0
			}
			return 1
		},
	},
	LimitedReLU: {
		f: func(x float64) float64 { return math.Min(1, math.Max(0, x)) },
		df: func(x float64) float64 {
			if x <= 0 || x >= 1 {
				return 0
			}
			return 1
		},
	},
	Sigmoid: {
		f: func(x float64) float64 { return 1 / (1 + math.Exp(-x)) },
		df: func(x float64) float64 {
			s := 1 / (1 + math.Exp(-x))
			return s * (1 - s)
		},
	},
	Identity: {
		f:  func(x float64) float64 { return x },
		df: func(float64) float64 { return 1 },
	},
}

// Validate reports whether the function is supported. The empty name is
// valid and means RectifiedTanh.
func (a ActivationFunction) Validate() error {
	if a == "" {
		return nil
	}
	if _, ok := transfers[a]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownActivationFunction, string(a))
	}
	return nil
}

func (a ActivationFunction) resolve() transfer {
	if t, ok := transfers[a]; ok {
		return t
	}
	return transfers[RectifiedTanh]
}

// Apply evaluates the function at x.
func (a ActivationFunction) Apply(x float64) float64 {
	return a.resolve().f(x)
}

// Derivative evaluates the derivative at x. Only the learning side uses
// it; the search never does.
func (a ActivationFunction) Derivative(x float64) float64 {
	return a.resolve().df(x)
}
