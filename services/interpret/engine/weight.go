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

// Weight is the pair of confidence and normalizer sums used to rank
// interpretations.
//
// Description:
//
//	W is the confidence, N the normalizer. Preference compares W only;
//	equality compares both within Tolerance. Weight is an immutable value.
type Weight struct {
	W float64
	N float64
}

// ZeroWeight is the neutral element of Add.
var ZeroWeight = Weight{}

// Add returns w + o.
func (w Weight) Add(o Weight) Weight {
	return Weight{W: w.W + o.W, N: w.N + o.N}
}

// Sub returns w - o.
func (w Weight) Sub(o Weight) Weight {
	return Weight{W: w.W - o.W, N: w.N - o.N}
}

// Norm returns W/N, or 0 when the normalizer is zero.
func (w Weight) Norm() float64 {
	if w.N == 0 {
		return 0
	}
	return w.W / w.N
}

// Compare orders weights by confidence only.
//
// Outputs:
//   - int: -1, 0 or +1.
func (w Weight) Compare(o Weight) int {
	switch {
	case w.W < o.W:
		return -1
	case w.W > o.W:
		return 1
	default:
		return 0
	}
}

// Equal reports whether both components agree within Tolerance.
func (w Weight) Equal(o Weight) bool {
	return math.Abs(w.W-o.W) <= Tolerance && math.Abs(w.N-o.N) <= Tolerance
}

// String formats the weight for traces.
func (w Weight) String() string {
	return fmt.Sprintf("%.3f/%.3f", w.W, w.N)
}
