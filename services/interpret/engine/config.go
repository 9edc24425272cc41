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

// DefaultMaxRound bounds the round index of value propagation.
const DefaultMaxRound = 20

// Config controls a document's propagation and search.
//
// Thread Safety: Safe to read concurrently. Not safe to modify after
// the document is created.
type Config struct {
	// MaxRound is the largest round index before propagation is reported
	// as oscillating.
	MaxRound int

	// EnableCaching reuses cached decisions and state diffs of earlier
	// search nodes when their inputs are unchanged.
	EnableCaching bool

	// CompareCachedNodes recomputes every reused node and fails with a
	// CacheConsistencyError when the results differ.
	CompareCachedNodes bool

	// AllowWeakNegativeWeights lets undecided activations keep their
	// weight instead of gating it to zero. Excluded activations are always
	// gated.
	AllowWeakNegativeWeights bool

	// KeepSearchTree keeps both children of every node for soft-max
	// accounting instead of dropping branches off the best path.
	KeepSearchTree bool
}

// DefaultConfig returns the production configuration.
func DefaultConfig() Config {
	return Config{
		MaxRound:      DefaultMaxRound,
		EnableCaching: true,
	}
}

func (c Config) normalized() Config {
	if c.MaxRound <= 0 {
		c.MaxRound = DefaultMaxRound
	}
	return c
}
