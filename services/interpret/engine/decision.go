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

// Decision is the accept/exclude state of an activation.
type Decision int

const (
	// DecisionUnknown means no decision has been made yet.
	DecisionUnknown Decision = iota

	// DecisionSelected means the activation is part of the interpretation.
	DecisionSelected

	// DecisionExcluded means the activation has been ruled out.
	DecisionExcluded
)

// String returns the upper-case name used in traces.
func (d Decision) String() string {
	switch d {
	case DecisionSelected:
		return "SELECTED"
	case DecisionExcluded:
		return "EXCLUDED"
	default:
		return "UNKNOWN"
	}
}

// branchIndex maps a branch decision to its slot in per-branch arrays.
func branchIndex(d Decision) int {
	if d == DecisionExcluded {
		return 1
	}
	return 0
}

// DebugState classifies how a search branch was handled.
type DebugState int

const (
	// DebugNone means the branch was never reached.
	DebugNone DebugState = iota

	// DebugLimited means the branch was forced by an earlier decision.
	DebugLimited

	// DebugCached means earlier work was reused instead of recomputed.
	DebugCached

	// DebugExplore means the branch was freshly computed.
	DebugExplore
)

// String returns the trace label.
func (s DebugState) String() string {
	switch s {
	case DebugLimited:
		return "LIMITED"
	case DebugCached:
		return "CACHED"
	case DebugExplore:
		return "EXPLORE"
	default:
		return "-"
	}
}
