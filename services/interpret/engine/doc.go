// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine computes the best-supported consistent interpretation of a
// document of interacting activations.
//
// Architecture:
//
//	┌──────────────────────────────────────────────────────────────────────┐
//	│                         Document.Process                             │
//	├──────────────────────────────────────────────────────────────────────┤
//	│  1. UpperBoundQueue   bounds per activation, propagate hook on 0→+    │
//	│  2. Conflicts         primary/secondary exclusion from neg. rec links │
//	│  3. Candidates        undecided activations in dependency order       │
//	│  4. ValueQueue        root fixed point (round 0..MaxRound)            │
//	│  5. SearchNode tree   iterative SELECT/EXCLUDE branch-and-bound       │
//	│  6. Final states      snapshot of the best leaf                       │
//	└──────────────────────────────────────────────────────────────────────┘
//
// Every search node applies one decision to one candidate, re-runs the
// value propagation restricted to the activations that decision can reach,
// and records a StateChange per touched activation. Returning from a branch
// restores the recorded Rounds pointers, so rollback is exact.
//
// Ownership:
//
//	The Document owns the activation arena, the candidate list, and the
//	search tree. Links, conflicts, candidates, and state changes refer to
//	activations by integer id only.
//
// Thread Safety:
//
//	A Document is NOT safe for concurrent use. Different documents may be
//	processed concurrently; shared weights and biases are read through the
//	Neuron and Connection interfaces, whose implementations must guard them
//	with a reader/writer lock.
package engine
