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
	"sort"
	"strconv"
	"strings"
)

// roundEntry stores the state recorded for one round index.
type roundEntry struct {
	round int
	state State
}

// Rounds is the sparse, ordered mapping from round index to State.
//
// Description:
//
//	A round that has no entry inherits the state of the nearest lower
//	round. Round 0 always exists. Rounds values are immutable: Set
//	returns a new value and leaves the receiver untouched, so a saved
//	pointer is an exact snapshot and rollback is a pointer assignment.
//
// Thread Safety: Immutable, safe for concurrent reads.
type Rounds struct {
	entries []roundEntry
}

// NewRounds returns rounds holding ZeroState at round 0.
func NewRounds() *Rounds {
	return &Rounds{entries: []roundEntry{{round: 0, state: ZeroState}}}
}

// Get returns the state of the given round using floor lookup.
func (r *Rounds) Get(round int) State {
	i := sort.Search(len(r.entries), func(i int) bool {
		return r.entries[i].round > round
	})
	if i == 0 {
		return r.entries[0].state
	}
	return r.entries[i-1].state
}

// Last returns the state of the highest stored round.
func (r *Rounds) Last() State {
	return r.entries[len(r.entries)-1].state
}

// LastRound returns the highest stored round index.
func (r *Rounds) LastRound() int {
	return r.entries[len(r.entries)-1].round
}

// Len returns the number of stored rounds.
func (r *Rounds) Len() int {
	return len(r.entries)
}

// RoundIndexes returns the stored round indexes in ascending order.
func (r *Rounds) RoundIndexes() []int {
	out := make([]int, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.round
	}
	return out
}

// Set returns rounds with the given round set to s.
//
// Description:
//
//	A state equal (with weights) to the state of round-1 is not stored;
//	any later round made redundant by the change is pruned. When the
//	resulting content equals the receiver, the receiver itself is
//	returned so pointer identity survives no-op updates.
//
// Inputs:
//   - round: Round index, >= 0.
//   - s: The new state.
//
// Outputs:
//   - *Rounds: The updated rounds (possibly the receiver).
//   - bool: True when the value-level state of the round changed.
func (r *Rounds) Set(round int, s State) (*Rounds, bool) {
	old := r.Get(round)
	changed := !old.Equal(s)

	merged := make([]roundEntry, 0, len(r.entries)+1)
	inserted := false
	for _, e := range r.entries {
		if !inserted && e.round >= round {
			merged = append(merged, roundEntry{round: round, state: s})
			inserted = true
			if e.round == round {
				continue
			}
		}
		merged = append(merged, e)
	}
	if !inserted {
		merged = append(merged, roundEntry{round: round, state: s})
	}

	compact := merged[:0:0]
	for _, e := range merged {
		if e.round > 0 && len(compact) > 0 && compact[len(compact)-1].state.EqualWithWeights(e.state) {
			continue
		}
		compact = append(compact, e)
	}

	next := &Rounds{entries: compact}
	if next.Equal(r) {
		return r, false
	}
	return next, changed
}

// Equal reports whether both rounds store the same rounds with states
// equal including weights.
func (r *Rounds) Equal(o *Rounds) bool {
	if r == o {
		return true
	}
	if r == nil || o == nil || len(r.entries) != len(o.entries) {
		return false
	}
	for i := range r.entries {
		if r.entries[i].round != o.entries[i].round {
			return false
		}
		if !r.entries[i].state.EqualWithWeights(o.entries[i].state) {
			return false
		}
	}
	return true
}

// String lists every stored round.
func (r *Rounds) String() string {
	var sb strings.Builder
	for i, e := range r.entries {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString("r")
		sb.WriteString(strconv.Itoa(e.round))
		sb.WriteString(": ")
		sb.WriteString(e.state.String())
	}
	return sb.String()
}
