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
)

// Candidate wraps an undecided activation eligible for the search.
//
// Description:
//
//	A candidate survives across Process calls on the same document, so
//	its cached decision and cached search nodes can be reused by later
//	searches as long as everything they read is unchanged.
type Candidate struct {
	actID int
	id    int
	// created is the order in which this pass collected the candidate.
	// The topological search order is id, assigned on release.
	created int

	cachedDecision Decision
	cachedReads    map[int]readMark
	cachedVersion  uint64
	cachedNodes    [2]*cachedNode
}

// ActivationID returns the id of the wrapped activation.
func (c *Candidate) ActivationID() int { return c.actID }

// ID returns the position of the candidate in the search order.
func (c *Candidate) ID() int { return c.id }

// CachedDecision returns the decision cached by the last search.
func (c *Candidate) CachedDecision() Decision { return c.cachedDecision }

func (c *Candidate) clearCachedDecision() {
	c.cachedDecision = DecisionUnknown
	c.cachedReads = nil
}

// invalidateCachedDecision drops the cached decisions the appearance of
// this candidate could make wrong: those of its conflict partners and of
// its inputs.
func (d *Document) invalidateCachedDecision(c *Candidate) {
	act := d.acts[c.actID]
	for _, id := range act.conflicts.All() {
		if pc := d.acts[id].candidate; pc != nil {
			pc.clearCachedDecision()
		}
	}
	for _, l := range act.inputLinks {
		if ic := d.acts[l.input].candidate; ic != nil && !l.IsSelfLink() {
			ic.clearCachedDecision()
		}
	}
}

// invalidateDependents is called when SELECTED is newly confirmed for a
// candidate. Downstream candidates lose a cached EXCLUDED decision and
// conflicting candidates lose a cached SELECTED decision.
func (d *Document) invalidateDependents(c *Candidate) {
	act := d.acts[c.actID]
	for _, l := range act.outputLinks {
		if l.IsNegative() || l.IsSelfLink() {
			continue
		}
		if oc := d.acts[l.output].candidate; oc != nil && oc.cachedDecision == DecisionExcluded {
			oc.clearCachedDecision()
		}
	}
	for _, id := range act.conflicts.All() {
		if cc := d.acts[id].candidate; cc != nil && cc.cachedDecision == DecisionSelected {
			cc.clearCachedDecision()
		}
	}
}

// generateCandidates builds the ordered search list.
//
// Description:
//
//	Every activation with decision UNKNOWN and a positive upper bound
//	becomes a candidate. Candidates are sorted non-conflicting first,
//	then by position, collection order and activation id. They are then
//	released one at a time, always the first sorted candidate whose
//	non-recurrent inputs with a positive upper bound have been released
//	already. The release order becomes the candidate id.
//
// Outputs:
//   - error: CyclicDependencyError when no remaining candidate can be
//     released.
func (d *Document) generateCandidates() error {
	var pool []*Candidate
	for _, act := range d.acts {
		if act.decision != DecisionUnknown || act.upperBound <= 0 {
			continue
		}
		c := act.candidate
		if c == nil {
			c = &Candidate{actID: act.id}
			act.candidate = c
			d.invalidateCachedDecision(c)
		}
		c.created = len(pool)
		pool = append(pool, c)
	}

	sort.SliceStable(pool, func(i, j int) bool {
		return d.candidateLess(pool[i], pool[j])
	})

	pending := make(map[int]bool, len(pool))
	for _, c := range pool {
		pending[c.actID] = true
	}

	ordered := make([]*Candidate, 0, len(pool))
	for len(pool) > 0 {
		idx := -1
		for i, c := range pool {
			if d.dependenciesReleased(c, pending) {
				idx = i
				break
			}
		}
		if idx < 0 {
			stuck := make([]int, len(pool))
			for i, c := range pool {
				stuck[i] = c.actID
			}
			sort.Ints(stuck)
			return &CyclicDependencyError{Stage: "candidates", Pending: stuck}
		}
		c := pool[idx]
		pool = append(pool[:idx], pool[idx+1:]...)
		delete(pending, c.actID)
		c.id = len(ordered)
		ordered = append(ordered, c)
	}

	d.candidates = ordered
	return nil
}

func (d *Document) candidateLess(a, b *Candidate) bool {
	aa, ba := d.acts[a.actID], d.acts[b.actID]
	ac, bc := !aa.conflicts.IsEmpty(), !ba.conflicts.IsEmpty()
	if ac != bc {
		return !ac
	}
	if aa.position != ba.position {
		return aa.position < ba.position
	}
	if a.created != b.created {
		return a.created < b.created
	}
	return a.actID < b.actID
}

func (d *Document) dependenciesReleased(c *Candidate, pending map[int]bool) bool {
	act := d.acts[c.actID]
	for _, l := range act.inputLinks {
		if l.IsRecurrent() || l.IsSelfLink() {
			continue
		}
		if d.acts[l.input].upperBound > 0 && pending[l.input] {
			return false
		}
	}
	return true
}
