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

import "sort"

// Conflicts records the mutual-exclusion relation of one activation.
//
// Primary holds the ids of activations that exclude this one. Secondary
// holds the ids this one excludes. Both slices are sorted and unique.
type Conflicts struct {
	Primary   []int
	Secondary []int
}

// IsEmpty reports whether the activation has no conflicts at all.
func (c Conflicts) IsEmpty() bool {
	return len(c.Primary) == 0 && len(c.Secondary) == 0
}

// All returns the union of both sides, sorted.
func (c Conflicts) All() []int {
	out := make([]int, 0, len(c.Primary)+len(c.Secondary))
	out = append(out, c.Primary...)
	for _, id := range c.Secondary {
		out = addSorted(out, id)
	}
	sort.Ints(out)
	return dedupSorted(out)
}

func (c Conflicts) excludes(id int) bool {
	return containsSorted(c.Secondary, id)
}

func addSorted(s []int, v int) []int {
	i := sort.SearchInts(s, v)
	if i < len(s) && s[i] == v {
		return s
	}
	s = append(s, 0)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

func containsSorted(s []int, v int) bool {
	i := sort.SearchInts(s, v)
	return i < len(s) && s[i] == v
}

func dedupSorted(s []int) []int {
	if len(s) < 2 {
		return s
	}
	out := s[:1]
	for _, v := range s[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}

// computeConflicts rebuilds the conflict relation for every activation.
//
// Description:
//
//	For each negative recurrent input link the input activation excludes
//	the output. Inhibitory inputs are transparent: the walk continues
//	through their non-recurrent inputs, so the activations feeding an
//	inhibitor become the excluding side.
func (d *Document) computeConflicts() {
	for _, a := range d.acts {
		a.conflicts = Conflicts{}
	}
	for _, a := range d.acts {
		for _, l := range a.inputLinks {
			if !l.IsNegative() || !l.IsRecurrent() {
				continue
			}
			d.collectConflicts(a, d.acts[l.input], map[int]bool{})
		}
	}
}

func (d *Document) collectConflicts(act, in *Activation, seen map[int]bool) {
	if seen[in.id] {
		return
	}
	seen[in.id] = true

	if in.neuron.IsInhibitory() {
		for _, l := range in.inputLinks {
			if l.IsRecurrent() || l.IsNegative() {
				continue
			}
			d.collectConflicts(act, d.acts[l.input], seen)
		}
		return
	}
	if in.id == act.id {
		return
	}
	act.conflicts.Primary = addSorted(act.conflicts.Primary, in.id)
	in.conflicts.Secondary = addSorted(in.conflicts.Secondary, act.id)
}

// IsConflicting reports whether either activation excludes the other.
//
// The relation is symmetric by construction.
func (d *Document) IsConflicting(a, b *Activation) bool {
	if a == nil || b == nil || a.doc != d || b.doc != d {
		return false
	}
	return a.conflicts.excludes(b.id) || b.conflicts.excludes(a.id)
}
