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
	"sort"
)

// Activation is a single firing instance of a neuron within one document.
//
// Description:
//
//	Identity is (id, document, neuron). The activation owns its Rounds;
//	links, conflicts and the candidate refer to peers by id only.
//
// Thread Safety: NOT safe for concurrent use; owned by its Document.
type Activation struct {
	id       int
	doc      *Document
	neuron   Neuron
	position int

	isInput    bool
	inputValue float64

	upperBound       float64
	lowerBound       float64
	boundsPropagated bool

	rounds        *Rounds
	finalRounds   *Rounds
	decision      Decision
	finalDecision Decision
	preDecision   Decision

	inputLinks  []*Link
	outputLinks []*Link
	conflicts   Conflicts
	candidate   *Candidate

	// linkVersion changes whenever a link is attached to this activation.
	linkVersion uint64

	// changeVisit and changeSlot locate the StateChange recorded for this
	// activation by the search node whose visit token matches.
	changeVisit visit
	changeSlot  int
}

// ID returns the document-local activation id.
func (a *Activation) ID() int { return a.id }

// Neuron returns the neuron this activation belongs to.
func (a *Activation) Neuron() Neuron { return a.neuron }

// Position returns the position key used for candidate ordering.
func (a *Activation) Position() int { return a.position }

// Label returns "<neuron label>@<position>".
func (a *Activation) Label() string {
	return fmt.Sprintf("%s@%d", a.neuron.Label(), a.position)
}

// IsInput reports whether the activation was injected as input.
func (a *Activation) IsInput() bool { return a.isInput }

// Decision returns the current (search-time) decision.
func (a *Activation) Decision() Decision { return a.decision }

// UpperBound returns the current upper bound.
func (a *Activation) UpperBound() float64 { return a.upperBound }

// LowerBound returns the current lower bound.
func (a *Activation) LowerBound() float64 { return a.lowerBound }

// Rounds returns the current rounds. The value is immutable.
func (a *Activation) Rounds() *Rounds { return a.rounds }

// InputLinks returns the incoming links ordered by (connection, input id).
func (a *Activation) InputLinks() []*Link { return a.inputLinks }

// OutputLinks returns the outgoing links ordered by (connection, output id).
func (a *Activation) OutputLinks() []*Link { return a.outputLinks }

// Conflicts returns the conflict relation of this activation.
func (a *Activation) Conflicts() Conflicts { return a.conflicts }

// -----------------------------------------------------------------------------
// Links
// -----------------------------------------------------------------------------

// Link is an immutable directed edge between two activations.
type Link struct {
	conn   Connection
	input  int
	output int
}

// Connection returns the connection the link instantiates.
func (l *Link) Connection() Connection { return l.conn }

// Input returns the input activation id.
func (l *Link) Input() int { return l.input }

// Output returns the output activation id.
func (l *Link) Output() int { return l.output }

// IsNegative reads the sign from the connection.
func (l *Link) IsNegative() bool { return l.conn.IsNegative() }

// IsRecurrent reads the recurrence flag from the connection.
func (l *Link) IsRecurrent() bool { return l.conn.IsRecurrent() }

// IsSelfLink reports whether the link feeds an activation into itself.
func (l *Link) IsSelfLink() bool { return l.input == l.output }

func insertLink(links []*Link, l *Link, peer func(*Link) int) ([]*Link, bool) {
	i := sort.Search(len(links), func(i int) bool {
		o := links[i]
		if o.conn.ID() != l.conn.ID() {
			return o.conn.ID() > l.conn.ID()
		}
		return peer(o) >= peer(l)
	})
	if i < len(links) && links[i].conn.ID() == l.conn.ID() && peer(links[i]) == peer(l) {
		return links, false
	}
	links = append(links, nil)
	copy(links[i+1:], links[i:])
	links[i] = l
	return links, true
}

// -----------------------------------------------------------------------------
// Value And Weight
// -----------------------------------------------------------------------------

// effectiveWeight applies the optional distance decay to a link weight.
func (a *Activation) effectiveWeight(l *Link, in *Activation) float64 {
	w := l.conn.Weight()
	if decay := l.conn.DistanceDecay(); decay > 0 {
		w *= math.Exp(-decay * math.Abs(float64(in.position-a.position)))
	}
	return w
}

// inputValueAt returns the value an input contributes in the given round.
//
// Recurrent inputs only count while selected, in every round: round 0
// assumes the initial value 1.0, later rounds use the previous round.
// Non-recurrent inputs use the same round.
func inputValueAt(l *Link, in *Activation, round int) (State, float64) {
	if l.IsRecurrent() {
		if in.decision != DecisionSelected {
			return ZeroState, 0
		}
		if round == 0 {
			return State{Value: 1, Fired: 0}, 1
		}
		s := in.rounds.Get(round - 1)
		return s, s.Value
	}
	s := in.rounds.Get(round)
	return s, s.Value
}

// computeState computes the state of the given round from the inputs.
//
// Inputs:
//   - round: Round index.
//   - sn: Node recording reads for cache validation. May be nil.
//
// Outputs:
//   - State: The new state. Value is never NaN.
func (a *Activation) computeState(round int, sn *SearchNode) State {
	if a.isInput {
		return State{Value: a.inputValue, Net: a.inputValue, Fired: 0}
	}

	n := a.neuron
	net := n.Bias()
	netDirect := net
	fired := NotFired

	for _, l := range a.inputLinks {
		if l.IsSelfLink() {
			continue
		}
		in := a.doc.acts[l.input]
		if sn != nil {
			sn.markRead(in)
		}
		is, x := inputValueAt(l, in, round)
		if x == 0 {
			continue
		}
		s := x * a.effectiveWeight(l, in)
		net += s
		if l.IsRecurrent() {
			continue
		}
		netDirect += s
		if s > 0 && is.Fired != NotFired && is.Fired+1 > fired {
			fired = is.Fired + 1
		}
	}

	value := n.ActivationFunction(net)
	if math.IsNaN(value) || a.decision == DecisionExcluded {
		value = 0
	}
	if netDirect <= 0 || value <= 0 {
		fired = NotFired
	} else if fired == NotFired {
		fired = 0
	}

	return State{
		Value:  value,
		Net:    net,
		Fired:  fired,
		Weight: a.computeWeight(net, netDirect),
	}
}

// computeWeight returns how strongly the activation beats its inhibitors.
func (a *Activation) computeWeight(net, netDirect float64) Weight {
	switch a.decision {
	case DecisionSelected:
	case DecisionUnknown:
		if !a.doc.cfg.AllowWeakNegativeWeights {
			return ZeroWeight
		}
	default:
		return ZeroWeight
	}
	negRec := -a.neuron.NegRecSum()
	return Weight{
		W: math.Max(0, math.Min(negRec, net)),
		N: math.Max(0, math.Min(negRec, netDirect+a.neuron.PosRecSum())),
	}
}

// -----------------------------------------------------------------------------
// Bounds
// -----------------------------------------------------------------------------

// computeBounds returns the worst-case upper and lower bound of the value.
//
// Description:
//
//	Positive links use the input's upper bound for the upper bound and,
//	when not recurrent, its lower bound for the lower bound. Negative
//	links use the input's upper bound for the lower bound; they only
//	reduce the upper bound when they are neither recurrent nor fed back
//	from this activation through non-recurrent links.
func (a *Activation) computeBounds() (float64, float64) {
	if a.isInput {
		return a.inputValue, a.inputValue
	}
	ub := a.neuron.Bias()
	lb := ub
	for _, l := range a.inputLinks {
		if l.IsSelfLink() {
			continue
		}
		in := a.doc.acts[l.input]
		w := a.effectiveWeight(l, in)
		if w >= 0 {
			ub += w * in.upperBound
			if !l.IsRecurrent() {
				lb += w * in.lowerBound
			}
			continue
		}
		lb += w * in.upperBound
		if !l.IsRecurrent() && !in.dependsOn(a.id) {
			ub += w * in.lowerBound
		}
	}
	return sanitize(a.neuron.ActivationFunction(ub)), sanitize(a.neuron.ActivationFunction(lb))
}

// dependsOn reports whether target is reachable backwards from a through
// non-recurrent input links.
func (a *Activation) dependsOn(target int) bool {
	seen := map[int]bool{a.id: true}
	stack := []int{a.id}
	for len(stack) > 0 {
		cur := a.doc.acts[stack[len(stack)-1]]
		stack = stack[:len(stack)-1]
		for _, l := range cur.inputLinks {
			if l.IsRecurrent() {
				continue
			}
			if l.input == target {
				return true
			}
			if !seen[l.input] {
				seen[l.input] = true
				stack = append(stack, l.input)
			}
		}
	}
	return false
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}
