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
	"container/heap"
	"math"
)

const (
	// maxUpdatesPerActivation caps how often one activation may be
	// recomputed in a single drain before the graph is considered cyclic.
	maxUpdatesPerActivation = 10000

	// boundsEpsilon is the smallest bound change that requeues outputs.
	boundsEpsilon = 1e-6
)

// -----------------------------------------------------------------------------
// idQueue
// -----------------------------------------------------------------------------

// intHeap is a min-heap of activation ids.
type intHeap []int

func (h intHeap) Len() int           { return len(h) }
func (h intHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h intHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *intHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *intHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// idQueue is a deduplicating min-queue of activation ids.
type idQueue struct {
	heap   intHeap
	queued map[int]struct{}
}

func (q *idQueue) push(id int) {
	if q.queued == nil {
		q.queued = make(map[int]struct{})
	}
	if _, ok := q.queued[id]; ok {
		return
	}
	q.queued[id] = struct{}{}
	heap.Push(&q.heap, id)
}

func (q *idQueue) pop() int {
	id := heap.Pop(&q.heap).(int)
	delete(q.queued, id)
	return id
}

func (q *idQueue) Len() int { return len(q.heap) }

// drain empties the queue and returns the remaining ids in order.
func (q *idQueue) drain() []int {
	out := make([]int, 0, q.Len())
	for q.Len() > 0 {
		out = append(out, q.pop())
	}
	return out
}

// -----------------------------------------------------------------------------
// UpperBoundQueue
// -----------------------------------------------------------------------------

// processBounds drains the bounds queue until every bound is stable.
//
// Description:
//
//	Each popped activation recomputes its bounds. A change beyond
//	boundsEpsilon requeues all outputs. The propagator is invoked once per
//	activation, the first time its upper bound becomes positive; new
//	activations and links it creates are queued by AddActivation and
//	AddLink and drained in the same call.
//
// Outputs:
//   - error: CyclicDependencyError when an activation keeps changing, or
//     the propagator's error.
func (d *Document) processBounds() error {
	counts := make(map[int]int)
	for d.bounds.Len() > 0 {
		id := d.bounds.pop()
		counts[id]++
		if counts[id] > maxUpdatesPerActivation {
			pending := append([]int{id}, d.bounds.drain()...)
			return &CyclicDependencyError{Stage: "bounds", Pending: pending}
		}

		act := d.acts[id]
		ub, lb := act.computeBounds()
		changed := math.Abs(ub-act.upperBound) > boundsEpsilon ||
			math.Abs(lb-act.lowerBound) > boundsEpsilon
		act.upperBound, act.lowerBound = ub, lb

		if ub > 0 && !act.boundsPropagated {
			act.boundsPropagated = true
			if d.propagator != nil {
				if err := d.propagator.Propagate(d, act); err != nil {
					d.bounds.drain()
					return err
				}
			}
		}
		if !changed {
			continue
		}
		for _, l := range act.outputLinks {
			if !l.IsSelfLink() {
				d.bounds.push(l.output)
			}
		}
	}
	return nil
}

// -----------------------------------------------------------------------------
// ValueQueue
// -----------------------------------------------------------------------------

// valueQueue holds one idQueue per round.
//
// Activations are drained lowest round first and in id order within a
// round, so propagation is deterministic for identical graphs.
type valueQueue struct {
	rounds []idQueue
}

func (q *valueQueue) add(round int, id int) {
	for len(q.rounds) <= round {
		q.rounds = append(q.rounds, idQueue{})
	}
	q.rounds[round].push(id)
}

// next pops the lowest (round, id) pair.
func (q *valueQueue) next() (int, int, bool) {
	for r := range q.rounds {
		if q.rounds[r].Len() > 0 {
			return r, q.rounds[r].pop(), true
		}
	}
	return 0, 0, false
}

func (q *valueQueue) ids(round int) []int {
	if round >= len(q.rounds) {
		return nil
	}
	out := make([]int, 0, q.rounds[round].Len())
	for id := range q.rounds[round].queued {
		out = append(out, id)
	}
	return out
}

func (q *valueQueue) reset() {
	q.rounds = q.rounds[:0]
}

// enqueueActivation queues every round of act that may be stale: round
// 0, its own stored rounds and every round its inputs store a state for.
func (d *Document) enqueueActivation(act *Activation) {
	d.values.add(0, act.id)
	for _, r := range act.rounds.RoundIndexes() {
		d.values.add(r, act.id)
	}
	for _, l := range act.inputLinks {
		if l.IsSelfLink() {
			continue
		}
		shift := 0
		if l.IsRecurrent() {
			shift = 1
		}
		for _, r := range d.acts[l.input].rounds.RoundIndexes() {
			d.values.add(r+shift, act.id)
		}
	}
}

// enqueueDecision queues everything a decision change of act can affect:
// the activation itself and its recurrent outputs, which read it only
// while it is selected.
func (d *Document) enqueueDecision(act *Activation) {
	d.enqueueActivation(act)
	for _, l := range act.outputLinks {
		if l.IsRecurrent() && !l.IsSelfLink() {
			d.enqueueActivation(d.acts[l.output])
		}
	}
}

// enqueueOutputs queues the outputs of act after its state changed in
// the given round. Non-recurrent outputs read the same round, recurrent
// outputs read it one round later; outputs holding later rounds computed
// from the old state are queued at those rounds too.
func (d *Document) enqueueOutputs(act *Activation, round int) {
	for _, l := range act.outputLinks {
		if l.IsSelfLink() {
			continue
		}
		base := round
		if l.IsRecurrent() {
			if act.decision != DecisionSelected {
				continue
			}
			base = round + 1
		}
		out := d.acts[l.output]
		d.values.add(base, out.id)
		for _, r := range out.rounds.RoundIndexes() {
			if r > base {
				d.values.add(r, out.id)
			}
		}
		for _, r := range act.rounds.RoundIndexes() {
			if r+base-round > base {
				d.values.add(r+base-round, out.id)
			}
		}
	}
}

// processValues drains the value queue to a fixed point.
//
// Description:
//
//	Every popped (round, activation) pair recomputes the state of that
//	round. The resulting Rounds are recorded on the search node so the
//	change can be rolled back. A changed state queues the outputs.
//
// Inputs:
//   - sn: The search node recording changes and reads. Must not be nil.
//
// Outputs:
//   - error: OscillationError when a round beyond MaxRound is required,
//     CyclicDependencyError when an activation never settles.
func (d *Document) processValues(sn *SearchNode) error {
	counts := make(map[int]int)
	for {
		round, id, ok := d.values.next()
		if !ok {
			return nil
		}
		act := d.acts[id]
		sn.markRead(act)
		if round > d.cfg.MaxRound {
			if s := act.computeState(round, sn); s.Equal(act.rounds.Get(round)) {
				continue
			}
			err := d.oscillationError(round, id)
			d.values.reset()
			return err
		}
		counts[id]++
		if counts[id] > maxUpdatesPerActivation {
			pending := []int{id}
			for r := range d.values.rounds {
				pending = append(pending, d.values.rounds[r].drain()...)
			}
			d.values.reset()
			return &CyclicDependencyError{Stage: "values", Pending: pending}
		}

		s := act.computeState(round, sn)
		next, changed := act.rounds.Set(round, s)
		if next != act.rounds {
			sn.recordChange(act, next, act.decision)
		}
		if changed {
			d.enqueueOutputs(act, round)
		}
	}
}

func (d *Document) oscillationError(round, id int) *OscillationError {
	ids := append([]int{id}, d.values.ids(round)...)
	err := &OscillationError{MaxRound: d.cfg.MaxRound, Round: round}
	seen := make(map[int]bool)
	for _, i := range ids {
		if seen[i] {
			continue
		}
		seen[i] = true
		a := d.acts[i]
		err.History = append(err.History, RoundHistory{
			ActivationID: a.id,
			Label:        a.Label(),
			Rounds:       a.rounds.String(),
		})
		for _, l := range a.inputLinks {
			if l.IsRecurrent() && !seen[l.input] {
				seen[l.input] = true
				in := d.acts[l.input]
				err.History = append(err.History, RoundHistory{
					ActivationID: in.id,
					Label:        in.Label(),
					Rounds:       in.rounds.String(),
				})
			}
		}
	}
	return err
}
