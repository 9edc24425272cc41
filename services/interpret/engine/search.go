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
	"context"
	"math"
	"time"
)

// searchStep is the position of a SearchNode in its state machine.
type searchStep int

const (
	stepInit searchStep = iota
	stepPrepareSelect
	stepSelect
	stepPostSelect
	stepPrepareExclude
	stepExclude
	stepPostExclude
	stepFinal
)

// visit identifies one application of a search node. Activations store
// the visit of the node that last recorded a change for them, so each
// node keeps exactly one StateChange per activation.
type visit uint64

// StateChange records how a search node modified one activation.
type StateChange struct {
	ActivationID int
	OldRounds    *Rounds
	NewRounds    *Rounds
	OldDecision  Decision
	NewDecision  Decision
}

// readMark is what a search node observed of an activation before it
// changed anything: the Rounds pointer, the decision and the link set
// version. A node computed from the same marks computes the same result.
type readMark struct {
	rounds      *Rounds
	decision    Decision
	linkVersion uint64
}

// cachedNode is the reusable result of one branch of one candidate.
type cachedNode struct {
	reads       map[int]readMark
	changes     []StateChange
	weightDelta Weight
	version     uint64
}

// SearchNode is one binary decision point of the interpretation search.
//
// Description:
//
//	A child node applies the branch decision of its parent's candidate
//	and owns the StateChanges that application produced. The node's own
//	candidate is the one at its level; its two children decide it.
//
// Thread Safety: NOT safe for concurrent use.
type SearchNode struct {
	id     int
	level  int
	visit  visit
	parent *SearchNode
	branch Decision

	candidate *Candidate
	step      searchStep

	changes    []*StateChange
	reads      map[int]readMark
	childReads map[int]readMark
	applied    bool

	weightDelta       Weight
	accumulatedWeight Weight

	selectedChild     *SearchNode
	excludedChild     *SearchNode
	selectedWeight    Weight
	excludedWeight    Weight
	selectedWeightSum float64
	excludedWeightSum float64
	selectedExplored  bool
	excludedExplored  bool
	debugSelect       DebugState
	debugExclude      DebugState

	skip          Decision
	decision      Decision
	selectedValue float64
	bestPath      bool

	result    Weight
	resultSum float64
}

// Level returns the depth of the node. The root has level 0.
func (n *SearchNode) Level() int { return n.level }

// Branch returns the decision the node applied to its parent's candidate.
func (n *SearchNode) Branch() Decision { return n.branch }

// Changes returns the state changes the node recorded.
func (n *SearchNode) Changes() []*StateChange { return n.changes }

// AccumulatedWeight returns the interpretation weight at this node.
func (n *SearchNode) AccumulatedWeight() Weight { return n.accumulatedWeight }

func (d *Document) newNode(parent *SearchNode, branch Decision) *SearchNode {
	d.nodeCounter++
	d.visitCounter++
	n := &SearchNode{
		id:     d.nodeCounter,
		visit:  visit(d.visitCounter),
		parent: parent,
		branch: branch,
		reads:  make(map[int]readMark),
	}
	if parent != nil {
		n.level = parent.level + 1
	}
	d.stats.SearchNodes++
	return n
}

// markRead remembers the first observation of act by this node.
func (n *SearchNode) markRead(act *Activation) {
	if _, ok := n.reads[act.id]; ok {
		return
	}
	n.reads[act.id] = readMark{
		rounds:      act.rounds,
		decision:    act.decision,
		linkVersion: act.linkVersion,
	}
}

// recordChange moves act to the given rounds and decision and keeps the
// previous values for rollback.
func (n *SearchNode) recordChange(act *Activation, rounds *Rounds, decision Decision) {
	if act.changeVisit != n.visit {
		act.changeVisit = n.visit
		act.changeSlot = len(n.changes)
		n.changes = append(n.changes, &StateChange{
			ActivationID: act.id,
			OldRounds:    act.rounds,
			OldDecision:  act.decision,
		})
	}
	sc := n.changes[act.changeSlot]
	sc.NewRounds = rounds
	sc.NewDecision = decision
	act.rounds = rounds
	act.decision = decision
	n.applied = true
}

// rollback restores every recorded activation in reverse order.
func (d *Document) rollback(n *SearchNode) {
	for i := len(n.changes) - 1; i >= 0; i-- {
		sc := n.changes[i]
		act := d.acts[sc.ActivationID]
		act.rounds = sc.OldRounds
		act.decision = sc.OldDecision
		act.changeVisit = 0
	}
	n.applied = false
}

// computeWeightDelta sums the change of the last-round weights.
func (d *Document) computeWeightDelta(changes []*StateChange) Weight {
	delta := ZeroWeight
	for _, sc := range changes {
		delta = delta.Add(sc.NewRounds.Last().Weight).Sub(sc.OldRounds.Last().Weight)
	}
	return delta
}

// -----------------------------------------------------------------------------
// Cache Validation
// -----------------------------------------------------------------------------

func (d *Document) readsValid(reads map[int]readMark) bool {
	for id, m := range reads {
		act := d.acts[id]
		if act.rounds != m.rounds || act.decision != m.decision || act.linkVersion != m.linkVersion {
			return false
		}
	}
	return true
}

func (d *Document) cachedDecisionValid(c *Candidate) bool {
	if !d.cfg.EnableCaching || c.cachedDecision == DecisionUnknown {
		return false
	}
	return c.cachedVersion == d.modelVersion() && d.readsValid(c.cachedReads)
}

func (d *Document) cachedNodeValid(cn *cachedNode) bool {
	return cn != nil && cn.version == d.modelVersion() && d.readsValid(cn.reads)
}

// -----------------------------------------------------------------------------
// Child Creation
// -----------------------------------------------------------------------------

// newChild applies a branch decision of parent's candidate.
//
// Description:
//
//	With caching enabled and a still-valid cached node for the branch,
//	the cached state diff is applied without recomputation. Otherwise the
//	decision is applied and values are propagated to a fixed point; the
//	result is stored on the candidate for reuse. In consistency mode a
//	reused diff is first recomputed and compared.
//
// Outputs:
//   - *SearchNode: The applied child.
//   - DebugState: DebugCached or DebugExplore.
//   - error: Propagation or consistency failure. The child is rolled back.
func (d *Document) newChild(parent *SearchNode, branch Decision) (*SearchNode, DebugState, error) {
	c := parent.candidate
	cn := c.cachedNodes[branchIndex(branch)]

	if d.cfg.EnableCaching && d.cachedNodeValid(cn) {
		if d.cfg.CompareCachedNodes {
			fresh, err := d.computeChild(parent, branch)
			if err != nil {
				return nil, DebugNone, err
			}
			mismatch := compareCached(fresh, cn)
			d.rollback(fresh)
			if mismatch != nil {
				mismatch.Level = parent.level
				mismatch.CandidateID = c.id
				mismatch.Branch = branch
				return nil, DebugNone, mismatch
			}
		}
		child := d.newNode(parent, branch)
		for id, m := range cn.reads {
			child.reads[id] = m
		}
		for _, sc := range cn.changes {
			child.recordChange(d.acts[sc.ActivationID], sc.NewRounds, sc.NewDecision)
		}
		child.weightDelta = cn.weightDelta
		child.accumulatedWeight = parent.accumulatedWeight.Add(child.weightDelta)
		d.stats.Cached++
		return child, DebugCached, nil
	}

	child, err := d.computeChild(parent, branch)
	if err != nil {
		return nil, DebugNone, err
	}
	if d.cfg.EnableCaching {
		c.cachedNodes[branchIndex(branch)] = snapshotNode(child, d.modelVersion())
	}
	d.stats.Explored++
	return child, DebugExplore, nil
}

func (d *Document) computeChild(parent *SearchNode, branch Decision) (*SearchNode, error) {
	act := d.acts[parent.candidate.actID]
	child := d.newNode(parent, branch)
	child.markRead(act)
	child.recordChange(act, act.rounds, branch)
	d.enqueueDecision(act)
	if err := d.processValues(child); err != nil {
		d.rollback(child)
		return nil, err
	}
	child.weightDelta = d.computeWeightDelta(child.changes)
	child.accumulatedWeight = parent.accumulatedWeight.Add(child.weightDelta)
	return child, nil
}

func snapshotNode(n *SearchNode, version uint64) *cachedNode {
	cn := &cachedNode{
		reads:       make(map[int]readMark, len(n.reads)),
		changes:     make([]StateChange, len(n.changes)),
		weightDelta: n.weightDelta,
		version:     version,
	}
	for id, m := range n.reads {
		cn.reads[id] = m
	}
	for i, sc := range n.changes {
		cn.changes[i] = *sc
	}
	return cn
}

// compareCached checks a fresh computation against a cached node. It
// returns nil when both agree.
func compareCached(fresh *SearchNode, cn *cachedNode) *CacheConsistencyError {
	cached := make(map[int]StateChange, len(cn.changes))
	for _, sc := range cn.changes {
		cached[sc.ActivationID] = sc
	}
	for _, sc := range fresh.changes {
		old, ok := cached[sc.ActivationID]
		switch {
		case !ok:
			if sc.NewRounds.Equal(sc.OldRounds) && sc.NewDecision == sc.OldDecision {
				continue
			}
			return &CacheConsistencyError{ActivationID: sc.ActivationID, Reason: "activation missing from cached node"}
		case old.NewDecision != sc.NewDecision:
			return &CacheConsistencyError{ActivationID: sc.ActivationID, Reason: "decision differs"}
		case !old.NewRounds.Equal(sc.NewRounds):
			return &CacheConsistencyError{
				ActivationID: sc.ActivationID,
				Reason:       "rounds differ: cached " + old.NewRounds.String() + " computed " + sc.NewRounds.String(),
			}
		}
		delete(cached, sc.ActivationID)
	}
	for id, sc := range cached {
		if !sc.NewRounds.Equal(sc.OldRounds) || sc.NewDecision != sc.OldDecision {
			return &CacheConsistencyError{ActivationID: id, Reason: "activation missing from computed node"}
		}
	}
	if !fresh.weightDelta.Equal(cn.weightDelta) {
		return &CacheConsistencyError{
			ActivationID: -1,
			Reason:       "weight delta differs: cached " + cn.weightDelta.String() + " computed " + fresh.weightDelta.String(),
		}
	}
	return nil
}

// -----------------------------------------------------------------------------
// Search Loop
// -----------------------------------------------------------------------------

// searchRun carries the per-call limits of one search.
type searchRun struct {
	ctx      context.Context
	started  time.Time
	deadline time.Time
	budget   time.Duration
	best     *SearchNode
}

// search drives the decision tree below root with an explicit state
// machine. Each iteration advances exactly one node by one step; descent
// and return move the current node pointer instead of recursing.
//
// Outputs:
//   - error: Propagation, consistency or timeout failure. All nodes below
//     root are rolled back before returning.
func (d *Document) search(run *searchRun, root *SearchNode) error {
	node := root
	for node != nil {
		switch node.step {
		case stepInit:
			if node.level >= len(d.candidates) {
				if err := d.checkLimits(run); err != nil {
					d.abort(node, root)
					return err
				}
				d.processLeaf(run, node)
				node = node.parent
				continue
			}
			node.candidate = d.candidates[node.level]
			node.step = stepPrepareSelect

		case stepPrepareSelect:
			node.step = stepPrepareExclude
			ds := d.prepareSelect(node)
			node.debugSelect = ds
			if ds != DebugNone {
				d.countDebug(ds)
				continue
			}
			child, ds, err := d.newChild(node, DecisionSelected)
			if err != nil {
				d.abort(node, root)
				return err
			}
			node.debugSelect = ds
			node.selectedChild = child
			node.step = stepSelect

		case stepSelect:
			node.step = stepPostSelect
			node = node.selectedChild

		case stepPostSelect:
			child := node.selectedChild
			node.selectedWeight = child.result
			node.selectedWeightSum = child.resultSum
			node.selectedExplored = true
			act := d.acts[node.candidate.actID]
			node.selectedValue = act.rounds.Last().Value
			d.mergeReads(node, child)
			d.rollback(child)
			if node.selectedValue > 0 && d.isIsolated(act) {
				node.skip = DecisionExcluded
			}
			node.step = stepPrepareExclude

		case stepPrepareExclude:
			node.step = stepFinal
			ds := d.prepareExclude(node)
			node.debugExclude = ds
			if ds != DebugNone {
				d.countDebug(ds)
				continue
			}
			child, ds, err := d.newChild(node, DecisionExcluded)
			if err != nil {
				d.abort(node, root)
				return err
			}
			node.debugExclude = ds
			node.excludedChild = child
			node.step = stepExclude

		case stepExclude:
			node.step = stepPostExclude
			node = node.excludedChild

		case stepPostExclude:
			child := node.excludedChild
			node.excludedWeight = child.result
			node.excludedWeightSum = child.resultSum
			node.excludedExplored = true
			d.mergeReads(node, child)
			d.rollback(child)
			node.step = stepFinal

		case stepFinal:
			d.finalizeNode(node)
			node = node.parent
		}
	}
	return nil
}

// prepareSelect returns a non-None debug state when the SELECT branch is
// skipped.
func (d *Document) prepareSelect(n *SearchNode) DebugState {
	c := n.candidate
	act := d.acts[c.actID]
	if act.preDecision == DecisionExcluded {
		return DebugLimited
	}
	for _, id := range act.conflicts.All() {
		other := d.acts[id]
		if other.decision == DecisionSelected || other.preDecision == DecisionSelected {
			return DebugLimited
		}
	}
	if d.cachedDecisionValid(c) && c.cachedDecision == DecisionExcluded {
		return DebugCached
	}
	return DebugNone
}

// prepareExclude returns a non-None debug state when the EXCLUDE branch
// is skipped. The branch always runs when SELECT was not explored.
func (d *Document) prepareExclude(n *SearchNode) DebugState {
	if !n.selectedExplored {
		return DebugNone
	}
	c := n.candidate
	act := d.acts[c.actID]
	switch {
	case act.preDecision == DecisionSelected:
		return DebugLimited
	case n.skip == DecisionExcluded:
		return DebugCached
	case d.cachedDecisionValid(c) && c.cachedDecision == DecisionSelected:
		return DebugCached
	}
	return DebugNone
}

// isIsolated reports whether selecting act can influence nothing but act.
func (d *Document) isIsolated(act *Activation) bool {
	if !act.conflicts.IsEmpty() {
		return false
	}
	for _, l := range act.outputLinks {
		if !l.IsSelfLink() {
			return false
		}
	}
	return true
}

func (d *Document) countDebug(ds DebugState) {
	switch ds {
	case DebugLimited:
		d.stats.Limited++
	case DebugCached:
		d.stats.Cached++
	}
}

// mergeReads adds the observations of child's subtree to node. They
// describe node's context, after node was applied.
func (d *Document) mergeReads(node, child *SearchNode) {
	if node.childReads == nil {
		node.childReads = make(map[int]readMark)
	}
	for id, m := range child.contextReads() {
		if _, ok := node.childReads[id]; !ok {
			node.childReads[id] = m
		}
	}
	child.childReads = nil
}

// contextReads returns the observations of n's subtree in the context of
// n's parent. Observations of activations n changed are only valid from
// n's own reads, which precede the change.
func (n *SearchNode) contextReads() map[int]readMark {
	if len(n.childReads) == 0 {
		return n.reads
	}
	changed := make(map[int]bool, len(n.changes))
	for _, sc := range n.changes {
		changed[sc.ActivationID] = true
	}
	out := make(map[int]readMark, len(n.reads)+len(n.childReads))
	for id, m := range n.reads {
		out[id] = m
	}
	for id, m := range n.childReads {
		if _, ok := out[id]; !ok && !changed[id] {
			out[id] = m
		}
	}
	return out
}

// processLeaf evaluates a complete interpretation.
func (d *Document) processLeaf(run *searchRun, leaf *SearchNode) {
	d.stats.Leaves++
	w := leaf.accumulatedWeight
	leaf.result = w
	leaf.resultSum = math.Exp(w.Norm())
	if w.W > d.stats.MaxLeafWeight {
		d.stats.MaxLeafWeight = w.W
	}

	best := run.best
	if best != nil && leaf.level <= best.level && w.Compare(best.accumulatedWeight) <= 0 {
		return
	}
	for n := best; n != nil; n = n.parent {
		n.bestPath = false
	}
	for n := leaf; n != nil; n = n.parent {
		n.bestPath = true
	}
	run.best = leaf
	for _, act := range d.acts {
		act.finalRounds = act.rounds
		act.finalDecision = act.decision
	}
}

// finalizeNode chooses the branch of a fully processed node, caches the
// choice on its candidate and prunes branches off the best path.
func (d *Document) finalizeNode(n *SearchNode) {
	c := n.candidate
	if c == nil {
		return
	}
	act := d.acts[c.actID]

	switch {
	case n.selectedExplored && n.excludedExplored:
		switch {
		case act.preDecision != DecisionUnknown:
			n.decision = act.preDecision
		case n.selectedWeight.Compare(n.excludedWeight) < 0:
			n.decision = DecisionExcluded
		default:
			n.decision = DecisionSelected
		}
	case n.selectedExplored:
		n.decision = DecisionSelected
	case n.excludedExplored:
		n.decision = DecisionExcluded
	}

	if n.decision == DecisionSelected {
		n.result = n.selectedWeight
	} else {
		n.result = n.excludedWeight
	}
	n.resultSum = n.selectedWeightSum + n.excludedWeightSum

	if d.cfg.EnableCaching && n.debugSelect != DebugLimited && n.debugExclude != DebugLimited &&
		n.decision != DecisionUnknown {
		newlySelected := n.decision == DecisionSelected && c.cachedDecision != DecisionSelected
		c.cachedDecision = n.decision
		c.cachedReads = n.childReads
		c.cachedVersion = d.modelVersion()
		if newlySelected {
			d.invalidateDependents(c)
		}
	}

	if !d.cfg.KeepSearchTree {
		if n.selectedChild != nil && !n.selectedChild.bestPath {
			n.selectedChild = nil
		}
		if n.excludedChild != nil && !n.excludedChild.bestPath {
			n.excludedChild = nil
		}
	}
}

// checkLimits enforces the wall-clock budget and context cancellation.
func (d *Document) checkLimits(run *searchRun) error {
	var cause error
	if err := run.ctx.Err(); err != nil {
		cause = err
	} else if !run.deadline.IsZero() && time.Now().After(run.deadline) {
		cause = context.DeadlineExceeded
	}
	if cause == nil {
		return nil
	}
	return &TimeoutError{
		Budget:  run.budget,
		Elapsed: time.Since(run.started),
		Leaves:  d.stats.Leaves,
		Cause:   cause,
	}
}

// abort rolls back every applied node from n up to, but excluding, root.
func (d *Document) abort(n, root *SearchNode) {
	for cur := n; cur != nil && cur != root; cur = cur.parent {
		if cur.applied {
			d.rollback(cur)
		}
	}
}
