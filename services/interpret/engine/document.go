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
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// actKey identifies an activation by neuron and position.
type actKey struct {
	neuronID int
	position int
}

// Stats summarizes the last Process call.
type Stats struct {
	Activations   int
	Candidates    int
	SearchNodes   int
	Leaves        int
	Explored      int
	Cached        int
	Limited       int
	MaxRound      int
	BestWeight    Weight
	MaxLeafWeight float64
	Elapsed       time.Duration
}

// Option configures a Document.
type Option func(*Document)

// WithPropagator sets the hook invoked when an upper bound first becomes
// positive.
func WithPropagator(p Propagator) Option {
	return func(d *Document) { d.propagator = p }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Document) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithVersionSource sets the model version used to validate caches.
func WithVersionSource(v VersionSource) Option {
	return func(d *Document) { d.versions = v }
}

// WithID overrides the generated document id.
func WithID(id string) Option {
	return func(d *Document) {
		if id != "" {
			d.id = id
		}
	}
}

// Document owns the activations of one input and drives their
// interpretation search.
//
// Description:
//
//	Activations are stored in an arena indexed by id. A Document can be
//	processed repeatedly: activations added between calls are propagated
//	incrementally and candidates keep their cached decisions.
//
// Thread Safety: NOT safe for concurrent use.
type Document struct {
	id         string
	cfg        Config
	logger     *slog.Logger
	propagator Propagator
	versions   VersionSource

	acts       []*Activation
	byKey      map[actKey]int
	candidates []*Candidate

	values valueQueue
	bounds idQueue
	dirty  map[int]struct{}

	root         *SearchNode
	best         *SearchNode
	nodeCounter  int
	visitCounter uint64

	finalValid  bool
	lastVersion uint64
	stats       Stats
}

// NewDocument creates an empty document.
//
// Inputs:
//   - cfg: Propagation and search configuration. MaxRound <= 0 selects
//     DefaultMaxRound.
//   - opts: Optional collaborators.
//
// Outputs:
//   - *Document: The new document. Never nil.
func NewDocument(cfg Config, opts ...Option) *Document {
	d := &Document{
		id:     uuid.NewString(),
		cfg:    cfg.normalized(),
		logger: slog.Default(),
		byKey:  make(map[actKey]int),
		dirty:  make(map[int]struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With(slog.String("component", "interpret_engine"), slog.String("document_id", d.id))
	return d
}

// ID returns the document id.
func (d *Document) ID() string { return d.id }

// Config returns the normalized configuration.
func (d *Document) Config() Config { return d.cfg }

// Activations returns all activations in id order.
func (d *Document) Activations() []*Activation { return d.acts }

// Activation returns the activation with the given id, or nil.
func (d *Document) Activation(id int) *Activation {
	if id < 0 || id >= len(d.acts) {
		return nil
	}
	return d.acts[id]
}

// ActivationAt returns the activation of a neuron at a position.
func (d *Document) ActivationAt(neuronID, position int) (*Activation, bool) {
	id, ok := d.byKey[actKey{neuronID: neuronID, position: position}]
	if !ok {
		return nil, false
	}
	return d.acts[id], true
}

// Candidates returns the candidates of the last Process call in search
// order.
func (d *Document) Candidates() []*Candidate { return d.candidates }

// Stats returns the statistics of the last Process call.
func (d *Document) Stats() Stats { return d.stats }

func (d *Document) modelVersion() uint64 {
	if d.versions == nil {
		return 0
	}
	return d.versions.Version()
}

// -----------------------------------------------------------------------------
// Graph Construction
// -----------------------------------------------------------------------------

// AddActivation returns the activation of n at position, creating it
// when it does not exist yet.
func (d *Document) AddActivation(n Neuron, position int) *Activation {
	key := actKey{neuronID: n.ID(), position: position}
	if id, ok := d.byKey[key]; ok {
		return d.acts[id]
	}
	act := &Activation{
		id:          len(d.acts),
		doc:         d,
		neuron:      n,
		position:    position,
		rounds:      NewRounds(),
		finalRounds: NewRounds(),
	}
	d.acts = append(d.acts, act)
	d.byKey[key] = act.id
	d.bounds.push(act.id)
	d.dirty[act.id] = struct{}{}
	d.finalValid = false
	return act
}

// AddInput injects an input activation with a fixed value. Inputs are
// SELECTED and never become candidates.
func (d *Document) AddInput(n Neuron, position int, value float64) *Activation {
	act := d.AddActivation(n, position)
	act.isInput = true
	act.inputValue = value
	act.decision = DecisionSelected
	act.preDecision = DecisionSelected
	d.bounds.push(act.id)
	d.dirty[act.id] = struct{}{}
	return act
}

// AddLink connects two activations of this document.
//
// Outputs:
//   - *Link: The new link, or the existing one for the same connection
//     and activations.
//   - error: ErrForeignActivation when either end belongs to another
//     document.
func (d *Document) AddLink(c Connection, in, out *Activation) (*Link, error) {
	if in == nil || out == nil || in.doc != d || out.doc != d {
		return nil, ErrForeignActivation
	}
	l := &Link{conn: c, input: in.id, output: out.id}
	inputs, added := insertLink(out.inputLinks, l, func(x *Link) int { return x.input })
	if !added {
		for _, existing := range out.inputLinks {
			if existing.conn.ID() == c.ID() && existing.input == in.id {
				return existing, nil
			}
		}
	}
	out.inputLinks = inputs
	in.outputLinks, _ = insertLink(in.outputLinks, l, func(x *Link) int { return x.output })

	in.linkVersion++
	out.linkVersion++
	d.bounds.push(out.id)
	d.dirty[out.id] = struct{}{}
	d.dirty[in.id] = struct{}{}
	d.finalValid = false
	return l, nil
}

// ForceDecision pre-decides an activation. DecisionUnknown removes a
// forced decision.
func (d *Document) ForceDecision(act *Activation, dec Decision) error {
	if act == nil || act.doc != d {
		return ErrForeignActivation
	}
	switch dec {
	case DecisionUnknown, DecisionSelected, DecisionExcluded:
	default:
		return fmt.Errorf("%w: %d", ErrInvalidDecision, int(dec))
	}
	if act.isInput && dec != DecisionSelected {
		return fmt.Errorf("%w: input activations are always selected", ErrInvalidDecision)
	}
	act.preDecision = dec
	if act.candidate != nil {
		act.candidate.clearCachedDecision()
	}
	d.finalValid = false
	return nil
}

// Clear drops every activation, candidate and search result.
func (d *Document) Clear() {
	d.acts = nil
	d.byKey = make(map[actKey]int)
	d.candidates = nil
	d.values.reset()
	d.bounds.drain()
	d.dirty = make(map[int]struct{})
	d.root = nil
	d.best = nil
	d.finalValid = false
	d.stats = Stats{}
}

// -----------------------------------------------------------------------------
// Process
// -----------------------------------------------------------------------------

// Process computes the best interpretation of the document.
//
// Description:
//
//	Runs bound propagation, conflict detection, candidate ordering and
//	the root value propagation, then searches the decision tree. On
//	success the final decisions and states are readable through
//	FinalDecision and FinalState. On failure every search change is
//	rolled back and no result is reported as final.
//
// Inputs:
//   - ctx: Cancellation is checked at every leaf.
//   - timeout: Wall-clock budget of the search. Zero disables it.
//
// Outputs:
//   - error: *OscillationError, *CyclicDependencyError, *TimeoutError,
//     *CacheConsistencyError or a propagator error.
func (d *Document) Process(ctx context.Context, timeout time.Duration) error {
	ctx, span := tracer.Start(ctx, "Document.Process")
	defer span.End()

	start := time.Now()
	d.finalValid = false
	d.stats = Stats{}

	err := d.process(ctx, start, timeout)

	d.stats.Activations = len(d.acts)
	d.stats.Candidates = len(d.candidates)
	d.stats.Elapsed = time.Since(start)
	span.SetAttributes(
		attribute.String("document.id", d.id),
		attribute.Int("document.activations", d.stats.Activations),
		attribute.Int("document.candidates", d.stats.Candidates),
		attribute.Int("search.nodes", d.stats.SearchNodes),
		attribute.Int("search.leaves", d.stats.Leaves),
	)
	recordProcess(ctx, d.stats, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		d.logger.Warn("document processing failed",
			slog.String("error", err.Error()),
			slog.Int("activations", d.stats.Activations),
			slog.Duration("elapsed", d.stats.Elapsed),
		)
		return err
	}

	d.finalValid = true
	d.dirty = make(map[int]struct{})
	for _, act := range d.acts {
		if r := act.finalRounds.LastRound(); r > d.stats.MaxRound {
			d.stats.MaxRound = r
		}
	}
	recordRounds(ctx, d.stats.MaxRound)
	d.logger.Debug("document processed",
		slog.Int("activations", d.stats.Activations),
		slog.Int("candidates", d.stats.Candidates),
		slog.Int("search_nodes", d.stats.SearchNodes),
		slog.String("best_weight", d.stats.BestWeight.String()),
		slog.Duration("elapsed", d.stats.Elapsed),
	)
	return nil
}

func (d *Document) process(ctx context.Context, start time.Time, timeout time.Duration) error {
	if v := d.modelVersion(); v != d.lastVersion {
		for id := range d.acts {
			d.dirty[id] = struct{}{}
			d.bounds.push(id)
		}
		d.lastVersion = v
	}

	if err := d.processBounds(); err != nil {
		return err
	}
	d.computeConflicts()
	if err := d.generateCandidates(); err != nil {
		return err
	}

	root := d.newNode(nil, DecisionUnknown)
	ids := make([]int, 0, len(d.dirty))
	for id := range d.dirty {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		d.enqueueActivation(d.acts[id])
	}
	if err := d.processValues(root); err != nil {
		d.rollback(root)
		return err
	}
	for _, act := range d.acts {
		root.accumulatedWeight = root.accumulatedWeight.Add(act.rounds.Last().Weight)
	}

	run := &searchRun{ctx: ctx, started: start, budget: timeout}
	if timeout > 0 {
		run.deadline = start.Add(timeout)
	}
	if err := d.search(run, root); err != nil {
		d.rollback(root)
		return err
	}

	d.root = root
	d.best = run.best
	if run.best != nil {
		d.stats.BestWeight = run.best.accumulatedWeight
	}
	return nil
}

// -----------------------------------------------------------------------------
// Results
// -----------------------------------------------------------------------------

// FinalDecision returns the decision of act in the best interpretation.
func (d *Document) FinalDecision(act *Activation) (Decision, error) {
	if act == nil || act.doc != d {
		return DecisionUnknown, ErrForeignActivation
	}
	if !d.finalValid {
		return DecisionUnknown, ErrNotProcessed
	}
	return act.finalDecision, nil
}

// FinalState returns the last-round state of act in the best
// interpretation.
func (d *Document) FinalState(act *Activation) (State, error) {
	if act == nil || act.doc != d {
		return ZeroState, ErrForeignActivation
	}
	if !d.finalValid {
		return ZeroState, ErrNotProcessed
	}
	return act.finalRounds.Last(), nil
}

// FinalRounds returns all rounds of act in the best interpretation.
func (d *Document) FinalRounds(act *Activation) (*Rounds, error) {
	if act == nil || act.doc != d {
		return nil, ErrForeignActivation
	}
	if !d.finalValid {
		return nil, ErrNotProcessed
	}
	return act.finalRounds, nil
}

// SelectedActivations returns the activations selected in the best
// interpretation, in id order.
func (d *Document) SelectedActivations() ([]*Activation, error) {
	if !d.finalValid {
		return nil, ErrNotProcessed
	}
	var out []*Activation
	for _, act := range d.acts {
		if act.finalDecision == DecisionSelected {
			out = append(out, act)
		}
	}
	return out, nil
}
