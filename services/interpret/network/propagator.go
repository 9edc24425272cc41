// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package network

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wu0o0yu/aika-sub001/services/interpret/engine"
)

// Propagator grows a document along the model's synapses.
//
// Description:
//
//	When an activation's upper bound first becomes positive, every output
//	synapse of its neuron is followed. Positive non-recurrent synapses
//	create the target activation at the same position when it does not
//	exist yet; all other synapses only link to existing activations. A
//	newly created activation is linked from every existing activation of
//	its input neurons. Synapses with distance decay link across positions.
//
// Thread Safety: Safe for concurrent use by different documents.
type Propagator struct {
	model  *Model
	logger *slog.Logger
}

// NewPropagator returns a Propagator for model.
func NewPropagator(model *Model, logger *slog.Logger) *Propagator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Propagator{model: model, logger: logger.With(slog.String("component", "interpret_propagator"))}
}

var _ engine.Propagator = (*Propagator)(nil)

// Propagate implements engine.Propagator.
func (p *Propagator) Propagate(doc *engine.Document, act *engine.Activation) error {
	n, ok := act.Neuron().(*Neuron)
	if !ok {
		return nil
	}
	for _, outID := range n.OutputIDs() {
		target, err := p.model.Neuron(context.Background(), outID)
		if err != nil {
			return fmt.Errorf("propagate %s: %w", act.Label(), err)
		}
		for _, s := range target.InputSynapses() {
			if s.input != n.id {
				continue
			}
			if err := p.follow(doc, act, target, s); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Propagator) follow(doc *engine.Document, act *engine.Activation, target *Neuron, s *Synapse) error {
	if s.decay > 0 {
		for _, other := range doc.Activations() {
			if other.Neuron().ID() == target.id {
				if _, err := doc.AddLink(s, act, other); err != nil {
					return err
				}
			}
		}
	}

	next, exists := doc.ActivationAt(target.id, act.Position())
	if exists {
		_, err := doc.AddLink(s, act, next)
		return err
	}
	if s.recurrent || s.IsNegative() || target.typ == Input {
		return nil
	}

	next = doc.AddActivation(target, act.Position())
	p.logger.Debug("activation created",
		slog.String("document_id", doc.ID()),
		slog.String("activation", next.Label()),
		slog.String("source", act.Label()),
	)
	return p.linkInputs(doc, target, next)
}

// linkInputs connects a new activation to the existing activations of
// its input neurons.
func (p *Propagator) linkInputs(doc *engine.Document, target *Neuron, next *engine.Activation) error {
	for _, s := range target.InputSynapses() {
		if s.input == target.id && !s.recurrent {
			continue
		}
		if s.decay > 0 {
			for _, in := range doc.Activations() {
				if in.Neuron().ID() == s.input {
					if _, err := doc.AddLink(s, in, next); err != nil {
						return err
					}
				}
			}
			continue
		}
		if in, ok := doc.ActivationAt(s.input, next.Position()); ok {
			if _, err := doc.AddLink(s, in, next); err != nil {
				return err
			}
		}
	}
	return nil
}

// AddInput injects an input value for a neuron into a document.
func (p *Propagator) AddInput(ctx context.Context, doc *engine.Document, neuronID, position int, value float64) (*engine.Activation, error) {
	n, err := p.model.Neuron(ctx, neuronID)
	if err != nil {
		return nil, err
	}
	act := doc.AddInput(n, position, value)
	if err := p.linkInputs(doc, n, act); err != nil {
		return nil, err
	}
	return act, nil
}

// AddActivation creates an activation of a neuron at a position and
// links it from the existing activations of its input neurons.
func (p *Propagator) AddActivation(ctx context.Context, doc *engine.Document, neuronID, position int) (*engine.Activation, error) {
	n, err := p.model.Neuron(ctx, neuronID)
	if err != nil {
		return nil, err
	}
	act := doc.AddActivation(n, position)
	if err := p.linkInputs(doc, n, act); err != nil {
		return nil, err
	}
	return act, nil
}

// Model returns the model the propagator reads.
func (p *Propagator) Model() *Model { return p.model }

// NewDocument creates a document wired to this propagator and to the
// model version.
func (p *Propagator) NewDocument(cfg engine.Config, opts ...engine.Option) *engine.Document {
	base := []engine.Option{engine.WithPropagator(p), engine.WithVersionSource(p.model)}
	return engine.NewDocument(cfg, append(base, opts...)...)
}
