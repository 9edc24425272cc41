// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package loader

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/wu0o0yu/aika-sub001/services/interpret/engine"
	"github.com/wu0o0yu/aika-sub001/services/interpret/network"
)

// DocumentDefinition is the file and wire form of a document.
type DocumentDefinition struct {
	ID          string           `json:"id,omitempty" yaml:"id,omitempty"`
	Inputs      []InputSpec      `json:"inputs" yaml:"inputs" validate:"required,min=1,dive"`
	Activations []ActivationSpec `json:"activations,omitempty" yaml:"activations,omitempty" validate:"dive"`
	Links       []LinkSpec       `json:"links,omitempty" yaml:"links,omitempty" validate:"dive"`
	Forced      []ForcedSpec     `json:"forced,omitempty" yaml:"forced,omitempty" validate:"dive"`
}

// InputSpec injects a value for an input neuron at a position.
type InputSpec struct {
	Neuron   int     `json:"neuron" yaml:"neuron" validate:"gte=0"`
	Position int     `json:"position" yaml:"position"`
	Value    float64 `json:"value" yaml:"value"`
}

// ActivationSpec creates an activation explicitly instead of waiting for
// propagation.
type ActivationSpec struct {
	Neuron   int `json:"neuron" yaml:"neuron" validate:"gte=0"`
	Position int `json:"position" yaml:"position"`
}

// LinkSpec connects two activations through a synapse. The neurons are
// the synapse's endpoints.
type LinkSpec struct {
	Synapse        int `json:"synapse" yaml:"synapse" validate:"gte=0"`
	InputPosition  int `json:"input_position" yaml:"input_position"`
	OutputPosition int `json:"output_position" yaml:"output_position"`
}

// ForcedSpec pre-decides an activation.
type ForcedSpec struct {
	Neuron   int    `json:"neuron" yaml:"neuron" validate:"gte=0"`
	Position int    `json:"position" yaml:"position"`
	Decision string `json:"decision" yaml:"decision" validate:"required,oneof=selected excluded unknown SELECTED EXCLUDED UNKNOWN"`
}

// ParseDocument decodes and validates a document definition.
func ParseDocument(data []byte) (DocumentDefinition, error) {
	var def DocumentDefinition
	if err := decode(data, &def); err != nil {
		return def, err
	}
	if err := def.Validate(); err != nil {
		return def, err
	}
	return def, nil
}

// LoadDocumentFile reads and parses a document definition file.
func LoadDocumentFile(path string) (DocumentDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DocumentDefinition{}, fmt.Errorf("read document %s: %w", path, err)
	}
	def, err := ParseDocument(data)
	if err != nil {
		return def, fmt.Errorf("document %s: %w", path, err)
	}
	return def, nil
}

// Validate checks struct tags.
func (d DocumentDefinition) Validate() error {
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}
	return nil
}

// ParseDecision maps a decision name to an engine decision.
func ParseDecision(s string) (engine.Decision, error) {
	switch strings.ToLower(s) {
	case "selected":
		return engine.DecisionSelected, nil
	case "excluded":
		return engine.DecisionExcluded, nil
	case "unknown", "":
		return engine.DecisionUnknown, nil
	default:
		return engine.DecisionUnknown, fmt.Errorf("%w: decision %q", ErrInvalidDefinition, s)
	}
}

// Build creates a document for the definition.
//
// Description:
//
//	Inputs are injected first, then explicit activations are created,
//	then explicit links are added and forced decisions applied. Further
//	activations appear through the propagator while the document is
//	processed.
//
// Inputs:
//   - ctx: Used for neuron reactivation from the store.
//   - p: Propagator over the model.
//   - cfg: Engine configuration.
//   - opts: Extra document options.
//
// Outputs:
//   - *engine.Document: The document, not yet processed.
//   - error: Validation failure, unknown neurons, synapses or activations.
func (d DocumentDefinition) Build(ctx context.Context, p *network.Propagator, cfg engine.Config, opts ...engine.Option) (*engine.Document, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if d.ID != "" {
		opts = append([]engine.Option{engine.WithID(d.ID)}, opts...)
	}
	doc := p.NewDocument(cfg, opts...)

	for _, in := range d.Inputs {
		if _, err := p.AddInput(ctx, doc, in.Neuron, in.Position, in.Value); err != nil {
			return nil, fmt.Errorf("input %d@%d: %w", in.Neuron, in.Position, err)
		}
	}
	for _, a := range d.Activations {
		if _, err := p.AddActivation(ctx, doc, a.Neuron, a.Position); err != nil {
			return nil, fmt.Errorf("activation %d@%d: %w", a.Neuron, a.Position, err)
		}
	}
	for _, l := range d.Links {
		s, err := p.Model().Synapse(l.Synapse)
		if err != nil {
			return nil, fmt.Errorf("link: %w", err)
		}
		in, ok := doc.ActivationAt(s.InputID(), l.InputPosition)
		if !ok {
			return nil, fmt.Errorf("%w: %d@%d", ErrUnknownActivation, s.InputID(), l.InputPosition)
		}
		out, ok := doc.ActivationAt(s.OutputID(), l.OutputPosition)
		if !ok {
			return nil, fmt.Errorf("%w: %d@%d", ErrUnknownActivation, s.OutputID(), l.OutputPosition)
		}
		if _, err := doc.AddLink(s, in, out); err != nil {
			return nil, err
		}
	}
	for _, f := range d.Forced {
		dec, err := ParseDecision(f.Decision)
		if err != nil {
			return nil, err
		}
		act, ok := doc.ActivationAt(f.Neuron, f.Position)
		if !ok {
			return nil, fmt.Errorf("%w: %d@%d", ErrUnknownActivation, f.Neuron, f.Position)
		}
		if err := doc.ForceDecision(act, dec); err != nil {
			return nil, err
		}
	}
	return doc, nil
}
