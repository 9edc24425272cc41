// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package loader reads network and document definitions and turns them
// into models and documents. It also watches a network file and commits
// changed weights and biases to a running model.
package loader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/wu0o0yu/aika-sub001/services/interpret/network"
)

var (
	// ErrInvalidDefinition is returned for definitions that fail to parse
	// or validate.
	ErrInvalidDefinition = errors.New("invalid definition")

	// ErrUnknownActivation is returned when a link or forced decision
	// refers to an activation the document does not contain.
	ErrUnknownActivation = errors.New("unknown activation")
)

var validate = validator.New()

// NetworkDefinition is the file form of a model.
type NetworkDefinition struct {
	Neurons  []network.NeuronSpec  `json:"neurons" yaml:"neurons" validate:"required,min=1,dive"`
	Synapses []network.SynapseSpec `json:"synapses" yaml:"synapses" validate:"dive"`
}

// ApplyResult counts what Apply changed.
type ApplyResult struct {
	Weights  int `json:"weights"`
	Biases   int `json:"biases"`
	Neurons  int `json:"neurons"`
	Synapses int `json:"synapses"`
}

// Changed reports whether anything was committed or added.
func (r ApplyResult) Changed() bool {
	return r.Weights+r.Biases+r.Neurons+r.Synapses > 0
}

// decode parses YAML first, then JSON.
func decode(data []byte, out any) error {
	if err := yaml.Unmarshal(data, out); err != nil {
		if jsonErr := json.Unmarshal(data, out); jsonErr != nil {
			return fmt.Errorf("%w: tried YAML and JSON: YAML error: %v, JSON error: %v", ErrInvalidDefinition, err, jsonErr)
		}
	}
	return nil
}

// ParseNetwork decodes and validates a network definition.
//
// Outputs:
//   - NetworkDefinition: The definition.
//   - error: Wraps ErrInvalidDefinition on parse or validation failure.
func ParseNetwork(data []byte) (NetworkDefinition, error) {
	var def NetworkDefinition
	if err := decode(data, &def); err != nil {
		return def, err
	}
	if err := def.Validate(); err != nil {
		return def, err
	}
	return def, nil
}

// LoadNetworkFile reads and parses a network definition file.
func LoadNetworkFile(path string) (NetworkDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return NetworkDefinition{}, fmt.Errorf("read network %s: %w", path, err)
	}
	def, err := ParseNetwork(data)
	if err != nil {
		return def, fmt.Errorf("network %s: %w", path, err)
	}
	return def, nil
}

// Validate checks struct tags and that synapses refer to defined neurons.
func (d NetworkDefinition) Validate() error {
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}
	ids := make(map[int]struct{}, len(d.Neurons))
	for _, n := range d.Neurons {
		if _, dup := ids[n.ID]; dup {
			return fmt.Errorf("%w: duplicate neuron %d", ErrInvalidDefinition, n.ID)
		}
		if err := n.Function.Validate(); err != nil {
			return fmt.Errorf("%w: neuron %d: %v", ErrInvalidDefinition, n.ID, err)
		}
		ids[n.ID] = struct{}{}
	}
	syn := make(map[int]struct{}, len(d.Synapses))
	for _, s := range d.Synapses {
		if _, dup := syn[s.ID]; dup {
			return fmt.Errorf("%w: duplicate synapse %d", ErrInvalidDefinition, s.ID)
		}
		syn[s.ID] = struct{}{}
		if _, ok := ids[s.Input]; !ok {
			return fmt.Errorf("%w: synapse %d input neuron %d is not defined", ErrInvalidDefinition, s.ID, s.Input)
		}
		if _, ok := ids[s.Output]; !ok {
			return fmt.Errorf("%w: synapse %d output neuron %d is not defined", ErrInvalidDefinition, s.ID, s.Output)
		}
	}
	return nil
}

// Build creates a new model from the definition.
func (d NetworkDefinition) Build(opts ...network.ModelOption) (*network.Model, error) {
	m := network.NewModel(opts...)
	for _, spec := range d.Neurons {
		if _, err := m.AddNeuron(spec); err != nil {
			return nil, err
		}
	}
	for _, spec := range d.Synapses {
		if _, err := m.AddSynapse(spec); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Apply brings a running model in line with the definition.
//
// Description:
//
//	Existing synapse weights and neuron biases are committed through the
//	model's writer API. Neurons and synapses the model does not know yet
//	are added. Nothing is removed, and structural properties of existing
//	entries (type, recurrence, endpoints) are left untouched.
//
// Outputs:
//   - ApplyResult: What changed.
//   - error: The first commit or add failure.
func (d NetworkDefinition) Apply(ctx context.Context, m *network.Model) (ApplyResult, error) {
	var res ApplyResult
	for _, spec := range d.Neurons {
		n, err := m.Neuron(ctx, spec.ID)
		if errors.Is(err, network.ErrNeuronNotFound) {
			if _, err := m.AddNeuron(spec); err != nil {
				return res, err
			}
			res.Neurons++
			continue
		}
		if err != nil {
			return res, err
		}
		if n.OwnBias() != spec.Bias {
			if err := m.CommitBias(ctx, spec.ID, spec.Bias); err != nil {
				return res, err
			}
			res.Biases++
		}
	}
	for _, spec := range d.Synapses {
		s, err := m.Synapse(spec.ID)
		if errors.Is(err, network.ErrSynapseNotFound) {
			if _, err := m.AddSynapse(spec); err != nil {
				return res, err
			}
			res.Synapses++
			continue
		}
		if err != nil {
			return res, err
		}
		if s.Weight() != spec.Weight {
			if err := m.CommitWeight(spec.ID, spec.Weight); err != nil {
				return res, err
			}
			res.Weights++
		}
	}
	return res, nil
}
