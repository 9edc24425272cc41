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
	"math"
	"sort"
	"sync"
	"sync/atomic"
)

// NeuronSpec describes a neuron to add to a model.
type NeuronSpec struct {
	ID       int                `json:"id" yaml:"id" validate:"gte=0"`
	Label    string             `json:"label" yaml:"label" validate:"required"`
	Type     NeuronType         `json:"type,omitempty" yaml:"type,omitempty" validate:"omitempty,oneof=excitatory inhibitory input"`
	Bias     float64            `json:"bias" yaml:"bias"`
	Function ActivationFunction `json:"function,omitempty" yaml:"function,omitempty"`
}

// SynapseSpec describes a synapse to add to a model.
type SynapseSpec struct {
	ID            int     `json:"id" yaml:"id" validate:"gte=0"`
	Input         int     `json:"input" yaml:"input" validate:"gte=0"`
	Output        int     `json:"output" yaml:"output" validate:"gte=0"`
	Weight        float64 `json:"weight" yaml:"weight"`
	BiasTerm      float64 `json:"bias_term,omitempty" yaml:"bias_term,omitempty"`
	Recurrent     bool    `json:"recurrent,omitempty" yaml:"recurrent,omitempty"`
	DistanceDecay float64 `json:"distance_decay,omitempty" yaml:"distance_decay,omitempty" validate:"gte=0"`
}

// Model is the set of neurons and synapses shared by all documents.
//
// Description:
//
//	Neurons may be suspended to the store and are reactivated on demand
//	by Neuron. Weight and bias commits bump the model version.
//
// Thread Safety: Safe for concurrent use.
type Model struct {
	mu       sync.RWMutex
	neurons  map[int]*Neuron
	synapses map[int]*Synapse
	outputs  map[int][]int

	version atomic.Uint64
	store   Store
	logger  *slog.Logger
}

// ModelOption configures a Model.
type ModelOption func(*Model)

// WithStore attaches persistence.
func WithStore(s Store) ModelOption {
	return func(m *Model) { m.store = s }
}

// WithModelLogger sets the logger.
func WithModelLogger(l *slog.Logger) ModelOption {
	return func(m *Model) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewModel creates an empty model.
func NewModel(opts ...ModelOption) *Model {
	m := &Model{
		neurons:  make(map[int]*Neuron),
		synapses: make(map[int]*Synapse),
		outputs:  make(map[int][]int),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(slog.String("component", "interpret_model"))
	return m
}

// Version returns a counter that changes with every commit.
func (m *Model) Version() uint64 {
	return m.version.Load()
}

// AddNeuron adds a neuron.
//
// Outputs:
//   - *Neuron: The new neuron.
//   - error: ErrDuplicateID or ErrUnknownActivationFunction.
func (m *Model) AddNeuron(spec NeuronSpec) (*Neuron, error) {
	if err := spec.Function.Validate(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.neurons[spec.ID]; ok {
		return nil, fmt.Errorf("%w: neuron %d", ErrDuplicateID, spec.ID)
	}
	n := NewNeuron(spec.ID, spec.Label, spec.Type, spec.Bias, spec.Function)
	for _, out := range m.outputs[spec.ID] {
		n.addOutputID(out)
	}
	m.neurons[n.id] = n
	return n, nil
}

// AddSynapse connects two resident neurons.
//
// Outputs:
//   - *Synapse: The new synapse.
//   - error: ErrDuplicateID or ErrInvalidSynapse.
func (m *Model) AddSynapse(spec SynapseSpec) (*Synapse, error) {
	if math.IsNaN(spec.Weight) || math.IsInf(spec.Weight, 0) {
		return nil, fmt.Errorf("%w: synapse %d has weight %v", ErrInvalidSynapse, spec.ID, spec.Weight)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.synapses[spec.ID]; ok {
		return nil, fmt.Errorf("%w: synapse %d", ErrDuplicateID, spec.ID)
	}
	out, ok := m.neurons[spec.Output]
	if !ok {
		return nil, fmt.Errorf("%w: synapse %d output neuron %d", ErrInvalidSynapse, spec.ID, spec.Output)
	}
	in, ok := m.neurons[spec.Input]
	if !ok {
		return nil, fmt.Errorf("%w: synapse %d input neuron %d", ErrInvalidSynapse, spec.ID, spec.Input)
	}
	return m.attachLocked(spec, out, in), nil
}

// attachLocked wires a synapse into its owner. in may be nil when the
// input neuron is suspended. Caller holds m.mu.
func (m *Model) attachLocked(spec SynapseSpec, out, in *Neuron) *Synapse {
	s := &Synapse{
		id:        spec.ID,
		input:     spec.Input,
		output:    spec.Output,
		owner:     out,
		recurrent: spec.Recurrent,
		decay:     spec.DistanceDecay,
		weight:    spec.Weight,
		biasTerm:  spec.BiasTerm,
	}
	out.addInput(s)
	m.synapses[s.id] = s
	if !containsInt(m.outputs[spec.Input], spec.Output) {
		m.outputs[spec.Input] = insertInt(m.outputs[spec.Input], spec.Output)
	}
	if in != nil {
		in.addOutputID(spec.Output)
	}
	return s
}

// Neuron returns a resident neuron or reactivates it from the store.
//
// Outputs:
//   - *Neuron: The neuron.
//   - error: ErrNeuronNotFound when it is neither resident nor stored.
func (m *Model) Neuron(ctx context.Context, id int) (*Neuron, error) {
	m.mu.RLock()
	n, ok := m.neurons[id]
	m.mu.RUnlock()
	if ok {
		return n, nil
	}
	if m.store == nil {
		return nil, fmt.Errorf("%w: %d", ErrNeuronNotFound, id)
	}
	rec, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return m.restore(rec), nil
}

// restore makes a stored neuron resident again.
func (m *Model) restore(rec NeuronRecord) *Neuron {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.neurons[rec.ID]; ok {
		return n
	}
	n := NewNeuron(rec.ID, rec.Label, rec.Type, rec.Bias, rec.Function)
	for _, out := range rec.Outputs {
		n.addOutputID(out)
		if !containsInt(m.outputs[rec.ID], out) {
			m.outputs[rec.ID] = insertInt(m.outputs[rec.ID], out)
		}
	}
	for _, out := range m.outputs[rec.ID] {
		n.addOutputID(out)
	}
	m.neurons[n.id] = n
	for _, spec := range rec.Inputs {
		m.attachLocked(spec, n, m.neurons[spec.Input])
	}
	m.logger.Debug("neuron reactivated", slog.Int("neuron_id", n.id), slog.Int("inputs", len(rec.Inputs)))
	return n
}

// Synapse returns a resident synapse.
func (m *Model) Synapse(id int) (*Synapse, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.synapses[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrSynapseNotFound, id)
	}
	return s, nil
}

// Neurons returns the resident neurons ordered by id.
func (m *Model) Neurons() []*Neuron {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Neuron, 0, len(m.neurons))
	for _, n := range m.neurons {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// -----------------------------------------------------------------------------
// Writers
// -----------------------------------------------------------------------------

// CommitWeight sets a synapse weight under the owner's write lock.
func (m *Model) CommitWeight(synapseID int, weight float64) error {
	if math.IsNaN(weight) || math.IsInf(weight, 0) {
		return fmt.Errorf("%w: weight %v", ErrInvalidSynapse, weight)
	}
	s, err := m.Synapse(synapseID)
	if err != nil {
		return err
	}
	s.owner.mu.Lock()
	changed := s.weight != weight
	s.weight = weight
	s.owner.mu.Unlock()
	if changed {
		m.version.Add(1)
	}
	return nil
}

// CommitBias sets a neuron's own bias under its write lock.
func (m *Model) CommitBias(ctx context.Context, neuronID int, bias float64) error {
	n, err := m.Neuron(ctx, neuronID)
	if err != nil {
		return err
	}
	n.mu.Lock()
	changed := n.bias != bias
	n.bias = bias
	n.mu.Unlock()
	if changed {
		m.version.Add(1)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Persistence
// -----------------------------------------------------------------------------

// record captures a neuron and its input synapses.
func (m *Model) record(n *Neuron) NeuronRecord {
	n.mu.RLock()
	defer n.mu.RUnlock()
	rec := NeuronRecord{
		NeuronSpec: NeuronSpec{ID: n.id, Label: n.label, Type: n.typ, Bias: n.bias, Function: n.fn},
		Outputs:    append([]int(nil), n.outputIDs...),
	}
	for _, s := range n.inputs {
		rec.Inputs = append(rec.Inputs, SynapseSpec{
			ID:            s.id,
			Input:         s.input,
			Output:        s.output,
			Weight:        s.weight,
			BiasTerm:      s.biasTerm,
			Recurrent:     s.recurrent,
			DistanceDecay: s.decay,
		})
	}
	return rec
}

// Save persists every resident neuron.
func (m *Model) Save(ctx context.Context) error {
	if m.store == nil {
		return ErrNoStore
	}
	for _, n := range m.Neurons() {
		if err := m.store.Put(ctx, m.record(n)); err != nil {
			return fmt.Errorf("save neuron %d: %w", n.id, err)
		}
	}
	return nil
}

// Suspend persists a neuron and removes it and its input synapses from
// memory. Documents holding the neuron keep working with their copy.
func (m *Model) Suspend(ctx context.Context, id int) error {
	if m.store == nil {
		return ErrNoStore
	}
	m.mu.RLock()
	n, ok := m.neurons[id]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %d", ErrNeuronNotFound, id)
	}
	if err := m.store.Put(ctx, m.record(n)); err != nil {
		return fmt.Errorf("suspend neuron %d: %w", id, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range n.InputSynapses() {
		delete(m.synapses, s.id)
	}
	delete(m.neurons, id)
	m.logger.Debug("neuron suspended", slog.Int("neuron_id", id))
	return nil
}

// LoadModel reactivates every neuron of a store into a new model.
func LoadModel(ctx context.Context, store Store, opts ...ModelOption) (*Model, error) {
	m := NewModel(append([]ModelOption{WithStore(store)}, opts...)...)
	ids, err := store.IDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stored neurons: %w", err)
	}
	for _, id := range ids {
		if _, err := m.Neuron(ctx, id); err != nil {
			return nil, fmt.Errorf("load neuron %d: %w", id, err)
		}
	}
	m.logger.Info("model loaded", slog.Int("neurons", len(ids)))
	return m, nil
}

func containsInt(s []int, v int) bool {
	i := sort.SearchInts(s, v)
	return i < len(s) && s[i] == v
}

func insertInt(s []int, v int) []int {
	i := sort.SearchInts(s, v)
	s = append(s, 0)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}
