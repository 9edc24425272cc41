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
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/wu0o0yu/aika-sub001/services/interpret/storage/badger"
)

// NeuronRecord is the persisted form of a neuron with its input synapses.
type NeuronRecord struct {
	NeuronSpec
	Inputs  []SynapseSpec `json:"inputs,omitempty"`
	Outputs []int         `json:"outputs,omitempty"`
}

// Store persists and retrieves neurons by id.
type Store interface {
	// Put stores or replaces a neuron record.
	Put(ctx context.Context, rec NeuronRecord) error

	// Get returns a stored record, or ErrNeuronNotFound.
	Get(ctx context.Context, id int) (NeuronRecord, error)

	// Delete removes a record. Missing ids are not an error.
	Delete(ctx context.Context, id int) error

	// IDs returns all stored ids in ascending order.
	IDs(ctx context.Context) ([]int, error)
}

// -----------------------------------------------------------------------------
// MemoryStore
// -----------------------------------------------------------------------------

// MemoryStore keeps records in a map.
//
// Thread Safety: Safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[int]NeuronRecord
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[int]NeuronRecord)}
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, rec NeuronRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = rec
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id int) (NeuronRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return NeuronRecord{}, fmt.Errorf("%w: %d", ErrNeuronNotFound, id)
	}
	return rec, nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

// IDs implements Store.
func (s *MemoryStore) IDs(_ context.Context) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}

// -----------------------------------------------------------------------------
// BadgerStore
// -----------------------------------------------------------------------------

const neuronPrefix = "n/"

// BadgerStore persists JSON records in BadgerDB under "n/<id>".
//
// Thread Safety: Safe for concurrent use.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore wraps an open database. The caller keeps ownership of db.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

func neuronKey(id int) []byte {
	return []byte(neuronPrefix + strconv.Itoa(id))
}

// Put implements Store.
func (s *BadgerStore) Put(ctx context.Context, rec NeuronRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode neuron %d: %w", rec.ID, err)
	}
	return s.db.Put(ctx, neuronKey(rec.ID), data)
}

// Get implements Store.
func (s *BadgerStore) Get(ctx context.Context, id int) (NeuronRecord, error) {
	data, err := s.db.Get(ctx, neuronKey(id))
	if errors.Is(err, badger.ErrNotFound) {
		return NeuronRecord{}, fmt.Errorf("%w: %d", ErrNeuronNotFound, id)
	}
	if err != nil {
		return NeuronRecord{}, fmt.Errorf("read neuron %d: %w", id, err)
	}
	var rec NeuronRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return NeuronRecord{}, fmt.Errorf("decode neuron %d: %w", id, err)
	}
	return rec, nil
}

// Delete implements Store.
func (s *BadgerStore) Delete(ctx context.Context, id int) error {
	return s.db.Delete(ctx, neuronKey(id))
}

// IDs implements Store.
func (s *BadgerStore) IDs(ctx context.Context) ([]int, error) {
	keys, err := s.db.Keys(ctx, []byte(neuronPrefix))
	if err != nil {
		return nil, err
	}
	ids := make([]int, 0, len(keys))
	for _, k := range keys {
		id, err := strconv.Atoi(strings.TrimPrefix(string(k), neuronPrefix))
		if err != nil {
			return nil, fmt.Errorf("malformed neuron key %q: %w", k, err)
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}
