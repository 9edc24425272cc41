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

import "errors"

// Sentinel errors for model operations.
var (
	// ErrNeuronNotFound is returned when a neuron id is neither resident
	// nor persisted.
	ErrNeuronNotFound = errors.New("neuron not found")

	// ErrSynapseNotFound is returned for unknown synapse ids.
	ErrSynapseNotFound = errors.New("synapse not found")

	// ErrDuplicateID is returned when a neuron or synapse id is reused.
	ErrDuplicateID = errors.New("duplicate id")

	// ErrUnknownActivationFunction is returned for unsupported function names.
	ErrUnknownActivationFunction = errors.New("unknown activation function")

	// ErrInvalidSynapse is returned when a synapse references missing
	// neurons or has a non-finite weight.
	ErrInvalidSynapse = errors.New("invalid synapse")

	// ErrNoStore is returned by persistence operations on a model without
	// a store.
	ErrNoStore = errors.New("model has no store")
)
