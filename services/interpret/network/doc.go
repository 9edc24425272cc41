// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package network holds the neurons and synapses an interpretation runs
// against.
//
// The engine only sees neurons and synapses through its Neuron and
// Connection interfaces. This package implements them with per-neuron
// reader/writer locks: many documents read weights concurrently while
// CommitWeight and CommitBias take the exclusive lock and bump the model
// version that invalidates cached search results.
//
// A neuron owns its input synapses. Reading a synapse weight therefore
// takes the read lock of the synapse's output neuron.
package network
