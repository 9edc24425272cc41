// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package interpret

import (
	"github.com/wu0o0yu/aika-sub001/services/interpret/engine"
	"github.com/wu0o0yu/aika-sub001/services/interpret/loader"
)

// ServiceVersion is reported by the health endpoint.
const ServiceVersion = "0.3.0"

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is a stable machine-readable code.
	Code string `json:"code,omitempty"`

	// Details provides additional error context (optional).
	Details string `json:"details,omitempty"`
}

// ProcessRequest is the body of POST /v1/interpret/process.
type ProcessRequest struct {
	// Document describes inputs, optional explicit activations, links
	// and forced decisions.
	Document loader.DocumentDefinition `json:"document"`

	// Trace requests the search trace of the best interpretation.
	Trace bool `json:"trace,omitempty"`

	// TimeoutMs overrides the configured search budget. Zero keeps it.
	TimeoutMs int64 `json:"timeout_ms,omitempty" binding:"gte=0"`
}

// WeightResponse is a Weight on the wire.
type WeightResponse struct {
	W float64 `json:"w"`
	N float64 `json:"n"`
}

func toWeight(w engine.Weight) WeightResponse {
	return WeightResponse{W: w.W, N: w.N}
}

// ActivationResponse is the final state of one activation.
type ActivationResponse struct {
	ID       int            `json:"id"`
	NeuronID int            `json:"neuron_id"`
	Label    string         `json:"label"`
	Position int            `json:"position"`
	Input    bool           `json:"input,omitempty"`
	Decision string         `json:"decision"`
	Value    float64        `json:"value"`
	Net      float64        `json:"net"`
	Fired    int            `json:"fired"`
	Weight   WeightResponse `json:"weight"`
}

// StatsResponse summarizes the search.
type StatsResponse struct {
	Activations int            `json:"activations"`
	Candidates  int            `json:"candidates"`
	SearchNodes int            `json:"search_nodes"`
	Leaves      int            `json:"leaves"`
	Explored    int            `json:"explored"`
	Cached      int            `json:"cached"`
	Limited     int            `json:"limited"`
	MaxRound    int            `json:"max_round"`
	BestWeight  WeightResponse `json:"best_weight"`
	ElapsedMs   float64        `json:"elapsed_ms"`
}

func toStats(s engine.Stats) StatsResponse {
	return StatsResponse{
		Activations: s.Activations,
		Candidates:  s.Candidates,
		SearchNodes: s.SearchNodes,
		Leaves:      s.Leaves,
		Explored:    s.Explored,
		Cached:      s.Cached,
		Limited:     s.Limited,
		MaxRound:    s.MaxRound,
		BestWeight:  toWeight(s.BestWeight),
		ElapsedMs:   float64(s.Elapsed.Microseconds()) / 1000,
	}
}

// ProcessResponse is the best interpretation of one document.
type ProcessResponse struct {
	DocumentID   string               `json:"document_id"`
	ModelVersion uint64               `json:"model_version"`
	Activations  []ActivationResponse `json:"activations"`
	Selected     []int                `json:"selected"`
	Stats        StatsResponse        `json:"stats"`
	Trace        string               `json:"trace,omitempty"`
}

// BatchRequest is the body of POST /v1/interpret/batch.
type BatchRequest struct {
	Documents []loader.DocumentDefinition `json:"documents" binding:"required,min=1"`
	Trace     bool                        `json:"trace,omitempty"`
}

// BatchItem is the outcome of one document of a batch.
type BatchItem struct {
	JobID   string           `json:"job_id"`
	Outcome string           `json:"outcome"`
	Error   string           `json:"error,omitempty"`
	Result  *ProcessResponse `json:"result,omitempty"`
}

// BatchResponse is the body returned by the batch endpoint.
type BatchResponse struct {
	Items     []BatchItem    `json:"items"`
	Outcomes  map[string]int `json:"outcomes"`
	ElapsedMs float64        `json:"elapsed_ms"`
}

// ReloadResponse reports what a model reload changed.
type ReloadResponse struct {
	loader.ApplyResult
	ModelVersion uint64 `json:"model_version"`
}

// HealthResponse is the body of GET /v1/interpret/health.
type HealthResponse struct {
	Status       string `json:"status"`
	Version      string `json:"version"`
	ModelVersion uint64 `json:"model_version"`
	Neurons      int    `json:"neurons"`
}
