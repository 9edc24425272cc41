// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package interpret is the HTTP service that processes documents against
// a shared interpretation model.
package interpret

import (
	"context"
	"log/slog"
	"time"

	"github.com/wu0o0yu/aika-sub001/services/interpret/batch"
	"github.com/wu0o0yu/aika-sub001/services/interpret/config"
	"github.com/wu0o0yu/aika-sub001/services/interpret/engine"
	"github.com/wu0o0yu/aika-sub001/services/interpret/loader"
	"github.com/wu0o0yu/aika-sub001/services/interpret/network"
)

// Service processes documents against one model.
//
// Description:
//
//	Every request builds fresh documents. The model is shared; weight
//	and bias changes from a reload take effect for documents processed
//	afterwards.
//
// Thread Safety: Safe for concurrent use.
type Service struct {
	cfg        config.Config
	model      *network.Model
	propagator *network.Propagator
	processor  *batch.Processor
	logger     *slog.Logger
}

// NewService creates a service over model.
func NewService(cfg config.Config, model *network.Model, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	p := network.NewPropagator(model, logger)
	return &Service{
		cfg:        cfg,
		model:      model,
		propagator: p,
		processor: batch.NewProcessor(p, batch.Options{
			Workers: cfg.Batch.Workers,
			MaxJobs: cfg.Batch.MaxJobs,
			Timeout: cfg.Engine.SearchTimeout,
			Engine:  cfg.Engine.ToEngineConfig(),
			Logger:  logger,
		}),
		logger: logger.With(slog.String("component", "interpret_service")),
	}
}

// Model returns the shared model.
func (s *Service) Model() *network.Model { return s.model }

// Process builds and processes one document.
//
// Outputs:
//   - ProcessResponse: Final decisions and states of the best interpretation.
//   - error: Definition, propagation or search errors.
func (s *Service) Process(ctx context.Context, req ProcessRequest) (ProcessResponse, error) {
	doc, err := req.Document.Build(ctx, s.propagator, s.cfg.Engine.ToEngineConfig(), engine.WithLogger(s.logger))
	if err != nil {
		return ProcessResponse{}, err
	}
	timeout := s.cfg.Engine.SearchTimeout
	if req.TimeoutMs > 0 {
		timeout = time.Duration(req.TimeoutMs) * time.Millisecond
	}
	if err := doc.Process(ctx, timeout); err != nil {
		return ProcessResponse{}, err
	}
	return s.render(doc, req.Trace)
}

// Batch processes many documents concurrently.
func (s *Service) Batch(ctx context.Context, req BatchRequest) (BatchResponse, error) {
	start := time.Now()
	jobs := make([]batch.Job, len(req.Documents))
	for i, def := range req.Documents {
		jobs[i] = batch.Job{ID: def.ID, Definition: def}
	}
	results, err := s.processor.Run(ctx, jobs)
	if err != nil && results == nil {
		return BatchResponse{}, err
	}

	resp := BatchResponse{
		Items:    make([]BatchItem, len(results)),
		Outcomes: make(map[string]int),
	}
	for i, r := range results {
		item := BatchItem{JobID: r.JobID, Outcome: r.Outcome}
		if r.Err != nil {
			item.Error = r.Err.Error()
		} else if r.Document != nil {
			pr, renderErr := s.render(r.Document, req.Trace)
			if renderErr != nil {
				item.Outcome = batch.Classify(renderErr)
				item.Error = renderErr.Error()
			} else {
				item.Result = &pr
			}
		}
		resp.Outcomes[item.Outcome]++
		resp.Items[i] = item
	}
	resp.ElapsedMs = float64(time.Since(start).Microseconds()) / 1000
	return resp, err
}

// Reload re-applies the configured network file to the model.
func (s *Service) Reload(ctx context.Context) (ReloadResponse, error) {
	if s.cfg.Server.NetworkPath == "" {
		return ReloadResponse{}, ErrReloadUnavailable
	}
	def, err := loader.LoadNetworkFile(s.cfg.Server.NetworkPath)
	if err != nil {
		return ReloadResponse{}, err
	}
	res, err := def.Apply(ctx, s.model)
	if err != nil {
		return ReloadResponse{}, err
	}
	s.logger.Info("model reloaded",
		slog.Int("weights", res.Weights),
		slog.Int("biases", res.Biases),
		slog.Uint64("model_version", s.model.Version()),
	)
	return ReloadResponse{ApplyResult: res, ModelVersion: s.model.Version()}, nil
}

// Health reports the service status.
func (s *Service) Health() HealthResponse {
	return HealthResponse{
		Status:       "healthy",
		Version:      ServiceVersion,
		ModelVersion: s.model.Version(),
		Neurons:      len(s.model.Neurons()),
	}
}

func (s *Service) render(doc *engine.Document, trace bool) (ProcessResponse, error) {
	resp := ProcessResponse{
		DocumentID:   doc.ID(),
		ModelVersion: s.model.Version(),
		Activations:  make([]ActivationResponse, 0, len(doc.Activations())),
		Selected:     []int{},
		Stats:        toStats(doc.Stats()),
	}
	for _, act := range doc.Activations() {
		dec, err := doc.FinalDecision(act)
		if err != nil {
			return ProcessResponse{}, err
		}
		st, err := doc.FinalState(act)
		if err != nil {
			return ProcessResponse{}, err
		}
		resp.Activations = append(resp.Activations, ActivationResponse{
			ID:       act.ID(),
			NeuronID: act.Neuron().ID(),
			Label:    act.Neuron().Label(),
			Position: act.Position(),
			Input:    act.IsInput(),
			Decision: dec.String(),
			Value:    st.Value,
			Net:      st.Net,
			Fired:    st.Fired,
			Weight:   toWeight(st.Weight),
		})
		if dec == engine.DecisionSelected {
			resp.Selected = append(resp.Selected, act.ID())
		}
	}
	if trace {
		resp.Trace = doc.SearchTrace()
	}
	return resp, nil
}
