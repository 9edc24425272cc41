// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package batch processes many documents concurrently against one
// shared model.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/wu0o0yu/aika-sub001/services/interpret/engine"
	"github.com/wu0o0yu/aika-sub001/services/interpret/loader"
	"github.com/wu0o0yu/aika-sub001/services/interpret/network"
)

// ErrTooManyJobs is returned when a batch exceeds Options.MaxJobs.
var ErrTooManyJobs = errors.New("too many jobs")

// Outcome classes reported per document.
const (
	OutcomeOK               = "ok"
	OutcomeOscillation      = "oscillation"
	OutcomeCyclicDependency = "cyclic_dependency"
	OutcomeTimeout          = "timeout"
	OutcomeCacheConsistency = "cache_consistency"
	OutcomeInvalid          = "invalid"
	OutcomeError            = "error"
)

// Classify maps an error to its outcome class.
func Classify(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, engine.ErrOscillation):
		return OutcomeOscillation
	case errors.Is(err, engine.ErrCyclicDependency):
		return OutcomeCyclicDependency
	case errors.Is(err, engine.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return OutcomeTimeout
	case errors.Is(err, engine.ErrCacheConsistency):
		return OutcomeCacheConsistency
	case errors.Is(err, loader.ErrInvalidDefinition),
		errors.Is(err, loader.ErrUnknownActivation),
		errors.Is(err, network.ErrNeuronNotFound),
		errors.Is(err, network.ErrSynapseNotFound),
		errors.Is(err, engine.ErrInvalidDecision):
		return OutcomeInvalid
	default:
		return OutcomeError
	}
}

// Job is one document to process.
type Job struct {
	// ID identifies the job. Generated when empty.
	ID string

	// Definition describes the document.
	Definition loader.DocumentDefinition
}

// Result is the outcome of one job.
type Result struct {
	JobID    string
	Document *engine.Document
	Outcome  string
	Err      error
	Duration time.Duration
}

// Options configures a Processor.
type Options struct {
	// Workers bounds the number of documents processed at once.
	Workers int

	// MaxJobs bounds the size of one batch. Zero means unbounded.
	MaxJobs int

	// Timeout is the per-document search budget. Zero means none.
	Timeout time.Duration

	// Engine configures every document.
	Engine engine.Config

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Processor runs batches of documents.
//
// Description:
//
//	Each document is built from its definition and processed on its own
//	goroutine. Documents share the model through the propagator; a
//	document is never touched by two goroutines. A failing document does
//	not stop the others: every job gets a Result.
//
// Thread Safety: Safe for concurrent use.
type Processor struct {
	propagator *network.Propagator
	opts       Options
	logger     *slog.Logger
}

// NewProcessor creates a processor over p.
func NewProcessor(p *network.Propagator, opts Options) *Processor {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Processor{
		propagator: p,
		opts:       opts,
		logger:     opts.Logger.With(slog.String("component", "batch_processor")),
	}
}

// Run processes jobs and returns one result per job, in job order.
//
// Inputs:
//   - ctx: Cancelling it stops jobs that have not started and times out
//     running searches.
//   - jobs: The documents.
//
// Outputs:
//   - []Result: One per job.
//   - error: ErrTooManyJobs, or ctx.Err() when cancelled before all jobs ran.
func (p *Processor) Run(ctx context.Context, jobs []Job) ([]Result, error) {
	if p.opts.MaxJobs > 0 && len(jobs) > p.opts.MaxJobs {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyJobs, len(jobs), p.opts.MaxJobs)
	}
	batchID := uuid.NewString()
	start := time.Now()
	results := make([]Result, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	for i, job := range jobs {
		if job.ID == "" {
			job.ID = uuid.NewString()
		}
		if gctx.Err() != nil {
			results[i] = Result{JobID: job.ID, Outcome: Classify(gctx.Err()), Err: gctx.Err()}
			continue
		}
		g.Go(func() error {
			results[i] = p.runJob(gctx, job)
			return nil
		})
	}
	_ = g.Wait()

	counts := make(map[string]int)
	for _, r := range results {
		counts[r.Outcome]++
	}
	p.logger.Info("batch finished",
		slog.String("batch_id", batchID),
		slog.Int("jobs", len(jobs)),
		slog.Int("ok", counts[OutcomeOK]),
		slog.Duration("elapsed", time.Since(start)),
	)
	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

func (p *Processor) runJob(ctx context.Context, job Job) Result {
	jobsInFlight.Inc()
	defer jobsInFlight.Dec()
	start := time.Now()

	res := Result{JobID: job.ID}
	doc, err := job.Definition.Build(ctx, p.propagator, p.opts.Engine, engine.WithLogger(p.opts.Logger))
	if err == nil {
		res.Document = doc
		err = doc.Process(ctx, p.opts.Timeout)
	}
	res.Err = err
	res.Outcome = Classify(err)
	res.Duration = time.Since(start)

	jobsTotal.WithLabelValues(res.Outcome).Inc()
	jobDuration.WithLabelValues(res.Outcome).Observe(res.Duration.Seconds())
	if err != nil {
		p.logger.Warn("document failed",
			slog.String("job_id", job.ID),
			slog.String("outcome", res.Outcome),
			slog.String("error", err.Error()),
		)
	}
	return res
}
