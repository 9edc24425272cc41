// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors for document processing.
var (
	// ErrOscillation is returned when value propagation exceeds the
	// maximum round count.
	ErrOscillation = errors.New("oscillating network")

	// ErrCyclicDependency is returned when candidates cannot be ordered
	// because of a non-recurrent cycle.
	ErrCyclicDependency = errors.New("cyclic dependency between non-recurrent activations")

	// ErrTimeout is returned when the search exceeds its wall-clock budget.
	ErrTimeout = errors.New("interpretation search timed out")

	// ErrCacheConsistency is returned when a reused search node disagrees
	// with a fresh computation.
	ErrCacheConsistency = errors.New("cached search node differs from recomputation")

	// ErrNotProcessed is returned when final results are requested before a
	// successful Process call.
	ErrNotProcessed = errors.New("document has no final interpretation")

	// ErrForeignActivation is returned when an activation belongs to another
	// document.
	ErrForeignActivation = errors.New("activation belongs to another document")

	// ErrInvalidDecision is returned for decisions that cannot be forced.
	ErrInvalidDecision = errors.New("invalid decision")
)

// RoundHistory describes the rounds of one activation for diagnosis.
type RoundHistory struct {
	ActivationID int
	Label        string
	Rounds       string
}

// OscillationError reports activations whose propagation did not settle.
type OscillationError struct {
	MaxRound int
	Round    int
	History  []RoundHistory
}

func (e *OscillationError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: round %d exceeds maximum %d", ErrOscillation, e.Round, e.MaxRound)
	for _, h := range e.History {
		fmt.Fprintf(&sb, "\n  act %d %s: %s", h.ActivationID, h.Label, h.Rounds)
	}
	return sb.String()
}

func (e *OscillationError) Unwrap() error { return ErrOscillation }

// CyclicDependencyError reports the activations stuck behind a cycle.
type CyclicDependencyError struct {
	// Stage is "bounds", "values" or "candidates".
	Stage   string
	Pending []int
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("%s (stage %s, activations %v)", ErrCyclicDependency, e.Stage, e.Pending)
}

func (e *CyclicDependencyError) Unwrap() error { return ErrCyclicDependency }

// TimeoutError reports an aborted search.
type TimeoutError struct {
	Budget  time.Duration
	Elapsed time.Duration
	Leaves  int
	Cause   error
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("%s after %s (budget %s, %d leaves)", ErrTimeout, e.Elapsed, e.Budget, e.Leaves)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap exposes ErrTimeout and the underlying cause.
func (e *TimeoutError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrTimeout}
	}
	return []error{ErrTimeout, e.Cause}
}

// CacheConsistencyError reports a mismatch between a cached and a fresh
// search node. It always indicates an engine defect.
type CacheConsistencyError struct {
	Level        int
	CandidateID  int
	Branch       Decision
	ActivationID int
	Reason       string
}

func (e *CacheConsistencyError) Error() string {
	return fmt.Sprintf("%s: level %d candidate %d branch %s activation %d: %s",
		ErrCacheConsistency, e.Level, e.CandidateID, e.Branch, e.ActivationID, e.Reason)
}

func (e *CacheConsistencyError) Unwrap() error { return ErrCacheConsistency }
