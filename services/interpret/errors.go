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
	"errors"
	"net/http"

	"github.com/wu0o0yu/aika-sub001/services/interpret/batch"
	"github.com/wu0o0yu/aika-sub001/services/interpret/engine"
	"github.com/wu0o0yu/aika-sub001/services/interpret/loader"
	"github.com/wu0o0yu/aika-sub001/services/interpret/network"
)

var (
	// ErrReloadUnavailable is returned by Reload when the service has no
	// network file.
	ErrReloadUnavailable = errors.New("no network file configured")
)

// errorStatus maps an error to an HTTP status and error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, loader.ErrInvalidDefinition),
		errors.Is(err, loader.ErrUnknownActivation),
		errors.Is(err, engine.ErrInvalidDecision):
		return http.StatusBadRequest, "INVALID_DOCUMENT"
	case errors.Is(err, network.ErrNeuronNotFound),
		errors.Is(err, network.ErrSynapseNotFound):
		return http.StatusNotFound, "UNKNOWN_MODEL_ELEMENT"
	case errors.Is(err, batch.ErrTooManyJobs):
		return http.StatusRequestEntityTooLarge, "TOO_MANY_DOCUMENTS"
	case errors.Is(err, ErrReloadUnavailable):
		return http.StatusConflict, "RELOAD_UNAVAILABLE"
	case errors.Is(err, engine.ErrTimeout):
		return http.StatusGatewayTimeout, "SEARCH_TIMEOUT"
	case errors.Is(err, engine.ErrOscillation):
		return http.StatusUnprocessableEntity, "OSCILLATION"
	case errors.Is(err, engine.ErrCyclicDependency):
		return http.StatusUnprocessableEntity, "CYCLIC_DEPENDENCY"
	case errors.Is(err, engine.ErrCacheConsistency):
		return http.StatusInternalServerError, "CACHE_CONSISTENCY"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}
