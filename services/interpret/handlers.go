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
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/wu0o0yu/aika-sub001/services/interpret/telemetry"
)

// Handlers serves the HTTP API of a Service.
type Handlers struct {
	svc *Service
}

// NewHandlers creates handlers for svc.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// HandleProcess handles POST /v1/interpret/process.
//
// Description:
//
//	Builds the document, runs the interpretation search and returns the
//	final decision and state of every activation.
//
// Request Body:
//
//	ProcessRequest
//
// Response:
//
//	200 OK: ProcessResponse
//	400 Bad Request: Malformed or invalid document
//	404 Not Found: Document refers to unknown neurons or synapses
//	422 Unprocessable Entity: Oscillation or cyclic dependency
//	504 Gateway Timeout: Search budget exceeded
func (h *Handlers) HandleProcess(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleProcess")

	var req ProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request body",
			Code:    "INVALID_REQUEST",
			Details: err.Error(),
		})
		return
	}

	resp, err := h.svc.Process(c.Request.Context(), req)
	if err != nil {
		h.fail(c, logger, "Process failed", err)
		return
	}

	logger.Info("Document processed",
		"document_id", resp.DocumentID,
		"activations", resp.Stats.Activations,
		"search_nodes", resp.Stats.SearchNodes,
		"elapsed_ms", resp.Stats.ElapsedMs)
	c.JSON(http.StatusOK, resp)
}

// HandleBatch handles POST /v1/interpret/batch.
//
// Response:
//
//	200 OK: BatchResponse, with per-document outcomes
//	400 Bad Request: Malformed body
//	413 Request Entity Too Large: More documents than allowed
func (h *Handlers) HandleBatch(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleBatch")

	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request body",
			Code:    "INVALID_REQUEST",
			Details: err.Error(),
		})
		return
	}

	resp, err := h.svc.Batch(c.Request.Context(), req)
	if err != nil {
		h.fail(c, logger, "Batch failed", err)
		return
	}
	logger.Info("Batch processed", "documents", len(resp.Items), "ok", resp.Outcomes["ok"])
	c.JSON(http.StatusOK, resp)
}

// HandleReload handles POST /v1/interpret/model/reload.
//
// Response:
//
//	200 OK: ReloadResponse
//	400 Bad Request: The network file is invalid
//	409 Conflict: No network file configured
func (h *Handlers) HandleReload(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleReload")

	resp, err := h.svc.Reload(c.Request.Context())
	if err != nil {
		h.fail(c, logger, "Reload failed", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleHealth handles GET /v1/interpret/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Health())
}

func (h *Handlers) fail(c *gin.Context, logger *slog.Logger, msg string, err error) {
	status, code := errorStatus(err)
	telemetry.RecordError(trace.SpanFromContext(c.Request.Context()), err)
	if status >= http.StatusInternalServerError {
		logger.Error(msg, "error", err, "code", code)
	} else {
		logger.Warn(msg, "error", err, "code", code)
	}
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

// getOrCreateRequestID returns the X-Request-ID header or a new UUID,
// and echoes it on the response.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}
