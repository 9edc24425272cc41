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
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wu0o0yu/aika-sub001/services/interpret/config"
	"github.com/wu0o0yu/aika-sub001/services/interpret/loader"
)

const testNetwork = `
neurons:
  - {id: 1, label: IN, type: input}
  - {id: 2, label: A, bias: -2}
  - {id: 3, label: B, bias: -4}
synapses:
  - {id: 1, input: 1, output: 2, weight: 10}
  - {id: 2, input: 1, output: 3, weight: 10}
  - {id: 3, input: 3, output: 2, weight: -20, recurrent: true}
  - {id: 4, input: 2, output: 3, weight: -20, recurrent: true}
`

func init() {
	gin.SetMode(gin.TestMode)
}

func setupRouter(t *testing.T, mutate func(*config.Config)) (*gin.Engine, *Service, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "net.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testNetwork), 0o600))

	cfg := config.Default()
	cfg.Server.NetworkPath = path
	cfg.Observability.MetricExporter = "none"
	if mutate != nil {
		mutate(&cfg)
	}
	require.NoError(t, cfg.Validate())

	def, err := loader.LoadNetworkFile(path)
	require.NoError(t, err)
	model, err := def.Build()
	require.NoError(t, err)

	svc := NewService(cfg, model, nil)
	return NewRouter(cfg, svc), svc, path
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func inputDocument(id string) loader.DocumentDefinition {
	return loader.DocumentDefinition{
		ID:     id,
		Inputs: []loader.InputSpec{{Neuron: 1, Position: 0, Value: 1}},
	}
}

func TestHandleProcess(t *testing.T) {
	router, _, _ := setupRouter(t, nil)

	rec := doJSON(t, router, http.MethodPost, "/v1/interpret/process", ProcessRequest{
		Document: inputDocument("doc-1"),
		Trace:    true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var resp ProcessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "doc-1", resp.DocumentID)
	require.Len(t, resp.Activations, 3)

	decisions := map[string]string{}
	for _, a := range resp.Activations {
		decisions[a.Label] = a.Decision
	}
	assert.Equal(t, "SELECTED", decisions["IN"])
	assert.Equal(t, "SELECTED", decisions["A"])
	assert.Equal(t, "EXCLUDED", decisions["B"])
	assert.Len(t, resp.Selected, 2)
	assert.InDelta(t, 8, resp.Stats.BestWeight.W, 1e-9)
	assert.Contains(t, resp.Trace, "leaf level=")
}

func TestHandleProcess_Errors(t *testing.T) {
	router, _, _ := setupRouter(t, nil)

	tests := []struct {
		name     string
		body     string
		wantCode int
		wantErr  string
	}{
		{"malformed", `{"document":`, http.StatusBadRequest, "INVALID_REQUEST"},
		{"no inputs", `{"document":{"inputs":[]}}`, http.StatusBadRequest, "INVALID_DOCUMENT"},
		{"unknown neuron", `{"document":{"inputs":[{"neuron":42,"value":1}]}}`, http.StatusNotFound, "UNKNOWN_MODEL_ELEMENT"},
		{"unknown forced activation", `{"document":{"inputs":[{"neuron":1,"value":1}],"forced":[{"neuron":2,"position":7,"decision":"selected"}]}}`, http.StatusBadRequest, "INVALID_DOCUMENT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/interpret/process", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-Request-ID", "req-1")
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			assert.Equal(t, "req-1", rec.Header().Get("X-Request-ID"))
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantErr, resp.Code)
		})
	}
}

func TestHandleBatch(t *testing.T) {
	router, _, _ := setupRouter(t, nil)

	bad := loader.DocumentDefinition{Inputs: []loader.InputSpec{{Neuron: 99, Value: 1}}}
	rec := doJSON(t, router, http.MethodPost, "/v1/interpret/batch", BatchRequest{
		Documents: []loader.DocumentDefinition{inputDocument("a"), bad, inputDocument("b")},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp BatchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 3)
	assert.Equal(t, "ok", resp.Items[0].Outcome)
	assert.Equal(t, "a", resp.Items[0].Result.DocumentID)
	assert.Equal(t, "invalid", resp.Items[1].Outcome)
	assert.Nil(t, resp.Items[1].Result)
	assert.Equal(t, 2, resp.Outcomes["ok"])
}

func TestHandleBatch_TooMany(t *testing.T) {
	router, _, _ := setupRouter(t, func(c *config.Config) { c.Batch.MaxJobs = 1 })

	rec := doJSON(t, router, http.MethodPost, "/v1/interpret/batch", BatchRequest{
		Documents: []loader.DocumentDefinition{inputDocument("a"), inputDocument("b")},
	})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestHandleReload(t *testing.T) {
	router, svc, path := setupRouter(t, nil)
	v0 := svc.Model().Version()

	updated := strings.Replace(testNetwork, "{id: 2, label: A, bias: -2}", "{id: 2, label: A, bias: -5}", 1)
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o600))

	rec := doJSON(t, router, http.MethodPost, "/v1/interpret/model/reload", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp ReloadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Biases)
	assert.Equal(t, v0+1, resp.ModelVersion)

	// B now wins.
	rec = doJSON(t, router, http.MethodPost, "/v1/interpret/process", ProcessRequest{Document: inputDocument("")})
	require.Equal(t, http.StatusOK, rec.Code)
	var pr ProcessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pr))
	for _, a := range pr.Activations {
		if a.Label == "B" {
			assert.Equal(t, "SELECTED", a.Decision)
		}
	}
}

func TestHandleReload_Unavailable(t *testing.T) {
	router, _, _ := setupRouter(t, func(c *config.Config) { c.Server.NetworkPath = "" })
	rec := doJSON(t, router, http.MethodPost, "/v1/interpret/model/reload", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	router, _, _ := setupRouter(t, nil)
	rec := doJSON(t, router, http.MethodGet, "/v1/interpret/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, 3, resp.Neurons)
}

func TestMetricsEndpoint(t *testing.T) {
	router, _, _ := setupRouter(t, nil)
	rec := doJSON(t, router, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit(t *testing.T) {
	router, _, _ := setupRouter(t, func(c *config.Config) {
		c.Server.RateLimit = 0.001
		c.Server.RateBurst = 1
	})

	rec := doJSON(t, router, http.MethodPost, "/v1/interpret/process", ProcessRequest{Document: inputDocument("")})
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, router, http.MethodPost, "/v1/interpret/process", ProcessRequest{Document: inputDocument("")})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// Health is not limited.
	rec = doJSON(t, router, http.MethodGet, "/v1/interpret/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestErrorStatus_Default(t *testing.T) {
	status, code := errorStatus(assert.AnError)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "INTERNAL", code)
}
