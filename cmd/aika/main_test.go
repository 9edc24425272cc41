// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.


package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wu0o0yu/aika-sub001/services/interpret"
	"github.com/wu0o0yu/aika-sub001/services/interpret/config"
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

const testDocument = `
id: doc-1
inputs:
  - {neuron: 1, position: 0, value: 1}
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--personality", "machine", "--log-level", "error"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestProcess_Table(t *testing.T) {
	dir := t.TempDir()
	netPath := writeFile(t, dir, "net.yaml", testNetwork)
	docPath := writeFile(t, dir, "doc.yaml", testDocument)

	out, err := runCLI(t, "process", "--network", netPath, "--document", docPath)
	require.NoError(t, err)
	assert.Contains(t, out, "\tA\t0\tSELECTED\t")
	assert.Contains(t, out, "\tB\t0\tEXCLUDED\t")
	assert.Contains(t, out, "max_round\t")
}

func TestProcess_JSON(t *testing.T) {
	dir := t.TempDir()
	netPath := writeFile(t, dir, "net.yaml", testNetwork)
	docPath := writeFile(t, dir, "doc.yaml", testDocument)

	out, err := runCLI(t, "process", "-n", netPath, "-d", docPath, "--json", "--trace")
	require.NoError(t, err)

	var resp interpret.ProcessResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "doc-1", resp.DocumentID)
	assert.NotEmpty(t, resp.Trace)

	decisions := map[string]string{}
	for _, a := range resp.Activations {
		decisions[a.Label] = a.Decision
	}
	assert.Equal(t, "SELECTED", decisions["A"])
	assert.Equal(t, "EXCLUDED", decisions["B"])
}

func TestProcess_Errors(t *testing.T) {
	dir := t.TempDir()
	netPath := writeFile(t, dir, "net.yaml", testNetwork)
	badDoc := writeFile(t, dir, "bad.yaml", "inputs:\n  - {neuron: 9, position: 0, value: 1}\n")

	_, err := runCLI(t, "process", "--network", netPath)
	assert.Error(t, err, "missing --document")

	_, err = runCLI(t, "process", "--network", netPath, "--document", badDoc)
	assert.Error(t, err)

	_, err = runCLI(t, "process", "--network", filepath.Join(dir, "missing.yaml"), "--document", badDoc)
	assert.Error(t, err)
}

func TestBatch(t *testing.T) {
	dir := t.TempDir()
	netPath := writeFile(t, dir, "net.yaml", testNetwork)
	doc1 := writeFile(t, dir, "d1.yaml", testDocument)
	doc2 := writeFile(t, dir, "d2.yaml", "inputs:\n  - {neuron: 1, position: 3, value: 1}\n")

	out, err := runCLI(t, "batch", "--network", netPath, "--workers", "2", doc1, doc2)
	require.NoError(t, err)
	assert.Contains(t, out, "ok\t2")
	assert.Contains(t, out, "OK: 2 documents processed")
}

func TestBatch_ReportsFailures(t *testing.T) {
	dir := t.TempDir()
	netPath := writeFile(t, dir, "net.yaml", testNetwork)
	good := writeFile(t, dir, "good.yaml", testDocument)
	bad := writeFile(t, dir, "bad.yaml", "inputs:\n  - {neuron: 9, position: 0, value: 1}\n")

	out, err := runCLI(t, "batch", "--network", netPath, good, bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 documents failed")
	assert.Contains(t, out, "ERROR: "+bad)
}

func TestModelSaveAndShow(t *testing.T) {
	dir := t.TempDir()
	netPath := writeFile(t, dir, "net.yaml", testNetwork)
	dbPath := filepath.Join(dir, "db")

	out, err := runCLI(t, "model", "save", "--network", netPath, "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "saved 3 neurons")

	out, err = runCLI(t, "model", "show", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "1_in\ttype=input")
	assert.Contains(t, out, "2_a\ttype=")
	assert.Contains(t, out, "inputs=2")
}

func TestOpenModel(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := config.Default()
	_, closeFn, err := openModel(ctx, cfg, logger)
	assert.ErrorIs(t, err, errNoModelSource)
	closeFn()

	dir := t.TempDir()
	cfg.Server.NetworkPath = writeFile(t, dir, "net.yaml", testNetwork)
	cfg.Storage.Enabled = true
	cfg.Storage.Path = filepath.Join(dir, "db")
	m, closeFn, err := openModel(ctx, cfg, logger)
	require.NoError(t, err)
	assert.Len(t, m.Neurons(), 3)
	closeFn()

	cfg.Server.NetworkPath = ""
	m, closeFn, err = openModel(ctx, cfg, logger)
	require.NoError(t, err, "reloads from the store written above")
	assert.Len(t, m.Neurons(), 3)
	closeFn()
}

func TestApplyServeFlags(t *testing.T) {
	newCmd := func() (*cobra.Command, *serveOptions) {
		return newServeCmd(&globalOptions{}), &serveOptions{}
	}

	cmd, opts := newCmd()
	require.NoError(t, cmd.Flags().Set("watch", "true"))
	opts.watch = true
	cfg := config.Default()
	assert.Error(t, applyServeFlags(cmd, &cfg, opts), "watch needs a network file")

	cmd, opts = newCmd()
	opts.networkPath = "net.yaml"
	opts.address = ":9999"
	cfg = config.Default()
	require.NoError(t, applyServeFlags(cmd, &cfg, opts))
	assert.Equal(t, "net.yaml", cfg.Server.NetworkPath)
	assert.Equal(t, ":9999", cfg.Server.Address)
	assert.False(t, cfg.Server.Watch)
}
