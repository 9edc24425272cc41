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
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strconv"

	"github.com/wu0o0yu/aika-sub001/pkg/logging"
	"github.com/wu0o0yu/aika-sub001/pkg/ux"
	"github.com/wu0o0yu/aika-sub001/services/interpret"
	"github.com/wu0o0yu/aika-sub001/services/interpret/config"
	"github.com/wu0o0yu/aika-sub001/services/interpret/loader"
	"github.com/wu0o0yu/aika-sub001/services/interpret/network"
)

// loadConfig loads the config file and applies the --log-level override.
func loadConfig(opts *globalOptions) (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return cfg, err
	}
	if opts.logLevel != "" {
		cfg.Observability.LogLevel = opts.logLevel
		if err := cfg.Validate(); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

// openLogger builds the command logger from the observability config.
// Console output goes to stderr so stdout stays parseable.
func openLogger(cfg config.Config, asJSON bool) (*logging.Logger, error) {
	return logging.New(logging.Config{
		Level:   cfg.Observability.SlogLevel(),
		LogDir:  cfg.Observability.LogDir,
		Service: cfg.Observability.ServiceName,
		JSON:    asJSON,
		Output:  os.Stderr,
	})
}

// setup loads config and opens the logger for a command. The returned
// func closes the logger and is never nil.
func setup(g *globalOptions, asJSON bool) (config.Config, *slog.Logger, func(), error) {
	cfg, err := loadConfig(g)
	if err != nil {
		return cfg, nil, func() {}, err
	}
	l, err := openLogger(cfg, asJSON)
	if err != nil {
		return cfg, nil, func() {}, err
	}
	return cfg, l.Slog(), func() { _ = l.Close() }, nil
}

// buildModel reads a network file into a fresh model.
func buildModel(path string, logger *slog.Logger, opts ...network.ModelOption) (*network.Model, error) {
	def, err := loader.LoadNetworkFile(path)
	if err != nil {
		return nil, err
	}
	return def.Build(append([]network.ModelOption{network.WithModelLogger(logger)}, opts...)...)
}

func sortedKeys(m map[string]int) []string {
	return slices.Sorted(maps.Keys(m))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func activationRows(acts []interpret.ActivationResponse) []ux.ActivationRow {
	rows := make([]ux.ActivationRow, len(acts))
	for i, a := range acts {
		rows[i] = ux.ActivationRow{
			ID:       a.ID,
			Label:    a.Label,
			Position: a.Position,
			Decision: a.Decision,
			Value:    a.Value,
			Net:      a.Net,
		}
	}
	return rows
}

func statsItems(s interpret.StatsResponse) []ux.SummaryItem {
	return []ux.SummaryItem{
		{Label: "Activations", Value: strconv.Itoa(s.Activations)},
		{Label: "Candidates", Value: strconv.Itoa(s.Candidates)},
		{Label: "Search nodes", Value: strconv.Itoa(s.SearchNodes)},
		{Label: "Cached", Value: strconv.Itoa(s.Cached)},
		{Label: "Max round", Value: strconv.Itoa(s.MaxRound)},
		{Label: "Best weight", Value: fmt.Sprintf("%.4f / %.4f", s.BestWeight.W, s.BestWeight.N)},
		{Label: "Elapsed ms", Value: fmt.Sprintf("%.3f", s.ElapsedMs)},
	}
}

// printProcess renders one interpretation.
func printProcess(p *ux.Printer, w io.Writer, resp interpret.ProcessResponse) {
	p.Title(fmt.Sprintf("Document %s (model v%d)", resp.DocumentID, resp.ModelVersion))
	p.Activations(activationRows(resp.Activations))
	p.Summary("Search", statsItems(resp.Stats))
	if resp.Trace != "" {
		fmt.Fprintln(w, resp.Trace)
	}
}
