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
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/wu0o0yu/aika-sub001/pkg/ux"
	"github.com/wu0o0yu/aika-sub001/services/interpret"
	"github.com/wu0o0yu/aika-sub001/services/interpret/loader"
)

type processOptions struct {
	networkPath  string
	documentPath string
	timeout      time.Duration
	trace        bool
	asJSON       bool
}

func newProcessCmd(g *globalOptions) *cobra.Command {
	opts := &processOptions{}
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Process one document and print its best interpretation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(cmd, g, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.networkPath, "network", "n", "", "Network definition file")
	cmd.Flags().StringVarP(&opts.documentPath, "document", "d", "", "Document definition file")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "Search budget (0 keeps the configured value)")
	cmd.Flags().BoolVar(&opts.trace, "trace", false, "Print the search trace")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print the result as JSON")
	_ = cmd.MarkFlagRequired("network")
	_ = cmd.MarkFlagRequired("document")
	return cmd
}

func runProcess(cmd *cobra.Command, g *globalOptions, opts *processOptions) error {
	cfg, logger, done, err := setup(g, false)
	defer done()
	if err != nil {
		return err
	}
	model, err := buildModel(opts.networkPath, logger)
	if err != nil {
		return err
	}
	def, err := loader.LoadDocumentFile(opts.documentPath)
	if err != nil {
		return err
	}

	svc := interpret.NewService(cfg, model, logger)
	resp, err := svc.Process(cmd.Context(), interpret.ProcessRequest{
		Document:  def,
		Trace:     opts.trace,
		TimeoutMs: opts.timeout.Milliseconds(),
	})
	if err != nil {
		return fmt.Errorf("process %s: %w", opts.documentPath, err)
	}

	out := cmd.OutOrStdout()
	if opts.asJSON {
		return writeJSON(out, resp)
	}
	printProcess(ux.NewPrinter(out), out, resp)
	return nil
}

type batchOptions struct {
	networkPath string
	workers     int
	trace       bool
	asJSON      bool
}

func newBatchCmd(g *globalOptions) *cobra.Command {
	opts := &batchOptions{}
	cmd := &cobra.Command{
		Use:   "batch [document files...]",
		Short: "Process many documents concurrently against one network",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, g, opts, args)
		},
	}
	cmd.Flags().StringVarP(&opts.networkPath, "network", "n", "", "Network definition file")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "Concurrent documents (0 keeps the configured value)")
	cmd.Flags().BoolVar(&opts.trace, "trace", false, "Include search traces in JSON output")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print the result as JSON")
	_ = cmd.MarkFlagRequired("network")
	return cmd
}

func runBatch(cmd *cobra.Command, g *globalOptions, opts *batchOptions, paths []string) error {
	cfg, logger, done, err := setup(g, false)
	defer done()
	if err != nil {
		return err
	}
	if opts.workers > 0 {
		cfg.Batch.Workers = opts.workers
	}
	model, err := buildModel(opts.networkPath, logger)
	if err != nil {
		return err
	}

	req := interpret.BatchRequest{Trace: opts.trace}
	for _, path := range paths {
		def, err := loader.LoadDocumentFile(path)
		if err != nil {
			return err
		}
		if def.ID == "" {
			def.ID = path
		}
		req.Documents = append(req.Documents, def)
	}

	svc := interpret.NewService(cfg, model, logger)
	resp, err := svc.Batch(cmd.Context(), req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.asJSON {
		return writeJSON(out, resp)
	}

	p := ux.NewPrinter(out)
	failed := 0
	for i, item := range resp.Items {
		if item.Result == nil {
			failed++
			p.Error(fmt.Sprintf("%s: %s (%s)", paths[i], item.Outcome, item.Error))
			continue
		}
		printProcess(p, out, *item.Result)
	}

	items := make([]ux.SummaryItem, 0, len(resp.Outcomes)+1)
	for _, outcome := range sortedKeys(resp.Outcomes) {
		items = append(items, ux.SummaryItem{Label: outcome, Value: strconv.Itoa(resp.Outcomes[outcome])})
	}
	items = append(items, ux.SummaryItem{Label: "elapsed ms", Value: fmt.Sprintf("%.3f", resp.ElapsedMs)})
	p.Summary("Batch", items)
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(resp.Items))
	}
	p.Success(fmt.Sprintf("%d documents processed", len(resp.Items)))
	return nil
}
