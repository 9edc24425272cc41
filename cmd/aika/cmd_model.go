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

	"github.com/spf13/cobra"

	"github.com/wu0o0yu/aika-sub001/pkg/ux"
	"github.com/wu0o0yu/aika-sub001/services/interpret/config"
	"github.com/wu0o0yu/aika-sub001/services/interpret/network"
	"github.com/wu0o0yu/aika-sub001/services/interpret/storage/badger"
)

type modelOptions struct {
	networkPath string
	dbPath      string
}

func (o *modelOptions) storeConfig(cfg config.Config) config.StorageConfig {
	sc := cfg.Storage
	sc.Enabled = true
	sc.InMemory = false
	if o.dbPath != "" {
		sc.Path = o.dbPath
	}
	return sc
}

func newModelSaveCmd(g *globalOptions) *cobra.Command {
	opts := &modelOptions{}
	cmd := &cobra.Command{
		Use:   "save",
		Short: "Write a network definition into a Badger store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, done, err := setup(g, false)
			defer done()
			if err != nil {
				return err
			}
			db, err := badger.Open(opts.storeConfig(cfg).ToBadgerConfig(logger))
			if err != nil {
				return err
			}
			defer db.Close()

			model, err := buildModel(opts.networkPath, logger, network.WithStore(network.NewBadgerStore(db)))
			if err != nil {
				return err
			}
			if err := model.Save(cmd.Context()); err != nil {
				return err
			}
			ux.NewPrinter(cmd.OutOrStdout()).Success(
				fmt.Sprintf("saved %d neurons to %s", len(model.Neurons()), db.Path()))
			return nil
		},
	}
	cmd.Flags().StringVarP(&opts.networkPath, "network", "n", "", "Network definition file")
	cmd.Flags().StringVar(&opts.dbPath, "db", "", "Badger directory (defaults to storage.path)")
	_ = cmd.MarkFlagRequired("network")
	return cmd
}

func newModelShowCmd(g *globalOptions) *cobra.Command {
	opts := &modelOptions{}
	cmd := &cobra.Command{
		Use:   "show",
		Short: "List the neurons stored in a Badger store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, done, err := setup(g, false)
			defer done()
			if err != nil {
				return err
			}
			db, err := badger.Open(opts.storeConfig(cfg).ToBadgerConfig(logger))
			if err != nil {
				return err
			}
			defer db.Close()

			model, err := network.LoadModel(cmd.Context(), network.NewBadgerStore(db), network.WithModelLogger(logger))
			if err != nil {
				return err
			}
			ux.NewPrinter(cmd.OutOrStdout()).Summary(
				fmt.Sprintf("Model %s", db.Path()), neuronItems(model.Neurons()))
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.dbPath, "db", "", "Badger directory (defaults to storage.path)")
	return cmd
}

func neuronItems(neurons []*network.Neuron) []ux.SummaryItem {
	items := make([]ux.SummaryItem, len(neurons))
	for i, n := range neurons {
		items[i] = ux.SummaryItem{
			Label: strconv.Itoa(n.ID()) + " " + n.Label(),
			Value: fmt.Sprintf("type=%s bias=%.4f inputs=%d", n.Type(), n.OwnBias(), len(n.InputSynapses())),
		}
	}
	return items
}
