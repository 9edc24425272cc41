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
	"github.com/spf13/cobra"

	"github.com/wu0o0yu/aika-sub001/pkg/ux"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath  string
	personality string
	logLevel    string
}

// newRootCmd builds the command tree. A fresh tree per call keeps flag
// state out of package variables.
func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "aika",
		Short: "Interpret documents with a neural interpretation network",
		Long: `aika builds activations for a document from a network definition,
searches for the best consistent interpretation and reports the selected
activations with their final states.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			ux.InitPersonality(opts.personality)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to a YAML or JSON config file")
	rootCmd.PersistentFlags().StringVar(&opts.personality, "personality", "", "Output style: standard, minimal or machine")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override the configured log level")

	modelCmd := &cobra.Command{
		Use:   "model",
		Short: "Persist and inspect models in a Badger store",
	}
	modelCmd.AddCommand(newModelSaveCmd(opts), newModelShowCmd(opts))

	rootCmd.AddCommand(
		newProcessCmd(opts),
		newBatchCmd(opts),
		newServeCmd(opts),
		modelCmd,
	)
	return rootCmd
}
