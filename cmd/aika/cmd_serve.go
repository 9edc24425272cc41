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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/wu0o0yu/aika-sub001/services/interpret"
	"github.com/wu0o0yu/aika-sub001/services/interpret/config"
	"github.com/wu0o0yu/aika-sub001/services/interpret/loader"
	"github.com/wu0o0yu/aika-sub001/services/interpret/network"
	"github.com/wu0o0yu/aika-sub001/services/interpret/storage/badger"
	"github.com/wu0o0yu/aika-sub001/services/interpret/telemetry"
)

var errNoModelSource = errors.New("no model source: set --network or enable storage")

type serveOptions struct {
	networkPath string
	address     string
	watch       bool
}

func newServeCmd(g *globalOptions) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the interpretation HTTP service",
		Long: `serve exposes /v1/interpret/process, /v1/interpret/batch,
/v1/interpret/model/reload and /v1/interpret/health, plus /metrics.

The model comes from --network, from the Badger store when storage is
enabled, or both: a network file is then written through to the store.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, g, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.networkPath, "network", "n", "", "Network definition file")
	cmd.Flags().StringVar(&opts.address, "address", "", "Listen address (overrides config)")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "Re-apply the network file when it changes")
	return cmd
}

// applyServeFlags merges serve flags into cfg and re-validates.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config, opts *serveOptions) error {
	if opts.networkPath != "" {
		cfg.Server.NetworkPath = opts.networkPath
	}
	if opts.address != "" {
		cfg.Server.Address = opts.address
	}
	if cmd.Flags().Changed("watch") {
		cfg.Server.Watch = opts.watch
	}
	return cfg.Validate()
}

func runServe(cmd *cobra.Command, g *globalOptions, opts *serveOptions) error {
	cfg, err := loadConfig(g)
	if err != nil {
		return err
	}
	if err := applyServeFlags(cmd, &cfg, opts); err != nil {
		return err
	}

	l, err := openLogger(cfg, true)
	if err != nil {
		return err
	}
	defer l.Close()
	logger := l.Slog()
	slog.SetDefault(logger)
	if cfg.Observability.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.FromConfig(cfg.Observability, interpret.ServiceVersion))
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(sctx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	model, closeModel, err := openModel(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeModel()

	if cfg.Server.Watch {
		w, err := loader.NewModelWatcher(cfg.Server.NetworkPath, model, loader.WatcherOptions{
			Debounce: cfg.Server.WatchDebounce,
			Logger:   logger,
			OnReload: persistOnReload(ctx, model, cfg.Storage.Enabled, logger),
		})
		if err != nil {
			return fmt.Errorf("watch network: %w", err)
		}
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("watch network: %w", err)
		}
		defer w.Stop()
	}

	svc := interpret.NewService(cfg, model, logger)
	return interpret.Serve(ctx, cfg, interpret.NewRouter(cfg, svc))
}

// openModel builds or loads the served model.
//
// Outputs:
//   - *network.Model: The model.
//   - func(): Releases the store. Never nil.
//   - error: Non-nil if no source is configured or loading fails.
func openModel(ctx context.Context, cfg config.Config, logger *slog.Logger) (*network.Model, func(), error) {
	noop := func() {}
	if !cfg.Storage.Enabled {
		if cfg.Server.NetworkPath == "" {
			return nil, noop, errNoModelSource
		}
		m, err := buildModel(cfg.Server.NetworkPath, logger)
		return m, noop, err
	}

	db, err := badger.Open(cfg.Storage.ToBadgerConfig(logger))
	if err != nil {
		return nil, noop, err
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			logger.Warn("close store failed", slog.String("error", err.Error()))
		}
	}
	store := network.NewBadgerStore(db)

	var m *network.Model
	if cfg.Server.NetworkPath != "" {
		m, err = buildModel(cfg.Server.NetworkPath, logger, network.WithStore(store))
		if err == nil {
			err = m.Save(ctx)
		}
	} else {
		m, err = network.LoadModel(ctx, store, network.WithModelLogger(logger))
		if err == nil && len(m.Neurons()) == 0 {
			err = fmt.Errorf("%w: store %s is empty", errNoModelSource, db.Path())
		}
	}
	if err != nil {
		closeDB()
		return nil, noop, err
	}
	return m, closeDB, nil
}

// persistOnReload saves the model after every successful reload when it
// is backed by a store.
func persistOnReload(ctx context.Context, model *network.Model, persist bool, logger *slog.Logger) loader.ReloadHandler {
	return func(res loader.ApplyResult, err error) {
		if err != nil || !persist || !res.Changed() {
			return
		}
		if err := model.Save(ctx); err != nil {
			logger.Error("persist reloaded model failed", slog.String("error", err.Error()))
		}
	}
}
