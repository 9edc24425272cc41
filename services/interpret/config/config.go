// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the configuration of the interpretation service.
//
// Values are merged with the priority env > file > defaults. Files are
// parsed as YAML first and as JSON when YAML fails. The merged result is
// checked with struct tags and a few cross-field rules.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/wu0o0yu/aika-sub001/services/interpret/engine"
	"github.com/wu0o0yu/aika-sub001/services/interpret/storage/badger"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "AIKA_"

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

var validate = validator.New()

// Config is the complete service configuration.
type Config struct {
	// Engine controls the interpretation search.
	Engine EngineConfig `json:"engine" yaml:"engine"`

	// Batch controls concurrent document processing.
	Batch BatchConfig `json:"batch" yaml:"batch"`

	// Server controls the HTTP service.
	Server ServerConfig `json:"server" yaml:"server"`

	// Storage controls neuron persistence.
	Storage StorageConfig `json:"storage" yaml:"storage"`

	// Observability controls logging, tracing and metrics.
	Observability ObservabilityConfig `json:"observability" yaml:"observability"`
}

// EngineConfig mirrors engine.Config plus the per-document time budget.
type EngineConfig struct {
	MaxRound                 int           `json:"max_round" yaml:"max_round" validate:"gte=1,lte=10000"`
	EnableCaching            bool          `json:"enable_caching" yaml:"enable_caching"`
	CompareCachedNodes       bool          `json:"compare_cached_nodes" yaml:"compare_cached_nodes"`
	AllowWeakNegativeWeights bool          `json:"allow_weak_negative_weights" yaml:"allow_weak_negative_weights"`
	KeepSearchTree           bool          `json:"keep_search_tree" yaml:"keep_search_tree"`
	SearchTimeout            time.Duration `json:"search_timeout" yaml:"search_timeout" validate:"gte=0"`
}

// BatchConfig controls the batch processor.
type BatchConfig struct {
	Workers int `json:"workers" yaml:"workers" validate:"gte=1,lte=1024"`
	MaxJobs int `json:"max_jobs" yaml:"max_jobs" validate:"gte=1"`
}

// ServerConfig controls the HTTP service.
type ServerConfig struct {
	Address       string        `json:"address" yaml:"address" validate:"required"`
	NetworkPath   string        `json:"network_path" yaml:"network_path"`
	Watch         bool          `json:"watch" yaml:"watch"`
	WatchDebounce time.Duration `json:"watch_debounce" yaml:"watch_debounce" validate:"gte=0"`
	RateLimit     float64       `json:"rate_limit" yaml:"rate_limit" validate:"gte=0"`
	RateBurst     int           `json:"rate_burst" yaml:"rate_burst" validate:"gte=1"`
	MaxBodyBytes  int64         `json:"max_body_bytes" yaml:"max_body_bytes" validate:"gt=0"`
	ReadTimeout   time.Duration `json:"read_timeout" yaml:"read_timeout" validate:"gte=0"`
	WriteTimeout  time.Duration `json:"write_timeout" yaml:"write_timeout" validate:"gte=0"`
}

// StorageConfig controls the BadgerDB neuron store.
type StorageConfig struct {
	Enabled        bool          `json:"enabled" yaml:"enabled"`
	Path           string        `json:"path" yaml:"path"`
	InMemory       bool          `json:"in_memory" yaml:"in_memory"`
	SyncWrites     bool          `json:"sync_writes" yaml:"sync_writes"`
	GCInterval     time.Duration `json:"gc_interval" yaml:"gc_interval" validate:"gte=0"`
	GCDiscardRatio float64       `json:"gc_discard_ratio" yaml:"gc_discard_ratio" validate:"gt=0,lt=1"`
}

// ObservabilityConfig controls logging and telemetry exporters.
type ObservabilityConfig struct {
	LogLevel       string  `json:"log_level" yaml:"log_level" validate:"oneof=debug info warn error"`
	LogDir         string  `json:"log_dir,omitempty" yaml:"log_dir,omitempty"`
	ServiceName    string  `json:"service_name" yaml:"service_name" validate:"required"`
	TraceExporter  string  `json:"trace_exporter" yaml:"trace_exporter" validate:"oneof=otlp stdout none"`
	MetricExporter string  `json:"metric_exporter" yaml:"metric_exporter" validate:"oneof=prometheus stdout none"`
	OTLPEndpoint   string  `json:"otlp_endpoint" yaml:"otlp_endpoint"`
	SampleRate     float64 `json:"sample_rate" yaml:"sample_rate" validate:"gte=0,lte=1"`
}

// Default returns the default configuration.
//
// Outputs:
//   - Config: Defaults that pass Validate.
func Default() Config {
	return Config{
		Engine: EngineConfig{
			MaxRound:      engine.DefaultMaxRound,
			EnableCaching: true,
			SearchTimeout: 10 * time.Second,
		},
		Batch: BatchConfig{
			Workers: 4,
			MaxJobs: 1000,
		},
		Server: ServerConfig{
			Address:       ":12300",
			WatchDebounce: 500 * time.Millisecond,
			RateLimit:     50,
			RateBurst:     100,
			MaxBodyBytes:  4 << 20,
			ReadTimeout:   30 * time.Second,
			WriteTimeout:  2 * time.Minute,
		},
		Storage: StorageConfig{
			Path:           "aika-data",
			GCInterval:     10 * time.Minute,
			GCDiscardRatio: 0.5,
		},
		Observability: ObservabilityConfig{
			LogLevel:       "info",
			ServiceName:    "aika-interpret",
			TraceExporter:  "none",
			MetricExporter: "prometheus",
			OTLPEndpoint:   "localhost:4317",
			SampleRate:     1.0,
		},
	}
}

// Load loads configuration with priority: env > file > defaults.
//
// Inputs:
//   - path: Path to a YAML or JSON file. Empty or missing means defaults.
//
// Outputs:
//   - Config: The merged configuration.
//   - error: Non-nil if the file is malformed or the result is invalid.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return fmt.Errorf("parse config (tried YAML and JSON): YAML error: %v, JSON error: %w", err, jsonErr)
		}
	}
	return nil
}

// applyEnv overrides fields from AIKA_* variables. A variable that does
// not parse is an error rather than silently ignored.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	ints := map[string]*int{
		"MAX_ROUND":  &cfg.Engine.MaxRound,
		"WORKERS":    &cfg.Batch.Workers,
		"MAX_JOBS":   &cfg.Batch.MaxJobs,
		"RATE_BURST": &cfg.Server.RateBurst,
	}
	bools := map[string]*bool{
		"ENABLE_CACHING":    &cfg.Engine.EnableCaching,
		"COMPARE_CACHED":    &cfg.Engine.CompareCachedNodes,
		"WEAK_NEGATIVE":     &cfg.Engine.AllowWeakNegativeWeights,
		"KEEP_SEARCH_TREE":  &cfg.Engine.KeepSearchTree,
		"WATCH":             &cfg.Server.Watch,
		"STORAGE_ENABLED":   &cfg.Storage.Enabled,
		"STORAGE_IN_MEMORY": &cfg.Storage.InMemory,
	}
	durations := map[string]*time.Duration{
		"SEARCH_TIMEOUT": &cfg.Engine.SearchTimeout,
		"WATCH_DEBOUNCE": &cfg.Server.WatchDebounce,
	}
	floats := map[string]*float64{
		"RATE_LIMIT":        &cfg.Server.RateLimit,
		"TRACE_SAMPLE_RATE": &cfg.Observability.SampleRate,
	}
	strs := map[string]*string{
		"ADDRESS":         &cfg.Server.Address,
		"NETWORK_PATH":    &cfg.Server.NetworkPath,
		"STORAGE_PATH":    &cfg.Storage.Path,
		"LOG_LEVEL":       &cfg.Observability.LogLevel,
		"LOG_DIR":         &cfg.Observability.LogDir,
		"SERVICE_NAME":    &cfg.Observability.ServiceName,
		"TRACE_EXPORTER":  &cfg.Observability.TraceExporter,
		"METRIC_EXPORTER": &cfg.Observability.MetricExporter,
		"OTLP_ENDPOINT":   &cfg.Observability.OTLPEndpoint,
	}

	var errs []error
	for name, dst := range ints {
		if v, ok := lookup(EnvPrefix + name); ok {
			i, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				continue
			}
			*dst = i
		}
	}
	for name, dst := range bools {
		if v, ok := lookup(EnvPrefix + name); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				continue
			}
			*dst = b
		}
	}
	for name, dst := range durations {
		if v, ok := lookup(EnvPrefix + name); ok {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				continue
			}
			*dst = d
		}
	}
	for name, dst := range floats {
		if v, ok := lookup(EnvPrefix + name); ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				continue
			}
			*dst = f
		}
	}
	for name, dst := range strs {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Validate checks struct tags and cross-field rules.
//
// Outputs:
//   - error: Wraps ErrInvalidConfig, or nil.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Engine.CompareCachedNodes && !c.Engine.EnableCaching {
		return fmt.Errorf("%w: compare_cached_nodes requires enable_caching", ErrInvalidConfig)
	}
	if c.Server.Watch && c.Server.NetworkPath == "" {
		return fmt.Errorf("%w: watch requires network_path", ErrInvalidConfig)
	}
	if c.Storage.Enabled && !c.Storage.InMemory && c.Storage.Path == "" {
		return fmt.Errorf("%w: storage requires a path unless in_memory", ErrInvalidConfig)
	}
	if c.Observability.TraceExporter == "otlp" && c.Observability.OTLPEndpoint == "" {
		return fmt.Errorf("%w: otlp trace exporter requires otlp_endpoint", ErrInvalidConfig)
	}
	return nil
}

// ToEngineConfig converts to the engine's own configuration.
func (c EngineConfig) ToEngineConfig() engine.Config {
	return engine.Config{
		MaxRound:                 c.MaxRound,
		EnableCaching:            c.EnableCaching,
		CompareCachedNodes:       c.CompareCachedNodes,
		AllowWeakNegativeWeights: c.AllowWeakNegativeWeights,
		KeepSearchTree:           c.KeepSearchTree,
	}
}

// ToBadgerConfig converts to the storage factory configuration.
func (c StorageConfig) ToBadgerConfig(logger *slog.Logger) badger.Config {
	return badger.Config{
		Path:           c.Path,
		InMemory:       c.InMemory,
		SyncWrites:     c.SyncWrites,
		Logger:         logger,
		GCInterval:     c.GCInterval,
		GCDiscardRatio: c.GCDiscardRatio,
	}
}

// SlogLevel maps LogLevel to a slog level.
func (c ObservabilityConfig) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
