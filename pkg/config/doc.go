// Package config provides runtime configuration for FlowGraph.
//
// # Overview
//
// Configuration is a single YAML file covering the checkpoint backend,
// the telemetry stack, engine limits, and manifest registry paths.
// Defaults are applied before parsing, so a partial file only needs the
// fields it changes.
//
// # Features
//
//   - YAML parsing layered over sensible defaults
//   - Struct-tag validation plus cross-field backend checks
//   - Embedded telemetry configuration (see pkg/telemetry)
//   - File watching with automatic reload on change
//
// # Usage Example
//
//	cfg, err := config.Load("flowgraph.yaml")
//	if err != nil {
//	    log.Fatal().Err(err).Msg("invalid configuration")
//	}
//
//	watcher, err := config.Watch("flowgraph.yaml", logger, func(cfg *config.Config) {
//	    log.Info().Msg("configuration reloaded")
//	})
//	if err != nil {
//	    log.Fatal().Err(err).Msg("failed to watch configuration")
//	}
//	defer watcher.Close()
//
// # Configuration Structure
//
//	checkpoint:
//	  backend: sqlite        # memory, sqlite, or redis
//	  path: /var/lib/flowgraph/checkpoints.db
//	engine:
//	  max_steps: 100
//	  max_execution_records: 1000
//	  max_snapshots_per_thread: 100
//	telemetry:
//	  service_name: flowgraph
//	  logging:
//	    level: info
//	    format: console
//	registry:
//	  paths:
//	    - /etc/flowgraph/graphs
//	  watch: true
//
// # Validation
//
// Validation runs after parsing. Backend-specific requirements are
// enforced: the sqlite backend needs a path, the redis backend needs a
// URL. The embedded telemetry block is validated by its own package.
//
// # Reloading
//
// Watch monitors the config file's directory, since editors typically
// replace files on save rather than writing in place. Reload failures
// are logged and the previous configuration stays in effect.
package config
