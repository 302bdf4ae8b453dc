package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/flowgraph/flowgraph/pkg/telemetry"
)

// Config is the runtime configuration for a flowgraph process.
type Config struct {
	// Checkpoint selects and configures the checkpoint backend.
	Checkpoint CheckpointConfig `yaml:"checkpoint"`

	// Telemetry configures logging, tracing, metrics, and events.
	Telemetry telemetry.Config `yaml:"telemetry"`

	// Engine configures the execution runner.
	Engine EngineConfig `yaml:"engine"`

	// Registry configures manifest loading.
	Registry RegistryConfig `yaml:"registry"`
}

// CheckpointConfig selects the checkpoint backend.
type CheckpointConfig struct {
	// Backend is the store implementation to use.
	Backend string `yaml:"backend" validate:"oneof=memory sqlite redis"`

	// Path is the database file path for the sqlite backend.
	Path string `yaml:"path,omitempty"`

	// URL is the connection URL for the redis backend.
	URL string `yaml:"url,omitempty"`

	// TTL is the optional expiry applied to redis checkpoints.
	TTL time.Duration `yaml:"ttl,omitempty" validate:"min=0"`
}

// EngineConfig configures the execution runner.
type EngineConfig struct {
	// MaxSteps bounds node executions per run.
	MaxSteps int `yaml:"max_steps" validate:"min=1"`

	// MaxExecutionRecords caps the execution registry.
	MaxExecutionRecords int `yaml:"max_execution_records" validate:"min=1"`

	// MaxSnapshotsPerThread caps per-thread snapshot history.
	MaxSnapshotsPerThread int `yaml:"max_snapshots_per_thread" validate:"min=1"`
}

// RegistryConfig configures manifest loading.
type RegistryConfig struct {
	// Paths are manifest files or directories loaded at startup.
	Paths []string `yaml:"paths,omitempty"`

	// Watch re-registers graphs when manifest files change.
	Watch bool `yaml:"watch,omitempty"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Checkpoint: CheckpointConfig{
			Backend: "memory",
		},
		Telemetry: *telemetry.DefaultConfig(),
		Engine: EngineConfig{
			MaxSteps:              100,
			MaxExecutionRecords:   1000,
			MaxSnapshotsPerThread: 100,
		},
	}
}

// Load reads a YAML configuration file, applies defaults for omitted
// fields, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration bytes over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Checkpoint.Backend == "sqlite" && c.Checkpoint.Path == "" {
		return fmt.Errorf("invalid configuration: sqlite backend requires a path")
	}
	if c.Checkpoint.Backend == "redis" && c.Checkpoint.URL == "" {
		return fmt.Errorf("invalid configuration: redis backend requires a url")
	}
	return c.Telemetry.Validate()
}

// Watcher reloads the configuration when its file changes.
type Watcher struct {
	logger  zerolog.Logger
	watcher *fsnotify.Watcher
	done    chan struct{}
	once    sync.Once
}

// Watch starts watching a configuration file and invokes onChange with
// each successfully reloaded configuration. Reload failures are logged
// and the previous configuration stays in effect.
func Watch(path string, logger zerolog.Logger, onChange func(*Config)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	// Watch the directory: editors often replace the file on save,
	// which drops a watch on the file itself.
	dir := filepath.Dir(path)
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w := &Watcher{
		logger:  logger.With().Str("component", "config-watcher").Logger(),
		watcher: fw,
		done:    make(chan struct{}),
	}

	go w.processEvents(path, onChange)

	w.logger.Info().Str("path", path).Msg("Watching configuration file")
	return w, nil
}

func (w *Watcher) processEvents(path string, onChange func(*Config)) {
	var (
		mu      sync.Mutex
		pending bool
	)

	reload := func() {
		mu.Lock()
		pending = false
		mu.Unlock()

		cfg, err := Load(path)
		if err != nil {
			w.logger.Error().Err(err).Msg("Failed to reload configuration")
			return
		}
		w.logger.Info().Msg("Configuration reloaded")
		onChange(cfg)
	}

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			// Debounce rapid successive writes.
			mu.Lock()
			if !pending {
				pending = true
				time.AfterFunc(500*time.Millisecond, reload)
			}
			mu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("Config watcher error")

		case <-w.done:
			return
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.watcher.Close()
	})
	return err
}
