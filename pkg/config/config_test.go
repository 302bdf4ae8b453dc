package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Checkpoint.Backend != "memory" {
		t.Errorf("default backend = %s, want memory", cfg.Checkpoint.Backend)
	}
	if cfg.Engine.MaxSteps != 100 {
		t.Errorf("default max_steps = %d, want 100", cfg.Engine.MaxSteps)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default configuration should validate: %v", err)
	}
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
checkpoint:
  backend: sqlite
  path: /var/lib/flowgraph/checkpoints.db
engine:
  max_steps: 50
telemetry:
  service_name: flowgraph-test
  logging:
    level: debug
registry:
  paths:
    - /etc/flowgraph/graphs
  watch: true
`))
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}

	if cfg.Checkpoint.Backend != "sqlite" {
		t.Errorf("backend = %s, want sqlite", cfg.Checkpoint.Backend)
	}
	if cfg.Checkpoint.Path != "/var/lib/flowgraph/checkpoints.db" {
		t.Errorf("path = %s", cfg.Checkpoint.Path)
	}
	if cfg.Engine.MaxSteps != 50 {
		t.Errorf("max_steps = %d, want 50", cfg.Engine.MaxSteps)
	}
	if cfg.Telemetry.ServiceName != "flowgraph-test" {
		t.Errorf("service_name = %s, want flowgraph-test", cfg.Telemetry.ServiceName)
	}
	if cfg.Telemetry.Logging.Level != "debug" {
		t.Errorf("log level = %s, want debug", cfg.Telemetry.Logging.Level)
	}
	// Defaults survive for fields the file omits.
	if cfg.Engine.MaxExecutionRecords != 1000 {
		t.Errorf("max_execution_records = %d, want default 1000", cfg.Engine.MaxExecutionRecords)
	}
	if cfg.Telemetry.Logging.Format != "console" {
		t.Errorf("log format = %s, want default console", cfg.Telemetry.Logging.Format)
	}
	if !cfg.Registry.Watch {
		t.Error("registry watch should be enabled")
	}
}

func TestParseRejectsBadBackend(t *testing.T) {
	if _, err := Parse([]byte("checkpoint:\n  backend: etcd\n")); err == nil {
		t.Error("Parse() should reject an unknown checkpoint backend")
	}
}

func TestValidateBackendRequirements(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Checkpoint.Backend = "sqlite"
	if err := cfg.Validate(); err == nil {
		t.Error("sqlite backend without a path should fail validation")
	}
	cfg.Checkpoint.Path = "/tmp/checkpoints.db"
	if err := cfg.Validate(); err != nil {
		t.Errorf("sqlite backend with a path should validate: %v", err)
	}

	cfg = DefaultConfig()
	cfg.Checkpoint.Backend = "redis"
	if err := cfg.Validate(); err == nil {
		t.Error("redis backend without a url should fail validation")
	}
	cfg.Checkpoint.URL = "redis://localhost:6379/0"
	if err := cfg.Validate(); err != nil {
		t.Errorf("redis backend with a url should validate: %v", err)
	}
}

func TestValidateRejectsBadEngineLimits(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Engine.MaxSteps = 0
	if err := cfg.Validate(); err == nil {
		t.Error("max_steps of 0 should fail validation")
	}
}

func TestValidateRejectsBadTelemetry(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Telemetry.Logging.Level = "loud"
	if err := cfg.Validate(); err == nil {
		t.Error("invalid log level should fail validation")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flowgraph.yaml")
	content := "checkpoint:\n  backend: memory\nengine:\n  max_steps: 25\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Engine.MaxSteps != 25 {
		t.Errorf("max_steps = %d, want 25", cfg.Engine.MaxSteps)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/flowgraph.yaml"); err == nil {
		t.Error("Load() should fail for a missing file")
	}
}

func TestWatchReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flowgraph.yaml")
	if err := os.WriteFile(path, []byte("engine:\n  max_steps: 10\n"), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	reloaded := make(chan *Config, 1)
	w, err := Watch(path, testLogger(), func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})
	if err != nil {
		t.Fatalf("Watch() failed: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(path, []byte("engine:\n  max_steps: 20\n"), 0o644); err != nil {
		t.Fatalf("failed to rewrite config file: %v", err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.Engine.MaxSteps != 20 {
			t.Errorf("reloaded max_steps = %d, want 20", cfg.Engine.MaxSteps)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watcher never delivered the reloaded configuration")
	}
}
