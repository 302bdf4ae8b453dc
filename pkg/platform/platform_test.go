package platform

import (
	"strings"
	"testing"
)

func TestDiscover(t *testing.T) {
	reg := Discover()

	if reg.Version == "" {
		t.Error("Expected non-empty version")
	}
	if len(reg.Modules) == 0 {
		t.Fatal("Expected modules")
	}
	if len(reg.Features) == 0 {
		t.Fatal("Expected features")
	}
	if reg.Metadata.ModuleCount != len(reg.Modules) {
		t.Errorf("Metadata module count %d != %d", reg.Metadata.ModuleCount, len(reg.Modules))
	}
	if reg.Metadata.APICount != reg.APICount() {
		t.Errorf("Metadata api count %d != %d", reg.Metadata.APICount, reg.APICount())
	}
	if reg.Metadata.GeneratedAt.IsZero() {
		t.Error("Expected generated-at timestamp")
	}

	for _, name := range []string{"graph", "registry", "checkpoint", "telemetry", "engine"} {
		if _, ok := reg.FindModule(name); !ok {
			t.Errorf("Expected module %q", name)
		}
	}
}

func TestFindAPI(t *testing.T) {
	reg := Discover()

	api, ok := reg.FindAPI("Runner.Run")
	if !ok {
		t.Fatal("Expected exact match for Runner.Run")
	}
	if api.Signature == "" {
		t.Error("Expected a signature")
	}

	// Substring fallback, case insensitive.
	api, ok = reg.FindAPI("successrate")
	if !ok {
		t.Fatal("Expected substring match for successrate")
	}
	if api.Name != "ExecutionRegistry.SuccessRate" {
		t.Errorf("Unexpected match: %q", api.Name)
	}

	if _, ok := reg.FindAPI("nonexistent-api"); ok {
		t.Error("Did not expect a match")
	}
}

func TestCatalogMatchesPublicAPI(t *testing.T) {
	reg := Discover()

	// The catalog must describe the methods and signatures the packages
	// actually export.
	want := map[string]string{
		"Checkpointer.Put":       "func Put(ctx context.Context, cp Checkpoint) error",
		"Checkpointer.Get":       "func Get(ctx context.Context, threadID, id string) (Checkpoint, error)",
		"Checkpointer.Latest":    "func Latest(ctx context.Context, threadID string) (Checkpoint, error)",
		"Checkpointer.List":      "func List(ctx context.Context, threadID string) ([]Checkpoint, error)",
		"telemetry.NewLogger":    "func NewLogger(cfg LoggingConfig) (*Logger, error)",
		"telemetry.NewTracer":    "func NewTracer(cfg TracingConfig, serviceName, serviceVersion, environment string) (*Tracer, error)",
		"EventPublisher.Publish": "func (ep *EventPublisher) Publish(event Event) error",
	}
	for name, sig := range want {
		api, ok := reg.FindAPI(name)
		if !ok {
			t.Errorf("Expected API %q in the catalog", name)
			continue
		}
		if api.Name != name {
			t.Errorf("FindAPI(%q) matched %q", name, api.Name)
			continue
		}
		if api.Signature != sig {
			t.Errorf("%s signature = %q, want %q", name, api.Signature, sig)
		}
	}

	// The retired method names must not resolve exactly.
	for _, stale := range []string{"Checkpointer.Save", "Checkpointer.Load"} {
		if api, ok := reg.FindAPI(stale); ok && api.Name == stale {
			t.Errorf("Catalog still lists %q", stale)
		}
	}
}

func TestSearchAPIs(t *testing.T) {
	reg := Discover()

	results := reg.SearchAPIs("checkpoint")
	if len(results) == 0 {
		t.Fatal("Expected checkpoint matches")
	}
	for _, api := range results {
		name := strings.ToLower(api.Name + " " + api.Description)
		if !strings.Contains(name, "checkpoint") {
			t.Errorf("Result %q does not match query", api.Name)
		}
	}
}

func TestSearch(t *testing.T) {
	reg := Discover()

	results := reg.Search("snapshot")
	if len(results) == 0 {
		t.Fatal("Expected snapshot results")
	}

	foundAPI := false
	foundFeature := false
	for _, r := range results {
		if strings.HasPrefix(r, "api:") {
			foundAPI = true
		}
		if strings.HasPrefix(r, "feature:") {
			foundFeature = true
		}
	}
	if !foundAPI {
		t.Error("Expected at least one api result")
	}
	if !foundFeature {
		t.Error("Expected at least one feature result")
	}
}

func TestFeatureQueries(t *testing.T) {
	reg := Discover()

	if !reg.HasFeature("checkpointing") {
		t.Fatal("Expected checkpointing feature")
	}

	backends := reg.FeatureBackends("checkpointing")
	want := []string{"memory", "sqlite", "redis"}
	if len(backends) != len(want) {
		t.Fatalf("Expected backends %v, got %v", want, backends)
	}
	for i, b := range want {
		if backends[i] != b {
			t.Errorf("Expected backend %q, got %q", b, backends[i])
		}
	}

	if !reg.SupportsBackend("checkpointing", "redis") {
		t.Error("Expected redis backend support")
	}
	if reg.SupportsBackend("checkpointing", "etcd") {
		t.Error("Did not expect etcd backend")
	}
}

func TestRegistryJSONRoundTrip(t *testing.T) {
	reg := Discover()

	out, err := reg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON failed: %v", err)
	}
	if !strings.Contains(out, `"modules"`) {
		t.Error("Expected modules key in JSON")
	}

	parsed, err := FromJSON([]byte(out))
	if err != nil {
		t.Fatalf("FromJSON failed: %v", err)
	}
	if parsed.APICount() != reg.APICount() {
		t.Errorf("Round trip changed api count: %d != %d", parsed.APICount(), reg.APICount())
	}
}
