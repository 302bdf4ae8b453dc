package platform

import (
	"encoding/json"
	"strings"
	"time"
)

// APIInfo describes a single public operation.
type APIInfo struct {
	// Name is the operation name, e.g. "Runner.Run".
	Name string `json:"name"`

	// Description says what the operation does.
	Description string `json:"description"`

	// Signature is the Go signature of the operation.
	Signature string `json:"signature"`

	// Example is an optional usage snippet.
	Example string `json:"example,omitempty"`
}

// ModuleInfo describes a module and its public operations.
type ModuleInfo struct {
	// Name is the module name, e.g. "graph".
	Name string `json:"name"`

	// Description says what the module is for.
	Description string `json:"description"`

	// APIs lists the module's public operations.
	APIs []APIInfo `json:"apis"`
}

// FeatureInfo describes a platform capability.
type FeatureInfo struct {
	// Name is the feature name, e.g. "checkpointing".
	Name string `json:"name"`

	// Summary is a one-line description.
	Summary string `json:"summary"`

	// Description is the full feature description.
	Description string `json:"description,omitempty"`

	// EnabledByDefault reports whether the feature is on by default.
	EnabledByDefault bool `json:"enabled_by_default"`

	// Backends lists the feature's available backends, if any.
	Backends []string `json:"backends,omitempty"`
}

// Metadata holds summary information about a registry.
type Metadata struct {
	// GeneratedAt is when the registry was built.
	GeneratedAt time.Time `json:"generated_at"`

	// ModuleCount is the number of modules.
	ModuleCount int `json:"module_count"`

	// APICount is the total number of operations across modules.
	APICount int `json:"api_count"`

	// FeatureCount is the number of features.
	FeatureCount int `json:"feature_count"`
}

// Registry is the platform's self-knowledge: its version, modules,
// public operations, and features.
type Registry struct {
	// Version is the framework version.
	Version string `json:"version"`

	// Modules lists the platform's modules.
	Modules []ModuleInfo `json:"modules"`

	// Features lists the platform's capabilities.
	Features []FeatureInfo `json:"features"`

	// Metadata summarizes the registry.
	Metadata Metadata `json:"metadata"`
}

// FindModule returns the module with the given name.
func (r *Registry) FindModule(name string) (ModuleInfo, bool) {
	for _, m := range r.Modules {
		if m.Name == name {
			return m, true
		}
	}
	return ModuleInfo{}, false
}

// FindAPI returns the first operation matching name. Exact matches win
// over case-insensitive substring matches.
func (r *Registry) FindAPI(name string) (APIInfo, bool) {
	for _, m := range r.Modules {
		for _, api := range m.APIs {
			if api.Name == name {
				return api, true
			}
		}
	}
	lower := strings.ToLower(name)
	for _, m := range r.Modules {
		for _, api := range m.APIs {
			if strings.Contains(strings.ToLower(api.Name), lower) {
				return api, true
			}
		}
	}
	return APIInfo{}, false
}

// SearchAPIs returns all operations whose name or description contains
// the pattern, case insensitive.
func (r *Registry) SearchAPIs(pattern string) []APIInfo {
	lower := strings.ToLower(pattern)
	var results []APIInfo
	for _, m := range r.Modules {
		for _, api := range m.APIs {
			if strings.Contains(strings.ToLower(api.Name), lower) ||
				strings.Contains(strings.ToLower(api.Description), lower) {
				results = append(results, api)
			}
		}
	}
	return results
}

// Search returns the names of modules, operations, and features whose
// name or description matches the query, case insensitive.
func (r *Registry) Search(query string) []string {
	lower := strings.ToLower(query)
	var results []string
	for _, m := range r.Modules {
		if strings.Contains(strings.ToLower(m.Name), lower) ||
			strings.Contains(strings.ToLower(m.Description), lower) {
			results = append(results, "module:"+m.Name)
		}
	}
	for _, api := range r.SearchAPIs(query) {
		results = append(results, "api:"+api.Name)
	}
	for _, f := range r.Features {
		if strings.Contains(strings.ToLower(f.Name), lower) ||
			strings.Contains(strings.ToLower(f.Summary), lower) ||
			strings.Contains(strings.ToLower(f.Description), lower) {
			results = append(results, "feature:"+f.Name)
		}
	}
	return results
}

// ModuleNames returns the names of all modules in declaration order.
func (r *Registry) ModuleNames() []string {
	names := make([]string, 0, len(r.Modules))
	for _, m := range r.Modules {
		names = append(names, m.Name)
	}
	return names
}

// APIsInModule returns the operations of the named module.
func (r *Registry) APIsInModule(name string) []APIInfo {
	m, ok := r.FindModule(name)
	if !ok {
		return nil
	}
	return m.APIs
}

// HasFeature reports whether the named feature exists.
func (r *Registry) HasFeature(name string) bool {
	_, ok := r.Feature(name)
	return ok
}

// Feature returns the named feature.
func (r *Registry) Feature(name string) (FeatureInfo, bool) {
	for _, f := range r.Features {
		if f.Name == name {
			return f, true
		}
	}
	return FeatureInfo{}, false
}

// FeatureBackends returns the backends of the named feature.
func (r *Registry) FeatureBackends(name string) []string {
	f, ok := r.Feature(name)
	if !ok {
		return nil
	}
	return f.Backends
}

// SupportsBackend reports whether the named feature lists the backend.
func (r *Registry) SupportsBackend(feature, backend string) bool {
	for _, b := range r.FeatureBackends(feature) {
		if b == backend {
			return true
		}
	}
	return false
}

// APICount returns the total number of operations.
func (r *Registry) APICount() int {
	count := 0
	for _, m := range r.Modules {
		count += len(m.APIs)
	}
	return count
}

// ToJSON serializes the registry to indented JSON.
func (r *Registry) ToJSON() (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ToJSONCompact serializes the registry without indentation.
func (r *Registry) ToJSONCompact() (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// FromJSON parses a registry from JSON.
func FromJSON(data []byte) (*Registry, error) {
	var r Registry
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
