package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/restsql/internal/registry"
)

// Scenario is one end-to-end query test.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Backends are registered under their names before the query runs.
	Backends []BackendSpec `yaml:"backends"`

	// Engine overrides engine options.
	Engine EngineSpec `yaml:"engine,omitempty"`

	// Query is the query document.
	Query map[string]any `yaml:"query"`

	// Expect describes the outcome.
	Expect Expect `yaml:"expect"`
}

// BackendSpec declares one backend.
type BackendSpec struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"` // sql, impala or es

	// Setup holds SQL statements run against the fresh database (sql and
	// impala only).
	Setup string `yaml:"setup,omitempty"`

	// Tables maps table name to column name to declared type.
	Tables map[string]map[string]string `yaml:"tables,omitempty"`

	// Responses maps index name to the reply of every search on it (es only).
	Responses map[string]any `yaml:"responses,omitempty"`
}

// EngineSpec overrides engine options. Unset fields keep engine defaults.
type EngineSpec struct {
	PushDown *bool `yaml:"push_down,omitempty"`
	Parallel bool  `yaml:"parallel,omitempty"`
	MaxJoins int   `yaml:"max_joins,omitempty"`
}

// Expect is the expected outcome of a scenario.
type Expect struct {
	// Columns is the exact output column order.
	Columns []string `yaml:"columns,omitempty"`

	// Rows are compared as JSON values, in order.
	Rows []map[string]any `yaml:"rows,omitempty"`

	// Error is the expected error code. When set, the query must fail.
	Error string `yaml:"error,omitempty"`

	// Requests is the expected number of backend requests.
	Requests *int `yaml:"requests,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// strict decoding catches typos like "expects:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// LoadDir loads every *.yaml scenario in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	slices.Sort(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Backends) == 0 {
		return fmt.Errorf("backends list is required and must be non-empty")
	}
	if len(s.Query) == 0 {
		return fmt.Errorf("query is required")
	}

	seen := make(map[string]bool, len(s.Backends))
	for i, b := range s.Backends {
		if b.Name == "" {
			return fmt.Errorf("backends[%d]: name is required", i)
		}
		if seen[b.Name] {
			return fmt.Errorf("backends[%d]: duplicate name %q", i, b.Name)
		}
		seen[b.Name] = true

		kind := registry.Kind(b.Kind)
		if !kind.Valid() {
			return fmt.Errorf("backends[%d]: unknown kind %q", i, b.Kind)
		}
		if kind == registry.KindES && b.Setup != "" {
			return fmt.Errorf("backends[%d]: setup is only valid for relational backends", i)
		}
		if kind.Relational() && len(b.Responses) > 0 {
			return fmt.Errorf("backends[%d]: responses are only valid for es backends", i)
		}
	}

	if s.Expect.Error != "" && (len(s.Expect.Rows) > 0 || len(s.Expect.Columns) > 0) {
		return fmt.Errorf("expect: error excludes rows and columns")
	}
	if s.Expect.Requests != nil && *s.Expect.Requests < 0 {
		return fmt.Errorf("expect: requests must be non-negative")
	}
	return nil
}
