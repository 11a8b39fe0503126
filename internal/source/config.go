package source

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Spec declares one source in the sources manifest.
type Spec struct {
	Name           string  `json:"name"`
	Concept        string  `json:"concept"`
	Type           string  `json:"type"`
	DeductibleRate float64 `json:"deductible_rate"`
	Path           string  `json:"path"`
}

// manifestSchema constrains sources.json before any source is constructed,
// so a malformed manifest fails startup instead of mid-run.
const manifestSchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "additionalProperties": false,
    "required": ["name", "concept", "type", "deductible_rate", "path"],
    "properties": {
      "name":            {"type": "string", "minLength": 1},
      "concept":         {"type": "string", "minLength": 1},
      "type":            {"type": "string", "minLength": 1},
      "deductible_rate": {"type": "number", "minimum": 0.0, "maximum": 1.0},
      "path":            {"type": "string", "minLength": 1}
    }
  }
}`

// LoadManifest reads and validates the sources manifest, returning sources in
// manifest order.
func LoadManifest(path string, logger *slog.Logger) ([]Source, error) {
	if logger == nil {
		logger = slog.Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources manifest: %w", err)
	}
	if err := validateManifest(data); err != nil {
		return nil, err
	}

	var specs []Spec
	if err := json.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("decode sources manifest: %w", err)
	}

	seen := make(map[string]struct{}, len(specs))
	sources := make([]Source, 0, len(specs))
	for _, spec := range specs {
		name := strings.TrimSpace(spec.Name)
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("sources manifest: duplicate source name %q", name)
		}
		seen[name] = struct{}{}
		sources = append(sources, NewDirectorySource(spec, logger))
	}

	logger.Info("sources.manifest.ok", "path", path, "sources", len(sources))
	return sources, nil
}

func validateManifest(data []byte) error {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("sources.schema.json", bytes.NewReader([]byte(manifestSchema))); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("sources.schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("sources manifest is not valid JSON: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("sources manifest does not match schema: %w", err)
	}
	return nil
}
