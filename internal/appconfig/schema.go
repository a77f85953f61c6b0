package appconfig

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Schema is the JSON schema config files are validated against.
var Schema = map[string]any{
	"$schema":              "http://json-schema.org/draft-07/schema#",
	"type":                 "object",
	"additionalProperties": false,
	"properties": map[string]any{
		"iterations":   map[string]any{"type": "integer", "minimum": 1},
		"runs":         map[string]any{"type": "integer", "minimum": 1},
		"perIteration": map[string]any{"type": "boolean"},
		"divisor":      map[string]any{"type": "number", "exclusiveMinimum": 0},
		"warmupMillis": map[string]any{"type": "integer", "minimum": 0},
		"innerRepeats": map[string]any{"type": "integer", "minimum": 1},
		"maxRuns":      map[string]any{"type": "integer", "minimum": 0},
		"timer":        map[string]any{"type": "string", "enum": []any{"auto", "counter", "monotonic", "cycles"}},
		"format":       map[string]any{"type": "string", "enum": []any{"json", "yaml", "csv"}},
		"dataDir":      map[string]any{"type": "string"},
		"logFile":      map[string]any{"type": "string"},
		"metricsFile":  map[string]any{"type": "string"},
		"traceFile":    map[string]any{"type": "string"},
		"baselinePath": map[string]any{"type": "string"},
		"alpha":        map[string]any{"type": "number", "exclusiveMinimum": 0, "exclusiveMaximum": 1},
		"debug":        map[string]any{"type": "boolean"},
	},
}

// ValidateDocument checks raw config JSON against Schema.
func ValidateDocument(doc []byte) error {
	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(Schema), gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}
	var details []string
	for _, desc := range result.Errors() {
		details = append(details, desc.String())
	}
	return fmt.Errorf("config failed validation: %s", strings.Join(details, "; "))
}
