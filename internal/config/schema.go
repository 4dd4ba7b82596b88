package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const schemaURL = "winswitch://config.schema.json"

// configSchema describes the JSON config file. Item types of timeslotsofday
// are left open so a bad entry is skipped later instead of rejecting the file.
const configSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "ignored_keywords":        {"type": "array", "items": {"type": "string"}},
    "enable_logging":          {"type": "boolean"},
    "background_mode":         {"type": "boolean"},
    "logfilepath":             {"type": "string"},
    "timeslotsofday":          {"type": "array"},
    "min_delay":               {"type": "integer", "minimum": 0},
    "max_delay":               {"type": "integer", "minimum": 0},
    "target_apps":             {"type": "array", "items": {"type": "string"}},
    "switch_back":             {"type": "boolean"},
    "switch_back_delay_ms":    {"type": "integer", "minimum": 0},
    "idle_window_seconds":     {"type": "integer", "minimum": 0},
    "recovery_sleep_seconds":  {"type": "integer", "minimum": 0},
    "timeslot_sleep_seconds":  {"type": "integer", "minimum": 0},
    "inter_cycle_min_seconds": {"type": "integer", "minimum": 0},
    "inter_cycle_max_seconds": {"type": "integer", "minimum": 0}
  }
}`

var (
	compiledSchema *jsonschema.Schema
	compileOnce    sync.Once
	compileErr     error
)

func schema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, strings.NewReader(configSchema)); err != nil {
			compileErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiledSchema, compileErr = compiler.Compile(schemaURL)
	})
	return compiledSchema, compileErr
}

// validateJSON checks raw JSON against the config schema and returns the
// decoded instance for unknown-key inspection.
func validateJSON(data []byte) (map[string]any, error) {
	instance, err := unmarshalJSON(data)
	if err != nil {
		return nil, fmt.Errorf("decode JSON: %w", err)
	}

	s, err := schema()
	if err != nil {
		return nil, err
	}
	if err := s.Validate(instance); err != nil {
		return nil, fmt.Errorf("schema validation: %w", err)
	}

	obj, _ := instance.(map[string]any)
	return obj, nil
}

// unmarshalJSON decodes data with json.Number preserved, as jsonschema/v5
// expects for exact "integer" checks, and rejects trailing content.
func unmarshalJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if t, _ := dec.Token(); t != nil {
		return nil, fmt.Errorf("invalid character %v after top-level value", t)
	}
	return doc, nil
}
