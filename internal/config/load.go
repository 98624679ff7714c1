package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
)

// prettyOptions matches the layout of the files the sweep produces: two
// space indentation with keys in sorted order and one array element per line.
var prettyOptions = &pretty.Options{
	Width:    0,
	Prefix:   "",
	Indent:   "  ",
	SortKeys: true,
}

// Pretty formats a JSON document with sorted keys and two-space indentation.
func Pretty(raw []byte) []byte {
	return pretty.PrettyOptions(raw, prettyOptions)
}

// ReadDocument reads a JSON file and checks that it parses. A missing file
// is reported as ErrConfigNotFound and invalid JSON as ErrMalformedConfig.
func ReadDocument(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("%w: %s is not valid JSON", ErrMalformedConfig, path)
	}
	return raw, nil
}

// Load reads and decodes the configuration at path.
func Load(path string) (*Config, error) {
	raw, err := ReadDocument(path)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

// Parse decodes a configuration document held in memory.
func Parse(raw []byte) (*Config, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("%w: document is not valid JSON", ErrMalformedConfig)
	}
	if !gjson.GetBytes(raw, "@this").IsObject() {
		return nil, fmt.Errorf("%w: document root must be an object", ErrMalformedConfig)
	}

	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedConfig, err)
	}
	if cfg.Results == nil {
		cfg.Results = make(map[string]any)
	}
	cfg.raw = raw
	return &cfg, nil
}

// Encode returns the document with the fields a run owns (dataset counts
// and results) replaced by the values held in c.
func (c *Config) Encode() ([]byte, error) {
	raw := c.raw
	if raw == nil {
		raw = []byte("{}")
	}

	var err error
	if raw, err = sjson.SetBytes(raw, "dataset.instances", c.Dataset.Instances); err != nil {
		return nil, fmt.Errorf("failed to set dataset.instances: %w", err)
	}
	if raw, err = sjson.SetBytes(raw, "dataset.features", c.Dataset.Features); err != nil {
		return nil, fmt.Errorf("failed to set dataset.features: %w", err)
	}

	results := c.Results
	if results == nil {
		results = map[string]any{}
	}
	encoded, err := json.Marshal(finite(results))
	if err != nil {
		return nil, fmt.Errorf("failed to encode results: %w", err)
	}
	if raw, err = sjson.SetRawBytes(raw, "results", encoded); err != nil {
		return nil, fmt.Errorf("failed to set results: %w", err)
	}

	return Pretty(raw), nil
}

// finite replaces NaN and infinite floats with the strings "NaN",
// "Infinity" and "-Infinity", which encoding/json would otherwise reject.
func finite(v any) any {
	switch v := v.(type) {
	case float64:
		switch {
		case math.IsNaN(v):
			return "NaN"
		case math.IsInf(v, 1):
			return "Infinity"
		case math.IsInf(v, -1):
			return "-Infinity"
		}
		return v
	case float32:
		return finite(float64(v))
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = finite(e)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = finite(e)
		}
		return out
	case []float64:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = finite(e)
		}
		return out
	}
	return v
}

// Save writes the configuration to path, replacing whatever is there. The
// write is not atomic.
func (c *Config) Save(path string) error {
	out, err := c.Encode()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, out, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	c.raw = out
	return nil
}
