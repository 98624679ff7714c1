package config

import (
	"fmt"
	"math"
)

// Params holds the opaque hyperparameters of one phase as decoded from JSON.
// The typed getters return def when the key is absent or null, and
// ErrMalformedConfig when the stored value has the wrong type.
type Params map[string]any

// Has reports whether key is present and non-null.
func (p Params) Has(key string) bool {
	v, ok := p[key]
	return ok && v != nil
}

// Float returns a numeric parameter.
func (p Params) Float(key string, def float64) (float64, error) {
	if !p.Has(key) {
		return def, nil
	}
	switch v := p[key].(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	}
	return 0, p.typeError(key, "number")
}

// Int returns an integral numeric parameter.
func (p Params) Int(key string, def int) (int, error) {
	if !p.Has(key) {
		return def, nil
	}
	switch v := p[key].(type) {
	case int:
		return v, nil
	case float64:
		if v == math.Trunc(v) {
			return int(v), nil
		}
	}
	return 0, p.typeError(key, "integer")
}

// String returns a string parameter.
func (p Params) String(key, def string) (string, error) {
	if !p.Has(key) {
		return def, nil
	}
	if s, ok := p[key].(string); ok {
		return s, nil
	}
	return "", p.typeError(key, "string")
}

// Bool returns a boolean parameter.
func (p Params) Bool(key string, def bool) (bool, error) {
	if !p.Has(key) {
		return def, nil
	}
	if b, ok := p[key].(bool); ok {
		return b, nil
	}
	return false, p.typeError(key, "boolean")
}

// Strings returns a list of strings. A single string is accepted as a
// one-element list.
func (p Params) Strings(key string, def []string) ([]string, error) {
	if !p.Has(key) {
		return def, nil
	}
	switch v := p[key].(type) {
	case string:
		return []string{v}, nil
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, p.typeError(key, "list of strings")
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, p.typeError(key, "list of strings")
}

// Merge returns a new Params holding p overlaid with the non-null entries of
// each of others, in order.
func (p Params) Merge(others ...Params) Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	for _, o := range others {
		for k, v := range o {
			if v != nil {
				out[k] = v
			}
		}
	}
	return out
}

func (p Params) typeError(key, want string) error {
	return fmt.Errorf("%w: hyperparameter %q must be a %s, got %T", ErrMalformedConfig, key, want, p[key])
}
