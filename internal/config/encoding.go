package config

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// Encoding is the static table of valid names the sweep draws from.
type Encoding struct {
	Optimizers []string

	raw []byte
}

// Raw returns the full encoding document.
func (e *Encoding) Raw() []byte {
	return e.raw
}

// LoadEncoding reads the encoding table at path. The document must hold an
// "optimizer" array of strings.
func LoadEncoding(path string) (*Encoding, error) {
	raw, err := ReadDocument(path)
	if err != nil {
		return nil, err
	}
	return ParseEncoding(raw)
}

// ParseEncoding decodes an encoding table held in memory.
func ParseEncoding(raw []byte) (*Encoding, error) {
	opt := gjson.GetBytes(raw, "optimizer")
	if !opt.Exists() {
		return nil, fmt.Errorf("%w: encoding has no \"optimizer\" list", ErrMalformedConfig)
	}
	if !opt.IsArray() {
		return nil, fmt.Errorf("%w: encoding \"optimizer\" must be a list", ErrMalformedConfig)
	}

	enc := &Encoding{raw: raw}
	for i, item := range opt.Array() {
		if item.Type != gjson.String {
			return nil, fmt.Errorf("%w: encoding optimizer[%d] must be a string", ErrMalformedConfig, i)
		}
		enc.Optimizers = append(enc.Optimizers, item.String())
	}
	return enc, nil
}
