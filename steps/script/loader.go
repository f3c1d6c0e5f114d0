package script

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dshills/hotsteps/steps"
	"github.com/dshills/hotsteps/steps/action"
)

// ParseDefinitionYAML decodes and validates a script from YAML (or JSON)
// bytes.
func ParseDefinitionYAML(data []byte) (Definition, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Definition{}, fmt.Errorf("script: definition payload is empty")
	}
	var def Definition
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		return Definition{}, fmt.Errorf("script: decode definition: %w", err)
	}
	if err := def.Validate(); err != nil {
		return Definition{}, fmt.Errorf("script: %w", err)
	}
	return def, nil
}

// LoadDefinitionReader reads a script from r.
func LoadDefinitionReader(r io.Reader) (Definition, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return Definition{}, fmt.Errorf("script: read definition: %w", err)
	}
	return ParseDefinitionYAML(content)
}

// LoadDefinitionFile reads a script from path.
func LoadDefinitionFile(path string) (Definition, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Definition{}, fmt.Errorf("script: read %s: %w", path, err)
	}
	def, parseErr := ParseDefinitionYAML(content)
	if parseErr != nil {
		return Definition{}, fmt.Errorf("script: %s: %w", path, parseErr)
	}
	return def, nil
}

// LoadFile reads the script at path and builds its Sequence.
func LoadFile(path string, registry *action.Registry) (steps.Sequence, error) {
	def, err := LoadDefinitionFile(path)
	if err != nil {
		return nil, err
	}
	seq, err := Build(def, registry)
	if err != nil {
		return nil, fmt.Errorf("script: %s: %w", path, err)
	}
	return seq, nil
}
