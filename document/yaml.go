package document

import (
	"bytes"

	"github.com/goccy/go-yaml"
)

// YAMLStrategy handles .yaml and .yml files using goccy/go-yaml.
type YAMLStrategy struct{}

// NewYAMLStrategy creates a YAML strategy.
func NewYAMLStrategy() *YAMLStrategy {
	return &YAMLStrategy{}
}

// Name returns "yaml".
func (s *YAMLStrategy) Name() string { return "yaml" }

// Extensions returns the YAML file extensions.
func (s *YAMLStrategy) Extensions() []string { return []string{".yaml", ".yml"} }

// Decode parses a YAML document whose root must be a mapping.
func (s *YAMLStrategy) Decode(data []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return make(map[string]any), nil
	}

	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return normalizeRoot(raw)
}

// Encode serializes the tree as block-style YAML.
func (s *YAMLStrategy) Encode(tree map[string]any) ([]byte, error) {
	if tree == nil {
		tree = map[string]any{}
	}
	return yaml.MarshalWithOptions(tree, yaml.Indent(2), yaml.IndentSequence(true))
}

var _ Strategy = (*YAMLStrategy)(nil)
