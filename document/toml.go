package document

import (
	"bytes"

	"github.com/pelletier/go-toml/v2"
)

// TOMLStrategy handles .toml files using pelletier/go-toml.
type TOMLStrategy struct{}

// NewTOMLStrategy creates a TOML strategy.
func NewTOMLStrategy() *TOMLStrategy {
	return &TOMLStrategy{}
}

// Name returns "toml".
func (s *TOMLStrategy) Name() string { return "toml" }

// Extensions returns the TOML file extensions.
func (s *TOMLStrategy) Extensions() []string { return []string{".toml"} }

// Decode parses a TOML document.
func (s *TOMLStrategy) Decode(data []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return make(map[string]any), nil
	}

	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return normalizeRoot(raw)
}

// Encode serializes the tree as TOML. Nested mappings become tables.
func (s *TOMLStrategy) Encode(tree map[string]any) ([]byte, error) {
	if tree == nil {
		tree = map[string]any{}
	}
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(true)
	if err := enc.Encode(tree); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var _ Strategy = (*TOMLStrategy)(nil)
