package document

import (
	"bytes"
	"encoding/json"
)

// JSONStrategy handles .json files.
type JSONStrategy struct {
	// Indent is used when encoding. Empty means two spaces.
	Indent string
}

// NewJSONStrategy creates a JSON strategy with two-space indentation.
func NewJSONStrategy() *JSONStrategy {
	return &JSONStrategy{Indent: "  "}
}

// Name returns "json".
func (s *JSONStrategy) Name() string { return "json" }

// Extensions returns the JSON file extensions.
func (s *JSONStrategy) Extensions() []string { return []string{".json"} }

// Decode parses JSON. Numbers that fit an int64 decode as int64.
func (s *JSONStrategy) Decode(data []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return make(map[string]any), nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return normalizeRoot(raw)
}

// Encode serializes the tree as indented JSON with a trailing newline.
func (s *JSONStrategy) Encode(tree map[string]any) ([]byte, error) {
	indent := s.Indent
	if indent == "" {
		indent = "  "
	}
	if tree == nil {
		tree = map[string]any{}
	}
	out, err := json.MarshalIndent(tree, "", indent)
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

var _ Strategy = (*JSONStrategy)(nil)
