package document

import (
	"fmt"
	"strings"
)

// Separator joins path segments in a dot path.
const Separator = "."

// SplitPath splits and validates a dot path.
func SplitPath(dot string) ([]string, error) {
	if dot == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	segments := strings.Split(dot, Separator)
	if err := ValidateSegments(segments); err != nil {
		return nil, fmt.Errorf("%w (path %q)", err, dot)
	}
	return segments, nil
}

// JoinPath builds the dot path of key name under the given parent segments.
// An empty parent yields name on its own.
func JoinPath(parent []string, name string) string {
	if len(parent) == 0 {
		return name
	}
	return strings.Join(parent, Separator) + Separator + name
}

// ValidateSegments checks that every segment is usable as a mapping key.
func ValidateSegments(segments []string) error {
	if len(segments) == 0 {
		return fmt.Errorf("%w: no segments", ErrInvalidPath)
	}
	for i, s := range segments {
		switch {
		case s == "":
			return fmt.Errorf("%w: empty segment at position %d", ErrInvalidPath, i)
		case strings.Contains(s, Separator):
			return fmt.Errorf("%w: segment %q contains %q", ErrInvalidPath, s, Separator)
		case strings.ContainsAny(s, "\n\r\x00"):
			return fmt.Errorf("%w: segment %q contains a control character", ErrInvalidPath, s)
		}
	}
	return nil
}
