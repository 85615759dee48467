package document

import "errors"

var (
	// ErrUnsupportedFormat indicates no strategy is registered for a file extension.
	ErrUnsupportedFormat = errors.New("document: unsupported format")

	// ErrInvalidPath indicates a dot path or path segment is malformed.
	ErrInvalidPath = errors.New("document: invalid path")

	// ErrNotMapping indicates a path traverses a value that is not a mapping.
	ErrNotMapping = errors.New("document: value is not a mapping")

	// ErrIsDirectory indicates a document path points to a directory.
	ErrIsDirectory = errors.New("document: path is a directory, not a file")

	// ErrDecode indicates file contents could not be parsed.
	ErrDecode = errors.New("document: decode failed")

	// ErrEncode indicates a tree could not be serialized.
	ErrEncode = errors.New("document: encode failed")
)
