package manager

import "errors"

var (
	// ErrInvalidConfig indicates a Config failed validation or decoding.
	ErrInvalidConfig = errors.New("manager: invalid config")

	// ErrClosed indicates the manager was closed.
	ErrClosed = errors.New("manager: closed")

	// ErrEmptyName indicates NewModule was called without a module name.
	ErrEmptyName = errors.New("manager: empty module name")

	// ErrNotMapping indicates a value write would replace a section with a
	// scalar or descend through a scalar.
	ErrNotMapping = errors.New("manager: value is not a mapping")
)
