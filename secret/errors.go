package secret

import "errors"

var (
	// ErrMissingEnv indicates a ${VAR} reference names an unset variable.
	ErrMissingEnv = errors.New("secret: missing environment variable")

	// ErrProviderNotFound indicates a secretref names an unknown provider.
	ErrProviderNotFound = errors.New("secret: provider not registered")

	// ErrEmptySecret indicates a provider returned an empty value in strict mode.
	ErrEmptySecret = errors.New("secret: empty value")

	// ErrInvalidRef indicates a malformed reference or provider registration.
	ErrInvalidRef = errors.New("secret: invalid reference")
)
