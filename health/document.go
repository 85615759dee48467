package health

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/jonwraymond/confcache/document"
)

// DocumentCheckerConfig configures the document health checker.
type DocumentCheckerConfig struct {
	// Path is the configuration file to check.
	Path string

	// AllowMissing reports a missing file as degraded rather than unhealthy,
	// for managers that create the file on first save.
	AllowMissing bool

	// Parse decodes the file on every check to catch syntax errors.
	Parse bool

	// Pending reports whether the in-memory document has unsaved changes.
	// Optional.
	Pending func() bool

	// Registry resolves the file's format. Default: document.DefaultRegistry.
	Registry *document.Registry

	// Strategy fixes the format and takes precedence over Registry.
	Strategy document.Strategy
}

// DocumentChecker checks that a configuration file is present, has a
// supported format and, optionally, still parses.
type DocumentChecker struct {
	config DocumentCheckerConfig
}

// NewDocumentChecker creates a new document health checker.
func NewDocumentChecker(config DocumentCheckerConfig) *DocumentChecker {
	if config.Registry == nil {
		config.Registry = document.DefaultRegistry
	}
	return &DocumentChecker{config: config}
}

// Name returns the name of this checker.
func (d *DocumentChecker) Name() string {
	return "document"
}

// Check performs the document health check.
func (d *DocumentChecker) Check(ctx context.Context) Result {
	if r, done := canceled(ctx); done {
		return r
	}

	details := map[string]any{"path": d.config.Path}

	strategy := d.config.Strategy
	if strategy == nil {
		var err error
		if strategy, err = d.config.Registry.StrategyFor(d.config.Path); err != nil {
			return Unhealthy("unsupported document format", err).WithDetails(details)
		}
	}
	details["format"] = strategy.Name()

	info, err := os.Stat(d.config.Path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if d.config.AllowMissing {
			return Degraded("document not created yet").WithDetails(details)
		}
		return Unhealthy("document missing", fmt.Errorf("%w: %s", ErrDocumentMissing, d.config.Path)).WithDetails(details)
	case err != nil:
		return Unhealthy("document not accessible", err).WithDetails(details)
	case info.IsDir():
		return Unhealthy("document path is a directory", document.ErrIsDirectory).WithDetails(details)
	}
	details["size_bytes"] = info.Size()
	details["modified"] = info.ModTime()

	if d.config.Parse {
		if _, err := document.Load(d.config.Path, strategy); err != nil {
			return Unhealthy("document does not parse", err).WithDetails(details)
		}
	}

	if d.config.Pending != nil && d.config.Pending() {
		details["pending_changes"] = true
		return Degraded("document has unsaved changes").WithDetails(details)
	}

	return Healthy("document readable").WithDetails(details)
}
