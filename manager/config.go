package manager

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

// Config configures a Manager.
type Config struct {
	// EnableCache turns the cache engine on. When false every read goes
	// to the document and cache statistics stay at zero.
	EnableCache bool `yaml:"enable_cache"`

	// CacheSize bounds the number of cached entries.
	CacheSize int `yaml:"cache_size"`

	// CacheTTL is the default lifetime of cached entries. Zero means
	// entries never expire.
	CacheTTL time.Duration `yaml:"cache_ttl"`

	// NotFoundTTL is the lifetime of cached defaults for missing paths.
	// Zero falls back to CacheTTL.
	NotFoundTTL time.Duration `yaml:"not_found_ttl"`

	// CleanupInterval is how often expired entries are purged in the
	// background. Zero disables the janitor.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`

	// CoalesceLoads shares one loader run between concurrent lazy
	// section misses for the same path.
	CoalesceLoads bool `yaml:"coalesce_loads"`

	// AutoCreate starts from an empty document when the file is missing.
	AutoCreate bool `yaml:"auto_create"`

	// IORetries is the number of attempts for document reads and writes.
	IORetries int `yaml:"io_retries"`

	// IOTimeout bounds each read or write attempt. Zero disables it.
	IOTimeout time.Duration `yaml:"io_timeout"`
}

// DefaultConfig returns the default manager configuration.
func DefaultConfig() Config {
	return Config{
		EnableCache: true,
		CacheSize:   1000,
		CacheTTL:    time.Hour,
		IORetries:   3,
		IOTimeout:   10 * time.Second,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.EnableCache && c.CacheSize <= 0 {
		return fmt.Errorf("%w: cache_size must be > 0, got %d", ErrInvalidConfig, c.CacheSize)
	}
	for name, d := range map[string]time.Duration{
		"cache_ttl":        c.CacheTTL,
		"not_found_ttl":    c.NotFoundTTL,
		"cleanup_interval": c.CleanupInterval,
		"io_timeout":       c.IOTimeout,
	} {
		if d < 0 {
			return fmt.Errorf("%w: %s must not be negative, got %v", ErrInvalidConfig, name, d)
		}
	}
	if c.IORetries < 0 {
		return fmt.Errorf("%w: io_retries must not be negative, got %d", ErrInvalidConfig, c.IORetries)
	}
	return nil
}

// ParseConfig decodes YAML data over DefaultConfig and validates the
// result. at selects a nested mapping by dot path ("app.config"); empty
// means the whole document.
func ParseConfig(data []byte, at string) (Config, error) {
	cfg := DefaultConfig()
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}

	if at == "" {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	} else {
		p, err := yaml.PathString("$." + strings.Trim(at, "."))
		if err != nil {
			return Config{}, fmt.Errorf("%w: path %q: %w", ErrInvalidConfig, at, err)
		}
		if err := p.Read(bytes.NewReader(data), &cfg); err != nil {
			if yaml.IsNotFoundNodeError(err) {
				return Config{}, fmt.Errorf("%w: path %q not found", ErrInvalidConfig, at)
			}
			return Config{}, fmt.Errorf("%w: path %q: %w", ErrInvalidConfig, at, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads a YAML file and parses it with ParseConfig.
func LoadConfig(path, at string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path)) // #nosec G304 -- caller-chosen config path
	if err != nil {
		return Config{}, fmt.Errorf("reading config %q: %w", path, err)
	}
	return ParseConfig(data, at)
}
