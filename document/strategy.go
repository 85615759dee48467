package document

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Strategy converts between raw file contents and a normalized tree.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Decode must return a non-nil map for empty input.
type Strategy interface {
	// Name identifies the format, e.g. "json".
	Name() string

	// Extensions lists the lower-case file extensions handled, including the dot.
	Extensions() []string

	// Decode parses raw bytes into a normalized tree.
	Decode(data []byte) (map[string]any, error)

	// Encode serializes a tree.
	Encode(tree map[string]any) ([]byte, error)
}

// Registry maps file extensions to strategies.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{strategies: make(map[string]Strategy)}
}

// Register adds a strategy under each of its extensions, replacing any
// previous registration for the same extension.
func (r *Registry) Register(s Strategy) error {
	if s == nil || len(s.Extensions()) == 0 {
		return errors.New("document: invalid strategy registration")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ext := range s.Extensions() {
		r.strategies[strings.ToLower(ext)] = s
	}
	return nil
}

// Lookup returns the strategy registered for ext (".yaml", "yaml", ".YML" ...).
func (r *Registry) Lookup(ext string) (Strategy, bool) {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	r.mu.RLock()
	s, ok := r.strategies[ext]
	r.mu.RUnlock()
	return s, ok
}

// StrategyFor picks a strategy from the extension of path.
func (r *Registry) StrategyFor(path string) (Strategy, error) {
	ext := filepath.Ext(path)
	s, ok := r.Lookup(ext)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	return s, nil
}

// Extensions returns the registered extensions in sorted order.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exts := make([]string, 0, len(r.strategies))
	for ext := range r.strategies {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// DefaultRegistry holds the built-in JSON, YAML and TOML strategies.
var DefaultRegistry = newDefaultRegistry()

func newDefaultRegistry() *Registry {
	r := NewRegistry()
	_ = r.Register(NewJSONStrategy())
	_ = r.Register(NewYAMLStrategy())
	_ = r.Register(NewTOMLStrategy())
	return r
}

// StrategyFor resolves path against DefaultRegistry.
func StrategyFor(path string) (Strategy, error) {
	return DefaultRegistry.StrategyFor(path)
}

// Load reads and decodes the file at path.
// A missing file is reported with an error matching os.ErrNotExist.
func Load(path string, s Strategy) (map[string]any, error) {
	cleanPath := filepath.Clean(path)

	stat, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("stat file %q: %w", cleanPath, err)
	}
	if stat.IsDir() {
		return nil, fmt.Errorf("path %q: %w", cleanPath, ErrIsDirectory)
	}

	data, err := os.ReadFile(cleanPath) // #nosec G304 -- path is cleaned and validated
	if err != nil {
		return nil, fmt.Errorf("reading file %q: %w", cleanPath, err)
	}

	tree, err := s.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s file %q: %w", ErrDecode, s.Name(), cleanPath, err)
	}
	return tree, nil
}

// Save encodes tree and writes it to path. The file is replaced atomically
// through a temporary file in the same directory.
func Save(path string, s Strategy, tree map[string]any) error {
	cleanPath := filepath.Clean(path)

	data, err := s.Encode(tree)
	if err != nil {
		return fmt.Errorf("%w: %s file %q: %w", ErrEncode, s.Name(), cleanPath, err)
	}

	dir := filepath.Dir(cleanPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %q: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(cleanPath)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file in %q: %w", dir, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing %q: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing %q: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, cleanPath); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replacing %q: %w", cleanPath, err)
	}
	return nil
}
