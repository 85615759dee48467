package document

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrategies_DecodeSameShape(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		strategy Strategy
		data     string
	}{
		{
			name:     "json",
			strategy: NewJSONStrategy(),
			data:     `{"database": {"host": "localhost", "port": 5432}, "debug": true}`,
		},
		{
			name:     "yaml",
			strategy: NewYAMLStrategy(),
			data: `
database:
  host: localhost
  port: 5432
debug: true
`,
		},
		{
			name:     "toml",
			strategy: NewTOMLStrategy(),
			data: `
debug = true

[database]
host = "localhost"
port = 5432
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tree, err := tt.strategy.Decode([]byte(tt.data))

			require.NoError(t, err)
			assert.Equal(t, true, tree["debug"])
			db, ok := tree["database"].(map[string]any)
			require.True(t, ok, "database should decode as map[string]any, got %T", tree["database"])
			assert.Equal(t, "localhost", db["host"])
			assert.Equal(t, int64(5432), db["port"])
		})
	}
}

func TestStrategies_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, s := range []Strategy{NewJSONStrategy(), NewYAMLStrategy(), NewTOMLStrategy()} {
		t.Run(s.Name(), func(t *testing.T) {
			t.Parallel()

			tree := map[string]any{
				"app": map[string]any{
					"name":    "confcache",
					"workers": int64(4),
				},
			}

			data, err := s.Encode(tree)
			require.NoError(t, err)

			decoded, err := s.Decode(data)
			require.NoError(t, err)
			assert.Equal(t, tree, decoded)
		})
	}
}

func TestStrategies_EmptyInput(t *testing.T) {
	t.Parallel()

	for _, s := range []Strategy{NewJSONStrategy(), NewYAMLStrategy(), NewTOMLStrategy()} {
		tree, err := s.Decode([]byte("  \n"))
		require.NoError(t, err, s.Name())
		assert.Empty(t, tree, s.Name())
		assert.NotNil(t, tree, s.Name())
	}
}

func TestJSONStrategy_RejectsNonMappingRoot(t *testing.T) {
	t.Parallel()

	_, err := NewJSONStrategy().Decode([]byte(`[1, 2, 3]`))

	require.ErrorIs(t, err, ErrNotMapping)
}

func TestRegistry_StrategyFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want string
	}{
		{"config.json", "json"},
		{"config.yaml", "yaml"},
		{"config.YML", "yaml"},
		{"dir/settings.toml", "toml"},
	}

	for _, tt := range tests {
		s, err := StrategyFor(tt.path)
		require.NoError(t, err, tt.path)
		assert.Equal(t, tt.want, s.Name(), tt.path)
	}

	_, err := StrategyFor("config.ini")
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestRegistry_Lookup_WithoutDot(t *testing.T) {
	t.Parallel()

	s, ok := DefaultRegistry.Lookup("toml")

	require.True(t, ok)
	assert.Equal(t, "toml", s.Name())
	assert.Equal(t, []string{".json", ".toml", ".yaml", ".yml"}, DefaultRegistry.Extensions())
}

func TestLoadSave_File(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	s := NewYAMLStrategy()
	tree := map[string]any{"api": map[string]any{"timeout": int64(30)}}

	require.NoError(t, Save(path, s, tree))

	loaded, err := Load(path, s)
	require.NoError(t, err)
	assert.Equal(t, tree, loaded)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file should be renamed away")
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "absent.json"), NewJSONStrategy())

	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoad_Directory(t *testing.T) {
	t.Parallel()

	_, err := Load(t.TempDir(), NewJSONStrategy())

	require.ErrorIs(t, err, ErrIsDirectory)
}

func TestLoad_DecodeError(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"a": `), 0o600))

	_, err := Load(path, NewJSONStrategy())

	require.ErrorIs(t, err, ErrDecode)
	assert.Contains(t, err.Error(), "broken.json")
}
