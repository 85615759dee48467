package secret

import (
	"context"
	"errors"
	"testing"
)

func TestRegistry_RegisterAndCreate(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register("stub", func(cfg map[string]any) (Provider, error) {
		return &stubProvider{name: "stub"}, nil
	}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	p, err := reg.Create("stub", nil)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if p.Name() != "stub" {
		t.Errorf("Name() = %q, want stub", p.Name())
	}
}

func TestRegistry_Errors(t *testing.T) {
	reg := NewRegistry()
	factory := func(map[string]any) (Provider, error) { return &stubProvider{name: "stub"}, nil }
	_ = reg.Register("stub", factory)

	if err := reg.Register("stub", factory); !errors.Is(err, ErrInvalidRef) {
		t.Errorf("duplicate Register() error = %v, want ErrInvalidRef", err)
	}
	if err := reg.Register("  ", factory); !errors.Is(err, ErrInvalidRef) {
		t.Errorf("blank Register() error = %v, want ErrInvalidRef", err)
	}
	if _, err := reg.Create("missing", nil); !errors.Is(err, ErrProviderNotFound) {
		t.Errorf("Create(missing) error = %v, want ErrProviderNotFound", err)
	}
}

func TestDefaultRegistry(t *testing.T) {
	if got := DefaultRegistry.List(); len(got) != 2 || got[0] != "env" || got[1] != "file" {
		t.Errorf("List() = %v, want [env file]", got)
	}

	t.Setenv("API_TOKEN", "abc")
	env, err := DefaultRegistry.Create("env", nil)
	if err != nil {
		t.Fatalf("Create(env) error = %v", err)
	}
	if v, err := env.Resolve(context.Background(), "API_TOKEN"); err != nil || v != "abc" {
		t.Errorf("Resolve() = %q, %v, want abc", v, err)
	}

	if _, err := DefaultRegistry.Create("file", nil); !errors.Is(err, ErrInvalidRef) {
		t.Errorf("Create(file) without dir error = %v, want ErrInvalidRef", err)
	}
}
