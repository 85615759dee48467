package manager

import (
	"context"
	"fmt"

	"go.uber.org/fx"
)

// NewModule creates an Fx module that provides a *Manager for the document
// at path under the named tag `name:"<name>"`. The document is loaded when
// the application starts and the manager is closed when it stops.
//
//nolint:ireturn // fx.Option is the standard return type for Fx modules
func NewModule(name, path string, cfg Config, opts ...Option) fx.Option {
	if name == "" {
		return fx.Error(ErrEmptyName)
	}

	return fx.Module(name, fx.Provide(
		fx.Annotate(
			func(lifecycle fx.Lifecycle) (*Manager, error) {
				m, err := New(path, cfg, opts...)
				if err != nil {
					return nil, err
				}

				lifecycle.Append(fx.Hook{
					OnStart: m.Load,
					OnStop: func(context.Context) error {
						return m.Close()
					},
				})

				return m, nil
			},
			fx.ResultTags(fmt.Sprintf(`name:"%s"`, name)),
		),
	))
}
