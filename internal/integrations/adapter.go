// Package integrations defines the collaborators around the planner: where
// cylinder maps come from and where motion scripts go.
package integrations

import (
	"context"

	"cylroute/internal/opt"
)

// MapSource loads one cylinder map.
type MapSource interface {
	Name() string
	Load(ctx context.Context) ([]opt.Cylinder, error)
}

// CommandSink stores the motion script of a plan under name.
type CommandSink interface {
	Write(ctx context.Context, name string, cmds []opt.Command) error
}

// LoadAll loads every source in order and stops at the first failure.
func LoadAll(ctx context.Context, srcs []MapSource) ([][]opt.Cylinder, error) {
	out := make([][]opt.Cylinder, 0, len(srcs))
	for _, s := range srcs {
		cyls, err := s.Load(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, cyls)
	}
	return out, nil
}
