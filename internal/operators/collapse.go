package operators

import (
	"context"

	"github.com/couchcryptid/cset-bake/internal/cube"
)

func registerCollapse(r *Registry) {
	r.Register(Operator{Name: "collapse.collapse", Input: "cube", Fn: collapse})
	r.Register(Operator{Name: "statistics.summarise", Input: "cube", Fn: summarise})
}

func collapse(_ context.Context, args Args) (any, error) {
	c, err := args.Cube("cube")
	if err != nil {
		return nil, err
	}
	dim, err := args.String("coordinate")
	if err != nil {
		return nil, err
	}
	name, err := args.String("method")
	if err != nil {
		return nil, err
	}
	method, err := cube.ParseMethod(name)
	if err != nil {
		return nil, &ArgumentError{Arg: "method", Msg: err.Error()}
	}
	return cube.Collapse(c, dim, method)
}

func summarise(_ context.Context, args Args) (any, error) {
	c, err := args.Cube("cube")
	if err != nil {
		return nil, err
	}
	return cube.Summarise(c), nil
}
