package operators

import (
	"context"
	"fmt"

	"github.com/couchcryptid/cset-bake/internal/cube"
)

func registerMisc(r *Registry) {
	r.Register(Operator{Name: "misc.noop", Input: "x", Fn: noop})
	r.Register(arithmetic("misc.addition", "addend_1", "addend_2", cube.Add))
	r.Register(arithmetic("misc.subtraction", "minuend", "subtrahend", cube.Subtract))
	r.Register(arithmetic("misc.multiplication", "multiplicand", "multiplier", cube.Multiply))
	r.Register(arithmetic("misc.division", "numerator", "denominator", cube.Divide))
	r.Register(Operator{Name: "misc.remove_attribute", Input: "cubes", Fn: removeAttribute})
}

// noop returns its input unchanged. Extra arguments are ignored.
func noop(_ context.Context, args Args) (any, error) {
	return args.Value("x")
}

func arithmetic(name, left, right string, fn func(*cube.Cube, cube.Operand) (*cube.Cube, error)) Operator {
	return Operator{Name: name, Input: left, Fn: func(_ context.Context, args Args) (any, error) {
		a, err := args.Cube(left)
		if err != nil {
			return nil, err
		}
		b, err := args.Operand(right)
		if err != nil {
			return nil, err
		}
		return fn(a, b)
	}}
}

func removeAttribute(_ context.Context, args Args) (any, error) {
	names, err := attributeNames(args)
	if err != nil {
		return nil, err
	}

	strip := func(c *cube.Cube) *cube.Cube {
		out := c.Copy()
		for _, n := range names {
			delete(out.Attributes, n)
		}
		return out
	}

	if c, ok := args["cubes"].(*cube.Cube); ok {
		return strip(c), nil
	}
	cubes, err := args.Cubes("cubes")
	if err != nil {
		return nil, err
	}
	out := make(cube.CubeList, len(cubes))
	for i, c := range cubes {
		out[i] = strip(c)
	}
	return out, nil
}

// attributeNames accepts a single attribute name or a list of them.
func attributeNames(args Args) ([]string, error) {
	v, err := args.Value("attribute")
	if err != nil {
		return nil, err
	}
	switch a := v.(type) {
	case string:
		return []string{a}, nil
	case []any:
		names := make([]string, len(a))
		for i, item := range a {
			s, ok := item.(string)
			if !ok {
				return nil, &ArgumentError{Arg: "attribute", Msg: fmt.Sprintf("item %d: want text, got %T", i, item)}
			}
			names[i] = s
		}
		return names, nil
	default:
		return nil, wrongType("attribute", "text or a list of text", v)
	}
}
