package operators

import (
	"fmt"
	"strconv"

	"github.com/couchcryptid/cset-bake/internal/cube"
	"github.com/couchcryptid/cset-bake/internal/recipe"
)

// Args are the resolved arguments of one step invocation.
type Args map[string]any

func missing(name string) error {
	return &ArgumentError{Arg: name, Msg: "required argument is missing"}
}

func wrongType(name, want string, got any) error {
	return &ArgumentError{Arg: name, Msg: fmt.Sprintf("want %s, got %T", want, got)}
}

// Value returns a required argument of any type.
func (a Args) Value(name string) (any, error) {
	v, ok := a[name]
	if !ok {
		return nil, missing(name)
	}
	return v, nil
}

// String returns a required text argument. Paths are accepted as text.
func (a Args) String(name string) (string, error) {
	v, ok := a[name]
	if !ok || v == nil {
		return "", missing(name)
	}
	switch s := v.(type) {
	case string:
		return s, nil
	case recipe.Path:
		return string(s), nil
	default:
		return "", wrongType(name, "text", v)
	}
}

// OptString returns a text argument or def when absent or null.
func (a Args) OptString(name, def string) (string, error) {
	if v, ok := a[name]; !ok || v == nil {
		return def, nil
	}
	return a.String(name)
}

// Bool returns a boolean argument or def when absent. The strings "true" and
// "false" are accepted.
func (a Args) Bool(name string, def bool) (bool, error) {
	v, ok := a[name]
	if !ok || v == nil {
		return def, nil
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(b)
		if err != nil {
			return false, wrongType(name, "a boolean", v)
		}
		return parsed, nil
	default:
		return false, wrongType(name, "a boolean", v)
	}
}

// Cube returns a single cube. A one-element CubeList is unwrapped.
func (a Args) Cube(name string) (*cube.Cube, error) {
	v, ok := a[name]
	if !ok || v == nil {
		return nil, missing(name)
	}
	switch c := v.(type) {
	case *cube.Cube:
		return c, nil
	case cube.CubeList:
		if len(c) == 1 {
			return c[0], nil
		}
		return nil, &ArgumentError{Arg: name, Msg: fmt.Sprintf("want a single cube, got %d cubes", len(c))}
	default:
		return nil, wrongType(name, "a cube", v)
	}
}

// Cubes returns a CubeList; a single cube becomes a one-element list.
func (a Args) Cubes(name string) (cube.CubeList, error) {
	v, ok := a[name]
	if !ok || v == nil {
		return nil, missing(name)
	}
	switch c := v.(type) {
	case cube.CubeList:
		return c, nil
	case *cube.Cube:
		return cube.CubeList{c}, nil
	default:
		return nil, wrongType(name, "cubes", v)
	}
}

// Operand returns a cube or a number for arithmetic.
func (a Args) Operand(name string) (cube.Operand, error) {
	v, ok := a[name]
	if !ok || v == nil {
		return nil, missing(name)
	}
	switch n := v.(type) {
	case *cube.Cube:
		return n, nil
	case cube.CubeList:
		if len(n) == 1 {
			return n[0], nil
		}
		return nil, &ArgumentError{Arg: name, Msg: fmt.Sprintf("want a single cube, got %d cubes", len(n))}
	case int, int64, int32, uint64, float32, float64:
		return n, nil
	default:
		return nil, wrongType(name, "a cube or a number", v)
	}
}

// Constraint returns a required constraint.
func (a Args) Constraint(name string) (cube.Constraint, error) {
	v, ok := a[name]
	if !ok || v == nil {
		return nil, missing(name)
	}
	c, ok := v.(cube.Constraint)
	if !ok {
		return nil, wrongType(name, "a constraint", v)
	}
	return c, nil
}

// OptConstraint returns a constraint or nil when absent.
func (a Args) OptConstraint(name string) (cube.Constraint, error) {
	if v, ok := a[name]; !ok || v == nil {
		return nil, nil
	}
	return a.Constraint(name)
}
