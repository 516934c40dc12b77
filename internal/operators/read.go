package operators

import (
	"context"

	"github.com/couchcryptid/cset-bake/internal/cube"
)

func registerRead(r *Registry) {
	r.Register(Operator{Name: "read.read_cubes", Input: "loadpath", Fn: readCubes})
	r.Register(Operator{Name: "read.read_cube", Input: "loadpath", Fn: readCube})
}

func registerFilters(r *Registry) {
	r.Register(Operator{Name: "filters.filter_cubes", Input: "cubes", Fn: filterCubes})
	r.Register(Operator{Name: "filters.filter_cube", Input: "cubes", Fn: filterCube})
}

func load(args Args) (cube.CubeList, cube.Constraint, error) {
	path, err := args.String("loadpath")
	if err != nil {
		return nil, nil, err
	}
	con, err := args.OptConstraint("constraint")
	if err != nil {
		return nil, nil, err
	}
	cubes, err := cube.LoadNetCDF(path)
	if err != nil {
		return nil, nil, err
	}
	return cubes, con, nil
}

func readCubes(_ context.Context, args Args) (any, error) {
	cubes, con, err := load(args)
	if err != nil {
		return nil, err
	}
	return cubes.Extract(con), nil
}

func readCube(_ context.Context, args Args) (any, error) {
	cubes, con, err := load(args)
	if err != nil {
		return nil, err
	}
	return cubes.ExtractCube(con)
}

func filter(args Args) (cube.CubeList, cube.Constraint, error) {
	cubes, err := args.Cubes("cubes")
	if err != nil {
		return nil, nil, err
	}
	con, err := args.Constraint("constraint")
	if err != nil {
		return nil, nil, err
	}
	return cubes, con, nil
}

func filterCubes(_ context.Context, args Args) (any, error) {
	cubes, con, err := filter(args)
	if err != nil {
		return nil, err
	}
	out := cubes.Extract(con)
	if len(out) == 0 {
		return nil, &ArgumentError{Arg: "constraint", Msg: "no cubes match " + describeConstraint(con)}
	}
	return out, nil
}

func filterCube(_ context.Context, args Args) (any, error) {
	cubes, con, err := filter(args)
	if err != nil {
		return nil, err
	}
	return cubes.ExtractCube(con)
}

func describeConstraint(con cube.Constraint) string {
	if s, ok := con.(interface{ String() string }); ok {
		return s.String()
	}
	return "constraint"
}
