package operators

import (
	"context"
	"fmt"
	"sort"

	"github.com/couchcryptid/cset-bake/internal/cube"
)

func registerConstraints(r *Registry) {
	r.Register(Operator{Name: "constraints.generate_var_constraint", Input: "varname", Fn: varConstraint})
	r.Register(Operator{Name: "constraints.generate_attribute_constraint", Input: "attribute", Fn: attributeConstraint})
	r.Register(Operator{Name: "constraints.combine_constraints", Input: "constraint", Fn: combineConstraints})
}

func varConstraint(_ context.Context, args Args) (any, error) {
	name, err := args.String("varname")
	if err != nil {
		return nil, err
	}
	return cube.NameConstraint{Name: name}, nil
}

func attributeConstraint(_ context.Context, args Args) (any, error) {
	attr, err := args.String("attribute")
	if err != nil {
		return nil, err
	}
	v, err := args.Value("value")
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, &ArgumentError{Arg: "value", Msg: "must not be null"}
	}
	return cube.AttributeConstraint{Attribute: attr, Value: fmt.Sprint(v)}, nil
}

// combineConstraints ands together every constraint argument. The input
// parameter is only included when it holds a constraint, since a nested
// combine step receives the ambient pipeline input there.
func combineConstraints(_ context.Context, args Args) (any, error) {
	var all cube.AllOf
	if c, ok := args["constraint"].(cube.Constraint); ok {
		all = append(all, c)
	}

	keys := make([]string, 0, len(args))
	for k := range args {
		if k != "constraint" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		c, err := args.Constraint(k)
		if err != nil {
			return nil, err
		}
		all = append(all, c)
	}
	return all, nil
}
