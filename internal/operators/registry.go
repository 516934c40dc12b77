// Package operators holds the named functions a recipe step can invoke.
//
// Every operator is registered under a dotted name ("read.read_cubes") with
// a static declaration of its input parameter: the argument that receives the
// pipeline input when a step does not supply it explicitly.
package operators

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Func is the uniform operator signature. Args holds the resolved step
// arguments, including the input parameter.
type Func func(ctx context.Context, args Args) (any, error)

// Operator is a registered, invocable step function.
type Operator struct {
	Name  string
	Input string
	Fn    Func
}

// Call invokes the operator, attributing argument errors to it.
func (op Operator) Call(ctx context.Context, args Args) (any, error) {
	out, err := op.Fn(ctx, args)
	var argErr *ArgumentError
	if errors.As(err, &argErr) && argErr.Operator == "" {
		argErr.Operator = op.Name
	}
	return out, err
}

var nameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)+$`)

// Registry maps dotted names to operators. It is not safe to Register
// concurrently with lookups; build it fully before use.
type Registry struct {
	ops        map[string]Operator
	namespaces map[string]bool
}

// NewRegistry creates an empty Registry. NewDefault returns one holding the
// built-in operators.
func NewRegistry() *Registry {
	return &Registry{ops: map[string]Operator{}, namespaces: map[string]bool{}}
}

// Register adds an operator. It panics on an invalid or duplicate name or a
// missing input declaration.
func (r *Registry) Register(op Operator) {
	if !nameRe.MatchString(op.Name) {
		panic(fmt.Sprintf("operator name %q is not a dotted identifier", op.Name))
	}
	if _, exists := r.ops[op.Name]; exists {
		panic(fmt.Sprintf("operator %q already registered", op.Name))
	}
	if op.Input == "" {
		panic(fmt.Sprintf("operator %q has no input parameter", op.Name))
	}
	if op.Fn == nil {
		panic(fmt.Sprintf("operator %q has no function", op.Name))
	}
	r.ops[op.Name] = op
	parts := strings.Split(op.Name, ".")
	for i := 1; i < len(parts); i++ {
		r.namespaces[strings.Join(parts[:i], ".")] = true
	}
}

// Lookup resolves a dotted name.
func (r *Registry) Lookup(name string) (Operator, error) {
	switch {
	case strings.TrimSpace(name) == "":
		return Operator{}, &UnknownOperatorError{Name: name, Reason: "empty name"}
	case r.namespaces[name]:
		return Operator{}, &UnknownOperatorError{Name: name, Reason: "is a namespace, not an operator"}
	case !nameRe.MatchString(name):
		return Operator{}, &UnknownOperatorError{Name: name, Reason: "malformed name"}
	}
	op, ok := r.ops[name]
	if !ok {
		return Operator{}, &UnknownOperatorError{Name: name}
	}
	return op, nil
}

// Names returns the registered operator names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.ops))
	for name := range r.ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Operators returns the registered operators sorted by name.
func (r *Registry) Operators() []Operator {
	names := r.Names()
	out := make([]Operator, len(names))
	for i, name := range names {
		out[i] = r.ops[name]
	}
	return out
}
