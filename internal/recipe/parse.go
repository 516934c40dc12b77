package recipe

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	keySteps       = "steps"
	keyTitle       = "title"
	keyDescription = "description"
	keyOperator    = "operator"
)

// Load parses a recipe from a Path, from recipe text given as a string or
// []byte, or from an io.Reader. Any other source type yields an InputTypeError.
func Load(src any) (*Recipe, error) {
	switch v := src.(type) {
	case Path:
		return ParseFile(string(v))
	case string:
		return parseBytes([]byte(v))
	case []byte:
		return parseBytes(v)
	case io.Reader:
		return Parse(v)
	default:
		return nil, &InputTypeError{Type: fmt.Sprintf("%T", src)}
	}
}

// ParseFile reads and parses the recipe document at path.
func ParseFile(path string) (*Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read recipe %s: %w", path, err)
	}
	return parseBytes(data)
}

// Parse decodes a recipe from YAML (or JSON) text and validates its structure.
// It returns a FormatError for malformed text and a ValidationError for
// documents that do not contain at least one well-formed step.
func Parse(r io.Reader) (*Recipe, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read recipe: %w", err)
	}
	return parseBytes(data)
}

func parseBytes(data []byte) (*Recipe, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	var doc yaml.Node
	switch err := dec.Decode(&doc); {
	case err == nil:
		var extra yaml.Node
		if err := dec.Decode(&extra); err == nil {
			return nil, &FormatError{Msg: "expected a single document but found another"}
		} else if !errors.Is(err, io.EOF) {
			return nil, formatError(err)
		}
	case !errors.Is(err, io.EOF):
		return nil, formatError(err)
	}

	root := resolve(&doc)
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return nil, errNoSteps()
		}
		root = resolve(root.Content[0])
	}
	if root.Kind == 0 || isNull(root) {
		return nil, errNoSteps()
	}
	if root.Kind != yaml.MappingNode {
		return nil, &ValidationError{Msg: "recipe must be a mapping or a path"}
	}

	rec := &Recipe{}
	var steps *yaml.Node
	err := eachPair(root, "", func(key string, val *yaml.Node) error {
		switch key {
		case keySteps:
			steps = val
		case keyTitle:
			s, err := scalarString(val, keyTitle)
			if err != nil {
				return err
			}
			rec.Title = s
		case keyDescription:
			s, err := scalarString(val, keyDescription)
			if err != nil {
				return err
			}
			rec.Description = s
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if steps == nil || isNull(steps) {
		return nil, errNoSteps()
	}
	if steps.Kind != yaml.SequenceNode {
		return nil, &ValidationError{Field: keySteps, Msg: "must be a sequence of steps"}
	}
	if len(steps.Content) == 0 {
		return nil, errNoSteps()
	}

	rec.Steps = make([]*Step, 0, len(steps.Content))
	for i, n := range steps.Content {
		field := fmt.Sprintf("%s[%d]", keySteps, i)
		n = resolve(n)
		if n.Kind != yaml.MappingNode {
			return nil, &ValidationError{Field: field, Msg: "step must be a mapping"}
		}
		if !hasKey(n, keyOperator) {
			return nil, &ValidationError{Field: field + "." + keyOperator, Msg: "required field is missing"}
		}
		step, err := parseStep(n, field)
		if err != nil {
			return nil, err
		}
		rec.Steps = append(rec.Steps, step)
	}
	return rec, nil
}

// parseStep converts a mapping node known to hold an operator key into a Step.
// Argument mappings that carry their own operator key become nested steps.
func parseStep(n *yaml.Node, field string) (*Step, error) {
	step := &Step{}
	err := eachPair(n, field, func(key string, val *yaml.Node) error {
		argField := field + "." + key
		if key == keyOperator {
			step.Operator = operatorName(val)
			return nil
		}
		if val.Kind == yaml.MappingNode && hasKey(val, keyOperator) {
			nested, err := parseStep(val, argField)
			if err != nil {
				return err
			}
			step.Args = append(step.Args, Arg{Name: key, Value: nested})
			return nil
		}
		var lit any
		if err := val.Decode(&lit); err != nil {
			return &ValidationError{Field: argField, Msg: err.Error()}
		}
		step.Args = append(step.Args, Arg{Name: key, Value: lit})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return step, nil
}

// operatorName renders the operator value as text. Anything but a plain
// string is kept in its printed form so that lookup reports it verbatim.
func operatorName(n *yaml.Node) string {
	if n.Kind == yaml.ScalarNode {
		if isNull(n) {
			return ""
		}
		return n.Value
	}
	var v any
	if err := n.Decode(&v); err != nil {
		return n.Value
	}
	return fmt.Sprint(v)
}

// eachPair calls fn for each key/value pair of a mapping node, rejecting
// duplicate and non-scalar keys. Merge keys ("<<") are expanded first.
func eachPair(m *yaml.Node, field string, fn func(key string, val *yaml.Node) error) error {
	pairs, err := mappingPairs(m, field)
	if err != nil {
		return err
	}
	for _, p := range pairs {
		if err := fn(p.key, p.val); err != nil {
			return err
		}
	}
	return nil
}

type pair struct {
	key string
	val *yaml.Node
}

// mappingPairs flattens a mapping node. Merged pairs come first in the order
// they were merged; keys written in the mapping override merged values, and
// an earlier merge source overrides a later one.
func mappingPairs(m *yaml.Node, field string) ([]pair, error) {
	var merged, own []pair
	seen := make(map[string]struct{}, len(m.Content)/2)
	for i := 0; i+1 < len(m.Content); i += 2 {
		k := resolve(m.Content[i])
		if k.Kind != yaml.ScalarNode {
			return nil, &ValidationError{Field: field, Msg: fmt.Sprintf("line %d: keys must be scalars", k.Line)}
		}
		if isMergeKey(k) {
			srcs := mergeSources(resolve(m.Content[i+1]))
			for j := len(srcs) - 1; j >= 0; j-- {
				if srcs[j].Kind != yaml.MappingNode {
					return nil, &ValidationError{Field: field, Msg: fmt.Sprintf("line %d: merge value must be a mapping", k.Line)}
				}
				ps, err := mappingPairs(srcs[j], field)
				if err != nil {
					return nil, err
				}
				merged = append(merged, ps...)
			}
			continue
		}
		if _, dup := seen[k.Value]; dup {
			return nil, &ValidationError{Field: join(field, k.Value), Msg: fmt.Sprintf("line %d: duplicate key", k.Line)}
		}
		seen[k.Value] = struct{}{}
		own = append(own, pair{key: k.Value, val: resolve(m.Content[i+1])})
	}
	if len(merged) == 0 {
		return own, nil
	}

	var out []pair
	index := make(map[string]int)
	for _, p := range append(merged, own...) {
		if i, ok := index[p.key]; ok {
			out[i].val = p.val
			continue
		}
		index[p.key] = len(out)
		out = append(out, p)
	}
	return out, nil
}

func hasKey(m *yaml.Node, key string) bool {
	for i := 0; i+1 < len(m.Content); i += 2 {
		k := resolve(m.Content[i])
		if k.Kind != yaml.ScalarNode {
			continue
		}
		if isMergeKey(k) {
			for _, src := range mergeSources(resolve(m.Content[i+1])) {
				if src.Kind == yaml.MappingNode && hasKey(src, key) {
					return true
				}
			}
			continue
		}
		if k.Value == key {
			return true
		}
	}
	return false
}

func isMergeKey(k *yaml.Node) bool {
	return k.ShortTag() == "!!merge"
}

// mergeSources returns the mappings named by a merge value: a single
// mapping or a sequence of them.
func mergeSources(v *yaml.Node) []*yaml.Node {
	if v.Kind != yaml.SequenceNode {
		return []*yaml.Node{v}
	}
	srcs := make([]*yaml.Node, len(v.Content))
	for i, n := range v.Content {
		srcs[i] = resolve(n)
	}
	return srcs
}

func scalarString(n *yaml.Node, field string) (string, error) {
	if isNull(n) {
		return "", nil
	}
	if n.Kind != yaml.ScalarNode {
		return "", &ValidationError{Field: field, Msg: "must be a string"}
	}
	return n.Value, nil
}

func resolve(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}

func isNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null"
}

func join(field, key string) string {
	if field == "" {
		return key
	}
	return field + "." + key
}

func formatError(err error) error {
	return &FormatError{Msg: strings.TrimPrefix(err.Error(), "yaml: "), Err: err}
}

func errNoSteps() error {
	return &ValidationError{Msg: "recipe must have at least one step"}
}
