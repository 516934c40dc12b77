package recipe

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Encode writes r as a YAML document that parses back to an equal Recipe.
func Encode(w io.Writer, r *Recipe) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode recipe: %w", err)
	}
	return enc.Close()
}

// MarshalYAML keeps the document key order: title, description, steps.
func (r *Recipe) MarshalYAML() (any, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}
	if r.Title != "" {
		appendPair(root, keyTitle, strNode(r.Title))
	}
	if r.Description != "" {
		appendPair(root, keyDescription, strNode(r.Description))
	}
	steps := &yaml.Node{Kind: yaml.SequenceNode}
	for _, s := range r.Steps {
		n, err := s.node()
		if err != nil {
			return nil, err
		}
		steps.Content = append(steps.Content, n)
	}
	appendPair(root, keySteps, steps)
	return root, nil
}

// MarshalYAML renders the step with its operator first and arguments in order.
func (s *Step) MarshalYAML() (any, error) {
	return s.node()
}

func (s *Step) node() (*yaml.Node, error) {
	m := &yaml.Node{Kind: yaml.MappingNode}
	appendPair(m, keyOperator, strNode(s.Operator))
	for _, a := range s.Args {
		if nested, ok := a.Value.(*Step); ok {
			n, err := nested.node()
			if err != nil {
				return nil, err
			}
			appendPair(m, a.Name, n)
			continue
		}
		var v yaml.Node
		if err := v.Encode(a.Value); err != nil {
			return nil, fmt.Errorf("encode argument %s: %w", a.Name, err)
		}
		appendPair(m, a.Name, &v)
	}
	return m, nil
}

func appendPair(m *yaml.Node, key string, val *yaml.Node) {
	m.Content = append(m.Content, strNode(key), val)
}

func strNode(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}
