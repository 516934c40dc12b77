package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/couchcryptid/cset-bake/internal/recipe"
	"github.com/dominikbraun/graph"
	"github.com/dominikbraun/graph/draw"
)

// stepGraph builds the data flow of a recipe: each top-level step feeds the
// next, and each nested step feeds the argument of the step that holds it.
// Vertices are keyed by position ("2", "2.constraint") and labelled with the
// operator name.
func stepGraph(rec *recipe.Recipe) (graph.Graph[string, string], error) {
	g := graph.New(graph.StringHash, graph.Directed(), graph.Acyclic())

	prev := ""
	for i, s := range rec.Steps {
		id := strconv.Itoa(i + 1)
		if err := addStep(g, id, s); err != nil {
			return nil, err
		}
		if prev != "" {
			if err := g.AddEdge(prev, id); err != nil {
				return nil, fmt.Errorf("link %s to %s: %w", prev, id, err)
			}
		}
		prev = id
	}
	return g, nil
}

func addStep(g graph.Graph[string, string], id string, s *recipe.Step) error {
	if err := g.AddVertex(id, graph.VertexAttribute("label", s.Operator)); err != nil {
		return fmt.Errorf("add step %s: %w", id, err)
	}
	for _, a := range s.Args {
		nested, ok := a.Value.(*recipe.Step)
		if !ok {
			continue
		}
		child := id + "." + a.Name
		if err := addStep(g, child, nested); err != nil {
			return err
		}
		if err := g.AddEdge(child, id, graph.EdgeAttribute("label", a.Name)); err != nil {
			return fmt.Errorf("link %s to %s: %w", child, id, err)
		}
	}
	return nil
}

// writeDOT renders the recipe's step graph in Graphviz DOT.
func writeDOT(w io.Writer, rec *recipe.Recipe) error {
	g, err := stepGraph(rec)
	if err != nil {
		return err
	}
	if rec.Title != "" {
		return draw.DOT(g, w, draw.GraphAttribute("label", rec.Title))
	}
	return draw.DOT(g, w)
}
