// Package cube holds the gridded-data value passed between recipe operators.
//
// A Cube is a single named, unit-carrying variable laid out in row-major
// order over named dimensions, with optional coordinate points for each
// dimension. Values are float64 regardless of the on-disk type; missing data
// is represented as NaN.
package cube

import (
	"fmt"
	"maps"
	"slices"
)

// Coord holds the points of a dimension coordinate.
type Coord struct {
	Name   string
	Units  string
	Points []float64
}

// Cube is a named variable on a regular grid.
type Cube struct {
	Name       string
	Units      string
	Dims       []string
	Shape      []int
	Data       []float64
	Coords     []Coord
	Attributes map[string]string
}

// CubeList is an ordered collection of cubes.
type CubeList []*Cube

// New creates a cube and checks that data matches the shape.
func New(name, units string, dims []string, shape []int, data []float64) (*Cube, error) {
	if len(dims) != len(shape) {
		return nil, fmt.Errorf("cube %s: %d dimension names for %d lengths", name, len(dims), len(shape))
	}
	if n := size(shape); n != len(data) {
		return nil, fmt.Errorf("cube %s: shape %v holds %d values, got %d", name, shape, n, len(data))
	}
	return &Cube{
		Name:       name,
		Units:      units,
		Dims:       dims,
		Shape:      shape,
		Data:       data,
		Attributes: map[string]string{},
	}, nil
}

// Copy returns a deep copy of the cube.
func (c *Cube) Copy() *Cube {
	out := &Cube{
		Name:       c.Name,
		Units:      c.Units,
		Dims:       slices.Clone(c.Dims),
		Shape:      slices.Clone(c.Shape),
		Data:       slices.Clone(c.Data),
		Attributes: maps.Clone(c.Attributes),
	}
	if out.Attributes == nil {
		out.Attributes = map[string]string{}
	}
	for _, co := range c.Coords {
		out.Coords = append(out.Coords, Coord{Name: co.Name, Units: co.Units, Points: slices.Clone(co.Points)})
	}
	return out
}

// Coord returns the coordinate for the named dimension.
func (c *Cube) Coord(name string) (Coord, bool) {
	for _, co := range c.Coords {
		if co.Name == name {
			return co, true
		}
	}
	return Coord{}, false
}

// DimIndex returns the position of the named dimension, or -1.
func (c *Cube) DimIndex(name string) int {
	return slices.Index(c.Dims, name)
}

// String summarises the cube, e.g. "air_temperature / (K) (time: 4; latitude: 3)".
func (c *Cube) String() string {
	s := fmt.Sprintf("%s / (%s)", c.Name, c.Units)
	if len(c.Dims) == 0 {
		return s + " (scalar cube)"
	}
	s += " ("
	for i, d := range c.Dims {
		if i > 0 {
			s += "; "
		}
		s += fmt.Sprintf("%s: %d", d, c.Shape[i])
	}
	return s + ")"
}

// Names returns the cube names in order.
func (cl CubeList) Names() []string {
	names := make([]string, len(cl))
	for i, c := range cl {
		names[i] = c.Name
	}
	return names
}

// Extract returns the cubes matching the constraint.
func (cl CubeList) Extract(con Constraint) CubeList {
	var out CubeList
	for _, c := range cl {
		if con == nil || con.Match(c) {
			out = append(out, c)
		}
	}
	return out
}

// ExtractCube returns the single cube matching the constraint.
func (cl CubeList) ExtractCube(con Constraint) (*Cube, error) {
	matched := cl.Extract(con)
	if len(matched) != 1 {
		return nil, fmt.Errorf("constraint %v matched %d cubes, want exactly one (available: %v)", con, len(matched), cl.Names())
	}
	return matched[0], nil
}

// Describe returns a short summary of a value passed between operators.
func Describe(v any) string {
	switch t := v.(type) {
	case nil:
		return "<nil>"
	case *Cube:
		return t.String()
	case CubeList:
		return fmt.Sprintf("%d cubes %v", len(t), t.Names())
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}

func size(shape []int) int {
	n := 1
	for _, l := range shape {
		n *= l
	}
	return n
}
