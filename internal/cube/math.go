package cube

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// Method is a collapse aggregation.
type Method string

const (
	Mean Method = "MEAN"
	Max  Method = "MAX"
	Min  Method = "MIN"
	Sum  Method = "SUM"
)

// ParseMethod accepts method names case-insensitively.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToUpper(strings.TrimSpace(s)))
	switch m {
	case Mean, Max, Min, Sum:
		return m, nil
	default:
		return "", fmt.Errorf("unknown collapse method %q (want MEAN, MAX, MIN or SUM)", s)
	}
}

// Collapse aggregates the cube over one dimension, ignoring NaN values.
// Cells with no valid values collapse to NaN.
func Collapse(c *Cube, dim string, m Method) (*Cube, error) {
	k := c.DimIndex(dim)
	if k < 0 {
		return nil, fmt.Errorf("cube %s has no dimension %q (dimensions: %v)", c.Name, dim, c.Dims)
	}

	outer := size(c.Shape[:k])
	n := c.Shape[k]
	inner := size(c.Shape[k+1:])

	data := make([]float64, outer*inner)
	for o := 0; o < outer; o++ {
		for i := 0; i < inner; i++ {
			acc := newAccumulator()
			for j := 0; j < n; j++ {
				acc.add(c.Data[(o*n+j)*inner+i])
			}
			data[o*inner+i] = acc.result(m)
		}
	}

	out := &Cube{
		Name:       c.Name,
		Units:      c.Units,
		Dims:       slices.Delete(slices.Clone(c.Dims), k, k+1),
		Shape:      slices.Delete(slices.Clone(c.Shape), k, k+1),
		Data:       data,
		Attributes: map[string]string{},
	}
	for key, v := range c.Attributes {
		out.Attributes[key] = v
	}
	method := fmt.Sprintf("%s: %s", dim, strings.ToLower(string(m)))
	if prev := out.Attributes["cell_methods"]; prev != "" {
		method = prev + " " + method
	}
	out.Attributes["cell_methods"] = method
	for _, co := range c.Coords {
		if co.Name != dim {
			out.Coords = append(out.Coords, Coord{Name: co.Name, Units: co.Units, Points: slices.Clone(co.Points)})
		}
	}
	return out, nil
}

type accumulator struct {
	count         int
	sum, min, max float64
}

func newAccumulator() accumulator {
	return accumulator{min: math.Inf(1), max: math.Inf(-1)}
}

func (a *accumulator) add(v float64) {
	if math.IsNaN(v) {
		return
	}
	a.count++
	a.sum += v
	a.min = math.Min(a.min, v)
	a.max = math.Max(a.max, v)
}

func (a *accumulator) result(m Method) float64 {
	if a.count == 0 {
		return math.NaN()
	}
	switch m {
	case Max:
		return a.max
	case Min:
		return a.min
	case Sum:
		return a.sum
	default:
		return a.sum / float64(a.count)
	}
}

// Operand is a *Cube or a number.
type Operand = any

// Add returns a + b.
func Add(a *Cube, b Operand) (*Cube, error) {
	return binary("addition", a, b, true, func(x, y float64) float64 { return x + y })
}

// Subtract returns a - b.
func Subtract(a *Cube, b Operand) (*Cube, error) {
	return binary("subtraction", a, b, true, func(x, y float64) float64 { return x - y })
}

// Multiply returns a * b.
func Multiply(a *Cube, b Operand) (*Cube, error) {
	return binary("multiplication", a, b, false, func(x, y float64) float64 { return x * y })
}

// Divide returns a / b. Division by zero yields NaN.
func Divide(a *Cube, b Operand) (*Cube, error) {
	return binary("division", a, b, false, func(x, y float64) float64 {
		if y == 0 {
			return math.NaN()
		}
		return x / y
	})
}

func binary(op string, a *Cube, b Operand, sameUnits bool, fn func(x, y float64) float64) (*Cube, error) {
	out := a.Copy()
	switch v := b.(type) {
	case *Cube:
		if !slices.Equal(a.Shape, v.Shape) {
			return nil, fmt.Errorf("%s: shape mismatch %v and %v", op, a.Shape, v.Shape)
		}
		if sameUnits && a.Units != v.Units {
			return nil, fmt.Errorf("%s: unit mismatch %q and %q", op, a.Units, v.Units)
		}
		for i := range out.Data {
			out.Data[i] = fn(a.Data[i], v.Data[i])
		}
		if !sameUnits {
			out.Units = combineUnits(op, a.Units, v.Units)
		}
	default:
		y, ok := toFloat(b)
		if !ok {
			return nil, fmt.Errorf("%s: unsupported operand %T", op, b)
		}
		for i := range out.Data {
			out.Data[i] = fn(a.Data[i], y)
		}
	}
	return out, nil
}

func combineUnits(op, a, b string) string {
	switch {
	case b == "" || b == "1":
		return a
	case op == "division":
		return fmt.Sprintf("%s/(%s)", a, b)
	default:
		return strings.TrimSpace(a + " " + b)
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// Statistics summarises the valid values of a cube.
type Statistics struct {
	Name    string  `json:"name"`
	Units   string  `json:"units"`
	Count   int     `json:"count"`
	Missing int     `json:"missing"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Mean    float64 `json:"mean"`
}

// Summarise computes Statistics over the non-NaN values of c. When no value
// is valid, Min, Max and Mean are left at zero and Count is 0.
func Summarise(c *Cube) Statistics {
	acc := newAccumulator()
	for _, v := range c.Data {
		acc.add(v)
	}
	st := Statistics{
		Name:    c.Name,
		Units:   c.Units,
		Count:   acc.count,
		Missing: len(c.Data) - acc.count,
	}
	if acc.count > 0 {
		st.Min = acc.min
		st.Max = acc.max
		st.Mean = acc.sum / float64(acc.count)
	}
	return st
}

func (s Statistics) String() string {
	return fmt.Sprintf("%s / (%s): n=%d missing=%d min=%g max=%g mean=%g",
		s.Name, s.Units, s.Count, s.Missing, s.Min, s.Max, s.Mean)
}
