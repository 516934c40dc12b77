package cube

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"github.com/ctessum/cdf"
)

// LoadNetCDF reads every data variable from a NetCDF file, or from each *.nc
// file in a directory, into cubes. Variables named after a dimension become
// coordinates of the cubes that use that dimension.
func LoadNetCDF(path string) (CubeList, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("load cubes: %w", err)
	}
	if !info.IsDir() {
		return loadFile(path)
	}

	files, err := filepath.Glob(filepath.Join(path, "*.nc"))
	if err != nil {
		return nil, fmt.Errorf("load cubes: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("load cubes: no .nc files in %s", path)
	}
	sort.Strings(files)

	var out CubeList
	for _, f := range files {
		cubes, err := loadFile(f)
		if err != nil {
			return nil, err
		}
		out = append(out, cubes...)
	}
	return out, nil
}

func loadFile(path string) (CubeList, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load cubes: %w", err)
	}
	defer fh.Close()

	f, err := cdf.Open(fh)
	if err != nil {
		return nil, fmt.Errorf("load cubes: open %s: %w", path, err)
	}

	global := stringAttributes(f.Header, "")

	coords := map[string]Coord{}
	var dataVars []string
	for _, v := range f.Header.Variables() {
		dims := f.Header.Dimensions(v)
		if len(dims) == 1 && dims[0] == v {
			points, err := readVariable(f, v)
			if err != nil {
				return nil, fmt.Errorf("load cubes: %s: %w", path, err)
			}
			coords[v] = Coord{Name: v, Units: stringAttribute(f.Header, v, "units"), Points: points}
			continue
		}
		dataVars = append(dataVars, v)
	}

	var out CubeList
	for _, v := range dataVars {
		shape := f.Header.Lengths(v)
		// Record variables have an unlimited leading dimension which reads back as zero.
		if slices.Contains(shape, 0) {
			continue
		}
		data, err := readVariable(f, v)
		if err != nil {
			return nil, fmt.Errorf("load cubes: %s: %w", path, err)
		}
		c, err := New(v, stringAttribute(f.Header, v, "units"), slices.Clone(f.Header.Dimensions(v)), shape, data)
		if err != nil {
			return nil, fmt.Errorf("load cubes: %s: %w", path, err)
		}
		for k, val := range global {
			c.Attributes[k] = val
		}
		for k, val := range stringAttributes(f.Header, v) {
			if k != "units" {
				c.Attributes[k] = val
			}
		}
		for _, d := range c.Dims {
			if co, ok := coords[d]; ok {
				c.Coords = append(c.Coords, co)
			}
		}
		out = append(out, c)
	}
	return out, nil
}

func readVariable(f *cdf.File, name string) ([]float64, error) {
	n := size(f.Header.Lengths(name))
	r := f.Reader(name, nil, nil)
	buf := r.Zero(n)
	got, err := r.Read(buf)
	if errors.Is(err, io.EOF) && got >= n {
		err = nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	data, err := toFloat64s(buf)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	for _, attr := range []string{"_FillValue", "missing_value"} {
		fill, ok := numericAttribute(f.Header, name, attr)
		if !ok {
			continue
		}
		for i, v := range data {
			if v == fill {
				data[i] = math.NaN()
			}
		}
	}
	return data, nil
}

func toFloat64s(buf any) ([]float64, error) {
	switch b := buf.(type) {
	case []float64:
		return b, nil
	case []float32:
		return convert(b), nil
	case []int32:
		return convert(b), nil
	case []int16:
		return convert(b), nil
	case []int8:
		return convert(b), nil
	case []uint8:
		return convert(b), nil
	default:
		return nil, fmt.Errorf("unsupported variable type %T", buf)
	}
}

func convert[T float32 | int32 | int16 | int8 | uint8](in []T) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}

func stringAttributes(h *cdf.Header, v string) map[string]string {
	out := map[string]string{}
	for _, a := range h.Attributes(v) {
		if s, ok := h.GetAttribute(v, a).(string); ok {
			out[a] = s
		}
	}
	return out
}

func stringAttribute(h *cdf.Header, v, a string) string {
	s, _ := h.GetAttribute(v, a).(string)
	return s
}

func numericAttribute(h *cdf.Header, v, a string) (float64, bool) {
	vals, err := toFloat64s(h.GetAttribute(v, a))
	if err != nil || len(vals) == 0 {
		return 0, false
	}
	return vals[0], true
}

// SaveNetCDF writes the cubes and their coordinates to a single NetCDF file.
// Cubes sharing a dimension name must agree on its length, and cube names must
// be unique within the file. Without overwrite an existing file is an error.
// A failed write leaves no file behind.
func SaveNetCDF(path string, cubes CubeList, overwrite bool) (err error) {
	if len(cubes) == 0 {
		return errors.New("save cubes: nothing to write")
	}

	var dims []string
	lengths := map[string]int{}
	coords := map[string]Coord{}
	names := make(map[string]struct{}, len(cubes))
	for _, c := range cubes {
		if _, dup := names[c.Name]; dup {
			return fmt.Errorf("save cubes: more than one cube named %s", c.Name)
		}
		names[c.Name] = struct{}{}
		for i, d := range c.Dims {
			l, seen := lengths[d]
			switch {
			case !seen:
				dims = append(dims, d)
				lengths[d] = c.Shape[i]
			case l != c.Shape[i]:
				return fmt.Errorf("save cubes: dimension %s has length %d in %s but %d elsewhere", d, c.Shape[i], c.Name, l)
			}
		}
		for _, co := range c.Coords {
			if _, ok := coords[co.Name]; !ok && len(co.Points) == lengths[co.Name] {
				coords[co.Name] = co
			}
		}
	}

	dimLengths := make([]int, len(dims))
	for i, d := range dims {
		dimLengths[i] = lengths[d]
	}
	h := cdf.NewHeader(dims, dimLengths)

	for _, d := range dims {
		co, ok := coords[d]
		if !ok {
			continue
		}
		h.AddVariable(d, []string{d}, []float64{0})
		if co.Units != "" {
			h.AddAttribute(d, "units", co.Units)
		}
	}
	for _, c := range cubes {
		if _, clash := coords[c.Name]; clash {
			return fmt.Errorf("save cubes: cube %s has the same name as a coordinate", c.Name)
		}
		h.AddVariable(c.Name, c.Dims, []float64{0})
		if c.Units != "" {
			h.AddAttribute(c.Name, "units", c.Units)
		}
		keys := make([]string, 0, len(c.Attributes))
		for k := range c.Attributes {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			h.AddAttribute(c.Name, k, c.Attributes[k])
		}
	}
	h.Define()
	if err := errors.Join(h.Check()...); err != nil {
		return fmt.Errorf("save cubes: %w", err)
	}

	flags := os.O_RDWR | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flags = os.O_RDWR | os.O_CREATE | os.O_EXCL
	}
	fh, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("save cubes: %w", err)
	}
	defer func() {
		if cerr := fh.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("save cubes: %w", cerr)
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	f, err := cdf.Create(fh, h)
	if err != nil {
		return fmt.Errorf("save cubes: create %s: %w", path, err)
	}
	for _, d := range dims {
		if co, ok := coords[d]; ok {
			if err := writeVariable(f, d, co.Points); err != nil {
				return err
			}
		}
	}
	for _, c := range cubes {
		if err := writeVariable(f, c.Name, c.Data); err != nil {
			return err
		}
	}
	if err := fh.Sync(); err != nil {
		return fmt.Errorf("save cubes: %w", err)
	}
	return nil
}

// writeVariable fills a whole variable. The cdf writer reports io.EOF once
// the variable is full, so EOF after every value is written is success.
func writeVariable(f *cdf.File, name string, data []float64) error {
	if cells := size(f.Header.Lengths(name)); cells != len(data) {
		return fmt.Errorf("save cubes: write %s: have %d values for %d cells", name, len(data), cells)
	}
	n, err := f.Writer(name, nil, nil).Write(data)
	if errors.Is(err, io.EOF) && n >= len(data) {
		err = nil
	}
	if err != nil {
		return fmt.Errorf("save cubes: write %s: %w", name, err)
	}
	return nil
}
