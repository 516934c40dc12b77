// Command genfixture writes a small synthetic forecast in NetCDF for trying
// recipes locally. Values are deterministic so baked outputs can be compared
// between runs.
//
// Usage:
//
//	go run ./cmd/genfixture -out data/forecast/forecast.nc -times 24 -lats 10 -lons 12
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/cset-bake/internal/cube"
	"github.com/jonboulle/clockwork"
)

var baseDate = time.Date(2024, time.April, 26, 0, 0, 0, 0, time.UTC)

// grid describes the extent of the generated fields.
type grid struct {
	times, lats, lons int
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output path for the NetCDF fixture")
	requestOut := flag.String("request-out", "", "optional output path for a sample bake request")
	times := flag.Int("times", 24, "number of hourly time steps")
	lats := flag.Int("lats", 10, "number of latitude points")
	lons := flag.Int("lons", 12, "number of longitude points")
	overwrite := flag.Bool("overwrite", false, "replace an existing fixture")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	g := grid{times: *times, lats: *lats, lons: *lons}
	if g.times < 1 || g.lats < 1 || g.lons < 1 {
		return fmt.Errorf("grid dimensions must be positive, got %dx%dx%d", g.times, g.lats, g.lons)
	}

	// Fixed clock for a reproducible history attribute.
	clock := clockwork.NewFakeClockAt(time.Date(2024, time.April, 27, 6, 0, 0, 0, time.UTC))

	cubes, err := buildFixture(g, clock)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
		return err
	}
	if err := cube.SaveNetCDF(*out, cubes, *overwrite); err != nil {
		return fmt.Errorf("writing fixture: %w", err)
	}
	log.Printf("wrote fixture: %s", *out)

	if *requestOut != "" {
		if err := writeRequest(*requestOut, filepath.Dir(*out)); err != nil {
			return fmt.Errorf("writing request: %w", err)
		}
		log.Printf("wrote sample request: %s", *requestOut)
	}

	for _, c := range cubes {
		fmt.Println(cube.Summarise(c))
	}
	return nil
}

func buildFixture(g grid, clock clockwork.Clock) (cube.CubeList, error) {
	coords := []cube.Coord{
		{Name: "time", Units: "hours since " + baseDate.Format("2006-01-02 15:04:05"), Points: linspace(0, float64(g.times-1), g.times)},
		{Name: "latitude", Units: "degrees_north", Points: linspace(-10, 10, g.lats)},
		{Name: "longitude", Units: "degrees_east", Points: linspace(0, 22, g.lons)},
	}
	dims := []string{"time", "latitude", "longitude"}
	shape := []int{g.times, g.lats, g.lons}
	history := fmt.Sprintf("%s genfixture", clock.Now().UTC().Format(time.RFC3339))

	temperature := make([]float64, 0, g.times*g.lats*g.lons)
	pressure := make([]float64, 0, g.times*g.lats*g.lons)
	for _, t := range coords[0].Points {
		diurnal := math.Sin(2 * math.Pi * t / 24)
		for _, lat := range coords[1].Points {
			for _, lon := range coords[2].Points {
				temperature = append(temperature, round(300-0.6*math.Abs(lat)+4*diurnal+0.05*lon))
				pressure = append(pressure, round(101325-12*lat+25*diurnal-3*lon))
			}
		}
	}

	temp, err := cube.New("air_temperature", "K", dims, shape, temperature)
	if err != nil {
		return nil, err
	}
	pres, err := cube.New("surface_air_pressure", "Pa", dims, shape, pressure)
	if err != nil {
		return nil, err
	}
	for _, c := range []*cube.Cube{temp, pres} {
		c.Coords = coords
		c.Attributes["source"] = "synthetic"
		c.Attributes["history"] = history
	}
	return cube.CubeList{temp, pres}, nil
}

func writeRequest(path, inputDir string) error {
	req := map[string]string{
		"recipe": `steps:
  - operator: read.read_cube
    constraint:
      operator: constraints.generate_var_constraint
      varname: air_temperature
  - operator: collapse.collapse
    coordinate: time
    method: MEAN
  - operator: write.write_cube_to_nc
    filename: CSET_OUTPUT_PATH
`,
		"input_path":  inputDir,
		"output_path": filepath.Join(inputDir, "baked", "air_temperature_mean.nc"),
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

func linspace(lo, hi float64, n int) []float64 {
	if n == 1 {
		return []float64{lo}
	}
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	return out
}

// round keeps two decimals so the fixture reads cleanly in ncdump.
func round(v float64) float64 {
	return math.Round(v*100) / 100
}
