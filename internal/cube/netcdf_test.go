package cube

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNetCDF_RoundTrip(t *testing.T) {
	temp := temperature(t)
	temp.Data[4] = math.NaN()
	pres, err := New("surface_air_pressure", "Pa", []string{"time"}, []int{2}, []float64{101000, 101200})
	require.NoError(t, err)
	pres.Coords = []Coord{temp.Coords[0]}

	path := filepath.Join(t.TempDir(), "out.nc")
	require.NoError(t, SaveNetCDF(path, CubeList{temp, pres}, false))

	got, err := LoadNetCDF(path)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"air_temperature", "surface_air_pressure"}, got.Names())

	loaded, err := got.ExtractCube(NameConstraint{Name: "air_temperature"})
	require.NoError(t, err)
	assert.Equal(t, "K", loaded.Units)
	assert.Equal(t, []string{"time", "latitude"}, loaded.Dims)
	assert.Equal(t, []int{2, 3}, loaded.Shape)
	assert.Equal(t, "model", loaded.Attributes["source"])
	assert.True(t, math.IsNaN(loaded.Data[4]))
	assert.Equal(t, 294.0, loaded.Data[5])

	lat, ok := loaded.Coord("latitude")
	require.True(t, ok)
	assert.Equal(t, []float64{-10, 0, 10}, lat.Points)
	assert.Equal(t, "degrees_north", lat.Units)
}

func TestSaveNetCDF_Overwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.nc")
	cubes := CubeList{temperature(t)}

	require.NoError(t, SaveNetCDF(path, cubes, false))

	err := SaveNetCDF(path, cubes, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrExist)

	require.NoError(t, SaveNetCDF(path, cubes, true))
}

func TestSaveNetCDF_SingleVariable(t *testing.T) {
	c, err := New("t", "K", []string{"x"}, []int{3}, []float64{1, 2, 3})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "o.nc")
	require.NoError(t, SaveNetCDF(path, CubeList{c}, false))

	got, err := LoadNetCDF(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []float64{1, 2, 3}, got[0].Data)
}

func TestSaveNetCDF_FailedWriteLeavesNoFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.nc")
	short := &Cube{Name: "t", Units: "K", Dims: []string{"x"}, Shape: []int{3}, Data: []float64{1, 2}}

	err := SaveNetCDF(path, CubeList{short}, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "have 2 values for 3 cells")
	assert.NoFileExists(t, path)

	c, err := New("t", "K", []string{"x"}, []int{3}, []float64{1, 2, 3})
	require.NoError(t, err)
	require.NoError(t, SaveNetCDF(path, CubeList{c}, false))
}

func TestSaveNetCDF_Errors(t *testing.T) {
	dir := t.TempDir()

	t.Run("nothing to write", func(t *testing.T) {
		err := SaveNetCDF(filepath.Join(dir, "empty.nc"), nil, true)
		require.Error(t, err)
	})

	t.Run("conflicting dimension lengths", func(t *testing.T) {
		other, err := New("y", "1", []string{"time"}, []int{3}, []float64{1, 2, 3})
		require.NoError(t, err)
		err = SaveNetCDF(filepath.Join(dir, "bad.nc"), CubeList{temperature(t), other}, true)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "dimension time")
	})

	t.Run("repeated cube name", func(t *testing.T) {
		path := filepath.Join(dir, "twice.nc")
		err := SaveNetCDF(path, CubeList{temperature(t), temperature(t)}, true)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "more than one cube named air_temperature")
		assert.NoFileExists(t, path)
	})
}

func TestLoadNetCDF_Directory(t *testing.T) {
	dir := t.TempDir()
	a := temperature(t)
	b, err := New("relative_humidity", "%", []string{"time"}, []int{2}, []float64{40, 60})
	require.NoError(t, err)

	require.NoError(t, SaveNetCDF(filepath.Join(dir, "b.nc"), CubeList{b}, false))
	require.NoError(t, SaveNetCDF(filepath.Join(dir, "a.nc"), CubeList{a}, false))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600))

	got, err := LoadNetCDF(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"air_temperature", "relative_humidity"}, got.Names())
}

func TestLoadNetCDF_Errors(t *testing.T) {
	t.Run("missing path", func(t *testing.T) {
		_, err := LoadNetCDF(filepath.Join(t.TempDir(), "missing.nc"))
		require.Error(t, err)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("empty directory", func(t *testing.T) {
		_, err := LoadNetCDF(t.TempDir())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no .nc files")
	})

	t.Run("not netcdf", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bogus.nc")
		require.NoError(t, os.WriteFile(path, []byte("not a netcdf file"), 0o600))
		_, err := LoadNetCDF(path)
		require.Error(t, err)
	})
}
