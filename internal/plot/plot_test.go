package plot

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"efficiency-bench/internal/results"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *results.Store {
	t.Helper()
	var tables []*results.Table
	for i, vin := range []float64{5, 12} {
		table := results.NewTable(i, vin, 3)
		for _, iout := range []float64{0, 1, 2} {
			require.NoError(t, table.Append(results.Sample{
				InputVoltage:  vin,
				InputCurrent:  0.5 * iout,
				InputPower:    vin * 0.5 * iout,
				OutputVoltage: 5 - 0.02*iout,
				OutputCurrent: iout,
				OutputPower:   (5 - 0.02*iout) * iout,
				Efficiency:    90,
			}))
		}
		table.Freeze()
		tables = append(tables, table)
	}
	store, err := results.NewStore(tables)
	require.NoError(t, err)
	return store
}

func quietManager() *PlotManager {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewPlotManager(logger)
}

func TestFileNames(t *testing.T) {
	plotFile, wrapperFile := FileNames("efficiency_test_2024_01_02_03_04_05", PlotTypeEfficiency)
	assert.Equal(t, "efficiency_test_2024_01_02_03_04_05_efficiency.tikz", plotFile)
	assert.Equal(t, "efficiency_test_2024_01_02_03_04_05_efficiency-wrapper.tex", wrapperFile)

	plotFile, wrapperFile = FileNames("run", PlotTypeOutputVoltage)
	assert.Equal(t, "run_vout.tikz", plotFile)
	assert.Equal(t, "run_vout-wrapper.tex", wrapperFile)
}

func TestGenerateEfficiencyPlot(t *testing.T) {
	tikz, wrapper, err := quietManager().GenerateEfficiencyPlot(testStore(t), "run", Options{Station: "bench-a", RunID: "abc"})
	require.NoError(t, err)

	assert.Equal(t, 2, strings.Count(tikz, `\addplot+`))
	assert.Contains(t, tikz, "ymin=40.00, ymax=100.00")
	assert.Contains(t, tikz, "xmin=0.00, xmax=2.10")
	assert.Contains(t, tikz, "(1.000000,90.000000)")
	assert.Contains(t, tikz, "$V_{in} = 12.00$ V")
	assert.Contains(t, tikz, "% Station: bench-a")

	assert.Contains(t, wrapper, `\input{./run_efficiency.tikz }`)
	assert.Contains(t, wrapper, `\label{fig:run-efficiency}`)
	assert.Contains(t, wrapper, "on station bench-a")
}

func TestGenerateEfficiencyPlot_Overrides(t *testing.T) {
	lo, hi := 80.0, 95.0
	store := testStore(t)
	pm := quietManager()

	tikz, _, err := pm.GenerateEfficiencyPlot(store, "run", Options{MinOverride: &lo, MaxOverride: &hi})
	require.NoError(t, err)
	assert.Contains(t, tikz, "ymin=80.00, ymax=95.00")

	tikz, _, err = pm.GenerateOutputVoltagePlot(store, "run", Options{MinOverride: &lo, MaxOverride: &hi})
	require.NoError(t, err)
	assert.NotContains(t, tikz, "ymin=80.00")
	assert.Contains(t, tikz, "ymax=5.25")
}

func TestGenerate_UnknownType(t *testing.T) {
	_, _, err := quietManager().Generate(testStore(t), PlotType("pin"), "run", Options{})
	assert.Error(t, err)
}

func TestWriteFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "plots")

	written, err := quietManager().WriteFiles(dir, "run", testStore(t), Options{})
	require.NoError(t, err)
	require.Len(t, written, 4)

	for _, name := range []string{"run_efficiency.tikz", "run_efficiency-wrapper.tex", "run_vout.tikz", "run_vout-wrapper.tex"} {
		path := filepath.Join(dir, name)
		assert.Contains(t, written, path)
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.NotEmpty(t, data)
	}
}
