package loadcurve

import (
	"io"
	"math"
	"testing"

	"efficiency-bench/internal/plot/loadcurve/mappings"
	"efficiency-bench/internal/results"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetermineAxisLimits(t *testing.T) {
	eff, _ := mappings.GetFieldMapping("eff")
	vout, _ := mappings.GetFieldMapping("vout")
	iout, _ := mappings.GetFieldMapping("iout")
	override := 60.0

	cases := []struct {
		name           string
		mapping        mappings.FieldMapping
		minOverride    *float64
		dataMin        float64
		dataMax        float64
		wantLo, wantHi string
	}{
		{"fixed range", eff, nil, 10, 99, "40.00", "100.00"},
		{"override", eff, &override, 10, 99, "60.00", "100.00"},
		{"auto margins", vout, nil, 5.0, 5.0, "4.75", "5.25"},
		{"zero data widened", iout, nil, 0, 0, "0.00", "1.00"},
		{"no data", vout, nil, math.Inf(1), math.Inf(-1), "0.00", "100.00"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			lo, hi := determineAxisLimits(tc.mapping, tc.minOverride, nil, tc.dataMin, tc.dataMax)
			assert.Equal(t, tc.wantLo, lo)
			assert.Equal(t, tc.wantHi, hi)
		})
	}
}

func TestGenerate_RejectsEmptyInput(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	g := NewLoadCurveGenerator(logger)

	_, _, err := g.Generate(PlotOptions{YField: "eff"}, nil)
	assert.Error(t, err)

	series := []results.Series{{Setpoint: 5, X: []float64{0}, Y: []float64{1}}}
	_, _, err = g.Generate(PlotOptions{YField: "pin"}, series)
	assert.Error(t, err)

	_, _, err = g.Generate(PlotOptions{YField: "eff"}, series)
	require.NoError(t, err)
}

func TestToTikzOptions(t *testing.T) {
	assert.Equal(t, "blue,solid,thick,mark=*,mark options={scale=0.6,fill=blue}", mappings.GetSetpointStyle(0).ToTikzOptions())
	assert.Equal(t, mappings.GetSetpointStyle(0), mappings.GetSetpointStyle(len(mappings.SetpointStyles)))
	assert.Equal(t, "red", mappings.PlotStyle{Color: "red", Mark: "none"}.ToTikzOptions())
}
