package loadcurve

import (
	"bytes"
	"fmt"
	"math"
	"text/template"
	"time"

	"efficiency-bench/internal/plot/loadcurve/mappings"
	plotTemplate "efficiency-bench/internal/plot/loadcurve/templates/plot"
	wrapperTemplate "efficiency-bench/internal/plot/loadcurve/templates/wrapper"
	"efficiency-bench/internal/results"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
)

// LoadCurveGenerator renders one column of a run against load current, one
// line per input-voltage setpoint.
type LoadCurveGenerator struct {
	logger *logrus.Logger
}

func NewLoadCurveGenerator(logger *logrus.Logger) *LoadCurveGenerator {
	return &LoadCurveGenerator{logger: logger}
}

type PlotOptions struct {
	YField       string
	PlotFileName string
	Label        string
	Station      string
	RunID        string
	Source       string
	MinOverride  *float64
	MaxOverride  *float64
}

func (g *LoadCurveGenerator) Generate(opts PlotOptions, series []results.Series) (string, string, error) {
	g.logger.WithFields(logrus.Fields{
		"y_field": opts.YField,
		"series":  len(series),
		"run_id":  opts.RunID,
	}).Info("Generating load curve plot")

	if len(series) == 0 {
		return "", "", fmt.Errorf("no series to plot for field %s", opts.YField)
	}

	xMapping, ok := mappings.GetFieldMapping("iout")
	if !ok {
		return "", "", fmt.Errorf("unknown X field: iout")
	}
	yMapping, ok := mappings.GetFieldMapping(opts.YField)
	if !ok {
		return "", "", fmt.Errorf("unknown Y field: %s", opts.YField)
	}

	plotData := g.preparePlotData(series, opts, xMapping, yMapping)
	wrapperData := g.prepareWrapperData(opts, yMapping)

	plotOutput, err := g.renderPlot(plotData)
	if err != nil {
		return "", "", fmt.Errorf("failed to render plot: %w", err)
	}

	wrapperOutput, err := g.renderWrapper(wrapperData)
	if err != nil {
		return "", "", fmt.Errorf("failed to render wrapper: %w", err)
	}

	g.logger.WithField("y_field", opts.YField).Debug("Load curve plot generated")
	return plotOutput, wrapperOutput, nil
}

func (g *LoadCurveGenerator) preparePlotData(
	series []results.Series,
	opts PlotOptions,
	xMapping, yMapping mappings.FieldMapping,
) *plotTemplate.PlotData {
	var plots []plotTemplate.PlotSeries
	xMin, xMax := math.Inf(1), math.Inf(-1)
	yMin, yMax := math.Inf(1), math.Inf(-1)

	for i, s := range series {
		n := len(s.X)
		if len(s.Y) < n {
			n = len(s.Y)
		}
		if n == 0 {
			continue
		}

		ps := plotTemplate.PlotSeries{
			Index:       i,
			Setpoint:    fmt.Sprintf("%.2f", s.Setpoint),
			Style:       mappings.GetSetpointStyle(i).ToTikzOptions(),
			LegendEntry: fmt.Sprintf("$V_{in} = %.2f$ V", s.Setpoint),
			Coordinates: make([]string, 0, n),
		}
		for j := 0; j < n; j++ {
			ps.Coordinates = append(ps.Coordinates, fmt.Sprintf("(%.6f,%.6f)", s.X[j], s.Y[j]))
		}

		xMin = math.Min(xMin, floats.Min(s.X[:n]))
		xMax = math.Max(xMax, floats.Max(s.X[:n]))
		yMin = math.Min(yMin, floats.Min(s.Y[:n]))
		yMax = math.Max(yMax, floats.Max(s.Y[:n]))

		plots = append(plots, ps)
	}

	xMinStr, xMaxStr := determineAxisLimits(xMapping, nil, nil, xMin, xMax)
	yMinStr, yMaxStr := determineAxisLimits(yMapping, opts.MinOverride, opts.MaxOverride, yMin, yMax)

	legendPos := "south east"
	if opts.YField == "vout" {
		legendPos = "north east"
	}

	return &plotTemplate.PlotData{
		GeneratedDate: time.Now().Format("2006-01-02 15:04:05"),
		Station:       opts.Station,
		RunID:         opts.RunID,
		Source:        opts.Source,
		Title:         fmt.Sprintf("%s vs Load", yMapping.ShortLabel),
		XLabel:        xMapping.Label,
		YLabel:        yMapping.Label,
		XMin:          xMinStr,
		XMax:          xMaxStr,
		YMin:          yMinStr,
		YMax:          yMaxStr,
		LegendPos:     legendPos,
		Plots:         plots,
	}
}

// determineAxisLimits applies override, then the mapping's fixed bound, then
// a 5% margin around the data for "auto". A degenerate range is widened so
// pgfplots accepts it.
func determineAxisLimits(
	mapping mappings.FieldMapping,
	minOverride, maxOverride *float64,
	dataMin, dataMax float64,
) (string, string) {
	lo := axisBound(mapping.Min, minOverride, dataMin, 0.95, 0)
	hi := axisBound(mapping.Max, maxOverride, dataMax, 1.05, 100)
	if hi <= lo {
		hi = lo + 1
	}
	return fmt.Sprintf("%.2f", lo), fmt.Sprintf("%.2f", hi)
}

func axisBound(bound interface{}, override *float64, data, margin, fallback float64) float64 {
	if override != nil {
		return *override
	}
	if v, ok := bound.(float64); ok {
		return v
	}
	if bound == "auto" && !math.IsInf(data, 0) && !math.IsNaN(data) {
		return data * margin
	}
	return fallback
}

func (g *LoadCurveGenerator) prepareWrapperData(opts PlotOptions, yMapping mappings.FieldMapping) *wrapperTemplate.WrapperData {
	caption := fmt.Sprintf("%s versus load current for each input voltage", yMapping.ShortLabel)
	if opts.Station != "" {
		caption += fmt.Sprintf(" on station %s", opts.Station)
	}
	return &wrapperTemplate.WrapperData{
		GeneratedDate: time.Now().Format("2006-01-02 15:04:05"),
		RunID:         opts.RunID,
		YField:        opts.YField,
		PlotFileName:  opts.PlotFileName,
		ShortCaption:  yMapping.ShortLabel + " vs load",
		Caption:       caption,
		Label:         opts.Label,
	}
}

func (g *LoadCurveGenerator) renderPlot(data *plotTemplate.PlotData) (string, error) {
	tmpl, err := template.New("plot").Parse(plotTemplate.PlotTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse plot template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute plot template: %w", err)
	}
	return buf.String(), nil
}

func (g *LoadCurveGenerator) renderWrapper(data *wrapperTemplate.WrapperData) (string, error) {
	tmpl, err := template.New("wrapper").Parse(wrapperTemplate.WrapperTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse wrapper template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute wrapper template: %w", err)
	}
	return buf.String(), nil
}
