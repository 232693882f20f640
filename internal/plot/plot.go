package plot

import (
	"fmt"
	"os"
	"path/filepath"

	"efficiency-bench/internal/plot/loadcurve"
	"efficiency-bench/internal/results"

	"github.com/sirupsen/logrus"
)

type PlotType string

const (
	PlotTypeEfficiency    PlotType = "efficiency"
	PlotTypeOutputVoltage PlotType = "vout"
)

// Options carries run context into the rendered figures.
type Options struct {
	Station string
	RunID   string
	Source  string
	// Y axis overrides; nil keeps the field's default range.
	MinOverride *float64
	MaxOverride *float64
}

type PlotManager struct {
	loadCurveGenerator *loadcurve.LoadCurveGenerator
	logger             *logrus.Logger
}

func NewPlotManager(logger *logrus.Logger) *PlotManager {
	return &PlotManager{
		loadCurveGenerator: loadcurve.NewLoadCurveGenerator(logger),
		logger:             logger,
	}
}

// FileNames returns the plot and wrapper file names for one figure.
func FileNames(base string, plotType PlotType) (plotFile, wrapperFile string) {
	stem := fmt.Sprintf("%s_%s", base, plotType)
	return stem + ".tikz", stem + "-wrapper.tex"
}

func (pm *PlotManager) Generate(store *results.Store, plotType PlotType, base string, opts Options) (plotTikz, wrapperTex string, err error) {
	var series []results.Series
	var yField string
	switch plotType {
	case PlotTypeEfficiency:
		series, yField = store.EfficiencySeries(), "eff"
	case PlotTypeOutputVoltage:
		series, yField = store.OutputVoltageSeries(), "vout"
	default:
		return "", "", fmt.Errorf("unknown plot type %q", plotType)
	}

	plotFile, _ := FileNames(base, plotType)
	return pm.loadCurveGenerator.Generate(loadcurve.PlotOptions{
		YField:       yField,
		PlotFileName: plotFile,
		Label:        fmt.Sprintf("%s-%s", base, plotType),
		Station:      opts.Station,
		RunID:        opts.RunID,
		Source:       opts.Source,
		MinOverride:  opts.MinOverride,
		MaxOverride:  opts.MaxOverride,
	}, series)
}

func (pm *PlotManager) GenerateEfficiencyPlot(store *results.Store, base string, opts Options) (string, string, error) {
	return pm.Generate(store, PlotTypeEfficiency, base, opts)
}

// GenerateOutputVoltagePlot ignores the Y overrides in opts; they apply to
// the efficiency axis only.
func (pm *PlotManager) GenerateOutputVoltagePlot(store *results.Store, base string, opts Options) (string, string, error) {
	opts.MinOverride, opts.MaxOverride = nil, nil
	return pm.Generate(store, PlotTypeOutputVoltage, base, opts)
}

// WriteFiles renders both figures into dir and returns the paths written.
func (pm *PlotManager) WriteFiles(dir, base string, store *results.Store, opts Options) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create plot directory: %w", err)
	}

	type figure struct {
		plotType PlotType
		render   func(*results.Store, string, Options) (string, string, error)
	}
	figures := []figure{
		{PlotTypeEfficiency, pm.GenerateEfficiencyPlot},
		{PlotTypeOutputVoltage, pm.GenerateOutputVoltagePlot},
	}

	var written []string
	for _, f := range figures {
		tikz, wrapper, err := f.render(store, base, opts)
		if err != nil {
			return written, fmt.Errorf("failed to generate %s plot: %w", f.plotType, err)
		}

		plotFile, wrapperFile := FileNames(base, f.plotType)
		outputs := [][2]string{{plotFile, tikz}, {wrapperFile, wrapper}}
		for _, out := range outputs {
			path := filepath.Join(dir, out[0])
			if err := os.WriteFile(path, []byte(out[1]), 0o644); err != nil {
				return written, fmt.Errorf("failed to write %s: %w", path, err)
			}
			written = append(written, path)
		}
	}

	pm.logger.WithFields(logrus.Fields{
		"dir":   dir,
		"files": len(written),
	}).Info("Plots written")
	return written, nil
}
