package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"efficiency-bench/internal/config"
	"efficiency-bench/internal/logging"
	"efficiency-bench/internal/plot"
	plotdb "efficiency-bench/internal/plot/database"
	"efficiency-bench/internal/results"

	"github.com/sirupsen/logrus"
)

type plotCommandOptions struct {
	csvFile     string
	runID       string
	configFile  string
	outDir      string
	plotType    string
	minOverride *float64
	maxOverride *float64
	onlyPlot    bool
	onlyWrapper bool
	setpoints   []float64
}

func generatePlots(ctx context.Context, opts plotCommandOptions, out io.Writer) error {
	logger := logging.GetLogger()
	logger.WithFields(logrus.Fields{
		"csv":    opts.csvFile,
		"run_id": opts.runID,
		"type":   opts.plotType,
	}).Debug("Generating plots")

	store, base, plotOpts, err := loadPlotSource(ctx, opts)
	if err != nil {
		return err
	}
	plotOpts.MinOverride = opts.minOverride
	plotOpts.MaxOverride = opts.maxOverride

	pm := plot.NewPlotManager(logger)

	if opts.outDir != "" {
		written, err := pm.WriteFiles(opts.outDir, base, store, plotOpts)
		if err != nil {
			return fmt.Errorf("failed to write plots: %w", err)
		}
		for _, path := range written {
			fmt.Fprintln(out, path)
		}
		return nil
	}

	plotType := plot.PlotType(opts.plotType)
	plotTikz, wrapperTex, err := pm.Generate(store, plotType, base, plotOpts)
	if err != nil {
		logger.WithError(err).Error("Failed to generate plot")
		return fmt.Errorf("failed to generate plot: %w", err)
	}

	plotFile, wrapperFile := plot.FileNames(base, plotType)
	showPlot := !opts.onlyWrapper
	showWrapper := !opts.onlyPlot

	if showPlot {
		fmt.Fprintln(out, "="+strings.Repeat("=", 78)+"=")
		fmt.Fprintf(out, "PLOT FILE: %s\n", plotFile)
		fmt.Fprintln(out, "="+strings.Repeat("=", 78)+"=")
		fmt.Fprintln(out, plotTikz)
	}
	if showWrapper {
		fmt.Fprintln(out, "="+strings.Repeat("=", 78)+"=")
		fmt.Fprintf(out, "WRAPPER FILE: %s\n", wrapperFile)
		fmt.Fprintln(out, "="+strings.Repeat("=", 78)+"=")
		fmt.Fprintln(out, wrapperTex)
	}
	return nil
}

// applySetpoints replaces the measured-Vin labels of re-read CSV tables with
// the nominal setpoints, one per table.
func applySetpoints(store *results.Store, setpoints []float64) error {
	if len(setpoints) == 0 {
		return nil
	}
	tables := store.Tables()
	if len(setpoints) != len(tables) {
		return fmt.Errorf("--vin has %d values but the CSV holds %d tables", len(setpoints), len(tables))
	}
	for i, t := range tables {
		t.Setpoint = setpoints[i]
	}
	return nil
}

// loadPlotSource reads tables from a CSV export or from InfluxDB and picks
// the base name for the generated files.
func loadPlotSource(ctx context.Context, opts plotCommandOptions) (*results.Store, string, plot.Options, error) {
	if opts.csvFile != "" {
		store, err := results.LoadCSV(opts.csvFile)
		if err != nil {
			return nil, "", plot.Options{}, fmt.Errorf("failed to load %s: %w", opts.csvFile, err)
		}
		if err := applySetpoints(store, opts.setpoints); err != nil {
			return nil, "", plot.Options{}, err
		}
		name := filepath.Base(opts.csvFile)
		base := strings.TrimSuffix(name, filepath.Ext(name))
		return store, base, plot.Options{Source: name}, nil
	}

	if opts.configFile == "" {
		return nil, "", plot.Options{}, fmt.Errorf("--run-id needs --config for the database connection")
	}
	cfg, err := config.LoadConfig(opts.configFile)
	if err != nil {
		return nil, "", plot.Options{}, fmt.Errorf("failed to load config: %w", err)
	}

	client, err := plotdb.NewPlotDBClient(cfg.Data.DB, logging.GetLogger())
	if err != nil {
		return nil, "", plot.Options{}, err
	}
	defer client.Close()

	tables, err := client.QueryRunTables(ctx, opts.runID)
	if err != nil {
		return nil, "", plot.Options{}, err
	}
	station := cfg.Station.Name
	if meta, err := client.QueryRunMeta(ctx, opts.runID); err == nil && meta.Station != "" {
		station = meta.Station
	}

	store, err := results.NewStore(tables)
	if err != nil {
		return nil, "", plot.Options{}, err
	}
	return store, "run_" + opts.runID, plot.Options{
		Station: station,
		RunID:   opts.runID,
		Source:  "influxdb",
	}, nil
}
