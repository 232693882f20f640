package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"efficiency-bench/internal/config"
	"efficiency-bench/internal/database"
	"efficiency-bench/internal/instrument"
	"efficiency-bench/internal/logging"
	"efficiency-bench/internal/metrics"
	"efficiency-bench/internal/plot"
	"efficiency-bench/internal/profile"
	"efficiency-bench/internal/results"
	"efficiency-bench/internal/sweep"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// EfficiencyBench holds everything one `run` invocation needs.
type EfficiencyBench struct {
	config        *config.StationConfig
	configFile    string
	configContent string
	checksum      string
	runID         string

	plan   *sweep.Plan
	source *profile.Source
	load   *profile.Load

	resolver   *instrument.Resolver
	recorder   *metrics.Recorder
	controller *sweep.Controller

	in  io.Reader
	out io.Writer

	startTime time.Time
	endTime   time.Time
}

func newEfficiencyBench(configFile string, args []string, useStationLogLevel bool) (*EfficiencyBench, error) {
	logger := logging.GetLogger()

	bench := &EfficiencyBench{
		configFile: configFile,
		runID:      uuid.New().String(),
		in:         os.Stdin,
		out:        os.Stdout,
	}

	var err error
	bench.config, bench.configContent, err = config.LoadConfigWithContent(configFile)
	if err != nil {
		logger.WithField("config_file", configFile).WithError(err).Error("Failed to load configuration")
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if useStationLogLevel && bench.config.Station.LogLevel != "" {
		if err := logging.SetLogLevel(bench.config.Station.LogLevel); err != nil {
			logger.WithField("log_level", bench.config.Station.LogLevel).WithError(err).Warn("Invalid log level in config, using INFO")
			logging.SetLogLevel("info")
		}
	}
	if level := bench.config.Station.InstrumentLogLevel; level != "" {
		if err := logging.SetInstrumentLogLevel(level); err != nil {
			logger.WithField("instrument_log_level", level).WithError(err).Warn("Invalid instrument log level in config")
		}
	}

	if bench.checksum, err = config.StationChecksum(bench.config); err != nil {
		return nil, err
	}

	bench.plan, err = sweep.ParseArgs(args)
	if err != nil {
		return nil, fmt.Errorf("invalid sweep arguments: %w", err)
	}

	variant, err := profile.ParseVariant(bench.config.Instruments.Source.Profile)
	if err != nil {
		return nil, err
	}
	if bench.source, err = profile.NewSource(variant, bench.plan.CurrentLimit()); err != nil {
		return nil, err
	}
	if bench.load, err = profile.NewLoad(bench.config.Instruments.Load.Channel); err != nil {
		return nil, err
	}

	bench.recorder = metrics.NewRecorder()
	bench.resolver = instrument.NewResolver(bench.config.Resources, instrument.Options{
		Timeout:         bench.config.Sweep.QueryTimeout,
		CommandInterval: bench.config.Sweep.CommandInterval,
		Observer:        bench.recorder,
	})

	return bench, nil
}

func (eb *EfficiencyBench) execute(ctx context.Context) error {
	logger := logging.GetLogger()

	if addr := eb.config.Metrics.Listen; addr != "" {
		metricsCtx, stopMetrics := context.WithCancel(context.Background())
		defer stopMetrics()
		go func() {
			if err := eb.recorder.Serve(metricsCtx, addr); err != nil {
				logger.WithField("addr", addr).WithError(err).Warn("Metrics server stopped")
			}
		}()
	}

	eb.controller = sweep.New(eb.plan, sweep.Config{
		SourceResource:  eb.config.Instruments.Source.Resource,
		LoadResource:    eb.config.Instruments.Load.Resource,
		Source:          eb.source,
		Load:            eb.load,
		SettleTime:      eb.config.Sweep.SettleTime,
		SourceInitDelay: eb.config.Sweep.SourceInitDelay,
		ShutdownTimeout: eb.config.Sweep.ShutdownTimeout,
	}, eb.resolver, &sweep.TerminalConfirmer{In: eb.in, Out: eb.out},
		sweep.WithObserver(eb.recorder),
		sweep.WithProgress(eb.out),
		sweep.WithLogger(logger),
	)

	logger.WithFields(logrus.Fields{
		"run_id":   eb.runID,
		"station":  eb.config.Station.Name,
		"checksum": eb.checksum,
		"steps":    eb.plan.Steps(),
	}).Info("Starting efficiency test")

	eb.startTime = time.Now()
	tables, err := eb.controller.Run(ctx)
	eb.endTime = time.Now()
	if err != nil {
		if errors.Is(err, sweep.ErrDeclined) || errors.Is(err, sweep.ErrInterrupted) {
			return err
		}
		return fmt.Errorf("sweep failed: %w", err)
	}

	return eb.persist(tables)
}

// persist exports a completed run. The CSV is written first; the remaining
// sinks are attempted even if one of them fails.
func (eb *EfficiencyBench) persist(tables []*results.Table) error {
	logger := logging.GetLogger()

	store, err := results.NewStore(tables)
	if err != nil {
		return err
	}

	csvPath, err := store.Save(eb.config.Output.Dir, eb.endTime)
	if err != nil {
		logger.WithError(err).Error("Failed to save results")
		return fmt.Errorf("failed to save results: %w", err)
	}
	fmt.Fprintf(eb.out, "Results saved to %s\n", csvPath)

	var errs []error

	if eb.config.Output.PlotsEnabled() {
		base := strings.TrimSuffix(filepath.Base(csvPath), filepath.Ext(csvPath))
		pm := plot.NewPlotManager(logger)
		if _, err := pm.WriteFiles(eb.config.Output.Dir, base, store, plot.Options{
			Station: eb.config.Station.Name,
			RunID:   eb.runID,
			Source:  filepath.Base(csvPath),
		}); err != nil {
			logger.WithError(err).Error("Failed to write plots")
			errs = append(errs, err)
		}
	}

	if !eb.config.Output.Spool && !eb.config.Data.DB.Enabled() {
		return errors.Join(errs...)
	}

	meta, err := eb.collectMetadata(tables)
	if err != nil {
		logger.WithError(err).Error("Failed to collect metadata")
		return errors.Join(append(errs, err)...)
	}

	if eb.config.Output.Spool {
		if err := eb.writeSpool(tables, meta); err != nil {
			logger.WithError(err).Error("Failed to write spool artifact")
			errs = append(errs, err)
		}
	}

	if eb.config.Data.DB.Enabled() {
		if err := eb.writeDatabaseData(tables, meta); err != nil {
			logger.WithError(err).Error("Failed to write run to database")
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (eb *EfficiencyBench) collectMetadata(tables []*results.Table) (*database.RunMetadata, error) {
	summary := eb.controller.Summary()

	total := 0
	for _, t := range tables {
		total += t.Len()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return database.CollectRunMetadata(ctx, database.RunInfo{
		RunID:           eb.runID,
		Station:         eb.config.Station.Name,
		Description:     eb.config.Station.Description,
		StationChecksum: eb.checksum,
		Started:         eb.startTime,
		Finished:        eb.endTime,
		SourceResource:  summary.SourceResource,
		SourceID:        summary.SourceID,
		SourceProfile:   summary.SourceProfile,
		LoadResource:    summary.LoadResource,
		LoadID:          summary.LoadID,
		LoadChannel:     summary.LoadChannel,
		Voltages:        eb.plan.Voltages(),
		PointsPerTable:  len(eb.plan.Currents()),
		TotalSamples:    total,
		SettleTime:      eb.config.Sweep.SettleTime,
		DriverVersion:   Version,
		ConfigFile:      eb.configFile,
	})
}

func (eb *EfficiencyBench) writeSpool(tables []*results.Table, meta *database.RunMetadata) error {
	logger := logging.GetLogger()

	offsets := eb.plan.Offsets()
	artifact := database.BuildSpoolArtifact(
		eb.runID,
		eb.config.Station.Name,
		eb.checksum,
		eb.configContent,
		database.PlanRecord{
			Voltages:     eb.plan.Voltages(),
			Currents:     eb.plan.Currents(),
			CurrentLimit: eb.plan.CurrentLimit(),
			InputOffset:  offsets.Input,
			OutputOffset: offsets.Output,
		},
		tables,
		meta,
		eb.startTime,
		eb.endTime,
	)

	path, err := database.WriteSpoolArtifact(eb.config.Output.SpoolDir, artifact)
	if err != nil {
		return err
	}
	logger.WithField("path", path).Info("Spool artifact written")
	return nil
}

func (eb *EfficiencyBench) writeDatabaseData(tables []*results.Table, meta *database.RunMetadata) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := database.NewInfluxDBClient(ctx, eb.config.Data.DB)
	if err != nil {
		return err
	}
	defer client.Close()

	return client.WriteRun(ctx, meta, tables, eb.startTime)
}

// identifyInstruments opens both instruments and prints their *IDN? replies.
func identifyInstruments(ctx context.Context, configFile string, out io.Writer) error {
	logger := logging.GetLogger()

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	resolver := instrument.NewResolver(cfg.Resources, instrument.Options{
		Timeout:         cfg.Sweep.QueryTimeout,
		CommandInterval: cfg.Sweep.CommandInterval,
	})

	for _, name := range []string{cfg.Instruments.Source.Resource, cfg.Instruments.Load.Resource} {
		session, err := resolver.Open(ctx, name)
		if err != nil {
			return err
		}

		id, err := session.Query(ctx, profile.IdentifyCommand)
		if cerr := session.Close(); cerr != nil {
			logger.WithField("resource", name).WithError(cerr).Warn("Failed to close instrument")
		}
		if err != nil {
			return fmt.Errorf("failed to identify %s: %w", name, err)
		}

		address, _ := cfg.ResolveAddress(name)
		fmt.Fprintf(out, "%s (%s): %s\n", name, address, strings.TrimSpace(id))
	}
	return nil
}
