package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"efficiency-bench/internal/config"
	"efficiency-bench/internal/logging"
	"efficiency-bench/internal/sweep"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const Version = "1.0.0"

const (
	exitOK          = 0
	exitFailure     = 1
	exitInterrupted = 130
)

func loadEnvironment() {
	logger := logging.GetLogger()

	// Try to load .env file from current directory
	envFile := ".env"
	if _, err := os.Stat(envFile); err != nil {
		// Fall back to the application directory
		execPath, err := os.Executable()
		if err != nil {
			return
		}
		envFile = filepath.Join(filepath.Dir(execPath), ".env")
		if _, err := os.Stat(envFile); err != nil {
			return
		}
	}

	if err := godotenv.Load(envFile); err != nil {
		logger.WithField("file", envFile).WithError(err).Warn("Error loading .env file")
		return
	}
	logger.WithField("file", envFile).Debug("Loaded environment variables")
}

// exitCode maps a command result to the process exit status. Declining the
// confirmation prompt is a normal exit.
func exitCode(err error) int {
	switch {
	case err == nil, errors.Is(err, sweep.ErrDeclined):
		return exitOK
	case errors.Is(err, sweep.ErrInterrupted):
		return exitInterrupted
	default:
		return exitFailure
	}
}

// withSignals cancels the returned context on the first SIGINT or SIGTERM.
// Later signals are logged and ignored so the equipment shutdown can finish.
func withSignals(parent context.Context) (context.Context, func()) {
	logger := logging.GetLogger()
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		received := false
		for {
			select {
			case sig := <-sigChan:
				if received {
					logger.WithField("signal", sig.String()).Warn("Shutdown already in progress, ignoring signal")
					continue
				}
				received = true
				logger.WithField("signal", sig.String()).Info("Received interrupt signal, shutting down")
				cancel()
			case <-done:
				return
			}
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		close(done)
		cancel()
	}
}

func newRootCmd() *cobra.Command {
	var configFile string
	var logLevel string
	var csvFile, runID, outDir, plotType string
	var minVal, maxVal float64
	var onlyPlot, onlyWrapper bool
	var setpoints []float64

	rootCmd := &cobra.Command{
		Use:           "efficiency-bench",
		Short:         "Automated power converter efficiency test bench",
		Long:          "Drives a programmable power supply and electronic load through a voltage/current sweep and records the efficiency of the device under test",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if logLevel != "" {
				if err := logging.SetLogLevel(logLevel); err != nil {
					return fmt.Errorf("invalid log level: %w", err)
				}
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Set log level (trace, debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run [flags] [--] Vin_min Vin_nom Vin_max Iload_min Iload_max N_points [Iin_offset Iout_offset] I_limit",
		Short: "Run an efficiency sweep",
		Long:  "Run an efficiency sweep. Put -- before the positional arguments when an offset is negative.",
		Args:  cobra.RangeArgs(7, 9),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := withSignals(commandContext(cmd))
			defer stop()

			bench, err := newEfficiencyBench(configFile, args, logLevel == "")
			if err != nil {
				return err
			}
			bench.in = cmd.InOrStdin()
			bench.out = cmd.OutOrStdout()
			return bench.execute(ctx)
		},
	}

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a station configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateConfig(configFile)
		},
	}

	identifyCmd := &cobra.Command{
		Use:   "identify",
		Short: "Query the identification string of both instruments",
		Long:  "Open the configured source and load and print their *IDN? replies. Nothing else is sent.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := withSignals(commandContext(cmd))
			defer stop()
			return identifyInstruments(ctx, configFile, cmd.OutOrStdout())
		},
	}

	plotCmd := &cobra.Command{
		Use:   "plot",
		Short: "Generate plots from a saved run",
		Long: `Generate LaTeX/TikZ plots from a result CSV file or from a run stored in InfluxDB.

A CSV export carries no setpoints, so each curve is labelled with the first
measured input voltage of its table (for example 11.98V instead of 12.00V).
Pass the nominal setpoints with --vin to label CSV plots like the live run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := plotCommandOptions{
				csvFile:     csvFile,
				runID:       runID,
				configFile:  configFile,
				outDir:      outDir,
				plotType:    plotType,
				onlyPlot:    onlyPlot,
				onlyWrapper: onlyWrapper,
				setpoints:   setpoints,
			}
			if cmd.Flags().Changed("min") {
				opts.minOverride = &minVal
			}
			if cmd.Flags().Changed("max") {
				opts.maxOverride = &maxVal
			}
			return generatePlots(commandContext(cmd), opts, cmd.OutOrStdout())
		},
	}

	for _, c := range []*cobra.Command{runCmd, validateCmd, identifyCmd} {
		c.Flags().StringVarP(&configFile, "config", "c", "", "Path to station configuration file")
		c.MarkFlagRequired("config")
	}

	plotCmd.Flags().StringVar(&csvFile, "csv", "", "Result CSV file to plot")
	plotCmd.Flags().StringVar(&runID, "run-id", "", "Run ID to load from InfluxDB (needs --config)")
	plotCmd.Flags().StringVarP(&configFile, "config", "c", "", "Station configuration with a data.db section")
	plotCmd.Flags().StringVar(&outDir, "out", "", "Write plot files to this directory instead of printing them")
	plotCmd.Flags().StringVar(&plotType, "type", "efficiency", "Figure to print: efficiency or vout")
	plotCmd.Flags().Float64Var(&minVal, "min", 0, "Minimum efficiency axis value")
	plotCmd.Flags().Float64Var(&maxVal, "max", 0, "Maximum efficiency axis value")
	plotCmd.Flags().BoolVar(&onlyPlot, "plot", false, "Print only the plot file (TikZ)")
	plotCmd.Flags().Float64SliceVar(&setpoints, "vin", nil, "Nominal input voltages of the CSV tables, in table order")
	plotCmd.Flags().BoolVar(&onlyWrapper, "wrapper", false, "Print only the wrapper file (LaTeX)")
	plotCmd.MarkFlagsMutuallyExclusive("csv", "run-id")
	plotCmd.MarkFlagsMutuallyExclusive("vin", "run-id")
	plotCmd.MarkFlagsOneRequired("csv", "run-id")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(identifyCmd)
	rootCmd.AddCommand(plotCmd)

	return rootCmd
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func main() {
	logger := logging.GetLogger()

	loadEnvironment()

	err := newRootCmd().ExecuteContext(context.Background())
	switch {
	case err == nil:
	case errors.Is(err, sweep.ErrDeclined):
		logger.Info("Test aborted by operator, nothing was energized")
	case errors.Is(err, sweep.ErrInterrupted):
		logger.WithError(err).Warn("Sweep interrupted, equipment safed and no results written")
	default:
		logger.WithError(err).Error("Command execution failed")
	}
	os.Exit(exitCode(err))
}

func validateConfig(configFile string) error {
	logger := logging.GetLogger()

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		logger.WithField("config_file", configFile).WithError(err).Error("Configuration validation failed")
		return err
	}

	checksum, err := config.StationChecksum(cfg)
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"config_file": configFile,
		"station":     cfg.Station.Name,
		"checksum":    checksum,
	}).Info("Configuration is valid")
	return nil
}
