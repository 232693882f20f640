package database

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"efficiency-bench/internal/config"
	"efficiency-bench/internal/logging"
	"efficiency-bench/internal/results"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/sirupsen/logrus"
)

const (
	MeasurementSample  = "efficiency_sample"
	MeasurementRunMeta = "efficiency_run_meta"
)

type InfluxDBClient struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	bucket   string
	org      string
}

func NewInfluxDBClient(ctx context.Context, cfg config.DatabaseConfig) (*InfluxDBClient, error) {
	logger := logging.GetLogger()

	client := influxdb2.NewClient(cfg.Host, cfg.Password)

	healthCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	health, err := client.Health(healthCtx)
	if err != nil {
		logger.WithField("host", cfg.Host).WithError(err).Error("Failed to connect to InfluxDB")
		client.Close()
		return nil, fmt.Errorf("failed to connect to InfluxDB at %s: %w", cfg.Host, err)
	}

	if health.Status != "pass" {
		message := ""
		if health.Message != nil {
			message = *health.Message
		}
		logger.WithFields(logrus.Fields{
			"host":    cfg.Host,
			"status":  health.Status,
			"message": message,
		}).Error("InfluxDB health check failed")
		client.Close()
		return nil, fmt.Errorf("InfluxDB at %s is unhealthy: %s", cfg.Host, health.Status)
	}

	logger.WithFields(logrus.Fields{
		"host":   cfg.Host,
		"bucket": cfg.Name,
		"org":    cfg.Org,
	}).Info("Connected to InfluxDB")

	return &InfluxDBClient{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Name),
		bucket:   cfg.Name,
		org:      cfg.Org,
	}, nil
}

// BuildSamplePoints turns every sample of a run into one point. Points of a
// run are spaced one millisecond apart from start so they stay distinct.
func BuildSamplePoints(runID, station string, tables []*results.Table, start time.Time) []*write.Point {
	var points []*write.Point
	step := 0
	for _, t := range tables {
		tags := map[string]string{
			"run_id":       runID,
			"station":      station,
			"table_index":  strconv.Itoa(t.Index),
			"vin_setpoint": strconv.FormatFloat(t.Setpoint, 'f', -1, 64),
		}
		for _, s := range t.Samples() {
			fields := map[string]interface{}{
				"vin":  s.InputVoltage,
				"iin":  s.InputCurrent,
				"pin":  s.InputPower,
				"vout": s.OutputVoltage,
				"iout": s.OutputCurrent,
				"pout": s.OutputPower,
				"eff":  s.Efficiency,
				"step": int64(step),
			}
			points = append(points, influxdb2.NewPoint(MeasurementSample, tags, fields,
				start.Add(time.Duration(step)*time.Millisecond)))
			step++
		}
	}
	return points
}

func BuildMetadataPoint(meta *RunMetadata) *write.Point {
	return influxdb2.NewPoint(MeasurementRunMeta,
		map[string]string{
			"run_id":  meta.RunID,
			"station": meta.Station,
		},
		map[string]interface{}{
			"description":      meta.Description,
			"station_checksum": meta.StationChecksum,
			"run_started":      meta.RunStarted,
			"run_finished":     meta.RunFinished,
			"duration_seconds": meta.DurationSeconds,
			"source_resource":  meta.SourceResource,
			"source_id":        meta.SourceID,
			"source_profile":   meta.SourceProfile,
			"load_resource":    meta.LoadResource,
			"load_id":          meta.LoadID,
			"load_channel":     int64(meta.LoadChannel),
			"tables":           int64(len(meta.Voltages)),
			"points_per_table": int64(meta.PointsPerTable),
			"total_samples":    int64(meta.TotalSamples),
			"settle_time_ms":   meta.SettleTimeMS,
			"driver_version":   meta.DriverVersion,
			"hostname":         meta.Hostname,
			"os_info":          meta.OSInfo,
			"platform":         meta.Platform,
			"kernel_version":   meta.KernelVersion,
			"config_file":      meta.ConfigFile,
		},
		time.Now())
}

// WriteRun stores the samples of a completed run and its metadata.
func (idb *InfluxDBClient) WriteRun(ctx context.Context, meta *RunMetadata, tables []*results.Table, start time.Time) error {
	logger := logging.GetLogger()

	points := BuildSamplePoints(meta.RunID, meta.Station, tables, start)
	if len(points) > 0 {
		if err := idb.writeAPI.WritePoint(ctx, points...); err != nil {
			return fmt.Errorf("failed to write sample points: %w", err)
		}
	}

	if err := idb.writeAPI.WritePoint(ctx, BuildMetadataPoint(meta)); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"run_id": meta.RunID,
		"points": len(points),
		"bucket": idb.bucket,
	}).Info("Run written to InfluxDB")
	return nil
}

func (idb *InfluxDBClient) Close() {
	if idb.client != nil {
		idb.client.Close()
	}
}
