package database

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"efficiency-bench/internal/config"
	sink "efficiency-bench/internal/database"
	"efficiency-bench/internal/results"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/sirupsen/logrus"
)

// PlotDBClient reads stored runs back out of InfluxDB for re-plotting.
type PlotDBClient struct {
	client   influxdb2.Client
	queryAPI api.QueryAPI
	bucket   string
	org      string
	logger   *logrus.Logger
}

// SampleRecord is one stored sample with the tags needed to rebuild its table.
type SampleRecord struct {
	TableIndex int
	Setpoint   float64
	Step       int64
	Sample     results.Sample
}

type RunMeta struct {
	RunID         string
	Station       string
	SourceProfile string
	RunStarted    string
	RunFinished   string
	TotalSamples  int64
}

func NewPlotDBClient(cfg config.DatabaseConfig, logger *logrus.Logger) (*PlotDBClient, error) {
	if !cfg.Enabled() || cfg.Password == "" || cfg.Org == "" || cfg.Name == "" {
		return nil, fmt.Errorf("station config has no complete data.db section")
	}

	client := influxdb2.NewClient(cfg.Host, cfg.Password)
	return &PlotDBClient{
		client:   client,
		queryAPI: client.QueryAPI(cfg.Org),
		bucket:   cfg.Name,
		org:      cfg.Org,
		logger:   logger,
	}, nil
}

func (c *PlotDBClient) Close() {
	c.client.Close()
}

func (c *PlotDBClient) QueryRunSamples(ctx context.Context, runID string) ([]SampleRecord, error) {
	c.logger.WithField("run_id", runID).Debug("Querying run samples")

	query := fmt.Sprintf(`
		from(bucket: "%s")
		|> range(start: 0)
		|> filter(fn: (r) => r["_measurement"] == "%s")
		|> filter(fn: (r) => r["run_id"] == "%s")
		|> pivot(rowKey:["_time"], columnKey: ["_field"], valueColumn: "_value")
		|> sort(columns: ["_time"])
	`, c.bucket, sink.MeasurementSample, runID)

	result, err := c.queryAPI.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer result.Close()

	var records []SampleRecord
	for result.Next() {
		values := result.Record().Values()

		rec, err := recordFromValues(values)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if result.Err() != nil {
		return nil, fmt.Errorf("query parsing failed: %w", result.Err())
	}

	c.logger.WithField("samples", len(records)).Debug("Query completed")
	return records, nil
}

func recordFromValues(values map[string]interface{}) (SampleRecord, error) {
	var rec SampleRecord

	idx, ok := values["table_index"].(string)
	if !ok {
		return rec, fmt.Errorf("sample record has no table_index tag")
	}
	n, err := strconv.Atoi(idx)
	if err != nil {
		return rec, fmt.Errorf("invalid table_index %q: %w", idx, err)
	}
	rec.TableIndex = n

	if sp, ok := values["vin_setpoint"].(string); ok {
		if rec.Setpoint, err = strconv.ParseFloat(sp, 64); err != nil {
			return rec, fmt.Errorf("invalid vin_setpoint %q: %w", sp, err)
		}
	}
	if step, ok := values["step"].(int64); ok {
		rec.Step = step
	}

	field := func(name string) float64 {
		v, _ := values[name].(float64)
		return v
	}
	rec.Sample = results.Sample{
		InputVoltage:  field("vin"),
		InputCurrent:  field("iin"),
		InputPower:    field("pin"),
		OutputVoltage: field("vout"),
		OutputCurrent: field("iout"),
		OutputPower:   field("pout"),
		Efficiency:    field("eff"),
	}
	return rec, nil
}

func (c *PlotDBClient) QueryRunMeta(ctx context.Context, runID string) (*RunMeta, error) {
	c.logger.WithField("run_id", runID).Debug("Querying run metadata")

	query := fmt.Sprintf(`
		from(bucket: "%s")
		|> range(start: 0)
		|> filter(fn: (r) => r["_measurement"] == "%s")
		|> filter(fn: (r) => r["run_id"] == "%s")
		|> pivot(rowKey:["_time"], columnKey: ["_field"], valueColumn: "_value")
	`, c.bucket, sink.MeasurementRunMeta, runID)

	result, err := c.queryAPI.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer result.Close()

	var meta *RunMeta
	if result.Next() {
		record := result.Record()
		meta = &RunMeta{RunID: runID}

		if v, ok := record.ValueByKey("station").(string); ok {
			meta.Station = v
		}
		if v, ok := record.ValueByKey("source_profile").(string); ok {
			meta.SourceProfile = v
		}
		if v, ok := record.ValueByKey("run_started").(string); ok {
			meta.RunStarted = v
		}
		if v, ok := record.ValueByKey("run_finished").(string); ok {
			meta.RunFinished = v
		}
		if v, ok := record.ValueByKey("total_samples").(int64); ok {
			meta.TotalSamples = v
		}
	}

	if result.Err() != nil {
		return nil, fmt.Errorf("query parsing failed: %w", result.Err())
	}
	if meta == nil {
		return nil, fmt.Errorf("no metadata found for run %s", runID)
	}
	return meta, nil
}

// QueryRunTables rebuilds the frozen result tables of a stored run.
func (c *PlotDBClient) QueryRunTables(ctx context.Context, runID string) ([]*results.Table, error) {
	records, err := c.QueryRunSamples(ctx, runID)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no samples found for run %s", runID)
	}
	return AssembleTables(records)
}

// AssembleTables groups records by table index and orders samples by step.
// Table indices must be contiguous from zero.
func AssembleTables(records []SampleRecord) ([]*results.Table, error) {
	byTable := make(map[int][]SampleRecord)
	for _, r := range records {
		byTable[r.TableIndex] = append(byTable[r.TableIndex], r)
	}

	tables := make([]*results.Table, len(byTable))
	for idx, recs := range byTable {
		if idx < 0 || idx >= len(tables) {
			return nil, fmt.Errorf("table indices are not contiguous: found %d of %d tables", idx, len(tables))
		}
		sort.Slice(recs, func(i, j int) bool { return recs[i].Step < recs[j].Step })

		t := results.NewTable(idx, recs[0].Setpoint, len(recs))
		for _, r := range recs {
			if err := t.Append(r.Sample); err != nil {
				return nil, err
			}
		}
		t.Freeze()
		tables[idx] = t
	}
	return tables, nil
}
