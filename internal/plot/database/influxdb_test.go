package database

import (
	"testing"

	"efficiency-bench/internal/config"
	"efficiency-bench/internal/results"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssembleTables(t *testing.T) {
	records := []SampleRecord{
		{TableIndex: 1, Setpoint: 12, Step: 3, Sample: results.Sample{OutputCurrent: 2}},
		{TableIndex: 0, Setpoint: 5, Step: 1, Sample: results.Sample{OutputCurrent: 2}},
		{TableIndex: 0, Setpoint: 5, Step: 0, Sample: results.Sample{OutputCurrent: 0}},
		{TableIndex: 1, Setpoint: 12, Step: 2, Sample: results.Sample{OutputCurrent: 0}},
	}

	tables, err := AssembleTables(records)
	require.NoError(t, err)
	require.Len(t, tables, 2)

	assert.Equal(t, 5.0, tables[0].Setpoint)
	assert.Equal(t, 12.0, tables[1].Setpoint)
	for _, table := range tables {
		assert.True(t, table.Frozen())
		samples := table.Samples()
		require.Len(t, samples, 2)
		assert.Equal(t, 0.0, samples[0].OutputCurrent)
		assert.Equal(t, 2.0, samples[1].OutputCurrent)
	}
}

func TestAssembleTables_Gap(t *testing.T) {
	_, err := AssembleTables([]SampleRecord{{TableIndex: 0}, {TableIndex: 2}})
	assert.Error(t, err)
}

func TestRecordFromValues(t *testing.T) {
	rec, err := recordFromValues(map[string]interface{}{
		"table_index":  "2",
		"vin_setpoint": "20",
		"step":         int64(7),
		"vin":          20.0,
		"eff":          91.5,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, rec.TableIndex)
	assert.Equal(t, 20.0, rec.Setpoint)
	assert.Equal(t, int64(7), rec.Step)
	assert.Equal(t, 91.5, rec.Sample.Efficiency)

	_, err = recordFromValues(map[string]interface{}{"table_index": "x"})
	assert.Error(t, err)
	_, err = recordFromValues(map[string]interface{}{})
	assert.Error(t, err)
}

func TestNewPlotDBClient_RequiresDatabase(t *testing.T) {
	_, err := NewPlotDBClient(config.DatabaseConfig{}, logrus.New())
	assert.Error(t, err)

	c, err := NewPlotDBClient(config.DatabaseConfig{Host: "http://localhost:8086", Name: "bench", Password: "t", Org: "lab"}, logrus.New())
	require.NoError(t, err)
	c.Close()
}
