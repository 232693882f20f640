package database

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"efficiency-bench/internal/results"
)

const spoolVersion = 1

// SpoolArtifact is the on-disk archive of one completed run.
type SpoolArtifact struct {
	Version int `json:"version"`

	CreatedAt time.Time `json:"created_at"`

	RunID           string `json:"run_id"`
	Station         string `json:"station"`
	StationChecksum string `json:"station_checksum"`

	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`

	ConfigContent string `json:"config_content"`

	Plan     PlanRecord    `json:"plan"`
	Tables   []TableRecord `json:"tables"`
	Metadata *RunMetadata  `json:"metadata"`
}

type PlanRecord struct {
	Voltages     []float64 `json:"voltages"`
	Currents     []float64 `json:"currents"`
	CurrentLimit float64   `json:"current_limit"`
	InputOffset  float64   `json:"input_offset"`
	OutputOffset float64   `json:"output_offset"`
}

type TableRecord struct {
	Index    int              `json:"index"`
	Setpoint float64          `json:"setpoint"`
	Samples  []results.Sample `json:"samples"`
}

func DefaultSpoolDir() string {
	if v := strings.TrimSpace(os.Getenv("EFFICIENCY_BENCH_SPOOL_DIR")); v != "" {
		return v
	}
	return "spool"
}

// BuildSpoolArtifact captures a completed run. tables must be frozen.
func BuildSpoolArtifact(
	runID, station, checksum, configContent string,
	plan PlanRecord,
	tables []*results.Table,
	metadata *RunMetadata,
	startTime, endTime time.Time,
) *SpoolArtifact {
	records := make([]TableRecord, 0, len(tables))
	for _, t := range tables {
		records = append(records, TableRecord{
			Index:    t.Index,
			Setpoint: t.Setpoint,
			Samples:  t.Samples(),
		})
	}

	return &SpoolArtifact{
		Version:         spoolVersion,
		CreatedAt:       time.Now(),
		RunID:           runID,
		Station:         station,
		StationChecksum: checksum,
		StartTime:       startTime,
		EndTime:         endTime,
		ConfigContent:   configContent,
		Plan:            plan,
		Tables:          records,
		Metadata:        metadata,
	}
}

// ResultTables rebuilds frozen result tables from the archive.
func (a *SpoolArtifact) ResultTables() ([]*results.Table, error) {
	tables := make([]*results.Table, 0, len(a.Tables))
	for _, rec := range a.Tables {
		t := results.NewTable(rec.Index, rec.Setpoint, len(rec.Samples))
		for _, s := range rec.Samples {
			if err := t.Append(s); err != nil {
				return nil, err
			}
		}
		t.Freeze()
		tables = append(tables, t)
	}
	return tables, nil
}

// SpoolFileName is run_<created UTC>_<run id prefix>_<station checksum>.json.gz.
func SpoolFileName(a *SpoolArtifact) string {
	checksum := a.StationChecksum
	if checksum == "" {
		checksum = "nocsum"
	}
	runID := a.RunID
	if len(runID) > 8 {
		runID = runID[:8]
	}
	return fmt.Sprintf("run_%s_%s_%s.json.gz",
		a.CreatedAt.UTC().Format("20060102T150405Z"), runID, checksum)
}

// WriteSpoolArtifact stores the artifact gzip-compressed under dir and
// returns its path. The file only appears once it is complete.
func WriteSpoolArtifact(dir string, artifact *SpoolArtifact) (string, error) {
	if artifact == nil {
		return "", fmt.Errorf("spool artifact is nil")
	}
	if dir == "" {
		dir = DefaultSpoolDir()
	}

	return writeAtomic(dir, SpoolFileName(artifact), func(w io.Writer) error {
		gz := gzip.NewWriter(w)
		enc := json.NewEncoder(gz)
		enc.SetIndent("", "  ")
		if err := enc.Encode(artifact); err != nil {
			gz.Close()
			return fmt.Errorf("encode spool artifact: %w", err)
		}
		return gz.Close()
	})
}

// writeAtomic fills a temp file in dir and renames it to name on success.
func writeAtomic(dir, name string, fill func(io.Writer) error) (path string, err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(dir, "."+name+".*")
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = fill(tmp); err != nil {
		return "", err
	}
	if err = tmp.Sync(); err != nil {
		return "", err
	}
	if err = tmp.Close(); err != nil {
		return "", err
	}

	path = filepath.Join(dir, name)
	if err = os.Rename(tmp.Name(), path); err != nil {
		return "", err
	}
	return path, nil
}

func ReadSpoolArtifact(path string) (*SpoolArtifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to open spool artifact %s: %w", path, err)
	}
	defer gz.Close()

	var artifact SpoolArtifact
	if err := json.NewDecoder(gz).Decode(&artifact); err != nil {
		return nil, fmt.Errorf("failed to decode spool artifact %s: %w", path, err)
	}
	if artifact.Version != spoolVersion {
		return nil, fmt.Errorf("unsupported spool artifact version %d", artifact.Version)
	}
	return &artifact, nil
}
