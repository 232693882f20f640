package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"efficiency-bench/internal/database"
	"efficiency-bench/internal/results"
	"efficiency-bench/internal/sweep"
)

func simStation(t *testing.T, dir string) string {
	t.Helper()
	content := fmt.Sprintf(`
station:
  name: sim-bench
instruments:
  source:
    resource: PSU
  load:
    resource: ChromaLoad
resources:
  PSU: sim://source
  ChromaLoad: sim://load
sweep:
  settle_time: 1ms
  source_init_delay: 1ms
output:
  dir: %s
  spool: true
  spool_dir: %s
`, filepath.Join(dir, "results"), filepath.Join(dir, "spool"))

	path := filepath.Join(dir, "station.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func execute(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(input))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.Execute()
	return out.String(), err
}

func glob(t *testing.T, pattern string) []string {
	t.Helper()
	matches, err := filepath.Glob(pattern)
	if err != nil {
		t.Fatalf("glob %s: %v", pattern, err)
	}
	return matches
}

func TestExitCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, exitOK},
		{sweep.ErrDeclined, exitOK},
		{fmt.Errorf("%w after 3 of 9 samples", sweep.ErrInterrupted), exitInterrupted},
		{errors.New("instrument \"PSU\" not found"), exitFailure},
	}
	for _, tc := range cases {
		if got := exitCode(tc.err); got != tc.want {
			t.Fatalf("exitCode(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestRun_SimulatedStation(t *testing.T) {
	dir := t.TempDir()
	station := simStation(t, dir)

	out, err := execute(t, "y\n", "run", "-c", station, "5", "12", "20", "0", "2", "3", "3")
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "AUTO EFFICIENCY TEST") {
		t.Fatalf("summary not shown:\n%s", out)
	}
	if !strings.Contains(out, "Results saved to") {
		t.Fatalf("results path not reported:\n%s", out)
	}

	csvFiles := glob(t, filepath.Join(dir, "results", "efficiency_test_*.csv"))
	if len(csvFiles) != 1 {
		t.Fatalf("expected one CSV export, got %v", csvFiles)
	}
	store, err := results.LoadCSV(csvFiles[0])
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	tables := store.Tables()
	if len(tables) != 3 {
		t.Fatalf("expected 3 tables, got %d", len(tables))
	}
	for i, table := range tables {
		if table.Len() != 3 {
			t.Fatalf("table %d has %d samples, want 3", i, table.Len())
		}
	}

	if plots := glob(t, filepath.Join(dir, "results", "*.tikz")); len(plots) != 2 {
		t.Fatalf("expected 2 TikZ files, got %v", plots)
	}
	if wrappers := glob(t, filepath.Join(dir, "results", "*-wrapper.tex")); len(wrappers) != 2 {
		t.Fatalf("expected 2 wrapper files, got %v", wrappers)
	}

	spools := glob(t, filepath.Join(dir, "spool", "run_*.json.gz"))
	if len(spools) != 1 {
		t.Fatalf("expected one spool artifact, got %v", spools)
	}
	artifact, err := database.ReadSpoolArtifact(spools[0])
	if err != nil {
		t.Fatalf("ReadSpoolArtifact: %v", err)
	}
	if artifact.Station != "sim-bench" || len(artifact.Tables) != 3 {
		t.Fatalf("unexpected artifact: station=%q tables=%d", artifact.Station, len(artifact.Tables))
	}
	if artifact.Metadata == nil || artifact.Metadata.SourceID != "SIMULATED,source,0,1.0" {
		t.Fatalf("metadata missing source identification: %+v", artifact.Metadata)
	}
}

func TestRun_Declined(t *testing.T) {
	dir := t.TempDir()
	station := simStation(t, dir)

	_, err := execute(t, "n\n", "run", "-c", station, "5", "12", "20", "0", "2", "3", "3")
	if !errors.Is(err, sweep.ErrDeclined) {
		t.Fatalf("expected ErrDeclined, got %v", err)
	}
	if exitCode(err) != exitOK {
		t.Fatalf("declining should exit 0")
	}
	if files := glob(t, filepath.Join(dir, "results", "*")); len(files) != 0 {
		t.Fatalf("declined run wrote results: %v", files)
	}
}

func TestRun_RejectsBadArguments(t *testing.T) {
	station := simStation(t, t.TempDir())

	if _, err := execute(t, "", "run", "-c", station, "5", "12", "20", "0", "2", "3"); err == nil {
		t.Fatalf("expected error for six arguments")
	}
	if _, err := execute(t, "", "run", "-c", station, "5", "12", "20", "0", "9", "3", "3"); err == nil {
		t.Fatalf("expected error for load current above the limit")
	}
}

func TestIdentify(t *testing.T) {
	station := simStation(t, t.TempDir())

	out, err := execute(t, "", "identify", "-c", station)
	if err != nil {
		t.Fatalf("identify failed: %v", err)
	}
	for _, want := range []string{"PSU (sim://source): SIMULATED,source", "ChromaLoad (sim://load): SIMULATED,load"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	if _, err := execute(t, "", "validate", "-c", simStation(t, dir)); err != nil {
		t.Fatalf("validate failed: %v", err)
	}

	bad := filepath.Join(dir, "bad.yml")
	if err := os.WriteFile(bad, []byte("station:\n  name: x\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := execute(t, "", "validate", "-c", bad); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestPlot_FromCSV(t *testing.T) {
	dir := t.TempDir()
	table := results.NewTable(0, 12, 2)
	for _, s := range []results.Sample{
		{InputVoltage: 12, OutputVoltage: 5},
		{InputVoltage: 12, InputCurrent: 1, InputPower: 12, OutputVoltage: 11.8, OutputCurrent: 1, OutputPower: 11.8, Efficiency: 98.33},
	} {
		if err := table.Append(s); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	table.Freeze()
	store, err := results.NewStore([]*results.Table{table})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	csvPath := filepath.Join(dir, "efficiency_test_2024_01_02_03_04_05.csv")
	f, err := os.Create(csvPath)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.WriteCSV(f); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	f.Close()

	out, err := execute(t, "", "plot", "--csv", csvPath, "--plot")
	if err != nil {
		t.Fatalf("plot failed: %v", err)
	}
	if !strings.Contains(out, "PLOT FILE: efficiency_test_2024_01_02_03_04_05_efficiency.tikz") || strings.Contains(out, "WRAPPER FILE") {
		t.Fatalf("unexpected plot output:\n%s", out)
	}

	outDir := filepath.Join(dir, "figures")
	if _, err := execute(t, "", "plot", "--csv", csvPath, "--out", outDir); err != nil {
		t.Fatalf("plot --out failed: %v", err)
	}
	if files := glob(t, filepath.Join(outDir, "*")); len(files) != 4 {
		t.Fatalf("expected 4 plot files, got %v", files)
	}

	if _, err := execute(t, "", "plot"); err == nil {
		t.Fatalf("expected error without --csv or --run-id")
	}
}

func TestPlot_NominalSetpointsForCSV(t *testing.T) {
	dir := t.TempDir()
	table := results.NewTable(0, 11.98, 1)
	if err := table.Append(results.Sample{
		InputVoltage: 11.98, InputCurrent: 1, InputPower: 11.98,
		OutputVoltage: 5, OutputCurrent: 2, OutputPower: 10, Efficiency: 83.47,
	}); err != nil {
		t.Fatalf("append: %v", err)
	}
	table.Freeze()
	store, err := results.NewStore([]*results.Table{table})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	csvPath, err := store.Save(dir, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	out, err := execute(t, "", "plot", "--csv", csvPath, "--plot")
	if err != nil {
		t.Fatalf("plot failed: %v", err)
	}
	if !strings.Contains(out, "$V_{in} = 11.98$ V") {
		t.Fatalf("expected measured Vin label:\n%s", out)
	}

	out, err = execute(t, "", "plot", "--csv", csvPath, "--plot", "--vin", "12")
	if err != nil {
		t.Fatalf("plot --vin failed: %v", err)
	}
	if !strings.Contains(out, "$V_{in} = 12.00$ V") || strings.Contains(out, "11.98$ V") {
		t.Fatalf("expected nominal Vin label:\n%s", out)
	}

	if _, err := execute(t, "", "plot", "--csv", csvPath, "--vin", "5,12"); err == nil {
		t.Fatalf("expected error when --vin does not match the table count")
	}
}
