package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimalStation = `
station:
  name: bench-a
instruments:
  source:
    resource: PSU
  load:
    resource: ChromaLoad
resources:
  PSU: tcp://10.0.0.10:5025
  ChromaLoad: tcp://10.0.0.11:2101
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "station.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig_AppliesDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, minimalStation))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Instruments.Source.Profile != "standard" {
		t.Fatalf("expected standard profile, got %q", cfg.Instruments.Source.Profile)
	}
	if cfg.Instruments.Load.Channel != 1 {
		t.Fatalf("expected channel 1, got %d", cfg.Instruments.Load.Channel)
	}
	if cfg.Sweep.SettleTime != 500*time.Millisecond {
		t.Fatalf("expected 500ms settle time, got %v", cfg.Sweep.SettleTime)
	}
	if cfg.Sweep.SourceInitDelay != 2*time.Second {
		t.Fatalf("expected 2s source init delay, got %v", cfg.Sweep.SourceInitDelay)
	}
	if cfg.Sweep.QueryTimeout != DefaultQueryTimeout {
		t.Fatalf("expected default query timeout, got %v", cfg.Sweep.QueryTimeout)
	}
	if !cfg.Output.PlotsEnabled() {
		t.Fatalf("plots should default to enabled")
	}
	if cfg.Data.DB.Enabled() {
		t.Fatalf("database should be disabled without a host")
	}
}

func TestLoadConfig_RemoteSenseStation(t *testing.T) {
	content := `
station:
  name: bench-bk
  log_level: debug
instruments:
  source:
    resource: PSU_bk
    profile: remote-sense
  load:
    resource: chroma_load2
    channel: 7
resources:
  PSU_bk: tcp://10.0.0.20:5025
  chroma_load2: tcp://10.0.0.21:2101
sweep:
  settle_time: 1s
  command_interval: 20ms
output:
  plots: false
  spool: true
`
	cfg, err := LoadConfig(writeConfig(t, content))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Instruments.Source.Profile != "remote-sense" {
		t.Fatalf("unexpected profile %q", cfg.Instruments.Source.Profile)
	}
	if cfg.Instruments.Load.Channel != 7 {
		t.Fatalf("expected channel 7, got %d", cfg.Instruments.Load.Channel)
	}
	if cfg.Sweep.SettleTime != time.Second {
		t.Fatalf("expected 1s settle time, got %v", cfg.Sweep.SettleTime)
	}
	if cfg.Sweep.CommandInterval != 20*time.Millisecond {
		t.Fatalf("expected 20ms command interval, got %v", cfg.Sweep.CommandInterval)
	}
	if cfg.Output.PlotsEnabled() {
		t.Fatalf("plots should be disabled")
	}
	if cfg.Output.SpoolDir != "spool" {
		t.Fatalf("expected default spool dir, got %q", cfg.Output.SpoolDir)
	}
}

func TestLoadConfig_ExpandsEnvironment(t *testing.T) {
	t.Setenv("BENCH_PSU_ADDR", "tcp://192.168.7.5:5025")
	content := strings.Replace(minimalStation, "tcp://10.0.0.10:5025", "${BENCH_PSU_ADDR}", 1)

	cfg, err := LoadConfig(writeConfig(t, content))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	addr, ok := cfg.ResolveAddress("PSU")
	if !ok || addr != "tcp://192.168.7.5:5025" {
		t.Fatalf("expected expanded address, got %q (ok=%v)", addr, ok)
	}
}

func TestLoadConfig_Rejects(t *testing.T) {
	cases := map[string]string{
		"unknown profile": strings.Replace(minimalStation, "resource: PSU\n", "resource: PSU\n    profile: turbo\n", 1),
		"missing resource entry": strings.Replace(minimalStation, "  ChromaLoad: tcp://10.0.0.11:2101\n", "", 1),
		"no station name":        strings.Replace(minimalStation, "name: bench-a", "name: \"\"", 1),
		"negative settle":        minimalStation + "sweep:\n  settle_time: -1s\n",
		"partial database":       minimalStation + "data:\n  db:\n    host: http://influx:8086\n",
	}

	for name, content := range cases {
		if _, err := Parse([]byte(content)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestStationChecksum_DeterministicAcrossMapOrder(t *testing.T) {
	cfg1, err := Parse([]byte(minimalStation))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	cfg2, err := Parse([]byte(minimalStation))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	cfg2.Resources = map[string]string{
		"ChromaLoad": cfg1.Resources["ChromaLoad"],
		"PSU":        cfg1.Resources["PSU"],
	}
	cfg2.Station.Name = "renamed"

	s1, err := StationChecksum(cfg1)
	if err != nil {
		t.Fatalf("StationChecksum(cfg1): %v", err)
	}
	s2, err := StationChecksum(cfg2)
	if err != nil {
		t.Fatalf("StationChecksum(cfg2): %v", err)
	}
	if s1 != s2 {
		t.Fatalf("expected same checksum, got %q vs %q", s1, s2)
	}
	if len(s1) != 6 {
		t.Fatalf("expected 6-char checksum, got %q (len=%d)", s1, len(s1))
	}

	cfg2.Instruments.Load.Channel = 7
	s3, err := StationChecksum(cfg2)
	if err != nil {
		t.Fatalf("StationChecksum: %v", err)
	}
	if s3 == s1 {
		t.Fatalf("expected checksum to change with load channel")
	}
}

func TestParse_LoadInstrumentSection(t *testing.T) {
	cfg, err := Parse([]byte(minimalStation))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	var load LoadInstrumentConfig = cfg.Instruments.Load
	if load.Resource != "ChromaLoad" || load.Channel != DefaultLoadChannel {
		t.Fatalf("unexpected load settings: %+v", load)
	}
}

func TestLoadConfig_KeepsExplicitZeroDurations(t *testing.T) {
	content := minimalStation + `
sweep:
  settle_time: 0s
  source_init_delay: 0s
  query_timeout: 0s
`
	cfg, err := LoadConfig(writeConfig(t, content))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Sweep.SettleTime != 0 {
		t.Fatalf("expected no settling, got %v", cfg.Sweep.SettleTime)
	}
	if cfg.Sweep.SourceInitDelay != 0 {
		t.Fatalf("expected no source init delay, got %v", cfg.Sweep.SourceInitDelay)
	}
	if cfg.Sweep.QueryTimeout != 0 {
		t.Fatalf("expected unbounded queries, got %v", cfg.Sweep.QueryTimeout)
	}
	if cfg.Sweep.ShutdownTimeout != DefaultShutdownTimeout {
		t.Fatalf("omitted shutdown timeout should default, got %v", cfg.Sweep.ShutdownTimeout)
	}
}
