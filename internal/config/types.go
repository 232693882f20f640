package config

import (
	"time"
)

type StationConfig struct {
	Station     StationInfo       `yaml:"station"`
	Instruments InstrumentsConfig `yaml:"instruments"`
	Resources   map[string]string `yaml:"resources"`
	Sweep       SweepConfig       `yaml:"sweep"`
	Output      OutputConfig      `yaml:"output"`
	Data        DataConfig        `yaml:"data"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

type StationInfo struct {
	Name               string `yaml:"name"`
	Description        string `yaml:"description"`
	LogLevel           string `yaml:"log_level"`
	InstrumentLogLevel string `yaml:"instrument_log_level"`
}

type InstrumentsConfig struct {
	Source SourceConfig         `yaml:"source"`
	Load   LoadInstrumentConfig `yaml:"load"`
}

// SourceConfig selects the power supply and its command profile
// ("standard" or "remote-sense").
type SourceConfig struct {
	Resource string `yaml:"resource"`
	Profile  string `yaml:"profile"`
}

// LoadInstrumentConfig selects the electronic load and the channel the DUT
// output is wired to.
type LoadInstrumentConfig struct {
	Resource string `yaml:"resource"`
	Channel  int    `yaml:"channel"`
}

// SweepConfig holds the sweep timing. A duration left out of the file gets its
// default; an explicit 0s is kept, and for the two timeouts it means unbounded.
type SweepConfig struct {
	SettleTime      time.Duration `yaml:"settle_time"`
	SourceInitDelay time.Duration `yaml:"source_init_delay"`
	QueryTimeout    time.Duration `yaml:"query_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CommandInterval time.Duration `yaml:"command_interval"`
}

type OutputConfig struct {
	Dir      string `yaml:"dir"`
	Plots    *bool  `yaml:"plots,omitempty"`
	Spool    bool   `yaml:"spool"`
	SpoolDir string `yaml:"spool_dir"`
}

type DataConfig struct {
	DB DatabaseConfig `yaml:"db"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Name     string `yaml:"name"`
	Password string `yaml:"password"`
	Org      string `yaml:"org"`
}

type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

const (
	DefaultSettleTime      = 500 * time.Millisecond
	DefaultSourceInitDelay = 2 * time.Second
	DefaultQueryTimeout    = 5 * time.Second
	DefaultShutdownTimeout = 5 * time.Second
	DefaultLoadChannel     = 1
	DefaultSourceProfile   = "standard"
)

func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

func (o OutputConfig) PlotsEnabled() bool {
	return o.Plots == nil || *o.Plots
}

// ResolveAddress returns the transport address a logical resource name is bound to.
func (c *StationConfig) ResolveAddress(name string) (string, bool) {
	addr, ok := c.Resources[name]
	return addr, ok
}
