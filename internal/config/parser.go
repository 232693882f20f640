package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"efficiency-bench/internal/logging"

	"gopkg.in/yaml.v3"
)

func LoadConfig(filepath string) (*StationConfig, error) {
	config, _, err := LoadConfigWithContent(filepath)
	return config, err
}

func LoadConfigWithContent(filepath string) (*StationConfig, string, error) {
	logger := logging.GetLogger()

	data, err := os.ReadFile(filepath)
	if err != nil {
		logger.WithField("filepath", filepath).WithError(err).Error("Failed to read config file")
		return nil, "", err
	}

	originalContent := string(data)

	config, err := Parse([]byte(originalContent))
	if err != nil {
		logger.WithField("filepath", filepath).WithError(err).Error("Failed to parse config file")
		return nil, "", err
	}

	return config, originalContent, nil
}

// Parse expands ${VAR} references, decodes the YAML document, applies defaults
// and validates the result.
func Parse(data []byte) (*StationConfig, error) {
	expanded := expandEnvVars(string(data))

	config := StationConfig{Sweep: defaultSweep()}
	if err := yaml.Unmarshal([]byte(expanded), &config); err != nil {
		return nil, err
	}

	applyDefaults(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

func expandEnvVars(content string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(content, func(match string) string {
		envVar := strings.Trim(match, "${}")
		if value := os.Getenv(envVar); value != "" {
			return value
		}
		return match
	})
}

// defaultSweep is decoded over, so only keys present in the file replace it.
func defaultSweep() SweepConfig {
	return SweepConfig{
		SettleTime:      DefaultSettleTime,
		SourceInitDelay: DefaultSourceInitDelay,
		QueryTimeout:    DefaultQueryTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

func applyDefaults(config *StationConfig) {
	if config.Station.LogLevel == "" {
		config.Station.LogLevel = "info"
	}
	if config.Instruments.Source.Profile == "" {
		config.Instruments.Source.Profile = DefaultSourceProfile
	}
	if config.Instruments.Load.Channel == 0 {
		config.Instruments.Load.Channel = DefaultLoadChannel
	}
	if config.Output.Dir == "" {
		config.Output.Dir = "."
	}
	if config.Output.Spool && config.Output.SpoolDir == "" {
		config.Output.SpoolDir = "spool"
	}
}

func validateConfig(config *StationConfig) error {
	if config.Station.Name == "" {
		return fmt.Errorf("station name is required")
	}

	src := config.Instruments.Source
	if src.Resource == "" {
		return fmt.Errorf("instruments.source.resource is required")
	}
	if _, ok := config.ResolveAddress(src.Resource); !ok {
		return fmt.Errorf("source resource %q has no entry in resources", src.Resource)
	}
	switch src.Profile {
	case "standard", "remote-sense":
	default:
		return fmt.Errorf("unknown source profile %q (expected standard or remote-sense)", src.Profile)
	}

	load := config.Instruments.Load
	if load.Resource == "" {
		return fmt.Errorf("instruments.load.resource is required")
	}
	if _, ok := config.ResolveAddress(load.Resource); !ok {
		return fmt.Errorf("load resource %q has no entry in resources", load.Resource)
	}
	if load.Channel < 1 {
		return fmt.Errorf("load channel must be at least 1, got %d", load.Channel)
	}
	if load.Resource == src.Resource {
		return fmt.Errorf("source and load must use different resources")
	}

	sw := config.Sweep
	if sw.SettleTime < 0 || sw.SourceInitDelay < 0 || sw.QueryTimeout < 0 || sw.ShutdownTimeout < 0 || sw.CommandInterval < 0 {
		return fmt.Errorf("sweep durations must not be negative")
	}

	db := config.Data.DB
	if db.Enabled() && (db.Name == "" || db.Password == "" || db.Org == "") {
		return fmt.Errorf("incomplete database configuration")
	}

	return nil
}
