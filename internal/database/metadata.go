package database

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/host"
)

// RunMetadata describes one completed sweep and the station it ran on.
type RunMetadata struct {
	RunID           string    `json:"run_id"`
	Station         string    `json:"station"`
	Description     string    `json:"description"`
	StationChecksum string    `json:"station_checksum"`
	RunStarted      string    `json:"run_started"`  // RFC3339 timestamp
	RunFinished     string    `json:"run_finished"` // RFC3339 timestamp
	DurationSeconds float64   `json:"duration_seconds"`
	SourceResource  string    `json:"source_resource"`
	SourceID        string    `json:"source_id"`
	SourceProfile   string    `json:"source_profile"`
	LoadResource    string    `json:"load_resource"`
	LoadID          string    `json:"load_id"`
	LoadChannel     int       `json:"load_channel"`
	Voltages        []float64 `json:"voltages"`
	PointsPerTable  int       `json:"points_per_table"`
	TotalSamples    int       `json:"total_samples"`
	SettleTimeMS    int64     `json:"settle_time_ms"`
	DriverVersion   string    `json:"driver_version"`
	Hostname        string    `json:"hostname"`
	OSInfo          string    `json:"os_info"`
	Platform        string    `json:"platform"`
	KernelVersion   string    `json:"kernel_version"`
	ConfigFile      string    `json:"config_file"`
}

// RunInfo is what the caller knows about a run; host details are filled in
// by CollectRunMetadata.
type RunInfo struct {
	RunID           string
	Station         string
	Description     string
	StationChecksum string
	Started         time.Time
	Finished        time.Time
	SourceResource  string
	SourceID        string
	SourceProfile   string
	LoadResource    string
	LoadID          string
	LoadChannel     int
	Voltages        []float64
	PointsPerTable  int
	TotalSamples    int
	SettleTime      time.Duration
	DriverVersion   string
	ConfigFile      string
}

type SystemInfo struct {
	Hostname      string
	OSInfo        string
	Platform      string
	KernelVersion string
}

func collectSystemInfo(ctx context.Context) *SystemInfo {
	info := &SystemInfo{
		OSInfo: runtime.GOOS + "/" + runtime.GOARCH,
	}

	stat, err := host.InfoWithContext(ctx)
	if err == nil {
		info.Hostname = stat.Hostname
		info.KernelVersion = stat.KernelVersion
		if stat.Platform != "" {
			info.Platform = stat.Platform + " " + stat.PlatformVersion
		}
	}

	if info.Hostname == "" {
		if name, err := os.Hostname(); err == nil {
			info.Hostname = name
		} else {
			info.Hostname = "unknown"
		}
	}
	if info.KernelVersion == "" {
		info.KernelVersion = "unknown"
	}
	if info.Platform == "" {
		info.Platform = "unknown"
	}
	return info
}

func CollectRunMetadata(ctx context.Context, in RunInfo) (*RunMetadata, error) {
	if in.RunID == "" {
		return nil, fmt.Errorf("run id is required")
	}
	sys := collectSystemInfo(ctx)

	return &RunMetadata{
		RunID:           in.RunID,
		Station:         in.Station,
		Description:     in.Description,
		StationChecksum: in.StationChecksum,
		RunStarted:      in.Started.Format(time.RFC3339),
		RunFinished:     in.Finished.Format(time.RFC3339),
		DurationSeconds: in.Finished.Sub(in.Started).Seconds(),
		SourceResource:  in.SourceResource,
		SourceID:        in.SourceID,
		SourceProfile:   in.SourceProfile,
		LoadResource:    in.LoadResource,
		LoadID:          in.LoadID,
		LoadChannel:     in.LoadChannel,
		Voltages:        in.Voltages,
		PointsPerTable:  in.PointsPerTable,
		TotalSamples:    in.TotalSamples,
		SettleTimeMS:    in.SettleTime.Milliseconds(),
		DriverVersion:   in.DriverVersion,
		Hostname:        sys.Hostname,
		OSInfo:          sys.OSInfo,
		Platform:        sys.Platform,
		KernelVersion:   sys.KernelVersion,
		ConfigFile:      in.ConfigFile,
	}, nil
}
