package config

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"sort"
)

type stationChecksumResource struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

type stationChecksumPayload struct {
	SourceResource  string                    `json:"source_resource"`
	SourceProfile   string                    `json:"source_profile"`
	LoadResource    string                    `json:"load_resource"`
	LoadChannel     int                       `json:"load_channel"`
	SettleTimeMS    int64                     `json:"settle_time_ms"`
	SourceInitMS    int64                     `json:"source_init_ms"`
	CommandInterval int64                     `json:"command_interval_ms"`
	Resources       []stationChecksumResource `json:"resources"`
}

// StationChecksum returns a short, stable checksum that identifies the bench
// setup a sweep ran on (instruments, profiles, timing), independent of the
// station name and output settings.
//
// It computes MD5 over a canonical JSON representation and returns the first 6 hex
// characters (equivalent to `md5sum | cut -c1-6`).
func StationChecksum(cfg *StationConfig) (string, error) {
	if cfg == nil {
		return "", nil
	}

	resources := make([]stationChecksumResource, 0, len(cfg.Resources))
	for name, addr := range cfg.Resources {
		resources = append(resources, stationChecksumResource{Name: name, Address: addr})
	}
	sort.Slice(resources, func(i, j int) bool {
		return resources[i].Name < resources[j].Name
	})

	payload := stationChecksumPayload{
		SourceResource:  cfg.Instruments.Source.Resource,
		SourceProfile:   cfg.Instruments.Source.Profile,
		LoadResource:    cfg.Instruments.Load.Resource,
		LoadChannel:     cfg.Instruments.Load.Channel,
		SettleTimeMS:    cfg.Sweep.SettleTime.Milliseconds(),
		SourceInitMS:    cfg.Sweep.SourceInitDelay.Milliseconds(),
		CommandInterval: cfg.Sweep.CommandInterval.Milliseconds(),
		Resources:       resources,
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	sum := md5.Sum(b)
	hexStr := hex.EncodeToString(sum[:])
	if len(hexStr) > 6 {
		hexStr = hexStr[:6]
	}
	return hexStr, nil
}
