// Package config loads the persisted JSON configuration file this service
// reads at startup.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"time"
)

// Config mirrors the persisted configuration file's recognized keys.
type Config struct {
	Interface string `json:"interface"`
	NTPServer string `json:"ntp_server"`

	Kp float64 `json:"kp"`
	Ki float64 `json:"ki"`

	SampleWindowSize int   `json:"sample_window_size"`
	MinDeltaNs       int64 `json:"min_delta_ns"`

	CalibrationSamples int `json:"calibration_samples"`
	WarmupSecs         int `json:"warmup_secs"`

	StepThresholdNs      int64   `json:"step_threshold_ns"`
	PanicThresholdNsPerS float64 `json:"panic_threshold_ns_per_s"`

	StartupCalibrationSamples int     `json:"startup_calibration_samples"`
	NanoDeadbandNsPerS        float64 `json:"nano_deadband_ns_per_s"`
}

// Default returns the documented defaults (§6/§4.7/§4.8), used both to
// pre-populate a freshly-installed system and to fill any key a partial
// config file omits.
func Default() Config {
	return Config{
		Interface:            "",
		NTPServer:            "10.77.8.2",
		Kp:                   0.5,
		Ki:                   0.01,
		SampleWindowSize:     8,
		MinDeltaNs:           0,
		CalibrationSamples:   5,
		WarmupSecs:           10,
		StepThresholdNs:      500_000,
		PanicThresholdNsPerS: 100_000,

		StartupCalibrationSamples: 0,
		NanoDeadbandNsPerS:        50,
	}
}

// DefaultPath returns the OS-conventional config file location.
func DefaultPath() string {
	if runtime.GOOS == "windows" {
		root := os.Getenv("ProgramData")
		if root == "" {
			root = `C:\ProgramData`
		}
		return root + `\DanteSync\config.json`
	}
	return "/etc/dantesync/config.json"
}

// Load reads and validates the config file at path. A missing file is not
// an error: Default() is returned unchanged, since a fresh install has no
// file yet.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Warmup() time.Duration       { return time.Duration(c.WarmupSecs) * time.Second }
func (c Config) StepThreshold() time.Duration { return time.Duration(c.StepThresholdNs) }
func (c Config) MinDelta() time.Duration      { return time.Duration(c.MinDeltaNs) }
