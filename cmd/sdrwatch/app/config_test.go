package app

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdrwatch/sdrwatch/internal/sweep"
)

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	config, err := LoadConfig(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, 2.4e6, config.Scan.StepHz)
	assert.Equal(t, 2.4e6, config.Scan.SampleRate)
	assert.Equal(t, 4096, config.Scan.FFTSize)
	assert.Equal(t, 8, config.Scan.Avg)
	assert.Equal(t, 8.0, config.Detect.ThresholdDB)
	assert.Equal(t, 1, config.Detect.GuardBins)
	assert.Equal(t, 2, config.Detect.MinWidthBins)
	assert.Equal(t, sweep.CFAROS, config.Detect.CFAR.Mode)
	assert.Equal(t, 24, config.Detect.CFAR.Train)
	assert.Equal(t, 4, config.Detect.CFAR.Guard)
	assert.Equal(t, 0.75, config.Detect.CFAR.Quantile)
	assert.Equal(t, 0.02, config.Baseline.NewOccThreshold)
	assert.Equal(t, "auto", config.Source.Gain)
	assert.Equal(t, slog.LevelInfo, config.Settings.Level())
}

func TestLoadConfigOverrides(t *testing.T) {
	config, err := LoadConfig(writeConfig(t, `
settings:
  logLevel: debug
scan:
  startHz: 430e6
  stopHz: 440e6
  fftSize: 2048
detect:
  thresholdDb: 10
  cfar:
    mode: "off"
schedule:
  mode: repeat
  repeat: 4
outputs:
  jsonl: detections.jsonl
  notify: true
`))
	require.NoError(t, err)

	assert.Equal(t, slog.LevelDebug, config.Settings.Level())
	assert.Equal(t, 430e6, config.Scan.StartHz)
	assert.Equal(t, 2048, config.Scan.FFTSize)
	assert.Equal(t, 8, config.Scan.Avg) // default survives partial override
	assert.Equal(t, sweep.CFAROff, config.Detect.CFAR.Mode)

	params := config.SweepParams()
	assert.Equal(t, sweep.CyclePolicy{Mode: sweep.CycleRepeat, Repeat: 4}, params.Policy)
	assert.Equal(t, 10.0, params.ThresholdDB)
	assert.Equal(t, 10.0, params.CFAR.AlphaDB) // defaults to the threshold
}

func TestLoadConfigCFARAlphaOverride(t *testing.T) {
	config, err := LoadConfig(writeConfig(t, `
detect:
  cfar:
    alphaDb: 6
`))
	require.NoError(t, err)
	assert.Equal(t, 6.0, config.SweepParams().CFAR.AlphaDB)
}

func TestLoadConfigDurationSchedule(t *testing.T) {
	config, err := LoadConfig(writeConfig(t, `
schedule:
  mode: duration
  duration: 90m
`))
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, config.SweepParams().Policy.Duration)

	config, err = LoadConfig(writeConfig(t, `
schedule:
  mode: duration
  duration: "45"
`))
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, config.SweepParams().Policy.Duration)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"stop below start", "scan:\n  startHz: 200e6\n  stopHz: 100e6\n"},
		{"zero step", "scan:\n  stepHz: 0\n"},
		{"bad cfar mode", "detect:\n  cfar:\n    mode: go\n"},
		{"quantile out of range", "detect:\n  cfar:\n    quantile: 1.5\n"},
		{"repeat without count", "schedule:\n  mode: repeat\n"},
		{"duration missing", "schedule:\n  mode: duration\n"},
		{"bad duration", "schedule:\n  mode: duration\n  duration: soon\n"},
		{"unknown schedule mode", "schedule:\n  mode: forever\n"},
		{"unknown driver", "source:\n  driver: soapy\n"},
		{"empty db", "storage:\n  db: \"\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
