package app

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sdrwatch/sdrwatch/internal/dsp"
	"github.com/sdrwatch/sdrwatch/internal/sweep"
)

const (
	SourceRTLTCP = "rtltcp"
)

// Config is the main application configuration.
type Config struct {
	Settings Settings       `yaml:"settings"`
	Scan     ScanConfig     `yaml:"scan"`
	Detect   DetectConfig   `yaml:"detect"`
	Baseline BaselineConfig `yaml:"baseline"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Source   SourceConfig   `yaml:"source"`
	Storage  StorageConfig  `yaml:"storage"`
	Outputs  OutputConfig   `yaml:"outputs"`
}

// Settings represents global application settings.
type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

// Level maps the configured log level name to a slog level, defaulting
// to info for anything unrecognized.
func (s Settings) Level() slog.Level {
	switch strings.ToLower(s.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ScanConfig sets the frequency sweep grid and PSD estimation
// parameters.
type ScanConfig struct {
	StartHz    float64 `yaml:"startHz"`
	StopHz     float64 `yaml:"stopHz"`
	StepHz     float64 `yaml:"stepHz"`
	SampleRate float64 `yaml:"sampleRate"`
	FFTSize    int     `yaml:"fftSize"`
	Avg        int     `yaml:"avg"`
}

// DetectConfig sets thresholding and segment extraction parameters.
type DetectConfig struct {
	ThresholdDB  float64    `yaml:"thresholdDb"`
	GuardBins    int        `yaml:"guardBins"`
	MinWidthBins int        `yaml:"minWidthBins"`
	CFAR         CFARConfig `yaml:"cfar"`
}

// CFARConfig configures the OS-CFAR detector. AlphaDB defaults to the
// global detection threshold when left unset.
type CFARConfig struct {
	Mode     string   `yaml:"mode"`
	Train    int      `yaml:"train"`
	Guard    int      `yaml:"guard"`
	Quantile float64  `yaml:"quantile"`
	AlphaDB  *float64 `yaml:"alphaDb"`
}

// BaselineConfig tunes the per-bin occupancy baseline.
type BaselineConfig struct {
	AlphaOcc        float64 `yaml:"alphaOcc"`
	AlphaPower      float64 `yaml:"alphaPower"`
	NewOccThreshold float64 `yaml:"newOccThreshold"`
}

// ScheduleConfig selects the cycle schedule. Duration accepts Go
// duration syntax ("90m") or a bare number of seconds.
type ScheduleConfig struct {
	Mode            string  `yaml:"mode"`
	Repeat          int     `yaml:"repeat"`
	Duration        string  `yaml:"duration"`
	InterCycleSleep float64 `yaml:"interCycleSleepSeconds"`
}

// SourceConfig selects and configures the sample source.
type SourceConfig struct {
	Driver string `yaml:"driver"`
	Addr   string `yaml:"addr"`
	Gain   string `yaml:"gain"`
}

// StorageConfig points at the SQLite database file.
type StorageConfig struct {
	DB string `yaml:"db"`
}

// OutputConfig enables optional detection outputs.
type OutputConfig struct {
	JSONL    string `yaml:"jsonl"`
	Notify   bool   `yaml:"notify"`
	Bandplan string `yaml:"bandplan"`
}

// DefaultConfig returns a configuration matching a wideband survey on a
// stock RTL-SDR dongle. Loaded files override these values field by
// field.
func DefaultConfig() *Config {
	return &Config{
		Settings: Settings{LogLevel: "info"},
		Scan: ScanConfig{
			StartHz:    24e6,
			StopHz:     1766e6,
			StepHz:     2.4e6,
			SampleRate: 2.4e6,
			FFTSize:    4096,
			Avg:        8,
		},
		Detect: DetectConfig{
			ThresholdDB:  8,
			GuardBins:    1,
			MinWidthBins: 2,
			CFAR: CFARConfig{
				Mode:     sweep.CFAROS,
				Train:    24,
				Guard:    4,
				Quantile: 0.75,
			},
		},
		Baseline: BaselineConfig{
			AlphaOcc:        0.05,
			AlphaPower:      0.05,
			NewOccThreshold: 0.02,
		},
		Schedule: ScheduleConfig{Mode: string(sweep.CycleSingle)},
		Source: SourceConfig{
			Driver: SourceRTLTCP,
			Addr:   "127.0.0.1:1234",
			Gain:   "auto",
		},
		Storage: StorageConfig{DB: "sdrwatch.sqlite"},
	}
}

// LoadConfig reads a YAML configuration file over the defaults and
// validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks cross-field consistency.
func (c *Config) Validate() error {
	if c.Scan.StopHz < c.Scan.StartHz {
		return fmt.Errorf("scan: stopHz %.0f below startHz %.0f", c.Scan.StopHz, c.Scan.StartHz)
	}
	if c.Scan.StepHz <= 0 {
		return fmt.Errorf("scan: stepHz must be positive")
	}
	if c.Scan.SampleRate <= 0 {
		return fmt.Errorf("scan: sampleRate must be positive")
	}
	if c.Scan.FFTSize <= 0 || c.Scan.Avg <= 0 {
		return fmt.Errorf("scan: fftSize and avg must be positive")
	}
	if c.Detect.GuardBins < 0 || c.Detect.MinWidthBins < 0 {
		return fmt.Errorf("detect: guardBins and minWidthBins cannot be negative")
	}

	switch c.Detect.CFAR.Mode {
	case sweep.CFAROff:
	case sweep.CFAROS:
		if c.Detect.CFAR.Train <= 0 {
			return fmt.Errorf("cfar: train must be positive")
		}
		if c.Detect.CFAR.Guard < 0 {
			return fmt.Errorf("cfar: guard cannot be negative")
		}
		if c.Detect.CFAR.Quantile <= 0 || c.Detect.CFAR.Quantile >= 1 {
			return fmt.Errorf("cfar: quantile must be in (0, 1)")
		}
	default:
		return fmt.Errorf("cfar: unknown mode %q", c.Detect.CFAR.Mode)
	}

	if c.Baseline.AlphaOcc <= 0 || c.Baseline.AlphaOcc > 1 ||
		c.Baseline.AlphaPower <= 0 || c.Baseline.AlphaPower > 1 {
		return fmt.Errorf("baseline: alphas must be in (0, 1]")
	}

	if _, err := c.Schedule.policy(); err != nil {
		return fmt.Errorf("schedule: %w", err)
	}
	if c.Schedule.InterCycleSleep < 0 {
		return fmt.Errorf("schedule: interCycleSleepSeconds cannot be negative")
	}

	if c.Source.Driver != SourceRTLTCP {
		return fmt.Errorf("source: unknown driver %q", c.Source.Driver)
	}
	if c.Source.Addr == "" {
		return fmt.Errorf("source: addr is required")
	}
	if c.Storage.DB == "" {
		return fmt.Errorf("storage: db is required")
	}
	return nil
}

func (s ScheduleConfig) policy() (sweep.CyclePolicy, error) {
	policy := sweep.CyclePolicy{Mode: sweep.CycleMode(s.Mode)}

	switch policy.Mode {
	case sweep.CycleRepeat:
		policy.Repeat = s.Repeat
	case sweep.CycleDuration:
		d, err := parseDuration(s.Duration)
		if err != nil {
			return sweep.CyclePolicy{}, err
		}
		policy.Duration = d
	}
	if err := policy.Validate(); err != nil {
		return sweep.CyclePolicy{}, err
	}
	return policy, nil
}

// parseDuration accepts Go duration syntax or a plain number of
// seconds.
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("duration is required")
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// SweepParams converts the validated configuration into controller
// parameters.
func (c *Config) SweepParams() sweep.Params {
	policy, _ := c.Schedule.policy() // validated already

	alphaDB := c.Detect.ThresholdDB
	if c.Detect.CFAR.AlphaDB != nil {
		alphaDB = *c.Detect.CFAR.AlphaDB
	}

	return sweep.Params{
		StartHz:      c.Scan.StartHz,
		StopHz:       c.Scan.StopHz,
		StepHz:       c.Scan.StepHz,
		SampleRate:   c.Scan.SampleRate,
		FFTSize:      c.Scan.FFTSize,
		Avg:          c.Scan.Avg,
		ThresholdDB:  c.Detect.ThresholdDB,
		GuardBins:    c.Detect.GuardBins,
		MinWidthBins: c.Detect.MinWidthBins,
		CFARMode:     c.Detect.CFAR.Mode,
		CFAR: dsp.CFARParams{
			Train:    c.Detect.CFAR.Train,
			Guard:    c.Detect.CFAR.Guard,
			Quantile: c.Detect.CFAR.Quantile,
			AlphaDB:  alphaDB,
		},
		NewOccThreshold: c.Baseline.NewOccThreshold,
		Policy:          policy,
		InterCycleSleep: time.Duration(c.Schedule.InterCycleSleep * float64(time.Second)),
		Driver:          c.Source.Driver,
	}
}
