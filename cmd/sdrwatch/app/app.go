package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sdrwatch/sdrwatch/internal/bandplan"
	"github.com/sdrwatch/sdrwatch/internal/baseline"
	"github.com/sdrwatch/sdrwatch/internal/sdr"
	"github.com/sdrwatch/sdrwatch/internal/storage"
	"github.com/sdrwatch/sdrwatch/internal/sweep"
)

// Run wires the configured source, storage, bandplan and sinks into a
// sweep controller and runs it until the schedule completes or ctx is
// cancelled.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	store := storage.NewSqliteStore(config.Storage.DB)
	defer store.Close()

	plan, err := loadBandplan(config.Outputs.Bandplan, logger)
	if err != nil {
		return fmt.Errorf("loading bandplan: %w", err)
	}

	tracker := baseline.New(baseline.WithAlphas(config.Baseline.AlphaOcc, config.Baseline.AlphaPower))
	bins, err := store.LoadBaseline(ctx)
	if err != nil {
		return fmt.Errorf("loading baseline: %w", err)
	}
	tracker.Seed(bins)
	if len(bins) > 0 {
		logger.Info("baseline hydrated", slog.Int("bins", len(bins)))
	}

	source, err := createSource(ctx, &config.Source, config.Scan.SampleRate)
	if err != nil {
		return fmt.Errorf("creating source: %w", err)
	}
	defer source.Close()
	logger.Info("source connected", slog.String("device", source.Device()), slog.String("addr", config.Source.Addr))

	controller := sweep.New(config.SweepParams(), source, store, tracker, plan, logger,
		sweep.WithSinks(createSinks(&config.Outputs)...))

	return controller.Run(ctx)
}

func createSource(ctx context.Context, config *SourceConfig, sampleRate float64) (sdr.Source, error) {
	switch config.Driver {
	case SourceRTLTCP:
		return sdr.DialRTLTCP(ctx, config.Addr, sdr.RTLTCPConfig{
			SampleRate: sampleRate,
			Gain:       config.Gain,
		})
	default:
		return nil, fmt.Errorf("unknown driver %q", config.Driver)
	}
}

func loadBandplan(path string, logger *slog.Logger) (*bandplan.Bandplan, error) {
	if path == "" {
		return bandplan.Default(), nil
	}
	return bandplan.LoadCSV(path, logger)
}

func createSinks(config *OutputConfig) []sweep.DetectionSink {
	var sinks []sweep.DetectionSink
	if config.JSONL != "" {
		sinks = append(sinks, &sweep.JSONLSink{Path: config.JSONL})
	}
	if config.Notify {
		sinks = append(sinks, &sweep.NotifySink{})
	}
	return sinks
}
