package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/sdrwatch/sdrwatch/internal/baseline"
	"github.com/sdrwatch/sdrwatch/internal/storage"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	if _, err := os.Stat(config.DBPath); err != nil && os.IsNotExist(err) {
		return fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
	}

	store := storage.NewSqliteStore(config.DBPath)
	defer store.Close()

	scans, err := store.Scans(ctx)
	if err != nil {
		return fmt.Errorf("reading scans: %w", err)
	}
	detections, err := store.TopDetections(ctx, config.Top)
	if err != nil {
		return fmt.Errorf("reading detections: %w", err)
	}
	bins, err := store.TopBaselineBins(ctx, config.Top)
	if err != nil {
		return fmt.Errorf("reading baseline: %w", err)
	}
	services, err := store.ServiceCounts(ctx)
	if err != nil {
		return fmt.Errorf("reading service counts: %w", err)
	}

	printSummary(scans, detections, bins)

	if config.OutputFile == "" {
		return nil
	}
	if err := renderHTML(config.OutputFile, bins, services); err != nil {
		return err
	}
	logger.Info("report written", slog.String("path", config.OutputFile))
	return nil
}

func printSummary(scans []storage.ScanRun, detections []storage.Detection, bins []baseline.Bin) {
	fmt.Printf("Scans: %s\n", humanize.Comma(int64(len(scans))))
	for _, sc := range scans {
		end := "running"
		if sc.EndTime != nil {
			end = sc.EndTime.UTC().Format(time.DateTime)
		}
		fmt.Printf("  #%d  %s .. %s  %s - %s  detections=%s\n",
			sc.ID,
			sc.StartTime.UTC().Format(time.DateTime), end,
			humanize.SIWithDigits(float64(sc.StartHz), 1, "Hz"),
			humanize.SIWithDigits(float64(sc.StopHz), 1, "Hz"),
			humanize.Comma(sc.Detections))
	}

	if len(detections) > 0 {
		fmt.Printf("\nStrongest detections:\n")
		for _, d := range detections {
			service := d.Service
			if service == "" {
				service = "Unknown"
			}
			fmt.Printf("  %-14s  SNR %5.1f dB  peak %6.1f dB  %s\n",
				humanize.SIWithDigits(float64(d.CenterHz), 4, "Hz"), d.SNRDB, d.PeakDB, service)
		}
	}

	if len(bins) > 0 {
		fmt.Printf("\nBusiest baseline bins:\n")
		for _, b := range bins {
			fmt.Printf("  %-14s  occupancy %.3f  power %6.1f dB  obs %s\n",
				humanize.SIWithDigits(float64(b.BinHz), 4, "Hz"), b.EMAOcc, b.EMAPowerDB,
				humanize.Comma(b.TotalObs))
		}
	}
}

func renderHTML(path string, bins []baseline.Bin, services []storage.ServiceCount) error {
	page := components.NewPage()
	page.SetLayout(components.PageCenterLayout)
	page.AddCharts(occupancyChart(bins), serviceChart(services))

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report file: %w", err)
	}
	defer f.Close()

	if err := page.Render(f); err != nil {
		return fmt.Errorf("rendering report: %w", err)
	}
	return nil
}

func occupancyChart(bins []baseline.Bin) *charts.Bar {
	labels := make([]string, 0, len(bins))
	data := make([]opts.BarData, 0, len(bins))
	for _, b := range bins {
		labels = append(labels, humanize.SIWithDigits(float64(b.BinHz), 4, "Hz"))
		data = append(data, opts.BarData{Value: b.EMAOcc})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "sdrwatch report", Width: "1200px"}),
		charts.WithTitleOpts(opts.Title{Title: "Busiest baseline bins", Subtitle: "EMA occupancy per frequency bin"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{AxisLabel: &opts.AxisLabel{Rotate: 45}}),
	)
	bar.SetXAxis(labels).AddSeries("occupancy", data)
	return bar
}

func serviceChart(services []storage.ServiceCount) *charts.Bar {
	labels := make([]string, 0, len(services))
	data := make([]opts.BarData, 0, len(services))
	for _, s := range services {
		labels = append(labels, s.Service)
		data = append(data, opts.BarData{Value: s.Count})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "sdrwatch report", Width: "1200px"}),
		charts.WithTitleOpts(opts.Title{Title: "Detections by service", Subtitle: "bandplan service labels"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(labels).AddSeries("detections", data)
	return bar
}
