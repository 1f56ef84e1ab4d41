package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/sdrwatch/sdrwatch/internal/bandplan"
	"github.com/sdrwatch/sdrwatch/internal/baseline"
	"github.com/sdrwatch/sdrwatch/internal/dsp"
	"github.com/sdrwatch/sdrwatch/internal/sdr"
	"github.com/sdrwatch/sdrwatch/internal/storage"
)

// Detector modes. CFAROff always uses the global robust floor; CFAROS
// runs OS-CFAR and falls back to the global floor when the spectrum is
// too short for the CFAR window.
const (
	CFAROff = "off"
	CFAROS  = "os"
)

// Params configures one sweep run. Frequencies are in Hz.
type Params struct {
	StartHz    float64
	StopHz     float64
	StepHz     float64
	SampleRate float64
	FFTSize    int
	Avg        int

	ThresholdDB  float64
	GuardBins    int
	MinWidthBins int

	CFARMode string
	CFAR     dsp.CFARParams

	// NewOccThreshold is the baseline occupancy below which a detection
	// is flagged as new. The occupancy is read after the current window
	// has been folded in, so a bin must have a long quiet history to
	// qualify.
	NewOccThreshold float64

	Policy          CyclePolicy
	InterCycleSleep time.Duration

	Driver string
}

// Controller drives the sweep: per window it tunes, reads, estimates
// the PSD, detects segments, labels them, folds every bin into the
// baseline and commits the window's rows in one transaction. Around
// that it runs the cycle schedule given by Params.Policy.
type Controller struct {
	params  Params
	source  sdr.Source
	store   storage.Store
	tracker *baseline.Tracker
	plan    *bandplan.Bandplan
	logger  *slog.Logger

	est   *dsp.Estimator
	sinks []DetectionSink

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

// WithSinks attaches detection sinks. Sinks are best-effort.
func WithSinks(sinks ...DetectionSink) func(*Controller) {
	return func(c *Controller) {
		c.sinks = append(c.sinks, sinks...)
	}
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) func(*Controller) {
	return func(c *Controller) {
		c.now = now
	}
}

// WithSleeper overrides the inter-cycle sleep, for tests.
func WithSleeper(sleep func(ctx context.Context, d time.Duration)) func(*Controller) {
	return func(c *Controller) {
		c.sleep = sleep
	}
}

// New creates a Controller. The tracker is expected to be hydrated from
// storage already if persisted baseline state should carry over.
func New(params Params, source sdr.Source, store storage.Store, tracker *baseline.Tracker,
	plan *bandplan.Bandplan, logger *slog.Logger, options ...func(*Controller)) *Controller {

	c := &Controller{
		params:  params,
		source:  source,
		store:   store,
		tracker: tracker,
		plan:    plan,
		logger:  logger,
		est:     dsp.NewEstimator(params.SampleRate, params.FFTSize),
		now:     time.Now,
		sleep:   sleepContext,
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// Run executes the cycle schedule until it is exhausted or ctx is
// cancelled. Cancellation is honored between windows and between
// cycles only; the in-progress window completes and the open scan row
// is finalized, so Run returns nil on a clean cancellation.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.params.Policy.Validate(); err != nil {
		return err
	}

	started := c.now()
	cycles := 0

	for {
		if ctx.Err() != nil {
			c.logger.Info("sweep cancelled before cycle start")
			return nil
		}
		if c.params.Policy.Mode == CycleDuration && c.now().Sub(started) >= c.params.Policy.Duration {
			break
		}

		if err := c.runCycle(ctx); err != nil {
			return err
		}
		cycles++

		if ctx.Err() != nil {
			c.logger.Info("sweep cancelled", slog.Int("cycles", cycles))
			return nil
		}

		done := false
		switch c.params.Policy.Mode {
		case CycleSingle:
			done = true
		case CycleRepeat:
			done = cycles >= c.params.Policy.Repeat
		case CycleDuration:
			done = c.now().Sub(started) >= c.params.Policy.Duration
		}
		if done {
			break
		}

		if c.params.InterCycleSleep > 0 {
			c.sleep(ctx, c.params.InterCycleSleep)
		}
	}

	c.logger.Info("sweep finished", slog.Int("cycles", cycles))
	return nil
}

// runCycle performs one pass over [StartHz, StopHz]. The scan row is
// opened first and finalized on every exit path, exactly once.
func (c *Controller) runCycle(ctx context.Context) (err error) {
	meta := storage.ScanMeta{
		StartTime:  c.now(),
		StartHz:    int64(math.Round(c.params.StartHz)),
		StopHz:     int64(math.Round(c.params.StopHz)),
		StepHz:     int64(math.Round(c.params.StepHz)),
		SampleRate: int64(math.Round(c.params.SampleRate)),
		FFTSize:    c.params.FFTSize,
		Avg:        c.params.Avg,
		Device:     c.source.Device(),
		Driver:     c.params.Driver,
	}

	scanID, err := c.store.StartScan(ctx, meta)
	if err != nil {
		return fmt.Errorf("starting scan: %w", err)
	}
	c.logger.Info("scan started",
		slog.Int64("scanID", scanID),
		slog.Int64("startHz", meta.StartHz),
		slog.Int64("stopHz", meta.StopHz),
		slog.Int64("stepHz", meta.StepHz))

	defer func() {
		// Finalization must survive cancellation of ctx.
		if endErr := c.store.EndScan(context.WithoutCancel(ctx), scanID, c.now()); endErr != nil {
			c.logger.Error("finalizing scan", slog.Int64("scanID", scanID),
				slog.String("error", endErr.Error()))
			if err == nil {
				err = fmt.Errorf("finalizing scan %d: %w", scanID, endErr)
			}
		}
	}()

	for center := c.params.StartHz; center <= c.params.StopHz; center += c.params.StepHz {
		if ctx.Err() != nil {
			c.logger.Info("cycle cancelled; finalizing scan", slog.Int64("scanID", scanID))
			return nil
		}
		if err := c.runWindow(ctx, scanID, center); err != nil {
			return fmt.Errorf("window at %.0f Hz: %w", center, err)
		}
	}
	return nil
}

// runWindow processes a single tuned window end to end.
func (c *Controller) runWindow(ctx context.Context, scanID int64, centerHz float64) error {
	if err := c.source.Tune(centerHz); err != nil {
		return fmt.Errorf("tuning: %w", err)
	}

	// Discard one FFT worth of samples so the retune transient and
	// stale buffered data never reach the estimate.
	if _, err := c.source.Read(c.params.FFTSize); err != nil {
		return fmt.Errorf("settling read: %w", err)
	}

	samples, err := c.source.Read(c.params.FFTSize * c.params.Avg)
	if err != nil {
		return fmt.Errorf("reading: %w", err)
	}

	psdDB := c.est.PSD(samples)
	baseband := c.est.Freqs()
	freqs := make([]float64, len(baseband))
	for i, f := range baseband {
		freqs[i] = f + centerHz
	}

	var (
		above   []bool
		noiseDB []float64
	)
	if c.params.CFARMode == CFAROS {
		var ok bool
		above, noiseDB, ok = dsp.OSCFARMask(psdDB, c.params.CFAR)
		if !ok {
			c.logger.Debug("CFAR window exceeds spectrum; using global floor",
				slog.Int("bins", len(psdDB)),
				slog.Int("window", c.params.CFAR.WindowSize()))
			noiseDB = nil
		}
	}
	if noiseDB == nil {
		var floorDB float64
		above, floorDB = dsp.GlobalMask(psdDB, c.params.ThresholdDB)
		noiseDB = dsp.ExpandNoise(floorDB, len(psdDB))
	}

	segments := dsp.ExtractSegments(freqs, psdDB, above, noiseDB, c.params.GuardBins, c.params.MinWidthBins)

	// Every bin updates the baseline, occupied or not; quiet bins are
	// what drives occupancy toward zero.
	for i := range psdDB {
		c.tracker.Observe(int64(math.Round(freqs[i])), psdDB[i], above[i])
	}

	// The window that is already in flight commits even if ctx was
	// cancelled mid-read; cancellation only takes effect between windows.
	dbCtx := context.WithoutCancel(ctx)

	tx, err := c.store.BeginWindow(dbCtx)
	if err != nil {
		return fmt.Errorf("opening window transaction: %w", err)
	}
	defer tx.Rollback()

	if err := tx.UpsertBaseline(dbCtx, c.tracker.Flush()); err != nil {
		return fmt.Errorf("persisting baseline: %w", err)
	}

	now := c.now()
	for _, seg := range segments {
		centerBin := int64(math.Round(seg.CenterHz))
		service, region, notes := c.plan.Lookup(centerBin)

		det := &storage.Detection{
			ScanID:   scanID,
			Time:     now,
			CenterHz: centerBin,
			LowHz:    int64(math.Round(seg.LowHz)),
			HighHz:   int64(math.Round(seg.HighHz)),
			PeakDB:   seg.PeakDB,
			NoiseDB:  seg.NoiseDB,
			SNRDB:    seg.SNRDB,
			Service:  service,
			Region:   region,
			Notes:    notes,
		}
		if err := tx.InsertDetection(dbCtx, det); err != nil {
			return fmt.Errorf("inserting detection: %w", err)
		}

		occ, tracked := c.tracker.Occupancy(centerBin)
		isNew := tracked && occ < c.params.NewOccThreshold

		c.emit(DetectionRecord{
			TimeUTC:   now.UTC().Format(time.RFC3339Nano),
			FCenterHz: det.CenterHz,
			FLowHz:    det.LowHz,
			FHighHz:   det.HighHz,
			PeakDB:    det.PeakDB,
			NoiseDB:   det.NoiseDB,
			SNRDB:     det.SNRDB,
			Service:   service,
			Region:    region,
			Notes:     notes,
			IsNew:     isNew,
		})

		if isNew {
			c.logger.Info("new signal",
				slog.Int64("centerHz", centerBin),
				slog.String("service", service),
				slog.Float64("snrDB", seg.SNRDB))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing window: %w", err)
	}
	return nil
}

func (c *Controller) emit(rec DetectionRecord) {
	for _, sink := range c.sinks {
		if err := sink.Emit(rec); err != nil {
			c.logger.Warn("detection sink failed",
				slog.String("sink", sink.Name()),
				slog.String("error", err.Error()))
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
