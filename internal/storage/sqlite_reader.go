package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sdrwatch/sdrwatch/internal/baseline"
)

// Scans returns every stored scan run in insertion order, each with its
// detection count.
func (s *SqliteStore) Scans(ctx context.Context) (scans []ScanRun, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectScansSQL)
	if err != nil {
		err = fmt.Errorf("querying scans: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var run ScanRun
		var start string
		var end sql.NullString
		var device, driver sql.NullString
		if err = rows.Scan(&run.ID, &start, &end, &run.StartHz, &run.StopHz, &run.StepHz,
			&run.SampleRate, &run.FFTSize, &run.Avg, &device, &driver, &run.Detections); err != nil {
			err = fmt.Errorf("scanning scan row: %w", err)
			return
		}
		if run.StartTime, err = parseTime(start); err != nil {
			return
		}
		if run.EndTime, err = parseNullTime(end); err != nil {
			return
		}
		run.Device = device.String
		run.Driver = driver.String
		scans = append(scans, run)
	}
	err = rows.Err()
	return
}

// TopDetections returns up to limit detections ordered by descending
// SNR.
func (s *SqliteStore) TopDetections(ctx context.Context, limit int) (dets []Detection, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectTopDetectionsSQL, limit)
	if err != nil {
		err = fmt.Errorf("querying detections: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var d Detection
		var ts string
		var service, region, notes sql.NullString
		if err = rows.Scan(&d.ID, &d.ScanID, &ts, &d.CenterHz, &d.LowHz, &d.HighHz,
			&d.PeakDB, &d.NoiseDB, &d.SNRDB, &service, &region, &notes); err != nil {
			err = fmt.Errorf("scanning detection row: %w", err)
			return
		}
		if d.Time, err = parseTime(ts); err != nil {
			return
		}
		d.Service = service.String
		d.Region = region.String
		d.Notes = notes.String
		dets = append(dets, d)
	}
	err = rows.Err()
	return
}

// TopBaselineBins returns up to limit baseline bins ordered by
// descending occupancy EMA.
func (s *SqliteStore) TopBaselineBins(ctx context.Context, limit int) (bins []baseline.Bin, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectTopBaselineSQL, limit)
	if err != nil {
		err = fmt.Errorf("querying baseline: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var b baseline.Bin
		var lastSeen string
		if err = rows.Scan(&b.BinHz, &b.EMAOcc, &b.EMAPowerDB, &lastSeen, &b.TotalObs, &b.Hits); err != nil {
			err = fmt.Errorf("scanning baseline bin: %w", err)
			return
		}
		if b.LastSeen, err = parseTime(lastSeen); err != nil {
			return
		}
		bins = append(bins, b)
	}
	err = rows.Err()
	return
}

// ServiceCounts aggregates detection counts per bandplan service label,
// most frequent first. Unlabeled detections report as "Unknown".
func (s *SqliteStore) ServiceCounts(ctx context.Context) (counts []ServiceCount, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectServiceCountsSQL)
	if err != nil {
		err = fmt.Errorf("querying service counts: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var c ServiceCount
		if err = rows.Scan(&c.Service, &c.Count); err != nil {
			err = fmt.Errorf("scanning service count: %w", err)
			return
		}
		counts = append(counts, c)
	}
	err = rows.Err()
	return
}
