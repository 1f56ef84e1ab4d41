package storage

import (
	_ "embed"
)

//go:embed schema.sql
var schemaSQL string

const (
	insertScanSQL = `
INSERT INTO scans (t_start_utc,
                   t_end_utc,
                   f_start_hz,
                   f_stop_hz,
                   step_hz,
                   samp_rate,
                   fft,
                   avg,
                   device,
                   driver)
VALUES (?, NULL, ?, ?, ?, ?, ?, ?, ?, ?)`

	endScanSQL = `
UPDATE scans
SET t_end_utc = ?
WHERE id = ? AND t_end_utc IS NULL`

	insertDetectionSQL = `
INSERT INTO detections (scan_id,
                        time_utc,
                        f_center_hz,
                        f_low_hz,
                        f_high_hz,
                        peak_db,
                        noise_db,
                        snr_db,
                        service,
                        region,
                        notes)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	upsertBaselineSQL = `
INSERT INTO baseline (bin_hz, ema_occ, ema_power_db, last_seen_utc, total_obs, hits)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(bin_hz) DO UPDATE SET
    ema_occ       = excluded.ema_occ,
    ema_power_db  = excluded.ema_power_db,
    last_seen_utc = excluded.last_seen_utc,
    total_obs     = excluded.total_obs,
    hits          = excluded.hits`

	selectBaselineSQL = `
SELECT bin_hz,
       ema_occ,
       ema_power_db,
       last_seen_utc,
       total_obs,
       hits
FROM baseline`

	selectScansSQL = `
SELECT s.id,
       s.t_start_utc,
       s.t_end_utc,
       s.f_start_hz,
       s.f_stop_hz,
       s.step_hz,
       s.samp_rate,
       s.fft,
       s.avg,
       s.device,
       s.driver,
       COUNT(d.id)
FROM scans s
         LEFT JOIN detections d ON d.scan_id = s.id
GROUP BY s.id
ORDER BY s.id`

	selectTopDetectionsSQL = `
SELECT id,
       scan_id,
       time_utc,
       f_center_hz,
       f_low_hz,
       f_high_hz,
       peak_db,
       noise_db,
       snr_db,
       service,
       region,
       notes
FROM detections
ORDER BY snr_db DESC
LIMIT ?`

	selectTopBaselineSQL = `
SELECT bin_hz,
       ema_occ,
       ema_power_db,
       last_seen_utc,
       total_obs,
       hits
FROM baseline
ORDER BY ema_occ DESC, bin_hz
LIMIT ?`

	selectServiceCountsSQL = `
SELECT COALESCE(NULLIF(service, ''), 'Unknown'),
       COUNT(*)
FROM detections
GROUP BY 1
ORDER BY 2 DESC`
)
