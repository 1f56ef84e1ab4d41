package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdrwatch/sdrwatch/internal/baseline"
)

func testStore(t *testing.T) *SqliteStore {
	t.Helper()
	s := NewSqliteStore(filepath.Join(t.TempDir(), "sdrwatch.db"))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestScanLifecycle(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	started := time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)
	meta := ScanMeta{
		StartTime:  started,
		StartHz:    88_000_000,
		StopHz:     108_000_000,
		StepHz:     2_400_000,
		SampleRate: 2_400_000,
		FFTSize:    4096,
		Avg:        8,
		Device:     "rtl-tcp/R820T",
		Driver:     "rtltcp",
	}

	scanID, err := s.StartScan(ctx, meta)
	require.NoError(t, err)
	require.Greater(t, scanID, int64(0))

	scans, err := s.Scans(ctx)
	require.NoError(t, err)
	require.Len(t, scans, 1)
	assert.Nil(t, scans[0].EndTime, "open scan must have NULL t_end_utc")
	assert.Equal(t, started, scans[0].StartTime)
	assert.Equal(t, int64(88_000_000), scans[0].StartHz)
	assert.Equal(t, "rtl-tcp/R820T", scans[0].Device)

	ended := started.Add(42 * time.Second)
	require.NoError(t, s.EndScan(ctx, scanID, ended))

	scans, err = s.Scans(ctx)
	require.NoError(t, err)
	require.NotNil(t, scans[0].EndTime)
	assert.Equal(t, ended, *scans[0].EndTime)

	// A second EndScan must not move the end time.
	require.NoError(t, s.EndScan(ctx, scanID, ended.Add(time.Hour)))
	scans, err = s.Scans(ctx)
	require.NoError(t, err)
	assert.Equal(t, ended, *scans[0].EndTime)
}

func TestWindowTransactionRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	scanID, err := s.StartScan(ctx, ScanMeta{StartTime: time.Now()})
	require.NoError(t, err)

	now := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	tx, err := s.BeginWindow(ctx)
	require.NoError(t, err)

	det := &Detection{
		ScanID:   scanID,
		Time:     now,
		CenterHz: 100_000_000,
		LowHz:    99_950_000,
		HighHz:   100_050_000,
		PeakDB:   -40,
		NoiseDB:  -90,
		SNRDB:    50,
		Service:  "FM Broadcast",
		Region:   "Global",
	}
	require.NoError(t, tx.InsertDetection(ctx, det))
	require.NoError(t, tx.UpsertBaseline(ctx, []baseline.Bin{
		{BinHz: 100_000_000, EMAOcc: 1, EMAPowerDB: -40, LastSeen: now, TotalObs: 1, Hits: 1},
		{BinHz: 100_000_586, EMAOcc: 0, EMAPowerDB: -91, LastSeen: now, TotalObs: 1, Hits: 0},
	}))
	require.NoError(t, tx.Commit())

	dets, err := s.TopDetections(ctx, 10)
	require.NoError(t, err)
	require.Len(t, dets, 1)
	assert.Equal(t, int64(100_000_000), dets[0].CenterHz)
	assert.Equal(t, 50.0, dets[0].SNRDB)

	bins, err := s.LoadBaseline(ctx)
	require.NoError(t, err)
	assert.Len(t, bins, 2)

	// Upsert again: same keys, updated values.
	tx, err = s.BeginWindow(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.UpsertBaseline(ctx, []baseline.Bin{
		{BinHz: 100_000_000, EMAOcc: 0.95, EMAPowerDB: -42, LastSeen: now.Add(time.Second), TotalObs: 2, Hits: 1},
	}))
	require.NoError(t, tx.Commit())

	top, err := s.TopBaselineBins(ctx, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, int64(100_000_000), top[0].BinHz)
	assert.Equal(t, 0.95, top[0].EMAOcc)
	assert.Equal(t, int64(2), top[0].TotalObs)
}

func TestWindowRollbackDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	scanID, err := s.StartScan(ctx, ScanMeta{StartTime: time.Now()})
	require.NoError(t, err)

	tx, err := s.BeginWindow(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.InsertDetection(ctx, &Detection{ScanID: scanID, Time: time.Now(), CenterHz: 1}))
	require.NoError(t, tx.UpsertBaseline(ctx, []baseline.Bin{{BinHz: 1, LastSeen: time.Now()}}))
	require.NoError(t, tx.Rollback())

	dets, err := s.TopDetections(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, dets)

	bins, err := s.LoadBaseline(ctx)
	require.NoError(t, err)
	assert.Empty(t, bins)
}

func TestServiceCounts(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	scanID, err := s.StartScan(ctx, ScanMeta{StartTime: time.Now()})
	require.NoError(t, err)

	tx, err := s.BeginWindow(ctx)
	require.NoError(t, err)
	for _, service := range []string{"ISM", "ISM", "FM Broadcast", ""} {
		require.NoError(t, tx.InsertDetection(ctx, &Detection{
			ScanID: scanID, Time: time.Now(), CenterHz: 1, Service: service,
		}))
	}
	require.NoError(t, tx.Commit())

	counts, err := s.ServiceCounts(ctx)
	require.NoError(t, err)
	require.Len(t, counts, 3)
	assert.Equal(t, ServiceCount{Service: "ISM", Count: 2}, counts[0])
}
