package storage

import (
	"context"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sdrwatch/sdrwatch/internal/baseline"
)

// Store is the persistence gateway for scan runs, detections and the
// per-bin baseline. All window writes happen through a WindowTx so that
// one sweep window commits atomically.
type Store interface {
	// StartScan inserts an open scan row for a new sweep cycle and
	// returns its ID. The row's t_end_utc stays NULL until EndScan.
	StartScan(ctx context.Context, meta ScanMeta) (scanID int64, err error)

	// EndScan finalizes a scan row. It is called exactly once per scan,
	// whether the cycle finished normally or was cancelled.
	EndScan(ctx context.Context, scanID int64, endedAt time.Time) error

	// LoadBaseline returns every persisted baseline bin, used to hydrate
	// the in-memory tracker at startup.
	LoadBaseline(ctx context.Context) ([]baseline.Bin, error)

	// BeginWindow opens the transaction scoping a single sweep window's
	// baseline upserts and detection inserts.
	BeginWindow(ctx context.Context) (WindowTx, error)

	// Close releases database resources. Safe to call multiple times.
	Close() error
}

// WindowTx batches one sweep window's writes. Either Commit or Rollback
// must be called; Rollback after Commit is a no-op.
type WindowTx interface {
	InsertDetection(ctx context.Context, d *Detection) error
	UpsertBaseline(ctx context.Context, bins []baseline.Bin) error
	Commit() error
	Rollback() error
}
