package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sdrwatch/sdrwatch/internal/baseline"
)

// SqliteStore implements Store over a single SQLite file. It keeps a WAL
// write connection and a separate read-only connection, each opened
// lazily on first use.
type SqliteStore struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

// NewSqliteStore creates a store for the database at dbPath. The schema
// is initialized when the write connection is first opened.
func NewSqliteStore(dbPath string) *SqliteStore {
	return &SqliteStore{dbPath: dbPath}
}

func (s *SqliteStore) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}

		if _, err = db.Exec(schemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *SqliteStore) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

func (s *SqliteStore) StartScan(ctx context.Context, meta ScanMeta) (scanID int64, err error) {
	db, err := s.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, insertScanSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	result, err := stmt.ExecContext(ctx,
		fmtTime(meta.StartTime),
		meta.StartHz,
		meta.StopHz,
		meta.StepHz,
		meta.SampleRate,
		meta.FFTSize,
		meta.Avg,
		meta.Device,
		meta.Driver,
	)
	if err != nil {
		err = fmt.Errorf("inserting scan: %w", err)
		return
	}

	scanID, err = result.LastInsertId()
	if err != nil {
		err = fmt.Errorf("getting scan ID: %w", err)
	}
	return
}

func (s *SqliteStore) EndScan(ctx context.Context, scanID int64, endedAt time.Time) error {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	if _, err = db.ExecContext(ctx, endScanSQL, fmtTime(endedAt), scanID); err != nil {
		return fmt.Errorf("finalizing scan %d: %w", scanID, err)
	}
	return nil
}

func (s *SqliteStore) LoadBaseline(ctx context.Context) (bins []baseline.Bin, err error) {
	// Baseline hydration happens before the first window is written, so
	// the write connection is used: it creates the schema on a fresh
	// database where a read-only open would fail.
	db, err := s.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectBaselineSQL)
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
	if err = rows.Err(); err != nil {
		err = fmt.Errorf("iterating baseline: %w", err)
	}
	return
}

func (s *SqliteStore) BeginWindow(ctx context.Context) (WindowTx, error) {
	db, err := s.getWriteDB()
	if err != nil {
		return nil, fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning window transaction: %w", err)
	}
	return &windowTx{tx: tx}, nil
}

func (s *SqliteStore) Close() error {
	s.closeOnce.Do(func() {
		var writeErr, readErr error

		if s.writeDB != nil {
			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}

		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		switch {
		case writeErr != nil && readErr != nil:
			s.closeErr = errors.Join(writeErr, readErr)
		case writeErr != nil:
			s.closeErr = writeErr
		case readErr != nil:
			s.closeErr = readErr
		}
	})

	return s.closeErr
}

// windowTx is the SQLite WindowTx. The baseline upsert statement is
// prepared once per window since it runs once per observed bin.
type windowTx struct {
	tx       *sql.Tx
	baseStmt *sql.Stmt
	done     bool
}

func (w *windowTx) InsertDetection(ctx context.Context, d *Detection) error {
	_, err := w.tx.ExecContext(ctx, insertDetectionSQL,
		d.ScanID,
		fmtTime(d.Time),
		d.CenterHz,
		d.LowHz,
		d.HighHz,
		d.PeakDB,
		d.NoiseDB,
		d.SNRDB,
		d.Service,
		d.Region,
		d.Notes,
	)
	if err != nil {
		return fmt.Errorf("inserting detection: %w", err)
	}
	return nil
}

func (w *windowTx) UpsertBaseline(ctx context.Context, bins []baseline.Bin) error {
	if len(bins) == 0 {
		return nil
	}

	if w.baseStmt == nil {
		stmt, err := w.tx.PrepareContext(ctx, upsertBaselineSQL)
		if err != nil {
			return fmt.Errorf("preparing baseline upsert: %w", err)
		}
		w.baseStmt = stmt
	}

	for _, b := range bins {
		_, err := w.baseStmt.ExecContext(ctx,
			b.BinHz,
			b.EMAOcc,
			b.EMAPowerDB,
			fmtTime(b.LastSeen),
			b.TotalObs,
			b.Hits,
		)
		if err != nil {
			return fmt.Errorf("upserting baseline bin %d: %w", b.BinHz, err)
		}
	}
	return nil
}

func (w *windowTx) Commit() error {
	w.done = true
	if w.baseStmt != nil {
		_ = w.baseStmt.Close()
		w.baseStmt = nil
	}
	if err := w.tx.Commit(); err != nil {
		return fmt.Errorf("committing window: %w", err)
	}
	return nil
}

func (w *windowTx) Rollback() error {
	if w.done {
		return nil
	}
	w.done = true
	if w.baseStmt != nil {
		_ = w.baseStmt.Close()
		w.baseStmt = nil
	}
	if err := w.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rolling back window: %w", err)
	}
	return nil
}
