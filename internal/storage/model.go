package storage

import (
	"time"
)

// ScanMeta is the metadata recorded when a sweep cycle starts. The scan
// row stays open (t_end_utc NULL) until the cycle finishes or is
// cancelled.
type ScanMeta struct {
	StartTime  time.Time
	StartHz    int64
	StopHz     int64
	StepHz     int64
	SampleRate int64
	FFTSize    int
	Avg        int
	Device     string
	Driver     string
}

// ScanRun is a stored scan row. EndTime is nil while the cycle is still
// running (or if the process died before finalizing it).
type ScanRun struct {
	ID         int64
	StartTime  time.Time
	EndTime    *time.Time
	StartHz    int64
	StopHz     int64
	StepHz     int64
	SampleRate int64
	FFTSize    int
	Avg        int
	Device     string
	Driver     string

	// Detections is the number of detection rows referencing this scan;
	// populated by list queries only.
	Detections int64
}

// Detection is one persisted segment detection. Immutable once written.
type Detection struct {
	ID       int64
	ScanID   int64
	Time     time.Time
	CenterHz int64
	LowHz    int64
	HighHz   int64
	PeakDB   float64
	NoiseDB  float64
	SNRDB    float64
	Service  string
	Region   string
	Notes    string
}

// ServiceCount aggregates detections per bandplan service label.
type ServiceCount struct {
	Service string
	Count   int64
}
