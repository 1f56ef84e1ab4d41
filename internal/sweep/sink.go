package sweep

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
)

// DetectionRecord is the flattened per-detection event handed to sinks.
// Field order matches the persisted detection row, with is_new appended.
type DetectionRecord struct {
	TimeUTC   string  `json:"time_utc"`
	FCenterHz int64   `json:"f_center_hz"`
	FLowHz    int64   `json:"f_low_hz"`
	FHighHz   int64   `json:"f_high_hz"`
	PeakDB    float64 `json:"peak_db"`
	NoiseDB   float64 `json:"noise_db"`
	SNRDB     float64 `json:"snr_db"`
	Service   string  `json:"service"`
	Region    string  `json:"region"`
	Notes     string  `json:"notes"`
	IsNew     bool    `json:"is_new"`
}

// DetectionSink receives detection events as they are produced. Sinks
// are best-effort: an Emit error is logged by the caller and never
// aborts the sweep.
type DetectionSink interface {
	Name() string
	Emit(rec DetectionRecord) error
}

// JSONLSink appends one JSON object per detection to a file. The file
// is opened per emit so an external log rotation never holds a stale
// descriptor here.
type JSONLSink struct {
	Path string
}

func (s *JSONLSink) Name() string { return "jsonl" }

func (s *JSONLSink) Emit(rec DetectionRecord) error {
	f, err := os.OpenFile(s.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", s.Path, err)
	}
	defer f.Close()

	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding detection: %w", err)
	}
	if _, err := f.Write(append(b, '\n')); err != nil {
		return fmt.Errorf("writing %s: %w", s.Path, err)
	}
	return nil
}

// NotifySink raises a desktop notification via notify-send for
// detections in bins whose baseline occupancy is still below the
// new-signal threshold. Known-busy bins stay quiet.
type NotifySink struct{}

func (s *NotifySink) Name() string { return "notify" }

func (s *NotifySink) Emit(rec DetectionRecord) error {
	if !rec.IsNew {
		return nil
	}

	service := rec.Service
	if service == "" {
		service = "Unknown"
	}
	body := fmt.Sprintf("%.6f MHz; SNR %.1f dB; %s %s",
		float64(rec.FCenterHz)/1e6, rec.SNRDB, service, rec.Region)

	cmd := exec.Command("notify-send", "sdrwatch: new signal", body)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("spawning notify-send: %w", err)
	}
	go cmd.Wait() // reap; outcome is irrelevant
	return nil
}
