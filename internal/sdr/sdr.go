// Package sdr binds the scanner to a hardware sample source.
package sdr

// Source is a tunable complex-baseband sample source. The scanner owns
// its Source exclusively for the lifetime of a run; arbitration between
// processes sharing a physical device belongs to an external supervisor.
type Source interface {
	// Tune retunes the hardware to the given RF center frequency.
	Tune(centerHz float64) error

	// Read blocks until exactly n samples have been delivered, retrying
	// internally over short reads. No timeout is imposed.
	Read(n int) ([]complex64, error)

	// Device returns a human-readable hardware label for scan metadata.
	Device() string

	// Close releases the device. Idempotent.
	Close() error
}
