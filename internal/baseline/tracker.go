// Package baseline maintains the long-term per-bin occupancy and power
// history used to flag newly-appearing signals.
package baseline

import (
	"time"
)

const (
	// DefaultAlphaOcc is the EMA weight applied to new occupancy
	// observations.
	DefaultAlphaOcc = 0.05

	// DefaultAlphaPower is the EMA weight applied to new power
	// observations.
	DefaultAlphaPower = 0.05
)

// Bin is the cumulative history for a single frequency bin, keyed by its
// integer center frequency in Hz. Counters only ever grow; a bin is
// created on first observation and never removed.
type Bin struct {
	BinHz      int64
	EMAOcc     float64
	EMAPowerDB float64
	LastSeen   time.Time
	TotalObs   int64
	Hits       int64
}

// WithAlphas overrides the EMA weights for occupancy and power.
func WithAlphas(occ, power float64) func(*Tracker) {
	return func(t *Tracker) {
		t.alphaOcc = occ
		t.alphaPower = power
	}
}

// WithClock overrides the time source, for deterministic tests.
func WithClock(now func() time.Time) func(*Tracker) {
	return func(t *Tracker) {
		t.now = now
	}
}

// Tracker is the in-memory baseline store. It is hydrated from durable
// storage at startup, updated once per observed bin per sweep window,
// and drained of dirty bins for each window's transaction.
//
// Tracker is not safe for concurrent use; the sweep pipeline is
// single-threaded by design.
type Tracker struct {
	alphaOcc   float64
	alphaPower float64
	now        func() time.Time

	bins  map[int64]*Bin
	dirty map[int64]struct{}
}

// New creates an empty tracker with the default EMA weights.
func New(options ...func(*Tracker)) *Tracker {
	t := Tracker{
		alphaOcc:   DefaultAlphaOcc,
		alphaPower: DefaultAlphaPower,
		now:        time.Now,
		bins:       make(map[int64]*Bin),
		dirty:      make(map[int64]struct{}),
	}

	for _, option := range options {
		option(&t)
	}

	return &t
}

// Seed loads previously persisted bins, replacing any in-memory state
// for the same bin keys. Seeded bins are not marked dirty.
func (t *Tracker) Seed(bins []Bin) {
	for _, b := range bins {
		bin := b
		t.bins[b.BinHz] = &bin
	}
}

// Observe folds one observation of a bin into its history. occupied
// reports whether the bin was above the detection threshold in this
// window. First sight initializes the EMAs to the observation itself.
func (t *Tracker) Observe(binHz int64, powerDB float64, occupied bool) {
	occ := 0.0
	if occupied {
		occ = 1.0
	}

	tnow := t.now().UTC()
	b, ok := t.bins[binHz]
	if !ok {
		b = &Bin{
			BinHz:      binHz,
			EMAOcc:     occ,
			EMAPowerDB: powerDB,
			TotalObs:   1,
		}
		if occupied {
			b.Hits = 1
		}
		t.bins[binHz] = b
	} else {
		b.EMAOcc = (1-t.alphaOcc)*b.EMAOcc + t.alphaOcc*occ
		b.EMAPowerDB = (1-t.alphaPower)*b.EMAPowerDB + t.alphaPower*powerDB
		b.TotalObs++
		if occupied {
			b.Hits++
		}
	}
	b.LastSeen = tnow

	t.dirty[binHz] = struct{}{}
}

// Occupancy returns the current occupancy EMA for a bin. ok is false if
// the bin has never been observed or seeded.
func (t *Tracker) Occupancy(binHz int64) (occ float64, ok bool) {
	b, found := t.bins[binHz]
	if !found {
		return 0, false
	}
	return b.EMAOcc, true
}

// Bin returns a copy of the bin's current state.
func (t *Tracker) Bin(binHz int64) (Bin, bool) {
	b, ok := t.bins[binHz]
	if !ok {
		return Bin{}, false
	}
	return *b, true
}

// Len returns the number of tracked bins.
func (t *Tracker) Len() int { return len(t.bins) }

// Flush returns a snapshot of every bin touched since the previous
// Flush and clears the dirty set. The caller persists the snapshot
// inside the window's transaction.
func (t *Tracker) Flush() []Bin {
	if len(t.dirty) == 0 {
		return nil
	}

	out := make([]Bin, 0, len(t.dirty))
	for binHz := range t.dirty {
		out = append(out, *t.bins[binHz])
	}
	clear(t.dirty)
	return out
}
