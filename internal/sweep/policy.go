package sweep

import (
	"fmt"
	"time"
)

// CycleMode selects how many sweep cycles a run performs.
type CycleMode string

const (
	// CycleSingle runs one full sweep and stops.
	CycleSingle CycleMode = "single"

	// CycleLoop repeats cycles until externally cancelled.
	CycleLoop CycleMode = "loop"

	// CycleRepeat runs exactly Repeat cycles.
	CycleRepeat CycleMode = "repeat"

	// CycleDuration keeps starting cycles while elapsed wall-clock time
	// is under Duration; an in-progress cycle always completes.
	CycleDuration CycleMode = "duration"
)

// CyclePolicy is the tagged cycle-scheduling union. Exactly one mode is
// active and only that mode's payload field may be set; Validate
// enforces this rather than trusting caller discipline.
type CyclePolicy struct {
	Mode     CycleMode
	Repeat   int           // CycleRepeat only
	Duration time.Duration // CycleDuration only
}

// Validate checks the policy payload against its mode.
func (p CyclePolicy) Validate() error {
	switch p.Mode {
	case CycleSingle, CycleLoop:
		if p.Repeat != 0 || p.Duration != 0 {
			return fmt.Errorf("cycle mode %q takes no repeat or duration payload", p.Mode)
		}
	case CycleRepeat:
		if p.Repeat <= 0 {
			return fmt.Errorf("cycle mode %q requires a positive repeat count", p.Mode)
		}
		if p.Duration != 0 {
			return fmt.Errorf("cycle mode %q cannot carry a duration", p.Mode)
		}
	case CycleDuration:
		if p.Duration <= 0 {
			return fmt.Errorf("cycle mode %q requires a positive duration", p.Mode)
		}
		if p.Repeat != 0 {
			return fmt.Errorf("cycle mode %q cannot carry a repeat count", p.Mode)
		}
	default:
		return fmt.Errorf("unknown cycle mode %q", p.Mode)
	}
	return nil
}
