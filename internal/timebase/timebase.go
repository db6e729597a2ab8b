// Package timebase defines the clock-adapter capability the rest of the
// synchronization core is built against. Implementations live in
// internal/clock, one per OS; callers receive one at construction time and
// pass it explicitly — the core holds no module-level clock state.
package timebase

import "time"

// LocalClock is the platform-specific clock adapter.
type LocalClock interface {
	// NowMonotonic returns a host monotonic instant, strictly non-decreasing
	// and immune to wall-clock steps.
	NowMonotonic() time.Duration
	// NowWall returns the current wall-clock time.
	NowWall() time.Time
	// StepWall additively corrects the wall clock. Must not change frequency.
	StepWall(delta time.Duration)
	// AdjustFrequency sets the clock's tick-rate offset in parts per million
	// relative to nominal. Must not change the wall-clock instantaneous value.
	// Applying the same ppm twice must have no cumulative effect.
	AdjustFrequency(ppm float64) error
}
