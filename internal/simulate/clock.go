// Package simulate provides a deterministic virtual clock so the core
// pipeline's end-to-end behavior (§8 scenarios) can be exercised without
// real sockets or OS clock access.
package simulate

import (
	"sync"
	"time"

	"github.com/zbynekdrlik/dantetimesync/internal/timebase"
)

// VirtualClock implements timebase.LocalClock entirely in memory. Advance
// moves both the monotonic and wall clocks together, as real clocks do
// absent an explicit StepWall call. AdjustFrequency is recorded but does
// not itself move time forward — tests advance time explicitly, and every
// Advance applies the recorded PPM to the wall clock's drift.
type VirtualClock struct {
	mu    sync.Mutex
	mono  time.Duration
	wall  time.Time
	ppm   float64
}

var _ timebase.LocalClock = (*VirtualClock)(nil)

func NewVirtualClock(start time.Time) *VirtualClock {
	return &VirtualClock{wall: start}
}

func (c *VirtualClock) NowMonotonic() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mono
}

func (c *VirtualClock) NowWall() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wall
}

func (c *VirtualClock) StepWall(delta time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wall = c.wall.Add(delta)
}

func (c *VirtualClock) AdjustFrequency(ppm float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ppm = ppm
	return nil
}

func (c *VirtualClock) PPM() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ppm
}

// Advance moves both clocks forward by d, applying the currently recorded
// PPM as a rate bias to the host's own advance: a positive ppm means the
// host clock runs fast relative to nominal, which is what AdjustFrequency
// is supposed to cause.
func (c *VirtualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	biased := time.Duration(float64(d) * (1 + c.ppm/1e6))
	c.mono += d
	c.wall = c.wall.Add(biased)
}
