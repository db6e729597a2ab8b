//go:build !linux && !windows

package clock

import (
	"time"

	"go.uber.org/zap"

	"github.com/zbynekdrlik/dantetimesync/internal/timebase"
)

// SystemClock is a best-effort fallback for platforms this service does not
// target (§1 names only Linux and Windows hosts). It reports monotonic and
// wall time correctly but cannot discipline the OS clock, matching the
// teacher's own "not yet implemented" stance for non-Linux builds:
// StepWall and AdjustFrequency only log at debug level, and AdjustFrequency
// returns nil even though no adjustment is made.
type SystemClock struct {
	Log *zap.Logger
}

var _ timebase.LocalClock = (*SystemClock)(nil)

// monotonicEpoch anchors NowMonotonic; time.Since relies on the monotonic
// reading time.Now() already carries internally, so this stays correct
// across wall-clock steps without any OS-specific monotonic clock call.
var monotonicEpoch = time.Now()

func NewSystemClock(log *zap.Logger) *SystemClock {
	return &SystemClock{Log: log}
}

func (c *SystemClock) NowMonotonic() time.Duration {
	return time.Since(monotonicEpoch)
}

func (c *SystemClock) NowWall() time.Time {
	return time.Now().UTC()
}

func (c *SystemClock) StepWall(delta time.Duration) {
	c.Log.Debug("SystemClock.StepWall not implemented on this platform", zap.Duration("delta", delta))
}

func (c *SystemClock) AdjustFrequency(ppm float64) error {
	c.Log.Debug("SystemClock.AdjustFrequency not implemented on this platform", zap.Float64("ppm", ppm))
	return nil
}
