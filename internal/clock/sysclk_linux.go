//go:build linux

package clock

// Based on Ntimed by Poul-Henning Kamp, https://github.com/bsdphk/Ntimed,
// and on the adjtimex-based clock adapter this service's ancestor uses to
// discipline CLOCK_REALTIME.

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"golang.org/x/sys/unix"

	"github.com/zbynekdrlik/dantetimesync/internal/timebase"
	"github.com/zbynekdrlik/dantetimesync/internal/unixutil"
)

// maxPPM bounds the PPM value ever handed to the kernel; §4.7 already clamps
// the servo's output to ±100, this is a hardware-sanity backstop.
const maxPPM = 500.0

// ErrPermissionDenied is returned by AdjustFrequency when the kernel refuses
// the adjustment for lack of privilege (CAP_SYS_TIME). StepWall has no error
// return; a refused step is only logged.
var ErrPermissionDenied = errors.New("clock: permission denied")

type SystemClock struct {
	Log *zap.Logger

	mu          sync.Mutex
	lastPPM     float64
	originalPPM float64
	haveOrig    bool
}

var _ timebase.LocalClock = (*SystemClock)(nil)

func NewSystemClock(log *zap.Logger) *SystemClock {
	return &SystemClock{Log: log}
}

func (c *SystemClock) NowMonotonic() time.Duration {
	var ts unix.Timespec
	err := unix.ClockGettime(unix.CLOCK_MONOTONIC_RAW, &ts)
	if err != nil {
		c.Log.Fatal("unix.ClockGettime(CLOCK_MONOTONIC_RAW) failed", zap.Error(err))
	}
	return time.Duration(ts.Nano())
}

func (c *SystemClock) NowWall() time.Time {
	var ts unix.Timespec
	err := unix.ClockGettime(unix.CLOCK_REALTIME, &ts)
	if err != nil {
		c.Log.Fatal("unix.ClockGettime(CLOCK_REALTIME) failed", zap.Error(err))
	}
	return time.Unix(ts.Unix()).UTC()
}

func (c *SystemClock) StepWall(delta time.Duration) {
	c.Log.Debug("stepping wall clock", zap.Duration("delta", delta))
	tx := unix.Timex{
		Modes: unix.ADJ_SETOFFSET | unix.ADJ_NANO,
		Time:  unixutil.TimevalFromNsec(delta.Nanoseconds()),
	}
	_, err := unix.ClockAdjtime(unix.CLOCK_REALTIME, &tx)
	if err != nil {
		c.Log.Warn("unix.ClockAdjtime(ADJ_SETOFFSET) failed", zap.Error(err))
	}
}

// AdjustFrequency sets the tick-rate offset in PPM relative to nominal.
// Idempotent: setting the same PPM twice reissues the identical syscall
// state, and 0 is a valid steady-state value, not special-cased as a no-op,
// so that a caller can always rely on the kernel state matching the last
// value passed in.
func (c *SystemClock) AdjustFrequency(ppm float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ppm > maxPPM {
		ppm = maxPPM
	} else if ppm < -maxPPM {
		ppm = -maxPPM
	}

	if !c.haveOrig {
		if tx, err := readFrequency(); err == nil {
			c.originalPPM = tx
			c.haveOrig = true
		}
	}

	c.Log.Debug("setting frequency", zap.Float64("ppm", ppm))
	tx := unix.Timex{
		Modes:  unix.ADJ_FREQUENCY,
		Freq:   unixutil.FreqToScaledPPM(ppm / 1e6),
		Status: unix.STA_PLL,
	}
	_, err := unix.ClockAdjtime(unix.CLOCK_REALTIME, &tx)
	if err != nil {
		if errors.Is(err, unix.EPERM) {
			return ErrPermissionDenied
		}
		return err
	}
	c.lastPPM = ppm
	return nil
}

func readFrequency() (float64, error) {
	var tx unix.Timex
	_, err := unix.Adjtimex(&tx)
	if err != nil {
		return 0, err
	}
	return unixutil.FreqFromScaledPPM(tx.Freq) * 1e6, nil
}

// Restore reapplies the frequency observed before the service started. Best
// effort: called on shutdown, never blocks it, logs on failure.
func (c *SystemClock) Restore() {
	c.mu.Lock()
	orig, have := c.originalPPM, c.haveOrig
	c.mu.Unlock()
	if !have {
		return
	}
	tx := unix.Timex{
		Modes:  unix.ADJ_FREQUENCY,
		Freq:   unixutil.FreqToScaledPPM(orig / 1e6),
		Status: unix.STA_PLL,
	}
	if _, err := unix.ClockAdjtime(unix.CLOCK_REALTIME, &tx); err != nil {
		c.Log.Warn("failed to restore original clock frequency on shutdown", zap.Error(err))
	}
}
