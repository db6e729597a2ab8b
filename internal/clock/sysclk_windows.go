//go:build windows

package clock

import (
	"errors"
	"sync"
	"time"
	"unsafe"

	"go.uber.org/zap"
	"golang.org/x/sys/windows"

	"github.com/zbynekdrlik/dantetimesync/internal/timebase"
)

// ErrPermissionDenied is returned when the SeSystemtimePrivilege is missing.
var ErrPermissionDenied = errors.New("clock: permission denied")

var (
	kernel32                           = windows.NewLazySystemDLL("kernel32.dll")
	procSetSystemTimeAdjustmentPrecise = kernel32.NewProc("SetSystemTimeAdjustmentPrecise")
	procGetSystemTimeAdjustmentPrecise = kernel32.NewProc("GetSystemTimeAdjustmentPrecise")
	procSetSystemTimePreciseAsFileTime = kernel32.NewProc("SetSystemTimePreciseAsFileTime")
)

// hundredNsPerSecondNominal is the nominal number of 100ns adjustment units
// applied per adjustment interval at a 1.0 rate (no correction).
const hundredNsPerSecondNominal = 10_000_000

type SystemClock struct {
	Log *zap.Logger

	mu           sync.Mutex
	perfFreq     int64
	lastPPM      float64
	origAdj      uint64
	origInterval uint64
	haveOrig     bool
}

var _ timebase.LocalClock = (*SystemClock)(nil)

func NewSystemClock(log *zap.Logger) (*SystemClock, error) {
	var f int64
	if err := windows.QueryPerformanceFrequency(&f); err != nil {
		return nil, err
	}
	return &SystemClock{Log: log, perfFreq: f}, nil
}

func (c *SystemClock) NowMonotonic() time.Duration {
	var counter int64
	if err := windows.QueryPerformanceCounter(&counter); err != nil {
		c.Log.Fatal("QueryPerformanceCounter failed", zap.Error(err))
	}
	// Split into whole seconds and remainder so counter*1e9 cannot overflow.
	sec := counter / c.perfFreq
	rem := counter % c.perfFreq
	ns := sec*int64(time.Second) + rem*int64(time.Second)/c.perfFreq
	return time.Duration(ns)
}

func (c *SystemClock) NowWall() time.Time {
	var ft windows.Filetime
	windows.GetSystemTimePreciseAsFileTime(&ft)
	return time.Unix(0, ft.Nanoseconds()).UTC()
}

func (c *SystemClock) StepWall(delta time.Duration) {
	c.Log.Debug("stepping wall clock", zap.Duration("delta", delta))
	now := c.NowWall().Add(delta)
	ft := windows.NsecToFiletime(now.UnixNano())
	ret, _, err := procSetSystemTimePreciseAsFileTime.Call(uintptr(unsafe.Pointer(&ft)))
	if ret == 0 {
		c.Log.Warn("SetSystemTimePreciseAsFileTime failed", zap.Error(err))
	}
}

// AdjustFrequency sets the tick-rate offset in PPM relative to nominal via
// the 64-bit precise adjustment API. Idempotent for the same ppm value: the
// absolute adjustment amount (not a relative delta) is recomputed and
// reissued every call.
//
// Known platform limitation: on some Windows builds this API accepts the
// call but the measured clock rate does not move; phase correction (this
// service's NTP step path) carries more of the burden here than on Linux.
func (c *SystemClock) AdjustFrequency(ppm float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var curAdj, interval uint64
	var disabled uint32
	procGetSystemTimeAdjustmentPrecise.Call(
		uintptr(unsafe.Pointer(&curAdj)), uintptr(unsafe.Pointer(&interval)), uintptr(unsafe.Pointer(&disabled)))
	if interval == 0 {
		interval = hundredNsPerSecondNominal
	}
	if !c.haveOrig {
		c.origAdj, c.origInterval, c.haveOrig = curAdj, interval, true
	}

	rate := 1.0 + ppm/1e6
	newAdj := uint64(float64(interval) * rate)

	ret, _, err := procSetSystemTimeAdjustmentPrecise.Call(uintptr(newAdj), 0 /* TimeAdjustmentDisabled=FALSE */)
	if ret == 0 {
		if errors.Is(err, windows.ERROR_ACCESS_DENIED) || errors.Is(err, windows.ERROR_PRIVILEGE_NOT_HELD) {
			return ErrPermissionDenied
		}
		return err
	}
	c.lastPPM = ppm
	return nil
}

// Restore reissues the adjustment amount that was in effect before the first
// AdjustFrequency call, with the adjustment override left enabled; the
// original disabled flag is not restored. Best effort, called on shutdown.
func (c *SystemClock) Restore() {
	c.mu.Lock()
	adj, have := c.origAdj, c.haveOrig
	c.mu.Unlock()
	if !have {
		return
	}
	ret, _, err := procSetSystemTimeAdjustmentPrecise.Call(uintptr(adj), 0)
	if ret == 0 {
		c.Log.Warn("failed to restore original clock adjustment on shutdown", zap.Error(err))
	}
}
