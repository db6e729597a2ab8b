// Package filter implements the lucky-packet filter: it buffers raw offset
// samples into fixed-size windows and emits the minimum of each window,
// discarding the rest.
package filter

import (
	"time"

	"go.uber.org/zap"

	"github.com/zbynekdrlik/dantetimesync/internal/measurement"
	"github.com/zbynekdrlik/dantetimesync/internal/metrics"
)

// Filter accumulates Size raw samples, emits the one with the smallest
// Offset, and resets. A window is rejected (no emission) if the spread
// between its largest and smallest offset falls below MinDelta: too tight
// a spread means the window's samples are not independently noisy draws,
// which the minimum-of-N estimator depends on.
type Filter struct {
	Log      *zap.Logger
	Size     int
	MinDelta time.Duration

	buf []measurement.Sample
}

func New(log *zap.Logger, size int, minDelta time.Duration) *Filter {
	return &Filter{Log: log, Size: size, MinDelta: minDelta, buf: make([]measurement.Sample, 0, size)}
}

// Add appends a raw sample. When the window fills it evaluates the window
// and resets, returning the emitted sample and true if the window passed
// the spread check, or false if it was rejected.
func (f *Filter) Add(s measurement.Sample) (measurement.Sample, bool) {
	f.buf = append(f.buf, s)
	if len(f.buf) < f.Size {
		return measurement.Sample{}, false
	}

	window := f.buf
	f.buf = make([]measurement.Sample, 0, f.Size)

	lo, hi := window[0].Offset, window[0].Offset
	for _, m := range window[1:] {
		if m.Offset < lo {
			lo = m.Offset
		}
		if m.Offset > hi {
			hi = m.Offset
		}
	}
	if hi-lo < f.MinDelta {
		metrics.FilterWindowsRejected.Inc()
		f.Log.Debug("window rejected for insufficient spread", zap.Duration("spread", hi-lo))
		return measurement.Sample{}, false
	}

	metrics.FilterWindowsEmitted.Inc()
	return measurement.Min(window), true
}

// Reset discards any partially filled window, used on grandmaster switch
// so stale samples from the old source never mix with the new one.
func (f *Filter) Reset() {
	f.buf = f.buf[:0]
}
