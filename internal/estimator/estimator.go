// Package estimator turns a stream of filtered offset samples into a
// smoothed drift-rate estimate using an EMA whose smoothing coefficient
// adapts to how jittery the recent rate samples have been.
package estimator

import (
	"go.uber.org/zap"

	"github.com/zbynekdrlik/dantetimesync/internal/floats"
	"github.com/zbynekdrlik/dantetimesync/internal/measurement"
	"github.com/zbynekdrlik/dantetimesync/internal/metrics"
)

const rateWindowSize = 30

const (
	alphaCalm = 0.30
	alphaWild = 0.10
	sigmaLo   = 2.0 // microseconds per second
	sigmaHi   = 8.0
)

// Estimator is not safe for concurrent use; the servo drives it from a
// single goroutine per grandmaster.
type Estimator struct {
	Log *zap.Logger

	haveLast bool
	lastSample measurement.Sample

	rateSamples []float64 // ring buffer of instantaneous rate samples, ns/s
	rateHead    int

	haveEMA  bool
	ema      float64
	lastAlpha float64
}

func New(log *zap.Logger) *Estimator {
	return &Estimator{Log: log, rateSamples: make([]float64, 0, rateWindowSize)}
}

// Update folds one filtered offset sample into the drift-rate estimate. It
// returns ok=false for the first sample fed in, since a rate needs two
// points.
func (e *Estimator) Update(s measurement.Sample) (driftRateNsPerS float64, ok bool) {
	if !e.haveLast {
		e.lastSample, e.haveLast = s, true
		return 0, false
	}

	prev := e.lastSample
	dt := s.Timestamp.Sub(prev.Timestamp).Seconds()
	e.lastSample = s
	if dt <= 0 {
		return e.ema, e.haveEMA
	}

	rate := float64(s.Offset-prev.Offset) / dt
	e.pushRate(rate)

	alpha := e.alpha()
	e.lastAlpha = alpha
	if !e.haveEMA {
		e.ema, e.haveEMA = rate, true
	} else {
		e.ema = alpha*rate + (1-alpha)*e.ema
	}

	metrics.EstimatorAlpha.Set(alpha)
	metrics.EstimatorJitter.Set(e.jitterUsPerS() * 1000)
	metrics.ServoDriftRate.Set(e.ema)
	return e.ema, true
}

func (e *Estimator) pushRate(rate float64) {
	if len(e.rateSamples) < rateWindowSize {
		e.rateSamples = append(e.rateSamples, rate)
		return
	}
	e.rateSamples[e.rateHead] = rate
	e.rateHead = (e.rateHead + 1) % rateWindowSize
}

func (e *Estimator) jitterUsPerS() float64 {
	if len(e.rateSamples) < 2 {
		return 0
	}
	return floats.StdDev(e.rateSamples) / 1000.0
}

// alpha maps the current rate jitter to a smoothing coefficient: calm
// streams smooth less (track changes fast), noisy streams smooth more
// (reject jitter).
func (e *Estimator) alpha() float64 {
	sigma := e.jitterUsPerS()
	switch {
	case sigma < sigmaLo:
		return alphaCalm
	case sigma > sigmaHi:
		return alphaWild
	default:
		frac := (sigma - sigmaLo) / (sigmaHi - sigmaLo)
		return alphaCalm - frac*(alphaCalm-alphaWild)
	}
}

// Reset clears the EMA and rate window but leaves no trace of the prior
// grandmaster's drift history, used on grandmaster switch. The servo's own
// PPM correction is a separate value and is not touched here.
func (e *Estimator) Reset() {
	e.haveLast = false
	e.rateSamples = e.rateSamples[:0]
	e.rateHead = 0
	e.haveEMA = false
	e.ema = 0
}

func (e *Estimator) LastAlpha() float64 { return e.lastAlpha }
