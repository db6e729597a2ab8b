package estimator_test

import (
	"math"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/zbynekdrlik/dantetimesync/internal/estimator"
	"github.com/zbynekdrlik/dantetimesync/internal/measurement"
)

func feedConstantRate(e *estimator.Estimator, rateNsPerS float64, n int) {
	start := time.Unix(1700000000, 0).UTC()
	offset := time.Duration(0)
	for i := 0; i <= n; i++ {
		ts := start.Add(time.Duration(i) * time.Second)
		e.Update(measurement.Sample{Timestamp: ts, Offset: offset})
		offset += time.Duration(rateNsPerS)
	}
}

func TestFirstSampleNotOK(t *testing.T) {
	e := estimator.New(zap.NewNop())
	_, ok := e.Update(measurement.Sample{Timestamp: time.Now(), Offset: 0})
	if ok {
		t.Fatal("first sample should not produce a rate")
	}
}

func TestAlphaCalmBelowTwoMicrosPerSecond(t *testing.T) {
	e := estimator.New(zap.NewNop())
	feedConstantRate(e, 100, 10) // zero jitter: constant rate
	if got := e.LastAlpha(); math.Abs(got-0.30) > 0.01 {
		t.Errorf("alpha = %v, want ~0.30", got)
	}
}

func TestAlphaWildAboveEightMicrosPerSecond(t *testing.T) {
	e := estimator.New(zap.NewNop())
	start := time.Unix(1700000000, 0).UTC()
	offset := time.Duration(0)
	sign := int64(1)
	for i := 0; i <= 35; i++ {
		ts := start.Add(time.Duration(i) * time.Second)
		e.Update(measurement.Sample{Timestamp: ts, Offset: offset})
		sign = -sign
		offset += time.Duration(sign * 20000) // +/-20us/s swings, stddev well above 8us/s
	}
	if got := e.LastAlpha(); math.Abs(got-0.10) > 0.01 {
		t.Errorf("alpha = %v, want ~0.10", got)
	}
}

func TestResetClearsState(t *testing.T) {
	e := estimator.New(zap.NewNop())
	feedConstantRate(e, 100, 10)
	e.Reset()
	_, ok := e.Update(measurement.Sample{Timestamp: time.Now(), Offset: 0})
	if ok {
		t.Fatal("first sample after Reset should not produce a rate")
	}
}
