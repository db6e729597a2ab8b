package ntpclient

import (
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"go.uber.org/zap"

	"github.com/zbynekdrlik/dantetimesync/internal/metrics"
	"github.com/zbynekdrlik/dantetimesync/internal/timebase"
)

// offsetHistoMaxUs bounds the recorded offset magnitude at 10s; anything
// larger already means something is badly wrong with the configured server,
// and the status publisher's distribution view doesn't need to resolve it.
const offsetHistoMaxUs = 10_000_000

// StepNotifier is told whenever the tracker steps the wall clock, so other
// components (the matcher) can discard state that a step invalidates.
type StepNotifier interface {
	NotifyStep(delta time.Duration)
}

// Tracker runs the periodic NTP query/step loop: query the configured
// server on Interval, and step the wall clock whenever the measured offset
// exceeds StepThreshold. It never steps during the Warmup window after
// Run starts, leaving phase correction to settle in naturally once PTP rate
// discipline has had a chance to engage. It never adjusts frequency.
type Tracker struct {
	Log           *zap.Logger
	Clock         timebase.LocalClock
	Client        *Client
	Interval      time.Duration
	StepThreshold time.Duration
	Warmup        time.Duration
	Notifier      StepNotifier

	startedAt    time.Time
	failStreak   int
	lastSampleAt time.Time
	lastOK       bool
	offsetHisto  *hdrhistogram.Histogram
	rttHisto     *hdrhistogram.Histogram

	stop chan struct{}
	done chan struct{}
}

func NewTracker(log *zap.Logger, clock timebase.LocalClock, client *Client, interval, stepThreshold, warmup time.Duration, notifier StepNotifier) *Tracker {
	return &Tracker{
		Log:           log,
		Clock:         clock,
		Client:        client,
		Interval:      interval,
		StepThreshold: stepThreshold,
		Warmup:        warmup,
		Notifier:      notifier,
		offsetHisto:   hdrhistogram.New(1, offsetHistoMaxUs, 3),
		rttHisto:      hdrhistogram.New(1, offsetHistoMaxUs, 3),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
}

func (t *Tracker) Run() {
	defer close(t.done)
	t.startedAt = t.Clock.NowWall()
	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	t.poll()
	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			t.poll()
		}
	}
}

func (t *Tracker) Stop() {
	close(t.stop)
	<-t.done
}

func (t *Tracker) poll() {
	res, err := t.Client.Query()
	if err != nil {
		t.failStreak++
		t.lastOK = false
		metrics.NTPFailures.Set(float64(t.failStreak))
		t.Log.Warn("NTP query failed", zap.Error(err), zap.Int("streak", t.failStreak))
		return
	}
	t.failStreak = 0
	t.lastOK = true
	t.lastSampleAt = t.Clock.NowWall()
	metrics.NTPFailures.Set(0)
	metrics.NTPOffset.Set(float64(res.UTCDelta.Nanoseconds()))
	_ = t.offsetHisto.RecordValue(absDuration(res.UTCDelta).Microseconds())
	_ = t.rttHisto.RecordValue(res.RTT.Microseconds())

	inWarmup := t.Warmup > 0 && t.Clock.NowWall().Sub(t.startedAt) < t.Warmup
	if inWarmup {
		t.Log.Debug("NTP offset measured during warmup, not stepping", zap.Duration("offset", res.UTCDelta))
		return
	}

	if absDuration(res.UTCDelta) <= t.StepThreshold {
		return
	}

	t.Log.Info("stepping wall clock from NTP", zap.Duration("delta", res.UTCDelta), zap.Duration("rtt", res.RTT))
	t.Clock.StepWall(res.UTCDelta)
	metrics.NTPSteps.Inc()
	if t.Notifier != nil {
		t.Notifier.NotifyStep(res.UTCDelta)
	}
}

// FailStreak reports the number of consecutive failed queries, used by the
// status publisher.
func (t *Tracker) FailStreak() int { return t.failStreak }

// LastSampleAt reports when the last successful query completed. The servo
// does not read it; its NTP_ONLY grace period is gated on its own
// denoised-sample age.
func (t *Tracker) LastSampleAt() time.Time { return t.lastSampleAt }

// OffsetPercentileUs reports the p-th percentile (0-100) of the recorded
// |UTC offset| distribution, in microseconds, for the status publisher's
// jitter-regime diagnostics.
func (t *Tracker) OffsetPercentileUs(p float64) int64 {
	return t.offsetHisto.ValueAtQuantile(p)
}

// RTTPercentileUs reports the p-th percentile (0-100) of the recorded NTP
// round-trip-time distribution, in microseconds.
func (t *Tracker) RTTPercentileUs(p float64) int64 {
	return t.rttHisto.ValueAtQuantile(p)
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
