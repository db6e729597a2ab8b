// Package servo implements the rate-based mode controller: it consumes raw
// phase-offset samples, denoises and smooths them, and drives the clock
// adapter's frequency correction through a small state machine.
//
// The servo owns the lucky-packet window and the drift-rate estimator; per
// the design this core composes against, nothing here reaches for
// process-wide state — every dependency is passed in at construction.
package servo

import (
	"time"

	"go.uber.org/zap"

	"github.com/zbynekdrlik/dantetimesync/internal/estimator"
	"github.com/zbynekdrlik/dantetimesync/internal/filter"
	"github.com/zbynekdrlik/dantetimesync/internal/measurement"
	"github.com/zbynekdrlik/dantetimesync/internal/metrics"
	"github.com/zbynekdrlik/dantetimesync/internal/ptp"
	"github.com/zbynekdrlik/dantetimesync/internal/timebase"
)

type Mode int

const (
	ModeACQ Mode = iota
	ModeProd
	ModeLock
	ModeNano
	ModeNTPOnly
)

func (m Mode) String() string {
	switch m {
	case ModeACQ:
		return "ACQ"
	case ModeProd:
		return "PROD"
	case ModeLock:
		return "LOCK"
	case ModeNano:
		return "NANO"
	case ModeNTPOnly:
		return "NTP_ONLY"
	default:
		return "UNKNOWN"
	}
}

const (
	nanoExitStreakTarget = 5

	maxOverallPPM   = 100.0
	integratorBound = 1e7

	acqClampPPM  = 50.0
	prodClampPPM = 5.0
	lockClampPPM = 0.5
)

// Config holds the tunables from the persisted configuration file (§6).
type Config struct {
	Kp, Ki float64

	FilterWindowSize int
	MinDeltaNs       time.Duration

	CalibrationSamples int
	Warmup             time.Duration

	// StartupCalibrationSamples, if nonzero, delays the ACQ warmup timer:
	// the servo first accumulates this many denoised samples purely to seed
	// the drift-rate EMA and jitter estimator, applying no frequency
	// correction, and only starts counting Warmup once that window fills.
	// Zero (the default) disables it and Warmup starts immediately.
	StartupCalibrationSamples int

	ProdThresholdNsPerS      float64
	LockThresholdNsPerS      float64
	NanoEntryThresholdNsPerS float64
	PanicThresholdNsPerS     float64

	// NanoDeadbandNsPerS is the drift rate below which NANO forces the
	// correction to exactly zero instead of a vanishingly small nonzero
	// delta, once the link is genuinely settled.
	NanoDeadbandNsPerS float64

	NTPOnlyGrace      time.Duration
	RawPacketWatchdog time.Duration
}

func DefaultConfig() Config {
	return Config{
		Kp:                        0.5,
		Ki:                        0.01,
		FilterWindowSize:          8,
		MinDeltaNs:                0,
		CalibrationSamples:        5,
		Warmup:                    10 * time.Second,
		StartupCalibrationSamples: 0,
		ProdThresholdNsPerS:       20_000,
		LockThresholdNsPerS:       5_000,
		NanoEntryThresholdNsPerS:  500,
		PanicThresholdNsPerS:      100_000,
		NanoDeadbandNsPerS:        50,
		NTPOnlyGrace:              30 * time.Second,
		RawPacketWatchdog:         2 * time.Second,
	}
}

// Servo is driven from a single goroutine (the PTP thread); it is not safe
// for concurrent use.
type Servo struct {
	Log       *zap.Logger
	Clock     timebase.LocalClock
	Filter    *filter.Filter
	Estimator *estimator.Estimator
	Config    Config

	mode Mode

	currentPPM float64
	integrator float64

	sampleCountInMode        int
	consecutiveLockSamples   int
	consecutiveUnlockSamples int

	lastGM ptp.UUID
	haveGM bool

	modeEnteredAt time.Time
	startedAt     time.Time

	lastDenoisedAt time.Time
	lastRawAt      time.Time
	haveDenoised   bool
	lastRate       float64

	calibrating            bool
	calibrationSamplesSeen int

	resets int
}

func New(log *zap.Logger, clk timebase.LocalClock, cfg Config) *Servo {
	return &Servo{
		Log:       log,
		Clock:     clk,
		Filter:    filter.New(log, cfg.FilterWindowSize, cfg.MinDeltaNs),
		Estimator: estimator.New(log),
		Config:    cfg,
		mode:      ModeACQ,
	}
}

// Start marks service start for warmup gating. Call once before feeding
// samples. If StartupCalibrationSamples is configured, the warmup timer
// does not start yet; it starts once that many denoised samples have fed
// the estimator with no frequency correction applied.
func (s *Servo) Start() {
	now := s.Clock.NowWall()
	s.modeEnteredAt = now
	if s.Config.StartupCalibrationSamples > 0 {
		s.calibrating = true
		return
	}
	s.startedAt = now
}

// PushRaw feeds one raw matched offset sample (grandmaster, sample) into
// the servo. It returns true if the sample completed a filter window and
// produced a servo step.
func (s *Servo) PushRaw(gm ptp.UUID, raw measurement.Sample) bool {
	now := s.Clock.NowWall()
	s.lastRawAt = now

	if s.mode == ModeNTPOnly {
		s.enterMode(ModeACQ, now)
	}

	if s.haveGM && gm != s.lastGM {
		s.softReset(now)
	}
	s.lastGM, s.haveGM = gm, true

	denoised, emitted := s.Filter.Add(raw)
	if !emitted {
		return false
	}
	s.step(denoised, now)
	return true
}

// CheckDropout transitions to NTP_ONLY if no usable PTP input has arrived
// recently. Call this periodically (e.g. once per second) from the PTP
// thread's loop, independent of packet arrival.
func (s *Servo) CheckDropout(now time.Time) {
	if s.mode == ModeNTPOnly {
		return
	}
	if !s.haveDenoised {
		return
	}
	graceExceeded := now.Sub(s.lastDenoisedAt) > s.Config.NTPOnlyGrace
	watchdogExceeded := s.Config.RawPacketWatchdog > 0 &&
		!s.lastRawAt.IsZero() && now.Sub(s.lastRawAt) > s.Config.NTPOnlyGrace &&
		now.Sub(s.lastRawAt) > s.Config.RawPacketWatchdog
	if graceExceeded || watchdogExceeded {
		s.Log.Info("no PTP input for the grace period, entering NTP_ONLY")
		s.enterMode(ModeNTPOnly, now)
	}
}

func (s *Servo) step(denoised measurement.Sample, now time.Time) {
	s.lastDenoisedAt, s.haveDenoised = denoised.Timestamp, true

	rate, ok := s.Estimator.Update(denoised)
	if !ok {
		return
	}
	s.lastRate = rate

	if s.calibrating {
		s.calibrationSamplesSeen++
		if s.calibrationSamplesSeen >= s.Config.StartupCalibrationSamples {
			s.calibrating = false
			s.startedAt = now
			s.Log.Info("startup calibration window complete, starting warmup timer",
				zap.Int("samples", s.calibrationSamplesSeen))
		}
		return
	}

	absRate := absFloat(rate)

	if s.mode != ModeACQ && absRate > s.Config.PanicThresholdNsPerS {
		s.Log.Warn("drift rate exceeded panic threshold, falling back to ACQ", zap.Float64("rate_ns_per_s", rate))
		s.enterMode(ModeACQ, now)
		s.sampleCountInMode++
		return
	}

	s.applyCorrection(rate)
	s.sampleCountInMode++
	s.evaluateTransition(absRate, now)

	metrics.ServoAppliedPPM.Set(s.currentPPM)
	metrics.ServoMode.Set(float64(s.mode))
	locked := 0.0
	if s.mode == ModeLock || s.mode == ModeNano {
		locked = 1.0
	}
	metrics.ServoLocked.Set(locked)
}

func (s *Servo) applyCorrection(rateNsPerS float64) {
	gain, clamp := s.modeGain()

	s.integrator += rateNsPerS
	s.integrator = clampFloat(s.integrator, -integratorBound, integratorBound)

	raw := -gain * (s.Config.Kp*rateNsPerS + s.Config.Ki*s.integrator) / 1000.0
	delta := clampFloat(raw, -clamp, clamp)

	if s.mode == ModeNano && absFloat(rateNsPerS) < s.Config.NanoDeadbandNsPerS {
		delta = 0
	}
	if delta == 0 {
		return
	}

	s.currentPPM = clampFloat(s.currentPPM+delta, -maxOverallPPM, maxOverallPPM)
	if err := s.Clock.AdjustFrequency(s.currentPPM); err != nil {
		s.Log.Warn("clock refused frequency adjustment", zap.Error(err), zap.Float64("ppm", s.currentPPM))
		metrics.ClockAdjustFailures.Inc()
	}
}

func (s *Servo) modeGain() (gain, clampPPM float64) {
	switch s.mode {
	case ModeACQ:
		return 1.0, acqClampPPM
	case ModeProd:
		return 0.3, prodClampPPM
	default: // LOCK, NANO
		return 0.05, lockClampPPM
	}
}

func (s *Servo) evaluateTransition(absRate float64, now time.Time) {
	switch s.mode {
	case ModeACQ:
		if absRate < s.Config.ProdThresholdNsPerS {
			s.consecutiveLockSamples++
		} else {
			s.consecutiveLockSamples = 0
		}
		warmedUp := now.Sub(s.startedAt) >= s.Config.Warmup
		if warmedUp && s.consecutiveLockSamples >= s.Config.CalibrationSamples {
			s.enterMode(ModeProd, now)
		}

	case ModeProd:
		if absRate < s.Config.LockThresholdNsPerS {
			s.consecutiveLockSamples++
		} else {
			s.consecutiveLockSamples = 0
		}
		if s.consecutiveLockSamples >= s.Config.CalibrationSamples {
			s.enterMode(ModeLock, now)
		}

	case ModeLock:
		if absRate < s.Config.NanoEntryThresholdNsPerS {
			s.enterMode(ModeNano, now)
		}

	case ModeNano:
		if absRate >= s.Config.NanoEntryThresholdNsPerS {
			s.consecutiveUnlockSamples++
		} else {
			s.consecutiveUnlockSamples = 0
		}
		if s.consecutiveUnlockSamples >= nanoExitStreakTarget {
			s.enterMode(ModeLock, now)
		}
	}
}

func (s *Servo) enterMode(m Mode, now time.Time) {
	if s.mode == m {
		return
	}
	s.Log.Info("servo mode transition", zap.String("from", s.mode.String()), zap.String("to", m.String()))
	s.mode = m
	s.modeEnteredAt = now
	s.sampleCountInMode = 0
	s.consecutiveLockSamples = 0
	s.consecutiveUnlockSamples = 0
	metrics.ServoMode.Set(float64(m))
	locked := 0.0
	if m == ModeLock || m == ModeNano {
		locked = 1.0
	}
	metrics.ServoLocked.Set(locked)
}

// softReset preserves current_ppm_correction but clears the EMA, the
// lucky-packet window, and the mode counters, then re-enters ACQ. It does
// not touch the integrator's sign bias intentionally carried forward with
// current_ppm; the integrator itself is cleared since it tracks the old
// grandmaster's recent rate history.
func (s *Servo) softReset(now time.Time) {
	s.Log.Info("grandmaster switch detected, soft-resetting servo")
	s.resets++
	s.Estimator.Reset()
	s.Filter.Reset()
	s.integrator = 0
	s.haveDenoised = false
	metrics.ServoResets.Inc()
	s.enterMode(ModeACQ, now)
}

func (s *Servo) Mode() Mode                        { return s.mode }
func (s *Servo) CurrentPPM() float64               { return s.currentPPM }
func (s *Servo) Resets() int                       { return s.resets }
func (s *Servo) DriftRate() float64                { return s.lastRate }
func (s *Servo) LastGrandmaster() (ptp.UUID, bool) { return s.lastGM, s.haveGM }

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
