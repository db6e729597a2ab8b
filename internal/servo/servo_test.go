package servo_test

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/zbynekdrlik/dantetimesync/internal/measurement"
	"github.com/zbynekdrlik/dantetimesync/internal/ptp"
	"github.com/zbynekdrlik/dantetimesync/internal/servo"
)

type fakeClock struct {
	wall time.Time
	ppm  float64
}

func (c *fakeClock) NowMonotonic() time.Duration    { return 0 }
func (c *fakeClock) NowWall() time.Time             { return c.wall }
func (c *fakeClock) StepWall(delta time.Duration)   { c.wall = c.wall.Add(delta) }
func (c *fakeClock) AdjustFrequency(ppm float64) error {
	c.ppm = ppm
	return nil
}

func newTestServo() (*servo.Servo, *fakeClock) {
	clk := &fakeClock{wall: time.Unix(1700000000, 0).UTC()}
	cfg := servo.DefaultConfig()
	cfg.FilterWindowSize = 1 // every pushed sample is its own window, for deterministic single-step tests
	cfg.Warmup = 0
	cfg.CalibrationSamples = 1
	s := servo.New(zap.NewNop(), clk, cfg)
	s.Start()
	return s, clk
}

func feedRate(t *testing.T, s *servo.Servo, gm ptp.UUID, clk *fakeClock, rateNsPerS float64, n int) {
	t.Helper()
	offset := time.Duration(0)
	for i := 0; i < n; i++ {
		clk.wall = clk.wall.Add(time.Second)
		offset += time.Duration(rateNsPerS)
		s.PushRaw(gm, measurement.Sample{Timestamp: clk.wall, Offset: offset})
	}
}

func TestGrandmasterSwitchPreservesPPMClearsEMA(t *testing.T) {
	s, clk := newTestServo()
	gmA := ptp.UUID{1}
	gmB := ptp.UUID{2}

	feedRate(t, s, gmA, clk, 100, 20)
	ppmBefore := s.CurrentPPM()
	if ppmBefore == 0 {
		t.Fatal("expected a non-zero learned PPM before switch")
	}

	clk.wall = clk.wall.Add(time.Second)
	s.PushRaw(gmB, measurement.Sample{Timestamp: clk.wall, Offset: 0})

	if s.CurrentPPM() != ppmBefore {
		t.Errorf("current_ppm changed across grandmaster switch: before=%v after=%v", ppmBefore, s.CurrentPPM())
	}
	if s.Mode() != servo.ModeACQ {
		t.Errorf("mode = %v, want ACQ after grandmaster switch", s.Mode())
	}
	if s.Resets() != 1 {
		t.Errorf("Resets() = %d, want 1", s.Resets())
	}

	// With the EMA cleared, the first rate measured against gmB is taken
	// as-is instead of being blended with gmA's 100ns/s history.
	clk.wall = clk.wall.Add(time.Second)
	s.PushRaw(gmB, measurement.Sample{Timestamp: clk.wall, Offset: 1000})
	if s.DriftRate() != 1000 {
		t.Errorf("DriftRate() = %v after grandmaster switch, want 1000 (EMA cleared)", s.DriftRate())
	}
}

func TestNanoExitRequiresFiveConsecutiveSamples(t *testing.T) {
	s, clk := newTestServo()
	gm := ptp.UUID{1}

	// Drive the servo down to NANO with a long run of near-zero rate.
	feedRate(t, s, gm, clk, 0, 50)
	if s.Mode() != servo.ModeNano {
		t.Fatalf("mode = %v, want NANO before hysteresis test", s.Mode())
	}

	for i := 0; i < 4; i++ {
		clk.wall = clk.wall.Add(time.Second)
		s.PushRaw(gm, measurement.Sample{Timestamp: clk.wall, Offset: time.Duration(int64(i+1) * 10000)})
		if s.Mode() != servo.ModeNano {
			t.Fatalf("mode left NANO after only %d above-threshold samples", i+1)
		}
	}

	clk.wall = clk.wall.Add(time.Second)
	s.PushRaw(gm, measurement.Sample{Timestamp: clk.wall, Offset: 50000})
	if s.Mode() != servo.ModeLock {
		t.Errorf("mode = %v, want LOCK after the fifth above-threshold sample", s.Mode())
	}
}

func TestPanicBoundaryExactRemainsAboveFallsBack(t *testing.T) {
	s, clk := newTestServo()
	gm := ptp.UUID{1}

	feedRate(t, s, gm, clk, 1000, 20) // settle into PROD or better; cumulative offset is now 20000ns
	if s.Mode() == servo.ModeACQ {
		t.Fatal("expected the servo to leave ACQ before the panic test")
	}
	modeBefore := s.Mode()

	clk.wall = clk.wall.Add(time.Second)
	// diff = 991000ns over 1s; the jump makes jitter wild, so alpha drops to
	// 0.10 and the smoothed rate is 0.1*991000 + 0.9*1000 = 100000ns/s,
	// exactly the panic threshold.
	s.PushRaw(gm, measurement.Sample{Timestamp: clk.wall, Offset: 1_011_000})
	if s.Mode() != modeBefore {
		t.Errorf("mode changed at exactly panic_threshold: got %v, want unchanged %v", s.Mode(), modeBefore)
	}

	clk.wall = clk.wall.Add(time.Second)
	s.PushRaw(gm, measurement.Sample{Timestamp: clk.wall, Offset: 3_011_000}) // diff = 2000000ns: smoothed rate 0.1*2000000 + 0.9*100000 = 290000ns/s, clearly over threshold
	if s.Mode() != servo.ModeACQ {
		t.Errorf("mode = %v, want ACQ once rate exceeds panic_threshold", s.Mode())
	}
}

func TestStartupCalibrationDelaysWarmupAndAppliesNoCorrection(t *testing.T) {
	clk := &fakeClock{wall: time.Unix(1700000000, 0).UTC()}
	cfg := servo.DefaultConfig()
	cfg.FilterWindowSize = 1
	cfg.Warmup = 0
	cfg.CalibrationSamples = 1
	cfg.StartupCalibrationSamples = 3
	s := servo.New(zap.NewNop(), clk, cfg)
	s.Start()

	gm := ptp.UUID{1}
	// The estimator's first Update call only primes its rate window (ok is
	// false), so 4 pushes are needed to see 3 samples counted against the
	// calibration window.
	feedRate(t, s, gm, clk, 100, 4)
	if s.CurrentPPM() != 0 {
		t.Errorf("current_ppm = %v during calibration, want 0 (calibration applies no correction)", s.CurrentPPM())
	}
	if s.Mode() != servo.ModeACQ {
		t.Errorf("mode = %v during calibration, want ACQ", s.Mode())
	}

	clk.wall = clk.wall.Add(time.Second)
	s.PushRaw(gm, measurement.Sample{Timestamp: clk.wall, Offset: 500})
	if s.CurrentPPM() == 0 {
		t.Error("expected a nonzero applied ppm once the calibration window fills and warmup starts")
	}
}

func TestNanoDeadbandSuppressesSmallCorrections(t *testing.T) {
	for _, tc := range []struct {
		name        string
		deadband    float64
		wantChanged bool
	}{
		{"within deadband", 50, false},
		{"deadband disabled", 0, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			clk := &fakeClock{wall: time.Unix(1700000000, 0).UTC()}
			cfg := servo.DefaultConfig()
			cfg.FilterWindowSize = 1
			cfg.Warmup = 0
			cfg.CalibrationSamples = 1
			cfg.NanoDeadbandNsPerS = tc.deadband
			s := servo.New(zap.NewNop(), clk, cfg)
			s.Start()

			gm := ptp.UUID{1}
			feedRate(t, s, gm, clk, 0, 50) // settle into NANO with a zero-rate run
			if s.Mode() != servo.ModeNano {
				t.Fatalf("mode = %v, want NANO before deadband test", s.Mode())
			}

			ppmBefore := s.CurrentPPM()
			clk.wall = clk.wall.Add(time.Second)
			s.PushRaw(gm, measurement.Sample{Timestamp: clk.wall, Offset: 10}) // rate == 10ns/s

			changed := s.CurrentPPM() != ppmBefore
			if changed != tc.wantChanged {
				t.Errorf("current_ppm changed = %v, want %v (before=%v after=%v)", changed, tc.wantChanged, ppmBefore, s.CurrentPPM())
			}
		})
	}
}

func TestDropoutEntersNTPOnly(t *testing.T) {
	clk := &fakeClock{wall: time.Unix(1700000000, 0).UTC()}
	cfg := servo.DefaultConfig()
	cfg.FilterWindowSize = 1
	cfg.Warmup = 0
	cfg.CalibrationSamples = 1000 // keep the post-NTP_ONLY sample from immediately advancing past ACQ
	s := servo.New(zap.NewNop(), clk, cfg)
	s.Start()

	gm := ptp.UUID{1}
	feedRate(t, s, gm, clk, 0, 10)

	clk.wall = clk.wall.Add(31 * time.Second)
	s.CheckDropout(clk.wall)
	if s.Mode() != servo.ModeNTPOnly {
		t.Errorf("mode = %v, want NTP_ONLY after the grace period elapses", s.Mode())
	}

	s.PushRaw(gm, measurement.Sample{Timestamp: clk.wall, Offset: 0})
	if s.Mode() != servo.ModeACQ {
		t.Errorf("mode = %v, want ACQ on the first sample after NTP_ONLY", s.Mode())
	}
}
