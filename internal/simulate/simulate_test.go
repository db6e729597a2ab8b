package simulate_test

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/zbynekdrlik/dantetimesync/internal/matcher"
	"github.com/zbynekdrlik/dantetimesync/internal/ptp"
	"github.com/zbynekdrlik/dantetimesync/internal/servo"
	"github.com/zbynekdrlik/dantetimesync/internal/simulate"
)

// grandmaster simulates an external PTP source whose own clock runs at a
// fixed PPM offset from true time, independent of anything the servo does.
type grandmaster struct {
	id       ptp.UUID
	t1       time.Time
	ratePPM  float64
}

func (g *grandmaster) tick(realElapsed time.Duration) time.Time {
	g.t1 = g.t1.Add(time.Duration(float64(realElapsed) * (1 + g.ratePPM/1e6)))
	return g.t1
}

func runOneHz(t *testing.T, s *servo.Servo, m *matcher.Matcher, host *simulate.VirtualClock, gm *grandmaster, seconds int) {
	t.Helper()
	for i := 0; i < seconds; i++ {
		host.Advance(time.Second)
		t1 := gm.tick(time.Second)
		rx := host.NowWall()

		seq := uint16(i)
		m.OnSync(ptp.Packet{Header: ptp.Header{MessageType: ptp.MessageTypeSync, SourceUUID: gm.id, SequenceID: seq}, RxTime: rx})
		fu := ptp.Packet{
			Header: ptp.Header{MessageType: ptp.MessageTypeFollowUp, SourceUUID: gm.id, SequenceID: seq + 1},
			FollowUp: &ptp.FollowUpBody{
				AssociatedSequenceID: seq,
				PreciseOriginTimestamp: ptp.Timestamp{
					Seconds:     uint32(t1.Unix()),
					Nanoseconds: uint32(t1.Nanosecond()),
				},
			},
			RxTime: rx,
		}
		sample, ok := m.OnFollowUp(fu)
		if !ok {
			continue
		}
		s.PushRaw(gm.id, sample)
	}
}

// S1 — cold start against a stable +50ppm master: the servo should reach
// LOCK within 60s and converge current_ppm into [+45, +55].
func TestScenarioColdStartStableMaster(t *testing.T) {
	start := time.Unix(1700000000, 0).UTC()
	host := simulate.NewVirtualClock(start)
	gm := &grandmaster{id: ptp.UUID{1}, t1: start, ratePPM: 50}

	cfg := servo.DefaultConfig()
	cfg.Warmup = 2 * time.Second
	cfg.CalibrationSamples = 3
	s := servo.New(zap.NewNop(), host, cfg)
	s.Start()
	m := matcher.New(zap.NewNop(), 500*time.Millisecond)

	lockedAt := -1
	for sec := 1; sec <= 500; sec++ {
		runOneHz(t, s, m, host, gm, 1)
		if lockedAt < 0 && s.Mode() == servo.ModeLock {
			lockedAt = sec
		}
	}

	if lockedAt < 0 {
		t.Fatal("servo never reached LOCK")
	}
	if lockedAt > 60 {
		t.Errorf("reached LOCK at %ds, want within 60s", lockedAt)
	}
	if rate := s.DriftRate(); rate < -5000 || rate > 5000 {
		t.Errorf("final drift rate = %v ns/s, want within +-5us/s", rate)
	}
	if ppm := s.CurrentPPM(); ppm < 45 || ppm > 55 {
		t.Errorf("final current_ppm = %v, want within [45,55]", ppm)
	}
}

// S2 — grandmaster switch: current_ppm must be preserved across the soft
// reset and LOCK must be reacquired without the applied PPM diverging far
// from its pre-switch value.
func TestScenarioGrandmasterSwitch(t *testing.T) {
	start := time.Unix(1700000000, 0).UTC()
	host := simulate.NewVirtualClock(start)
	gmA := &grandmaster{id: ptp.UUID{1}, t1: start, ratePPM: 50}

	cfg := servo.DefaultConfig()
	cfg.Warmup = 2 * time.Second
	cfg.CalibrationSamples = 3
	s := servo.New(zap.NewNop(), host, cfg)
	s.Start()
	m := matcher.New(zap.NewNop(), 500*time.Millisecond)

	runOneHz(t, s, m, host, gmA, 120)
	if s.Mode() != servo.ModeLock {
		t.Fatalf("mode = %v before switch, want LOCK", s.Mode())
	}
	ppmBeforeSwitch := s.CurrentPPM()

	gmB := &grandmaster{id: ptp.UUID{2}, t1: gmA.t1.Add(10 * time.Second), ratePPM: 50}
	m.NotifyStep(0) // a grandmaster switch also invalidates any in-flight pending Sync

	host.Advance(time.Second)
	t1 := gmB.tick(time.Second)
	rx := host.NowWall()
	m.OnSync(ptp.Packet{Header: ptp.Header{MessageType: ptp.MessageTypeSync, SourceUUID: gmB.id, SequenceID: 0}, RxTime: rx})
	fu := ptp.Packet{
		Header: ptp.Header{MessageType: ptp.MessageTypeFollowUp, SourceUUID: gmB.id, SequenceID: 1},
		FollowUp: &ptp.FollowUpBody{
			AssociatedSequenceID: 0,
			PreciseOriginTimestamp: ptp.Timestamp{Seconds: uint32(t1.Unix()), Nanoseconds: uint32(t1.Nanosecond())},
		},
		RxTime: rx,
	}
	sample, ok := m.OnFollowUp(fu)
	if !ok {
		t.Fatal("expected a match on the first gm-B pair")
	}
	s.PushRaw(gmB.id, sample)

	if s.Mode() != servo.ModeACQ {
		t.Errorf("mode = %v immediately after switch, want ACQ", s.Mode())
	}
	if s.CurrentPPM() != ppmBeforeSwitch {
		t.Errorf("current_ppm = %v after switch, want unchanged %v", s.CurrentPPM(), ppmBeforeSwitch)
	}
	if s.Resets() != 1 {
		t.Errorf("Resets() = %d, want 1", s.Resets())
	}

	relockedAt := -1
	for sec := 1; sec <= 300; sec++ {
		runOneHz(t, s, m, host, gmB, 1)
		if relockedAt < 0 && s.Mode() == servo.ModeLock {
			relockedAt = sec
		}
	}
	if relockedAt < 0 {
		t.Fatal("servo never reacquired LOCK after the switch")
	}
	if relockedAt > 30 {
		t.Errorf("reacquired LOCK at %ds after switch, want within 30s", relockedAt)
	}
	if diff := s.CurrentPPM() - ppmBeforeSwitch; diff < -5 || diff > 5 {
		t.Errorf("applied_ppm diverged by %v from pre-switch value, want within +-5", diff)
	}
}
