package filter_test

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/zbynekdrlik/dantetimesync/internal/filter"
	"github.com/zbynekdrlik/dantetimesync/internal/measurement"
)

func sample(offsetNs int64) measurement.Sample {
	return measurement.Sample{Timestamp: time.Now(), Offset: time.Duration(offsetNs)}
}

func TestEmitsMinimumOfWindow(t *testing.T) {
	f := filter.New(zap.NewNop(), 8, 0)
	offsets := []int64{100, 120, 150, 90, 200, 110, 95, 130}

	var got measurement.Sample
	var emitted bool
	for i, o := range offsets {
		got, emitted = f.Add(sample(o))
		if i < len(offsets)-1 && emitted {
			t.Fatalf("window emitted early at index %d", i)
		}
	}
	if !emitted {
		t.Fatal("expected the full window to emit")
	}
	if got.Offset != 90 {
		t.Errorf("emitted offset = %v, want 90", got.Offset)
	}
}

func TestResetsAfterEmission(t *testing.T) {
	f := filter.New(zap.NewNop(), 2, 0)
	f.Add(sample(10))
	f.Add(sample(20))
	_, emitted := f.Add(sample(5))
	if emitted {
		t.Fatal("window should not emit until it refills")
	}
}

func TestRejectsTightSpread(t *testing.T) {
	f := filter.New(zap.NewNop(), 3, 100)
	f.Add(sample(10))
	f.Add(sample(11))
	_, emitted := f.Add(sample(12))
	if emitted {
		t.Fatal("expected rejection for spread below MinDelta")
	}
}

func TestReset(t *testing.T) {
	f := filter.New(zap.NewNop(), 3, 0)
	f.Add(sample(1))
	f.Add(sample(2))
	f.Reset()
	_, emitted := f.Add(sample(3))
	if emitted {
		t.Fatal("Reset should discard the partial window")
	}
}
