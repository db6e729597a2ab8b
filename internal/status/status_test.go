package status_test

import (
	"testing"

	"go.uber.org/zap"

	"github.com/zbynekdrlik/dantetimesync/internal/status"
)

func TestNewPublisherHasVersion(t *testing.T) {
	p := status.NewPublisher(zap.NewNop())
	snap := p.Current()
	if snap.Version != status.Version {
		t.Errorf("Version = %q, want %q", snap.Version, status.Version)
	}
}

func TestUpdatePublishesSnapshot(t *testing.T) {
	p := status.NewPublisher(zap.NewNop())
	p.Update(func() status.Snapshot {
		return status.Snapshot{Mode: "LOCK", IsLocked: true, Version: status.Version}
	})
	snap := p.Current()
	if snap.Mode != "LOCK" || !snap.IsLocked {
		t.Errorf("Current() = %+v, want Mode=LOCK IsLocked=true", snap)
	}
}

func TestUpdateRecoversFromPanic(t *testing.T) {
	p := status.NewPublisher(zap.NewNop())
	p.Update(func() status.Snapshot {
		return status.Snapshot{Mode: "PROD", Version: status.Version}
	})

	p.Update(func() status.Snapshot {
		panic("simulated builder failure")
	})

	snap := p.Current()
	if snap.Mode != "PROD" {
		t.Errorf("Current() after a panicking Update = %+v, want the last good snapshot (Mode=PROD)", snap)
	}
}
