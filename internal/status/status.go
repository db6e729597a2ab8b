// Package status maintains the live synchronization snapshot the external
// UI polls over the IPC channel, and the IPC server that serves it.
package status

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/zbynekdrlik/dantetimesync/internal/metrics"
)

// Version is the service's semantic version, reported in every snapshot and
// by the --version CLI flag.
const Version = "1.0.0"

// Snapshot is the read-only view served to the UI (§4.9), plus four fields
// this expansion adds: Version (so the UI need not shell out to the binary
// to learn what it's talking to), PTPOffline (explicit boolean mirror of
// Mode == NTP_ONLY, cheaper for the UI to branch on than a string compare),
// and NTPOffsetP99Us/NTPRTTP99Us (the NTP tracker's p99 |offset| and
// round-trip time, in microseconds).
type Snapshot struct {
	Mode               string    `json:"mode"`
	IsLocked           bool      `json:"is_locked"`
	SmoothedRateNsPerS float64   `json:"smoothed_rate_ns_per_s"`
	AppliedPPM         float64   `json:"applied_ppm"`
	NTPLastOffsetNs    int64     `json:"ntp_last_offset_ns"`
	NTPFailed          bool      `json:"ntp_failed"`
	GrandmasterID      string    `json:"grandmaster_id"`
	LastPacketHostTime time.Time `json:"last_packet_host_time"`
	Version            string    `json:"version"`
	PTPOffline         bool      `json:"ptp_offline"`
	NTPOffsetP99Us     int64     `json:"ntp_offset_p99_us"`
	NTPRTTP99Us        int64     `json:"ntp_rtt_p99_us"`
}

// Publisher holds the current snapshot behind an atomic pointer: readers
// never block on a writer, and a writer that panics mid-update can never
// leave a torn snapshot visible, since the swap only happens after the new
// value is fully built.
type Publisher struct {
	Log *zap.Logger

	current atomic.Pointer[Snapshot]
}

func NewPublisher(log *zap.Logger) *Publisher {
	p := &Publisher{Log: log}
	p.current.Store(&Snapshot{Version: Version})
	return p
}

// Update replaces the published snapshot. build is expected to construct a
// full Snapshot; if it panics, Update recovers, logs, and leaves the
// previously published snapshot in place — the equivalent of poison
// recovery on a shared lock, achieved here by never publishing a partial
// write in the first place.
func (p *Publisher) Update(build func() Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			metrics.StatusPoisonRecoveries.Inc()
			p.Log.Error("recovered from a panic building the status snapshot, serving last known good snapshot", zap.Any("panic", r))
		}
	}()
	snap := build()
	p.current.Store(&snap)
}

func (p *Publisher) Current() Snapshot {
	return *p.current.Load()
}
