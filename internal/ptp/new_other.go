//go:build !linux

package ptp

import "go.uber.org/zap"

// NewReceiver constructs the platform's preferred receiver backend.
// Non-Linux targets use the pcap/BPF backend, since there is no portable
// SO_TIMESTAMPNS equivalent across those platforms.
func NewReceiver(log *zap.Logger, iface string) (Receiver, error) {
	return NewPcapReceiver(log, iface)
}
