//go:build linux

package ptp

import "go.uber.org/zap"

// NewReceiver constructs the platform's preferred receiver backend. Linux
// uses the raw multicast socket with kernel timestamps rather than packet
// capture. The pcap backend is still compiled into Linux builds.
func NewReceiver(log *zap.Logger, iface string) (Receiver, error) {
	return NewSocketReceiver(log, iface)
}
