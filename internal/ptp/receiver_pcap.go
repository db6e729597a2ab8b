package ptp

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"go.uber.org/zap"

	"github.com/zbynekdrlik/dantetimesync/internal/metrics"
)

const bpfFilter = "udp and (port 319 or port 320)"

// PcapReceiver captures PTPv1 packets with a BPF filter instead of binding a
// multicast socket directly. It never enables promiscuous mode: this host
// only needs packets addressed to the Dante PTP multicast group, and
// promiscuous capture would pull in unrelated traffic for no benefit.
type PcapReceiver struct {
	log    *zap.Logger
	handle *pcap.Handle
	source *gopacket.PacketSource

	closed chan struct{}
	once   sync.Once
}

func NewPcapReceiver(log *zap.Logger, iface string) (*PcapReceiver, error) {
	handle, err := pcap.OpenLive(iface, 1600, false /* promiscuous */, pcap.BlockForever)
	if err != nil {
		return nil, fmt.Errorf("ptp: pcap open %s: %w", iface, err)
	}
	if err := handle.SetBPFFilter(bpfFilter); err != nil {
		handle.Close()
		return nil, fmt.Errorf("ptp: set BPF filter: %w", err)
	}
	src := gopacket.NewPacketSource(handle, handle.LinkType())
	return &PcapReceiver{log: log, handle: handle, source: src, closed: make(chan struct{})}, nil
}

func (r *PcapReceiver) Receive() (Packet, error) {
	for {
		select {
		case <-r.closed:
			return Packet{}, ErrClosed
		case raw, ok := <-r.source.Packets():
			if !ok {
				return Packet{}, ErrClosed
			}
			udp, ok := raw.Layer(layers.LayerTypeUDP).(*layers.UDP)
			if !ok {
				continue
			}
			rxTime := raw.Metadata().Timestamp
			if rxTime.IsZero() {
				rxTime = time.Now()
			}

			// Hand the UDP payload to gopacket's own decoding machinery via
			// the registered PTPv1 layer, rather than parsing the header
			// directly here, so captured traffic decodes the same way any
			// other gopacket-recognized protocol would.
			ptpPacket := gopacket.NewPacket(udp.Payload, LayerType, gopacket.NoCopy)
			l, ok := ptpPacket.Layer(LayerType).(*Layer)
			if !ok {
				metrics.ReceiverPktsMalformed.Inc()
				r.log.Debug("dropping malformed PTP packet")
				continue
			}
			metrics.ReceiverPktsReceived.Inc()
			return Packet{Header: l.Header, Sync: l.Sync, FollowUp: l.FollowUp, RxTime: rxTime.UTC()}, nil
		}
	}
}

func (r *PcapReceiver) Close() error {
	r.once.Do(func() {
		close(r.closed)
		r.handle.Close()
	})
	return nil
}
