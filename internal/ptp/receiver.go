package ptp

import (
	"errors"
	"time"

	"github.com/zbynekdrlik/dantetimesync/internal/metrics"
)

// Packet is one decoded PTPv1 message together with the time this host
// observed it arrive. RxTime is the receive timestamp the matcher and
// filter key their work on, not anything carried in the wire payload.
type Packet struct {
	Header   Header
	Sync     *SyncBody
	FollowUp *FollowUpBody
	RxTime   time.Time
}

// ErrClosed is returned by Receive after Close.
var ErrClosed = errors.New("ptp: receiver closed")

// Receiver yields decoded PTPv1 Sync/FollowUp packets arriving on the Dante
// PTP multicast group. Two backends exist: a raw multicast socket using
// kernel software receive timestamps (Linux), and a pcap/BPF backend for
// platforms or deployments that prefer capture-based delivery.
type Receiver interface {
	Receive() (Packet, error)
	Close() error
}

func decodePacket(raw []byte, rxTime time.Time) (Packet, error) {
	pkt, err := decodePacketUncounted(raw, rxTime)
	if err != nil {
		metrics.ReceiverPktsMalformed.Inc()
		return Packet{}, err
	}
	metrics.ReceiverPktsReceived.Inc()
	return pkt, nil
}

func decodePacketUncounted(raw []byte, rxTime time.Time) (Packet, error) {
	var pkt Packet
	if err := DecodeHeader(&pkt.Header, raw); err != nil {
		return Packet{}, err
	}
	pkt.RxTime = rxTime
	body := raw[HeaderLen:]
	switch pkt.Header.MessageType {
	case MessageTypeSync:
		var sb SyncBody
		if err := DecodeSyncBody(&sb, body); err != nil {
			return Packet{}, err
		}
		pkt.Sync = &sb
	case MessageTypeFollowUp:
		var fb FollowUpBody
		if err := DecodeFollowUpBody(&fb, body); err != nil {
			return Packet{}, err
		}
		pkt.FollowUp = &fb
	}
	return pkt, nil
}
