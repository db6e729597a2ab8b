package ptp

import (
	"github.com/google/gopacket"
)

// LayerType is registered so the pcap receiver backend can decode PTPv1
// packets the same way gopacket decodes any other protocol layer.
var LayerType = gopacket.RegisterLayerType(2319, gopacket.LayerTypeMetadata{
	Name:    "PTPv1",
	Decoder: gopacket.DecodeFunc(decodePTPv1),
})

// Layer adapts a decoded PTPv1 message into a gopacket.Layer so it can sit
// in a gopacket.Packet's layer stack produced by the pcap backend.
type Layer struct {
	Header       Header
	Sync         *SyncBody
	FollowUp     *FollowUpBody
	payload      []byte
}

func (l *Layer) LayerType() gopacket.LayerType { return LayerType }
func (l *Layer) LayerContents() []byte         { return l.payload }
func (l *Layer) LayerPayload() []byte          { return nil }

// Decode parses a full PTPv1 UDP payload (header plus body) into l.
func Decode(l *Layer, data []byte) error {
	if err := DecodeHeader(&l.Header, data); err != nil {
		return err
	}
	l.payload = data
	body := data[HeaderLen:]
	switch l.Header.MessageType {
	case MessageTypeSync:
		var sb SyncBody
		if err := DecodeSyncBody(&sb, body); err != nil {
			return err
		}
		l.Sync = &sb
		l.FollowUp = nil
	case MessageTypeFollowUp:
		var fb FollowUpBody
		if err := DecodeFollowUpBody(&fb, body); err != nil {
			return err
		}
		l.FollowUp = &fb
		l.Sync = nil
	default:
		l.Sync, l.FollowUp = nil, nil
	}
	return nil
}

// decodePTPv1 is the gopacket.DecodeFunc registered for LayerType; the pcap
// backend runs it by passing each captured packet's UDP payload to
// gopacket.NewPacket with LayerType as the first decoder.
func decodePTPv1(data []byte, p gopacket.PacketBuilder) error {
	l := &Layer{}
	if err := Decode(l, data); err != nil {
		return err
	}
	p.AddLayer(l)
	return p.NextDecoder(gopacket.LayerTypePayload)
}

