// Package ptp implements the PTPv1 (IEEE 1588-2002) wire codec this service
// needs: parsing the common header and the Sync/FollowUp message bodies out
// of raw UDP payloads, following the manual big-endian byte-packing style
// this codebase uses for its other wire formats.
package ptp

import (
	"errors"
)

const (
	Version1 = 1

	HeaderLen   = 40
	SyncBodyLen = 8  // originTimestamp only; remaining Sync fields are unused by this service
	FollowUpBodyLen = 10 // associatedSequenceId + preciseOriginTimestamp

	MessageTypeSync       = 1
	MessageTypeDelayReq    = 2
	MessageTypeFollowUp    = 3
	MessageTypeDelayResp   = 4
	MessageTypeManagement  = 5

	EventPort   = 319 // Sync, DelayReq
	GeneralPort = 320 // FollowUp, DelayResp, Management

	MulticastGroup = "224.0.1.129"
)

var (
	ErrMalformed       = errors.New("ptp: malformed packet")
	ErrUnsupportedVersion = errors.New("ptp: unsupported PTP version")
)

// UUID is the 6-byte source identity PTPv1 carries in every header. Dante's
// grandmaster sends Sync/FollowUp directly (no boundary clocks on a typical
// install), so the header's source UUID doubles as the grandmaster identity
// this service tracks for failover detection.
type UUID [6]byte

// Timestamp is PTPv1's wire time representation: seconds plus nanoseconds,
// no era disambiguation needed because it is never interpreted as UTC.
type Timestamp struct {
	Seconds     uint32
	Nanoseconds uint32
}

// Header is the 40-byte PTPv1 common message header.
type Header struct {
	VersionPTP                    uint16
	VersionNetwork                uint16
	SubdomainName                 [16]byte
	MessageType                   uint8
	SourceCommunicationTechnology uint8
	SourceUUID                    UUID
	SourcePortID                  uint16
	SequenceID                    uint16
	Control                       uint8
	Flags                         uint16
}

type SyncBody struct {
	OriginTimestamp Timestamp
}

type FollowUpBody struct {
	AssociatedSequenceID   uint16
	PreciseOriginTimestamp Timestamp
}

func DecodeHeader(h *Header, b []byte) error {
	if len(b) < HeaderLen {
		return ErrMalformed
	}
	_ = b[HeaderLen-1]
	h.VersionPTP = be16(b[0:])
	h.VersionNetwork = be16(b[2:])
	copy(h.SubdomainName[:], b[4:20])
	h.MessageType = b[20]
	h.SourceCommunicationTechnology = b[21]
	copy(h.SourceUUID[:], b[22:28])
	h.SourcePortID = be16(b[28:])
	h.SequenceID = be16(b[30:])
	h.Control = b[32]
	// b[33] reserved
	h.Flags = be16(b[34:])
	// b[36:40] reserved2

	if h.VersionPTP != Version1 {
		return ErrUnsupportedVersion
	}
	return nil
}

func EncodeHeader(b *[]byte, h *Header) {
	if cap(*b) < HeaderLen {
		*b = make([]byte, HeaderLen)
	} else {
		*b = (*b)[:HeaderLen]
	}
	buf := *b
	_ = buf[HeaderLen-1]
	putBE16(buf[0:], h.VersionPTP)
	putBE16(buf[2:], h.VersionNetwork)
	copy(buf[4:20], h.SubdomainName[:])
	buf[20] = h.MessageType
	buf[21] = h.SourceCommunicationTechnology
	copy(buf[22:28], h.SourceUUID[:])
	putBE16(buf[28:], h.SourcePortID)
	putBE16(buf[30:], h.SequenceID)
	buf[32] = h.Control
	buf[33] = 0
	putBE16(buf[34:], h.Flags)
	buf[36], buf[37], buf[38], buf[39] = 0, 0, 0, 0
}

func DecodeSyncBody(body *SyncBody, b []byte) error {
	if len(b) < SyncBodyLen {
		return ErrMalformed
	}
	body.OriginTimestamp.Seconds = be32(b[0:])
	body.OriginTimestamp.Nanoseconds = be32(b[4:])
	return nil
}

func DecodeFollowUpBody(body *FollowUpBody, b []byte) error {
	if len(b) < FollowUpBodyLen {
		return ErrMalformed
	}
	body.AssociatedSequenceID = be16(b[0:])
	body.PreciseOriginTimestamp.Seconds = be32(b[2:])
	body.PreciseOriginTimestamp.Nanoseconds = be32(b[6:])
	return nil
}

func be16(b []byte) uint16 {
	return uint16(b[0])<<8 | uint16(b[1])
}

func putBE16(b []byte, v uint16) {
	b[0] = byte(v >> 8)
	b[1] = byte(v)
}

func be32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func putBE32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}
