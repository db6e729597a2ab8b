package ptp_test

import (
	"testing"

	"github.com/zbynekdrlik/dantetimesync/internal/ptp"
)

func TestHeaderRoundTrip(t *testing.T) {
	want := ptp.Header{
		VersionPTP:                    ptp.Version1,
		VersionNetwork:                1,
		MessageType:                   ptp.MessageTypeSync,
		SourceCommunicationTechnology: 1,
		SourceUUID:                    ptp.UUID{0x00, 0x1d, 0xc1, 0x2, 0x3, 0x4},
		SourcePortID:                  1,
		SequenceID:                    42,
		Control:                       0,
		Flags:                         0,
	}
	copy(want.SubdomainName[:], "_DFLT")

	var buf []byte
	ptp.EncodeHeader(&buf, &want)
	if len(buf) != ptp.HeaderLen {
		t.Fatalf("encoded length = %d, want %d", len(buf), ptp.HeaderLen)
	}

	var got ptp.Header
	if err := ptp.DecodeHeader(&got, buf); err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if got != want {
		t.Errorf("round trip mismatch:\n got  %+v\n want %+v", got, want)
	}
}

func TestDecodeHeaderTooShort(t *testing.T) {
	var h ptp.Header
	if err := ptp.DecodeHeader(&h, make([]byte, 10)); err != ptp.ErrMalformed {
		t.Errorf("err = %v, want ErrMalformed", err)
	}
}

func TestDecodeHeaderBadVersion(t *testing.T) {
	var h ptp.Header
	h.VersionPTP = 2
	var buf []byte
	ptp.EncodeHeader(&buf, &h)

	var got ptp.Header
	if err := ptp.DecodeHeader(&got, buf); err != ptp.ErrUnsupportedVersion {
		t.Errorf("err = %v, want ErrUnsupportedVersion", err)
	}
}

func TestDecodeFollowUpBody(t *testing.T) {
	raw := make([]byte, ptp.FollowUpBodyLen)
	raw[0], raw[1] = 0, 42 // associated sequence id
	raw[2], raw[3], raw[4], raw[5] = 0, 0, 0x1, 0x2 // seconds
	raw[6], raw[7], raw[8], raw[9] = 0, 0x0f, 0x42, 0x40 // nanoseconds = 1_000_000

	var fb ptp.FollowUpBody
	if err := ptp.DecodeFollowUpBody(&fb, raw); err != nil {
		t.Fatalf("DecodeFollowUpBody: %v", err)
	}
	if fb.AssociatedSequenceID != 42 {
		t.Errorf("AssociatedSequenceID = %d, want 42", fb.AssociatedSequenceID)
	}
	if fb.PreciseOriginTimestamp.Nanoseconds != 1_000_000 {
		t.Errorf("Nanoseconds = %d, want 1000000", fb.PreciseOriginTimestamp.Nanoseconds)
	}
}

func TestDecodeFollowUpBodyTooShort(t *testing.T) {
	var fb ptp.FollowUpBody
	if err := ptp.DecodeFollowUpBody(&fb, make([]byte, 4)); err != ptp.ErrMalformed {
		t.Errorf("err = %v, want ErrMalformed", err)
	}
}
