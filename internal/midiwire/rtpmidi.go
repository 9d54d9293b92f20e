// RTP-MIDI (RFC 6295 / Apple MIDI Network Driver) framing for network
// ingress, grounded on other_examples/go-midi-rtp's rtp/rtp.go header
// layout. Only what this core needs is implemented: a single MIDI
// command with a zero delta-time per packet — no recovery journal, no
// command-list chaining.
package midiwire

import (
	"encoding/binary"
	"errors"
)

const (
	rtpVersion2Bit  = 0x80
	rtpMarkerBit    = 0x80
	rtpPayloadType  = 0x61
	rtpHeaderLength = 12
)

// ErrShortPacket is returned when a packet is too small to hold an RTP-MIDI
// header and at least one command byte.
var ErrShortPacket = errors.New("midiwire: rtp-midi packet too short")

// RTPSession tracks the sequence number and SSRC of one outbound RTP-MIDI
// stream.
type RTPSession struct {
	SSRC           uint32
	sequenceNumber uint16
}

// NewRTPSession starts a session identified by ssrc (commonly a random
// value chosen once at startup).
func NewRTPSession(ssrc uint32) *RTPSession {
	return &RTPSession{SSRC: ssrc}
}

// EncodeRTPMIDI wraps one already-encoded three-byte MIDI message as an
// RTP-MIDI packet with a zero delta-time, single-command list.
func (s *RTPSession) EncodeRTPMIDI(msg [3]byte) []byte {
	buf := make([]byte, rtpHeaderLength+1+len(msg))

	buf[0] = rtpVersion2Bit
	buf[1] = rtpPayloadType | rtpMarkerBit
	binary.BigEndian.PutUint16(buf[2:4], s.sequenceNumber)
	// Bytes 4:8 (RTP timestamp) are left zero; the core has no use for
	// wall-clock-synchronized playback.
	binary.BigEndian.PutUint32(buf[8:12], s.SSRC)

	// MIDI command-list header: short form, LEN = len(msg).
	buf[12] = byte(len(msg)) & 0x0f
	copy(buf[13:], msg[:])

	s.sequenceNumber++
	return buf
}

// DecodeRTPMIDI extracts the first three-byte MIDI command from an
// incoming RTP-MIDI packet.
func DecodeRTPMIDI(packet []byte) ([3]byte, error) {
	var out [3]byte
	if len(packet) < rtpHeaderLength+1+3 {
		return out, ErrShortPacket
	}
	if packet[1]&0x7f != rtpPayloadType {
		return out, errors.New("midiwire: unexpected rtp payload type")
	}
	copy(out[:], packet[rtpHeaderLength+1:rtpHeaderLength+4])
	return out, nil
}
