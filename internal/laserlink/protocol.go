// Package laserlink implements the four-byte microcontroller command
// protocol: laser brightness, animations, and control
// queries over a dedicated UART.
package laserlink

import (
	"errors"
	"time"
)

// Transport is the minimum a laser-link carrier must provide; satisfied
// by *serialport.Port and by test doubles.
type Transport interface {
	Write(data []byte) error
	Read(buf []byte, deadline time.Duration) (int, error)
}

// Command bytes understood by the laser array microcontroller.
const (
	cmdSetOne      byte = 0x80
	cmdSetAll      byte = 0x81
	cmdQuery       byte = 0x82
	cmdAnimation   byte = 0x83
	cmdStopAnim    byte = 0x84
	cmdVersion     byte = 0xF0
	cmdReboot      byte = 0xF1
	cmdStandby     byte = 0xF2
)

// All addresses every laser in a single command.
const All = 127

// FollowAction is the action taken once an animation completes.
type FollowAction byte

const (
	FollowLoop    FollowAction = 0
	FollowFreeze  FollowAction = 1
	FollowOff     FollowAction = 2
	FollowRestore FollowAction = 3
)

// ErrUnavailable is returned when the laser array link is unavailable.
var ErrUnavailable = errors.New("laserlink: laser array unavailable")

// Link drives the microcontroller over a serialport.Port, translating
// logical laser indices to physical diode indices via table before
// sending.
type Link struct {
	port  Transport
	table []int // logical index -> physical index; nil means identity
}

// New wraps an already-open transport. table may be nil for an identity
// mapping.
func New(port Transport, table []int) *Link {
	return &Link{port: port, table: table}
}

func (l *Link) physical(idx int) byte {
	if idx == All {
		return All
	}
	if l.table == nil || idx < 0 || idx >= len(l.table) {
		return byte(idx)
	}
	return byte(l.table[idx])
}

func (l *Link) send(frame [4]byte) error {
	if err := l.port.Write(frame[:]); err != nil {
		return errors.Join(ErrUnavailable, err)
	}
	return nil
}

// SetOne sets a single laser's brightness with a fade time in tenths of a
// second.
func (l *Link) SetOne(idx, brightness, fadeTenths int) error {
	return l.send([4]byte{cmdSetOne, l.physical(idx), byte(brightness), byte(fadeTenths)})
}

// SetAll sets every laser to the same brightness.
func (l *Link) SetAll(brightness, fadeTenths int) error {
	return l.send([4]byte{cmdSetAll, byte(brightness), byte(fadeTenths), 0x00})
}

// QueryBrightness requests the current brightness of idx; the reply is
// read separately via ReadReply.
func (l *Link) QueryBrightness(idx int) error {
	return l.send([4]byte{cmdQuery, l.physical(idx), 0x00, 0x00})
}

// PlayAnimation starts animationID for durationTenths tenths of a second,
// then applies follow on completion.
func (l *Link) PlayAnimation(animationID int, durationTenths int, follow FollowAction) error {
	return l.send([4]byte{cmdAnimation, byte(animationID), byte(durationTenths), byte(follow)})
}

// StopAnimation halts any running animation immediately.
func (l *Link) StopAnimation() error {
	return l.send([4]byte{cmdStopAnim, 0x00, 0x00, 0x00})
}

// RequestVersion asks the controller for its firmware version; the reply
// is read separately via ReadReply.
func (l *Link) RequestVersion() error {
	return l.send([4]byte{cmdVersion, 0x00, 0x00, 0x00})
}

// Reboot asks the controller to restart.
func (l *Link) Reboot() error {
	return l.send([4]byte{cmdReboot, 0x00, 0x00, 0x00})
}

// Standby asks the controller to sleep (0xF2 0x64 0x05 0x00).
func (l *Link) Standby() error {
	return l.send([4]byte{cmdStandby, 0x64, 0x05, 0x00})
}

// Reply is a decoded 4-byte response frame.
type Reply struct {
	Command byte
	A, B, C byte
}

// ReadReply blocks up to deadline for one 4-byte reply frame.
func (l *Link) ReadReply(deadline time.Duration) (Reply, error) {
	var buf [4]byte
	n, err := l.port.Read(buf[:], deadline)
	if err != nil {
		return Reply{}, err
	}
	if n != 4 {
		return Reply{}, errors.New("laserlink: short reply frame")
	}
	return Reply{Command: buf[0], A: buf[1], B: buf[2], C: buf[3]}, nil
}
