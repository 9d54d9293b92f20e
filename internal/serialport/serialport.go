// Package serialport wraps a raw-mode UART with deadline-aware reads and
// always-flushed writes, shared by the MIDI egress/ingress UART and the
// laser-array link.
//
// A *term.Term from github.com/pkg/term has no notion of a read deadline
// by itself, so Read layers golang.org/x/sys/unix poll on top of its file
// descriptor.
package serialport

import (
	"errors"
	"time"

	"github.com/pkg/term"
	"golang.org/x/sys/unix"
)

// ErrTimeout is returned from Read when the deadline elapses with no data
// available.
var ErrTimeout = errors.New("serialport: read timeout")

// ErrUnavailable is returned when the device is gone; it covers both the
// LaserArrayUnavailable/MidiUnavailable error kinds depending on caller.
var ErrUnavailable = errors.New("serialport: device unavailable")

// Port is a single open UART.
type Port struct {
	t  *term.Term
	fd int
}

// Open opens device at baud in raw 8N1 mode. baud == 0 leaves the current
// speed alone.
func Open(device string, baud int) (*Port, error) {
	t, err := term.Open(device, term.RawMode)
	if err != nil {
		return nil, errors.Join(ErrUnavailable, err)
	}

	switch baud {
	case 0:
		// Leave alone.
	case 1200, 2400, 4800, 9600, 19200, 38400, 57600, 115200, 31250:
		if err := t.SetSpeed(baud); err != nil {
			t.Close()
			return nil, errors.Join(ErrUnavailable, err)
		}
	default:
		t.Close()
		return nil, errors.Join(ErrUnavailable, errors.New("unsupported baud rate"))
	}

	return &Port{t: t, fd: int(t.Fd())}, nil
}

// Read blocks for up to deadline for at least one byte, filling buf. A
// deadline of zero blocks indefinitely.
func (p *Port) Read(buf []byte, deadline time.Duration) (int, error) {
	if deadline > 0 {
		ready, err := p.poll(deadline)
		if err != nil {
			return 0, err
		}
		if !ready {
			return 0, ErrTimeout
		}
	}
	n, err := p.t.Read(buf)
	if err != nil {
		return n, errors.Join(ErrUnavailable, err)
	}
	return n, nil
}

func (p *Port) poll(deadline time.Duration) (bool, error) {
	fds := []unix.PollFd{{Fd: int32(p.fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, int(deadline.Milliseconds()))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return false, nil
		}
		return false, errors.Join(ErrUnavailable, err)
	}
	return n > 0 && fds[0].Revents&unix.POLLIN != 0, nil
}

// Write sends data and blocks until it is flushed to the wire.
func (p *Port) Write(data []byte) error {
	n, err := p.t.Write(data)
	if err != nil || n != len(data) {
		if err == nil {
			err = errors.New("short write")
		}
		return errors.Join(ErrUnavailable, err)
	}
	// tcdrain: TCSBRK with a nonzero argument waits for the output queue
	// to be transmitted without sending a break.
	return unix.IoctlSetInt(p.fd, unix.TCSBRK, 1)
}

// Close releases the underlying file descriptor.
func (p *Port) Close() error {
	return p.t.Close()
}
