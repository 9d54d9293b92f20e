package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/kestrelharp/laserharp/internal/midiwire"
	"github.com/kestrelharp/laserharp/internal/serialport"
)

// frameReader resyncs a raw MIDI byte stream to three-byte short messages
// by discarding bytes until one with the status bit (0x80) set is found.
// Running-status coalescing is never produced by this core's egress and
// is not accepted on ingress either, so every message is assumed to carry
// its own status byte.
type frameReader struct {
	r   MIDIReader
	buf []byte
}

func newFrameReader(r MIDIReader) *frameReader {
	return &frameReader{r: r}
}

func (f *frameReader) next(deadline time.Duration) ([3]byte, error) {
	for {
		for len(f.buf) > 0 && f.buf[0]&0x80 == 0 {
			f.buf = f.buf[1:]
		}
		if len(f.buf) >= 3 {
			var msg [3]byte
			copy(msg[:], f.buf[:3])
			f.buf = f.buf[3:]
			return msg, nil
		}

		tmp := make([]byte, 64)
		n, err := f.r.Read(tmp, deadline)
		if err != nil {
			return [3]byte{}, err
		}
		f.buf = append(f.buf, tmp[:n]...)
	}
}

// RunMIDIIngress drains reader for three-byte MIDI messages and dispatches
// each to the Orchestrator's ingress handler until ctx is cancelled.
// Malformed messages are dropped; read timeouts are not an error and
// simply retry.
func (r *Runtime) RunMIDIIngress(ctx context.Context, reader MIDIReader) error {
	fr := newFrameReader(reader)
	for {
		if ctx.Err() != nil {
			return nil
		}

		raw, err := fr.next(200 * time.Millisecond)
		if err != nil {
			if errors.Is(err, serialport.ErrTimeout) {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		msg, err := midiwire.Decode(raw)
		if err != nil {
			continue
		}

		switch msg.Status {
		case midiwire.StatusNoteOn:
			r.Orchestrator.HandleIngress(msg.Channel, msg.Data2 > 0, int(msg.Data1), int(msg.Data2))
		case midiwire.StatusNoteOff:
			r.Orchestrator.HandleIngress(msg.Channel, false, int(msg.Data1), 0)
		}
	}
}
