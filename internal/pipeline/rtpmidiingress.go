package pipeline

import (
	"context"
	"net"
	"time"

	"github.com/kestrelharp/laserharp/internal/midiwire"
)

// RunRTPMIDIIngress drains an RTP-MIDI (Apple MIDI Network Driver)
// session, decoding each packet's single command and dispatching it the
// same way RunMIDIIngress dispatches a serial frame — the three logical
// ingress channels are transport-agnostic. conn is expected to already be
// bound (see midiwire.AnnounceRTPMIDI for discovery).
func (r *Runtime) RunRTPMIDIIngress(ctx context.Context, conn net.PacketConn) error {
	buf := make([]byte, 512)
	for {
		if ctx.Err() != nil {
			return nil
		}

		conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		raw, err := midiwire.DecodeRTPMIDI(buf[:n])
		if err != nil {
			continue
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
