package midiwire

import (
	"context"
	"fmt"

	"github.com/brutella/dnssd"
)

// AppleMIDIServiceType is the Bonjour/DNS-SD service type for the Apple
// MIDI Network Driver protocol.
const AppleMIDIServiceType = "_apple-midi._udp"

// AnnounceRTPMIDI advertises a network RTP-MIDI ingress session on port so
// an operator's MIDI controller can discover it without manual IP/port
// configuration. It blocks responding to mDNS queries until ctx is
// cancelled.
func AnnounceRTPMIDI(ctx context.Context, name string, port int) error {
	cfg := dnssd.Config{
		Name: name,
		Type: AppleMIDIServiceType,
		Port: port,
	}

	sv, err := dnssd.NewService(cfg)
	if err != nil {
		return fmt.Errorf("midiwire: create dnssd service: %w", err)
	}

	rp, err := dnssd.NewResponder()
	if err != nil {
		return fmt.Errorf("midiwire: create dnssd responder: %w", err)
	}

	if _, err := rp.Add(sv); err != nil {
		return fmt.Errorf("midiwire: add dnssd service: %w", err)
	}

	return rp.Respond(ctx)
}
