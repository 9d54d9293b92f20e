package pipeline

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelharp/laserharp/internal/camera"
	"github.com/kestrelharp/laserharp/internal/filterbank"
	"github.com/kestrelharp/laserharp/internal/midiwire"
	"github.com/kestrelharp/laserharp/internal/orchestrator"
	"github.com/kestrelharp/laserharp/internal/settings"
)

func TestRunRTPMIDIIngressDecodesAndDispatches(t *testing.T) {
	serverConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer serverConn.Close()

	clientConn, err := net.DialUDP("udp", nil, serverConn.LocalAddr().(*net.UDPAddr))
	require.NoError(t, err)
	defer clientConn.Close()

	session := midiwire.NewRTPSession(1)
	msg := midiwire.NoteOn(2, 52, 100).Encode() // channel 2 emulation; note 52 is laser 2 under default settings
	packet := session.EncodeRTPMIDI(msg)
	_, err = clientConn.Write(packet)
	require.NoError(t, err)

	s := settings.Default()
	orch := orchestrator.New(3, s, nil)
	writer := &fakeWriter{}
	r := NewRuntime(&fakeCamera{frames: []*camera.Frame{blankFrame(320, 240)}}, writer, orch, s)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	err = r.RunRTPMIDIIngress(ctx, serverConn)
	require.NoError(t, err)

	out := orch.Process(filterbank.Sample{Active: make([]bool, 3), Length: make([]float64, 3), Modulation: make([]float64, 3)})
	assert.Contains(t, out.MIDI, midiwire.NoteOn(0, 52, 127))
}
