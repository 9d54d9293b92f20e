// laserharpd is the bootstrap daemon: it parses flags, loads the
// settings and calibration documents, opens the MIDI and laser-link
// UARTs (exiting if either cannot be opened), builds the Filter Bank and
// Orchestrator, and runs the Pipeline Runtime until SIGINT/SIGTERM.
// Device hotplug events are logged only. A calibration is installed only
// from the calibration document at startup; calibrate requests from the
// control input are not acted on.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/kestrelharp/laserharp/internal/buildinfo"
	"github.com/kestrelharp/laserharp/internal/calib"
	"github.com/kestrelharp/laserharp/internal/camera"
	"github.com/kestrelharp/laserharp/internal/filterbank"
	"github.com/kestrelharp/laserharp/internal/gpiobutton"
	"github.com/kestrelharp/laserharp/internal/grid"
	"github.com/kestrelharp/laserharp/internal/hotplug"
	"github.com/kestrelharp/laserharp/internal/laserlink"
	"github.com/kestrelharp/laserharp/internal/logging"
	"github.com/kestrelharp/laserharp/internal/midiwire"
	"github.com/kestrelharp/laserharp/internal/orchestrator"
	"github.com/kestrelharp/laserharp/internal/pipeline"
	"github.com/kestrelharp/laserharp/internal/serialport"
	"github.com/kestrelharp/laserharp/internal/settings"
)

type flags struct {
	configPath string
	calibPath  string

	midiDevice  string
	laserDevice string
	cameraFIFO  string

	width, height int
	beams         int
	fovY          float64
	mountAngle    float64
	mountDistance float64

	rtpMIDIPort int
	gpioChip    string
	calBtn      int
	flipBtn     int
}

func main() {
	var f flags
	pflag.StringVar(&f.configPath, "config", "config.yaml", "Settings document path.")
	pflag.StringVar(&f.calibPath, "calibration", "calibration.yaml", "Calibration document path.")
	pflag.StringVar(&f.midiDevice, "midi-device", "/dev/ttyUSB0", "MIDI egress/ingress UART device.")
	pflag.StringVar(&f.laserDevice, "laser-device", "/dev/ttyUSB1", "Laser-array link UART device.")
	pflag.StringVar(&f.cameraFIFO, "camera-fifo", "/tmp/laserharp-camera.fifo", "Raw WxH luminance frame stream, fed by an external capture process.")
	pflag.IntVar(&f.width, "width", 640, "Camera frame width.")
	pflag.IntVar(&f.height, "height", 480, "Camera frame height.")
	pflag.IntVar(&f.beams, "beams", 16, "Number of laser beams.")
	pflag.Float64Var(&f.fovY, "fov-y", 1.0, "Camera vertical field of view, radians.")
	pflag.Float64Var(&f.mountAngle, "mount-angle", 0.2, "Camera mount angle, radians.")
	pflag.Float64Var(&f.mountDistance, "mount-distance", 0.5, "Camera-to-plane distance, meters.")
	pflag.IntVar(&f.rtpMIDIPort, "rtp-midi-port", 0, "UDP port for the RTP-MIDI ingress session; 0 disables it.")
	pflag.StringVar(&f.gpioChip, "gpio-chip", "", "gpiochip device for the calibrate/flip buttons; empty disables GPIO input.")
	pflag.IntVar(&f.calBtn, "gpio-calibrate-offset", 0, "GPIO line offset for the calibrate button.")
	pflag.IntVar(&f.flipBtn, "gpio-flip-offset", 0, "GPIO line offset for the flip button.")
	version := pflag.Bool("version", false, "Print version and exit.")
	pflag.Parse()

	if *version {
		fmt.Println(buildinfo.String())
		return
	}

	log := logging.Default("laserharpd")
	log.Info("starting", "version", buildinfo.String())

	if err := run(&f, log); err != nil {
		log.Error("exiting", "err", err)
		os.Exit(1)
	}
}

func run(f *flags, log *charmlog.Logger) error {
	s, err := settings.Load(f.configPath)
	if err != nil {
		log.Warn("no settings document, using defaults", "path", f.configPath, "err", err)
		s = settings.Default()
	}

	midiPort, err := serialport.Open(f.midiDevice, 31250)
	if err != nil {
		return fmt.Errorf("opening MIDI UART: %w", err)
	}
	defer midiPort.Close()

	laserPort, err := serialport.Open(f.laserDevice, 115200)
	if err != nil {
		return fmt.Errorf("opening laser-link UART: %w", err)
	}
	defer laserPort.Close()

	link := laserlink.New(laserPort, nil)

	rc := calib.RequiredConfig{
		FOVy: f.fovY, MountAngle: f.mountAngle, MountDistance: f.mountDistance,
		Width: f.width, Height: f.height, LaserCount: f.beams,
	}
	c, err := calib.Load(f.calibPath, rc)
	if err != nil {
		log.Warn("no usable calibration, frame pipeline stays parked", "err", err)
	}

	orch := orchestrator.New(f.beams, s, link)
	rt := pipeline.NewRuntime(nil, midiPort, orch, s)

	if c != nil {
		g := grid.Build(c, f.width, f.height, f.mountDistance)
		bank := filterbank.New(f.beams, filterbank.Coefficients(s.FilterSize(), s.FilterCutoff(), 30), s.ModulationGain(), s.ModulationDelay(), 30)
		rt.SetCalibration(g, bank)
	}

	camFile, err := os.Open(f.cameraFIFO)
	if err != nil {
		return fmt.Errorf("opening camera stream: %w", err)
	}
	defer camFile.Close()
	rt.Camera = camera.NewRawStreamSource(camFile, f.width, f.height)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return rt.RunFramePipeline(gctx) })
	g.Go(func() error { return rt.RunMIDIIngress(gctx, midiPort) })

	events, stopEvents, err := wireControlEvents(f, log)
	if err != nil {
		return err
	}
	if stopEvents != nil {
		defer stopEvents()
	}
	g.Go(func() error { return rt.RunControlIngress(gctx, events, nil) })

	if f.rtpMIDIPort > 0 {
		conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: f.rtpMIDIPort})
		if err != nil {
			return fmt.Errorf("opening RTP-MIDI UDP socket: %w", err)
		}
		defer conn.Close()
		g.Go(func() error { return rt.RunRTPMIDIIngress(gctx, conn) })
		g.Go(func() error {
			return midiwire.AnnounceRTPMIDI(gctx, "laserharp", f.rtpMIDIPort)
		})
	}

	hotplugEvents, err := hotplug.Watch(gctx)
	if err != nil {
		log.Warn("hotplug watcher unavailable, device recovery disabled", "err", err)
	} else {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case ev, ok := <-hotplugEvents:
					if !ok {
						return nil
					}
					log.Info("hotplug event", "kind", ev.Kind, "device", ev.DevNode)
				}
			}
		})
	}

	err = g.Wait()
	if shutdownErr := rt.Shutdown(); shutdownErr != nil {
		log.Warn("final all-notes-off failed", "err", shutdownErr)
	}
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func wireControlEvents(f *flags, log *charmlog.Logger) (<-chan pipeline.ControlEvent, func(), error) {
	if f.gpioChip == "" {
		return make(chan pipeline.ControlEvent), nil, nil
	}

	w, err := gpiobutton.Open(gpiobutton.Config{
		Chip:            f.gpioChip,
		CalibrateOffset: f.calBtn,
		FlipOffset:      f.flipBtn,
	})
	if err != nil {
		log.Warn("GPIO button input unavailable", "err", err)
		return make(chan pipeline.ControlEvent), nil, nil
	}

	return w.Events(), func() { w.Close() }, nil
}
