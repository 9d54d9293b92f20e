// laserharp-calibrate runs the Calibrator standalone against live
// hardware for bench use: it opens the laser link and camera stream,
// drives the calibration sequence, prints the fitted (x0, m) per beam,
// and optionally saves the result.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lestrrat-go/strftime"
	"github.com/spf13/pflag"

	"github.com/kestrelharp/laserharp/internal/calib"
	"github.com/kestrelharp/laserharp/internal/calibrator"
	"github.com/kestrelharp/laserharp/internal/camera"
	"github.com/kestrelharp/laserharp/internal/laserlink"
	"github.com/kestrelharp/laserharp/internal/logging"
	"github.com/kestrelharp/laserharp/internal/serialport"
)

func main() {
	var (
		laserDevice   = pflag.String("laser-device", "/dev/ttyUSB1", "laser-array link UART device")
		cameraFIFO    = pflag.String("camera-fifo", "/tmp/laserharp-camera.fifo", "raw WxH luminance frame stream")
		width         = pflag.Int("width", 640, "camera frame width")
		height        = pflag.Int("height", 480, "camera frame height")
		beams         = pflag.Int("beams", 16, "number of laser beams")
		fovY          = pflag.Float64("fov-y", 1.0, "camera vertical field of view, radians")
		mountAngle    = pflag.Float64("mount-angle", 0.2, "camera mount angle, radians")
		mountDistance = pflag.Float64("mount-distance", 0.5, "camera-to-plane distance, meters")
		out           = pflag.String("out", "", "save the fitted calibration to this path, timestamped with %Y%m%d-%H%M%S if it contains that pattern")
	)
	pflag.Parse()

	log := logging.Default("laserharp-calibrate")

	laserPort, err := serialport.Open(*laserDevice, 115200)
	if err != nil {
		log.Error("opening laser-link UART", "err", err)
		os.Exit(1)
	}
	defer laserPort.Close()
	link := laserlink.New(laserPort, nil)

	camFile, err := os.Open(*cameraFIFO)
	if err != nil {
		log.Error("opening camera stream", "err", err)
		os.Exit(1)
	}
	defer camFile.Close()
	cam := camera.NewRawStreamSource(camFile, *width, *height)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opt := calibrator.DefaultOptions()
	opt.FOVy = *fovY
	opt.MountAngle = *mountAngle
	opt.MountDistance = *mountDistance
	opt.Width = *width
	opt.Height = *height
	opt.Beams = *beams

	stack := &laserlink.BrightnessStack{}
	c, err := calibrator.Calibrate(ctx, cam, link, stack, 0, 0, opt)
	if err != nil {
		log.Error("calibration failed", "err", err)
		os.Exit(1)
	}

	fmt.Printf("ya=%.2f yb=%.2f\n", c.Ya, c.Yb)
	for i := range c.X0 {
		fmt.Printf("beam %2d: x0=%.2f m=%.4f\n", i, c.X0[i], c.M[i])
	}

	if *out == "" {
		return
	}

	path, err := strftime.Format(*out, time.Now())
	if err != nil {
		path = *out
	}

	rc := calib.RequiredConfig{
		FOVy: *fovY, MountAngle: *mountAngle, MountDistance: *mountDistance,
		Width: *width, Height: *height, LaserCount: *beams,
	}
	if err := calib.Save(path, c, rc); err != nil {
		log.Error("saving calibration", "path", path, "err", err)
		os.Exit(1)
	}
	log.Info("saved calibration", "path", path)
}
