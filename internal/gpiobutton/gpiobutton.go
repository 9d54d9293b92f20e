// Package gpiobutton reads debounced GPIO button edges for the two
// physical controls this core responds to: a calibrate request and a
// flip toggle. Both buttons are normally-open, pulled up, and wired to
// ground on press, so a falling edge is a press.
package gpiobutton

import (
	"context"
	"errors"
	"time"

	"github.com/warthog618/go-gpiocdev"

	"github.com/kestrelharp/laserharp/internal/pipeline"
)

// ErrUnavailable is returned when a requested GPIO line cannot be
// claimed (chip missing, offset already held, permission denied).
var ErrUnavailable = errors.New("gpiobutton: line unavailable")

// Config names the chip and line offsets for the two buttons.
type Config struct {
	Chip             string // e.g. "gpiochip0"
	CalibrateOffset  int
	FlipOffset       int
	DebounceInterval time.Duration
}

// DefaultDebounce is long enough to ride out mechanical switch bounce
// without eating a deliberate double-press.
const DefaultDebounce = 30 * time.Millisecond

// Watcher owns the two claimed GPIO lines and forwards debounced presses
// onto a pipeline.ControlEvent channel.
type Watcher struct {
	calibrate *gpiocdev.Line
	flip      *gpiocdev.Line
	events    chan pipeline.ControlEvent
}

// Open claims both button lines for falling-edge, debounced input.
func Open(cfg Config) (*Watcher, error) {
	if cfg.DebounceInterval <= 0 {
		cfg.DebounceInterval = DefaultDebounce
	}

	w := &Watcher{events: make(chan pipeline.ControlEvent, 8)}

	cal, err := gpiocdev.RequestLine(cfg.Chip, cfg.CalibrateOffset,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithDebounce(cfg.DebounceInterval),
		gpiocdev.WithEventHandler(w.handler(pipeline.ControlEventCalibrate)),
		gpiocdev.WithEdgeDetection(gpiocdev.EdgeFalling),
	)
	if err != nil {
		return nil, errors.Join(ErrUnavailable, err)
	}

	flip, err := gpiocdev.RequestLine(cfg.Chip, cfg.FlipOffset,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithDebounce(cfg.DebounceInterval),
		gpiocdev.WithEventHandler(w.handler(pipeline.ControlEventFlipToggle)),
		gpiocdev.WithEdgeDetection(gpiocdev.EdgeFalling),
	)
	if err != nil {
		cal.Close()
		return nil, errors.Join(ErrUnavailable, err)
	}

	w.calibrate = cal
	w.flip = flip
	return w, nil
}

func (w *Watcher) handler(kind pipeline.ControlEventKind) func(gpiocdev.LineEvent) {
	return func(evt gpiocdev.LineEvent) {
		select {
		case w.events <- pipeline.ControlEvent{Kind: kind}:
		default:
			// A full buffer means presses are arriving faster than
			// ControlIngress can drain them; dropping is preferable to
			// blocking the gpiocdev event goroutine.
		}
	}
}

// Events returns the channel RunControlIngress should drain.
func (w *Watcher) Events() <-chan pipeline.ControlEvent { return w.events }

// Close releases both GPIO lines.
func (w *Watcher) Close() error {
	err1 := w.calibrate.Close()
	err2 := w.flip.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// Run blocks until ctx is cancelled and then closes w, since the real
// work happens in the gpiocdev event goroutines installed at Open time;
// callers that want a single cancelable task to join with errgroup can
// run this alongside RunControlIngress.
func Run(ctx context.Context, w *Watcher) error {
	<-ctx.Done()
	return w.Close()
}
