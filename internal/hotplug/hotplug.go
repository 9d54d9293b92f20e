// Package hotplug watches udev for tty devices — such as the USB-serial
// adapters of the laser-array link and the MIDI UART — arriving or
// disappearing. cmd/laserharpd logs these events; it does not reopen a
// transport in response to them.
package hotplug

import (
	"context"
	"errors"

	"github.com/jochenvg/go-udev"
)

// ErrMonitorUnavailable is returned when the udev netlink monitor cannot
// be opened (no udev running, insufficient permission).
var ErrMonitorUnavailable = errors.New("hotplug: udev monitor unavailable")

// EventKind distinguishes a device arriving from a device leaving.
type EventKind int

const (
	EventAdd EventKind = iota
	EventRemove
)

// Event is one tty device add/remove notification.
type Event struct {
	Kind    EventKind
	DevNode string // e.g. "/dev/ttyUSB0"
}

// Watch opens a udev netlink monitor scoped to the tty subsystem and
// streams Events derived from it until ctx is cancelled. Devices are not
// matched by vendor/product ID: every tty add or remove that carries a
// device node is reported.
func Watch(ctx context.Context) (<-chan Event, error) {
	u := udev.Udev{}
	mon := u.NewMonitorFromNetlink("udev")
	if mon == nil {
		return nil, ErrMonitorUnavailable
	}
	if err := mon.FilterAddMatchSubsystem("tty"); err != nil {
		return nil, errors.Join(ErrMonitorUnavailable, err)
	}

	deviceCh, errCh, err := mon.DeviceChan(ctx)
	if err != nil {
		return nil, errors.Join(ErrMonitorUnavailable, err)
	}

	out := make(chan Event, 8)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deviceCh:
				if !ok {
					return
				}
				ev, ok := toEvent(d)
				if !ok {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			case <-errCh:
				// Monitor-level errors are not actionable beyond logging,
				// which the caller does; keep streaming.
			}
		}
	}()

	return out, nil
}

func toEvent(d *udev.Device) (Event, bool) {
	node := d.Devnode()
	if node == "" {
		return Event{}, false
	}
	switch d.Action() {
	case "add":
		return Event{Kind: EventAdd, DevNode: node}, true
	case "remove":
		return Event{Kind: EventRemove, DevNode: node}, true
	default:
		return Event{}, false
	}
}
