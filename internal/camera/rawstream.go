package camera

import (
	"context"
	"io"
)

// RawStreamSource reads fixed-size WxH grayscale frames from r, one frame
// per Capture call. It is the one concrete Source this core ships: any
// external capture process (a v4l2 grabber, a test fixture, a recorded
// session) need only pipe raw 8-bit luminance frames into r in WxH-byte
// chunks. Buffer delivery, device enumeration, and pixel-format
// conversion are that external process's concern, not this core's.
type RawStreamSource struct {
	r             io.Reader
	width, height int
}

// NewRawStreamSource wraps r as a Source of width x height frames.
func NewRawStreamSource(r io.Reader, width, height int) *RawStreamSource {
	return &RawStreamSource{r: r, width: width, height: height}
}

// Capture reads one frame, blocking until width*height bytes have
// arrived or ctx is done. There is no native cancellation for a blocking
// io.Reader, so a cancelled ctx is only observed before or after the
// read, not during it; callers pair this with a reader that itself
// respects deadlines (a pipe from a process killed on shutdown) when
// sub-read cancellation matters.
func (s *RawStreamSource) Capture(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	buf := make([]byte, s.width*s.height)
	if _, err := io.ReadFull(s.r, buf); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &Frame{Width: s.width, Height: s.height, Pix: buf}, nil
}
