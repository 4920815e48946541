package transport

import (
	"context"
	"os"

	"golang.org/x/sys/unix"

	"github.com/lunasat/fsw-core"
	"github.com/lunasat/fsw-core/internal/constants"
)

// UART is the minimal interface the sender and receiver need from a
// serial link: read and write exactly one fixed-size frame.
type UART interface {
	ReadFrame(ctx context.Context) ([constants.FrameSize]byte, error)
	WriteFrame(ctx context.Context, frame [constants.FrameSize]byte) error
}

// SerialUART drives a real TTY in raw mode, bounding each read by the
// line discipline's VTIME rather than a Go-level context deadline, the
// way a blocking embedded serial driver would.
type SerialUART struct {
	f *os.File
}

// OpenSerial opens path and configures it as an 8N1 raw-mode line at
// baud, with a read timeout derived from constants.DefaultFrameTimeout.
func OpenSerial(path string, baud uint32) (*SerialUART, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_NOCTTY, 0)
	if err != nil {
		return nil, fsw.WrapError("transport.OpenSerial", err)
	}

	fd := int(f.Fd())
	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		f.Close()
		return nil, fsw.WrapError("transport.OpenSerial", err)
	}

	unix.CfmakeRaw(termios)
	termios.Cc[unix.VMIN] = 0
	termios.Cc[unix.VTIME] = uint8(constants.DefaultFrameTimeout.Seconds() * 10) // VTIME is in deciseconds
	termios.Ispeed = baud
	termios.Ospeed = baud

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, termios); err != nil {
		f.Close()
		return nil, fsw.WrapError("transport.OpenSerial", err)
	}

	return &SerialUART{f: f}, nil
}

// ReadFrame reads exactly one frame, relying on the line discipline's
// VTIME for the timeout; ctx cancellation is checked only at call entry
// since a blocking read on a real TTY cannot be interrupted mid-call.
func (s *SerialUART) ReadFrame(ctx context.Context) ([constants.FrameSize]byte, error) {
	var buf [constants.FrameSize]byte
	if err := ctx.Err(); err != nil {
		return buf, err
	}
	n, err := s.f.Read(buf[:])
	if err != nil {
		return buf, fsw.NewError("transport.SerialUART.ReadFrame", fsw.ErrTransport, err.Error())
	}
	if n != constants.FrameSize {
		return buf, fsw.NewError("transport.SerialUART.ReadFrame", fsw.ErrTransport, "short read, frame truncated")
	}
	return buf, nil
}

// WriteFrame writes exactly one frame.
func (s *SerialUART) WriteFrame(ctx context.Context, frame [constants.FrameSize]byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.f.Write(frame[:])
	if err != nil {
		return fsw.WrapError("transport.SerialUART.WriteFrame", err)
	}
	return nil
}

// Close closes the underlying TTY.
func (s *SerialUART) Close() error {
	return s.f.Close()
}

var _ UART = (*SerialUART)(nil)
