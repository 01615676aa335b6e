package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"p2pchat/internal/domain"
)

const (
	// LegacyBufferSize is how much a legacy read takes off the socket.
	LegacyBufferSize = 1024
	// MaxFrameSize caps length-prefixed frames.
	MaxFrameSize = 64 * 1024

	FramingLegacy         = "legacy"
	FramingLengthPrefixed = "length-prefixed"
)

// Framer moves one message over one connection. Callers never see how the
// message boundary is found.
type Framer interface {
	ReadFrame(r io.Reader) ([]byte, error)
	WriteFrame(w io.Writer, p []byte) error
	Name() string
}

// NewFramer returns the framer registered under name.
func NewFramer(name string) (Framer, error) {
	switch name {
	case "", FramingLegacy:
		return Legacy{}, nil
	case FramingLengthPrefixed:
		return LengthPrefixed{}, nil
	default:
		return nil, fmt.Errorf("unknown framing %q", name)
	}
}

// Legacy is the unframed mode every existing node speaks: the writer sends
// raw bytes and the reader takes whatever a single read returns, up to
// BufSize. Longer messages are truncated.
type Legacy struct {
	BufSize int
}

func (l Legacy) Name() string { return FramingLegacy }

func (l Legacy) ReadFrame(r io.Reader) ([]byte, error) {
	size := l.BufSize
	if size <= 0 {
		size = LegacyBufferSize
	}
	buf := make([]byte, size)
	n, err := r.Read(buf)
	if n > 0 {
		return buf[:n], nil
	}
	if err != nil {
		return nil, err
	}
	return nil, io.ErrNoProgress
}

func (l Legacy) WriteFrame(w io.Writer, p []byte) error {
	_, err := w.Write(p)
	return err
}

// LengthPrefixed frames each message with a 4-byte big-endian length.
type LengthPrefixed struct {
	Max int
}

func (lp LengthPrefixed) Name() string { return FramingLengthPrefixed }

func (lp LengthPrefixed) max() int {
	if lp.Max <= 0 {
		return MaxFrameSize
	}
	return lp.Max
}

func (lp LengthPrefixed) ReadFrame(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if int64(n) > int64(lp.max()) {
		return nil, fmt.Errorf("%w: %d bytes", domain.ErrFrameTooLarge, n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("read frame body: %w", err)
	}
	return buf, nil
}

func (lp LengthPrefixed) WriteFrame(w io.Writer, p []byte) error {
	if len(p) > lp.max() {
		return fmt.Errorf("%w: %d bytes", domain.ErrFrameTooLarge, len(p))
	}
	frame := make([]byte, 4+len(p))
	binary.BigEndian.PutUint32(frame, uint32(len(p)))
	copy(frame[4:], p)
	_, err := w.Write(frame)
	return err
}
