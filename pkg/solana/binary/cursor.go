package binary

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// ErrOutOfBounds is returned when a read, write, skip or alignment would move
// past the end of the underlying buffer.
var ErrOutOfBounds = errors.New("out of bounds")

// Cursor is a bounds-checked reader over a fixed byte range. Reads return
// sub-slices that alias the underlying buffer. Offsets are logical, relative
// to the start of the buffer, and never to its memory address.
//
// A failed operation leaves the cursor where it was.
type Cursor struct {
	buf []byte
	off int
}

// NewCursor returns a Cursor positioned at the start of buf.
func NewCursor(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// Offset returns the logical position of the cursor.
func (c *Cursor) Offset() int {
	return c.off
}

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int {
	return len(c.buf) - c.off
}

// ReadFixed returns the next n bytes without copying them.
func (c *Cursor) ReadFixed(n int) ([]byte, error) {
	if n < 0 || n > c.Remaining() {
		return nil, errors.Wrapf(ErrOutOfBounds, "read %d bytes at offset %d (len %d)", n, c.off, len(c.buf))
	}

	b := c.buf[c.off : c.off+n : c.off+n]
	c.off += n
	return b, nil
}

// ReadLenPrefixed reads a little-endian u64 length followed by that many bytes.
func (c *Cursor) ReadLenPrefixed() ([]byte, error) {
	start := c.off

	n, err := c.ReadUint64()
	if err != nil {
		return nil, err
	}
	if n > uint64(c.Remaining()) {
		c.off = start
		return nil, errors.Wrapf(ErrOutOfBounds, "length prefix %d at offset %d exceeds remaining %d", n, start, c.Remaining())
	}

	return c.ReadFixed(int(n))
}

// PeekByte returns the next byte without advancing.
func (c *Cursor) PeekByte() (byte, error) {
	if c.Remaining() < 1 {
		return 0, errors.Wrapf(ErrOutOfBounds, "peek at offset %d", c.off)
	}
	return c.buf[c.off], nil
}

// Skip advances the cursor by n bytes.
func (c *Cursor) Skip(n int) error {
	if n < 0 || n > c.Remaining() {
		return errors.Wrapf(ErrOutOfBounds, "skip %d bytes at offset %d (len %d)", n, c.off, len(c.buf))
	}
	c.off += n
	return nil
}

// AlignTo advances the cursor to the next logical offset that is a multiple
// of k. It is a no-op when already aligned.
func (c *Cursor) AlignTo(k int) error {
	return c.Skip(AlignmentPadding(c.off, k))
}

func (c *Cursor) ReadUint8() (uint8, error) {
	b, err := c.ReadFixed(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *Cursor) ReadBool() (bool, error) {
	v, err := c.ReadUint8()
	return v != 0, err
}

func (c *Cursor) ReadUint32() (uint32, error) {
	b, err := c.ReadFixed(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (c *Cursor) ReadUint64() (uint64, error) {
	b, err := c.ReadFixed(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// AlignmentPadding returns the number of bytes needed to move offset to the
// next multiple of k.
func AlignmentPadding(offset, k int) int {
	if k <= 1 {
		return 0
	}
	return (k - offset%k) % k
}
