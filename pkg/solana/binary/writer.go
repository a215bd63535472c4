package binary

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Writer is a bounds-checked writer over a fixed byte range. It never grows
// the buffer; callers size it up front.
type Writer struct {
	buf []byte
	off int
}

// NewWriter returns a Writer positioned at the start of buf.
func NewWriter(buf []byte) *Writer {
	return &Writer{buf: buf}
}

// Offset returns the logical position of the writer.
func (w *Writer) Offset() int {
	return w.off
}

// Bytes returns the written prefix of the buffer.
func (w *Writer) Bytes() []byte {
	return w.buf[:w.off]
}

func (w *Writer) reserve(n int) ([]byte, error) {
	if n < 0 || n > len(w.buf)-w.off {
		return nil, errors.Wrapf(ErrOutOfBounds, "write %d bytes at offset %d (len %d)", n, w.off, len(w.buf))
	}

	b := w.buf[w.off : w.off+n]
	w.off += n
	return b, nil
}

func (w *Writer) WriteUint8(v uint8) error {
	b, err := w.reserve(1)
	if err != nil {
		return err
	}
	b[0] = v
	return nil
}

func (w *Writer) WriteBool(v bool) error {
	if v {
		return w.WriteUint8(1)
	}
	return w.WriteUint8(0)
}

func (w *Writer) WriteUint32(v uint32) error {
	b, err := w.reserve(4)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(b, v)
	return nil
}

func (w *Writer) WriteUint64(v uint64) error {
	b, err := w.reserve(8)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(b, v)
	return nil
}

// WriteKey32 writes a 32 byte key. Shorter keys are zero padded.
func (w *Writer) WriteKey32(key []byte) error {
	if len(key) > 32 {
		return errors.Errorf("key too long: %d", len(key))
	}
	b, err := w.reserve(32)
	if err != nil {
		return err
	}
	copy(b, key)
	clear(b[len(key):])
	return nil
}

func (w *Writer) WriteBytes(v []byte) error {
	b, err := w.reserve(len(v))
	if err != nil {
		return err
	}
	copy(b, v)
	return nil
}

// WriteZeros writes n zero bytes.
func (w *Writer) WriteZeros(n int) error {
	b, err := w.reserve(n)
	if err != nil {
		return err
	}
	clear(b)
	return nil
}

// AlignTo zero-pads up to the next logical offset that is a multiple of k.
func (w *Writer) AlignTo(k int) error {
	return w.WriteZeros(AlignmentPadding(w.off, k))
}
