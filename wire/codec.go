package wire

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
)

// ErrMessageSizeExceeded is returned by the Encoder when asked to write a
// payload larger than its configured max_size, and by a Decoder when the
// peer announces a frame larger than max_size; in the latter case the
// decoder is poisoned (see Decoder.Poisoned).
var ErrMessageSizeExceeded = errors.New("wire: message size exceeds max_size")

// ErrFrameTooShort signals a corrupt length field (total length less than
// the header length); the decoder is poisoned on this error too.
var ErrFrameTooShort = errors.New("wire: frame shorter than header")

// Encoder is stateless; max_size bounds the payload it will write.
type Encoder struct {
	maxSize uint64
}

func NewEncoder(maxSize uint64) *Encoder { return &Encoder{maxSize: maxSize} }

// Encode writes one frame and flushes, so it never buffers more than one
// in-flight frame. w is not closed.
func (e *Encoder) Encode(w *bufio.Writer, f WireFormat) error {
	if uint64(len(f.Msg())) > e.maxSize {
		return ErrMessageSizeExceeded
	}
	if _, err := w.Write(f.Bytes()); err != nil {
		return err
	}
	return w.Flush()
}

// Decoder is the "heap" variant: a blocking, io.ReadFull-based reader that
// allocates one buffer per frame. It is stateless between calls to Decode
// except for the poisoned flag, which latches once max_size is violated,
// after that the decoder must not be used again on this stream.
type Decoder struct {
	maxSize  uint64
	poisoned bool
}

func NewDecoder(maxSize uint64) *Decoder { return &Decoder{maxSize: maxSize} }

func (d *Decoder) Poisoned() bool { return d.poisoned }

// Decode reads exactly one frame from r. A clean end of stream at a frame
// boundary (zero bytes read before EOF) returns io.EOF, not an error; EOF
// discovered mid-frame (header or payload partially read) is fatal and is
// returned as io.ErrUnexpectedEOF. Any other read error is returned as-is.
func (d *Decoder) Decode(r io.Reader) (WireFormat, error) {
	if d.poisoned {
		return WireFormat{}, ErrMessageSizeExceeded
	}

	var lenBuf [8]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		if err == io.EOF {
			return WireFormat{}, io.EOF
		}
		if err == io.ErrUnexpectedEOF {
			return WireFormat{}, io.ErrUnexpectedEOF
		}
		return WireFormat{}, err
	}

	total := binary.LittleEndian.Uint64(lenBuf[:])
	if total < HeaderLen {
		d.poisoned = true
		return WireFormat{}, ErrFrameTooShort
	}
	payloadLen := total - HeaderLen
	if payloadLen > d.maxSize {
		d.poisoned = true
		return WireFormat{}, ErrMessageSizeExceeded
	}

	buf := make([]byte, total)
	copy(buf[0:8], lenBuf[:])
	if _, err := io.ReadFull(r, buf[8:]); err != nil {
		// any EOF here is mid-frame: we already committed to `total` bytes.
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return WireFormat{}, io.ErrUnexpectedEOF
		}
		return WireFormat{}, err
	}
	return FromBytes(buf)
}
