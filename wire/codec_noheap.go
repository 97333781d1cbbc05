package wire

import (
	"encoding/binary"
)

// CursorDecoder is the "no-heap" variant: an explicit state machine driven
// by Feed, which never blocks and never owns a reader; the caller supplies
// bytes as they arrive (one byte at a time, in bulk, however the transport
// delivers them). It yields the same frames as Decoder however the reads
// are chunked; codec_test.go's TestCursorDecoderEquivalence checks this
// for single-byte chunked delivery.
//
// Grounded on the teacher's transport/pdu.go roff/woff cursor bookkeeping.
type CursorDecoder struct {
	maxSize uint64

	lenBuf    [8]byte
	lenOff    int // bytes of lenBuf filled so far
	total     uint64
	havelen   bool
	buf       []byte
	woff      int
	poisoned  bool
}

func NewCursorDecoder(maxSize uint64) *CursorDecoder {
	return &CursorDecoder{maxSize: maxSize}
}

func (d *CursorDecoder) Poisoned() bool { return d.poisoned }

// Feed consumes as much of p as is needed to make progress and returns the
// number of bytes it consumed, the decoded frame if one completed, and any
// fatal error. Callers must re-feed any unconsumed suffix (p[n:]) on the
// next call; a single Feed call never decodes more than one frame so that
// callers can dispatch each frame before resuming the scan.
func (d *CursorDecoder) Feed(p []byte) (n int, frame WireFormat, done bool, err error) {
	if d.poisoned {
		return 0, WireFormat{}, false, ErrMessageSizeExceeded
	}

	orig := len(p)

	if !d.havelen {
		need := 8 - d.lenOff
		take := min(need, len(p))
		copy(d.lenBuf[d.lenOff:], p[:take])
		d.lenOff += take
		p = p[take:]
		if d.lenOff < 8 {
			return orig - len(p), WireFormat{}, false, nil
		}
		d.total = binary.LittleEndian.Uint64(d.lenBuf[:])
		if d.total < HeaderLen {
			d.poisoned = true
			return orig - len(p), WireFormat{}, false, ErrFrameTooShort
		}
		if d.total-HeaderLen > d.maxSize {
			d.poisoned = true
			return orig - len(p), WireFormat{}, false, ErrMessageSizeExceeded
		}
		d.havelen = true
		d.buf = make([]byte, d.total)
		copy(d.buf[0:8], d.lenBuf[:])
		d.woff = 8
	}

	need := int(d.total) - d.woff
	take := min(need, len(p))
	copy(d.buf[d.woff:], p[:take])
	d.woff += take
	p = p[take:]

	if d.woff < int(d.total) {
		return orig - len(p), WireFormat{}, false, nil
	}

	out, ferr := FromBytes(d.buf)
	d.reset()
	if ferr != nil {
		return orig - len(p), WireFormat{}, false, ferr
	}
	return orig - len(p), out, true, nil
}

func (d *CursorDecoder) reset() {
	d.lenOff = 0
	d.havelen = false
	d.buf = nil
	d.woff = 0
	d.total = 0
}
