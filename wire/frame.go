// Package wire implements the WireFormat frame and its codec: a
// length-prefixed, little-endian binary framing with a fixed 24-byte
// header carrying a ServiceID and a ConnID ahead of an opaque payload.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/aisremote/peerlink/ids"
)

// HeaderLen is the fixed frame header size: 8 bytes total-length, 8 bytes
// ServiceID, 8 bytes ConnID. The length field's own 8 bytes are included in
// "total length", per spec.
const HeaderLen = 24

// Kind is the frame classification derived from (sid, cid), never
// transmitted as a separate wire field.
type Kind int

const (
	KindConnectionError Kind = iota
	KindCallResponse
	KindIncomingSend
	KindIncomingCall
)

func (k Kind) String() string {
	switch k {
	case KindConnectionError:
		return "ConnectionError"
	case KindCallResponse:
		return "CallResponse"
	case KindIncomingSend:
		return "IncomingSend"
	case KindIncomingCall:
		return "IncomingCall"
	default:
		return "Unknown"
	}
}

// WireFormat is a contiguous byte buffer: header followed by payload. The
// zero value is not usable; construct with Empty or WithCapacity.
type WireFormat struct {
	buf []byte
}

// Empty returns a default, zero-length-payload frame.
func Empty() WireFormat {
	w := WireFormat{buf: make([]byte, HeaderLen)}
	w.syncLen()
	return w
}

// WithCapacity preallocates the header plus n bytes of payload headroom,
// without yet committing any payload bytes.
func WithCapacity(n int) WireFormat {
	w := WireFormat{buf: make([]byte, HeaderLen, HeaderLen+n)}
	w.syncLen()
	return w
}

// FromBytes wraps an already-framed buffer (as produced by a Decoder)
// without copying. Callers must not retain overlapping slices of buf.
func FromBytes(buf []byte) (WireFormat, error) {
	if len(buf) < HeaderLen {
		return WireFormat{}, fmt.Errorf("wire: buffer shorter than header: %d bytes", len(buf))
	}
	return WireFormat{buf: buf}, nil
}

func (w WireFormat) Sid() ids.ServiceID {
	return ids.ServiceID(binary.LittleEndian.Uint64(w.buf[8:16]))
}

func (w *WireFormat) SetSid(s ids.ServiceID) {
	binary.LittleEndian.PutUint64(w.buf[8:16], uint64(s))
}

func (w WireFormat) Cid() ids.ConnID {
	return ids.ConnID(binary.LittleEndian.Uint64(w.buf[16:24]))
}

func (w *WireFormat) SetCid(c ids.ConnID) {
	binary.LittleEndian.PutUint64(w.buf[16:24], uint64(c))
}

// Msg is the payload slice, opaque to this package.
func (w WireFormat) Msg() []byte { return w.buf[HeaderLen:] }

// SetMsg replaces the payload and keeps the length header in sync.
func (w *WireFormat) SetMsg(p []byte) {
	w.buf = append(w.buf[:HeaderLen], p...)
	w.syncLen()
}

// Len is the total frame length, header included, as stored in the length
// field (kept in sync with len(buf) by every mutator in this package).
func (w WireFormat) Len() uint64 { return binary.LittleEndian.Uint64(w.buf[0:8]) }

func (w *WireFormat) syncLen() {
	binary.LittleEndian.PutUint64(w.buf[0:8], uint64(len(w.buf)))
}

// Bytes is the full frame, header and payload, ready to write to a stream.
func (w WireFormat) Bytes() []byte { return w.buf }

// Clone deep-copies the frame; the original and the clone share no backing
// array.
func (w WireFormat) Clone() WireFormat {
	cp := make([]byte, len(w.buf))
	copy(cp, w.buf)
	return WireFormat{buf: cp}
}

// Kind derives the frame classification per the sid/cid table in spec §3.
func (w WireFormat) Kind() Kind {
	switch {
	case w.Sid().IsNull():
		return KindConnectionError
	case w.Sid().IsFull():
		return KindCallResponse
	case w.Cid().IsNull():
		return KindIncomingSend
	default:
		return KindIncomingCall
	}
}

// NewResponse builds a CallResponse frame for cid carrying payload, per
// §4.3.1: ServiceID=full, same ConnID as the originating call.
func NewResponse(cid ids.ConnID, payload []byte) WireFormat {
	w := WithCapacity(len(payload))
	w.SetSid(ids.FullServiceID)
	w.SetCid(cid)
	w.SetMsg(payload)
	return w
}

// NewConnectionError builds a ConnectionError frame: ServiceID=null, cid
// either the correlating call's cid or null for an unsolicited error.
func NewConnectionError(cid ids.ConnID, payload []byte) WireFormat {
	w := WithCapacity(len(payload))
	w.SetSid(ids.NullServiceID)
	w.SetCid(cid)
	w.SetMsg(payload)
	return w
}

// New builds an ordinary send/call frame.
func New(sid ids.ServiceID, cid ids.ConnID, payload []byte) WireFormat {
	w := WithCapacity(len(payload))
	w.SetSid(sid)
	w.SetCid(cid)
	w.SetMsg(payload)
	return w
}
