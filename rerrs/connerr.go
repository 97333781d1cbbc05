package rerrs

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Variant is the wire-serializable ConnectionError tag, per spec §6. It is
// a strict, PII-stripped subset of Kind: no peer ids or names ever cross
// the wire.
type Variant int

const (
	VariantDeserialize           Variant = iota // remote could not deserialize your actor message
	VariantDeserializeWireFormat                // the stream is corrupt; connection will close
	VariantInternalServerError                  // generic fault; no leaked details
	VariantTimeout                               // internal only; never actually sent
	VariantUnknownService                        // remote does not expose this service
)

func (v Variant) String() string {
	switch v {
	case VariantDeserialize:
		return "Deserialize"
	case VariantDeserializeWireFormat:
		return "DeserializeWireFormat"
	case VariantInternalServerError:
		return "InternalServerError"
	case VariantTimeout:
		return "Timeout"
	case VariantUnknownService:
		return "UnknownService"
	default:
		return "Unknown"
	}
}

// ConnectionError is the payload of a ConnectionError frame (ServiceID=
// null). Sid/Cid are plain uint64 here, matching the wire width of the
// ids.ServiceID/ids.ConnID fields they mirror; Context carries no identity
// information, only a short diagnostic string.
type ConnectionError struct {
	Variant Variant `cbor:"variant"`
	Sid     *uint64 `cbor:"sid,omitempty"`
	Cid     *uint64 `cbor:"cid,omitempty"`
	Context string  `cbor:"context,omitempty"`
}

func (e *ConnectionError) Error() string {
	s := "remote: " + e.Variant.String()
	if e.Sid != nil {
		s += fmt.Sprintf(" sid=%d", *e.Sid)
	}
	if e.Cid != nil {
		s += fmt.Sprintf(" cid=%d", *e.Cid)
	}
	if e.Context != "" {
		s += ": " + e.Context
	}
	return s
}

func (e *ConnectionError) Marshal() ([]byte, error) { return cbor.Marshal(e) }

func UnmarshalConnectionError(b []byte) (*ConnectionError, error) {
	var e ConnectionError
	if err := cbor.Unmarshal(b, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// ToWire strips a PeerErr down to the ConnectionError subset that is
// actually safe to send to the remote, per the propagation table in spec
// §7. Kinds with no wire representation (ConnectionClosed, PeerGone,
// Spawn-locally-recoverable, etc.) map to InternalServerError so the
// remote always gets a frame, never a dropped connection with no
// explanation, unless the caller has already decided not to report.
func (e *PeerErr) ToWire() *ConnectionError {
	out := &ConnectionError{Context: e.Context}
	if e.Sid != nil {
		v := uint64(*e.Sid)
		out.Sid = &v
	}
	if e.Cid != nil {
		v := uint64(*e.Cid)
		out.Cid = &v
	}
	switch e.Kind {
	case KindDeserialize:
		out.Variant = VariantDeserialize
	case KindWireFormat:
		out.Variant = VariantDeserializeWireFormat
	case KindUnknownService:
		out.Variant = VariantUnknownService
	case KindTimeout:
		out.Variant = VariantTimeout
	default:
		out.Variant = VariantInternalServerError
		out.Context = "" // never leak internal detail for generic faults
	}
	return out
}
