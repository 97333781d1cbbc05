// Package rerrs implements the two error universes of the runtime: PeerErr,
// the rich local error with peer/service/connection context, and
// ConnectionError, the PII-stripped subset actually serialized to the
// remote peer.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package rerrs

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/aisremote/peerlink/ids"
)

// Kind enumerates PeerErr variants, per spec §7.
type Kind int

const (
	KindConnectionClosed Kind = iota
	KindDeserialize
	KindHandlerDead
	KindNoHandler
	KindPeerGone
	KindRelayGone
	KindRemote
	KindSerialize
	KindSpawn
	KindActorRuntime
	KindTimeout
	KindUnknownService
	KindWireFormat
	KindPubSubNoCall
	KindBackpressureClosed
)

func (k Kind) String() string {
	switch k {
	case KindConnectionClosed:
		return "ConnectionClosed"
	case KindDeserialize:
		return "Deserialize"
	case KindHandlerDead:
		return "HandlerDead"
	case KindNoHandler:
		return "NoHandler"
	case KindPeerGone:
		return "PeerGone"
	case KindRelayGone:
		return "RelayGone"
	case KindRemote:
		return "Remote"
	case KindSerialize:
		return "Serialize"
	case KindSpawn:
		return "Spawn"
	case KindActorRuntime:
		return "ActorRuntime"
	case KindTimeout:
		return "Timeout"
	case KindUnknownService:
		return "UnknownService"
	case KindWireFormat:
		return "WireFormat"
	case KindPubSubNoCall:
		return "PubSubNoCall"
	case KindBackpressureClosed:
		return "BackpressureClosed"
	default:
		return "Unknown"
	}
}

// PeerErr carries rich, local-only context: never sent to the remote as-is
// (see ToWire), only observed by this process's caller or event
// subscribers.
type PeerErr struct {
	Kind Kind

	PeerID   string
	PeerName string

	Sid *ids.ServiceID
	Cid *ids.ConnID

	RelayID   string
	RelayName string

	Context string
	Inner   error
}

func (e *PeerErr) Error() string {
	s := e.Kind.String()
	if e.PeerName != "" {
		s += fmt.Sprintf(" peer=%s", e.PeerName)
	}
	if e.Sid != nil {
		s += fmt.Sprintf(" sid=%s", e.Sid)
	}
	if e.Cid != nil {
		s += fmt.Sprintf(" cid=%s", e.Cid)
	}
	if e.Context != "" {
		s += ": " + e.Context
	}
	if e.Inner != nil {
		s += ": " + e.Inner.Error()
	}
	return s
}

func (e *PeerErr) Unwrap() error { return e.Inner }

// Option configures a PeerErr at construction, grounded on the teacher's
// functional-options Extra struct pattern (transport.Extra).
type Option func(*PeerErr)

func WithPeer(id, name string) Option {
	return func(e *PeerErr) { e.PeerID, e.PeerName = id, name }
}

func WithSid(sid ids.ServiceID) Option {
	return func(e *PeerErr) { e.Sid = &sid }
}

func WithCid(cid ids.ConnID) Option {
	return func(e *PeerErr) { e.Cid = &cid }
}

func WithRelay(id, name string) Option {
	return func(e *PeerErr) { e.RelayID, e.RelayName = id, name }
}

func WithContext(format string, args ...any) Option {
	return func(e *PeerErr) { e.Context = fmt.Sprintf(format, args...) }
}

func WithCause(err error) Option {
	return func(e *PeerErr) {
		if err != nil {
			e.Inner = errors.WithStack(err)
		}
	}
}

func New(kind Kind, opts ...Option) *PeerErr {
	e := &PeerErr{Kind: kind}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func IsKind(err error, kind Kind) bool {
	var pe *PeerErr
	if errors.As(err, &pe) {
		return pe.Kind == kind
	}
	return false
}
