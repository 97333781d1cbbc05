// Package svcmap implements the dispatch multiplexer layer: a Local
// (generated) service map, a RelayMap that forwards to an upstream peer,
// and a PubSub map that fans out to many subscribers. All three satisfy
// the common ServiceMap contract in spec §4.3.4.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package svcmap

import (
	"context"
	"errors"

	"github.com/aisremote/peerlink/ids"
	"github.com/aisremote/peerlink/wire"
)

var (
	ErrUnknownService = errors.New("svcmap: unknown service")
	ErrDeserialize    = errors.New("svcmap: could not deserialize payload")
	ErrSerialize      = errors.New("svcmap: could not serialize response")
	ErrHandlerDead    = errors.New("svcmap: handler panicked or its mailbox is closed")
	ErrPubSubNoCall   = errors.New("svcmap: pubsub maps do not support call")
	ErrRelayGone      = errors.New("svcmap: relay upstream is gone")
)

// ResponseKind distinguishes a one-way dispatch's trivial outcome from a
// call's framed reply.
type ResponseKind int

const (
	ResponseNothing ResponseKind = iota
	ResponseCallResponse
)

// Response is what a ServiceMap dispatch yields, mirrored back into the
// owning peer's mailbox as a CallResponse message when non-trivial.
type Response struct {
	Kind  ResponseKind
	Frame wire.WireFormat
}

// Upstream is the peer package's view from the relay/pub-sub maps' side,
// kept as an interface here to avoid an import cycle: svcmap must not
// depend on peer, since peer depends on svcmap for dispatch.
type Upstream interface {
	// Call forwards f as a new call on the upstream connection and blocks
	// for its response frame (or translates the upstream's failure).
	Call(ctx context.Context, f wire.WireFormat) (wire.WireFormat, error)
	// Send forwards f as a one-way message; f is not retained afterwards.
	Send(ctx context.Context, f wire.WireFormat) error
	// Done is closed when the upstream peer terminates.
	Done() <-chan struct{}
	ID() string
	Name() string
}

// ServiceMap is the common contract every dispatch multiplexer satisfies.
type ServiceMap interface {
	// Services yields the set of ServiceIDs this map handles.
	Services() map[ids.ServiceID]struct{}
	SendService(ctx context.Context, f wire.WireFormat) (Response, error)
	CallService(ctx context.Context, f wire.WireFormat) (Response, error)
}
