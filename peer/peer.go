// Package peer implements the per-connection actor: a single-consumer
// mailbox that owns an outgoing sink, a pending-response table, zero or
// more installed service maps, an optional backpressure gate, and an
// event broadcaster, per spec §4.5.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package peer

import (
	"bufio"
	"context"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aisremote/peerlink/config"
	"github.com/aisremote/peerlink/ids"
	"github.com/aisremote/peerlink/internal/debug"
	"github.com/aisremote/peerlink/rerrs"
	"github.com/aisremote/peerlink/svcmap"
	"github.com/aisremote/peerlink/wire"
)

const mailboxDepth = 256

type serviceMapEntry struct {
	m            svcmap.ServiceMap
	backpressure bool
}

// Peer is a per-connection actor. Construct with New; all exported
// methods are mailbox-serialized and safe to call from any goroutine.
type Peer struct {
	id, name string
	cfg      config.Config
	log      peerLog
	metrics  *metrics

	conn    io.ReadWriteCloser
	sink    *bufio.Writer
	encoder *wire.Encoder

	mailbox chan any

	pending map[ids.ConnID]chan callOutcome
	timers  map[ids.ConnID]*time.Timer
	counter ids.Counter

	serviceMaps []serviceMapEntry
	bp          *Backpressure

	events *Broadcaster

	nursery       *errgroup.Group
	nurseryCtx    context.Context
	nurseryCancel context.CancelFunc

	closed    bool
	closeDone chan struct{}
}

// New constructs a peer around an already-connected, bidirectional byte
// stream and starts its mailbox and listener goroutines. The caller owns
// conn only until this call returns; afterwards the peer owns it
// exclusively (spec §5, "Outgoing sink: owned exclusively by the peer
// mailbox").
func New(conn io.ReadWriteCloser, opts ...config.Option) *Peer {
	cfg := config.New(opts...)
	nurseryCtx, cancel := context.WithCancel(context.Background())
	group, gctx := errgroup.WithContext(nurseryCtx)

	p := &Peer{
		id:            cfg.PeerID,
		name:          cfg.PeerName,
		cfg:           cfg,
		log:           newPeerLog(cfg.PeerName),
		conn:          conn,
		sink:          bufio.NewWriter(conn),
		encoder:       wire.NewEncoder(cfg.MaxFrameSize),
		mailbox:       make(chan any, mailboxDepth),
		pending:       map[ids.ConnID]chan callOutcome{},
		timers:        map[ids.ConnID]*time.Timer{},
		bp:            NewBackpressure(cfg.Backpressure),
		events:        NewBroadcaster(),
		nursery:       group,
		nurseryCtx:    gctx,
		nurseryCancel: cancel,
		closeDone:     make(chan struct{}),
	}

	go p.run()
	go newListener(p).run()
	return p
}

// ID and Name identify this peer; they satisfy svcmap.Upstream alongside
// Call/Send/Done below, so a Peer can itself be used as a relay's
// upstream.
func (p *Peer) ID() string   { return p.id }
func (p *Peer) Name() string { return p.name }

// Done is closed once this peer has fully shut down (spec §4.7: used by
// a relay map to detect upstream disappearance and emit
// RelayDisappeared).
func (p *Peer) Done() <-chan struct{} { return p.closeDone }

// Events returns a new subscription to this peer's PeerEvent stream.
func (p *Peer) Events() *Subscription { return p.events.Subscribe() }

// RegisterService installs m, declaring whether its handlers should be
// metered by the backpressure gate. Registration is serialized through
// the mailbox (spec §9 Open Question resolution: late registration never
// races an in-flight dispatch decision, since both execute in mailbox
// order).
func (p *Peer) RegisterService(ctx context.Context, m svcmap.ServiceMap, backpressure bool) error {
	done := make(chan struct{})
	msg := registerServiceMsg{m: m, backpressure: backpressure, done: done}
	select {
	case p.mailbox <- msg:
	case <-p.closeDone:
		return rerrs.New(rerrs.KindConnectionClosed, rerrs.WithPeer(p.id, p.name))
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the mailbox loop: the sole owner of sink, pending, timers,
// serviceMaps and closed, per the single-consumer actor model of §5.
func (p *Peer) run() {
	for raw := range p.mailbox {
		switch m := raw.(type) {
		case callMsg:
			p.handleCall(m)
		case sendMsg:
			p.handleSend(m)
		case callResponseMsg:
			p.handleCallResponse(m)
		case incomingSendMsg:
			p.handleIncomingSend(m)
		case incomingCallMsg:
			p.handleIncomingCall(m)
		case incomingCallResponseMsg:
			p.handleIncomingCallResponse(m)
		case incomingConnErrMsg:
			p.handleIncomingConnErr(m)
		case timeoutMsg:
			p.handleTimeout(m)
		case requestErrorMsg:
			p.handleRequestError(m)
			if m.fatal {
				return // handleRequestError already ran the close algorithm
			}
		case registerServiceMsg:
			p.serviceMaps = append(p.serviceMaps, serviceMapEntry{m: m.m, backpressure: m.backpressure})
			close(m.done)
		case closeConnectionMsg:
			p.handleClose(m)
			return // drop the self-reference: mailbox terminates (spec §4.5)
		default:
			p.log.Errorf("unknown mailbox message %T", raw)
		}
	}
}

// writeFrame serializes f to the sink. Must only be called from the
// mailbox goroutine.
func (p *Peer) writeFrame(f wire.WireFormat) error {
	debug.Assert(!p.closed, "writeFrame called on a closed peer")
	if err := p.encoder.Encode(p.sink, f); err != nil {
		return rerrs.New(rerrs.KindWireFormat, rerrs.WithPeer(p.id, p.name), rerrs.WithCause(err))
	}
	return nil
}

// lookupServiceMap returns the most recently installed map claiming sid
// (last registration wins), and whether it requests backpressure metering.
func (p *Peer) lookupServiceMap(sid ids.ServiceID) (svcmap.ServiceMap, bool, bool) {
	for i := len(p.serviceMaps) - 1; i >= 0; i-- {
		entry := p.serviceMaps[i]
		if _, ok := entry.m.Services()[sid]; ok {
			return entry.m, entry.backpressure, true
		}
	}
	return nil, false, false
}
