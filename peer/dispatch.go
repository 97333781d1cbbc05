package peer

import (
	"errors"

	"github.com/aisremote/peerlink/rerrs"
	"github.com/aisremote/peerlink/svcmap"
	"github.com/aisremote/peerlink/wire"
)

// handleIncomingSend looks up the service map for the frame's sid and
// spawns a dispatch task in the nursery; the listener never blocks on
// this (spec §4.6).
func (p *Peer) handleIncomingSend(m incomingSendMsg) {
	p.metrics.incSendIncoming()
	sm, _, ok := p.lookupServiceMap(m.frame.Sid())
	if !ok {
		p.events.Publish(PeerEvent{Kind: EventError, Err: rerrs.New(rerrs.KindUnknownService,
			rerrs.WithPeer(p.id, p.name), rerrs.WithSid(m.frame.Sid()), rerrs.WithCid(m.frame.Cid()))})
		return
	}
	frame := m.frame
	p.nursery.Go(func() error {
		if _, err := sm.SendService(p.nurseryCtx, frame); err != nil {
			p.events.Publish(PeerEvent{Kind: EventError, Err: p.classifyDispatchErr(err, frame)})
		}
		return nil
	})
}

// handleIncomingCall looks up the service map, spawns the dispatch task,
// and arranges for its eventual response (or failure) to flow back
// through callResponseMsg so the sink write and permit release stay on
// the mailbox goroutine.
func (p *Peer) handleIncomingCall(m incomingCallMsg) {
	p.metrics.incCallIncoming()
	sm, wantsBP, ok := p.lookupServiceMap(m.frame.Sid())
	if !ok {
		cid := m.frame.Cid()
		pe := rerrs.New(rerrs.KindUnknownService, rerrs.WithPeer(p.id, p.name),
			rerrs.WithSid(m.frame.Sid()), rerrs.WithCid(cid))
		p.events.Publish(PeerEvent{Kind: EventError, Err: pe})
		resp := wire.NewConnectionError(cid, marshalWireErr(pe))
		if err := p.writeFrame(resp); err != nil {
			p.log.Warningf("writing UnknownService response: %v", err)
		}
		if m.heldPermit {
			p.releasePermit()
		}
		return
	}

	frame := m.frame
	cid := frame.Cid()
	heldPermit := m.heldPermit
	if heldPermit && !wantsBP {
		// the listener always acquires a permit when backpressure is
		// configured at all; a map that doesn't request metering gets its
		// permit released immediately rather than held through dispatch.
		p.releasePermit()
		heldPermit = false
	}
	p.nursery.Go(func() error {
		resp, err := sm.CallService(p.nurseryCtx, frame)
		var out wire.WireFormat
		if err != nil {
			pe := p.classifyDispatchErr(err, frame)
			p.events.Publish(PeerEvent{Kind: EventError, Err: pe})
			out = wire.NewConnectionError(cid, marshalWireErr(pe))
		} else {
			out = resp.Frame
			out.SetCid(cid) // preserve the original correlation id, even across a relay hop
		}
		select {
		case p.mailbox <- callResponseMsg{frame: out, permitHeld: heldPermit}:
		case <-p.closeDone:
		}
		return nil
	})
}

func (p *Peer) handleCallResponse(m callResponseMsg) {
	if !p.closed {
		if err := p.writeFrame(m.frame); err != nil {
			p.log.Warningf("writing call response: %v", err)
		}
	}
	if m.permitHeld {
		p.releasePermit()
	}
}

func (p *Peer) releasePermit() {
	p.bp.Release()
	p.metrics.setBackpressureInflight(int(p.bp.Inflight()))
}

// classifyDispatchErr maps a dispatch-time error from a ServiceMap onto
// the PeerErr taxonomy, per the propagation table in spec §7: all of
// these are "recover locally, report to remote and to observers, keep
// the connection open."
func (p *Peer) classifyDispatchErr(err error, f wire.WireFormat) *rerrs.PeerErr {
	kind := rerrs.KindActorRuntime
	switch {
	case errors.Is(err, svcmap.ErrUnknownService):
		kind = rerrs.KindUnknownService
	case errors.Is(err, svcmap.ErrDeserialize):
		kind = rerrs.KindDeserialize
	case errors.Is(err, svcmap.ErrSerialize):
		kind = rerrs.KindSerialize
	case errors.Is(err, svcmap.ErrHandlerDead):
		kind = rerrs.KindHandlerDead
	case errors.Is(err, svcmap.ErrRelayGone):
		kind = rerrs.KindRelayGone
	case errors.Is(err, svcmap.ErrPubSubNoCall):
		kind = rerrs.KindPubSubNoCall
	}
	return rerrs.New(kind, rerrs.WithPeer(p.id, p.name), rerrs.WithSid(f.Sid()), rerrs.WithCid(f.Cid()), rerrs.WithCause(err))
}

// marshalWireErr strips pe down to its wire-safe ConnectionError and
// serializes it; a marshal failure (practically unreachable for this
// fixed, small struct) yields an empty payload rather than panicking.
func marshalWireErr(pe *rerrs.PeerErr) []byte {
	b, err := pe.ToWire().Marshal()
	if err != nil {
		return nil
	}
	return b
}
