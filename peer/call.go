package peer

import (
	"context"
	"time"

	"github.com/aisremote/peerlink/ids"
	"github.com/aisremote/peerlink/rerrs"
	"github.com/aisremote/peerlink/wire"
)

// Call issues f as a new outgoing call: cid is assigned here regardless
// of whatever cid f already carries, the frame is written to the sink,
// and the call blocks for the correlated response or ctx's cancellation.
// This is the Upstream.Call signature, so a *Peer can itself serve as a
// relay's upstream.
func (p *Peer) Call(ctx context.Context, f wire.WireFormat) (wire.WireFormat, error) {
	submit := make(chan callSubmission, 1)
	select {
	case p.mailbox <- callMsg{frame: f, submit: submit}:
	case <-p.closeDone:
		return wire.WireFormat{}, rerrs.New(rerrs.KindConnectionClosed, rerrs.WithPeer(p.id, p.name))
	case <-ctx.Done():
		return wire.WireFormat{}, ctx.Err()
	}

	var sub callSubmission
	select {
	case sub = <-submit:
	case <-p.closeDone:
		return wire.WireFormat{}, rerrs.New(rerrs.KindConnectionClosed, rerrs.WithPeer(p.id, p.name))
	case <-ctx.Done():
		return wire.WireFormat{}, ctx.Err()
	}
	if sub.err != nil {
		return wire.WireFormat{}, sub.err
	}

	select {
	case out := <-sub.waiter:
		return out.frame, out.err
	case <-ctx.Done():
		return wire.WireFormat{}, ctx.Err()
	}
}

// Send issues f as a one-way message and blocks only until it has been
// written to the sink (or rejected). This is the Upstream.Send
// signature.
func (p *Peer) Send(ctx context.Context, f wire.WireFormat) error {
	ack := make(chan error, 1)
	select {
	case p.mailbox <- sendMsg{frame: f, ack: ack}:
	case <-p.closeDone:
		return rerrs.New(rerrs.KindConnectionClosed, rerrs.WithPeer(p.id, p.name))
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-ack:
		return err
	case <-p.closeDone:
		return rerrs.New(rerrs.KindConnectionClosed, rerrs.WithPeer(p.id, p.name))
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CallSid and SendSid are the convenience entry points for local
// callers that only have a ServiceID and a payload, not a pre-built
// frame.
func (p *Peer) CallSid(ctx context.Context, sid ids.ServiceID, payload []byte) (wire.WireFormat, error) {
	return p.Call(ctx, wire.New(sid, ids.NullConnID, payload))
}

func (p *Peer) SendSid(ctx context.Context, sid ids.ServiceID, payload []byte) error {
	return p.Send(ctx, wire.New(sid, ids.NullConnID, payload))
}

// handleCall implements the Outgoing Call algorithm, spec §4.5 steps 1-6.
// Runs only on the mailbox goroutine.
func (p *Peer) handleCall(m callMsg) {
	if p.closed {
		m.submit <- callSubmission{err: rerrs.New(rerrs.KindConnectionClosed, rerrs.WithPeer(p.id, p.name))}
		return
	}

	cid := p.counter.Next(func(c ids.ConnID) bool {
		_, pending := p.pending[c]
		return pending
	})
	m.frame.SetCid(cid)

	if err := p.writeFrame(m.frame); err != nil {
		m.submit <- callSubmission{err: err}
		return
	}

	p.metrics.incCallStarted()
	waiter := make(chan callOutcome, 1)
	p.pending[cid] = waiter
	p.timers[cid] = time.AfterFunc(p.cfg.CallTimeout, func() {
		select {
		case p.mailbox <- timeoutMsg{cid: cid}:
		case <-p.closeDone:
		}
	})
	m.submit <- callSubmission{waiter: waiter}
}

func (p *Peer) handleSend(m sendMsg) {
	if p.closed {
		m.ack <- rerrs.New(rerrs.KindConnectionClosed, rerrs.WithPeer(p.id, p.name))
		return
	}
	m.ack <- p.writeFrame(m.frame)
}

// handleTimeout resolves cid's waiter with Timeout if it is still
// pending; a response that arrives afterwards is dropped with a warning
// by handleIncomingCallResponse, since the entry is gone by then.
func (p *Peer) handleTimeout(m timeoutMsg) {
	waiter, ok := p.pending[m.cid]
	if !ok {
		return // already resolved by a response, a ConnectionError, or shutdown
	}
	delete(p.pending, m.cid)
	delete(p.timers, m.cid)
	p.metrics.incCallTimedOut()
	waiter <- callOutcome{err: rerrs.New(rerrs.KindTimeout, rerrs.WithPeer(p.id, p.name), rerrs.WithCid(m.cid))}
}

func (p *Peer) handleIncomingCallResponse(m incomingCallResponseMsg) {
	cid := m.frame.Cid()
	waiter, ok := p.pending[cid]
	if !ok {
		p.log.Warningf("response for unknown or already-resolved cid=%s (likely timed out)", cid)
		return
	}
	delete(p.pending, cid)
	if t, ok := p.timers[cid]; ok {
		t.Stop()
		delete(p.timers, cid)
	}
	p.metrics.incCallSucceeded()
	waiter <- callOutcome{frame: m.frame}
}

func (p *Peer) handleIncomingConnErr(m incomingConnErrMsg) {
	connErr, err := rerrs.UnmarshalConnectionError(m.frame.Msg())
	if err != nil {
		p.log.Warningf("malformed ConnectionError frame: %v", err)
		return
	}
	cid := m.frame.Cid()
	if cid.IsNull() {
		p.events.Publish(PeerEvent{Kind: EventRemoteError, Remote: connErr})
		return
	}
	waiter, ok := p.pending[cid]
	if !ok {
		p.events.Publish(PeerEvent{Kind: EventRemoteError, Remote: connErr})
		return
	}
	delete(p.pending, cid)
	if t, ok := p.timers[cid]; ok {
		t.Stop()
		delete(p.timers, cid)
	}
	p.metrics.incCallFailed()
	waiter <- callOutcome{err: rerrs.New(rerrs.KindRemote, rerrs.WithPeer(p.id, p.name), rerrs.WithCid(cid), rerrs.WithCause(connErr))}
}
