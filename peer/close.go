package peer

import (
	"context"
	"time"

	"github.com/aisremote/peerlink/rerrs"
	"github.com/aisremote/peerlink/wire"
)

// handleRequestError translates a local or codec fault into a wire
// ConnectionError (best-effort, the sink may already be unusable),
// publishes a local Error event, and triggers a fatal close when asked.
func (p *Peer) handleRequestError(m requestErrorMsg) {
	p.events.Publish(PeerEvent{Kind: EventError, Err: m.err})
	if !p.closed {
		resp := wire.NewConnectionError(m.cid, marshalWireErr(m.err))
		if err := p.writeFrame(resp); err != nil {
			p.log.Warningf("writing error response: %v", err)
		}
	}
	if m.fatal {
		p.handleClose(closeConnectionMsg{remote: true, reason: m.err.Error()})
	}
}

// Close requests a graceful local shutdown and blocks until it has
// completed. Idempotent: a second call observes the same terminal state
// without emitting a second Closed event (spec invariant "shutdown
// idempotence").
func (p *Peer) Close(ctx context.Context, reason string) error {
	done := make(chan struct{})
	msg := closeConnectionMsg{remote: false, reason: reason, done: done}
	select {
	case p.mailbox <- msg:
	case <-p.closeDone:
		return nil // already shut down
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-p.closeDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// handleClose runs the Shutdown algorithm of spec §4.5. Must only be
// called from the mailbox goroutine, and at most meaningfully once: a
// repeat call (another CloseConnection arriving after closed is already
// true) is a no-op beyond acking done.
func (p *Peer) handleClose(m closeConnectionMsg) {
	if p.closed {
		if m.done != nil {
			close(m.done)
		}
		return
	}
	p.closed = true
	p.metrics.incClosed()

	kind := EventClosed
	if m.remote {
		kind = EventClosedByRemote
	}
	p.events.Publish(PeerEvent{Kind: kind})

	if err := p.sink.Flush(); err != nil {
		p.events.Publish(PeerEvent{Kind: EventError, Err: rerrs.New(rerrs.KindWireFormat,
			rerrs.WithPeer(p.id, p.name), rerrs.WithCause(err))})
	}
	if err := p.conn.Close(); err != nil {
		p.events.Publish(PeerEvent{Kind: EventError, Err: rerrs.New(rerrs.KindWireFormat,
			rerrs.WithPeer(p.id, p.name), rerrs.WithCause(err))})
	}

	p.nurseryCancel()
	waitDone := make(chan struct{})
	go func() {
		_ = p.nursery.Wait()
		close(waitDone)
	}()
	if p.cfg.GracePeriod > 0 {
		select {
		case <-waitDone:
		case <-time.After(p.cfg.GracePeriod):
			p.log.Warningf("grace period elapsed with handler tasks still running; dropping them")
		}
	}

	for cid, waiter := range p.pending {
		waiter <- callOutcome{err: rerrs.New(rerrs.KindConnectionClosed, rerrs.WithPeer(p.id, p.name), rerrs.WithCid(cid))}
	}
	p.pending = nil
	for _, t := range p.timers {
		t.Stop()
	}
	p.timers = nil
	p.serviceMaps = nil

	close(p.closeDone)
	p.events.Close()

	if m.done != nil {
		close(m.done)
	}
}
