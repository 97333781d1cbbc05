package peer

import (
	"bufio"
	"errors"
	"io"

	"github.com/aisremote/peerlink/rerrs"
	"github.com/aisremote/peerlink/wire"
)

// listener owns the read half of the stream and never performs handler
// dispatch itself (spec §4.6): it only classifies frames and forwards
// them to the peer mailbox.
type listener struct {
	p       *Peer
	decoder *wire.Decoder
	r       *bufio.Reader
}

func newListener(p *Peer) *listener {
	return &listener{
		p:       p,
		decoder: wire.NewDecoder(p.cfg.MaxFrameSize),
		r:       bufio.NewReader(p.conn),
	}
}

func (l *listener) run() {
	for {
		frame, err := l.decoder.Decode(l.r)
		if err != nil {
			l.handleDecodeErr(err)
			return
		}
		if !l.dispatch(frame) {
			return
		}
	}
}

func (l *listener) handleDecodeErr(err error) {
	p := l.p
	if errors.Is(err, io.EOF) {
		select {
		case p.mailbox <- closeConnectionMsg{remote: true, reason: "stream ended"}:
		case <-p.closeDone:
		}
		return
	}
	pe := rerrs.New(rerrs.KindWireFormat, rerrs.WithPeer(p.id, p.name), rerrs.WithCause(err))
	select {
	case p.mailbox <- requestErrorMsg{err: pe, fatal: true}:
	case <-p.closeDone:
	}
}

// dispatch classifies frame by kind, acquires a backpressure permit for
// IncomingCall frames before handing the message to the mailbox (spec
// §4.4: "before the listener accepts the frame into the peer mailbox"),
// and forwards. Returns false when the peer mailbox is gone and the
// listener should stop.
func (l *listener) dispatch(frame wire.WireFormat) bool {
	p := l.p
	switch frame.Kind() {
	case wire.KindIncomingCall:
		if p.bp != nil {
			if err := p.bp.Acquire(p.nurseryCtx); err != nil {
				select {
				case p.mailbox <- requestErrorMsg{
					err:   rerrs.New(rerrs.KindBackpressureClosed, rerrs.WithPeer(p.id, p.name)),
					fatal: true,
				}:
				case <-p.closeDone:
				}
				return false
			}
			p.metrics.setBackpressureInflight(int(p.bp.Inflight()))
		}
		return l.send(incomingCallMsg{frame: frame, heldPermit: p.bp != nil})
	case wire.KindIncomingSend:
		return l.send(incomingSendMsg{frame: frame})
	case wire.KindCallResponse:
		return l.send(incomingCallResponseMsg{frame: frame})
	case wire.KindConnectionError:
		return l.send(incomingConnErrMsg{frame: frame})
	default:
		return true
	}
}

func (l *listener) send(msg any) bool {
	select {
	case l.p.mailbox <- msg:
		return true
	case <-l.p.closeDone:
		l.p.log.Infof("peer mailbox closed; listener terminating")
		return false
	}
}
