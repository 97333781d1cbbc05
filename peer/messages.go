package peer

import (
	"github.com/aisremote/peerlink/ids"
	"github.com/aisremote/peerlink/rerrs"
	"github.com/aisremote/peerlink/svcmap"
	"github.com/aisremote/peerlink/wire"
)

// Every type below is a mailbox message, per the table in spec §4.5. The
// peer's run loop type-switches on these; they are only constructed inside
// this package, by the public methods in call.go, close.go and peer.go, by
// the listener in listener.go, and by dispatch and timer tasks.

// callMsg is the local-client "issue an outgoing call" request. submit
// carries back either the pending waiter or a synchronous failure
// (ConnectionClosed, sink write error).
type callMsg struct {
	frame  wire.WireFormat
	submit chan callSubmission
}

type callSubmission struct {
	waiter <-chan callOutcome
	err    error
}

type callOutcome struct {
	frame wire.WireFormat
	err   error
}

// sendMsg is the local-client "issue a one-way send" request.
type sendMsg struct {
	frame wire.WireFormat
	ack   chan error
}

// callResponseMsg carries a service-map dispatch task's completed
// response frame back to the mailbox for writing to the sink, and
// releases one backpressure permit if the originating call held one.
type callResponseMsg struct {
	frame      wire.WireFormat
	permitHeld bool
}

// incomingSendMsg is what the listener forwards for a IncomingSend frame.
type incomingSendMsg struct {
	frame wire.WireFormat
}

// incomingCallMsg is what the listener forwards for an IncomingCall
// frame; heldPermit is true when a backpressure permit was acquired
// before this message was sent, and must be released once the dispatch
// task completes.
type incomingCallMsg struct {
	frame      wire.WireFormat
	heldPermit bool
}

// incomingCallResponseMsg is what the listener forwards for a
// CallResponse frame (ServiceID=full) arriving from the remote.
type incomingCallResponseMsg struct {
	frame wire.WireFormat
}

// incomingConnErrMsg is what the listener forwards for a
// ConnectionError frame (ServiceID=null).
type incomingConnErrMsg struct {
	frame wire.WireFormat
}

// timeoutMsg is scheduled by the outgoing-call algorithm; if cid is
// still pending when it fires, the waiter is resolved with Timeout.
type timeoutMsg struct {
	cid ids.ConnID
}

// requestErrorMsg is raised internally by the listener (on a codec error
// or a failed backpressure acquire) and asks the mailbox to translate,
// report, and possibly close.
type requestErrorMsg struct {
	err       *rerrs.PeerErr
	cid       ids.ConnID // NullConnID if unsolicited
	fatal     bool       // true closes the connection after reporting
}

// closeConnectionMsg requests (or reports) shutdown. done, if non-nil,
// is closed once shutdown has fully run so Close can block on it.
type closeConnectionMsg struct {
	remote bool
	reason string
	done   chan struct{}
}

// registerServiceMsg installs a ServiceMap for a declared set of
// ServiceIDs. Serializing registration through the mailbox resolves the
// spec's open question about racing in-flight dispatch against late
// registration (§9): registration always happens-before any dispatch
// decision made afterwards in mailbox order.
type registerServiceMsg struct {
	m            svcmap.ServiceMap
	backpressure bool
	done         chan struct{}
}
