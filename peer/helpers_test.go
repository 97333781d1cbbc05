package peer_test

import (
	"context"
	"net"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/aisremote/peerlink/config"
	"github.com/aisremote/peerlink/ids"
	"github.com/aisremote/peerlink/peer"
	"github.com/aisremote/peerlink/svcmap"
)

// connectedPeers wires two peers together over an in-memory, full-duplex
// net.Conn pair (net.Pipe), mirroring how the spec's scenarios assume an
// already-connected byte stream.
func connectedPeers(optsA, optsB []config.Option) (*peer.Peer, *peer.Peer) {
	a, b := net.Pipe()
	pa := peer.New(a, optsA...)
	pb := peer.New(b, optsB...)
	return pa, pb
}

type addReq struct {
	N int `cbor:"n"`
}

// newSumLocal mirrors the Sum accumulator used by the spec's basic-call
// scenario and by svcmap/local_test.go: Add accumulates, Show returns the
// running total.
func newSumLocal(namespace string, sum *int) *svcmap.Local {
	l := svcmap.NewLocal(namespace)
	svcmap.RegisterCall(l, "Add", func(_ context.Context, req addReq) (int, error) {
		*sum += req.N
		return *sum, nil
	})
	svcmap.RegisterCall(l, "Show", func(_ context.Context, _ struct{}) (int, error) {
		return *sum, nil
	})
	return l
}

func addSid() ids.ServiceID  { return ids.ServiceIDFromSeed("Add", "sum") }
func showSid() ids.ServiceID { return ids.ServiceIDFromSeed("Show", "sum") }

func encodeAdd(n int) []byte {
	b, _ := cbor.Marshal(addReq{N: n})
	return b
}

func decodeInt(b []byte) int {
	var v int
	_ = cbor.Unmarshal(b, &v)
	return v
}

func encodeEmpty() []byte {
	b, _ := cbor.Marshal(struct{}{})
	return b
}

const testTimeout = 2 * time.Second
