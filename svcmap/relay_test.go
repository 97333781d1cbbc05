package svcmap_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/aisremote/peerlink/ids"
	"github.com/aisremote/peerlink/svcmap"
	"github.com/aisremote/peerlink/wire"
)

var _ = Describe("Relay", func() {
	var (
		r  *svcmap.Relay
		up *fakeUpstream
		sid ids.ServiceID
	)

	BeforeEach(func() {
		r = svcmap.NewRelay()
		up = newFakeUpstream("p1", "provider")
		sid = ids.ServiceIDFromSeed("Add", "sum")
		r.BindFixed(sid, up)
	})

	It("forwards sends unchanged", func() {
		f := wire.New(sid, ids.NullConnID, []byte("payload"))
		_, err := r.SendService(context.Background(), f)
		Expect(err).NotTo(HaveOccurred())
		Expect(up.sentCount()).To(Equal(1))
	})

	It("forwards calls and returns the upstream's response", func() {
		up.callReply = wire.NewResponse(42, []byte("ten"))
		f := wire.New(sid, 42, []byte("payload"))
		resp, err := r.CallService(context.Background(), f)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Frame.Cid()).To(Equal(ids.ConnID(42)))
		Expect(string(resp.Frame.Msg())).To(Equal("ten"))
	})

	It("translates upstream disappearance into ErrRelayGone", func() {
		up.close()
		f := wire.New(sid, 1, []byte("payload"))
		_, err := r.CallService(context.Background(), f)
		Expect(err).To(MatchError(svcmap.ErrRelayGone))
	})

	It("round-robins across bound upstreams", func() {
		up2 := newFakeUpstream("p2", "provider2")
		rrSid := ids.ServiceIDFromSeed("Show", "sum")
		r.BindRoundRobin(rrSid, []svcmap.Upstream{up, up2})

		for i := 0; i < 4; i++ {
			f := wire.New(rrSid, ids.NullConnID, nil)
			_, err := r.SendService(context.Background(), f)
			Expect(err).NotTo(HaveOccurred())
		}
		Expect(up.sentCount()).To(Equal(2))
		Expect(up2.sentCount()).To(Equal(2))
	})

	It("reports ErrUnknownService for an unbound sid", func() {
		f := wire.New(ids.ServiceID(999), ids.NullConnID, nil)
		_, err := r.SendService(context.Background(), f)
		Expect(err).To(MatchError(svcmap.ErrUnknownService))
	})
})
