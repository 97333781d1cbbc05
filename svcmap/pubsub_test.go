package svcmap_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/aisremote/peerlink/ids"
	"github.com/aisremote/peerlink/svcmap"
	"github.com/aisremote/peerlink/wire"
)

var _ = Describe("PubSub", func() {
	It("fans three sends out to three subscribers", func() {
		ps := svcmap.NewPubSub()
		sid := ids.ServiceIDFromSeed("Add", "sum")
		subs := []*fakeUpstream{
			newFakeUpstream("s1", "sub1"),
			newFakeUpstream("s2", "sub2"),
			newFakeUpstream("s3", "sub3"),
		}
		for _, s := range subs {
			ps.Subscribe(sid, s)
		}

		for i := 0; i < 3; i++ {
			f := wire.New(sid, ids.NullConnID, []byte("add 5"))
			_, err := ps.SendService(context.Background(), f)
			Expect(err).NotTo(HaveOccurred())
		}

		for _, s := range subs {
			Expect(s.sentCount()).To(Equal(3))
		}
	})

	It("rejects calls with ErrPubSubNoCall", func() {
		ps := svcmap.NewPubSub()
		f := wire.New(ids.ServiceID(1), 1, nil)
		_, err := ps.CallService(context.Background(), f)
		Expect(err).To(MatchError(svcmap.ErrPubSubNoCall))
	})

	It("a failing subscriber does not affect its siblings", func() {
		ps := svcmap.NewPubSub()
		sid := ids.ServiceIDFromSeed("Add", "sum")
		ok := newFakeUpstream("ok", "ok")
		gone := newFakeUpstream("gone", "gone")
		gone.close()
		ps.Subscribe(sid, ok)
		ps.Subscribe(sid, gone)

		f := wire.New(sid, ids.NullConnID, []byte("x"))
		_, err := ps.SendService(context.Background(), f)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok.sentCount()).To(Equal(1))
	})

	It("unsubscribe removes a subscriber from future fan-out", func() {
		ps := svcmap.NewPubSub()
		sid := ids.ServiceIDFromSeed("Add", "sum")
		s := newFakeUpstream("s1", "sub1")
		ps.Subscribe(sid, s)
		ps.Unsubscribe(sid, s.ID())

		f := wire.New(sid, ids.NullConnID, []byte("x"))
		_, err := ps.SendService(context.Background(), f)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.sentCount()).To(Equal(0))
	})
})
