package svcmap_test

import (
	"context"

	"github.com/fxamacker/cbor/v2"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/aisremote/peerlink/ids"
	"github.com/aisremote/peerlink/svcmap"
	"github.com/aisremote/peerlink/wire"
)

type addReq struct {
	N int `cbor:"n"`
}

var _ = Describe("Local", func() {
	var (
		l   *svcmap.Local
		sum int
	)

	BeforeEach(func() {
		sum = 0
		l = svcmap.NewLocal("sum")
		svcmap.RegisterCall(l, "Add", func(_ context.Context, req addReq) (int, error) {
			sum += req.N
			return sum, nil
		})
		svcmap.RegisterCall(l, "Show", func(_ context.Context, _ struct{}) (int, error) {
			return sum, nil
		})
	})

	It("dispatches two Add calls then a Show call to cbor(10)", func() {
		addSid := ids.ServiceIDFromSeed("Add", "sum")
		showSid := ids.ServiceIDFromSeed("Show", "sum")

		payload, _ := cbor.Marshal(addReq{N: 5})
		for i := 0; i < 2; i++ {
			f := wire.New(addSid, ids.ConnID(i+1), payload)
			resp, err := l.CallService(context.Background(), f)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Kind).To(Equal(svcmap.ResponseCallResponse))
		}

		showPayload, _ := cbor.Marshal(struct{}{})
		f := wire.New(showSid, 99, showPayload)
		resp, err := l.CallService(context.Background(), f)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Frame.Cid()).To(Equal(ids.ConnID(99)))
		Expect(resp.Frame.Sid()).To(Equal(ids.FullServiceID))

		var got int
		Expect(cbor.Unmarshal(resp.Frame.Msg(), &got)).To(Succeed())
		Expect(got).To(Equal(10))
	})

	It("reports ErrUnknownService for an unregistered sid", func() {
		f := wire.New(ids.ServiceID(1), 5, nil)
		_, err := l.CallService(context.Background(), f)
		Expect(err).To(MatchError(svcmap.ErrUnknownService))
	})

	It("reports ErrDeserialize on malformed payload", func() {
		addSid := ids.ServiceIDFromSeed("Add", "sum")
		f := wire.New(addSid, 1, []byte{0x03, 0x03})
		_, err := l.CallService(context.Background(), f)
		Expect(err).To(MatchError(svcmap.ErrDeserialize))
	})

	It("reports ErrHandlerDead on handler panic", func() {
		svcmap.RegisterCall(l, "Boom", func(context.Context, struct{}) (struct{}, error) {
			panic("kaboom")
		})
		sid := ids.ServiceIDFromSeed("Boom", "sum")
		p, _ := cbor.Marshal(struct{}{})
		f := wire.New(sid, 1, p)
		_, err := l.CallService(context.Background(), f)
		Expect(err).To(MatchError(svcmap.ErrHandlerDead))
	})
})
