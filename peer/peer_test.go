package peer_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/aisremote/peerlink/config"
	"github.com/aisremote/peerlink/ids"
	"github.com/aisremote/peerlink/peer"
	"github.com/aisremote/peerlink/rerrs"
	"github.com/aisremote/peerlink/svcmap"
)

var _ = Describe("Peer end-to-end", func() {
	var (
		client, server *peer.Peer
		sum            int
	)

	BeforeEach(func() {
		sum = 0
		client, server = connectedPeers(nil, nil)
		Expect(server.RegisterService(context.Background(), newSumLocal("sum", &sum), false)).To(Succeed())
	})

	AfterEach(func() {
		_ = client.Close(context.Background(), "test teardown")
		_ = server.Close(context.Background(), "test teardown")
	})

	It("scenario 1: two Add(5) then Show returns cbor(10)", func() {
		ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
		defer cancel()

		for i := 0; i < 2; i++ {
			resp, err := client.CallSid(ctx, addSid(), encodeAdd(5))
			Expect(err).NotTo(HaveOccurred())
			Expect(decodeInt(resp.Msg())).To(Equal((i + 1) * 5))
		}

		resp, err := client.CallSid(ctx, showSid(), encodeAdd(0))
		Expect(err).NotTo(HaveOccurred())
		Expect(decodeInt(resp.Msg())).To(Equal(10))
	})

	It("scenario 2: unknown service keeps the connection open", func() {
		ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
		defer cancel()

		sub := client.Events()
		defer sub.Unsubscribe()

		_, err := client.CallSid(ctx, ids.ServiceID(1), nil)
		Expect(err).To(HaveOccurred())
		Expect(rerrs.IsKind(err, rerrs.KindRemote)).To(BeTrue())

		// connection stays open: a subsequent valid call still succeeds.
		resp, err := client.CallSid(ctx, addSid(), encodeAdd(5))
		Expect(err).NotTo(HaveOccurred())
		Expect(decodeInt(resp.Msg())).To(Equal(5))
	})

	It("scenario 3: malformed payload yields Deserialize, connection stays open", func() {
		ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
		defer cancel()

		_, err := client.CallSid(ctx, addSid(), []byte{0x03, 0x03})
		Expect(err).To(HaveOccurred())

		resp, err := client.CallSid(ctx, addSid(), encodeAdd(5))
		Expect(err).NotTo(HaveOccurred())
		Expect(decodeInt(resp.Msg())).To(Equal(5))
	})

	It("scenario 8: send after the remote closes yields ConnectionClosed and ClosedByRemote", func() {
		sub := client.Events()
		defer sub.Unsubscribe()

		Expect(server.Close(context.Background(), "server shutting down")).To(Succeed())

		Eventually(func() peer.EventKind {
			select {
			case ev := <-sub.Events:
				return ev.Kind
			default:
				return -1
			}
		}, time.Second).Should(Equal(peer.EventClosedByRemote))

		ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
		defer cancel()
		_, err := client.CallSid(ctx, addSid(), encodeAdd(5))
		Expect(err).To(HaveOccurred())
		Expect(rerrs.IsKind(err, rerrs.KindConnectionClosed)).To(BeTrue())
	})
})

var _ = Describe("Timeout", func() {
	It("scenario 5: a slow handler yields Timeout, late response dropped", func() {
		client, server := connectedPeers(
			[]config.Option{config.WithCallTimeout(10 * time.Millisecond)},
			nil,
		)
		defer func() {
			_ = client.Close(context.Background(), "teardown")
			_ = server.Close(context.Background(), "teardown")
		}()

		l := svcmap.NewLocal("slow")
		slowSid := svcmap.RegisterCall(l, "Slow", func(_ context.Context, _ struct{}) (struct{}, error) {
			time.Sleep(100 * time.Millisecond)
			return struct{}{}, nil
		})
		Expect(server.RegisterService(context.Background(), l, false)).To(Succeed())

		ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
		defer cancel()
		_, err := client.CallSid(ctx, slowSid, encodeEmpty())
		Expect(err).To(HaveOccurred())
		Expect(rerrs.IsKind(err, rerrs.KindTimeout)).To(BeTrue())

		time.Sleep(150 * time.Millisecond) // let the late response arrive and be dropped, not crash
	})
})
