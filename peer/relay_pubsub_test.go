package peer_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/aisremote/peerlink/config"
	"github.com/aisremote/peerlink/peer"
	"github.com/aisremote/peerlink/svcmap"
)

var _ = Describe("Relay round-trip", func() {
	// scenario 6: three peers, P (provider), R (relay), C (consumer).
	// R's RelayMap maps {Add, Show} -> P. C calls Add(5), Add(5), Show.
	// Show returns 10.
	It("forwards C's calls through R to P and back", func() {
		sum := 0
		provider, relayToProvider := connectedPeers(nil, nil)
		Expect(provider.RegisterService(context.Background(), newSumLocal("sum", &sum), false)).To(Succeed())

		consumer, relayFromConsumer := connectedPeers(nil, nil)

		relay := svcmap.NewRelay()
		relay.BindFixed(addSid(), relayToProvider)
		relay.BindFixed(showSid(), relayToProvider)
		Expect(relayFromConsumer.RegisterService(context.Background(), relay, false)).To(Succeed())

		defer func() {
			_ = consumer.Close(context.Background(), "teardown")
			_ = relayFromConsumer.Close(context.Background(), "teardown")
			_ = relayToProvider.Close(context.Background(), "teardown")
			_ = provider.Close(context.Background(), "teardown")
		}()

		ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
		defer cancel()

		for i := 0; i < 2; i++ {
			_, err := consumer.CallSid(ctx, addSid(), encodeAdd(5))
			Expect(err).NotTo(HaveOccurred())
		}
		resp, err := consumer.CallSid(ctx, showSid(), encodeEmpty())
		Expect(err).NotTo(HaveOccurred())
		Expect(decodeInt(resp.Msg())).To(Equal(10))
	})
})

var _ = Describe("Pub/sub fan-out", func() {
	// One publisher, three subscribers for service Add. Publisher issues
	// three Add(5) sends. Each subscriber observes exactly three Add
	// messages.
	It("delivers every send to every subscriber", func() {
		publisher, pubHost := connectedPeers(nil, nil)

		var counts [3]atomic.Int64
		var subConns [3]*peer.Peer
		ps := svcmap.NewPubSub()

		for i := 0; i < 3; i++ {
			i := i
			subID := fmt.Sprintf("sub-%d", i)
			subConn, subHost := connectedPeers([]config.Option{config.WithIdentity(subID, subID)}, nil)
			l := svcmap.NewLocal("sum")
			svcmap.RegisterSend(l, "Add", func(_ context.Context, _ addReq) error {
				counts[i].Add(1)
				return nil
			})
			Expect(subHost.RegisterService(context.Background(), l, false)).To(Succeed())
			ps.Subscribe(addSid(), subConn)
			subConns[i] = subConn
			defer func() { _ = subHost.Close(context.Background(), "teardown") }()
		}
		Expect(pubHost.RegisterService(context.Background(), ps, false)).To(Succeed())

		defer func() {
			_ = publisher.Close(context.Background(), "teardown")
			_ = pubHost.Close(context.Background(), "teardown")
			for _, s := range subConns {
				_ = s.Close(context.Background(), "teardown")
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
		defer cancel()
		for i := 0; i < 3; i++ {
			Expect(publisher.SendSid(ctx, addSid(), encodeAdd(5))).To(Succeed())
		}

		Eventually(func() int64 {
			return counts[0].Load()
		}, time.Second).Should(Equal(int64(3)))
		Expect(counts[1].Load()).To(Equal(int64(3)))
		Expect(counts[2].Load()).To(Equal(int64(3)))
	})
})

var _ = Describe("Backpressure", func() {
	// scenario 4: capacity 2, three concurrent calls A, B, C where A and
	// B block in their handlers. C's dispatch must not start until A or
	// B completes; all three eventually run.
	It("bounds concurrent inbound call dispatch at the configured capacity", func() {
		var inflight, maxInflight atomic.Int32
		var started atomic.Int32
		release := make(chan struct{})

		client, server := connectedPeers(nil, []config.Option{config.WithBackpressure(2)})
		defer func() {
			_ = client.Close(context.Background(), "teardown")
			_ = server.Close(context.Background(), "teardown")
		}()

		l := svcmap.NewLocal("bp")
		sid := svcmap.RegisterCall(l, "Block", func(_ context.Context, _ struct{}) (struct{}, error) {
			started.Add(1)
			n := inflight.Add(1)
			for {
				cur := maxInflight.Load()
				if n <= cur || maxInflight.CompareAndSwap(cur, n) {
					break
				}
			}
			<-release
			inflight.Add(-1)
			return struct{}{}, nil
		})
		Expect(server.RegisterService(context.Background(), l, true)).To(Succeed())

		var wg sync.WaitGroup
		for i := 0; i < 3; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_, _ = client.CallSid(ctx, sid, encodeEmpty())
			}()
		}

		Eventually(func() int32 { return started.Load() }, time.Second).Should(Equal(int32(2)))
		Consistently(func() int32 { return started.Load() }, 200*time.Millisecond).Should(Equal(int32(2)))

		close(release)
		wg.Wait()
		Expect(started.Load()).To(Equal(int32(3)))
		Expect(maxInflight.Load()).To(BeNumerically("<=", 2))
	})
})
