package peer

import (
	"context"

	"github.com/aisremote/peerlink/svcmap"
)

// RegisterRelay installs relay as a ServiceMap and, for each distinct
// upstream it forwards to, spawns a watcher that emits
// RelayDisappeared when that upstream terminates; the relay-event-
// forwarding feature from the Rust original (thespis_remote's relay
// peers re-publish upstream disconnects as their own events) that the
// distilled spec's service-map section omits.
func (p *Peer) RegisterRelay(ctx context.Context, relay *svcmap.Relay, backpressure bool, upstreams ...svcmap.Upstream) error {
	if err := p.RegisterService(ctx, relay, backpressure); err != nil {
		return err
	}
	for _, up := range upstreams {
		p.watchUpstream(up)
	}
	return nil
}

// watchUpstream spawns a nursery task that blocks on up.Done() and
// republishes its disappearance as a local PeerEvent.
func (p *Peer) watchUpstream(up svcmap.Upstream) {
	p.nursery.Go(func() error {
		select {
		case <-up.Done():
			p.events.Publish(PeerEvent{Kind: EventRelayDisappeared, RelayUpstreamID: up.ID()})
		case <-p.nurseryCtx.Done():
		}
		return nil
	})
}
