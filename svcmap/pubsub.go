package svcmap

import (
	"context"
	"sync"

	"github.com/aisremote/peerlink/ids"
	"github.com/aisremote/peerlink/internal/nlog"
	"github.com/aisremote/peerlink/wire"
)

// PubSub fans a frame out to every subscriber registered for its
// ServiceID. Calls are not supported, per spec §4.3.3.
type PubSub struct {
	mu   sync.RWMutex
	subs map[ids.ServiceID]map[string]Upstream
}

func NewPubSub() *PubSub {
	return &PubSub{subs: map[ids.ServiceID]map[string]Upstream{}}
}

func (p *PubSub) Services() map[ids.ServiceID]struct{} {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[ids.ServiceID]struct{}, len(p.subs))
	for sid := range p.subs {
		out[sid] = struct{}{}
	}
	return out
}

func (p *PubSub) Subscribe(sid ids.ServiceID, up Upstream) {
	p.mu.Lock()
	defer p.mu.Unlock()
	byID, ok := p.subs[sid]
	if !ok {
		byID = map[string]Upstream{}
		p.subs[sid] = byID
	}
	byID[up.ID()] = up
}

func (p *PubSub) Unsubscribe(sid ids.ServiceID, upstreamID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if byID, ok := p.subs[sid]; ok {
		delete(byID, upstreamID)
		if len(byID) == 0 {
			delete(p.subs, sid)
		}
	}
}

func (p *PubSub) snapshot(sid ids.ServiceID) []Upstream {
	p.mu.RLock()
	defer p.mu.RUnlock()
	byID := p.subs[sid]
	out := make([]Upstream, 0, len(byID))
	for _, up := range byID {
		out = append(out, up)
	}
	return out
}

// SendService clones the frame into every subscriber's outbound sink
// concurrently; a per-subscriber failure is logged but does not affect
// siblings.
func (p *PubSub) SendService(ctx context.Context, f wire.WireFormat) (Response, error) {
	subs := p.snapshot(f.Sid())
	if len(subs) == 0 {
		return Response{}, nil // no subscribers is not an error: nothing to fan out to
	}
	var wg sync.WaitGroup
	wg.Add(len(subs))
	for _, up := range subs {
		go func(up Upstream) {
			defer wg.Done()
			if err := up.Send(ctx, f.Clone()); err != nil {
				nlog.Warningf("pubsub: send to subscriber %s failed: %v", up.Name(), err)
			}
		}(up)
	}
	wg.Wait()
	return Response{Kind: ResponseNothing}, nil
}

func (*PubSub) CallService(context.Context, wire.WireFormat) (Response, error) {
	return Response{}, ErrPubSubNoCall
}

// WatchSubscribe spawns a background task, per spec §4.3.3, that applies
// subscribe/unsubscribe requests arriving on bounded channels until ctx is
// done or both channels are closed; the "installed at install time"
// dynamic membership path, as an alternative to calling Subscribe directly.
func (p *PubSub) WatchSubscribe(ctx context.Context, sid ids.ServiceID, add <-chan Upstream, remove <-chan string) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case up, ok := <-add:
				if !ok {
					add = nil
					continue
				}
				p.Subscribe(sid, up)
			case id, ok := <-remove:
				if !ok {
					remove = nil
					continue
				}
				p.Unsubscribe(sid, id)
			}
			if add == nil && remove == nil {
				return
			}
		}
	}()
}
