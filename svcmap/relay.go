package svcmap

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/aisremote/peerlink/ids"
	"github.com/aisremote/peerlink/rerrs"
	"github.com/aisremote/peerlink/wire"
)

// Resolver picks an Upstream for a given ServiceID, evaluated once per
// forwarded frame; a closure resolver enables round-robin or other
// per-request load-balancing policies; a fixed resolver always returns the
// same Upstream.
type Resolver func(ids.ServiceID) Upstream

// Relay forwards frames for a declared set of ServiceIDs to a resolved
// upstream peer, unchanged, per spec §4.3.2.
type Relay struct {
	mu        sync.RWMutex
	resolvers map[ids.ServiceID]Resolver
}

func NewRelay() *Relay {
	return &Relay{resolvers: map[ids.ServiceID]Resolver{}}
}

func (r *Relay) Services() map[ids.ServiceID]struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[ids.ServiceID]struct{}, len(r.resolvers))
	for sid := range r.resolvers {
		out[sid] = struct{}{}
	}
	return out
}

// Bind installs an arbitrary resolver for sid; last registration wins.
func (r *Relay) Bind(sid ids.ServiceID, resolver Resolver) {
	r.mu.Lock()
	r.resolvers[sid] = resolver
	r.mu.Unlock()
}

// BindFixed always forwards sid to the same upstream.
func (r *Relay) BindFixed(sid ids.ServiceID, up Upstream) {
	r.Bind(sid, func(ids.ServiceID) Upstream { return up })
}

// robin is a round-robin selector over a fixed upstream set, grounded on
// the teacher's transport/bundle.robin (atomic counter, modular index).
type robin struct {
	ups []Upstream
	i   atomic.Int64
}

func (rb *robin) next(ids.ServiceID) Upstream {
	n := rb.i.Add(1) - 1
	return rb.ups[int(n)%len(rb.ups)]
}

// BindRoundRobin forwards sid to each of ups in turn, enabling simple load
// balancing across several upstreams that all expose the same service.
func (r *Relay) BindRoundRobin(sid ids.ServiceID, ups []Upstream) {
	if len(ups) == 0 {
		return
	}
	rb := &robin{ups: append([]Upstream(nil), ups...)}
	r.Bind(sid, rb.next)
}

func (r *Relay) resolve(sid ids.ServiceID) (Upstream, bool) {
	r.mu.RLock()
	resolver, ok := r.resolvers[sid]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	up := resolver(sid)
	return up, up != nil
}

func (r *Relay) SendService(ctx context.Context, f wire.WireFormat) (Response, error) {
	up, ok := r.resolve(f.Sid())
	if !ok {
		return Response{}, fmt.Errorf("%w: sid=%s", ErrUnknownService, f.Sid())
	}
	if err := up.Send(ctx, f); err != nil {
		select {
		case <-up.Done():
			return Response{}, fmt.Errorf("%w: %s", ErrRelayGone, up.Name())
		default:
			return Response{}, err
		}
	}
	return Response{Kind: ResponseNothing}, nil
}

// CallService issues f as a new call on the resolved upstream and forwards
// whatever comes back: either the upstream's response frame, or (if the
// upstream itself reported a ConnectionError) that error frame verbatim.
// Upstream disappearance during the wait translates to ErrRelayGone.
func (r *Relay) CallService(ctx context.Context, f wire.WireFormat) (Response, error) {
	up, ok := r.resolve(f.Sid())
	if !ok {
		return Response{}, fmt.Errorf("%w: sid=%s", ErrUnknownService, f.Sid())
	}
	resp, err := up.Call(ctx, f)
	if err != nil {
		var connErr *rerrs.ConnectionError
		if errors.As(err, &connErr) {
			if b, merr := connErr.Marshal(); merr == nil {
				return Response{Kind: ResponseCallResponse, Frame: wire.NewConnectionError(f.Cid(), b)}, nil
			}
		}
		select {
		case <-up.Done():
			return Response{}, fmt.Errorf("%w: %s", ErrRelayGone, up.Name())
		default:
			return Response{}, err
		}
	}
	return Response{Kind: ResponseCallResponse, Frame: resp}, nil
}
