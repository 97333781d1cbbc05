package svcmap

import (
	"context"
	"fmt"
	"sync"

	"github.com/fxamacker/cbor/v2"

	"github.com/aisremote/peerlink/ids"
	"github.com/aisremote/peerlink/wire"
)

type serviceEntry struct {
	name   string
	callFn func(ctx context.Context, payload []byte) ([]byte, error)
	sendFn func(ctx context.Context, payload []byte) error
}

// Local is the "generated" service map: one stable ServiceID per declared
// service type, backed by a registered handler address. Registering twice
// for the same (typeName, namespace) pair is last-registration-wins, per
// spec §4.3.4.
type Local struct {
	namespace string

	mu       sync.RWMutex
	handlers map[ids.ServiceID]serviceEntry
}

func NewLocal(namespace string) *Local {
	return &Local{namespace: namespace, handlers: map[ids.ServiceID]serviceEntry{}}
}

func (l *Local) Namespace() string { return l.namespace }

func (l *Local) Services() map[ids.ServiceID]struct{} {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[ids.ServiceID]struct{}, len(l.handlers))
	for sid := range l.handlers {
		out[sid] = struct{}{}
	}
	return out
}

// RegisterCall wires a call/response handler for typeName and returns its
// stable ServiceID. Req/Resp are (de)serialized with CBOR.
func RegisterCall[Req, Resp any](l *Local, typeName string, handler func(ctx context.Context, req Req) (Resp, error)) ids.ServiceID {
	sid := ids.ServiceIDFromSeed(typeName, l.namespace)
	entry := l.entryFor(sid, typeName)
	entry.callFn = func(ctx context.Context, payload []byte) (out []byte, err error) {
		var req Req
		if uerr := cbor.Unmarshal(payload, &req); uerr != nil {
			return nil, fmt.Errorf("%w: %v", ErrDeserialize, uerr)
		}
		resp, herr := invokeRecovering(ctx, req, handler)
		if herr != nil {
			return nil, herr
		}
		b, merr := cbor.Marshal(resp)
		if merr != nil {
			return nil, fmt.Errorf("%w: %v", ErrSerialize, merr)
		}
		return b, nil
	}
	l.install(sid, entry)
	return sid
}

// RegisterSend wires a one-way handler for typeName and returns its stable
// ServiceID.
func RegisterSend[Req any](l *Local, typeName string, handler func(ctx context.Context, req Req) error) ids.ServiceID {
	sid := ids.ServiceIDFromSeed(typeName, l.namespace)
	entry := l.entryFor(sid, typeName)
	entry.sendFn = func(ctx context.Context, payload []byte) error {
		var req Req
		if uerr := cbor.Unmarshal(payload, &req); uerr != nil {
			return fmt.Errorf("%w: %v", ErrDeserialize, uerr)
		}
		_, herr := invokeRecovering(ctx, req, func(ctx context.Context, req Req) (struct{}, error) {
			return struct{}{}, handler(ctx, req)
		})
		return herr
	}
	l.install(sid, entry)
	return sid
}

func (l *Local) entryFor(sid ids.ServiceID, typeName string) serviceEntry {
	l.mu.RLock()
	e, ok := l.handlers[sid]
	l.mu.RUnlock()
	if ok {
		e.name = typeName
		return e
	}
	return serviceEntry{name: typeName}
}

func (l *Local) install(sid ids.ServiceID, e serviceEntry) {
	l.mu.Lock()
	l.handlers[sid] = e
	l.mu.Unlock()
}

// invokeRecovering turns a handler panic into ErrHandlerDead, matching
// spec §4.3.1's "Handler panic → propagated as HandlerDead".
func invokeRecovering[Req, Resp any](ctx context.Context, req Req, handler func(context.Context, Req) (Resp, error)) (resp Resp, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerDead, r)
		}
	}()
	return handler(ctx, req)
}

func (l *Local) lookup(sid ids.ServiceID) (serviceEntry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.handlers[sid]
	return e, ok
}

func (l *Local) SendService(ctx context.Context, f wire.WireFormat) (Response, error) {
	entry, ok := l.lookup(f.Sid())
	if !ok || entry.sendFn == nil {
		return Response{}, fmt.Errorf("%w: sid=%s", ErrUnknownService, f.Sid())
	}
	if err := entry.sendFn(ctx, f.Msg()); err != nil {
		return Response{}, err
	}
	return Response{Kind: ResponseNothing}, nil
}

func (l *Local) CallService(ctx context.Context, f wire.WireFormat) (Response, error) {
	entry, ok := l.lookup(f.Sid())
	if !ok || entry.callFn == nil {
		return Response{}, fmt.Errorf("%w: sid=%s", ErrUnknownService, f.Sid())
	}
	out, err := entry.callFn(ctx, f.Msg())
	if err != nil {
		return Response{}, err
	}
	return Response{Kind: ResponseCallResponse, Frame: wire.NewResponse(f.Cid(), out)}, nil
}
