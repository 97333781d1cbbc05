package svcmap_test

import (
	"context"
	"errors"
	"sync"

	"github.com/aisremote/peerlink/wire"
)

// fakeUpstream is a minimal svcmap.Upstream used by relay/pubsub tests.
type fakeUpstream struct {
	id, name string
	done     chan struct{}

	mu        sync.Mutex
	sent      []wire.WireFormat
	callReply wire.WireFormat
	callErr   error
}

func newFakeUpstream(id, name string) *fakeUpstream {
	return &fakeUpstream{id: id, name: name, done: make(chan struct{})}
}

func (f *fakeUpstream) ID() string   { return f.id }
func (f *fakeUpstream) Name() string { return f.name }
func (f *fakeUpstream) Done() <-chan struct{} { return f.done }

func (f *fakeUpstream) Send(_ context.Context, w wire.WireFormat) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	select {
	case <-f.done:
		return errors.New("fakeUpstream: gone")
	default:
	}
	f.sent = append(f.sent, w)
	return nil
}

func (f *fakeUpstream) Call(_ context.Context, _ wire.WireFormat) (wire.WireFormat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	select {
	case <-f.done:
		return wire.WireFormat{}, errors.New("fakeUpstream: gone")
	default:
	}
	return f.callReply, f.callErr
}

func (f *fakeUpstream) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeUpstream) close() { close(f.done) }
