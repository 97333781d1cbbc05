package peer

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Backpressure gates inbound calls with a fixed-capacity counting
// semaphore, per spec §4.4. A nil *Backpressure means the gate is
// disabled: Acquire is a no-op and Release is never called. inflight is
// tracked here, not on Peer, since Acquire runs on the listener
// goroutine while Release runs on the mailbox goroutine; an atomic
// keeps that one counter race-free without involving the mailbox.
type Backpressure struct {
	sem      *semaphore.Weighted
	cap      int64
	inflight atomic.Int64
}

// NewBackpressure returns nil when n <= 0, matching "backpressure is
// optional"; callers must nil-check before using it, which is exactly
// what Acquire/Release already do.
func NewBackpressure(n int) *Backpressure {
	if n <= 0 {
		return nil
	}
	return &Backpressure{sem: semaphore.NewWeighted(int64(n)), cap: int64(n)}
}

// Acquire blocks until a permit is available or ctx is done. Called only
// for IncomingCall frames, never for sends or call-responses (spec
// invariant: "send does not consume permits").
func (b *Backpressure) Acquire(ctx context.Context) error {
	if b == nil {
		return nil
	}
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	b.inflight.Add(1)
	return nil
}

// Release returns one permit. Safe to call on a nil Backpressure.
func (b *Backpressure) Release() {
	if b == nil {
		return
	}
	b.inflight.Add(-1)
	b.sem.Release(1)
}

// Inflight reports the current number of held permits; 0 on a nil gate.
func (b *Backpressure) Inflight() int64 {
	if b == nil {
		return 0
	}
	return b.inflight.Load()
}
