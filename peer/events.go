package peer

import (
	"sync"

	"github.com/aisremote/peerlink/rerrs"
)

// EventKind classifies a PeerEvent, per spec §4.7.
type EventKind int

const (
	EventClosed EventKind = iota
	EventClosedByRemote
	EventRelayDisappeared
	EventError
	EventRemoteError
)

func (k EventKind) String() string {
	switch k {
	case EventClosed:
		return "Closed"
	case EventClosedByRemote:
		return "ClosedByRemote"
	case EventRelayDisappeared:
		return "RelayDisappeared"
	case EventError:
		return "Error"
	case EventRemoteError:
		return "RemoteError"
	default:
		return "Unknown"
	}
}

// PeerEvent is the observable unit broadcast to subscribers.
type PeerEvent struct {
	Kind EventKind

	RelayUpstreamID string       // set on RelayDisappeared
	Err             *rerrs.PeerErr
	Remote          *rerrs.ConnectionError // set on RemoteError
}

// subscriber is a bounded mailbox with drop-oldest overflow, so one slow
// subscriber cannot stall the broadcaster nor the peer mailbox that feeds
// it (spec §4.7: "a slow subscriber cannot stall the peer").
type subscriber struct {
	ch chan PeerEvent
}

const subscriberBuffer = 32

// Broadcaster fans PeerEvent values out to every live subscription.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[int]*subscriber
	next int
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: map[int]*subscriber{}}
}

// Subscription is a caller-owned handle: read Events, call Unsubscribe
// when done.
type Subscription struct {
	id     int
	b      *Broadcaster
	Events <-chan PeerEvent
}

func (s *Subscription) Unsubscribe() {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	if sub, ok := s.b.subs[s.id]; ok {
		close(sub.ch)
		delete(s.b.subs, s.id)
	}
}

func (b *Broadcaster) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	sub := &subscriber{ch: make(chan PeerEvent, subscriberBuffer)}
	b.subs[id] = sub
	return &Subscription{id: id, b: b, Events: sub.ch}
}

// Publish delivers ev to every live subscriber, dropping the oldest
// buffered event for any subscriber whose mailbox is full rather than
// blocking the publisher.
func (b *Broadcaster) Publish(ev PeerEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		select {
		case sub.ch <- ev:
		default:
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- ev:
			default:
			}
		}
	}
}

// Close closes every subscriber channel; used once, from the peer's
// terminal shutdown path.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, sub := range b.subs {
		close(sub.ch)
		delete(b.subs, id)
	}
}
