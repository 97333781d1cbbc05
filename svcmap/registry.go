package svcmap

import "sync"

// Registry is a small supplemental helper, not one of spec's three core
// service maps, that lets a process hold many upstream peers and look one
// up by its ID() for wiring into a Relay or PubSub map. Grounded on
// the original's examples/chat/chat_server/src/clients.rs, which keeps a
// HashMap<UserId, Addr<User>> of connected chat clients.
type Registry struct {
	mu   sync.RWMutex
	byID map[string]Upstream
}

func NewRegistry() *Registry {
	return &Registry{byID: map[string]Upstream{}}
}

func (r *Registry) Put(up Upstream) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[up.ID()] = up
}

func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
}

func (r *Registry) Get(id string) (Upstream, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	up, ok := r.byID[id]
	return up, ok
}

func (r *Registry) All() []Upstream {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Upstream, 0, len(r.byID))
	for _, up := range r.byID {
		out = append(out, up)
	}
	return out
}
