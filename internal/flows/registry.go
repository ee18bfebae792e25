package flows

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

const DefaultSessionTTL = 24 * time.Hour

type entry struct {
	storefront *Storefront
	lastSeen   time.Time
}

// Registry keeps the live storefronts in memory and evicts idle ones.
type Registry struct {
	deps Dependencies
	ttl  time.Duration
	now  func() time.Time

	mu          sync.Mutex
	storefronts map[uuid.UUID]*entry
}

func NewRegistry(deps Dependencies, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Registry{
		deps:        deps,
		ttl:         ttl,
		now:         time.Now,
		storefronts: make(map[uuid.UUID]*entry),
	}
}

// Create opens a storefront with a fresh id.
func (r *Registry) Create() *Storefront {
	return r.Open(uuid.New())
}

// Open returns the storefront with the given id, creating it if it was
// evicted or never existed on this instance.
func (r *Registry) Open(id uuid.UUID) *Storefront {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.storefronts[id]; ok {
		e.lastSeen = r.now()
		return e.storefront
	}
	sf := newStorefront(id, r.deps)
	r.storefronts[id] = &entry{storefront: sf, lastSeen: r.now()}
	log.Printf("[Flow] storefront %s opened", id)
	return sf
}

// Get returns a live storefront and marks it as recently used.
func (r *Registry) Get(id uuid.UUID) (*Storefront, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.storefronts[id]
	if !ok {
		return nil, false
	}
	e.lastSeen = r.now()
	return e.storefront, true
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.storefronts)
}

// Sweep evicts storefronts idle for longer than the TTL and returns how many
// were removed.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	cutoff := r.now().Add(-r.ttl)
	var idle []*Storefront
	for id, e := range r.storefronts {
		if e.lastSeen.Before(cutoff) {
			idle = append(idle, e.storefront)
			delete(r.storefronts, id)
		}
	}
	r.mu.Unlock()

	for _, sf := range idle {
		r.release(sf)
	}
	if r.deps.Calls != nil {
		r.deps.Calls.Sweep()
	}
	if len(idle) > 0 {
		log.Printf("[Flow] evicted %d idle storefronts", len(idle))
	}
	return len(idle)
}

// Run sweeps on every tick until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Close releases every storefront.
func (r *Registry) Close() {
	r.mu.Lock()
	all := make([]*Storefront, 0, len(r.storefronts))
	for id, e := range r.storefronts {
		all = append(all, e.storefront)
		delete(r.storefronts, id)
	}
	r.mu.Unlock()

	for _, sf := range all {
		r.release(sf)
	}
}

func (r *Registry) release(sf *Storefront) {
	sf.Close()
	if r.deps.Calls != nil {
		r.deps.Calls.Remove(sf.ID)
	}
}
