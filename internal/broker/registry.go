package broker

import (
	"sort"
	"sync"

	"github.com/Steinwealth/UltimaBot/internal/errors"
)

// Registry holds the broker clients available to the engine, keyed by ID.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]Client
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]Client)}
}

// Register adds or replaces a client under its ID.
func (r *Registry) Register(c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.ID()] = c
}

// Get returns the client registered under id.
func (r *Registry) Get(id string) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[id]
	if !ok {
		return nil, errors.Wrapf(errors.ErrBrokerNotFound, "broker %q", id)
	}
	return c, nil
}

// IDs returns the registered broker ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// All returns the registered clients ordered by id.
func (r *Registry) All() []Client {
	ids := r.IDs()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Client, 0, len(ids))
	for _, id := range ids {
		if c, ok := r.clients[id]; ok {
			out = append(out, c)
		}
	}
	return out
}
