// Package registry is the runtime's plugin/service front door: a
// name -> capability lookup table that lets a process reach a
// well-known service (the lump broadcaster, the peer link manager, an
// admin console) without the spawning code having to thread every
// capability through by hand.
package registry

import (
	"fmt"
	"sync"

	"github.com/hearthcore/hearth/pkg/capability"
)

// Registry maps service names to a capability, narrowed to whatever
// permission set is appropriate for public lookup (typically Send only
// — callers that need more must be handed a wider capability directly
// by whoever spawned the service). Grounded on the teacher's registry
// package naming and fx-module wiring style, repurposed from
// "user-identity -> actor" lookups to "service-name -> capability".
type Registry struct {
	mu       sync.RWMutex
	services map[string]capability.Capability
}

func New() *Registry {
	return &Registry{services: make(map[string]capability.Capability)}
}

// Publish registers name -> cap. Publishing under an already-registered
// name replaces the previous binding (a restarted service re-registers
// under the same name without the caller having to explicitly Remove
// first).
func (r *Registry) Publish(name string, cap capability.Capability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services[name] = cap
}

// Lookup resolves name to its published capability.
func (r *Registry) Lookup(name string) (capability.Capability, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cap, ok := r.services[name]
	if !ok {
		return capability.Capability{}, fmt.Errorf("registry: no service published under %q", name)
	}
	return cap, nil
}

// Remove unregisters name, if present.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.services, name)
}

// Names lists every currently published service name.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.services))
	for name := range r.services {
		names = append(names, name)
	}
	return names
}
