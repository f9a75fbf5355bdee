// File: internal/router/registry.go
// Package router
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Registry resolves pipeline endpoints by name. Each endpoint is one
// independently addressable stream processor attached to this bridge.

package router

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/momentics/wsbridge/api"
)

// Registry is a name to endpoint map shared by the data and control planes.
type Registry struct {
	mu        sync.RWMutex
	endpoints map[string]api.Endpoint
	log       zerolog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		endpoints: make(map[string]api.Endpoint),
		log:       log.With().Str("component", "registry").Logger(),
	}
}

// Register binds name to ep, replacing any previous binding.
func (r *Registry) Register(name string, ep api.Endpoint) {
	r.mu.Lock()
	r.endpoints[name] = ep
	r.mu.Unlock()
	r.log.Debug().Str("endpoint", name).Msg("endpoint registered")
}

// Unregister removes the binding for name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	delete(r.endpoints, name)
	r.mu.Unlock()
	r.log.Debug().Str("endpoint", name).Msg("endpoint unregistered")
}

// Resolve returns the endpoint bound to name, or nil when absent. The
// stream engine treats nil as a failed handshake precondition.
func (r *Registry) Resolve(name string) api.Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.endpoints[name]
}
