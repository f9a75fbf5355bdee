// File: internal/router/router.go
// Package router
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Router is the in-process control surface of one bridge unit: it installs
// and removes routes between named endpoints and deposits the handshake
// correlations that pending upgrades leave behind. The wire-level RPC that
// would carry these commands between processes lives outside this module.

package router

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/momentics/wsbridge/api"
)

// Route describes one installed source-to-target path.
type Route struct {
	Ref       uint64
	Source    string
	SourceRef uint64
	Target    string
	TargetRef uint64
	Protocol  string
}

// Router owns the route table and the correlation table of a bridge.
type Router struct {
	registry     *Registry
	correlations *CorrelationTable
	log          zerolog.Logger

	nextRef atomic.Uint64

	mu     sync.Mutex
	routes map[uint64]Route
}

// NewRouter creates a router over the given registry and correlation table.
func NewRouter(registry *Registry, correlations *CorrelationTable, log zerolog.Logger) *Router {
	return &Router{
		registry:     registry,
		correlations: correlations,
		log:          log.With().Str("component", "router").Logger(),
		routes:       make(map[uint64]Route),
	}
}

// Route installs a path from a named source endpoint to a named target
// endpoint and returns the route reference.
func (r *Router) Route(source string, sourceRef uint64, target string, targetRef uint64, protocol string) (uint64, error) {
	if source == "" || target == "" {
		return 0, fmt.Errorf("%w: route requires source and target names", api.ErrInvalidArgument)
	}
	if r.registry.Resolve(source) == nil {
		return 0, fmt.Errorf("%w: source endpoint %q", api.ErrNotFound, source)
	}
	if r.registry.Resolve(target) == nil {
		return 0, fmt.Errorf("%w: target endpoint %q", api.ErrNotFound, target)
	}
	ref := r.nextRef.Add(1)
	route := Route{
		Ref:       ref,
		Source:    source,
		SourceRef: sourceRef,
		Target:    target,
		TargetRef: targetRef,
		Protocol:  protocol,
	}
	r.mu.Lock()
	r.routes[ref] = route
	r.mu.Unlock()
	r.log.Info().
		Uint64("ref", ref).
		Str("source", source).
		Str("target", target).
		Str("protocol", protocol).
		Msg("route installed")
	return ref, nil
}

// Unroute removes a previously installed route.
func (r *Router) Unroute(ref uint64) error {
	r.mu.Lock()
	_, ok := r.routes[ref]
	if ok {
		delete(r.routes, ref)
	}
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: route %d", api.ErrNotFound, ref)
	}
	r.log.Info().Uint64("ref", ref).Msg("route removed")
	return nil
}

// Routes returns a snapshot of the installed routes.
func (r *Router) Routes() []Route {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Route, 0, len(r.routes))
	for _, route := range r.routes {
		out = append(out, route)
	}
	return out
}

// Correlate deposits the handshake record a pending upgrade on the given
// route leaves for its reply-direction Begin. The reply resolves back to the
// route's source endpoint.
func (r *Router) Correlate(correlationID, routeRef uint64, handshakeHash string) error {
	r.mu.Lock()
	route, ok := r.routes[routeRef]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: route %d", api.ErrNotFound, routeRef)
	}
	return r.correlations.Deposit(api.Correlation{
		CorrelationID: correlationID,
		SourceName:    route.Source,
		Protocol:      route.Protocol,
		HandshakeHash: handshakeHash,
	})
}
