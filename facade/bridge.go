// File: facade/bridge.go
// Package facade aggregates one wsbridge unit behind a single object.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// A Bridge owns the staging slab, the endpoint registry, the correlation
// table, the source and target ring endpoints and the dispatcher that drives
// the stream translators. It is built from an immutable Config and exposes
// the control surface (Router) plus debug probes.

package facade

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/momentics/wsbridge/api"
	"github.com/momentics/wsbridge/control"
	"github.com/momentics/wsbridge/internal/router"
	"github.com/momentics/wsbridge/internal/stream"
	"github.com/momentics/wsbridge/internal/transport"
	"github.com/momentics/wsbridge/pool"
)

// Bridge is one protocol-translation unit of a stream pipeline.
type Bridge struct {
	cfg *control.Config
	log zerolog.Logger

	slab         *pool.BufferSlab
	registry     *router.Registry
	correlations *router.CorrelationTable
	router       *router.Router
	source       *transport.RingEndpoint
	target       *transport.RingEndpoint
	dispatcher   *transport.Dispatcher
	store        *control.ConfigStore

	streamIDs atomic.Uint64

	mu      sync.Mutex
	started bool
}

// NewBridge builds a bridge from cfg. Configuration errors are fatal here;
// nothing is partially constructed.
func NewBridge(cfg *control.Config, log zerolog.Logger) (*Bridge, error) {
	if cfg == nil {
		cfg = control.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	slab, err := pool.NewBufferSlab(cfg.SlabTotalCapacity, cfg.SlabSlotCapacity)
	if err != nil {
		return nil, fmt.Errorf("staging slab: %w", err)
	}

	b := &Bridge{
		cfg:          cfg,
		log:          log.With().Str("component", "bridge").Logger(),
		slab:         slab,
		registry:     router.NewRegistry(log),
		correlations: router.NewCorrelationTable(),
		store:        control.NewConfigStore(),
	}
	b.router = router.NewRouter(b.registry, b.correlations, log)
	b.source = transport.NewRingEndpoint(cfg.SourceName, cfg.RingCapacity, slab)
	b.target = transport.NewRingEndpoint(cfg.TargetName, cfg.RingCapacity, nil)
	b.registry.Register(cfg.SourceName, b.source)
	b.registry.Register(cfg.TargetName, b.target)

	factory := stream.NewFactory(
		b.source,
		b.registry.Resolve,
		func() uint64 { return b.streamIDs.Add(1) },
		b.correlations,
	)
	b.dispatcher = transport.NewDispatcher(
		b.source,
		func() api.StreamHandler { return factory.NewStream() },
		log,
	)
	return b, nil
}

// Start launches the dispatch context. Idempotent.
func (b *Bridge) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return
	}
	b.started = true
	b.dispatcher.Start()
	b.log.Info().
		Str("source", b.cfg.SourceName).
		Str("target", b.cfg.TargetName).
		Int("slots", b.slab.FreeSlots()).
		Msg("bridge started")
}

// Stop halts dispatch and releases the slab. The bridge cannot be restarted.
func (b *Bridge) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.started {
		return
	}
	b.started = false
	b.source.Close()
	b.target.Close()
	b.dispatcher.Stop()
	if err := b.slab.Close(); err != nil {
		b.log.Warn().Err(err).Msg("slab close")
	}
	b.log.Info().Msg("bridge stopped")
}

// Router exposes the route/correlate control surface.
func (b *Bridge) Router() *router.Router { return b.router }

// Registry exposes endpoint registration for attaching further units.
func (b *Bridge) Registry() *router.Registry { return b.registry }

// Source is the inbound WebSocket-side endpoint.
func (b *Bridge) Source() *transport.RingEndpoint { return b.source }

// Target is the outbound HTTP-side endpoint.
func (b *Bridge) Target() *transport.RingEndpoint { return b.target }

// Config exposes the hot-reload key/value store.
func (b *Bridge) Config() *control.ConfigStore { return b.store }

// Stats returns debug probe values.
func (b *Bridge) Stats() map[string]any {
	return map[string]any{
		"slab_free_slots":      b.slab.FreeSlots(),
		"slab_slot_capacity":   b.slab.SlotCapacity(),
		"live_streams":         b.dispatcher.Streams(),
		"pending_correlations": b.correlations.Pending(),
		"routes":               len(b.router.Routes()),
	}
}
