// File: internal/transport/endpoint.go
// Package transport implements the in-process ring-buffer endpoint.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// A RingEndpoint joins two pipeline units: producers invoke the Endpoint
// capabilities, frames cross a bounded lock-free ring, and the consuming
// Dispatcher drains them on its own execution context. Data payloads are
// staged in a BufferSlab slot at enqueue time and released after dispatch,
// so steady-state relay does not touch the heap. Window and Reset for a
// stream with a registered throttle bypass the frame path and are delivered
// straight to the originator's callback.

package transport

import (
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"

	"github.com/momentics/wsbridge/api"
	"github.com/momentics/wsbridge/pool"
)

// item is one queued frame plus the slab slot staging its payload.
type item struct {
	frame api.Frame
	slot  int
}

// RingEndpoint is a ring-buffer backed api.Endpoint.
type RingEndpoint struct {
	name   string
	ring   *pool.Ring[item]
	closed atomic.Bool

	// enqMu serializes producers: ring admission order, the overflow FIFO
	// and all slab calls. The endpoint is the slab's single owning context.
	enqMu    sync.Mutex
	overflow *queue.Queue
	slab     *pool.BufferSlab

	thrMu     sync.RWMutex
	throttles map[uint64]api.Throttle

	// removeStream is installed by the consuming Dispatcher before Start.
	removeStream func(streamID uint64)
}

var _ api.Endpoint = (*RingEndpoint)(nil)

// NewRingEndpoint creates an endpoint named name with the given ring
// capacity. slab may be nil to disable payload staging.
func NewRingEndpoint(name string, ringCapacity int, slab *pool.BufferSlab) *RingEndpoint {
	return &RingEndpoint{
		name:      name,
		ring:      pool.NewRing[item](ringCapacity),
		overflow:  queue.New(),
		slab:      slab,
		throttles: make(map[uint64]api.Throttle),
	}
}

// Name returns the endpoint's pipeline name.
func (e *RingEndpoint) Name() string { return e.name }

// DoBegin enqueues a Begin frame opening streamID.
func (e *RingEndpoint) DoBegin(streamID, sourceRef, correlationID uint64, headers []api.Header) error {
	return e.enqueue(item{
		frame: api.BeginFrame{
			ID:            streamID,
			SourceRef:     sourceRef,
			CorrelationID: correlationID,
			Extension:     beginExFromHeaders(headers),
			Headers:       headers,
		},
		slot: pool.NoSlot,
	})
}

// DoData enqueues payload bytes, staged in a slab slot when one is free and
// large enough. Slab exhaustion degrades to a heap copy; already staged
// frames are unaffected.
func (e *RingEndpoint) DoData(streamID uint64, payload []byte, flags byte) error {
	if e.closed.Load() {
		return api.ErrEndpointClosed
	}
	e.enqMu.Lock()
	defer e.enqMu.Unlock()

	slot := pool.NoSlot
	var staged []byte
	if e.slab != nil && len(payload) <= e.slab.SlotCapacity() {
		if slot = e.slab.Acquire(streamID); slot != pool.NoSlot {
			buf := e.slab.Buffer(slot)
			staged = buf[:copy(buf, payload)]
		}
	}
	if slot == pool.NoSlot {
		staged = append([]byte(nil), payload...)
	}
	return e.enqueueLocked(item{
		frame: api.DataFrame{ID: streamID, Payload: staged, Extension: &api.DataEx{Flags: flags}},
		slot:  slot,
	})
}

// DoEnd enqueues a clean half-close for streamID.
func (e *RingEndpoint) DoEnd(streamID uint64) error {
	return e.enqueue(item{frame: api.EndFrame{ID: streamID}, slot: pool.NoSlot})
}

// DoWindow grants credit. A registered throttle receives it directly;
// otherwise the frame travels the ordinary path.
func (e *RingEndpoint) DoWindow(streamID uint64, update int) error {
	if fn := e.throttleFor(streamID); fn != nil {
		fn(api.WindowFrame{ID: streamID, Update: update})
		return nil
	}
	return e.enqueue(item{frame: api.WindowFrame{ID: streamID, Update: update}, slot: pool.NoSlot})
}

// DoReset aborts a stream. Delivery mirrors DoWindow.
func (e *RingEndpoint) DoReset(streamID uint64) error {
	if fn := e.throttleFor(streamID); fn != nil {
		fn(api.ResetFrame{ID: streamID})
		return nil
	}
	return e.enqueue(item{frame: api.ResetFrame{ID: streamID}, slot: pool.NoSlot})
}

// AddThrottle registers the callback receiving Window/Reset for streamID.
func (e *RingEndpoint) AddThrottle(streamID uint64, fn api.Throttle) {
	e.thrMu.Lock()
	e.throttles[streamID] = fn
	e.thrMu.Unlock()
}

// RemoveThrottle deregisters the stream's throttle callback.
func (e *RingEndpoint) RemoveThrottle(streamID uint64) {
	e.thrMu.Lock()
	delete(e.throttles, streamID)
	e.thrMu.Unlock()
}

// RemoveStream releases per-stream state: the consumer's handler, if a
// dispatcher is attached, and any throttle registration.
func (e *RingEndpoint) RemoveStream(streamID uint64) {
	e.RemoveThrottle(streamID)
	if e.removeStream != nil {
		e.removeStream(streamID)
	}
}

// Close stops admission of new frames. Frames already queued still drain.
func (e *RingEndpoint) Close() {
	e.closed.Store(true)
}

func (e *RingEndpoint) throttleFor(streamID uint64) api.Throttle {
	e.thrMu.RLock()
	defer e.thrMu.RUnlock()
	return e.throttles[streamID]
}

func (e *RingEndpoint) enqueue(it item) error {
	if e.closed.Load() {
		return api.ErrEndpointClosed
	}
	e.enqMu.Lock()
	defer e.enqMu.Unlock()
	return e.enqueueLocked(it)
}

// enqueueLocked admits one item, spilling to the overflow FIFO when the ring
// is momentarily full. Once anything sits in overflow, new items must follow
// it to keep per-stream arrival order.
func (e *RingEndpoint) enqueueLocked(it item) error {
	if e.overflow.Length() == 0 && e.ring.Enqueue(it) {
		return nil
	}
	e.overflow.Add(it)
	return nil
}

// poll removes the oldest queued item, refilling the ring from overflow.
func (e *RingEndpoint) poll() (item, bool) {
	if it, ok := e.ring.Dequeue(); ok {
		return it, true
	}
	e.enqMu.Lock()
	for e.overflow.Length() > 0 {
		if !e.ring.Enqueue(e.overflow.Peek().(item)) {
			break
		}
		e.overflow.Remove()
	}
	e.enqMu.Unlock()
	return e.ring.Dequeue()
}

// releaseItem returns the item's slab slot after dispatch.
func (e *RingEndpoint) releaseItem(it item) {
	if it.slot == pool.NoSlot {
		return
	}
	e.enqMu.Lock()
	e.slab.Release(it.slot)
	e.enqMu.Unlock()
}

// pending reports queued frames, for debug probes.
func (e *RingEndpoint) pending() int {
	e.enqMu.Lock()
	defer e.enqMu.Unlock()
	return e.ring.Len() + e.overflow.Length()
}

// beginExFromHeaders recovers the negotiated subprotocol from a synthesized
// response header set, so the extension survives the hop to the next unit.
func beginExFromHeaders(headers []api.Header) *api.BeginEx {
	for _, h := range headers {
		if h.Name == "sec-websocket-protocol" && h.Value != "" {
			return &api.BeginEx{Protocol: h.Value}
		}
	}
	return nil
}
