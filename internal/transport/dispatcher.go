// File: internal/transport/dispatcher.go
// Package transport
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Dispatcher is the single execution context draining one RingEndpoint.
// Frames of one stream are handed to its handler strictly in arrival order;
// every handler runs to completion before the next frame is dispatched.
// Parallelism comes from running independent dispatchers, never from
// sharing one.

package transport

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/momentics/wsbridge/api"
)

// idleSpins is how many empty polls back off with Gosched before sleeping.
const idleSpins = 64

// idleSleep bounds the wakeup latency of an idle dispatcher.
const idleSleep = 50 * time.Microsecond

// Dispatcher drains an endpoint and routes frames to per-stream handlers.
type Dispatcher struct {
	ep        *RingEndpoint
	newStream func() api.StreamHandler
	log       zerolog.Logger

	// streams is touched only by the dispatch goroutine. RemoveStream calls
	// reach it through the endpoint hook, which handlers invoke inline.
	streams  map[uint64]api.StreamHandler
	nStreams atomic.Int64

	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// NewDispatcher attaches a dispatcher to ep. newStream builds the handler
// for each previously unseen stream when its Begin arrives.
func NewDispatcher(ep *RingEndpoint, newStream func() api.StreamHandler, log zerolog.Logger) *Dispatcher {
	d := &Dispatcher{
		ep:        ep,
		newStream: newStream,
		log:       log.With().Str("component", "dispatcher").Str("endpoint", ep.Name()).Logger(),
		streams:   make(map[uint64]api.StreamHandler),
		done:      make(chan struct{}),
	}
	ep.removeStream = d.dropStream
	return d
}

// Start launches the dispatch goroutine.
func (d *Dispatcher) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop terminates dispatch after the current frame completes.
func (d *Dispatcher) Stop() {
	d.once.Do(func() { close(d.done) })
	d.wg.Wait()
}

// Streams reports the number of live stream handlers.
func (d *Dispatcher) Streams() int {
	return int(d.nStreams.Load())
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	spins := 0
	for {
		select {
		case <-d.done:
			return
		default:
		}
		it, ok := d.ep.poll()
		if !ok {
			if spins++; spins < idleSpins {
				runtime.Gosched()
			} else {
				time.Sleep(idleSleep)
			}
			continue
		}
		spins = 0
		d.dispatch(it)
	}
}

func (d *Dispatcher) dispatch(it item) {
	defer d.ep.releaseItem(it)

	streamID := it.frame.StreamID()
	handler, ok := d.streams[streamID]
	if !ok {
		if _, isBegin := it.frame.(api.BeginFrame); !isBegin {
			// Frame for a stream this context never opened: reset the
			// sender and drop the frame.
			d.log.Warn().Uint64("stream", streamID).Msg("frame for unknown stream")
			_ = d.ep.DoReset(streamID)
			return
		}
		handler = d.newStream()
		d.streams[streamID] = handler
		d.nStreams.Add(1)
	}
	handler.HandleFrame(it.frame)
}

// dropStream releases a stream's handler. Runs on the dispatch goroutine,
// invoked by handlers through Endpoint.RemoveStream.
func (d *Dispatcher) dropStream(streamID uint64) {
	if _, ok := d.streams[streamID]; ok {
		delete(d.streams, streamID)
		d.nStreams.Add(-1)
	}
}
