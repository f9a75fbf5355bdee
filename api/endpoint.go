// File: api/endpoint.go
// Package api defines the Endpoint capability interface.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// An Endpoint is an opaque full-duplex stream channel. Translators invoke
// only these operations; the transport behind them (ring buffer, socket,
// shared memory segment) is invisible to the stream engine.

package api

// Header is one synthesized response header carried on an outbound Begin.
type Header struct {
	Name  string
	Value string
}

// Throttle receives Window and Reset frames for an outbound stream,
// delivered back to the stream's originator. Other frame kinds are ignored.
type Throttle func(Frame)

// Endpoint abstracts a full-duplex stream channel.
type Endpoint interface {
	// DoBegin opens a stream carrying the given response headers.
	DoBegin(streamID, sourceRef, correlationID uint64, headers []Header) error

	// DoData sends payload bytes with a WebSocket flags byte (FIN + opcode).
	DoData(streamID uint64, payload []byte, flags byte) error

	// DoEnd half-closes the stream cleanly.
	DoEnd(streamID uint64) error

	// DoWindow grants the peer update bytes of send credit.
	DoWindow(streamID uint64, update int) error

	// DoReset aborts the stream.
	DoReset(streamID uint64) error

	// AddThrottle registers the callback receiving Window/Reset frames
	// for an outbound stream previously opened with DoBegin.
	AddThrottle(streamID uint64, fn Throttle)

	// RemoveThrottle deregisters the stream's throttle callback.
	RemoveThrottle(streamID uint64)

	// RemoveStream releases per-stream state held by the endpoint.
	RemoveStream(streamID uint64)
}
