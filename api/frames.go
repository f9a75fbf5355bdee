// File: api/frames.go
// Package api defines the typed frame model shared by all pipeline units.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Frames are already-decoded views: the binary codecs that produce them live
// in the surrounding transport, not here. Payload slices may reference pooled
// memory and are only valid for the duration of the handling call.

package api

// Frame is the sum of all stream frame kinds.
type Frame interface {
	// StreamID returns the stream the frame belongs to.
	StreamID() uint64
}

// BeginEx carries optional Begin metadata negotiated during the handshake.
type BeginEx struct {
	Protocol string // negotiated subprotocol, empty if none
}

// DataEx carries explicit WebSocket frame flags for a Data frame.
type DataEx struct {
	Flags byte // FIN bit plus opcode, forwarded verbatim
}

// BeginFrame opens a stream. On HTTP-style transports the synthesized
// response headers ride along; binary transports leave Headers nil.
type BeginFrame struct {
	ID            uint64
	SourceRef     uint64 // 0 for reply-direction streams
	CorrelationID uint64
	Extension     *BeginEx
	Headers       []Header
}

// DataFrame carries payload bytes.
type DataFrame struct {
	ID        uint64
	Payload   []byte
	Extension *DataEx
}

// EndFrame is a clean half-close.
type EndFrame struct {
	ID uint64
}

// WindowFrame grants flow-control credit.
type WindowFrame struct {
	ID     uint64
	Update int // credit delta in bytes
}

// ResetFrame aborts a stream abruptly.
type ResetFrame struct {
	ID uint64
}

func (f BeginFrame) StreamID() uint64  { return f.ID }
func (f DataFrame) StreamID() uint64   { return f.ID }
func (f EndFrame) StreamID() uint64    { return f.ID }
func (f WindowFrame) StreamID() uint64 { return f.ID }
func (f ResetFrame) StreamID() uint64  { return f.ID }
