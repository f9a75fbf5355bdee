// File: internal/stream/translator.go
// Package stream implements the per-connection WebSocket stream translator.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// A Translator bridges one reply-direction stream: it completes a pending
// WebSocket upgrade recorded by the control plane, then relays Data/End
// frames to the resolved target endpoint while translating opcode flags and
// flow-control windows between the two transports. State is an explicit
// enumerated phase driven by a switch, so every transition is enumerable and
// testable in isolation.

package stream

import (
	"github.com/momentics/wsbridge/api"
)

// Phase is the lifecycle state of one translated connection.
type Phase uint8

const (
	// PhaseBeforeBegin awaits the opening Begin frame.
	PhaseBeforeBegin Phase = iota
	// PhaseEstablished relays Data and End downstream.
	PhaseEstablished
	// PhaseRejectedOrReset absorbs a rejected peer until its End arrives.
	PhaseRejectedOrReset
	// PhaseEnded is terminal; any further inbound frame is a peer error.
	PhaseEnded
)

// String returns the phase name for logs and test failures.
func (p Phase) String() string {
	switch p {
	case PhaseBeforeBegin:
		return "BeforeBegin"
	case PhaseEstablished:
		return "Established"
	case PhaseRejectedOrReset:
		return "RejectedOrReset"
	case PhaseEnded:
		return "Ended"
	default:
		return "Unknown"
	}
}

// encodeOverheadMax is the largest possible WebSocket frame header: 2 bytes
// base, 8 bytes extended payload length, 4 bytes masking key. Target-side
// window credit is reduced by this amount before being granted upstream.
const encodeOverheadMax = 14

// defaultDataFlags marks a final binary frame (FIN bit + binary opcode).
const defaultDataFlags = 0x82

// Factory builds Translators bound to one source endpoint and the shared
// target-resolution, stream-id and correlation capabilities.
type Factory struct {
	source        api.Endpoint
	resolveTarget func(name string) api.Endpoint
	nextStreamID  func() uint64
	correlator    api.Correlator
}

// NewFactory wires the capabilities every translator of this source shares.
func NewFactory(
	source api.Endpoint,
	resolveTarget func(name string) api.Endpoint,
	nextStreamID func() uint64,
	correlator api.Correlator,
) *Factory {
	return &Factory{
		source:        source,
		resolveTarget: resolveTarget,
		nextStreamID:  nextStreamID,
		correlator:    correlator,
	}
}

// NewStream creates the handler for one inbound stream.
func (f *Factory) NewStream() *Translator {
	return &Translator{f: f, phase: PhaseBeforeBegin}
}

// Translator is the per-connection state machine. One instance is owned and
// driven by exactly one execution context; handlers run to completion.
type Translator struct {
	f *Factory

	phase    Phase
	sourceID uint64
	target   api.Endpoint
	targetID uint64
}

var _ api.StreamHandler = (*Translator)(nil)

// Phase returns the current lifecycle phase.
func (t *Translator) Phase() Phase { return t.phase }

// HandleFrame processes one inbound frame and applies the transition for the
// current phase. Protocol violations never escalate: they reset the upstream
// stream and park the translator in PhaseRejectedOrReset.
func (t *Translator) HandleFrame(f api.Frame) {
	switch t.phase {
	case PhaseBeforeBegin:
		if begin, ok := f.(api.BeginFrame); ok {
			t.onBegin(begin)
		} else {
			t.onUnexpected(f)
		}
	case PhaseEstablished:
		switch fr := f.(type) {
		case api.DataFrame:
			t.onData(fr)
		case api.EndFrame:
			t.onEnd(fr)
		default:
			t.onUnexpected(f)
		}
	case PhaseRejectedOrReset:
		switch fr := f.(type) {
		case api.DataFrame:
			// Drain the rejected peer: credit back what it sent so it
			// never stalls waiting for a window that will not come.
			_ = t.f.source.DoWindow(fr.ID, len(fr.Payload))
		case api.EndFrame:
			t.f.source.RemoveStream(fr.ID)
			t.phase = PhaseEnded
		}
	case PhaseEnded:
		t.onUnexpected(f)
	}
}

// onBegin completes the handshake. The correlation is consumed before the
// preconditions are checked, so a failed Begin still invalidates its record
// and a replayed correlation id can never match twice.
func (t *Translator) onBegin(begin api.BeginFrame) {
	correlation, ok := t.f.correlator.TakeByCorrelationID(begin.CorrelationID)
	if begin.SourceRef != 0 || !ok {
		t.onUnexpected(begin)
		return
	}
	target := t.f.resolveTarget(correlation.SourceName)
	if target == nil {
		t.onUnexpected(begin)
		return
	}
	targetID := t.f.nextStreamID()

	t.sourceID = begin.ID
	t.targetID = targetID

	// Throttle first: a peer on another context may answer the Begin with
	// a Window before this handler returns.
	target.AddThrottle(targetID, t.handleThrottle)
	_ = target.DoBegin(targetID, 0, correlation.CorrelationID,
		upgradeHeaders(correlation, begin.Extension))

	t.target = target
	t.phase = PhaseEstablished
}

// onData forwards payload bytes unchanged. The flags byte defaults to a
// final binary frame; an extension carries explicit flags verbatim so text,
// continuation and control opcodes pass through unmodified.
func (t *Translator) onData(data api.DataFrame) {
	flags := byte(defaultDataFlags)
	if data.Extension != nil {
		flags = data.Extension.Flags
	}
	_ = t.target.DoData(t.targetID, data.Payload, flags)
}

func (t *Translator) onEnd(end api.EndFrame) {
	_ = t.target.DoEnd(t.targetID)
	t.target.RemoveThrottle(t.targetID)
	t.f.source.RemoveStream(t.sourceID)
	t.phase = PhaseEnded
}

// onUnexpected handles any protocol violation: reset upstream and absorb
// whatever the peer still has in flight.
func (t *Translator) onUnexpected(f api.Frame) {
	_ = t.f.source.DoReset(f.StreamID())
	t.phase = PhaseRejectedOrReset
}

// handleThrottle receives Window/Reset frames for the downstream stream and
// translates them back to the source transport.
func (t *Translator) handleThrottle(f api.Frame) {
	switch fr := f.(type) {
	case api.WindowFrame:
		// The target counts HTTP bytes, the source counts WebSocket
		// payload bytes; reserve the worst-case frame header. Updates
		// too small to cover the header are dropped outright: a later,
		// larger update unblocks the source.
		if grant := fr.Update - encodeOverheadMax; grant > 0 {
			_ = t.f.source.DoWindow(t.sourceID, grant)
		}
	case api.ResetFrame:
		_ = t.f.source.DoReset(t.sourceID)
	}
}

// upgradeHeaders synthesizes the 101 Switching Protocols response set. The
// subprotocol comes from the Begin extension when present, else from the
// correlation record; the header is omitted when neither carries one.
func upgradeHeaders(correlation api.Correlation, ext *api.BeginEx) []api.Header {
	headers := []api.Header{
		{Name: ":status", Value: "101"},
		{Name: "upgrade", Value: "websocket"},
		{Name: "connection", Value: "upgrade"},
		{Name: "sec-websocket-accept", Value: correlation.HandshakeHash},
	}
	negotiated := correlation.Protocol
	if ext != nil && ext.Protocol != "" {
		negotiated = ext.Protocol
	}
	if negotiated != "" {
		headers = append(headers, api.Header{Name: "sec-websocket-protocol", Value: negotiated})
	}
	return headers
}
