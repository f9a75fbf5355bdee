// File: api/correlate.go
// Package api defines the handshake correlation capability.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// Correlation links a pending WebSocket upgrade, completed upstream, to the
// metadata needed to answer it. A record is deposited by the control plane
// before the matching reply-direction Begin arrives and is consumed exactly
// once.
type Correlation struct {
	CorrelationID uint64
	SourceName    string // name of the endpoint the reply is routed to
	Protocol      string // subprotocol recorded at route time, may be empty
	HandshakeHash string // precomputed Sec-WebSocket-Accept value
}

// Correlator is the one-shot lookup capability. TakeByCorrelationID removes
// the record on success; a second take of the same id reports absent.
type Correlator interface {
	TakeByCorrelationID(id uint64) (Correlation, bool)
}
