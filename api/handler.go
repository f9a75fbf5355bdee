// File: api/handler.go
// Package api defines the StreamHandler interface.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// StreamHandler processes the inbound frames of one stream, in arrival order.
type StreamHandler interface {
	HandleFrame(Frame)
}
