//go:build !linux

// File: pool/slab_stub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Portable slab backing for non-Linux platforms.

package pool

func newSlabBacking(size int) []byte {
	return make([]byte, size)
}

func releaseSlabBacking([]byte) error {
	return nil
}
