//go:build linux

// File: pool/slab_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux slab backing via anonymous shared mmap, so a slab region can sit in
// the same address range discipline as the shared-memory transports around
// it. Falls back to a heap slice if mmap is unavailable.

package pool

import (
	"golang.org/x/sys/unix"
)

func newSlabBacking(size int) []byte {
	b, err := unix.Mmap(-1, 0, size,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANONYMOUS|unix.MAP_SHARED)
	if err != nil {
		return make([]byte, size)
	}
	return b
}

func releaseSlabBacking(b []byte) error {
	if b == nil {
		return nil
	}
	if err := unix.Munmap(b); err != nil {
		// Heap-allocated fallback region; GC handles it.
		if err == unix.EINVAL {
			return nil
		}
		return err
	}
	return nil
}
