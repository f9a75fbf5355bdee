// File: pool/slab.go
// Package pool implements fixed-capacity memory pooling for stream staging.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// BufferSlab is a chunk of memory logically segmented into slots of equal
// size. Call sites acquire a slot, write payload bytes through the slot's
// buffer view, and release the slot when done. One instance is owned and
// driven by exactly one goroutine; there is no internal synchronization.

package pool

import (
	"encoding/binary"
	"fmt"
	"math/bits"

	"github.com/cespare/xxhash/v2"

	"github.com/momentics/wsbridge/api"
)

// NoSlot is returned by Acquire when every slot is in use.
const NoSlot = -1

// BufferSlab is a fixed pool of equal-size slots over one backing region.
type BufferSlab struct {
	slotCapacity int
	bitsPerSlot  int
	mask         int
	backing      []byte
	used         []uint64 // one bit per slot
	freeSlots    int
}

// NewBufferSlab allocates a slab of totalCapacity bytes segmented into
// slots of slotCapacity bytes. Both must be powers of two and slotCapacity
// must not exceed totalCapacity.
func NewBufferSlab(totalCapacity, slotCapacity int) (*BufferSlab, error) {
	if !isPowerOfTwo(totalCapacity) {
		return nil, fmt.Errorf("%w: totalCapacity %d is not a power of two", api.ErrInvalidArgument, totalCapacity)
	}
	if !isPowerOfTwo(slotCapacity) {
		return nil, fmt.Errorf("%w: slotCapacity %d is not a power of two", api.ErrInvalidArgument, slotCapacity)
	}
	if slotCapacity > totalCapacity {
		return nil, fmt.Errorf("%w: slotCapacity %d exceeds totalCapacity %d", api.ErrInvalidArgument, slotCapacity, totalCapacity)
	}
	totalSlots := totalCapacity / slotCapacity
	return &BufferSlab{
		slotCapacity: slotCapacity,
		bitsPerSlot:  bits.TrailingZeros(uint(slotCapacity)),
		mask:         totalSlots - 1,
		backing:      newSlabBacking(totalCapacity),
		used:         make([]uint64, (totalSlots+63)/64),
		freeSlots:    totalSlots,
	}, nil
}

// Acquire reserves a slot for the given key, typically a stream id. The key
// only seeds the initial probe position; it is not retained. Returns NoSlot
// when the slab is exhausted.
func (s *BufferSlab) Acquire(key uint64) int {
	if s.freeSlots == 0 {
		return NoSlot
	}
	slot := s.probeStart(key)
	for s.isUsed(slot) {
		slot = (slot + 1) & s.mask
	}
	s.setUsed(slot)
	s.freeSlots--
	return slot
}

// Buffer returns a zero-copy view of exactly SlotCapacity bytes over the
// slot's backing memory. The view is for immediate use only and must not be
// retained across other slab calls. Panics if the slot was not acquired.
func (s *BufferSlab) Buffer(slot int) []byte {
	s.mustBeUsed(slot, "buffer")
	off := slot << s.bitsPerSlot
	return s.backing[off : off+s.slotCapacity : off+s.slotCapacity]
}

// Release frees a previously acquired slot. Panics if the slot was not
// acquired.
func (s *BufferSlab) Release(slot int) {
	s.mustBeUsed(slot, "release")
	s.used[slot>>6] &^= 1 << (uint(slot) & 63)
	s.freeSlots++
}

// SlotCapacity returns the size in bytes of one slot.
func (s *BufferSlab) SlotCapacity() int { return s.slotCapacity }

// FreeSlots returns the number of slots currently available.
func (s *BufferSlab) FreeSlots() int { return s.freeSlots }

// Close releases the backing region. The slab must not be used afterwards.
func (s *BufferSlab) Close() error {
	backing := s.backing
	s.backing = nil
	return releaseSlabBacking(backing)
}

// probeStart maps a key to its initial probe index. Hashing spreads keys
// whose low bits collide under the mask; the linear scan in Acquire resolves
// any remaining collision.
func (s *BufferSlab) probeStart(key uint64) int {
	var kb [8]byte
	binary.LittleEndian.PutUint64(kb[:], key)
	return int(xxhash.Sum64(kb[:])) & s.mask
}

func (s *BufferSlab) isUsed(slot int) bool {
	return s.used[slot>>6]&(1<<(uint(slot)&63)) != 0
}

func (s *BufferSlab) setUsed(slot int) {
	s.used[slot>>6] |= 1 << (uint(slot) & 63)
}

// mustBeUsed guards the caller contract: addressing an unacquired or
// out-of-range slot is a programmer error, not a recoverable condition.
func (s *BufferSlab) mustBeUsed(slot int, op string) {
	if slot < 0 || slot > s.mask || !s.isUsed(slot) {
		panic(fmt.Sprintf("pool: %s of unacquired slot %d", op, slot))
	}
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
