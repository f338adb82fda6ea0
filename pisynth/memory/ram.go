package memory

import (
	"encoding/binary"
	"fmt"
	"sync"
)

// LineSize is the data cache line length in bytes.
const LineSize = 64

type cacheLine struct {
	data  [LineSize]byte
	dirty bool
}

// RAM is DMA-capable memory behind a write-back data cache.
//
// CPU accesses (Read32/Write32) go through the cache: a write lands in a
// cache line and stays invisible to bus masters until Clean. Bus masters use
// the DMA port (DMARead32/DMAWrite32), which only ever sees backing memory.
type RAM struct {
	mu    sync.Mutex
	base  uint32
	data  []byte
	lines map[uint32]*cacheLine
}

// NewRAM creates size bytes of memory at base. Both must be line aligned.
func NewRAM(base uint32, size int) *RAM {
	if base%LineSize != 0 || size%LineSize != 0 {
		panic(fmt.Sprintf("RAM at 0x%08X size %d is not cache line aligned", base, size))
	}
	return &RAM{
		base:  base,
		data:  make([]byte, size),
		lines: make(map[uint32]*cacheLine),
	}
}

// Base returns the first address of the RAM.
func (r *RAM) Base() uint32 { return r.base }

// Size returns the RAM size in bytes.
func (r *RAM) Size() int { return len(r.data) }

func (r *RAM) offset(address uint32) int {
	off := int(address) - int(r.base)
	if off < 0 || off+4 > len(r.data) || address%4 != 0 {
		panic(fmt.Sprintf("RAM access out of range or unaligned: 0x%08X", address))
	}
	return off
}

// line returns the cache line holding address, filling it from backing
// memory on a miss.
func (r *RAM) line(address uint32) *cacheLine {
	tag := address &^ (LineSize - 1)
	l, ok := r.lines[tag]
	if !ok {
		l = &cacheLine{}
		start := int(tag - r.base)
		copy(l.data[:], r.data[start:start+LineSize])
		r.lines[tag] = l
	}
	return l
}

func (r *RAM) Read32(address uint32) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.offset(address)
	l := r.line(address)
	return binary.LittleEndian.Uint32(l.data[address%LineSize:])
}

func (r *RAM) Write32(address uint32, value uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.offset(address)
	l := r.line(address)
	binary.LittleEndian.PutUint32(l.data[address%LineSize:], value)
	l.dirty = true
}

// DMARead32 reads backing memory, bypassing the CPU cache.
func (r *RAM) DMARead32(address uint32) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return binary.LittleEndian.Uint32(r.data[r.offset(address):])
}

// DMAWrite32 writes backing memory, bypassing the CPU cache.
func (r *RAM) DMAWrite32(address uint32, value uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	binary.LittleEndian.PutUint32(r.data[r.offset(address):], value)
}

func (r *RAM) eachLine(address uint32, length int, fn func(tag uint32)) {
	if length <= 0 {
		return
	}
	first := address &^ (LineSize - 1)
	last := (address + uint32(length) - 1) &^ (LineSize - 1)
	for tag := first; tag <= last; tag += LineSize {
		fn(tag)
	}
}

// Clean writes dirty lines covering the range back to memory. Lines stay cached.
func (r *RAM) Clean(address uint32, length int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.eachLine(address, length, func(tag uint32) {
		l, ok := r.lines[tag]
		if !ok || !l.dirty {
			return
		}
		start := int(tag - r.base)
		copy(r.data[start:start+LineSize], l.data[:])
		l.dirty = false
	})
}

// Invalidate drops lines covering the range, discarding unwritten data.
func (r *RAM) Invalidate(address uint32, length int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.eachLine(address, length, func(tag uint32) {
		delete(r.lines, tag)
	})
}

var _ Cache = (*RAM)(nil)
var _ Device = (*RAM)(nil)
