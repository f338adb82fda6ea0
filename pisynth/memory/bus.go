package memory

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/valerio/go-pisynth/pisynth/addr"
)

// Bus is 32-bit register access to the ARM physical address space.
type Bus interface {
	Read32(address uint32) uint32
	Write32(address uint32, value uint32)
}

// Cache is the pair of data cache maintenance operations drivers need when
// sharing memory with a DMA engine.
type Cache interface {
	// Clean writes back any dirty lines covering the range so that bus
	// masters observe CPU writes.
	Clean(address uint32, length int)
	// Invalidate discards lines covering the range so that the CPU observes
	// bus master writes.
	Invalidate(address uint32, length int)
}

// Device is a memory mapped peripheral. It receives absolute addresses.
type Device interface {
	Read32(address uint32) uint32
	Write32(address uint32, value uint32)
}

// MMU dispatches bus accesses to the device owning each 4KiB page.
type MMU struct {
	mu    sync.RWMutex
	pages map[uint32]Device
}

// New creates an MMU with nothing mapped.
func New() *MMU {
	return &MMU{pages: make(map[uint32]Device)}
}

// Map routes [base, base+size) to dev. Overlapping an existing mapping panics.
func (m *MMU) Map(base, size uint32, dev Device) {
	m.mu.Lock()
	defer m.mu.Unlock()

	first := base / addr.PageSize
	last := (base + size - 1) / addr.PageSize
	for page := first; page <= last; page++ {
		if _, ok := m.pages[page]; ok {
			panic(fmt.Sprintf("page 0x%08X already mapped", page*addr.PageSize))
		}
		m.pages[page] = dev
	}
}

func (m *MMU) device(address uint32) Device {
	m.mu.RLock()
	dev := m.pages[address/addr.PageSize]
	m.mu.RUnlock()
	return dev
}

func (m *MMU) Read32(address uint32) uint32 {
	dev := m.device(address)
	if dev == nil {
		slog.Warn("Read from unmapped address", "addr", fmt.Sprintf("0x%08X", address))
		return 0
	}
	return dev.Read32(address)
}

func (m *MMU) Write32(address uint32, value uint32) {
	dev := m.device(address)
	if dev == nil {
		slog.Warn("Write to unmapped address", "addr", fmt.Sprintf("0x%08X", address), "value", fmt.Sprintf("0x%08X", value))
		return
	}
	dev.Write32(address, value)
}

// SetBits performs a read-modify-write setting mask.
func SetBits(b Bus, address, mask uint32) {
	b.Write32(address, b.Read32(address)|mask)
}

// ClearBits performs a read-modify-write clearing mask.
func ClearBits(b Bus, address, mask uint32) {
	b.Write32(address, b.Read32(address)&^mask)
}

var fence atomic.Uint32

// Barrier orders all memory accesses before it against all accesses after
// it, as seen by other cores. It stands in for ARM's DMB.
func Barrier() {
	fence.Add(1)
}
