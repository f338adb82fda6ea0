package soc

import (
	"sync"

	"github.com/valerio/go-pisynth/pisynth/addr"
)

// actLEDReset is GPFSEL4 as firmware leaves it: pin 47, the activity LED,
// is an output.
const actLEDReset uint32 = 1 << 21

// GPIO models the six function select registers.
type GPIO struct {
	mu  sync.Mutex
	sel [6]uint32
}

func NewGPIO() *GPIO {
	g := &GPIO{}
	g.sel[4] = actLEDReset
	return g
}

func (g *GPIO) index(address uint32) (int, bool) {
	i := int((address - addr.GPIOBase) / 4)
	return i, address >= addr.GPIOBase && i < len(g.sel)
}

func (g *GPIO) Read32(address uint32) uint32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	if i, ok := g.index(address); ok {
		return g.sel[i]
	}
	return 0
}

func (g *GPIO) Write32(address uint32, value uint32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if i, ok := g.index(address); ok {
		g.sel[i] = value
	}
}
