package irq

import (
	"github.com/valerio/go-pisynth/pisynth/addr"
	"github.com/valerio/go-pisynth/pisynth/fault"
	"github.com/valerio/go-pisynth/pisynth/memory"
)

// GIC services the shared peripheral interrupts 32-63 of an ARM GIC.
type GIC struct {
	bus      memory.Bus
	handlers [addr.GICSPICount]Handler
}

// NewGIC initializes the distributor and CPU interface: every SPI targets
// CPU 0 and no priority is masked.
func NewGIC(bus memory.Bus) *GIC {
	g := &GIC{bus: bus}

	bus.Write32(addr.GICDControl, 0)
	for i := uint32(0); i < addr.GICSPICount/4; i++ {
		bus.Write32(addr.GICDTarget32+4*i, 0x01010101)
	}
	bus.Write32(addr.GICCPriority, 0xFF)
	bus.Write32(addr.GICCControl, 1)
	bus.Write32(addr.GICDControl, 1)
	return g
}

func (g *GIC) index(line int) int {
	fault.Assert(line >= addr.GICFirstSPI && line < addr.GICFirstSPI+addr.GICSPICount, "interrupt line %d out of range", line)
	return line - addr.GICFirstSPI
}

func (g *GIC) Register(line int, h Handler) {
	i := g.index(line)
	fault.Assert(h != nil, "nil handler for line %d", line)
	fault.Assert(g.handlers[i] == nil, "line %d already has a handler", line)
	g.handlers[i] = h
}

func (g *GIC) Enable(line int) {
	g.bus.Write32(addr.GICDSetEnable1, 1<<g.index(line))
}

func (g *GIC) Disable(line int) {
	g.bus.Write32(addr.GICDClrEnable1, 1<<g.index(line))
}

// Service acknowledges, dispatches and ends interrupts until the CPU
// interface reports spurious.
func (g *GIC) Service() {
	for {
		id := g.bus.Read32(addr.GICCAcknowledge)
		if id == addr.GICSpurious {
			return
		}
		h := g.handlers[g.index(int(id))]
		fault.Assert(h != nil, "unhandled interrupt %d", id)
		h()
		g.bus.Write32(addr.GICCEOI, id)
	}
}
