package irq

import (
	"math/bits"

	"github.com/valerio/go-pisynth/pisynth/addr"
	"github.com/valerio/go-pisynth/pisynth/bit"
	"github.com/valerio/go-pisynth/pisynth/fault"
	"github.com/valerio/go-pisynth/pisynth/memory"
)

// Lines 0-63 are the GPU interrupts of the BCM2835 controller. Core-local
// sources follow at LocalLine(bit) for each bit of the core IRQ source
// register.
const (
	localLines = 32
	lineCount  = addr.GPUIRQCount + localLines
)

// LocalLine returns the line of a core IRQ source register bit.
func LocalLine(source int) int {
	return addr.GPUIRQCount + source
}

// LineMailbox0 is the core-local line of mailbox 0.
const LineMailbox0 = addr.GPUIRQCount + addr.SourceMailbox0

// BCM2836 services one core's IRQs on the Pi 2: GPU interrupts arrive
// through the core's IRQ source register and are resolved through the
// BCM2835 pending registers.
type BCM2836 struct {
	bus      memory.Bus
	core     int
	handlers [lineCount]Handler
}

func NewBCM2836(bus memory.Bus, core int) *BCM2836 {
	return &BCM2836{bus: bus, core: core}
}

func checkLine(line, count int) {
	fault.Assert(line >= 0 && line < count, "interrupt line %d out of range", line)
}

func (c *BCM2836) Register(line int, h Handler) {
	checkLine(line, lineCount)
	fault.Assert(h != nil, "nil handler for line %d", line)
	fault.Assert(c.handlers[line] == nil, "line %d already has a handler", line)
	c.handlers[line] = h
}

func (c *BCM2836) Enable(line int) {
	checkLine(line, lineCount)
	switch {
	case line < 32:
		c.bus.Write32(addr.EnableIRQs1, 1<<line)
	case line < addr.GPUIRQCount:
		c.bus.Write32(addr.EnableIRQs2, 1<<(line-32))
	case line == LineMailbox0:
		memory.SetBits(c.bus, addr.MailboxIntControl(c.core), 1)
	case line == LocalLine(addr.SourceGPU):
		// always routed to core 0
	default:
		fault.Halt("local line %d cannot be enabled", line)
	}
}

func (c *BCM2836) Disable(line int) {
	checkLine(line, lineCount)
	switch {
	case line < 32:
		c.bus.Write32(addr.DisableIRQs1, 1<<line)
	case line < addr.GPUIRQCount:
		c.bus.Write32(addr.DisableIRQs2, 1<<(line-32))
	case line == LineMailbox0:
		memory.ClearBits(c.bus, addr.MailboxIntControl(c.core), 1)
	default:
		fault.Halt("local line %d cannot be disabled", line)
	}
}

// Service dispatches the lowest pending source until none remain. Every
// line is level triggered, so the handler clearing its peripheral is what
// retires it.
func (c *BCM2836) Service() {
	for {
		src := c.bus.Read32(addr.CoreIRQSource(c.core))
		low, ok := bit.Lowest(src)
		if !ok {
			return
		}
		if low != addr.SourceGPU {
			c.dispatch(LocalLine(int(low)))
			continue
		}

		pending := uint64(c.bus.Read32(addr.IRQPending1)) | uint64(c.bus.Read32(addr.IRQPending2))<<32
		if pending == 0 {
			continue
		}
		c.dispatch(bits.TrailingZeros64(pending))
	}
}

func (c *BCM2836) dispatch(line int) {
	h := c.handlers[line]
	fault.Assert(h != nil, "unhandled interrupt on line %d", line)
	h()
}
