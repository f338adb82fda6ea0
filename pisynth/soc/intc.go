package soc

import (
	"sync"

	"github.com/valerio/go-pisynth/pisynth/addr"
	"github.com/valerio/go-pisynth/pisynth/bit"
)

// Lines is how peripherals drive their (level triggered) interrupt lines.
type Lines interface {
	Raise(line int)
	Lower(line int)
}

// IntController models the BCM2835 ARM interrupt controller for the 64 GPU
// interrupt lines. Pending registers show asserted lines masked by enables.
type IntController struct {
	mu       sync.Mutex
	asserted uint64
	enabled  uint64
	fiq      uint32

	notify func()
}

// NewIntController creates a controller that calls notify whenever a line
// becomes pending.
func NewIntController(notify func()) *IntController {
	return &IntController{notify: notify}
}

func (ic *IntController) pendingLocked() uint64 {
	p := ic.asserted & ic.enabled
	if ic.fiq&addr.FIQEnable != 0 {
		p &^= 1 << (ic.fiq & 0x7F)
	}
	return p
}

// Pending reports whether any enabled line is asserted.
func (ic *IntController) Pending() bool {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	return ic.pendingLocked() != 0
}

func (ic *IntController) Raise(line int) {
	ic.mu.Lock()
	ic.asserted |= 1 << uint(line)
	pending := ic.pendingLocked() != 0
	ic.mu.Unlock()
	if pending && ic.notify != nil {
		ic.notify()
	}
}

func (ic *IntController) Lower(line int) {
	ic.mu.Lock()
	ic.asserted &^= 1 << uint(line)
	ic.mu.Unlock()
}

func (ic *IntController) Read32(address uint32) uint32 {
	ic.mu.Lock()
	defer ic.mu.Unlock()

	p := ic.pendingLocked()
	switch address {
	case addr.IRQBasicPend:
		var basic uint32
		if uint32(p) != 0 {
			basic |= 1 << 8
		}
		if uint32(p>>32) != 0 {
			basic |= 1 << 9
		}
		return basic
	case addr.IRQPending1:
		return uint32(p)
	case addr.IRQPending2:
		return uint32(p >> 32)
	case addr.FIQControl:
		return ic.fiq
	case addr.EnableIRQs1:
		return uint32(ic.enabled)
	case addr.EnableIRQs2:
		return uint32(ic.enabled >> 32)
	}
	return 0
}

func (ic *IntController) Write32(address uint32, value uint32) {
	ic.mu.Lock()
	switch address {
	case addr.EnableIRQs1:
		ic.enabled |= uint64(value)
	case addr.EnableIRQs2:
		ic.enabled |= uint64(value) << 32
	case addr.DisableIRQs1:
		ic.enabled &^= uint64(value)
	case addr.DisableIRQs2:
		ic.enabled &^= uint64(value) << 32
	case addr.FIQControl:
		ic.fiq = value
	}
	pending := ic.pendingLocked() != 0
	ic.mu.Unlock()
	if pending && ic.notify != nil {
		ic.notify()
	}
}

// Local models the BCM2836 per-core block: mailbox 0 of each core and the
// per-core IRQ source registers. GPU interrupts are routed to core 0.
type Local struct {
	mu        sync.Mutex
	mailbox   [addr.CoreCount]uint32
	mboxIntEn [addr.CoreCount]uint32

	gpu   *IntController
	cores []*Core
}

// NewLocal creates the local block. cores may be shorter than CoreCount;
// mailbox interrupts for missing cores are latched but never delivered.
func NewLocal(gpu *IntController, cores []*Core) *Local {
	return &Local{gpu: gpu, cores: cores}
}

func (l *Local) kick(core int) {
	if core < len(l.cores) {
		l.cores[core].Interrupt()
	}
}

func (l *Local) Read32(address uint32) uint32 {
	for core := 0; core < addr.CoreCount; core++ {
		switch address {
		case addr.MailboxClr(core):
			l.mu.Lock()
			v := l.mailbox[core]
			l.mu.Unlock()
			return v
		case addr.MailboxIntControl(core):
			l.mu.Lock()
			v := l.mboxIntEn[core]
			l.mu.Unlock()
			return v
		case addr.CoreIRQSource(core):
			return l.source(core)
		}
	}
	return 0
}

func (l *Local) source(core int) uint32 {
	l.mu.Lock()
	var src uint32
	if l.mailbox[core] != 0 && l.mboxIntEn[core]&1 != 0 {
		src |= 1 << addr.SourceMailbox0
	}
	l.mu.Unlock()
	if core == 0 && l.gpu.Pending() {
		src |= 1 << addr.SourceGPU
	}
	return src
}

func (l *Local) Write32(address uint32, value uint32) {
	for core := 0; core < addr.CoreCount; core++ {
		switch address {
		case addr.MailboxSet(core):
			l.mu.Lock()
			l.mailbox[core] |= value
			raise := l.mailbox[core] != 0 && l.mboxIntEn[core]&1 != 0
			l.mu.Unlock()
			if raise {
				l.kick(core)
			}
			return
		case addr.MailboxClr(core):
			l.mu.Lock()
			l.mailbox[core] &^= value
			l.mu.Unlock()
			return
		case addr.MailboxIntControl(core):
			l.mu.Lock()
			l.mboxIntEn[core] = value
			raise := l.mailbox[core] != 0 && value&1 != 0
			l.mu.Unlock()
			if raise {
				l.kick(core)
			}
			return
		}
	}
}

// GIC models the subset of an ARM GIC used on the vexpress: 32 level
// triggered shared peripheral interrupts, one CPU interface.
type GIC struct {
	mu       sync.Mutex
	distCtl  uint32
	cpuCtl   uint32
	priority uint32
	enabled  uint32
	asserted uint32
	active   uint32
	targets  [addr.GICSPICount / 4]uint32

	notify func()
}

// NewGIC creates a GIC that calls notify when an SPI may be pending.
func NewGIC(notify func()) *GIC {
	return &GIC{notify: notify}
}

func (g *GIC) pendingLocked() uint32 {
	if g.distCtl&1 == 0 || g.cpuCtl&1 == 0 {
		return 0
	}
	return g.asserted & g.enabled &^ g.active
}

func (g *GIC) Raise(line int) {
	g.mu.Lock()
	g.asserted |= 1 << uint(line)
	pending := g.pendingLocked() != 0
	g.mu.Unlock()
	if pending && g.notify != nil {
		g.notify()
	}
}

func (g *GIC) Lower(line int) {
	g.mu.Lock()
	g.asserted &^= 1 << uint(line)
	g.mu.Unlock()
}

func (g *GIC) Read32(address uint32) uint32 {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch address {
	case addr.GICDControl:
		return g.distCtl
	case addr.GICCControl:
		return g.cpuCtl
	case addr.GICCPriority:
		return g.priority
	case addr.GICDSetEnable1, addr.GICDClrEnable1:
		return g.enabled
	case addr.GICCAcknowledge:
		p := g.pendingLocked()
		if p == 0 {
			return addr.GICSpurious
		}
		line := lowest(p)
		g.active |= 1 << line
		return uint32(line) + addr.GICFirstSPI
	}
	if address >= addr.GICDTarget32 && address < addr.GICDTarget32+addr.GICSPICount {
		return g.targets[(address-addr.GICDTarget32)/4]
	}
	return 0
}

func (g *GIC) Write32(address uint32, value uint32) {
	g.mu.Lock()
	switch address {
	case addr.GICDControl:
		g.distCtl = value
	case addr.GICCControl:
		g.cpuCtl = value
	case addr.GICCPriority:
		g.priority = value
	case addr.GICDSetEnable1:
		g.enabled |= value
	case addr.GICDClrEnable1:
		g.enabled &^= value
	case addr.GICCEOI:
		if value >= addr.GICFirstSPI && value < addr.GICFirstSPI+addr.GICSPICount {
			g.active &^= 1 << (value - addr.GICFirstSPI)
		}
	default:
		if address >= addr.GICDTarget32 && address < addr.GICDTarget32+addr.GICSPICount {
			g.targets[(address-addr.GICDTarget32)/4] = value
		}
	}
	pending := g.pendingLocked() != 0
	g.mu.Unlock()
	if pending && g.notify != nil {
		g.notify()
	}
}

func lowest(v uint32) uint32 {
	i, _ := bit.Lowest(v)
	return uint32(i)
}
