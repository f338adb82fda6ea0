package irq

import (
	"github.com/valerio/go-pisynth/pisynth/addr"
	"github.com/valerio/go-pisynth/pisynth/bit"
	"github.com/valerio/go-pisynth/pisynth/fault"
	"github.com/valerio/go-pisynth/pisynth/memory"
)

// Signals is the number of IPI signals one mailbox carries.
const Signals = 32

// Mailbox is the IPI channel into one core: mailbox 0 of that core, one bit
// per signal. Any core may Deliver; only the owning core Services.
//
// A signal's bit stays set until its handler returns. Producers on other
// cores poll Pending to learn that the consumer has finished with whatever
// the signal handed over.
type Mailbox struct {
	bus      memory.Bus
	core     int
	handlers [Signals]Handler
}

func NewMailbox(bus memory.Bus, core int) *Mailbox {
	return &Mailbox{bus: bus, core: core}
}

func (m *Mailbox) Register(signal int, h Handler) {
	fault.Assert(signal >= 0 && signal < Signals, "IPI signal %d out of range", signal)
	fault.Assert(h != nil, "nil handler for IPI signal %d", signal)
	fault.Assert(m.handlers[signal] == nil, "IPI signal %d already has a handler", signal)
	m.handlers[signal] = h
}

// Deliver raises signal on the owning core.
func (m *Mailbox) Deliver(signal int) {
	m.bus.Write32(addr.MailboxSet(m.core), 1<<signal)
}

// Pending reports whether signal is raised and not yet serviced.
func (m *Mailbox) Pending(signal int) bool {
	return bit.IsSet(uint(signal), m.bus.Read32(addr.MailboxClr(m.core)))
}

// Service drains every raised signal, lowest first, clearing each after its
// handler returns.
func (m *Mailbox) Service() {
	for {
		low, ok := bit.Lowest(m.bus.Read32(addr.MailboxClr(m.core)))
		if !ok {
			return
		}
		h := m.handlers[low]
		fault.Assert(h != nil, "unhandled IPI signal %d", low)
		h()
		m.bus.Write32(addr.MailboxClr(m.core), 1<<low)
	}
}

// Attach routes the mailbox line of c to Service.
func (m *Mailbox) Attach(c Controller) {
	c.Register(LineMailbox0, m.Service)
	c.Enable(LineMailbox0)
}
