// Package timer drives a periodic tick from system timer compare channel 3,
// the one channel the GPU leaves alone.
package timer

import (
	"log/slog"
	"sync/atomic"

	"github.com/valerio/go-pisynth/pisynth/addr"
	"github.com/valerio/go-pisynth/pisynth/irq"
	"github.com/valerio/go-pisynth/pisynth/kernel"
	"github.com/valerio/go-pisynth/pisynth/memory"
)

// Cookie is the data delivered with every tick event.
const Cookie uint32 = 0xCAB005E

const channel = 3

type Timer struct {
	bus       memory.Bus
	k         *kernel.Kernel
	increment uint32
	ticks     atomic.Uint64
}

// New creates a timer ticking hz times a second.
func New(bus memory.Bus, k *kernel.Kernel, hz int) *Timer {
	return &Timer{bus: bus, k: k, increment: uint32(addr.SysTimerFreq / hz)}
}

// Init arms the first compare and registers the handler on line.
func (t *Timer) Init(c irq.Controller, line int) {
	t.bus.Write32(addr.SysTimerC3, t.bus.Read32(addr.SysTimerCLO)+t.increment)
	c.Register(line, t.handle)
	c.Enable(line)
}

func (t *Timer) handle() {
	t.bus.Write32(addr.SysTimerC3, t.bus.Read32(addr.SysTimerCLO)+t.increment)
	t.bus.Write32(addr.SysTimerCS, 1<<channel)
	t.ticks.Add(1)
	t.k.Deliver(kernel.EventTimer, Cookie)
}

// Ticks is the number of ticks serviced.
func (t *Timer) Ticks() uint64 {
	return t.ticks.Load()
}

// Now reads the free running microsecond counter.
func (t *Timer) Now() uint64 {
	hi := t.bus.Read32(addr.SysTimerCHI)
	lo := t.bus.Read32(addr.SysTimerCLO)
	if hi2 := t.bus.Read32(addr.SysTimerCHI); hi2 != hi {
		hi, lo = hi2, t.bus.Read32(addr.SysTimerCLO)
	}
	return uint64(hi)<<32 | uint64(lo)
}

// Ticker is a task that consumes tick events.
func (t *Timer) Ticker(task *kernel.Task) {
	for {
		if _, err := task.AwaitEvent(kernel.EventTimer); err != nil {
			return
		}
		slog.Debug("Tick", "n", t.Ticks(), "us", t.Now())
	}
}
