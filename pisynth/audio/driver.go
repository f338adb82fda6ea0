// Package audio plays 12-bit stereo PCM through the PWM peripheral, fed by
// DMA channel 0 from a pair of buffers that the fill loop keeps topped up.
//
// The PWM clock runs from PLLD through the clock manager; each channel's
// range is one sample period in PWM clock ticks, so a sample's code is its
// pulse width. DMA channel 0 cycles between two control blocks, paced by the
// PWM's DREQ, interrupting at the end of each. While the engine drains one
// buffer the fill loop refills the other.
package audio

import (
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"

	"github.com/valerio/go-pisynth/pisynth/addr"
	"github.com/valerio/go-pisynth/pisynth/fault"
	"github.com/valerio/go-pisynth/pisynth/irq"
	"github.com/valerio/go-pisynth/pisynth/kernel"
	"github.com/valerio/go-pisynth/pisynth/memory"
	"github.com/valerio/go-pisynth/pisynth/msg"
)

// Cookie is the data delivered with every completion event.
const Cookie uint32 = 0xCAB005E

type Config struct {
	SampleRate int
	// Samples is the number of stereo pairs per buffer.
	Samples   int
	ClockFreq int
	Divisor   int
}

// Range is the PWM period in clock ticks.
func (c Config) Range() uint32 {
	return uint32(math.Round(float64(c.ClockFreq) / float64(c.Divisor) / float64(c.SampleRate)))
}

// BufferBytes is the size of one sample buffer.
func (c Config) BufferBytes() int {
	return c.Samples * 2 * 4
}

// Driver owns the audio hardware and the two DMA buffers.
type Driver struct {
	bus   memory.Bus
	cache memory.Cache
	k     *kernel.Kernel
	cfg   Config

	blocks [2]uint32
	bufs   [2]uint32

	filled atomic.Uint64
}

// New allocates the control blocks and buffers from arena.
func New(bus memory.Bus, cache memory.Cache, arena *memory.Arena, k *kernel.Kernel, cfg Config) (*Driver, error) {
	d := &Driver{bus: bus, cache: cache, k: k, cfg: cfg}

	cbs, err := arena.Alloc(2*addr.ControlBlockSize, addr.ControlBlockAlign)
	if err != nil {
		return nil, fmt.Errorf("audio control blocks: %w", err)
	}
	for i := range d.blocks {
		d.blocks[i] = cbs + uint32(i*addr.ControlBlockSize)
	}
	for i := range d.bufs {
		d.bufs[i], err = arena.Alloc(cfg.BufferBytes(), memory.LineSize)
		if err != nil {
			return nil, fmt.Errorf("audio buffer %d: %w", i, err)
		}
	}
	return d, nil
}

// Blocks returns the addresses of the two control blocks.
func (d *Driver) Blocks() [2]uint32 { return d.blocks }

// Buffers returns the addresses of the two sample buffers.
func (d *Driver) Buffers() [2]uint32 { return d.bufs }

// Filled is the number of buffers handed to the engine so far.
func (d *Driver) Filled() uint64 { return d.filled.Load() }

// Init configures the output pins, PWM clock, PWM and DMA channel 0 and
// registers the completion handler on line. The channel is left inactive.
func (d *Driver) Init(c irq.Controller, line int) {
	// The USB host controller relies on GPFSEL4's other fields.
	gpio := memory.GPIO{Bus: d.bus}
	gpio.SetFunction4(addr.AudioRightPin, addr.GPIOAlt0)
	gpio.SetFunction4(addr.AudioLeftPin, addr.GPIOAlt0)

	clk := memory.ClockManager{Bus: d.bus}
	clk.SetCtl(clk.Ctl() | addr.ClockCtlKill)
	for clk.Busy() {
	}
	clk.SetDiv(uint32(d.cfg.Divisor) << addr.ClockDivIShift)
	clk.SetCtl(addr.ClockCtlEnab | addr.ClockSrcPLLD)

	rng := d.cfg.Range()
	pwm := memory.PWM{Bus: d.bus}
	pwm.SetRange1(rng)
	pwm.SetRange2(rng)
	// Changing which channels share the FIFO requires clearing it.
	pwm.SetCtl(addr.PWMCtlPWEN1 | addr.PWMCtlUSEF1 | addr.PWMCtlPWEN2 | addr.PWMCtlUSEF2 | addr.PWMCtlCLRF1)
	pwm.SetDMAC(addr.PWMDMACEnab | addr.PWMDMACThreshold)

	dma := memory.DMA{Bus: d.bus}
	dma.SetEnable(1 << 0)

	ti := addr.TIIntEn | addr.TIDestDREQ | addr.TISrcInc | addr.DREQPWM<<addr.TIPermapShift
	for i, cb := range d.blocks {
		d.bus.Write32(cb+0x00, ti)
		d.bus.Write32(cb+0x04, addr.RAMBusAlias|d.bufs[i])
		d.bus.Write32(cb+0x08, addr.PWMFIF1Bus)
		d.bus.Write32(cb+0x0C, uint32(d.cfg.BufferBytes()))
		d.bus.Write32(cb+0x10, 0)
		d.bus.Write32(cb+0x14, d.blocks[1-i])
		d.bus.Write32(cb+0x18, 0)
		d.bus.Write32(cb+0x1C, 0)
		d.cache.Clean(cb, addr.ControlBlockSize)
	}

	c.Register(line, d.handleIRQ)
	c.Enable(line)
	dma.SetControlBlock(d.blocks[0])

	slog.Info("Audio output configured",
		"rate", d.cfg.SampleRate,
		"samples", d.cfg.Samples,
		"pwm_clock", d.cfg.ClockFreq/d.cfg.Divisor,
		"range", rng)
}

// handleIRQ acknowledges a completed block at the channel and in the global
// status register; the line stays asserted until both are cleared.
func (d *Driver) handleIRQ() {
	dma := memory.DMA{Bus: d.bus}
	dma.SetCS(addr.DMACSActive | addr.DMACSEnd | addr.DMACSInt)
	dma.SetIntStatus(1 << 0)
	d.k.Deliver(kernel.EventDMA0, Cookie)
}

// Run is the fill loop task. Missing a buffer deadline is a fault.
func (d *Driver) Run(task *kernel.Task) {
	src, err := task.WhoIs(msg.AudioSource)
	if err != nil {
		return
	}

	scratch := make([]uint32, 2*d.cfg.Samples)
	for i := range d.bufs {
		if !d.fill(task, src, i, scratch) {
			return
		}
	}

	dma := memory.DMA{Bus: d.bus}
	dma.SetCS(addr.DMACSActive)
	slog.Debug("Audio started")

	i := 0
	for {
		ev, err := task.AwaitEvent(kernel.EventDMA0)
		if err != nil {
			return
		}
		fault.Assert(ev == Cookie, "DMA event carried 0x%X", ev)

		fault.Assert(dma.ControlBlock() == d.blocks[1-i], "deadline missed: engine left block %d before its refill", 1-i)
		if !d.fill(task, src, i, scratch) {
			return
		}
		fault.Assert(dma.ControlBlock() == d.blocks[1-i], "deadline missed: refill of buffer %d overran", i)

		i = 1 - i
	}
}

func (d *Driver) fill(task *kernel.Task, src *kernel.Task, i int, scratch []uint32) bool {
	n, err := task.Send(src, msg.AudioRequest{Len: d.cfg.Samples}, scratch)
	if err != nil {
		return false
	}
	fault.Assert(n == len(scratch), "audio source replied %d words, want %d", n, len(scratch))

	for j, s := range scratch {
		d.bus.Write32(d.bufs[i]+uint32(4*j), s)
	}
	d.cache.Clean(d.bufs[i], d.cfg.BufferBytes())
	d.filled.Add(1)
	return true
}
