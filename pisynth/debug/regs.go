package debug

import (
	"fmt"
	"log/slog"

	"github.com/valerio/go-pisynth/pisynth/addr"
	"github.com/valerio/go-pisynth/pisynth/bit"
	"github.com/valerio/go-pisynth/pisynth/memory"
)

type PWMRegs struct {
	Ctl    uint32
	Status uint32
	DMAC   uint32
	Range1 uint32
	Range2 uint32
}

type ControlBlock struct {
	Address uint32
	TI      uint32
	Source  uint32
	Dest    uint32
	Length  uint32
	Stride  uint32
	Next    uint32
}

type DMARegs struct {
	CS           uint32
	ControlBlock uint32
	// Loaded is the control block the channel is working through.
	Loaded    ControlBlock
	IntStatus uint32
	Enable    uint32
}

type ClockRegs struct {
	Ctl uint32
	Div uint32
}

// Divisor is the integer part of the divider.
func (c ClockRegs) Divisor() uint32 {
	return bit.Field(c.Div, addr.ClockDivIShift, 12)
}

func (c ClockRegs) Busy() bool {
	return c.Ctl&addr.ClockCtlBusy != 0
}

func ReadPWM(bus memory.Bus) PWMRegs {
	return PWMRegs{
		Ctl:    bus.Read32(addr.PWMCTL),
		Status: bus.Read32(addr.PWMSTA),
		DMAC:   bus.Read32(addr.PWMDMAC),
		Range1: bus.Read32(addr.PWMRNG1),
		Range2: bus.Read32(addr.PWMRNG2),
	}
}

func ReadDMA(bus memory.Bus) DMARegs {
	return DMARegs{
		CS:           bus.Read32(addr.DMA0CS),
		ControlBlock: bus.Read32(addr.DMA0ConblkAD),
		Loaded: ControlBlock{
			Address: bus.Read32(addr.DMA0ConblkAD),
			TI:      bus.Read32(addr.DMA0TI),
			Source:  bus.Read32(addr.DMA0SourceAD),
			Dest:    bus.Read32(addr.DMA0DestAD),
			Length:  bus.Read32(addr.DMA0TxfrLen),
			Stride:  bus.Read32(addr.DMA0Stride),
			Next:    bus.Read32(addr.DMA0NextCB),
		},
		IntStatus: bus.Read32(addr.DMAIntStatus),
		Enable:    bus.Read32(addr.DMAEnable),
	}
}

func ReadClock(bus memory.Bus) ClockRegs {
	return ClockRegs{
		Ctl: bus.Read32(addr.CMPWMCTL),
		Div: bus.Read32(addr.CMPWMDIV),
	}
}

// ReadControlBlock reads a control block from memory at address.
func ReadControlBlock(bus memory.Bus, address uint32) ControlBlock {
	return ControlBlock{
		Address: address,
		TI:      bus.Read32(address + 0x00),
		Source:  bus.Read32(address + 0x04),
		Dest:    bus.Read32(address + 0x08),
		Length:  bus.Read32(address + 0x0C),
		Stride:  bus.Read32(address + 0x10),
		Next:    bus.Read32(address + 0x14),
	}
}

func hex(v uint32) string {
	return fmt.Sprintf("0x%08X", v)
}

func (p PWMRegs) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("ctl", hex(p.Ctl)),
		slog.String("sta", hex(p.Status)),
		slog.String("dmac", hex(p.DMAC)),
		slog.Uint64("rng1", uint64(p.Range1)),
		slog.Uint64("rng2", uint64(p.Range2)),
	)
}

func (c ControlBlock) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("at", hex(c.Address)),
		slog.String("ti", hex(c.TI)),
		slog.String("src", hex(c.Source)),
		slog.String("dst", hex(c.Dest)),
		slog.Uint64("len", uint64(c.Length)),
		slog.Uint64("stride", uint64(c.Stride)),
		slog.String("next", hex(c.Next)),
	)
}

func (d DMARegs) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("cs", hex(d.CS)),
		slog.String("conblk", hex(d.ControlBlock)),
		slog.Any("loaded", d.Loaded),
		slog.String("int_status", hex(d.IntStatus)),
		slog.String("enable", hex(d.Enable)),
	)
}

func (c ClockRegs) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("ctl", hex(c.Ctl)),
		slog.String("div", hex(c.Div)),
		slog.Uint64("divisor", uint64(c.Divisor())),
		slog.Bool("busy", c.Busy()),
	)
}

// LogAudio logs the clock, PWM and DMA register state at debug level.
func LogAudio(bus memory.Bus) {
	slog.Debug("Audio registers",
		"clock", ReadClock(bus),
		"pwm", ReadPWM(bus),
		"dma", ReadDMA(bus))
}
