package soc

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/valerio/go-pisynth/pisynth/addr"
	"github.com/valerio/go-pisynth/pisynth/bit"
	"github.com/valerio/go-pisynth/pisynth/memory"
)

// DMA models channel 0 of the DMA engine. It fetches control blocks and
// source data through the RAM's bus port, so CPU writes must be cleaned
// from the data cache before they are seen.
type DMA struct {
	mu  sync.Mutex
	ram *memory.RAM
	pwm *PWM

	lines Lines
	line  int

	cs        uint32
	conblk    uint32
	loaded    bool
	ti        uint32
	src       uint32
	dst       uint32
	remaining uint32
	stride    uint32
	next      uint32
	intStatus uint32
	enable    uint32

	completions uint64
}

// NewDMA creates channel 0, signalling completion on line of lines.
func NewDMA(ram *memory.RAM, pwm *PWM, lines Lines, line int) *DMA {
	return &DMA{ram: ram, pwm: pwm, lines: lines, line: line, enable: 1}
}

func (d *DMA) Read32(address uint32) uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch address {
	case addr.DMA0CS:
		return d.cs
	case addr.DMA0ConblkAD:
		return d.conblk
	case addr.DMA0TI:
		return d.ti
	case addr.DMA0SourceAD:
		return d.src
	case addr.DMA0DestAD:
		return d.dst
	case addr.DMA0TxfrLen:
		return d.remaining
	case addr.DMA0Stride:
		return d.stride
	case addr.DMA0NextCB:
		return d.next
	case addr.DMAIntStatus:
		return d.intStatus
	case addr.DMAEnable:
		return d.enable
	}
	return 0
}

func (d *DMA) Write32(address uint32, value uint32) {
	d.mu.Lock()
	switch address {
	case addr.DMA0CS:
		d.cs &^= value & (addr.DMACSEnd | addr.DMACSInt)
		if value&addr.DMACSActive != 0 {
			d.cs |= addr.DMACSActive
		} else {
			d.cs &^= addr.DMACSActive
		}
	case addr.DMA0ConblkAD:
		d.conblk = value
		d.loaded = false
	case addr.DMAIntStatus:
		d.intStatus &^= value
	case addr.DMAEnable:
		d.enable = value
	default:
		slog.Warn("Write to read-only DMA register", "addr", fmt.Sprintf("0x%08X", address))
	}
	lower := !d.interruptingLocked()
	d.mu.Unlock()

	if lower {
		d.lines.Lower(d.line)
	}
}

func (d *DMA) interruptingLocked() bool {
	return d.cs&addr.DMACSInt != 0 || d.intStatus&1 != 0
}

func (d *DMA) loadLocked() {
	cb := d.conblk & addr.BusAddressMask
	d.ti = d.ram.DMARead32(cb + 0x00)
	d.src = d.ram.DMARead32(cb + 0x04)
	d.dst = d.ram.DMARead32(cb + 0x08)
	d.remaining = d.ram.DMARead32(cb + 0x0C)
	d.stride = d.ram.DMARead32(cb + 0x10)
	d.next = d.ram.DMARead32(cb + 0x14)
	d.loaded = true
}

func (d *DMA) paced() bool {
	return d.ti&addr.TIDestDREQ != 0 && bit.Field(d.ti, addr.TIPermapShift, 5) == addr.DREQPWM
}

// Advance moves up to words 32-bit words and returns how many moved. The
// transfer stalls when the channel is idle or the PWM stops requesting.
func (d *DMA) Advance(words int) int {
	moved := 0
	raise := false

	d.mu.Lock()
	for moved < words {
		if d.cs&addr.DMACSActive == 0 || d.enable&1 == 0 {
			break
		}
		if !d.loaded {
			if d.conblk == 0 {
				d.cs &^= addr.DMACSActive
				break
			}
			d.loadLocked()
		}
		if d.remaining > 0 {
			if d.paced() && !d.pwm.DREQ() {
				break
			}
			word := d.ram.DMARead32(d.src & addr.BusAddressMask)
			if d.dst == addr.PWMFIF1Bus {
				d.pwm.push(word)
			} else {
				d.ram.DMAWrite32(d.dst&addr.BusAddressMask, word)
			}
			if d.ti&addr.TISrcInc != 0 {
				d.src += 4
			}
			d.remaining -= 4
			moved++
		}
		if d.remaining == 0 {
			d.cs |= addr.DMACSEnd
			if d.ti&addr.TIIntEn != 0 {
				d.cs |= addr.DMACSInt
				d.intStatus |= 1
				raise = true
			}
			d.completions++
			d.conblk = d.next
			d.loaded = false
			if d.conblk == 0 {
				d.cs &^= addr.DMACSActive
			}
		}
	}
	d.mu.Unlock()

	if raise {
		d.lines.Raise(d.line)
	}
	return moved
}

// Completions is the number of control blocks finished.
func (d *DMA) Completions() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.completions
}
