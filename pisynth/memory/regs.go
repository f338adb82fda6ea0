package memory

import (
	"github.com/valerio/go-pisynth/pisynth/addr"
	"github.com/valerio/go-pisynth/pisynth/bit"
)

// ClockManager gives access to the PWM clock generator.
type ClockManager struct{ Bus Bus }

func (c ClockManager) Ctl() uint32 { return c.Bus.Read32(addr.CMPWMCTL) }
func (c ClockManager) Div() uint32 { return c.Bus.Read32(addr.CMPWMDIV) }

// SetCtl writes the control register, supplying the password.
func (c ClockManager) SetCtl(v uint32) { c.Bus.Write32(addr.CMPWMCTL, addr.ClockPassword|v) }

// SetDiv writes the divisor register, supplying the password.
func (c ClockManager) SetDiv(v uint32) { c.Bus.Write32(addr.CMPWMDIV, addr.ClockPassword|v) }

func (c ClockManager) Busy() bool { return c.Ctl()&addr.ClockCtlBusy != 0 }

// PWM gives access to the PWM controller.
type PWM struct{ Bus Bus }

func (p PWM) Ctl() uint32        { return p.Bus.Read32(addr.PWMCTL) }
func (p PWM) SetCtl(v uint32)    { p.Bus.Write32(addr.PWMCTL, v) }
func (p PWM) Status() uint32     { return p.Bus.Read32(addr.PWMSTA) }
func (p PWM) DMAC() uint32       { return p.Bus.Read32(addr.PWMDMAC) }
func (p PWM) SetDMAC(v uint32)   { p.Bus.Write32(addr.PWMDMAC, v) }
func (p PWM) Range1() uint32     { return p.Bus.Read32(addr.PWMRNG1) }
func (p PWM) Range2() uint32     { return p.Bus.Read32(addr.PWMRNG2) }
func (p PWM) SetRange1(v uint32) { p.Bus.Write32(addr.PWMRNG1, v) }
func (p PWM) SetRange2(v uint32) { p.Bus.Write32(addr.PWMRNG2, v) }

// DMA gives access to DMA channel 0 and the global DMA registers.
type DMA struct{ Bus Bus }

func (d DMA) CS() uint32               { return d.Bus.Read32(addr.DMA0CS) }
func (d DMA) SetCS(v uint32)           { d.Bus.Write32(addr.DMA0CS, v) }
func (d DMA) ControlBlock() uint32     { return d.Bus.Read32(addr.DMA0ConblkAD) }
func (d DMA) SetControlBlock(a uint32) { d.Bus.Write32(addr.DMA0ConblkAD, a) }
func (d DMA) IntStatus() uint32        { return d.Bus.Read32(addr.DMAIntStatus) }
func (d DMA) SetIntStatus(v uint32)    { d.Bus.Write32(addr.DMAIntStatus, v) }
func (d DMA) Enable() uint32           { return d.Bus.Read32(addr.DMAEnable) }
func (d DMA) SetEnable(v uint32)       { d.Bus.Write32(addr.DMAEnable, v) }

// GPIO gives access to the function select registers.
type GPIO struct{ Bus Bus }

// SetFunction4 selects fn for a pin covered by GPFSEL4, preserving every
// other pin's field in the shared register.
func (g GPIO) SetFunction4(pin int, fn uint32) {
	shift := uint((pin - addr.GPFSEL4Base) * addr.GPFSELBits)
	v := g.Bus.Read32(addr.GPFSEL4)
	g.Bus.Write32(addr.GPFSEL4, bit.SetField(v, shift, addr.GPFSELBits, fn))
}

// Function4 returns the function selected for a pin covered by GPFSEL4.
func (g GPIO) Function4(pin int) uint32 {
	shift := uint((pin - addr.GPFSEL4Base) * addr.GPFSELBits)
	return bit.Field(g.Bus.Read32(addr.GPFSEL4), shift, addr.GPFSELBits)
}
