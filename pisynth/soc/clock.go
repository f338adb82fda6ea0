package soc

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/valerio/go-pisynth/pisynth/addr"
	"github.com/valerio/go-pisynth/pisynth/bit"
)

// PLLDFreq is the rate of clock source 6.
const PLLDFreq = 500_000_000

// busySettle is how many control reads BUSY stays high after the generator
// is killed.
const busySettle = 2

// Clock models the PWM clock generator of the clock manager. Writes lacking
// the password are ignored.
type Clock struct {
	mu      sync.Mutex
	ctl     uint32
	div     uint32
	running bool
	settle  int
}

func (c *Clock) Read32(address uint32) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch address {
	case addr.CMPWMCTL:
		v := c.ctl
		if c.running || c.settle > 0 {
			v |= addr.ClockCtlBusy
		}
		if c.settle > 0 {
			c.settle--
		}
		return v
	case addr.CMPWMDIV:
		return c.div
	}
	return 0
}

func (c *Clock) Write32(address uint32, value uint32) {
	if value&0xFF000000 != addr.ClockPassword {
		slog.Warn("Clock manager write without password", "addr", fmt.Sprintf("0x%08X", address), "value", fmt.Sprintf("0x%08X", value))
		return
	}
	value &^= 0xFF000000

	c.mu.Lock()
	defer c.mu.Unlock()

	switch address {
	case addr.CMPWMCTL:
		if value&addr.ClockCtlKill != 0 {
			if c.running {
				c.settle = busySettle
			}
			c.running = false
			c.ctl = value &^ (addr.ClockCtlKill | addr.ClockCtlEnab)
			return
		}
		if value&addr.ClockCtlEnab == 0 && c.running {
			c.settle = busySettle
			c.running = false
		}
		if value&addr.ClockCtlEnab != 0 {
			c.running = true
		}
		c.ctl = value &^ addr.ClockCtlBusy
	case addr.CMPWMDIV:
		c.div = value
	}
}

// Freq returns the generator's output rate, or 0 when stopped.
func (c *Clock) Freq() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.ctl&addr.ClockSrcMask != addr.ClockSrcPLLD {
		return 0
	}
	divi := int(bit.Field(c.div, addr.ClockDivIShift, 12))
	if divi == 0 {
		return 0
	}
	return PLLDFreq / divi
}
