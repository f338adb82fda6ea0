package soc

import (
	"sync"

	"github.com/valerio/go-pisynth/pisynth/addr"
)

// SysTimer models the free running 1MHz system timer and its four compare
// channels. Channel n drives GPU interrupt line n.
type SysTimer struct {
	mu      sync.Mutex
	lines   Lines
	counter uint64
	compare [4]uint32
	cs      uint32
}

func NewSysTimer(lines Lines) *SysTimer {
	return &SysTimer{lines: lines}
}

func (t *SysTimer) Read32(address uint32) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch address {
	case addr.SysTimerCS:
		return t.cs
	case addr.SysTimerCLO:
		return uint32(t.counter)
	case addr.SysTimerCHI:
		return uint32(t.counter >> 32)
	case addr.SysTimerC0, addr.SysTimerC1, addr.SysTimerC2, addr.SysTimerC3:
		return t.compare[(address-addr.SysTimerC0)/4]
	}
	return 0
}

func (t *SysTimer) Write32(address uint32, value uint32) {
	switch address {
	case addr.SysTimerCS:
		t.mu.Lock()
		cleared := t.cs & value
		t.cs &^= value
		t.mu.Unlock()
		for ch := 0; ch < 4; ch++ {
			if cleared&(1<<ch) != 0 {
				t.lines.Lower(ch)
			}
		}
	case addr.SysTimerC0, addr.SysTimerC1, addr.SysTimerC2, addr.SysTimerC3:
		t.mu.Lock()
		t.compare[(address-addr.SysTimerC0)/4] = value
		t.mu.Unlock()
	}
}

// Advance moves the counter forward, latching every compare channel whose
// value was passed.
func (t *SysTimer) Advance(micros uint64) {
	if micros == 0 {
		return
	}

	t.mu.Lock()
	old := uint32(t.counter)
	t.counter += micros
	var fired uint32
	for ch, c := range t.compare {
		if micros >= 1<<32 || c-old-1 < uint32(micros) {
			t.cs |= 1 << ch
			fired |= 1 << ch
		}
	}
	t.mu.Unlock()

	for ch := 0; ch < 4; ch++ {
		if fired&(1<<ch) != 0 {
			t.lines.Raise(ch)
		}
	}
}
