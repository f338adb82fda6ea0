package soc

import (
	"sync"

	"github.com/valerio/go-pisynth/pisynth/addr"
)

// FIFODepth is the PWM FIFO capacity in words.
const FIFODepth = 16

// Frame is one stereo output sample as range-relative duty codes.
type Frame struct {
	Right uint32
	Left  uint32
}

// PWM models the two channel PWM controller in FIFO mode. Words pushed to
// the FIFO are consumed in pairs, channel 1 first, whenever both channels
// are enabled and the clock is running.
type PWM struct {
	mu     sync.Mutex
	clock  *Clock
	ctl    uint32
	dmac   uint32
	rng1   uint32
	rng2   uint32
	fifo   []uint32
	out    []Frame
	played uint64
}

// NewPWM creates a PWM controller fed by clock.
func NewPWM(clock *Clock) *PWM {
	return &PWM{clock: clock}
}

func (p *PWM) Read32(address uint32) uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch address {
	case addr.PWMCTL:
		return p.ctl
	case addr.PWMSTA:
		var sta uint32
		if len(p.fifo) >= FIFODepth {
			sta |= addr.PWMStaFull1
		}
		if len(p.fifo) == 0 {
			sta |= addr.PWMStaEmpty1
		}
		return sta
	case addr.PWMDMAC:
		return p.dmac
	case addr.PWMRNG1:
		return p.rng1
	case addr.PWMRNG2:
		return p.rng2
	}
	return 0
}

func (p *PWM) Write32(address uint32, value uint32) {
	switch address {
	case addr.PWMCTL:
		p.mu.Lock()
		if value&addr.PWMCtlCLRF1 != 0 {
			p.fifo = p.fifo[:0]
		}
		p.ctl = value &^ addr.PWMCtlCLRF1
		p.mu.Unlock()
		p.play()
	case addr.PWMDMAC:
		p.mu.Lock()
		p.dmac = value
		p.mu.Unlock()
	case addr.PWMRNG1:
		p.mu.Lock()
		p.rng1 = value
		p.mu.Unlock()
	case addr.PWMRNG2:
		p.mu.Lock()
		p.rng2 = value
		p.mu.Unlock()
	case addr.PWMFIF1:
		p.push(value)
	}
}

// DREQ reports whether the PWM is requesting data from the DMA engine.
func (p *PWM) DREQ() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dmac&addr.PWMDMACEnab != 0 && len(p.fifo) < FIFODepth
}

func (p *PWM) push(word uint32) {
	p.mu.Lock()
	if len(p.fifo) < FIFODepth {
		p.fifo = append(p.fifo, word)
	}
	p.mu.Unlock()
	p.play()
}

const bothFIFO = addr.PWMCtlPWEN1 | addr.PWMCtlUSEF1 | addr.PWMCtlPWEN2 | addr.PWMCtlUSEF2

func (p *PWM) play() {
	running := p.clock.Freq() > 0

	p.mu.Lock()
	defer p.mu.Unlock()

	if !running || p.ctl&bothFIFO != bothFIFO {
		return
	}
	for len(p.fifo) >= 2 {
		p.out = append(p.out, Frame{Right: p.fifo[0], Left: p.fifo[1]})
		p.fifo = p.fifo[2:]
		p.played++
	}
}

// Drain returns and forgets the frames played since the last call.
func (p *PWM) Drain() []Frame {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := p.out
	p.out = nil
	return out
}

// Played is the total number of frames output.
func (p *PWM) Played() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.played
}

// SampleRate is the output rate implied by the clock and channel 1 range.
func (p *PWM) SampleRate() int {
	freq := p.clock.Freq()
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rng1 == 0 {
		return 0
	}
	return freq / int(p.rng1)
}
