// Package soc simulates the parts of a BCM2836 (or a vexpress-a15 with the
// same peripherals behind a GIC) that the synthesizer drives: the PWM audio
// path, DMA channel 0, the system timer, interrupt controllers, core
// mailboxes and the USB packet feed.
package soc

import (
	"fmt"

	"github.com/valerio/go-pisynth/pisynth/addr"
	"github.com/valerio/go-pisynth/pisynth/memory"
)

// Cores is the number of cores the synthesizer uses.
const Cores = 2

type Config struct {
	Board   addr.Board
	RAMBase uint32
	RAMSize int
}

// SoC is a wired set of simulated devices.
type SoC struct {
	Board addr.Board
	Bus   *memory.MMU
	RAM   *memory.RAM
	Cores [Cores]*Core

	// Exactly one of IC and GIC is set, per Board.
	IC    *IntController
	Local *Local
	GIC   *GIC
	Lines Lines

	Clock *Clock
	PWM   *PWM
	DMA   *DMA
	Timer *SysTimer
	GPIO  *GPIO
	USB   *USB

	microsFrac uint64
}

func New(cfg Config) (*SoC, error) {
	if cfg.RAMSize <= 0 || uint32(cfg.RAMSize)%addr.PageSize != 0 {
		return nil, fmt.Errorf("ram size %d is not a positive multiple of the page size", cfg.RAMSize)
	}

	s := &SoC{
		Board: cfg.Board,
		Bus:   memory.New(),
		RAM:   memory.NewRAM(cfg.RAMBase, cfg.RAMSize),
	}
	for i := range s.Cores {
		s.Cores[i] = newCore(i)
	}
	s.Bus.Map(cfg.RAMBase, uint32(cfg.RAMSize), s.RAM)

	main := s.Cores[0]
	switch cfg.Board {
	case addr.BoardBCM2836:
		s.IC = NewIntController(main.Interrupt)
		s.Local = NewLocal(s.IC, s.Cores[:])
		s.Lines = s.IC
		s.Bus.Map(addr.ICBase, addr.PageSize, s.IC)
		s.Bus.Map(addr.LocalBase, addr.PageSize, s.Local)
	case addr.BoardVExpress:
		s.GIC = NewGIC(main.Interrupt)
		s.Lines = s.GIC
		s.Bus.Map(addr.GICDistBase, 2*addr.PageSize, s.GIC)
	default:
		return nil, fmt.Errorf("unknown board %q", cfg.Board)
	}

	s.Clock = &Clock{}
	s.PWM = NewPWM(s.Clock)
	s.DMA = NewDMA(s.RAM, s.PWM, s.Lines, addr.IRQDMA0)
	s.Timer = NewSysTimer(s.Lines)
	s.GPIO = NewGPIO()
	s.USB = NewUSB(s.Cores[1])

	s.Bus.Map(addr.CMPWMBase&^(addr.PageSize-1), addr.PageSize, s.Clock)
	s.Bus.Map(addr.PWMBase, addr.PageSize, s.PWM)
	s.Bus.Map(addr.DMABase, addr.PageSize, s.DMA)
	s.Bus.Map(addr.SysTimerBase, addr.PageSize, s.Timer)
	s.Bus.Map(addr.GPIOBase, addr.PageSize, s.GPIO)

	return s, nil
}

// Start runs every core's exception loop.
func (s *SoC) Start() {
	for _, c := range s.Cores {
		c.Start()
	}
}

// Stop ends every core's exception loop and waits for them.
func (s *SoC) Stop() {
	for _, c := range s.Cores {
		c.Stop()
	}
	for _, c := range s.Cores {
		c.Wait()
	}
}

// Advance runs the hardware for frames output sample periods at rate Hz:
// the DMA engine moves one stereo word pair per frame and the system timer
// counts the elapsed microseconds.
func (s *SoC) Advance(frames, rate int) int {
	moved := s.DMA.Advance(2*frames) / 2

	total := uint64(frames)*addr.SysTimerFreq + s.microsFrac
	s.microsFrac = total % uint64(rate)
	s.Timer.Advance(total / uint64(rate))

	return moved
}
