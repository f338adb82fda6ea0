// Package pisynth wires the synthesizer's drivers, kernel tasks and MIDI
// bridge onto a simulated board and runs it buffer by buffer.
package pisynth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"

	"github.com/valerio/go-pisynth/pisynth/addr"
	"github.com/valerio/go-pisynth/pisynth/audio"
	"github.com/valerio/go-pisynth/pisynth/backend"
	"github.com/valerio/go-pisynth/pisynth/fault"
	"github.com/valerio/go-pisynth/pisynth/irq"
	"github.com/valerio/go-pisynth/pisynth/kernel"
	"github.com/valerio/go-pisynth/pisynth/memory"
	"github.com/valerio/go-pisynth/pisynth/midi"
	"github.com/valerio/go-pisynth/pisynth/samplesrc"
	"github.com/valerio/go-pisynth/pisynth/soc"
	"github.com/valerio/go-pisynth/pisynth/synth"
	"github.com/valerio/go-pisynth/pisynth/timer"
	"github.com/valerio/go-pisynth/pisynth/timing"
)

// ErrNoMIDI is returned when packets are injected into a system without a
// MIDI bridge.
var ErrNoMIDI = errors.New("this configuration has no MIDI input")

// System is one simulated board running the synthesizer.
type System struct {
	cfg Config
	SoC *soc.SoC

	k      *kernel.Kernel
	ctl    irq.Controller
	driver *audio.Driver
	timer  *timer.Timer
	engine *synth.Engine
	sample *samplesrc.Source
	bridge *midi.Bridge

	injected atomic.Uint64
	handled  atomic.Uint64
	started  bool
}

// New builds and initializes the hardware and drivers. No task runs until
// Start.
func New(cfg Config) (*System, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	board, err := soc.New(soc.Config{Board: cfg.Board, RAMSize: cfg.RAMSize})
	if err != nil {
		return nil, err
	}
	ctl, err := irq.New(cfg.Board, board.Bus)
	if err != nil {
		return nil, err
	}

	s := &System{cfg: cfg, SoC: board, k: kernel.New(), ctl: ctl}

	// The first page stays unused so no allocation sits at address 0, which
	// reads as the end of a control block chain.
	arena := memory.NewArena(board.RAM)
	if _, err := arena.Alloc(int(addr.PageSize), int(addr.PageSize)); err != nil {
		return nil, fmt.Errorf("reserve zero page: %w", err)
	}

	switch cfg.Source {
	case SourceSynth:
		s.engine = synth.New()
	case SourceSample:
		s.sample, err = samplesrc.Load(cfg.SamplePath)
		if err != nil {
			return nil, err
		}
	}

	s.driver, err = audio.New(board.Bus, board.RAM, arena, s.k, cfg.audio())
	if err != nil {
		return nil, err
	}
	s.timer = timer.New(board.Bus, s.k, cfg.TickHz)

	if cfg.MIDI() {
		buf, err := arena.Alloc(midi.SyncBufferSize, memory.LineSize)
		if err != nil {
			return nil, fmt.Errorf("MIDI sync buffer: %w", err)
		}
		mailbox := irq.NewMailbox(board.Bus, 0)
		mailbox.Attach(ctl)
		s.bridge = midi.NewBridge(s.k, mailbox, midi.NewPool(cfg.PoolSize), board.Bus, buf, cfg.spinner())
	}

	if f := fault.Run(s.init); f != nil {
		return nil, f
	}
	return s, nil
}

func (s *System) init() {
	s.driver.Init(s.ctl, irq.PeripheralLine(s.cfg.Board, addr.IRQDMA0))
	s.timer.Init(s.ctl, irq.PeripheralLine(s.cfg.Board, addr.IRQTimer3))
	if s.bridge != nil {
		s.bridge.Init()
	}

	s.SoC.Cores[0].SetIRQ(func() {
		defer fault.Catch("irq", s.k.Halt)
		s.ctl.Service()
	})
	s.SoC.Cores[1].SetFIQ(func() {
		defer fault.Catch("usb", s.k.Halt)
		s.drainUSB()
	})
}

// drainUSB is the secondary core's FIQ body.
func (s *System) drainUSB() {
	for {
		p, ok := s.SoC.USB.Next()
		if !ok {
			return
		}
		if s.bridge != nil {
			s.bridge.HandlePacket(int(p[0]>>4), p[:])
		}
		s.handled.Add(1)
	}
}

// Start runs the cores and the kernel tasks.
func (s *System) Start() {
	if s.started {
		return
	}
	s.started = true
	s.SoC.Start()

	if s.engine != nil {
		s.k.Create("synth", s.engine.Run)
	} else {
		s.k.Create("sample", s.sample.Run)
	}
	s.k.Create("audio", s.driver.Run)
	if s.bridge != nil {
		s.k.Create("midi-forward", func(task *kernel.Task) { synth.Forward(task, s.bridge) })
	}
	s.k.Create("ticker", s.timer.Ticker)

	slog.Info("System started",
		"board", s.cfg.Board,
		"source", s.cfg.Source,
		"rate", s.cfg.SampleRate,
		"samples", s.cfg.Samples,
		"midi", s.bridge != nil)
}

// Step plays one buffer once the fill loop is ready for it and returns the
// frames the PWM output.
func (s *System) Step() ([]soc.Frame, error) {
	if err := s.k.Quiesce(kernel.EventDMA0, s.SoC.DMA.Completions()); err != nil {
		return nil, s.haltErr(err)
	}
	s.SoC.Advance(s.cfg.Samples, s.cfg.SampleRate)
	return s.SoC.PWM.Drain(), nil
}

// InjectUSB queues a USB-MIDI event packet as if the device sent it.
func (s *System) InjectUSB(packet [4]byte) error {
	if s.bridge == nil {
		return ErrNoMIDI
	}
	s.injected.Add(1)
	s.SoC.USB.Receive(packet)
	return nil
}

// Settle blocks until every injected packet has reached the synth.
func (s *System) Settle() error {
	if s.bridge == nil {
		return nil
	}
	for s.handled.Load() < s.injected.Load() {
		select {
		case <-s.k.Halted():
			return s.haltErr(kernel.ErrHalted)
		default:
			runtime.Gosched()
		}
	}
	st := s.bridge.Stats()
	if err := s.k.Quiesce(kernel.EventMIDIPacket, st.Received-st.Overwrites); err != nil {
		return s.haltErr(err)
	}
	return nil
}

// Run steps until ctx is done, buffers buffers have played (zero means no
// limit) or the system halts. Every buffer goes to sink, paced by limiter.
func (s *System) Run(ctx context.Context, sink backend.Sink, limiter timing.Limiter, buffers int) error {
	for n := 0; buffers == 0 || n < buffers; n++ {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		frames, err := s.Step()
		if err != nil {
			return err
		}
		if err := sink.Write(frames); err != nil {
			return err
		}
		limiter.WaitForNextBuffer()
	}
	return nil
}

// Stop halts the kernel and the cores. The system cannot be restarted.
func (s *System) Stop() {
	s.k.Shutdown()
	if s.started {
		s.SoC.Stop()
	}
	slog.Info("System stopped", "buffers", s.driver.Filled(), "frames", s.SoC.PWM.Played())
}

// Fault returns the fault that halted the system, or nil.
func (s *System) Fault() error {
	if f := s.k.Fault(); f != nil {
		return f
	}
	return nil
}

// Halted is closed when the system halts.
func (s *System) Halted() <-chan struct{} {
	return s.k.Halted()
}

func (s *System) haltErr(err error) error {
	if f := s.Fault(); f != nil {
		return f
	}
	return err
}

// Status is a snapshot for the terminal front end.
func (s *System) Status() backend.Status {
	st := backend.Status{
		Board:   string(s.cfg.Board),
		Buffers: s.driver.Filled(),
		Frames:  s.SoC.PWM.Played(),
		Ticks:   s.timer.Ticks(),
	}
	if s.engine != nil {
		st.Held, st.Holding = s.engine.Held()
	}
	if s.bridge != nil {
		b := s.bridge.Stats()
		st.Received, st.Overwrites, st.PoolFree = b.Received, b.Overwrites, b.PoolFree
	}
	if f := s.k.Fault(); f != nil {
		st.Halted = f.Error()
	}
	return st
}
