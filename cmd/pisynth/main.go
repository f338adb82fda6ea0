package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli"

	"github.com/valerio/go-pisynth/pisynth"
	"github.com/valerio/go-pisynth/pisynth/addr"
	"github.com/valerio/go-pisynth/pisynth/backend"
	"github.com/valerio/go-pisynth/pisynth/backend/headless"
	"github.com/valerio/go-pisynth/pisynth/backend/speaker"
	"github.com/valerio/go-pisynth/pisynth/backend/terminal"
	"github.com/valerio/go-pisynth/pisynth/debug"
	"github.com/valerio/go-pisynth/pisynth/timing"
)

func main() {
	defaults := pisynth.DefaultConfig()

	app := cli.NewApp()
	app.Name = "pisynth"
	app.Description = "A square wave MIDI synthesizer for a simulated Raspberry Pi 2"
	app.Usage = "pisynth [options] <command>"
	app.Version = "1.0.0"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "debug",
			Usage: "Log at debug level",
		},
		cli.StringFlag{
			Name:  "board",
			Usage: "Board to simulate: bcm2836 or vexpress",
			Value: string(defaults.Board),
		},
		cli.IntFlag{
			Name:  "samples",
			Usage: "Stereo samples per DMA buffer",
			Value: defaults.Samples,
		},
		cli.IntFlag{
			Name:  "divisor",
			Usage: "PWM clock divisor from PLLD",
			Value: defaults.Divisor,
		},
		cli.IntFlag{
			Name:  "pool",
			Usage: "MIDI packet pool size",
			Value: defaults.PoolSize,
		},
		cli.IntFlag{
			Name:  "spin-limit",
			Usage: "Polls before a MIDI packet overwrites an unconsumed one (0 = never)",
			Value: defaults.SpinLimit,
		},
		cli.StringFlag{
			Name:  "sample",
			Usage: "Loop this .wav or .mp3 instead of running the synth",
		},
		cli.IntFlag{
			Name:  "tick",
			Usage: "System timer tick rate in Hz",
			Value: defaults.TickHz,
		},
	}
	app.Before = func(c *cli.Context) error {
		level := slog.LevelInfo
		if c.GlobalBool("debug") {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		return nil
	}
	app.Commands = []cli.Command{
		{
			Name:  "render",
			Usage: "Render buffers to a WAV file as fast as possible",
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  "buffers",
					Usage: "Number of DMA buffers to render (required)",
				},
				cli.StringFlag{
					Name:  "out",
					Usage: "WAV file to write",
					Value: "pisynth.wav",
				},
				cli.IntSliceFlag{
					Name:  "note",
					Usage: "Hold a MIDI note from the start, e.g. --note 60 (repeatable)",
				},
				cli.BoolFlag{
					Name:  "dump-regs",
					Usage: "Log the audio registers after rendering",
				},
			},
			Action: runRender,
		},
		{
			Name:   "run",
			Usage:  "Play to the speaker in real time until interrupted",
			Action: runSpeaker,
		},
		{
			Name:   "piano",
			Usage:  "Play the synth from the keyboard in a terminal UI",
			Action: runPiano,
		},
		{
			Name:  "regs",
			Usage: "Dump the live audio registers of a real Raspberry Pi",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "devmem",
					Usage: "Physical memory device",
					Value: "/dev/mem",
				},
			},
			Action: runRegs,
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("Error running pisynth", "error", err)
		os.Exit(1)
	}
}

func configFrom(c *cli.Context) pisynth.Config {
	cfg := pisynth.DefaultConfig()
	cfg.Board = addr.Board(c.GlobalString("board"))
	cfg.Samples = c.GlobalInt("samples")
	cfg.Divisor = c.GlobalInt("divisor")
	cfg.PoolSize = c.GlobalInt("pool")
	cfg.SpinLimit = c.GlobalInt("spin-limit")
	cfg.TickHz = c.GlobalInt("tick")
	if path := c.GlobalString("sample"); path != "" {
		cfg.Source = pisynth.SourceSample
		cfg.SamplePath = path
	}
	return cfg
}

func startSystem(cfg pisynth.Config) (*pisynth.System, error) {
	sys, err := pisynth.New(cfg)
	if err != nil {
		return nil, err
	}
	sys.Start()
	return sys, nil
}

func runRender(c *cli.Context) error {
	buffers := c.Int("buffers")
	if buffers <= 0 {
		return errors.New("render requires --buffers with a positive value")
	}

	cfg := configFrom(c)
	sys, err := startSystem(cfg)
	if err != nil {
		return err
	}
	defer sys.Stop()

	for _, note := range c.IntSlice("note") {
		if note < 0 || note > 127 {
			return fmt.Errorf("invalid note %d", note)
		}
		if err := sys.InjectUSB(terminal.NoteOn(note)); err != nil {
			return err
		}
	}
	if err := sys.Settle(); err != nil {
		return err
	}

	rec, err := headless.Create(c.String("out"), cfg.SampleRate, uint64(buffers*cfg.Samples))
	if err != nil {
		return err
	}
	slog.Info("Rendering", "buffers", buffers, "out", c.String("out"))

	runErr := sys.Run(context.Background(), rec, cfg.Limiter(), buffers)
	if c.Bool("dump-regs") {
		debug.LogAudio(sys.SoC.Bus)
	}
	return errors.Join(runErr, rec.Close())
}

func runSpeaker(c *cli.Context) error {
	cfg := configFrom(c)
	cfg.Realtime = true
	sys, err := startSystem(cfg)
	if err != nil {
		return err
	}
	defer sys.Stop()

	spk, err := speaker.New(cfg.SampleRate)
	if err != nil {
		return err
	}
	defer spk.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Playing, press Ctrl-C to stop")
	return sys.Run(ctx, spk, cfg.Limiter(), 0)
}

// uiEvery is how many buffers play between terminal redraws.
const uiEvery = 32

func runPiano(c *cli.Context) error {
	cfg := configFrom(c)
	cfg.Realtime = true
	sys, err := startSystem(cfg)
	if err != nil {
		return err
	}
	defer sys.Stop()

	var sink backend.Sink
	spk, err := speaker.New(cfg.SampleRate)
	if err != nil {
		slog.Warn("No audio device, playing silently", "error", err)
		sink = &backend.NullSink{}
	} else {
		sink = spk
	}
	defer sink.Close()

	term := terminal.New(terminal.Config{
		OnPacket: func(p [4]byte) {
			if err := sys.InjectUSB(p); err != nil {
				slog.Warn("Key dropped", "error", err)
			}
		},
		Status: sys,
	})
	if err := term.Init(); err != nil {
		return err
	}
	defer term.Cleanup()

	limiter := timing.NewTickerLimiter(timing.BufferDuration(cfg.Samples, cfg.SampleRate))
	defer limiter.Stop()
	for n := 0; term.Running(); n++ {
		if n%uiEvery == 0 {
			term.Update(time.Now())
		}
		frames, err := sys.Step()
		if err != nil {
			term.Update(time.Now())
			return err
		}
		if err := sink.Write(frames); err != nil {
			return err
		}
		limiter.WaitForNextBuffer()
	}
	return nil
}

func runRegs(c *cli.Context) error {
	bus, err := openPeripherals(c.String("devmem"))
	if err != nil {
		return err
	}
	defer bus.Close()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})))
	debug.LogAudio(bus)
	return nil
}
