package pisynth

import (
	"errors"
	"fmt"

	"github.com/valerio/go-pisynth/pisynth/addr"
	"github.com/valerio/go-pisynth/pisynth/audio"
	"github.com/valerio/go-pisynth/pisynth/midi"
	"github.com/valerio/go-pisynth/pisynth/synth"
	"github.com/valerio/go-pisynth/pisynth/timing"
)

// Source selects what answers the audio driver's requests.
type Source string

const (
	SourceSynth  Source = "synth"
	SourceSample Source = "sample"
)

type Config struct {
	Board      addr.Board
	SampleRate int
	// Samples is the number of stereo pairs per DMA buffer.
	Samples   int
	ClockFreq int
	Divisor   int

	PoolSize int
	// SpinLimit bounds the secondary core's wait for the sync buffer; zero
	// waits forever.
	SpinLimit int

	Source     Source
	SamplePath string

	// Realtime paces buffers against the wall clock instead of running as
	// fast as the consumer allows.
	Realtime bool
	TickHz   int
	RAMSize  int
}

func DefaultConfig() Config {
	return Config{
		Board:      addr.BoardBCM2836,
		SampleRate: synth.SampleRate,
		Samples:    32,
		ClockFreq:  500_000_000,
		Divisor:    2,
		PoolSize:   16,
		Source:     SourceSynth,
		TickHz:     1,
		RAMSize:    1 << 20,
	}
}

// MIDI reports whether the configuration runs the MIDI bridge. Only the
// BCM2836 has the core mailboxes it needs, and only the synth consumes it.
func (c Config) MIDI() bool {
	return c.Board == addr.BoardBCM2836 && c.Source == SourceSynth
}

func (c Config) audio() audio.Config {
	return audio.Config{SampleRate: c.SampleRate, Samples: c.Samples, ClockFreq: c.ClockFreq, Divisor: c.Divisor}
}

// realtimeBatch is how many buffers the realtime limiter lets run ahead
// before sleeping.
const realtimeBatch = 8

// Limiter paces Run: at the output rate when Realtime, otherwise not at all.
func (c Config) Limiter() timing.Limiter {
	if !c.Realtime {
		return timing.NewNoOpLimiter()
	}
	return timing.NewAdaptiveLimiter(timing.BufferDuration(c.Samples, c.SampleRate), realtimeBatch)
}

func (c Config) spinner() midi.Spinner {
	return midi.Spinner{Limit: c.SpinLimit}
}

// Validate rejects configurations the hardware cannot run.
func (c Config) Validate() error {
	var errs []error
	switch c.Board {
	case addr.BoardBCM2836, addr.BoardVExpress:
	default:
		errs = append(errs, fmt.Errorf("unknown board %q", c.Board))
	}
	if c.SampleRate != synth.SampleRate {
		errs = append(errs, fmt.Errorf("sample rate %d must be %d to match the period table", c.SampleRate, synth.SampleRate))
	}
	if c.Samples <= 0 {
		errs = append(errs, fmt.Errorf("buffer of %d samples must hold at least one", c.Samples))
	}
	if c.Divisor < 2 || c.Divisor > 0xFFF {
		errs = append(errs, fmt.Errorf("clock divisor %d outside 2..4095", c.Divisor))
	}
	if c.ClockFreq <= 0 {
		errs = append(errs, fmt.Errorf("clock frequency %d must be positive", c.ClockFreq))
	} else if c.SampleRate > 0 && c.Divisor >= 2 && c.audio().Range() < 2 {
		errs = append(errs, fmt.Errorf("PWM clock %d Hz is too slow for %d Hz", c.ClockFreq/c.Divisor, c.SampleRate))
	}
	if c.PoolSize <= 0 {
		errs = append(errs, fmt.Errorf("MIDI pool size %d must be positive", c.PoolSize))
	}
	if c.SpinLimit < 0 {
		errs = append(errs, fmt.Errorf("spin limit %d is negative", c.SpinLimit))
	}
	switch c.Source {
	case SourceSynth:
	case SourceSample:
		if c.SamplePath == "" {
			errs = append(errs, errors.New("sample source needs a sample file"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown audio source %q", c.Source))
	}
	if c.TickHz <= 0 || c.TickHz > addr.SysTimerFreq {
		errs = append(errs, fmt.Errorf("tick rate %d outside 1..%d", c.TickHz, addr.SysTimerFreq))
	}
	if c.RAMSize <= 0 || c.RAMSize%int(addr.PageSize) != 0 {
		errs = append(errs, fmt.Errorf("RAM size %d is not a positive multiple of %d", c.RAMSize, addr.PageSize))
	}
	return errors.Join(errs...)
}
