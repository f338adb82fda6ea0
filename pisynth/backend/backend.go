// Package backend holds the host side surfaces of the synthesizer: where
// the PWM output goes and where note input comes from.
package backend

import (
	"github.com/valerio/go-pisynth/pisynth/soc"
)

// Sink consumes the stereo frames the PWM plays.
type Sink interface {
	// Write takes a batch of frames in play order.
	Write(frames []soc.Frame) error

	// Close flushes and releases the output.
	Close() error
}

// Status is a snapshot of the running system for display.
type Status struct {
	Board      string
	Held       int
	Holding    bool
	Buffers    uint64
	Frames     uint64
	Received   uint64
	Overwrites uint64
	PoolFree   int
	Ticks      uint64
	Halted     string
}

// StatusProvider reports the running system's state.
type StatusProvider interface {
	Status() Status
}

// Midpoint is the duty code of a silent output.
const Midpoint = 2048

// PCM16 converts a 12-bit duty code into a signed 16-bit sample centred on
// Midpoint. Codes past the 12-bit range clip.
func PCM16(code uint32) int16 {
	if code > 4095 {
		code = 4095
	}
	return int16((int32(code) - Midpoint) * 16)
}

// NullSink discards everything it is given.
type NullSink struct {
	Frames uint64
}

func (n *NullSink) Write(frames []soc.Frame) error {
	n.Frames += uint64(len(frames))
	return nil
}

func (n *NullSink) Close() error { return nil }
