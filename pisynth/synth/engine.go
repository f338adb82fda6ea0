// Package synth is the square wave synthesizer that answers audio requests
// with the tone of the last MIDI note played.
package synth

import (
	"log/slog"
	"sync/atomic"

	"gitlab.com/gomidi/midi/v2"

	"github.com/valerio/go-pisynth/pisynth/fault"
	"github.com/valerio/go-pisynth/pisynth/kernel"
	"github.com/valerio/go-pisynth/pisynth/msg"
)

// Output codes. Samples are 12-bit unsigned, so silence is mid-scale.
const (
	Silence uint32 = 2048
	High    uint32 = 3072
	Low     uint32 = 1024
)

const noNote = -1

// Engine holds the note state. Only the task running the engine mutates it.
type Engine struct {
	note  int
	phase int

	// held mirrors note for readers on other goroutines.
	held atomic.Int32
}

func New() *Engine {
	e := &Engine{note: noNote}
	e.held.Store(noNote)
	return e
}

// Held returns the held note, if any. Safe from any goroutine.
func (e *Engine) Held() (note int, ok bool) {
	n := int(e.held.Load())
	return n, n != noNote
}

// Render produces n stereo sample pairs.
func (e *Engine) Render(n int) []uint32 {
	out := make([]uint32, 2*n)
	e.Fill(out)
	return out
}

// Fill writes len(out)/2 stereo pairs into out. With a note held it is a
// square wave whose phase carries over between calls.
func (e *Engine) Fill(out []uint32) {
	if e.note == noNote {
		for i := range out {
			out[i] = Silence
		}
		return
	}

	half := HalfPeriod(e.note)
	period := 2 * half
	for i := 0; i+1 < len(out); i += 2 {
		code := Low
		if e.phase < half {
			code = High
		}
		out[i] = code
		out[i+1] = code
		e.phase = (e.phase + 1) % period
	}
}

// HandleMIDI applies a USB-MIDI event packet: the code index byte followed
// by a channel voice message.
func (e *Engine) HandleMIDI(p msg.MIDIPacket) {
	b := p.Bytes()
	if len(b) < 4 {
		slog.Debug("Short MIDI packet ignored", "len", len(b))
		return
	}

	m := midi.Message(b[1:4])
	var ch, key, vel uint8
	switch {
	case m.GetNoteOn(&ch, &key, &vel):
		// The decoder masks data bytes to 7 bits; the wire value must fit.
		fault.Assert(b[2] < 0x80, "note %d outside the period table", b[2])
		e.note = int(key)
		e.phase = 0
	case m.GetNoteOff(&ch, &key, &vel):
		fault.Assert(b[2] < 0x80, "note %d outside the period table", b[2])
		if e.note == int(key) {
			e.note = noNote
		}
	default:
		return
	}
	e.held.Store(int32(e.note))
	slog.Debug("Note state", "msg", m.String(), "note", e.note)
}

// Run serves the engine as both the audio source and the MIDI sink.
func (e *Engine) Run(task *kernel.Task) {
	task.RegisterAs(msg.AudioSource)
	task.RegisterAs(msg.MIDISink)

	for {
		req, err := task.Receive()
		if err != nil {
			return
		}

		switch m := msg.Decode(req.Msg).(type) {
		case msg.DeliverMIDI:
			// Reply first so the forwarder is not held up by synthesis.
			task.Reply(req, nil)
			e.HandleMIDI(m.Packet)
		case msg.AudioRequest:
			fault.Assert(m.Len >= 0, "audio request for %d samples", m.Len)
			task.Reply(req, e.Render(m.Len))
		}
	}
}

// PacketSource resolves a MIDI packet event to its packet.
type PacketSource interface {
	Packet(handle uint32) msg.MIDIPacket
}

// Forward relays bridged MIDI packets to the MIDI sink, acknowledging each
// event once the sink has taken it.
func Forward(task *kernel.Task, packets PacketSource) {
	sink, err := task.WhoIs(msg.MIDISink)
	if err != nil {
		return
	}

	for {
		h, err := task.AwaitEvent(kernel.EventMIDIPacket)
		if err != nil {
			return
		}
		pkt := packets.Packet(h)
		_, err = task.Send(sink, msg.DeliverMIDI{Packet: pkt}, nil)
		task.AcknowledgeEvent(kernel.EventMIDIPacket, h)
		if err != nil {
			return
		}
	}
}
