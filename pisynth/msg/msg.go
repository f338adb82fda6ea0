// Package msg defines the messages exchanged between the audio driver, the
// MIDI forwarder and the audio sources.
package msg

import (
	"fmt"

	"github.com/valerio/go-pisynth/pisynth/fault"
)

// Kind tags a message.
type Kind uint8

const (
	KindAudioRequest Kind = iota + 1
	KindDeliverMIDI
)

func (k Kind) String() string {
	switch k {
	case KindAudioRequest:
		return "audio-request"
	case KindDeliverMIDI:
		return "deliver-midi"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Endpoint names registered by the audio pipeline.
const (
	AudioSource = "audio-source"
	MIDISink    = "midi-sink"
)

// Message is one of AudioRequest or DeliverMIDI.
type Message interface {
	Kind() Kind
	sealed()
}

// AudioRequest asks for Len stereo sample pairs. The reply carries 2*Len
// words, right channel first.
type AudioRequest struct {
	Len int
}

func (AudioRequest) Kind() Kind { return KindAudioRequest }
func (AudioRequest) sealed()    {}

// DeliverMIDI hands one raw USB-MIDI transfer to the MIDI sink. It is
// replied to with an empty payload.
type DeliverMIDI struct {
	Packet MIDIPacket
}

func (DeliverMIDI) Kind() Kind { return KindDeliverMIDI }
func (DeliverMIDI) sealed()    {}

// MaxPacket bounds the payload of one USB transfer.
const MaxPacket = 64

// MIDIPacket is a length-prefixed USB-MIDI transfer.
type MIDIPacket struct {
	Len  int
	Data [MaxPacket]byte
}

// NewMIDIPacket copies data into a packet. Oversized data is a fault.
func NewMIDIPacket(data []byte) MIDIPacket {
	fault.Assert(len(data) <= MaxPacket, "MIDI packet of %d bytes exceeds %d", len(data), MaxPacket)
	p := MIDIPacket{Len: len(data)}
	copy(p.Data[:], data)
	return p
}

// Bytes returns the packet's payload.
func (p *MIDIPacket) Bytes() []byte {
	return p.Data[:p.Len]
}

// Decode unwraps a received message. Anything but a Message of a known kind
// is a fault.
func Decode(v any) Message {
	m, ok := v.(Message)
	if !ok {
		fault.Halt("unrecognized message %T", v)
	}
	switch m.(type) {
	case AudioRequest, DeliverMIDI:
		return m
	}
	fault.Halt("unrecognized message kind %s", m.Kind())
	return nil
}
