package synth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valerio/go-pisynth/pisynth/fault"
	"github.com/valerio/go-pisynth/pisynth/kernel"
	"github.com/valerio/go-pisynth/pisynth/msg"
)

func noteOn(n byte) msg.MIDIPacket  { return msg.NewMIDIPacket([]byte{0x09, 0x90, n, 100}) }
func noteOff(n byte) msg.MIDIPacket { return msg.NewMIDIPacket([]byte{0x08, 0x80, n, 0}) }

func TestHalfPeriod(t *testing.T) {
	assert.Equal(t, 84, HalfPeriod(60))
	assert.Equal(t, 50, HalfPeriod(69))
	assert.Len(t, halfPeriods, 128)
	for n := range halfPeriods {
		assert.Positive(t, HalfPeriod(n))
	}

	for _, n := range []int{-1, 128} {
		assert.NotNil(t, fault.Run(func() { HalfPeriod(n) }), "note %d", n)
	}
}

func TestSilence(t *testing.T) {
	e := New()
	for _, n := range []int{0, 1, 4, 32, 1000} {
		out := e.Render(n)
		require.Len(t, out, 2*n)
		for _, s := range out {
			assert.Equal(t, Silence, s)
		}
	}
}

func TestSquareWave(t *testing.T) {
	e := New()
	e.HandleMIDI(noteOn(60))
	p := HalfPeriod(60)

	out := e.Render(3 * p)
	for i := 0; i < 3*p; i++ {
		want := High
		if (i/p)%2 == 1 {
			want = Low
		}
		assert.Equal(t, want, out[2*i], "right sample %d", i)
		assert.Equal(t, want, out[2*i+1], "left sample %d", i)
		assert.Less(t, out[2*i], uint32(1<<12))
	}
}

func TestPhaseContinuity(t *testing.T) {
	for _, note := range []byte{21, 60, 69, 100, 127} {
		one := New()
		one.HandleMIDI(noteOn(note))
		want := one.Render(500)

		split := New()
		split.HandleMIDI(noteOn(note))
		var got []uint32
		for _, n := range []int{1, 31, 32, 100, 7, 329} {
			got = append(got, split.Render(n)...)
		}
		assert.Equal(t, want, got, "note %d", note)
	}
}

func TestNoteState(t *testing.T) {
	tests := []struct {
		name    string
		packets []msg.MIDIPacket
		note    int
		held    bool
	}{
		{"nothing", nil, 0, false},
		{"note on", []msg.MIDIPacket{noteOn(60)}, 60, true},
		{"matching off", []msg.MIDIPacket{noteOn(60), noteOff(60)}, 0, false},
		{"stray off", []msg.MIDIPacket{noteOn(60), noteOff(61)}, 60, true},
		{"override without off", []msg.MIDIPacket{noteOn(60), noteOn(64)}, 64, true},
		{"off for overridden note", []msg.MIDIPacket{noteOn(60), noteOn(64), noteOff(60)}, 64, true},
		{"short packet", []msg.MIDIPacket{msg.NewMIDIPacket([]byte{0x09, 0x90})}, 0, false},
		{"control change", []msg.MIDIPacket{noteOn(60), msg.NewMIDIPacket([]byte{0x0B, 0xB0, 7, 100})}, 60, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New()
			for _, p := range tt.packets {
				e.HandleMIDI(p)
			}
			note, held := e.Held()
			assert.Equal(t, tt.held, held)
			if tt.held {
				assert.Equal(t, tt.note, note)
			}
		})
	}
}

func TestOutOfRangeNoteIsFatal(t *testing.T) {
	tests := []struct {
		name   string
		packet msg.MIDIPacket
	}{
		{"note on", msg.NewMIDIPacket([]byte{0x09, 0x90, 0x85, 100})},
		{"note off", msg.NewMIDIPacket([]byte{0x08, 0x80, 0xFF, 0})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New()
			e.HandleMIDI(noteOn(60))
			f := fault.Run(func() { e.HandleMIDI(tt.packet) })
			require.NotNil(t, f)
			assert.Contains(t, f.Reason, "outside the period table")
			note, held := e.Held()
			assert.True(t, held)
			assert.Equal(t, 60, note)
		})
	}
}

func TestNoteOnResetsPhase(t *testing.T) {
	e := New()
	e.HandleMIDI(noteOn(69))
	e.Render(70)
	e.HandleMIDI(noteOn(69))
	assert.Equal(t, High, e.Render(1)[0])
}

type packets map[uint32]msg.MIDIPacket

func (p packets) Packet(h uint32) msg.MIDIPacket { return p[h] }

func TestRunAndForward(t *testing.T) {
	k := kernel.New()
	defer k.Shutdown()

	acked := make(chan uint32, 4)
	k.RegisterAckHandler(kernel.EventMIDIPacket, func(h uint32) { acked <- h })

	e := New()
	k.Create("synth", e.Run)
	k.Create("midisrc", func(task *kernel.Task) {
		Forward(task, packets{1: noteOn(60), 2: noteOff(61)})
	})

	k.Deliver(kernel.EventMIDIPacket, 1)
	k.Deliver(kernel.EventMIDIPacket, 2)
	assert.Equal(t, uint32(1), <-acked)
	assert.Equal(t, uint32(2), <-acked)

	result := make(chan []uint32, 1)
	k.Create("audio", func(task *kernel.Task) {
		src, err := task.WhoIs(msg.AudioSource)
		if err != nil {
			return
		}
		buf := make([]uint32, 2*HalfPeriod(60)*2)
		n, err := task.Send(src, msg.AudioRequest{Len: 2 * HalfPeriod(60)}, buf)
		if err == nil {
			result <- buf[:n]
		}
	})

	select {
	case out := <-result:
		p := HalfPeriod(60)
		require.Len(t, out, 4*p)
		assert.Equal(t, High, out[0])
		assert.Equal(t, High, out[2*(p-1)])
		assert.Equal(t, Low, out[2*p])
		assert.Equal(t, Low, out[4*p-1])
	case <-time.After(2 * time.Second):
		t.Fatal("no audio reply")
	}
}

func TestRunFaultsOnBadMessage(t *testing.T) {
	tests := []struct {
		name   string
		to     string
		m      any
		reason string
	}{
		{"unknown message", msg.MIDISink, "hello", ""},
		{"negative audio request", msg.AudioSource, msg.AudioRequest{Len: -1}, "audio request for -1 samples"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := kernel.New()
			k.Create("synth", New().Run)
			k.Create("rogue", func(task *kernel.Task) {
				to, err := task.WhoIs(tt.to)
				if err != nil {
					return
				}
				task.Send(to, tt.m, nil)
			})

			select {
			case <-k.Halted():
			case <-time.After(2 * time.Second):
				t.Fatal("kernel did not halt")
			}
			k.Wait()
			require.NotNil(t, k.Fault())
			assert.Equal(t, "synth", k.Fault().Context)
			assert.Contains(t, k.Fault().Reason, tt.reason)
		})
	}
}
