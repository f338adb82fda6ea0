package terminal

import (
	"time"
)

// pianoKeys lays out an octave and a fourth on the home and top rows,
// tracker style. Values are semitones above the keyboard base.
var pianoKeys = map[rune]int{
	'a': 0, 'w': 1, 's': 2, 'e': 3, 'd': 4, 'f': 5, 't': 6,
	'g': 7, 'y': 8, 'h': 9, 'u': 10, 'j': 11, 'k': 12, 'o': 13,
	'l': 14, 'p': 15, ';': 16,
}

const (
	// Terminals report repeats, not releases. A key counts as held while
	// repeats keep arriving within keyTimeout, which must cover the host's
	// initial repeat delay.
	keyTimeout = 600 * time.Millisecond

	defaultBase = 60
	velocity    = 100
)

// NoteOn is the USB-MIDI event packet for a note-on on cable 0, channel 1.
func NoteOn(note int) [4]byte {
	return [4]byte{0x09, 0x90, byte(note), velocity}
}

// NoteOff is the USB-MIDI event packet for a note-off on cable 0, channel 1.
func NoteOff(note int) [4]byte {
	return [4]byte{0x08, 0x80, byte(note), 0}
}

// keyboard turns key repeats into note-on and note-off packets.
type keyboard struct {
	base int
	held map[int]time.Time
}

func newKeyboard() *keyboard {
	return &keyboard{base: defaultBase, held: make(map[int]time.Time)}
}

// press handles one key event. Unknown keys produce nothing.
func (kb *keyboard) press(r rune, now time.Time) [][4]byte {
	switch r {
	case 'z':
		return kb.shift(-12)
	case 'x':
		return kb.shift(12)
	}

	offset, ok := pianoKeys[r]
	if !ok {
		return nil
	}
	note := kb.base + offset
	if note > 127 {
		return nil
	}
	_, held := kb.held[note]
	kb.held[note] = now
	if held {
		return nil
	}
	return [][4]byte{NoteOn(note)}
}

// expire releases notes whose key stopped repeating.
func (kb *keyboard) expire(now time.Time) [][4]byte {
	var out [][4]byte
	for note, last := range kb.held {
		if now.Sub(last) >= keyTimeout {
			delete(kb.held, note)
			out = append(out, NoteOff(note))
		}
	}
	return out
}

// shift moves the keyboard by semitones, releasing everything held.
func (kb *keyboard) shift(semitones int) [][4]byte {
	base := kb.base + semitones
	if base < 0 || base > 120 {
		return nil
	}
	out := kb.releaseAll()
	kb.base = base
	return out
}

func (kb *keyboard) releaseAll() [][4]byte {
	var out [][4]byte
	for note := range kb.held {
		delete(kb.held, note)
		out = append(out, NoteOff(note))
	}
	return out
}
