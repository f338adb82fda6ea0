package synth

import "github.com/valerio/go-pisynth/pisynth/fault"

// SampleRate is the rate the period table is computed for.
const SampleRate = 44100

// halfPeriods[n] is round(SampleRate / (2 * f(n))) for equal-tempered MIDI
// note n, A4 (69) = 440Hz.
var halfPeriods = [...]uint16{
	2697, 2546, 2403, 2268, 2141, 2020, 1907, 1800, // 0-7
	1699, 1604, 1514, 1429, 1348, 1273, 1201, 1134, // 8-15
	1070, 1010, 954, 900, 849, 802, 757, 714, // 16-23
	674, 636, 601, 567, 535, 505, 477, 450, // 24-31
	425, 401, 378, 357, 337, 318, 300, 283, // 32-39
	268, 253, 238, 225, 212, 200, 189, 179, // 40-47
	169, 159, 150, 142, 134, 126, 119, 113, // 48-55
	106, 100, 95, 89, 84, 80, 75, 71, // 56-63
	67, 63, 60, 56, 53, 50, 47, 45, // 64-71
	42, 40, 38, 35, 33, 32, 30, 28, // 72-79
	27, 25, 24, 22, 21, 20, 19, 18, // 80-87
	17, 16, 15, 14, 13, 13, 12, 11, // 88-95
	11, 10, 9, 9, 8, 8, 7, 7, // 96-103
	7, 6, 6, 6, 5, 5, 5, 4, // 104-111
	4, 4, 4, 4, 3, 3, 3, 3, // 112-119
	3, 2, 2, 2, 2, 2, 2, 2, // 120-127
}

// HalfPeriod returns the half-period of note in samples. Notes outside the
// table are a fault.
func HalfPeriod(note int) int {
	fault.Assert(note >= 0 && note < len(halfPeriods), "note %d outside the period table", note)
	return int(halfPeriods[note])
}
