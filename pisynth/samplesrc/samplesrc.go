// Package samplesrc is an audio source that loops a recorded sample instead
// of synthesizing.
package samplesrc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"

	"github.com/valerio/go-pisynth/pisynth/fault"
	"github.com/valerio/go-pisynth/pisynth/kernel"
	"github.com/valerio/go-pisynth/pisynth/msg"
)

// SampleRate is the only rate a recording may have.
const SampleRate = 44100

// To12Bit rescales a signed 16-bit sample to an unsigned 12-bit code.
func To12Bit(s int16) uint32 {
	return uint32(int32(s)+32768) >> 4
}

// Source streams a table of stereo codes, wrapping to the start whenever
// the next slice would run past the end.
type Source struct {
	table  []uint32
	cursor int
}

// New converts interleaved left/right 16-bit PCM into a source. The table
// is in PWM order: channel 1 drives the right output, so right comes first.
func New(pcm []int16) *Source {
	table := make([]uint32, len(pcm)&^1)
	for i := 0; i < len(table); i += 2 {
		table[i] = To12Bit(pcm[i+1])
		table[i+1] = To12Bit(pcm[i])
	}
	return &Source{table: table}
}

// Frames is the length of the table in stereo pairs.
func (s *Source) Frames() int {
	return len(s.table) / 2
}

// Next returns the next n stereo pairs.
func (s *Source) Next(n int) []uint32 {
	words := 2 * n
	fault.Assert(n >= 0, "request of %d frames", n)
	fault.Assert(words <= len(s.table), "request of %d frames exceeds the %d frame sample", n, s.Frames())

	if s.cursor+words > len(s.table) {
		s.cursor = 0
	}
	out := make([]uint32, words)
	copy(out, s.table[s.cursor:])
	s.cursor += words
	if s.cursor+words > len(s.table) {
		s.cursor = 0
	}
	return out
}

// Run serves the source as the audio source. It answers audio requests only.
func (s *Source) Run(task *kernel.Task) {
	task.RegisterAs(msg.AudioSource)

	for {
		req, err := task.Receive()
		if err != nil {
			return
		}
		m := msg.Decode(req.Msg)
		ar, ok := m.(msg.AudioRequest)
		fault.Assert(ok, "sample source cannot serve %s", m.Kind())
		task.Reply(req, s.Next(ar.Len))
	}
}

// Load reads a .wav or .mp3 recording.
func Load(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("sample: %w", err)
	}
	defer f.Close()

	var src *Source
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		src, err = FromWAV(f)
	case ".mp3":
		src, err = FromMP3(f)
	default:
		return nil, fmt.Errorf("sample: unsupported file type %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("sample %s: %w", path, err)
	}

	slog.Info("Sample loaded", "path", path, "frames", src.Frames())
	return src, nil
}

// FromWAV decodes 16-bit PCM. Mono recordings play on both channels.
func FromWAV(r io.ReadSeeker) (*Source, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, errors.New("wav: not a valid wav file")
	}
	if dec.BitDepth != 16 {
		return nil, fmt.Errorf("wav: %d-bit samples, want 16", dec.BitDepth)
	}
	if dec.SampleRate != SampleRate {
		return nil, fmt.Errorf("wav: %dHz, want %dHz", dec.SampleRate, SampleRate)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("wav: %w", err)
	}

	chans := int(dec.NumChans)
	var pcm []int16
	switch chans {
	case 1:
		pcm = make([]int16, 0, 2*len(buf.Data))
		for _, s := range buf.Data {
			pcm = append(pcm, int16(s), int16(s))
		}
	case 2:
		pcm = make([]int16, len(buf.Data))
		for i, s := range buf.Data {
			pcm[i] = int16(s)
		}
	default:
		return nil, fmt.Errorf("wav: %d channels, want 1 or 2", chans)
	}
	if len(pcm) == 0 {
		return nil, errors.New("wav: no samples")
	}
	return New(pcm), nil
}

// FromMP3 decodes an MP3, which always yields 16-bit stereo.
func FromMP3(r io.Reader) (*Source, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("mp3: %w", err)
	}
	if dec.SampleRate() != SampleRate {
		return nil, fmt.Errorf("mp3: %dHz, want %dHz", dec.SampleRate(), SampleRate)
	}

	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("mp3: %w", err)
	}
	pcm := make([]int16, len(raw)/2)
	for i := range pcm {
		pcm[i] = int16(binary.LittleEndian.Uint16(raw[2*i:]))
	}
	if len(pcm) == 0 {
		return nil, errors.New("mp3: no samples")
	}
	return New(pcm), nil
}
