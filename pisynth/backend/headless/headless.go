// Package headless records the PWM output to a WAV file with no host audio
// or terminal attached.
package headless

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/valerio/go-pisynth/pisynth/backend"
	"github.com/valerio/go-pisynth/pisynth/soc"
)

const (
	bitDepth = 16
	channels = 2
	pcm      = 1

	progressEvery = 44100
)

// Recorder writes up to maxFrames stereo frames as 16-bit PCM. Frames past
// the limit are dropped.
type Recorder struct {
	enc       *wav.Encoder
	closer    io.Closer
	buf       *audio.IntBuffer
	maxFrames uint64
	written   uint64
	lastLog   uint64
}

var _ backend.Sink = (*Recorder)(nil)

// New records to w at rate Hz. A maxFrames of 0 means no limit.
func New(w io.WriteSeeker, rate int, maxFrames uint64) *Recorder {
	return &Recorder{
		enc: wav.NewEncoder(w, rate, bitDepth, channels, pcm),
		buf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: channels, SampleRate: rate},
			SourceBitDepth: bitDepth,
		},
		maxFrames: maxFrames,
	}
}

// Create records to a new file at path.
func Create(path string, rate int, maxFrames uint64) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create recording: %w", err)
	}
	r := New(f, rate, maxFrames)
	r.closer = f
	return r, nil
}

// Write encodes frames in WAV channel order, left first.
func (r *Recorder) Write(frames []soc.Frame) error {
	if r.maxFrames > 0 {
		left := r.maxFrames - r.written
		if uint64(len(frames)) > left {
			frames = frames[:left]
		}
	}
	if len(frames) == 0 {
		return nil
	}

	r.buf.Data = r.buf.Data[:0]
	for _, f := range frames {
		r.buf.Data = append(r.buf.Data, int(backend.PCM16(f.Left)), int(backend.PCM16(f.Right)))
	}
	if err := r.enc.Write(r.buf); err != nil {
		return fmt.Errorf("failed to encode frames: %w", err)
	}
	r.written += uint64(len(frames))

	if r.written-r.lastLog >= progressEvery {
		r.lastLog = r.written
		slog.Info("Recording progress", "frames", r.written, "total", r.maxFrames)
	}
	return nil
}

// Written is the number of frames encoded so far.
func (r *Recorder) Written() uint64 {
	return r.written
}

// Done reports whether the frame limit has been reached.
func (r *Recorder) Done() bool {
	return r.maxFrames > 0 && r.written >= r.maxFrames
}

// Close finalizes the WAV header and closes the file if Create opened it.
func (r *Recorder) Close() error {
	if err := r.enc.Close(); err != nil {
		return fmt.Errorf("failed to finalize recording: %w", err)
	}
	slog.Info("Recording completed", "frames", r.written)
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}
