// Package speaker plays the PWM output on the host's sound device.
package speaker

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/valerio/go-pisynth/pisynth/backend"
	"github.com/valerio/go-pisynth/pisynth/soc"
)

// Latency is how much output the ring holds before dropping.
const Latency = 250 * time.Millisecond

type Speaker struct {
	ctx    *oto.Context
	player *oto.Player
	stream *stream
}

var _ backend.Sink = (*Speaker)(nil)

// New opens the default output device at rate Hz and starts playing.
func New(rate int) (*Speaker, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   rate,
		ChannelCount: 2,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   20 * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open audio device: %w", err)
	}
	<-ready

	s := &Speaker{
		ctx:    ctx,
		stream: newStream(int(time.Duration(rate) * Latency / time.Second)),
	}
	s.player = ctx.NewPlayer(s.stream)
	s.player.Play()
	slog.Info("Speaker opened", "rate", rate, "latency", Latency)
	return s, nil
}

// Write queues frames for playback.
func (s *Speaker) Write(frames []soc.Frame) error {
	s.stream.push(frames)
	return nil
}

// Queued is the number of frames waiting to be played.
func (s *Speaker) Queued() int {
	return s.stream.queued()
}

func (s *Speaker) Close() error {
	dropped, underrun := s.stream.stats()
	slog.Info("Speaker closed", "dropped", dropped, "underrun", underrun)
	if err := s.player.Close(); err != nil {
		return fmt.Errorf("failed to close player: %w", err)
	}
	return nil
}
