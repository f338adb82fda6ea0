package pisynth

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valerio/go-pisynth/pisynth/addr"
	"github.com/valerio/go-pisynth/pisynth/backend"
	"github.com/valerio/go-pisynth/pisynth/kernel"
	"github.com/valerio/go-pisynth/pisynth/samplesrc"
	"github.com/valerio/go-pisynth/pisynth/soc"
	"github.com/valerio/go-pisynth/pisynth/synth"
	"github.com/valerio/go-pisynth/pisynth/timing"
)

func noteOn(note byte) [4]byte  { return [4]byte{0x09, 0x90, note, 100} }
func noteOff(note byte) [4]byte { return [4]byte{0x08, 0x80, note, 0} }

func start(t *testing.T, cfg Config) *System {
	t.Helper()
	s, err := New(cfg)
	require.NoError(t, err)
	s.Start()
	t.Cleanup(s.Stop)
	return s
}

func steps(t *testing.T, s *System, n int) []soc.Frame {
	t.Helper()
	var out []soc.Frame
	for i := 0; i < n; i++ {
		frames, err := s.Step()
		require.NoError(t, err)
		out = append(out, frames...)
	}
	return out
}

func holding(s *System, note int) bool {
	st := s.Status()
	return st.Holding && st.Held == note
}

func codes(frames []soc.Frame) []uint32 {
	out := make([]uint32, len(frames))
	for i, f := range frames {
		out[i] = f.Right
	}
	return out
}

func repeat(code uint32, n int) []uint32 {
	out := make([]uint32, n)
	for i := range out {
		out[i] = code
	}
	return out
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"board", func(c *Config) { c.Board = "pi5" }, `unknown board "pi5"`},
		{"divisor", func(c *Config) { c.Divisor = 1 }, "clock divisor 1 outside 2..4095"},
		{"buffer", func(c *Config) { c.Samples = 0 }, "buffer of 0 samples"},
		{"rate", func(c *Config) { c.SampleRate = 48000 }, "sample rate 48000 must be 44100"},
		{"zero rate", func(c *Config) { c.SampleRate = 0 }, "sample rate 0 must be 44100"},
		{"slow clock", func(c *Config) { c.ClockFreq = 100_000 }, "too slow"},
		{"pool", func(c *Config) { c.PoolSize = 0 }, "MIDI pool size 0"},
		{"spin", func(c *Config) { c.SpinLimit = -1 }, "spin limit -1"},
		{"sample without file", func(c *Config) { c.Source = SourceSample }, "needs a sample file"},
		{"source", func(c *Config) { c.Source = "noise" }, `unknown audio source "noise"`},
		{"tick", func(c *Config) { c.TickHz = 0 }, "tick rate 0"},
		{"ram", func(c *Config) { c.RAMSize = 1000 }, "RAM size 1000"},
	}

	require.NoError(t, DefaultConfig().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestMIDIAvailability(t *testing.T) {
	cfg := DefaultConfig()
	assert.True(t, cfg.MIDI())
	cfg.Board = addr.BoardVExpress
	assert.False(t, cfg.MIDI())
	cfg = DefaultConfig()
	cfg.Source = SourceSample
	assert.False(t, cfg.MIDI())
}

func TestSilenceWithNoNoteHeld(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Samples = 4
	s := start(t, cfg)

	frames := steps(t, s, 1)
	assert.Equal(t, []soc.Frame{
		{Right: synth.Silence, Left: synth.Silence},
		{Right: synth.Silence, Left: synth.Silence},
		{Right: synth.Silence, Left: synth.Silence},
		{Right: synth.Silence, Left: synth.Silence},
	}, frames)
}

func TestNoteOnPlaysSquareWave(t *testing.T) {
	s := start(t, DefaultConfig())
	p := synth.HalfPeriod(60)
	require.Equal(t, 84, p)

	require.NoError(t, s.InjectUSB(noteOn(60)))
	require.NoError(t, s.Settle())
	assert.Eventually(t, func() bool { return holding(s, 60) }, time.Second, time.Millisecond)

	// Buffers filled before the note arrived still play silence.
	out := codes(steps(t, s, 20))
	first := 0
	for first < len(out) && out[first] == synth.Silence {
		first++
	}
	require.Less(t, first+4*p, len(out))
	assert.Zero(t, first%DefaultConfig().Samples, "the note starts on a buffer boundary")

	wave := out[first:]
	assert.Equal(t, repeat(synth.High, p), wave[:p])
	assert.Equal(t, repeat(synth.Low, p), wave[p:2*p])
	assert.Equal(t, repeat(synth.High, p), wave[2*p:3*p])

	t.Run("stray note off keeps the note", func(t *testing.T) {
		require.NoError(t, s.InjectUSB(noteOff(61)))
		require.NoError(t, s.Settle())
		assert.True(t, holding(s, 60))
		assert.NotContains(t, codes(steps(t, s, 4)), synth.Silence)
	})

	t.Run("note off silences", func(t *testing.T) {
		require.NoError(t, s.InjectUSB(noteOff(60)))
		require.NoError(t, s.Settle())
		assert.Eventually(t, func() bool { return !s.Status().Holding }, time.Second, time.Millisecond)

		out := codes(steps(t, s, 4))
		assert.Equal(t, repeat(synth.Silence, 2*DefaultConfig().Samples), out[len(out)-2*DefaultConfig().Samples:])
	})

	st := s.Status()
	assert.Equal(t, uint64(3), st.Received)
	assert.Equal(t, DefaultConfig().PoolSize, st.PoolFree, "every packet was acknowledged")
	assert.Zero(t, st.Overwrites)
}

func TestVExpress(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Board = addr.BoardVExpress
	s := start(t, cfg)

	frames := steps(t, s, 3)
	assert.Len(t, frames, 3*cfg.Samples)
	assert.ErrorIs(t, s.InjectUSB(noteOn(60)), ErrNoMIDI)
	assert.NoError(t, s.Settle())
	assert.Equal(t, "vexpress", s.Status().Board)
}

func TestSampleSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loop.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	data := make([]int, 2*64)
	for i := range data {
		data[i] = (i - 64) * 256
	}
	enc := wav.NewEncoder(f, 44100, 16, 2, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: 44100},
		Data:           data,
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())

	cfg := DefaultConfig()
	cfg.Source = SourceSample
	cfg.SamplePath = path
	s := start(t, cfg)

	frames := steps(t, s, 2)
	require.Len(t, frames, 64)
	for i, fr := range frames {
		assert.Equal(t, samplesrc.To12Bit(int16(data[2*i])), fr.Left, "frame %d", i)
		assert.Equal(t, samplesrc.To12Bit(int16(data[2*i+1])), fr.Right, "frame %d", i)
	}
	assert.ErrorIs(t, s.InjectUSB(noteOn(60)), ErrNoMIDI)
}

func TestRun(t *testing.T) {
	s := start(t, DefaultConfig())

	var sink backend.NullSink
	require.NoError(t, s.Run(context.Background(), &sink, timing.NewNoOpLimiter(), 10))
	assert.Equal(t, uint64(10*32), sink.Frames)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, s.Run(ctx, &sink, timing.NewNoOpLimiter(), 0))
	assert.Equal(t, uint64(10*32), sink.Frames, "a done context plays nothing")
}

func TestTimerTicks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TickHz = 1000
	s := start(t, cfg)

	// 50 buffers of 32 samples is about 36ms. Each tick rearms relative to
	// the counter it sees, so at most every other buffer ticks.
	steps(t, s, 50)
	assert.Eventually(t, func() bool { return s.Status().Ticks >= 20 }, 2*time.Second, time.Millisecond)
}

func TestStepAfterStop(t *testing.T) {
	s, err := New(DefaultConfig())
	require.NoError(t, err)
	s.Start()
	steps(t, s, 1)
	s.Stop()

	_, err = s.Step()
	assert.ErrorIs(t, err, kernel.ErrHalted)
	assert.NoError(t, s.Fault())
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Divisor = 0
	_, err := New(cfg)
	assert.ErrorContains(t, err, "invalid configuration")

	cfg = DefaultConfig()
	cfg.Source = SourceSample
	cfg.SamplePath = filepath.Join(t.TempDir(), "missing.wav")
	_, err = New(cfg)
	assert.Error(t, err)
}

func TestLimiter(t *testing.T) {
	cfg := DefaultConfig()
	_, ok := cfg.Limiter().(*timing.AdaptiveLimiter)
	assert.False(t, ok)

	cfg.Realtime = true
	_, ok = cfg.Limiter().(*timing.AdaptiveLimiter)
	assert.True(t, ok)
}
