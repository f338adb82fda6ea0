package samplesrc

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valerio/go-pisynth/pisynth/fault"
	"github.com/valerio/go-pisynth/pisynth/kernel"
	"github.com/valerio/go-pisynth/pisynth/msg"
)

func TestTo12Bit(t *testing.T) {
	tests := []struct {
		in   int16
		want uint32
	}{
		{32767, 4095},
		{-32768, 0},
		{0, 2048},
		{-1, 2047},
		{16, 2049},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, To12Bit(tt.in), "sample %d", tt.in)
	}
}

func TestNextWraps(t *testing.T) {
	pcm := make([]int16, 20)
	for i := range pcm {
		pcm[i] = int16(i * 16)
	}
	s := New(pcm)
	require.Equal(t, 10, s.Frames())

	first := s.Next(4)
	assert.Equal(t, []uint32{To12Bit(16), To12Bit(0)}, first[:2], "right channel first")
	second := s.Next(4)
	assert.Equal(t, To12Bit(9*16), second[0])

	third := s.Next(4)
	assert.Equal(t, first, third, "slice 16-24 would run past the end")

	assert.NotNil(t, fault.Run(func() { s.Next(11) }))
	assert.NotNil(t, fault.Run(func() { s.Next(-1) }))
}

func writeWAV(t *testing.T, chans, rate int, data []int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := wav.NewEncoder(f, rate, 16, chans, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: chans, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	return path
}

func TestLoadWAV(t *testing.T) {
	t.Run("stereo", func(t *testing.T) {
		path := writeWAV(t, 2, SampleRate, []int{32767, -32768, 0, 16})
		s, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, []uint32{0, 4095, 2049, 2048}, s.Next(2))
	})

	t.Run("mono is duplicated", func(t *testing.T) {
		path := writeWAV(t, 1, SampleRate, []int{32767, -32768})
		s, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, []uint32{4095, 4095, 0, 0}, s.Next(2))
	})

	t.Run("wrong rate", func(t *testing.T) {
		path := writeWAV(t, 2, 22050, []int{0, 0})
		_, err := Load(path)
		assert.ErrorContains(t, err, "22050Hz")
	})

	t.Run("unsupported type", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sample.ogg")
		require.NoError(t, os.WriteFile(path, []byte("OggS"), 0o644))
		_, err := Load(path)
		assert.ErrorContains(t, err, "unsupported file type")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.wav"))
		assert.Error(t, err)
	})
}

func TestRun(t *testing.T) {
	t.Run("answers audio requests", func(t *testing.T) {
		k := kernel.New()
		defer k.Shutdown()

		k.Create("samplesrc", New([]int16{32767, -32768, 0, 0}).Run)
		got := make(chan []uint32, 1)
		k.Create("audio", func(task *kernel.Task) {
			src, err := task.WhoIs(msg.AudioSource)
			if err != nil {
				return
			}
			buf := make([]uint32, 2)
			n, err := task.Send(src, msg.AudioRequest{Len: 1}, buf)
			if err == nil {
				got <- buf[:n]
			}
		})
		select {
		case out := <-got:
			assert.Equal(t, []uint32{0, 4095}, out)
		case <-time.After(2 * time.Second):
			t.Fatal("no reply")
		}
	})

	t.Run("MIDI delivery is a fault", func(t *testing.T) {
		k := kernel.New()
		k.Create("samplesrc", New([]int16{0, 0}).Run)
		k.Create("midisrc", func(task *kernel.Task) {
			src, err := task.WhoIs(msg.AudioSource)
			if err != nil {
				return
			}
			task.Send(src, msg.DeliverMIDI{}, nil)
		})
		<-k.Halted()
		k.Wait()
		require.NotNil(t, k.Fault())
		assert.Equal(t, "sample source cannot serve deliver-midi", k.Fault().Reason)
	})
}
