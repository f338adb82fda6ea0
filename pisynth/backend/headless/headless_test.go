package headless_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valerio/go-pisynth/pisynth/backend/headless"
	"github.com/valerio/go-pisynth/pisynth/soc"
)

func TestRecorder(t *testing.T) {
	t.Run("writes a stereo wav", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.wav")
		r, err := headless.Create(path, 44100, 0)
		require.NoError(t, err)

		require.NoError(t, r.Write([]soc.Frame{
			{Right: 3072, Left: 1024},
			{Right: 2048, Left: 2048},
		}))
		assert.False(t, r.Done())
		require.NoError(t, r.Close())

		f, err := os.Open(path)
		require.NoError(t, err)
		defer f.Close()

		dec := wav.NewDecoder(f)
		require.True(t, dec.IsValidFile())
		buf, err := dec.FullPCMBuffer()
		require.NoError(t, err)
		assert.Equal(t, 2, int(dec.NumChans))
		assert.Equal(t, 44100, int(dec.SampleRate))
		assert.Equal(t, []int{-16384, 16384, 0, 0}, buf.Data)
	})

	t.Run("stops at the frame limit", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "limit.wav")
		r, err := headless.Create(path, 44100, 3)
		require.NoError(t, err)

		require.NoError(t, r.Write(make([]soc.Frame, 2)))
		assert.False(t, r.Done())
		require.NoError(t, r.Write(make([]soc.Frame, 2)))
		assert.True(t, r.Done())
		require.NoError(t, r.Write(make([]soc.Frame, 2)))
		assert.Equal(t, uint64(3), r.Written())
		require.NoError(t, r.Close())
	})
}
