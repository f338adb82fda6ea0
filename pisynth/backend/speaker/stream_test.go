package speaker

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valerio/go-pisynth/pisynth/soc"
)

func samples(t *testing.T, p []byte) []int16 {
	t.Helper()
	out := make([]int16, len(p)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(p[2*i:]))
	}
	return out
}

func TestStream(t *testing.T) {
	t.Run("plays queued frames then silence", func(t *testing.T) {
		s := newStream(4)
		s.push([]soc.Frame{{Right: 3072, Left: 1024}})

		p := make([]byte, 2*bytesPerFrame)
		n, err := s.Read(p)
		require.NoError(t, err)
		assert.Equal(t, len(p), n)
		assert.Equal(t, []int16{-16384, 16384, 0, 0}, samples(t, p))

		_, underrun := s.stats()
		assert.Equal(t, uint64(1), underrun)
	})

	t.Run("drops the oldest frames when full", func(t *testing.T) {
		s := newStream(2)
		s.push([]soc.Frame{{Right: 2049, Left: 2049}, {Right: 2050, Left: 2050}, {Right: 2051, Left: 2051}})
		assert.Equal(t, 2, s.queued())

		p := make([]byte, 2*bytesPerFrame)
		_, err := s.Read(p)
		require.NoError(t, err)
		assert.Equal(t, []int16{32, 32, 48, 48}, samples(t, p))

		dropped, _ := s.stats()
		assert.Equal(t, uint64(1), dropped)
		assert.Zero(t, s.queued())
	})

	t.Run("ignores a trailing partial frame", func(t *testing.T) {
		s := newStream(2)
		n, err := s.Read(make([]byte, 6))
		require.NoError(t, err)
		assert.Equal(t, 4, n)
	})
}
