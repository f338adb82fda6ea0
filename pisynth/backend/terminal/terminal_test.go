package terminal

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valerio/go-pisynth/pisynth/backend"
)

type fixedStatus backend.Status

func (f fixedStatus) Status() backend.Status { return backend.Status(f) }

func screenText(s tcell.SimulationScreen) string {
	cells, w, _ := s.GetContents()
	var sb strings.Builder
	for i, c := range cells {
		if len(c.Runes) > 0 {
			sb.WriteRune(c.Runes[0])
		} else {
			sb.WriteByte(' ')
		}
		if (i+1)%w == 0 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func newTestBackend(t *testing.T, status backend.StatusProvider) (*Backend, tcell.SimulationScreen, *[][4]byte) {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	screen := tcell.NewSimulationScreen("UTF-8")
	var packets [][4]byte
	b := New(Config{
		Screen:   screen,
		OnPacket: func(p [4]byte) { packets = append(packets, p) },
		Status:   status,
	})
	require.NoError(t, b.Init())
	screen.SetSize(80, 30)
	t.Cleanup(func() { _ = b.Cleanup() })
	return b, screen, &packets
}

func TestNoteName(t *testing.T) {
	assert.Equal(t, "C4", NoteName(60))
	assert.Equal(t, "A4", NoteName(69))
	assert.Equal(t, "C-1", NoteName(0))
	assert.Equal(t, "G9", NoteName(127))
}

func TestKeyboard(t *testing.T) {
	now := time.Now()

	t.Run("press then expire", func(t *testing.T) {
		kb := newKeyboard()
		assert.Equal(t, [][4]byte{NoteOn(60)}, kb.press('a', now))
		assert.Empty(t, kb.press('a', now.Add(keyTimeout/2)), "repeats keep the note held")
		assert.Empty(t, kb.expire(now.Add(keyTimeout)))
		assert.Equal(t, [][4]byte{NoteOff(60)}, kb.expire(now.Add(keyTimeout/2+keyTimeout)))
	})

	t.Run("unmapped keys", func(t *testing.T) {
		kb := newKeyboard()
		assert.Empty(t, kb.press('q', now))
		assert.Empty(t, kb.held)
	})

	t.Run("octave shift releases held notes", func(t *testing.T) {
		kb := newKeyboard()
		kb.press('k', now)
		assert.Equal(t, [][4]byte{NoteOff(72)}, kb.press('x', now))
		assert.Equal(t, [][4]byte{NoteOn(84)}, kb.press('k', now))
	})

	t.Run("octave shift stays in range", func(t *testing.T) {
		kb := newKeyboard()
		for i := 0; i < 10; i++ {
			kb.press('x', now)
		}
		assert.Equal(t, 120, kb.base)
		assert.Empty(t, kb.press(';', now), "notes above 127 are not sent")
	})
}

func TestPackets(t *testing.T) {
	assert.Equal(t, [4]byte{0x09, 0x90, 60, 100}, NoteOn(60))
	assert.Equal(t, [4]byte{0x08, 0x80, 60, 0}, NoteOff(60))
}

func TestBackend(t *testing.T) {
	t.Run("keys become packets", func(t *testing.T) {
		b, screen, packets := newTestBackend(t, nil)
		now := time.Now()

		screen.InjectKey(tcell.KeyRune, 'a', tcell.ModNone)
		b.Update(now)
		assert.Equal(t, [][4]byte{NoteOn(60)}, *packets)

		b.Update(now.Add(keyTimeout))
		assert.Equal(t, [][4]byte{NoteOn(60), NoteOff(60)}, *packets)
		assert.True(t, b.Running())
	})

	t.Run("escape quits", func(t *testing.T) {
		b, screen, _ := newTestBackend(t, nil)
		screen.InjectKey(tcell.KeyEscape, 0, tcell.ModNone)
		b.Update(time.Now())
		assert.False(t, b.Running())
	})

	t.Run("cleanup releases held notes", func(t *testing.T) {
		b, screen, packets := newTestBackend(t, nil)
		screen.InjectKey(tcell.KeyRune, 'd', tcell.ModNone)
		b.Update(time.Now())
		require.NoError(t, b.Cleanup())
		assert.Equal(t, [][4]byte{NoteOn(64), NoteOff(64)}, *packets)
	})

	t.Run("renders status and logs", func(t *testing.T) {
		status := fixedStatus{Board: "bcm2836", Held: 60, Holding: true, Buffers: 12, PoolFree: 15}
		b, _, _ := newTestBackend(t, status)
		screen := b.screen.(tcell.SimulationScreen)

		slog.Warn("Sync buffer overwritten")
		b.Update(time.Now())

		text := screenText(screen)
		assert.Contains(t, text, "pisynth (bcm2836)")
		assert.Contains(t, text, "Held note    C4 (60)")
		assert.Contains(t, text, "Pool free    15")
		assert.Contains(t, text, "Sync buffer overwritten")
	})

	t.Run("log filter", func(t *testing.T) {
		b, screen, _ := newTestBackend(t, nil)
		screen.InjectKey(tcell.KeyRune, '-', tcell.ModNone)
		b.Update(time.Now())
		assert.Equal(t, slog.LevelWarn, b.logLevel)

		slog.Info("hidden line")
		b.Update(time.Now())
		assert.NotContains(t, screenText(screen), "hidden line")
	})

	t.Run("small terminal", func(t *testing.T) {
		b, screen, _ := newTestBackend(t, nil)
		screen.SetSize(20, 5)
		b.Update(time.Now())
		assert.Contains(t, screenText(screen), "Terminal too")
	})
}

func TestLogHandler(t *testing.T) {
	buf := newLogBuffer(2)
	log := slog.New(newLogHandler(buf, slog.LevelInfo)).With("core", 1).WithGroup("usb")

	log.Debug("dropped")
	log.Info("first", "n", 1)
	log.Info("second", "n", 2)
	log.Warn("third", slog.Group("pkt", "len", 4))

	got := buf.recent(10, slog.LevelDebug)
	require.Len(t, got, 2)
	assert.Equal(t, "third core=1 usb.pkt.len=4", got[0].Message)
	assert.Equal(t, "second core=1 usb.n=2", got[1].Message)
	assert.Len(t, buf.recent(10, slog.LevelWarn), 1)
}
