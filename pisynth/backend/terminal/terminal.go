// Package terminal is a tcell front end that plays the synthesizer from the
// computer keyboard and shows its state and logs.
package terminal

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/valerio/go-pisynth/pisynth/backend"
)

const (
	minTermWidth  = 60
	minTermHeight = 16
	statusHeight  = 9
	logCapacity   = 200
)

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// NoteName spells a MIDI note, middle C being C4.
func NoteName(note int) string {
	return fmt.Sprintf("%s%d", noteNames[note%12], note/12-1)
}

type Config struct {
	// Screen defaults to the controlling terminal.
	Screen tcell.Screen
	// OnPacket receives every USB-MIDI packet the keyboard produces.
	OnPacket func(packet [4]byte)
	Status   backend.StatusProvider
}

type Backend struct {
	cfg      Config
	screen   tcell.Screen
	running  atomic.Bool
	keys     *keyboard
	logs     *logBuffer
	logLevel slog.Level
	sent     uint64
}

func New(cfg Config) *Backend {
	return &Backend{cfg: cfg, keys: newKeyboard(), logLevel: slog.LevelInfo}
}

// Init takes over the screen and routes the default logger into the log
// panel.
func (t *Backend) Init() error {
	screen := t.cfg.Screen
	if screen == nil {
		var err error
		screen, err = tcell.NewScreen()
		if err != nil {
			return fmt.Errorf("failed to initialize terminal: %w", err)
		}
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("failed to initialize terminal: %w", err)
	}
	t.screen = screen
	t.running.Store(true)

	t.logs = newLogBuffer(logCapacity)
	slog.SetDefault(slog.New(newLogHandler(t.logs, slog.LevelDebug)))

	t.screen.SetStyle(tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite))
	t.screen.Clear()

	go t.handleSignals()
	slog.Info("Terminal piano ready", "keys", "a..;", "octave", "z/x", "quit", "Esc")
	return nil
}

// Running reports whether the user has not asked to quit.
func (t *Backend) Running() bool {
	return t.running.Load()
}

// Update handles pending key events, releases expired notes and redraws.
func (t *Backend) Update(now time.Time) {
	for t.screen.HasPendingEvent() {
		switch ev := t.screen.PollEvent().(type) {
		case *tcell.EventKey:
			t.processKey(ev, now)
		case *tcell.EventResize:
			t.screen.Sync()
		}
	}
	t.send(t.keys.expire(now))

	var st backend.Status
	if t.cfg.Status != nil {
		st = t.cfg.Status.Status()
	}
	t.render(st)
	t.screen.Show()
}

// Cleanup releases held notes and restores the terminal.
func (t *Backend) Cleanup() error {
	t.send(t.keys.releaseAll())
	if t.screen != nil {
		slog.Info("Cleaning up terminal backend")
		t.screen.Fini()
		t.screen = nil
	}
	return nil
}

func (t *Backend) handleSignals() {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	<-signals
	t.running.Store(false)
}

func (t *Backend) processKey(ev *tcell.EventKey, now time.Time) {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		t.running.Store(false)
		return
	case tcell.KeyRune:
	default:
		return
	}

	switch r := ev.Rune(); r {
	case '+', '=':
		t.changeLogLevel(-4)
	case '-', '_':
		t.changeLogLevel(4)
	default:
		t.send(t.keys.press(r, now))
	}
}

func (t *Backend) send(packets [][4]byte) {
	for _, p := range packets {
		slog.Debug("Key packet", "status", fmt.Sprintf("0x%02X", p[1]), "note", NoteName(int(p[2])))
		t.sent++
		if t.cfg.OnPacket != nil {
			t.cfg.OnPacket(p)
		}
	}
}

// changeLogLevel moves the log panel filter; a negative step shows more.
func (t *Backend) changeLogLevel(step slog.Level) {
	level := t.logLevel + step
	if level < slog.LevelDebug || level > slog.LevelError {
		return
	}
	slog.Info("Log filter changed", "from", t.logLevel, "to", level)
	t.logLevel = level
}

func (t *Backend) drawText(x, y int, style tcell.Style, text string) {
	w, _ := t.screen.Size()
	for i, ch := range []rune(text) {
		if x+i >= w {
			return
		}
		t.screen.SetContent(x+i, y, ch, nil, style)
	}
}

func (t *Backend) render(st backend.Status) {
	w, h := t.screen.Size()
	t.screen.Clear()
	if w < minTermWidth || h < minTermHeight {
		msg := fmt.Sprintf("Terminal too small! Need at least %dx%d", minTermWidth, minTermHeight)
		t.drawText(0, h/2, tcell.StyleDefault.Foreground(tcell.ColorRed), msg)
		return
	}

	title := tcell.StyleDefault.Foreground(tcell.ColorYellow)
	plain := tcell.StyleDefault.Foreground(tcell.ColorWhite)
	lit := tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorGreen)

	t.drawText(1, 0, title, fmt.Sprintf(" pisynth (%s) ", st.Board))
	t.drawKeyboard(1, 2, plain, lit)

	held := "-"
	if st.Holding {
		held = fmt.Sprintf("%s (%d)", NoteName(st.Held), st.Held)
	}
	lines := []string{
		fmt.Sprintf("Octave base  %s", NoteName(t.keys.base)),
		fmt.Sprintf("Held note    %s", held),
		fmt.Sprintf("Buffers      %d (%d frames)", st.Buffers, st.Frames),
		fmt.Sprintf("MIDI         %d received, %d overwritten, %d sent", st.Received, st.Overwrites, t.sent),
		fmt.Sprintf("Pool free    %d", st.PoolFree),
		fmt.Sprintf("Ticks        %d", st.Ticks),
	}
	for i, l := range lines {
		t.drawText(1, 5+i, plain, l)
	}
	if st.Halted != "" {
		t.drawText(1, 5+len(lines), tcell.StyleDefault.Foreground(tcell.ColorRed), "HALTED: "+st.Halted)
	}

	logsY := statusHeight + 3
	for x := 0; x < w; x++ {
		t.screen.SetContent(x, logsY-1, '─', nil, plain)
	}
	t.drawText(1, logsY-1, title, fmt.Sprintf(" Logs (%s) ", t.logLevel))
	for i, e := range t.logs.recent(h-logsY, t.logLevel) {
		style := plain
		if e.Level >= slog.LevelWarn {
			style = tcell.StyleDefault.Foreground(tcell.ColorRed)
		}
		t.drawText(1, logsY+i, style, formatEntry(e))
	}
}

// drawKeyboard draws the key row with the held notes lit.
func (t *Backend) drawKeyboard(x, y int, plain, lit tcell.Style) {
	type key struct {
		r      rune
		offset int
	}
	keys := make([]key, 0, len(pianoKeys))
	for r, off := range pianoKeys {
		keys = append(keys, key{r, off})
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].offset < keys[j].offset })

	for i, k := range keys {
		note := t.keys.base + k.offset
		style := plain
		if _, ok := t.keys.held[note]; ok {
			style = lit
		}
		row := y + 1
		if isBlack(note) {
			row = y
		}
		t.drawText(x+2*i, row, style, string(k.r))
	}
}

func isBlack(note int) bool {
	switch note % 12 {
	case 1, 3, 6, 8, 10:
		return true
	}
	return false
}
