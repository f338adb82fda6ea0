package terminal

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

type logEntry struct {
	Time    time.Time
	Level   slog.Level
	Message string
}

// logBuffer keeps the most recent log lines for the log panel.
type logBuffer struct {
	mu      sync.RWMutex
	entries []logEntry
	next    int
	count   int
}

func newLogBuffer(size int) *logBuffer {
	return &logBuffer{entries: make([]logEntry, size)}
}

func (lb *logBuffer) add(e logEntry) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	lb.entries[lb.next] = e
	lb.next = (lb.next + 1) % len(lb.entries)
	if lb.count < len(lb.entries) {
		lb.count++
	}
}

// recent returns up to n entries at or above level, newest first.
func (lb *logBuffer) recent(n int, level slog.Level) []logEntry {
	lb.mu.RLock()
	defer lb.mu.RUnlock()

	var out []logEntry
	for i := 0; i < lb.count && len(out) < n; i++ {
		e := lb.entries[(lb.next-1-i+len(lb.entries))%len(lb.entries)]
		if e.Level >= level {
			out = append(out, e)
		}
	}
	return out
}

// logHandler is a slog.Handler feeding a logBuffer.
type logHandler struct {
	buf    *logBuffer
	level  slog.Leveler
	prefix string
	attrs  string
}

func newLogHandler(buf *logBuffer, level slog.Leveler) *logHandler {
	return &logHandler{buf: buf, level: level}
}

func (h *logHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *logHandler) Handle(_ context.Context, r slog.Record) error {
	var sb strings.Builder
	sb.WriteString(r.Message)
	sb.WriteString(h.attrs)
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&sb, h.prefix, a)
		return true
	})
	h.buf.add(logEntry{Time: r.Time, Level: r.Level, Message: sb.String()})
	return nil
}

func (h *logHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	var sb strings.Builder
	sb.WriteString(h.attrs)
	for _, a := range attrs {
		writeAttr(&sb, h.prefix, a)
	}
	return &logHandler{buf: h.buf, level: h.level, prefix: h.prefix, attrs: sb.String()}
}

func (h *logHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &logHandler{buf: h.buf, level: h.level, prefix: h.prefix + name + ".", attrs: h.attrs}
}

func writeAttr(sb *strings.Builder, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		for _, g := range v.Group() {
			writeAttr(sb, prefix+a.Key+".", g)
		}
		return
	}
	fmt.Fprintf(sb, " %s%s=%v", prefix, a.Key, v)
}

func formatEntry(e logEntry) string {
	var level string
	switch {
	case e.Level >= slog.LevelError:
		level = "ERR"
	case e.Level >= slog.LevelWarn:
		level = "WRN"
	case e.Level >= slog.LevelInfo:
		level = "INF"
	default:
		level = "DBG"
	}
	return fmt.Sprintf("%s [%s] %s", e.Time.Format("15:04:05"), level, e.Message)
}
