// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logger builds the process slog.Logger. The "color" format keeps the
// console layout of earlier releases: [time] [LEVEL] [component] message k=v.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const (
	Reset  = "\033[0m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Blue   = "\033[34m"
	Cyan   = "\033[36m"
	Gray   = "\033[90m"
)

// ComponentKey is the attribute rendered in the [component] slot.
const ComponentKey = "component"

const (
	FormatColor = "color"
	FormatText  = "text"
	FormatJSON  = "json"
)

// New returns a logger writing to w in the given format ("color", "text" or "json").
func New(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	switch format {
	case FormatJSON:
		return slog.New(slog.NewJSONHandler(w, opts))
	case FormatText:
		return slog.New(slog.NewTextHandler(w, opts))
	default:
		return slog.New(NewColorHandler(w, level))
	}
}

// ParseLevel maps debug|info|warn|error to a slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ColorHandler is a slog.Handler producing colored single-line records.
type ColorHandler struct {
	mu     *sync.Mutex
	w      io.Writer
	level  slog.Leveler
	attrs  []slog.Attr
	groups []string
}

// NewColorHandler creates a ColorHandler.
func NewColorHandler(w io.Writer, level slog.Leveler) *ColorHandler {
	return &ColorHandler{mu: &sync.Mutex{}, w: w, level: level}
}

func (h *ColorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *ColorHandler) Handle(_ context.Context, r slog.Record) error {
	var component string
	var b strings.Builder

	write := func(a slog.Attr) {
		a.Value = a.Value.Resolve()
		if a.Equal(slog.Attr{}) {
			return
		}
		if a.Key == ComponentKey && len(h.groups) == 0 {
			component = a.Value.String()
			return
		}
		key := a.Key
		if len(h.groups) > 0 {
			key = strings.Join(h.groups, ".") + "." + key
		}
		fmt.Fprintf(&b, " %s%s=%s%s", Gray, key, Reset, formatValue(a.Value))
	}

	for _, a := range h.attrs {
		write(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		write(a)
		return true
	})

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	var line string
	if component != "" {
		line = fmt.Sprintf("%s[%s]%s %s[%s]%s %s[%s]%s %s%s\n",
			Gray, ts.Format("2006-01-02 15:04:05"), Reset,
			levelColor(r.Level), r.Level.String(), Reset,
			Cyan, component, Reset,
			r.Message, b.String())
	} else {
		line = fmt.Sprintf("%s[%s]%s %s[%s]%s %s%s\n",
			Gray, ts.Format("2006-01-02 15:04:05"), Reset,
			levelColor(r.Level), r.Level.String(), Reset,
			r.Message, b.String())
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, line)
	return err
}

func (h *ColorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &clone
}

func (h *ColorHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string{}, h.groups...), name)
	return &clone
}

func levelColor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return Red
	case level >= slog.LevelWarn:
		return Yellow
	case level >= slog.LevelInfo:
		return Green
	default:
		return Gray
	}
}

func formatValue(v slog.Value) string {
	if v.Kind() == slog.KindString && strings.ContainsAny(v.String(), " \t\"=") {
		return fmt.Sprintf("%q", v.String())
	}
	return v.String()
}
