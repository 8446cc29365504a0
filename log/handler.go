// Copyright 2023 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

var levelNames = map[slog.Level]string{
	LevelTrace: "TRACE",
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
	LevelCrit:  "CRIT",
}

// terminalHandler formats log records for human consumption, colorizing
// the level tag when the underlying writer is a terminal.
type terminalHandler struct {
	mu    sync.Mutex
	wr    io.Writer
	level slog.Level
	color bool
	attrs []slog.Attr
}

// NewTerminalHandler returns a handler writing to w; color is auto-detected
// from isatty unless forceColor overrides it.
func NewTerminalHandler(w io.Writer, forceColor bool) slog.Handler {
	return NewTerminalHandlerWithLevel(w, LevelInfo, forceColor)
}

// NewTerminalHandlerWithLevel is like NewTerminalHandler but with an
// explicit minimum level.
func NewTerminalHandlerWithLevel(w io.Writer, level slog.Level, forceColor bool) slog.Handler {
	useColor := forceColor
	if f, ok := w.(*os.File); ok {
		if !forceColor {
			useColor = isatty.IsTerminal(f.Fd())
		}
		if useColor {
			w = colorable.NewColorable(f)
		}
	}
	return &terminalHandler{wr: w, level: level, color: useColor}
}

func (terminalHandler) colorFor(level slog.Level) int {
	switch {
	case level >= LevelCrit:
		return 35 // magenta
	case level >= LevelError:
		return 31 // red
	case level >= LevelWarn:
		return 33 // yellow
	case level >= LevelInfo:
		return 32 // green
	case level >= LevelDebug:
		return 36 // cyan
	default:
		return 90 // gray
	}
}

func (h *terminalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *terminalHandler) Handle(ctx context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	name := levelNames[r.Level]
	if name == "" {
		name = r.Level.String()
	}
	if h.color {
		fmt.Fprintf(h.wr, "\x1b[%dm%-5s\x1b[0m[%s] %s", h.colorFor(r.Level), name, ts.Format("01-02|15:04:05.000"), r.Message)
	} else {
		fmt.Fprintf(h.wr, "%-5s[%s] %s", name, ts.Format("01-02|15:04:05.000"), r.Message)
	}
	for _, a := range h.attrs {
		fmt.Fprintf(h.wr, " %s=%v", a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(h.wr, " %s=%v", a.Key, a.Value)
		return true
	})
	fmt.Fprintln(h.wr)
	return nil
}

func (h *terminalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	n := &terminalHandler{wr: h.wr, level: h.level, color: h.color}
	n.attrs = append(append(n.attrs, h.attrs...), attrs...)
	return n
}

func (h *terminalHandler) WithGroup(name string) slog.Handler { return h }

// LogfmtHandler returns a handler emitting logfmt-style key=value lines.
func LogfmtHandler(w io.Writer) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{Level: LevelTrace})
}

// JSONHandler returns a handler emitting one JSON object per record.
func JSONHandler(w io.Writer) slog.Handler {
	return JSONHandlerWithLevel(w, LevelTrace)
}

// JSONHandlerWithLevel is like JSONHandler with an explicit minimum level.
func JSONHandlerWithLevel(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
}
