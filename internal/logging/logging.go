// Package logging builds the process slog.Logger: a colourised tint handler
// for terminals, JSON lines otherwise.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// Format values for --log-format.
const (
	FormatAuto = "auto"
	FormatText = "text"
	FormatJSON = "json"
)

// ParseLevel maps debug|info|warn|error to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: expected debug, info, warn or error", s)
	}
	return l, nil
}

// New returns a logger writing to w. In auto format, a terminal gets the
// tint handler and anything else gets JSON.
func New(w io.Writer, level slog.Level, format string) *slog.Logger {
	tty := isTerminal(w)
	if format == "" || format == FormatAuto {
		format = FormatJSON
		if tty {
			format = FormatText
		}
	}

	if format == FormatText {
		return slog.New(tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
			NoColor:    !tty,
		}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}
