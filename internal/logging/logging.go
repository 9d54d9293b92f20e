// Package logging configures the process-wide leveled, component-tagged
// logger used across the daemon and its tools.
package logging

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// Level is a logging severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// New builds a logger writing to w (os.Stderr in production, a buffer in
// tests) at the given level, with the given component name as a prefix.
func New(w io.Writer, level Level, component string) *log.Logger {
	l := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Prefix:          component,
	})
	l.SetLevel(toCharmLevel(level))
	return l
}

// Default returns a color-capable logger to stderr at LevelInfo, the
// common case for cmd/ entry points.
func Default(component string) *log.Logger {
	return New(os.Stderr, LevelInfo, component)
}

func toCharmLevel(l Level) log.Level {
	switch l {
	case LevelDebug:
		return log.DebugLevel
	case LevelWarn:
		return log.WarnLevel
	case LevelError:
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}
