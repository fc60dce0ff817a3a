// Package logging wraps the standard library logger with a component name
// and a minimum level, so every line reads "[LEVEL|name] message".
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
)

// Level is the minimum severity a Logger prints.
type Level uint8

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

// String returns the string representation of Level.
func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger is a named, leveled logger. It is safe for concurrent use.
type Logger struct {
	out   *log.Logger
	name  string
	level Level
}

// New creates a logger writing to w.
func New(w io.Writer, name string, level Level) *Logger {
	return &Logger{
		out:   log.New(w, "", log.LstdFlags|log.Lmicroseconds),
		name:  name,
		level: level,
	}
}

// NewStd creates a logger writing to standard error.
func NewStd(name string, debug bool) *Logger {
	level := INFO
	if debug {
		level = DEBUG
	}
	return New(os.Stderr, name, level)
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return New(io.Discard, "", ERROR+1)
}

// WithPostfix returns a logger sharing the output whose name is extended
// with postfix.
func (l *Logger) WithPostfix(postfix string) *Logger {
	name := postfix
	if l.name != "" {
		name = l.name + "|" + postfix
	}
	return &Logger{out: l.out, name: name, level: l.level}
}

func (l *Logger) logf(level Level, format string, args ...any) {
	if level < l.level {
		return
	}
	l.out.Printf("[%s|%s] %s", level, l.name, fmt.Sprintf(format, args...))
}

func (l *Logger) Debugf(format string, args ...any) { l.logf(DEBUG, format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.logf(INFO, format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.logf(WARN, format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.logf(ERROR, format, args...) }
