package utils

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
)

// Level orders log severities; messages below the logger's level are dropped.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps a LOG_LEVEL value to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger provides leveled logging throughout the application.
type Logger struct {
	level Level
	info  *log.Logger
	warn  *log.Logger
	err   *log.Logger
	debug *log.Logger

	infoTag  string
	warnTag  string
	errTag   string
	debugTag string
}

// NewLogger creates a new Logger writing to stdout/stderr at info level.
func NewLogger() *Logger {
	return NewLoggerWithLevel(LevelInfo)
}

// NewLoggerWithLevel creates a Logger that drops messages below level.
func NewLoggerWithLevel(level Level) *Logger {
	return newLogger(level, os.Stdout, os.Stderr)
}

// NewDiscardLogger returns a Logger that writes nowhere. Used by tests.
func NewDiscardLogger() *Logger {
	return newLogger(LevelError+1, io.Discard, io.Discard)
}

func newLogger(level Level, out, errOut io.Writer) *Logger {
	flags := 0
	return &Logger{
		level:    level,
		info:     log.New(out, "", flags),
		warn:     log.New(out, "", flags),
		err:      log.New(errOut, "", flags),
		debug:    log.New(out, "", flags),
		infoTag:  color.New(color.FgGreen).Sprint("INFO "),
		warnTag:  color.New(color.FgYellow).Sprint("WARN "),
		errTag:   color.New(color.FgRed).Sprint("ERROR"),
		debugTag: color.New(color.FgCyan).Sprint("DEBUG"),
	}
}

func (l *Logger) timestamp() string {
	return time.Now().Format("2006-01-02 15:04:05")
}

func (l *Logger) write(lvl Level, dst *log.Logger, tag, format string, args ...any) {
	if lvl < l.level {
		return
	}
	dst.Printf("[%s] %s %s", l.timestamp(), tag, fmt.Sprintf(format, args...))
}

func (l *Logger) Info(format string, args ...any) {
	l.write(LevelInfo, l.info, l.infoTag, format, args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.write(LevelWarn, l.warn, l.warnTag, format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.write(LevelError, l.err, l.errTag, format, args...)
}

func (l *Logger) Debug(format string, args ...any) {
	l.write(LevelDebug, l.debug, l.debugTag, format, args...)
}
