// Package logger is the leveled logger used across the batch runtime and the EcoRoute job.
// It wraps the standard log package and prefixes every line with its level.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync/atomic"
)

// LogLevel is a logging severity. Smaller values are more verbose.
type LogLevel int32

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var levelNames = map[LogLevel]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
	LevelFatal: "FATAL",
}

// String returns the upper-case name of the level.
func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("LEVEL(%d)", int32(l))
}

var (
	current atomic.Int32
	std     = log.New(os.Stderr, "", log.LstdFlags)
)

func init() {
	current.Store(int32(LevelInfo))
}

// ParseLevel converts "DEBUG", "INFO", "WARN", "ERROR" or "FATAL" (any case) to a LogLevel.
func ParseLevel(level string) (LogLevel, error) {
	name := strings.ToUpper(strings.TrimSpace(level))
	if name == "WARNING" {
		name = "WARN"
	}
	for l, n := range levelNames {
		if n == name {
			return l, nil
		}
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", level)
}

// SetLogLevel sets the global level. Unknown names fall back to INFO with a warning.
func SetLogLevel(level string) {
	l, err := ParseLevel(level)
	if err != nil {
		std.Printf("[WARN] %v, defaulting to INFO", err)
	}
	current.Store(int32(l))
}

// GetLogLevel returns the global level.
func GetLogLevel() LogLevel {
	return LogLevel(current.Load())
}

// IsDebugEnabled reports whether DEBUG lines are written.
func IsDebugEnabled() bool {
	return GetLogLevel() <= LevelDebug
}

// SetOutput redirects log output, mainly for tests.
func SetOutput(w io.Writer) {
	std.SetOutput(w)
}

func logf(level LogLevel, format string, v ...interface{}) {
	if GetLogLevel() > level {
		return
	}
	std.Printf("["+level.String()+"] "+format, v...)
}

// Debugf logs at DEBUG.
func Debugf(format string, v ...interface{}) { logf(LevelDebug, format, v...) }

// Infof logs at INFO.
func Infof(format string, v ...interface{}) { logf(LevelInfo, format, v...) }

// Warnf logs at WARN.
func Warnf(format string, v ...interface{}) { logf(LevelWarn, format, v...) }

// Errorf logs at ERROR.
func Errorf(format string, v ...interface{}) { logf(LevelError, format, v...) }

// Fatalf logs at FATAL and exits the process with status 1.
func Fatalf(format string, v ...interface{}) {
	std.Fatalf("[FATAL] "+format, v...)
}
