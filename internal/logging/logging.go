package logging

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// LogLevel represents the severity of a log message
type LogLevel int32

const (
	// LevelDebug is the debug log level
	LevelDebug LogLevel = iota
	// LevelInfo is the info log level
	LevelInfo
	// LevelWarn is the warning log level
	LevelWarn
	// LevelError is the error log level
	LevelError
)

var (
	currentLevel atomic.Int32
	levelOnce    sync.Once
)

// initLevel initializes the log level from environment variables
func initLevel() {
	levelOnce.Do(func() {
		// DEBUG wins over LOG_LEVEL
		if debug := os.Getenv("DEBUG"); debug != "" {
			switch strings.ToLower(debug) {
			case "1", "true", "yes", "on":
				currentLevel.Store(int32(LevelDebug))
				return
			}
		}

		level, _ := ParseLevel(os.Getenv("LOG_LEVEL"))
		currentLevel.Store(int32(level))
	})
}

// ParseLevel converts a level name into a LogLevel. Unknown or empty names
// resolve to LevelInfo and report false.
func ParseLevel(name string) (LogLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return LevelDebug, true
	case "info":
		return LevelInfo, true
	case "warn", "warning":
		return LevelWarn, true
	case "error":
		return LevelError, true
	default:
		return LevelInfo, false
	}
}

// SetLevel overrides the level resolved from the environment. It is used
// once configuration has been loaded.
func SetLevel(level LogLevel) {
	initLevel()
	currentLevel.Store(int32(level))
}

// GetLevel returns the current log level
func GetLevel() LogLevel {
	initLevel()
	return LogLevel(currentLevel.Load())
}

// IsDebugEnabled returns true if debug logging is enabled
func IsDebugEnabled() bool {
	return GetLevel() <= LevelDebug
}

var levelTags = [...]string{
	LevelDebug: "[DEBUG] ",
	LevelInfo:  "[INFO] ",
	LevelWarn:  "[WARN] ",
	LevelError: "[ERROR] ",
}

func logf(level LogLevel, format string, args ...interface{}) {
	if GetLevel() > level {
		return
	}
	// calldepth 3 keeps Lshortfile pointing at the caller
	_ = log.Output(3, fmt.Sprintf(levelTags[level]+format, args...))
}

// Debug logs when DEBUG=true or LOG_LEVEL=debug.
func Debug(format string, args ...interface{}) { logf(LevelDebug, format, args...) }

// Info logs an info message.
func Info(format string, args ...interface{}) { logf(LevelInfo, format, args...) }

// Warn logs a warning.
func Warn(format string, args ...interface{}) { logf(LevelWarn, format, args...) }

// Error logs an error.
func Error(format string, args ...interface{}) { logf(LevelError, format, args...) }

// Fatal logs an error message and exits
func Fatal(format string, args ...interface{}) {
	log.Fatalf("[FATAL] "+format, args...)
}

// Printf is a pass-through to log.Printf for messages that should always print
func Printf(format string, args ...interface{}) {
	log.Printf(format, args...)
}

// Prefixed tags every message with a fixed prefix, e.g. "[job clip 1a2b3c4d]".
type Prefixed struct {
	prefix string
}

// WithPrefix returns a logger that prepends prefix to each message.
func WithPrefix(prefix string) *Prefixed {
	return &Prefixed{prefix: prefix + " "}
}

// Debug logs a prefixed debug message
func (p *Prefixed) Debug(format string, args ...interface{}) {
	logf(LevelDebug, p.prefix+format, args...)
}

// Info logs a prefixed info message
func (p *Prefixed) Info(format string, args ...interface{}) {
	logf(LevelInfo, p.prefix+format, args...)
}

// Warn logs a prefixed warning message
func (p *Prefixed) Warn(format string, args ...interface{}) {
	logf(LevelWarn, p.prefix+format, args...)
}

// Error logs a prefixed error message
func (p *Prefixed) Error(format string, args ...interface{}) {
	logf(LevelError, p.prefix+format, args...)
}

// String returns the string representation of a log level
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", l)
	}
}
