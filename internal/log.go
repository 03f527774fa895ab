package internal

import (
	"log"
	"os"
	"strings"
)

// LogLevel orders logging verbosity from quietest to noisiest
type LogLevel int

const (
	LogLevelError LogLevel = iota
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
)

var levelNames = map[string]LogLevel{
	"ERROR": LogLevelError,
	"WARN":  LogLevelWarn,
	"INFO":  LogLevelInfo,
	"DEBUG": LogLevelDebug,
}

// ParseLogLevel reads a level name case-insensitively, falling back to INFO
// for anything unrecognized
func ParseLogLevel(name string) LogLevel {
	if level, ok := levelNames[strings.ToUpper(strings.TrimSpace(name))]; ok {
		return level
	}
	return LogLevelInfo
}

// Logger provides leveled logging tagged with the owning component
type Logger struct {
	level     LogLevel
	component string
}

// NewLogger creates a component logger at an explicit level
func NewLogger(component string, level LogLevel) *Logger {
	return &Logger{level: level, component: component}
}

// NewDefaultLogger creates a component logger whose level comes from the
// LOG_LEVEL environment variable
func NewDefaultLogger(component string) *Logger {
	return &Logger{level: ParseLogLevel(os.Getenv("LOG_LEVEL")), component: component}
}

func (l *Logger) logf(min LogLevel, tag, format string, args ...interface{}) {
	if l.level < min {
		return
	}
	log.Printf("["+tag+"] ["+l.component+"] "+format, args...)
}

// Error logs failures that need operator attention
func (l *Logger) Error(format string, args ...interface{}) {
	l.logf(LogLevelError, "ERROR", format, args...)
}

// Warn logs recoverable anomalies
func (l *Logger) Warn(format string, args ...interface{}) {
	l.logf(LogLevelWarn, "WARN", format, args...)
}

// Info logs normal operational events
func (l *Logger) Info(format string, args ...interface{}) {
	l.logf(LogLevelInfo, "INFO", format, args...)
}

// Debug logs request-level detail, off by default
func (l *Logger) Debug(format string, args ...interface{}) {
	l.logf(LogLevelDebug, "DEBUG", format, args...)
}
