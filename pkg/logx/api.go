package logx

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
)

var defaultLogger atomic.Pointer[Logger]

func init() {
	defaultLogger.Store(NewLogger(LoadFromEnv()))
}

// SetDefaultLogger replaces the logger behind the package functions
func SetDefaultLogger(logger *Logger) {
	if logger != nil {
		defaultLogger.Store(logger)
	}
}

func std() *Logger { return defaultLogger.Load() }

// SetLevel sets the log level for the default logger
func SetLevel(level Level) {
	std().SetLevel(level)
}

// SetOutput sets the output for the default logger
func SetOutput(w io.Writer) {
	std().SetOutput(w)
}

// ============================================================================
// Simple Logging Functions
// ============================================================================

func Debug(msg string) { std().log(LevelDebug, msg, nil, nil) }
func Info(msg string)  { std().log(LevelInfo, msg, nil, nil) }
func Warn(msg string)  { std().log(LevelWarn, msg, nil, nil) }
func Error(msg string) { std().log(LevelError, msg, nil, nil) }

// Fatal logs a fatal level message and exits
func Fatal(msg string) {
	l := std()
	l.log(LevelFatal, msg, nil, nil)
	l.exit(1)
}

// ============================================================================
// Formatted Logging Functions
// ============================================================================

func Debugf(format string, args ...interface{}) {
	std().log(LevelDebug, fmt.Sprintf(format, args...), nil, nil)
}

func Infof(format string, args ...interface{}) {
	std().log(LevelInfo, fmt.Sprintf(format, args...), nil, nil)
}

func Warnf(format string, args ...interface{}) {
	std().log(LevelWarn, fmt.Sprintf(format, args...), nil, nil)
}

func Errorf(format string, args ...interface{}) {
	std().log(LevelError, fmt.Sprintf(format, args...), nil, nil)
}

// Fatalf logs a formatted fatal message and exits
func Fatalf(format string, args ...interface{}) {
	l := std()
	l.log(LevelFatal, fmt.Sprintf(format, args...), nil, nil)
	l.exit(1)
}

// ============================================================================
// Structured Logging
// ============================================================================

// WithFields creates a new logger entry with fields
func WithFields(fields Fields) *Entry {
	return std().WithFields(fields)
}

// WithField creates a new logger entry with a single field
func WithField(key string, value interface{}) *Entry {
	return std().WithField(key, value)
}

// WithContext creates a new entry carrying the fields stored on ctx
func WithContext(ctx context.Context) *Entry {
	return std().WithContext(ctx)
}

// WithError creates a new logger entry with an error field. Errors from
// errx also add error_code.
func WithError(err error) *Entry {
	return std().WithError(err)
}
