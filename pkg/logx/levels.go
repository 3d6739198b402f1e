package logx

import (
	"strings"
)

// Level represents logging level
type Level uint8

const (
	// LevelDebug for provider round-trips and per-attempt detail
	LevelDebug Level = iota
	// LevelInfo for lifecycle and job transitions
	LevelInfo
	// LevelWarn for retries and degraded dependencies
	LevelWarn
	// LevelError for failed jobs and 5xx responses
	LevelError
	// LevelFatal logs and exits
	LevelFatal
	// LevelOff disables all logging
	LevelOff
)

var levelNames = [...]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
	LevelFatal: "FATAL",
	LevelOff:   "OFF",
}

// String returns the string representation of the log level
func (l Level) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "UNKNOWN"
}

// ParseLevel parses a string into a Level. TRACE is accepted as DEBUG;
// anything unknown is INFO.
func ParseLevel(level string) Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "TRACE", "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	case "FATAL":
		return LevelFatal
	case "OFF", "NONE":
		return LevelOff
	default:
		return LevelInfo
	}
}

// Enabled checks if target passes a logger set to l
func (l Level) Enabled(target Level) bool {
	return l <= target
}
