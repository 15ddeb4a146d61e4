// Package ports defines the interfaces between the frame acquisition core and
// its collaborators: logging, media sources, debug output and the file system.
package ports

import "strings"

// LogLevel is the minimum severity a Logger emits.
type LogLevel int

const (
	// LevelDebug covers per-frame and per-command details from core components.
	LevelDebug LogLevel = iota
	// LevelInfo covers source attach/detach and CLI progress.
	LevelInfo
	// LevelWarn covers anomalies the worker recovers from, such as a forced
	// frame reference takeover.
	LevelWarn
	// LevelError covers failures that stop a source or the worker.
	LevelError
	// LevelQuiet suppresses all output.
	LevelQuiet
)

var levelNames = map[LogLevel]string{
	LevelDebug: "debug",
	LevelInfo:  "info",
	LevelWarn:  "warn",
	LevelError: "error",
	LevelQuiet: "quiet",
}

// String returns the configuration name of the level.
func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "unknown"
}

// ParseLogLevel maps a configuration string to a LogLevel.
// Unknown values fall back to LevelInfo.
func ParseLogLevel(s string) LogLevel {
	s = strings.ToLower(strings.TrimSpace(s))
	for level, name := range levelNames {
		if name == s {
			return level
		}
	}
	return LevelInfo
}

// Logger abstracts logging with translatable message keys.
// The msg argument is a format string that doubles as the l10n lookup key.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})

	// WithComponent returns a Logger that prefixes messages with component.
	WithComponent(component string) Logger
}
