// logging.go: pluggable logging with a hot-swappable engine facade
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package remoteconfig

import (
	"strings"
	"sync"
	"sync/atomic"
)

// Logger defines the pluggable logging interface for the engine.
//
// This interface enables users to integrate any logging framework (zap,
// logrus, zerolog, custom loggers) without external dependencies. The host
// gateway must provide its own Logger implementation.
//
// Design principles:
//   - Zero dependencies: Interface has no external logging dependencies
//   - Structured args: Key-value pairs for structured logging
//   - Contextual logging: With() method for adding persistent context
type Logger interface {
	// Debug logs a debug message with optional key-value pairs
	Debug(msg string, args ...any)

	// Info logs an info message with optional key-value pairs
	Info(msg string, args ...any)

	// Warn logs a warning message with optional key-value pairs
	Warn(msg string, args ...any)

	// Error logs an error message with optional key-value pairs
	Error(msg string, args ...any)

	// With returns a new logger with persistent context key-value pairs
	With(args ...any) Logger
}

// NewLogger normalizes supported logger inputs into a Logger.
//
// Supported types:
//   - Logger interface: Used directly
//   - nil: Returns NoOpLogger for silent operation
//   - Unsupported types: Panic with descriptive message
func NewLogger(logger any) Logger {
	switch l := logger.(type) {
	case Logger:
		return l
	case nil:
		return NewNoOpLogger()
	default:
		panic("unsupported logger type: expected Logger interface or nil")
	}
}

// NoOpLogger provides a silent logger implementation for testing and
// minimal setups.
type NoOpLogger struct{}

// NewNoOpLogger creates a new no-operation logger.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

// Debug implements Logger interface (no-op)
func (n *NoOpLogger) Debug(msg string, args ...any) {}

// Info implements Logger interface (no-op)
func (n *NoOpLogger) Info(msg string, args ...any) {}

// Warn implements Logger interface (no-op)
func (n *NoOpLogger) Warn(msg string, args ...any) {}

// Error implements Logger interface (no-op)
func (n *NoOpLogger) Error(msg string, args ...any) {}

// With implements Logger interface (no-op)
func (n *NoOpLogger) With(args ...any) Logger {
	return n
}

// LogLevel orders the standard log levels for threshold checks.
type LogLevel int

// Log levels, lowest to highest severity.
const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLogLevel maps a level name to its LogLevel; unknown names map to
// LevelInfo. TRACE is folded into debug, FATAL/CRITICAL into error.
func ParseLogLevel(name string) LogLevel {
	switch strings.ToUpper(name) {
	case "TRACE", "DEBUG":
		return LevelDebug
	case "INFO", "":
		return LevelInfo
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR", "FATAL", "CRITICAL":
		return LevelError
	default:
		return LevelInfo
	}
}

// loggerState is the atomically swapped backing state of a SwitchableLogger.
type loggerState struct {
	backing   Logger
	forwarder Logger
	level     LogLevel
}

// SwitchableLogger is a process-wide logging facade whose output handler can
// be hot-swapped under a guarded update without rebinding the identifier
// other components hold a reference to.
//
// The logs-configuration handler swaps the backing logger and installs a
// remote forwarding handler here; every component that captured the
// SwitchableLogger keeps logging through the new configuration.
type SwitchableLogger struct {
	state atomic.Pointer[loggerState]
	mu    sync.Mutex // serializes swaps, reads are lock-free
}

// NewSwitchableLogger creates a facade initially backed by the given logger
// at LevelInfo. A nil backing logger is replaced by a NoOpLogger.
func NewSwitchableLogger(backing Logger) *SwitchableLogger {
	if backing == nil {
		backing = NewNoOpLogger()
	}
	s := &SwitchableLogger{}
	s.state.Store(&loggerState{backing: backing, level: LevelInfo})
	return s
}

// Swap replaces the backing logger, keeping the current level and forwarder.
func (s *SwitchableLogger) Swap(backing Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.state.Load()
	s.state.Store(&loggerState{backing: backing, forwarder: cur.forwarder, level: cur.level})
}

// SetForwarder installs (or removes, with nil) a secondary logger that
// receives every record at or above the current level.
func (s *SwitchableLogger) SetForwarder(forwarder Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.state.Load()
	s.state.Store(&loggerState{backing: cur.backing, forwarder: forwarder, level: cur.level})
}

// SetLevel changes the threshold below which records are dropped.
func (s *SwitchableLogger) SetLevel(level LogLevel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.state.Load()
	s.state.Store(&loggerState{backing: cur.backing, forwarder: cur.forwarder, level: level})
}

// Level returns the current threshold.
func (s *SwitchableLogger) Level() LogLevel {
	return s.state.Load().level
}

func (s *SwitchableLogger) log(level LogLevel, emit func(Logger)) {
	st := s.state.Load()
	if level < st.level {
		return
	}
	emit(st.backing)
	if st.forwarder != nil {
		emit(st.forwarder)
	}
}

// Debug implements Logger interface
func (s *SwitchableLogger) Debug(msg string, args ...any) {
	s.log(LevelDebug, func(l Logger) { l.Debug(msg, args...) })
}

// Info implements Logger interface
func (s *SwitchableLogger) Info(msg string, args ...any) {
	s.log(LevelInfo, func(l Logger) { l.Info(msg, args...) })
}

// Warn implements Logger interface
func (s *SwitchableLogger) Warn(msg string, args ...any) {
	s.log(LevelWarn, func(l Logger) { l.Warn(msg, args...) })
}

// Error implements Logger interface
func (s *SwitchableLogger) Error(msg string, args ...any) {
	s.log(LevelError, func(l Logger) { l.Error(msg, args...) })
}

// With implements Logger interface. The derived logger shares no swap state;
// it snapshots the current backing logger with the extra context attached.
func (s *SwitchableLogger) With(args ...any) Logger {
	return s.state.Load().backing.With(args...)
}

// TestLogger captures log messages for assertions in tests.
type TestLogger struct {
	mu       sync.RWMutex
	Messages []TestLogMessage
}

// TestLogMessage represents a captured log message for testing.
type TestLogMessage struct {
	Level   string
	Message string
	Args    []any
}

// NewTestLogger creates a new test logger.
func NewTestLogger() *TestLogger {
	return &TestLogger{Messages: make([]TestLogMessage, 0)}
}

func (t *TestLogger) append(level, msg string, args []any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Messages = append(t.Messages, TestLogMessage{Level: level, Message: msg, Args: args})
}

// Debug implements Logger interface (captures message)
func (t *TestLogger) Debug(msg string, args ...any) { t.append("DEBUG", msg, args) }

// Info implements Logger interface (captures message)
func (t *TestLogger) Info(msg string, args ...any) { t.append("INFO", msg, args) }

// Warn implements Logger interface (captures message)
func (t *TestLogger) Warn(msg string, args ...any) { t.append("WARN", msg, args) }

// Error implements Logger interface (captures message)
func (t *TestLogger) Error(msg string, args ...any) { t.append("ERROR", msg, args) }

// With implements Logger interface (returns a copy; context chaining is not
// needed for assertions)
func (t *TestLogger) With(args ...any) Logger {
	t.mu.RLock()
	messages := make([]TestLogMessage, len(t.Messages))
	copy(messages, t.Messages)
	t.mu.RUnlock()
	return &TestLogger{Messages: messages}
}

// HasMessage checks if the logger captured a message with the given level
// and text.
func (t *TestLogger) HasMessage(level, message string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, msg := range t.Messages {
		if msg.Level == level && msg.Message == message {
			return true
		}
	}
	return false
}

// Clear removes all captured messages.
func (t *TestLogger) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Messages = t.Messages[:0]
}
