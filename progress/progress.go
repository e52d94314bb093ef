// Package progress implements sinks for training progress messages.
package progress

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Sink accepts one progress message at a time. Implementations are safe for concurrent use.
type Sink interface {
	Report(message string)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(message string)

// Report calls f.
func (f SinkFunc) Report(message string) {
	f(message)
}

// Discard drops every message.
var Discard Sink = SinkFunc(func(string) {})

// Writer writes each message as one line.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter creates a Writer sink on w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Report writes message followed by a newline. Write errors are dropped.
func (s *Writer) Report(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = fmt.Fprintln(s.w, message)
}

// Logger forwards messages to a structured logger.
type Logger struct {
	l     *slog.Logger
	level slog.Level
}

// NewLogger creates a Logger sink logging at level.
func NewLogger(l *slog.Logger, level slog.Level) *Logger {
	return &Logger{l: l, level: level}
}

// Report logs message.
func (s *Logger) Report(message string) {
	s.l.Log(context.Background(), s.level, message, "component", "trainer")
}

// Recorder keeps every message in memory.
type Recorder struct {
	mu       sync.Mutex
	messages []string
}

// Report records message.
func (r *Recorder) Report(message string) {
	r.mu.Lock()
	r.messages = append(r.messages, message)
	r.mu.Unlock()
}

// Messages returns a copy of the recorded messages.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

// Multi reports every message to all sinks.
func Multi(sinks ...Sink) Sink {
	return SinkFunc(func(message string) {
		for _, s := range sinks {
			s.Report(message)
		}
	})
}
