// Package eventlog carries the human-readable event stream of the gateway
// (connects, requests, disconnects, errors, lifecycle changes) to whatever
// front end is attached.
package eventlog

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"fetchgate/internal/logger"
)

// TimeLayout renders timestamps as yyyy.MM.dd HH:mm:ss.
const TimeLayout = "2006.01.02 15:04:05"

// Sink receives (timestamp, text) pairs. Implementations must be safe for
// concurrent use.
type Sink interface {
	Event(at time.Time, text string)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(at time.Time, text string)

func (f SinkFunc) Event(at time.Time, text string) { f(at, text) }

// Log fans events out to its sinks until Close is called; after that every
// event is dropped. A nil *Log drops everything.
type Log struct {
	accepting atomic.Bool
	closeOnce sync.Once

	mu    sync.RWMutex
	sinks []Sink

	now func() time.Time
}

func New(sinks ...Sink) *Log {
	l := &Log{sinks: sinks, now: time.Now}
	l.accepting.Store(true)
	return l
}

func (l *Log) AddSink(s Sink) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sinks = append(l.sinks, s)
}

// Accepting reports whether events are still delivered.
func (l *Log) Accepting() bool {
	return l != nil && l.accepting.Load()
}

func (l *Log) Event(text string) {
	if !l.Accepting() {
		return
	}
	at := l.now()
	logger.Debug("event", "text", text)

	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, s := range l.sinks {
		s.Event(at, text)
	}
}

func (l *Log) Eventf(format string, args ...any) {
	if !l.Accepting() {
		return
	}
	l.Event(fmt.Sprintf(format, args...))
}

// Close stops delivery for good.
func (l *Log) Close() {
	if l == nil {
		return
	}
	l.closeOnce.Do(func() {
		l.accepting.Store(false)
	})
}

// WriterSink prints "<timestamp>> <text>" lines to W.
type WriterSink struct {
	mu sync.Mutex
	W  io.Writer
}

func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{W: w}
}

func (s *WriterSink) Event(at time.Time, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.W, "%s> %s\n", at.Format(TimeLayout), text)
}

// Entry is one recorded event.
type Entry struct {
	At   time.Time
	Text string
}

// MemorySink keeps the most recent events, up to Limit (0 means no limit).
type MemorySink struct {
	mu      sync.Mutex
	Limit   int
	entries []Entry
}

func NewMemorySink(limit int) *MemorySink {
	return &MemorySink{Limit: limit}
}

func (s *MemorySink) Event(at time.Time, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, Entry{At: at, Text: text})
	if s.Limit > 0 && len(s.entries) > s.Limit {
		s.entries = s.entries[len(s.entries)-s.Limit:]
	}
}

// Entries returns a copy of the recorded events, oldest first.
func (s *MemorySink) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Texts returns just the event texts, oldest first.
func (s *MemorySink) Texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Text
	}
	return out
}
