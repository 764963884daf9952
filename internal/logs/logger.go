package logs

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

type Level string

const (
	INFO  Level = "INFO"
	WARN  Level = "WARN"
	ERROR Level = "ERROR"
	DEBUG Level = "DEBUG"
)

// levelPriority defines the priority of each log level
// higher value = more severe
var levelPriority = map[Level]int{
	DEBUG: 1,
	INFO:  2,
	WARN:  3,
	ERROR: 4,
}

// ParseLevel maps a config string onto a Level. Unknown values fall back to INFO.
func ParseLevel(s string) Level {
	lvl := Level(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := levelPriority[lvl]; ok {
		return lvl
	}
	return INFO
}

type Entry struct {
	TimeStamp time.Time `json:"timestamp"`
	Level     Level     `json:"level"`
	Component string    `json:"component,omitempty"`
	Message   string    `json:"message"`
}

// ring is the buffer shared by a logger and every child created with With.
type ring struct {
	mu      sync.Mutex
	entries []Entry
	maxSize int
	level   Level
	out     io.Writer
}

type Logger struct {
	ring      *ring
	component string
}

// level: minimum log level to record (e.g. INFO, WARN, ERROR, DEBUG)
//
// maxSize: maximum number of log entries kept in memory
func NewLogger(maxSize int, level Level) *Logger {
	return &Logger{
		ring: &ring{
			entries: make([]Entry, 0, maxSize),
			maxSize: maxSize,
			level:   level,
		},
	}
}

// Mirror copies every recorded entry to w as a single text line.
// Pass nil to stop mirroring.
func (l *Logger) Mirror(w io.Writer) {
	l.ring.mu.Lock()
	defer l.ring.mu.Unlock()
	l.ring.out = w
}

// With returns a logger tagging its entries with component.
// The child writes into the same buffer as its parent.
func (l *Logger) With(component string) *Logger {
	return &Logger{ring: l.ring, component: component}
}

// log applies level filtering and ring buffer behavior
func (l *Logger) log(level Level, msg string) {
	r := l.ring
	if levelPriority[level] < levelPriority[r.level] {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.maxSize <= 0 {
		return
	}
	if len(r.entries) >= r.maxSize {
		// drop the oldest entry
		r.entries = r.entries[1:]
	}

	e := Entry{
		TimeStamp: time.Now(),
		Level:     level,
		Component: l.component,
		Message:   msg,
	}
	r.entries = append(r.entries, e)

	if r.out != nil {
		if e.Component != "" {
			fmt.Fprintf(r.out, "%s %-5s [%s] %s\n", e.TimeStamp.Format(time.RFC3339), e.Level, e.Component, e.Message)
		} else {
			fmt.Fprintf(r.out, "%s %-5s %s\n", e.TimeStamp.Format(time.RFC3339), e.Level, e.Message)
		}
	}
}

func (l *Logger) Debug(msg string) {
	l.log(DEBUG, msg)
}

func (l *Logger) Info(msg string) {
	l.log(INFO, msg)
}

func (l *Logger) Warn(msg string) {
	l.log(WARN, msg)
}

func (l *Logger) Error(msg string) {
	l.log(ERROR, msg)
}

func (l *Logger) Debugf(format string, args ...any) {
	l.log(DEBUG, fmt.Sprintf(format, args...))
}

func (l *Logger) Infof(format string, args ...any) {
	l.log(INFO, fmt.Sprintf(format, args...))
}

func (l *Logger) Warnf(format string, args ...any) {
	l.log(WARN, fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...any) {
	l.log(ERROR, fmt.Sprintf(format, args...))
}

// GetLast returns a copy of the n most recent entries, oldest first.
func (l *Logger) GetLast(n int) []Entry {
	r := l.ring
	r.mu.Lock()
	defer r.mu.Unlock()

	if n > len(r.entries) {
		out := make([]Entry, len(r.entries))
		copy(out, r.entries)
		return out
	}

	start := len(r.entries) - n
	out := make([]Entry, n)
	copy(out, r.entries[start:])
	return out
}
