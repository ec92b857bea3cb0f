// Package activity holds the user-facing activity log shown next to the
// result image.
package activity

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Entry is one immutable line of the activity log.
type Entry struct {
	Time    time.Time
	Message string
}

// Log is an append-only message list with a retention cap. All writes go
// through one mutex so concurrent producers land on a single timeline.
type Log struct {
	mu        sync.Mutex
	entries   []Entry
	retention int
	listeners []func()

	now    func() time.Time
	logger *zap.Logger
}

// New returns a log keeping at most retention entries (0 keeps everything).
func New(retention int, logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retention < 0 {
		retention = 0
	}
	return &Log{
		retention: retention,
		now:       time.Now,
		logger:    logger,
	}
}

// Append adds a message and notifies subscribers.
func (l *Log) Append(message string) {
	l.mu.Lock()
	l.entries = append(l.entries, Entry{Time: l.now(), Message: message})
	if l.retention > 0 && len(l.entries) > l.retention {
		drop := len(l.entries) - l.retention
		l.entries = append(l.entries[:0:0], l.entries[drop:]...)
	}
	listeners := l.listeners
	l.mu.Unlock()

	l.logger.Info("activity", zap.String("message", message))
	notify(listeners)
}

func (l *Log) Appendf(format string, args ...any) {
	l.Append(fmt.Sprintf(format, args...))
}

// Clear removes every entry.
func (l *Log) Clear() {
	l.mu.Lock()
	l.entries = nil
	listeners := l.listeners
	l.mu.Unlock()

	notify(listeners)
}

// Snapshot returns the messages oldest first.
func (l *Log) Snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]string, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.Message
	}
	return out
}

func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Subscribe registers fn to run after every change. fn runs on the writer's
// goroutine, outside the lock.
func (l *Log) Subscribe(fn func()) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listeners = append(l.listeners[:len(l.listeners):len(l.listeners)], fn)
}

// Stamp formats the time suffix used in "... at <time>" messages.
func (l *Log) Stamp() string {
	return l.now().Format("2006-01-02 15:04:05 -0700")
}

func notify(listeners []func()) {
	for _, fn := range listeners {
		fn()
	}
}
