package outbox

import (
	"sync"
	"time"
)

const defaultDeadLetterCapacity = 100

// DeadLetter records a message that exhausted its delivery attempts.
type DeadLetter struct {
	Message  Message
	Reason   string
	FailedAt time.Time
}

// deadLetterLog keeps the most recent dead letters in a fixed-size ring.
type deadLetterLog struct {
	mu      sync.Mutex
	entries []DeadLetter
	next    int
	full    bool
}

func newDeadLetterLog(capacity int) *deadLetterLog {
	return &deadLetterLog{entries: make([]DeadLetter, capacity)}
}

func (l *deadLetterLog) add(entry DeadLetter) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries[l.next] = entry
	l.next = (l.next + 1) % len(l.entries)
	if l.next == 0 {
		l.full = true
	}
}

func (l *deadLetterLog) list() []DeadLetter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.full {
		out := make([]DeadLetter, l.next)
		copy(out, l.entries[:l.next])
		return out
	}
	out := make([]DeadLetter, 0, len(l.entries))
	out = append(out, l.entries[l.next:]...)
	return append(out, l.entries[:l.next]...)
}
