// Package notify holds transient operator notices. Notices expire on their
// own; nothing outside this package deletes them.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is one transient message shown to the operator.
type Notice struct {
	ID    string
	Level Level
	Text  string
	At    time.Time

	expires time.Time
}

// Center collects notices and prunes them after their TTL. An optional sink
// receives every notice as it is posted, for the event bus or a UI push.
type Center struct {
	mu      sync.Mutex
	entries []Notice
	ttl     time.Duration
	now     func() time.Time
	sink    func(Notice)
}

const defaultTTL = 4 * time.Second

func NewCenter(ttl time.Duration) *Center {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Center{ttl: ttl, now: time.Now}
}

// SetSink wires a delivery callback. The callback runs synchronously on the
// posting goroutine and must not post back into the center.
func (c *Center) SetSink(sink func(Notice)) {
	c.mu.Lock()
	c.sink = sink
	c.mu.Unlock()
}

func (c *Center) Info(text string) Notice    { return c.post(LevelInfo, text) }
func (c *Center) Success(text string) Notice { return c.post(LevelSuccess, text) }
func (c *Center) Warn(text string) Notice    { return c.post(LevelWarning, text) }
func (c *Center) Error(text string) Notice   { return c.post(LevelError, text) }

func (c *Center) post(level Level, text string) Notice {
	c.mu.Lock()
	now := c.now()
	n := Notice{
		ID:      uuid.NewString(),
		Level:   level,
		Text:    text,
		At:      now,
		expires: now.Add(c.ttl),
	}
	c.prune(now)
	c.entries = append(c.entries, n)
	sink := c.sink
	c.mu.Unlock()
	if sink != nil {
		sink(n)
	}
	return n
}

// Active returns the unexpired notices, oldest first.
func (c *Center) Active() []Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prune(c.now())
	out := make([]Notice, len(c.entries))
	copy(out, c.entries)
	return out
}

// Clear drops everything immediately.
func (c *Center) Clear() {
	c.mu.Lock()
	c.entries = nil
	c.mu.Unlock()
}

func (c *Center) prune(now time.Time) {
	kept := c.entries[:0]
	for _, n := range c.entries {
		if n.expires.After(now) {
			kept = append(kept, n)
		}
	}
	c.entries = kept
}
