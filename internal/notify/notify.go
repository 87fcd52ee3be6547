// Package notify turns workflow outcomes into operator notices and asks the
// operator to confirm irreversible actions.
package notify

import (
	"sync"
	"time"

	"github.com/five82/biblio/internal/failure"
)

// Level ranks a notice.
type Level int

const (
	Info Level = iota
	Success
	Warning
	Error
)

func (l Level) String() string {
	switch l {
	case Success:
		return "success"
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return "info"
	}
}

// DefaultTTL is how long a transient notice stays visible.
const DefaultTTL = 4 * time.Second

// Notice is one message for the operator. A zero TTL keeps the notice until
// it is replaced or drained.
type Notice struct {
	Level Level
	Title string
	Text  string
	At    time.Time
	TTL   time.Duration
}

// Expired reports whether a transient notice has outlived its TTL at now.
func (n Notice) Expired(now time.Time) bool {
	return n.TTL > 0 && now.Sub(n.At) >= n.TTL
}

// Transient builds a notice that disappears after DefaultTTL.
func Transient(level Level, title, text string) Notice {
	return Notice{Level: level, Title: title, Text: text, At: time.Now(), TTL: DefaultTTL}
}

// Sticky builds a notice that stays until replaced.
func Sticky(level Level, title, text string) Notice {
	return Notice{Level: level, Title: title, Text: text, At: time.Now()}
}

// FromError converts a failed action into a notice. When verbatim is true and
// the backend supplied a message, that message is shown; otherwise generic is.
// Validation failures always show their own field summary. Cancelled actions
// produce no notice.
func FromError(err error, generic string, verbatim bool) (Notice, bool) {
	if err == nil {
		return Notice{}, false
	}
	switch failure.KindOf(err) {
	case failure.Cancelled:
		return Notice{}, false
	case failure.Validation:
		text := failure.MessageOf(err)
		if text == "" {
			text = generic
		}
		return Transient(Warning, "Check the form", text), true
	case failure.Unauthorized:
		return Sticky(Error, "Session expired", "Sign in again to continue."), true
	case failure.Network:
		return Transient(Error, "Backend unreachable", generic), true
	}
	text := generic
	if verbatim {
		if msg := failure.MessageOf(err); msg != "" {
			text = msg
		}
	}
	return Transient(Error, "Action failed", text), true
}

const maxNotices = 32

// Center keeps the most recent notices.
type Center struct {
	mu      sync.Mutex
	notices []Notice
}

// Push records a notice, discarding the oldest beyond the buffer size.
func (c *Center) Push(n Notice) {
	if n.At.IsZero() {
		n.At = time.Now()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notices = append(c.notices, n)
	if len(c.notices) > maxNotices {
		c.notices = append([]Notice(nil), c.notices[len(c.notices)-maxNotices:]...)
	}
}

// PushError records the notice FromError derives, if any.
func (c *Center) PushError(err error, generic string, verbatim bool) {
	if n, ok := FromError(err, generic, verbatim); ok {
		c.Push(n)
	}
}

// Latest returns the newest notice that has not expired at now.
func (c *Center) Latest(now time.Time) (Notice, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.notices[:0]
	for _, n := range c.notices {
		if !n.Expired(now) {
			kept = append(kept, n)
		}
	}
	c.notices = kept
	if len(c.notices) == 0 {
		return Notice{}, false
	}
	return c.notices[len(c.notices)-1], true
}

// Drain returns every buffered notice, oldest first, and empties the buffer.
func (c *Center) Drain() []Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.notices
	c.notices = nil
	return out
}
