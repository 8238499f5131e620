// Package notify keeps the toast notifications shown over the dashboard.
package notify

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Level classifies a notice.
type Level int

const (
	Info Level = iota
	Success
	Error
)

func (l Level) String() string {
	switch l {
	case Success:
		return "success"
	case Error:
		return "error"
	default:
		return "info"
	}
}

// Notice is one toast.
type Notice struct {
	ID    uint64
	Key   string
	Level Level
	Text  string
	At    time.Time
}

const (
	defaultTTL     = 4 * time.Second
	defaultHistory = 50
)

// Center collects notices. The zero value is not usable; call New.
type Center struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	seq     uint64
	notices []Notice
	limit   int
}

// New returns a Center whose notices stay visible for ttl.
func New(ttl time.Duration) *Center {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Center{ttl: ttl, now: time.Now, limit: defaultHistory}
}

// Info posts an informational notice.
func (c *Center) Info(text string) { c.push("", Info, text) }

// Success posts a success notice.
func (c *Center) Success(text string) { c.push("", Success, text) }

// Error posts an error notice.
func (c *Center) Error(text string) { c.push("", Error, text) }

// ErrorOnce posts an error unless a notice with the same key is still
// visible, in which case that notice's text is refreshed instead. It reports
// whether a new notice was created.
func (c *Center) ErrorOnce(key, text string) bool {
	c.mu.Lock()
	now := c.now()
	for i := len(c.notices) - 1; i >= 0; i-- {
		n := &c.notices[i]
		if n.Key == key && now.Sub(n.At) < c.ttl {
			n.Text = text
			c.mu.Unlock()
			return false
		}
	}
	c.mu.Unlock()
	c.push(key, Error, text)
	return true
}

// Active returns the notices still visible at now, oldest first.
func (c *Center) Active(now time.Time) []Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Notice
	for _, n := range c.notices {
		if now.Sub(n.At) < c.ttl {
			out = append(out, n)
		}
	}
	return out
}

// History returns the retained notices, oldest first.
func (c *Center) History() []Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Notice, len(c.notices))
	copy(out, c.notices)
	return out
}

func (c *Center) push(key string, level Level, text string) {
	c.mu.Lock()
	c.seq++
	n := Notice{ID: c.seq, Key: key, Level: level, Text: text, At: c.now()}
	c.notices = append(c.notices, n)
	if len(c.notices) > c.limit {
		c.notices = c.notices[len(c.notices)-c.limit:]
	}
	c.mu.Unlock()

	event := log.Info()
	if level == Error {
		event = log.Warn()
	}
	event.Str("component", "notify").Str("level", level.String()).Str("key", key).Msg(text)
}
