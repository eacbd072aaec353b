package model

import (
	"fmt"
	"sync"
	"time"
)

// Notice is the one-line message shown in the status bar.
type Notice struct {
	Text string
	// Warn marks failures (poll, send, delete) as opposed to confirmations.
	Warn bool
}

// Flash holds the latest notice. A warning repeated while it is still shown,
// such as the same poll failure on every tick, is collapsed into one notice
// with a repeat count instead of flickering.
type Flash struct {
	mu      sync.Mutex
	notice  Notice
	repeats int
	expires time.Time
}

// Info shows text for ttl.
func (f *Flash) Info(text string, ttl time.Duration) {
	f.set(Notice{Text: text}, ttl)
}

// Warn shows a failure for ttl.
func (f *Flash) Warn(text string, ttl time.Duration) {
	f.set(Notice{Text: text, Warn: true}, ttl)
}

func (f *Flash) set(n Notice, ttl time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	if n == f.notice && now.Before(f.expires) {
		f.repeats++
	} else {
		f.notice = n
		f.repeats = 1
	}
	f.expires = now.Add(ttl)
}

// ClearWarning drops the current notice if it is a warning. Used once the
// push channel is back, which makes an earlier poll failure stale.
func (f *Flash) ClearWarning() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.notice.Warn {
		f.notice = Notice{}
		f.repeats = 0
		f.expires = time.Time{}
	}
}

// Current returns the live notice, if any.
func (f *Flash) Current() (Notice, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.notice.Text == "" || !time.Now().Before(f.expires) {
		return Notice{}, false
	}
	n := f.notice
	if f.repeats > 1 {
		n.Text = fmt.Sprintf("%s (x%d)", n.Text, f.repeats)
	}
	return n, true
}
