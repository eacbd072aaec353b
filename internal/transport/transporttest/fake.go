// Package transporttest provides an in-memory push channel for tests.
package transporttest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/chatsync/internal/transport"
)

// Frame is an outbound frame recorded by Channel.
type Frame struct {
	Destination string
	Body        []byte
}

// Channel is an in-memory transport.Channel. Push plays the server side;
// Close (or Drop) ends every subscription like a lost connection would.
type Channel struct {
	mu     sync.Mutex
	subs   map[string]chan []byte
	sent   []Frame
	closed bool
}

// NewChannel creates an open channel.
func NewChannel() *Channel {
	return &Channel{subs: make(map[string]chan []byte)}
}

func (c *Channel) Subscribe(dest string) (<-chan []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errors.New("channel closed")
	}
	ch := make(chan []byte, 64)
	c.subs[dest] = ch
	return ch, nil
}

func (c *Channel) Send(dest string, body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("channel closed")
	}
	c.sent = append(c.sent, Frame{Destination: dest, Body: body})
	return nil
}

func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	for _, ch := range c.subs {
		close(ch)
	}
	return nil
}

// Drop simulates an unexpected connection loss.
func (c *Channel) Drop() {
	_ = c.Close()
}

// Push delivers body to the subscriber of dest.
func (c *Channel) Push(dest, body string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.subs[dest]
	if !ok || c.closed {
		return fmt.Errorf("no open subscription for %s", dest)
	}
	ch <- []byte(body)
	return nil
}

// Sent returns a copy of the frames sent so far.
func (c *Channel) Sent() []Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Frame, len(c.sent))
	copy(out, c.sent)
	return out
}

// SentTo returns the frames sent to dest.
func (c *Channel) SentTo(dest string) []Frame {
	var out []Frame
	for _, f := range c.Sent() {
		if f.Destination == dest {
			out = append(out, f)
		}
	}
	return out
}

// Subscribed reports whether dest has been subscribed.
func (c *Channel) Subscribed(dest string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.subs[dest]
	return ok
}

// Closed reports whether the channel was closed.
func (c *Channel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Dialer hands out Channels. The first Fail dials are refused.
type Dialer struct {
	Fail int

	mu     sync.Mutex
	dials  int
	tokens []string
	dialed chan *Channel
}

// NewDialer creates a dialer that refuses the first fail handshakes.
func NewDialer(fail int) *Dialer {
	return &Dialer{Fail: fail, dialed: make(chan *Channel, 64)}
}

func (d *Dialer) Dial(ctx context.Context, token string) (transport.Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.dials++
	d.tokens = append(d.tokens, token)
	n := d.dials
	d.mu.Unlock()
	if n <= d.Fail {
		return nil, fmt.Errorf("handshake %d refused", n)
	}
	ch := NewChannel()
	d.dialed <- ch
	return ch, nil
}

// Next waits for the next successfully dialed channel.
func (d *Dialer) Next(t testing.TB) *Channel {
	t.Helper()
	select {
	case ch := <-d.dialed:
		return ch
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dial")
		return nil
	}
}

// Dials returns the number of dial attempts.
func (d *Dialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// Tokens returns the tokens passed to Dial, in order.
func (d *Dialer) Tokens() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.tokens...)
}
