// Package transport maintains the push channel of one conversation view:
// connect, subscribe, announce, reconnect on drop and decode inbound frames
// onto the event bus.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/status"
	"github.com/matheus3301/chatsync/internal/wire"
	"go.uber.org/zap"
)

// Bus event kinds published for inbound frames.
const (
	KindPushMessage = "push.message"
	KindPeerDeleted = "push.peer_deleted"
)

// DefaultReconnectDelay is the flat wait between reconnect attempts.
const DefaultReconnectDelay = 3 * time.Second

// Identity is the authenticated user on whose behalf the client talks.
type Identity struct {
	UserID      string
	DisplayName string
}

// Config tunes the client.
type Config struct {
	ReconnectDelay time.Duration
}

// Client owns the push channel for a single conversation.
type Client struct {
	dialer   Dialer
	identity Identity
	bus      *bus.Bus
	logger   *zap.Logger
	delay    time.Duration

	mu           sync.Mutex
	running      bool
	conversation string
	machine      *status.Machine
	ch           Channel
	states       chan status.State
	cancel       context.CancelFunc
	done         chan struct{}
}

// NewClient creates a disconnected client.
func NewClient(d Dialer, id Identity, b *bus.Bus, logger *zap.Logger, cfg Config) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	delay := cfg.ReconnectDelay
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}
	return &Client{
		dialer:   d,
		identity: id,
		bus:      b,
		logger:   logger,
		delay:    delay,
	}
}

// Connect starts the connect/reconnect loop for conversationID and returns
// the connection-state stream, which is closed after Disconnect. The loop
// also ends when ctx is cancelled.
func (c *Client) Connect(ctx context.Context, conversationID, token string) (<-chan status.State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return nil, ErrAlreadyConnected
	}
	loopCtx, cancel := context.WithCancel(ctx)
	c.running = true
	c.conversation = conversationID
	c.machine = status.NewMachine(conversationID, c.bus)
	c.states = make(chan status.State, 32)
	c.cancel = cancel
	c.done = make(chan struct{})

	go c.run(loopCtx, token)
	return c.states, nil
}

// Disconnect stops the loop, releases the channel and waits until the
// client is DISCONNECTED. Safe to call more than once.
func (c *Client) Disconnect() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// State returns the current connection state.
func (c *Client) State() status.State {
	c.mu.Lock()
	m := c.machine
	c.mu.Unlock()
	if m == nil {
		return status.Disconnected
	}
	return m.Current()
}

// Send publishes a chat message to the conversation. It fails with
// ErrNotConnected unless the channel is CONNECTED.
func (c *Client) Send(ctx context.Context, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	ch, m, conv := c.ch, c.machine, c.conversation
	c.mu.Unlock()
	if ch == nil || m == nil || m.Current() != status.Connected {
		return ErrNotConnected
	}

	body, err := json.Marshal(wire.Envelope{
		ConversationID: wire.ID(conv),
		SenderID:       wire.ID(c.identity.UserID),
		SenderName:     c.identity.DisplayName,
		Type:           wire.TypeChat,
		Content:        content,
	})
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if err := ch.Send(SendDestination, body); err != nil {
		return &TransportError{Op: "send", Err: err}
	}
	return nil
}

func (c *Client) run(ctx context.Context, token string) {
	defer close(c.done)
	log := c.logger.With(zap.String("conversation_id", c.conversation))

	c.transition(status.Connecting)
	for {
		s, lost, err := c.establish(ctx, token)
		if err == nil {
			c.transition(status.Connected)
			log.Info("push channel connected")
			select {
			case <-ctx.Done():
			case <-lost:
				err = &TransportError{Op: "read", Err: fmt.Errorf("connection lost")}
			}
			c.release(s)
		}
		if ctx.Err() != nil {
			break
		}

		log.Warn("push channel unavailable, reconnecting",
			zap.Duration("delay", c.delay), zap.Error(err))
		c.transition(status.Reconnecting)
		t := time.NewTimer(c.delay)
		select {
		case <-ctx.Done():
			t.Stop()
		case <-t.C:
		}
		if ctx.Err() != nil {
			break
		}
	}

	c.transition(status.Disconnected)
	log.Info("push channel disconnected")
	c.mu.Lock()
	close(c.states)
	c.cancel = nil
	c.running = false
	c.mu.Unlock()
}

// session is an established channel plus the readers draining it.
type session struct {
	ch      Channel
	readers sync.WaitGroup
}

// establish dials, subscribes to the conversation and error topics and
// announces the join. lost is closed when any subscription ends.
func (c *Client) establish(ctx context.Context, token string) (*session, <-chan struct{}, error) {
	ch, err := c.dialer.Dial(ctx, token)
	if err != nil {
		return nil, nil, &TransportError{Op: "dial", Err: err}
	}
	s := &session{ch: ch}
	lost := make(chan struct{})
	var once sync.Once

	subs := []struct {
		dest   string
		handle func(string, []byte)
	}{
		{ConversationTopic(c.conversation), c.handleConversation},
		{ErrorTopic(c.identity.UserID), c.handleError},
	}
	for _, sub := range subs {
		frames, err := ch.Subscribe(sub.dest)
		if err != nil {
			c.release(s)
			return nil, nil, &TransportError{Op: "subscribe " + sub.dest, Err: err}
		}
		s.readers.Add(1)
		go func(dest string, handle func(string, []byte)) {
			defer s.readers.Done()
			for body := range frames {
				handle(dest, body)
			}
			once.Do(func() { close(lost) })
		}(sub.dest, sub.handle)
	}

	join, err := json.Marshal(wire.Envelope{
		ConversationID: wire.ID(c.conversation),
		SenderID:       wire.ID(c.identity.UserID),
		SenderName:     c.identity.DisplayName,
		Type:           wire.TypeJoin,
	})
	if err == nil {
		err = ch.Send(JoinDestination, join)
	}
	if err != nil {
		c.release(s)
		return nil, nil, &TransportError{Op: "join", Err: err}
	}

	c.mu.Lock()
	c.ch = ch
	c.mu.Unlock()
	return s, lost, nil
}

// release closes the channel and waits for its readers to finish, so no
// frame from it is handled afterwards.
func (c *Client) release(s *session) {
	c.mu.Lock()
	if c.ch == s.ch {
		c.ch = nil
	}
	c.mu.Unlock()
	if err := s.ch.Close(); err != nil {
		c.logger.Debug("closing push channel", zap.Error(err))
	}
	s.readers.Wait()
}

func (c *Client) transition(to status.State) {
	if c.machine.Current() == to {
		return
	}
	if err := c.machine.Transition(to); err != nil {
		c.logger.Error("connection state", zap.Error(err))
		return
	}
	select {
	case c.states <- to:
	default:
		c.logger.Debug("state stream full, dropping update", zap.String("state", string(to)))
	}
}

func (c *Client) handleConversation(dest string, body []byte) {
	received := time.Now()
	var env wire.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		c.malformed(dest, err)
		return
	}
	if err := env.Validate(); err != nil {
		c.malformed(dest, err)
		return
	}
	switch env.Type {
	case wire.TypeChat:
	case wire.TypeJoin, wire.TypeLeave:
		return
	default:
		c.malformed(dest, fmt.Errorf("unknown envelope type %q", env.Type))
		return
	}
	if string(env.ConversationID) != c.conversation {
		c.logger.Debug("ignoring message for another conversation",
			zap.String("destination", dest),
			zap.String("conversation_id", string(env.ConversationID)))
		return
	}
	c.publish(KindPushMessage, env.ToStore(received))
}

func (c *Client) handleError(dest string, body []byte) {
	var notice wire.ErrorNotice
	if err := json.Unmarshal(body, &notice); err != nil {
		c.malformed(dest, err)
		return
	}
	if notice.Code != wire.CodeConversationDeleted {
		c.logger.Warn("server error notice",
			zap.String("code", notice.Code),
			zap.String("message", notice.Message))
		return
	}
	if string(notice.ConversationID) != c.conversation {
		return
	}
	c.publish(KindPeerDeleted, notice.Message)
}

func (c *Client) malformed(dest string, err error) {
	c.logger.Warn("dropping inbound frame",
		zap.Error(&MalformedPayloadError{Destination: dest, Err: err}))
}

func (c *Client) publish(kind string, payload any) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(bus.Event{
		Kind:         kind,
		Conversation: c.conversation,
		Timestamp:    time.Now(),
		Payload:      payload,
	})
}
