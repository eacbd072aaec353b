package conversation

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/cache"
	"github.com/matheus3301/chatsync/internal/lifecycle"
	"github.com/matheus3301/chatsync/internal/readstate"
	"github.com/matheus3301/chatsync/internal/status"
	"github.com/matheus3301/chatsync/internal/store"
	chsync "github.com/matheus3301/chatsync/internal/sync"
	"github.com/matheus3301/chatsync/internal/transport"
	"go.uber.org/zap"
)

const eventBuffer = 256

// Session is one open conversation view.
type Session struct {
	id        string
	m         *Manager
	transport *transport.Client
	poller    *chsync.Poller
	tracker   *lifecycle.Tracker
	logger    *zap.Logger

	events <-chan bus.Event
	unsub  func()
	ops    chan func()

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	wg     gosync.WaitGroup
	once   gosync.Once
}

func newSession(m *Manager, conversationID string) *Session {
	d := m.deps
	return &Session{
		id: conversationID,
		m:  m,
		transport: transport.NewClient(d.Dialer, transport.Identity{
			UserID:      d.Identity.UserID,
			DisplayName: d.Identity.DisplayName,
		}, d.Bus, d.Logger, transport.Config{ReconnectDelay: d.ReconnectDelay}),
		poller:  chsync.NewPoller(d.API, d.Bus, d.Logger),
		tracker: lifecycle.New(conversationID, d.Identity.Role, d.Bus),
		logger:  d.Logger.With(zap.String("conversation_id", conversationID)),
		ops:     make(chan func()),
		done:    make(chan struct{}),
	}
}

func (s *Session) open(ctx context.Context) error {
	d := s.m.deps
	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))

	s.tracker.Reset()
	s.m.readState.Zero(s.id)
	if list, ok := d.Summaries.Get(readstate.SummariesKey); ok {
		s.tracker.Observe(list)
	}

	s.events, s.unsub = d.Bus.SubscribeConversation(s.id, eventBuffer,
		transport.KindPushMessage,
		transport.KindPeerDeleted,
		chsync.KindPollCompleted,
		cache.KindChanged,
	)
	go s.loop()

	s.background(func(ctx context.Context) {
		_ = s.m.readState.OnConversationOpened(ctx, s.id)
	})

	states, err := s.transport.Connect(s.ctx, s.id, d.Identity.Token)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	s.background(func(context.Context) {
		for st := range states {
			s.logger.Debug("connection state", zap.String("state", string(st)))
		}
	})

	if err := s.poller.Start(s.ctx, s.id, d.PollInterval); err != nil {
		return fmt.Errorf("start poller: %w", err)
	}
	s.logger.Info("conversation opened")
	return nil
}

// ID returns the conversation id.
func (s *Session) ID() string { return s.id }

// Messages returns a copy of the merged message sequence.
func (s *Session) Messages() []store.Message {
	return s.m.deps.Store.Messages(s.id)
}

// ConnectionState returns the push channel's state.
func (s *Session) ConnectionState() status.State {
	return s.transport.State()
}

// Lifecycle returns the lifecycle state and, when deleted, its reason.
func (s *Session) Lifecycle() (lifecycle.State, string) {
	return s.tracker.State()
}

// CanSend reports whether Send would be attempted right now.
func (s *Session) CanSend() bool {
	return s.tracker.CanSend() && s.transport.State() == status.Connected
}

// Send publishes content and appends it to the sequence as a provisional
// entry that the server's echo later reconciles. While the peer has deleted
// the conversation the send is rejected locally and nothing is published.
func (s *Session) Send(ctx context.Context, content string) error {
	if st, reason := s.tracker.State(); st != lifecycle.Active {
		return fmt.Errorf("%s: %w", reason, transport.ErrNotConnected)
	}
	if err := s.transport.Send(ctx, content); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	id := s.m.deps.Identity
	msg := store.Message{
		LocalID:        uuid.NewString(),
		ConversationID: s.id,
		Content:        content,
		SenderName:     id.DisplayName,
		SenderID:       id.UserID,
		SentAt:         time.Now(),
	}
	return s.do(ctx, func() {
		s.m.deps.Store.Append(s.id, msg)
	})
}

// Refocus requests an immediate poll, e.g. when the view regains focus.
func (s *Session) Refocus() {
	s.poller.TriggerNow()
}

// Close tears the session down. Once it returns, no bus delivery for the
// conversation touches the store. Safe to call more than once.
func (s *Session) Close() {
	s.once.Do(func() {
		if s.unsub != nil {
			s.unsub()
		}
		if s.cancel != nil {
			s.cancel()
		}
		s.transport.Disconnect()
		s.poller.Stop()
		if s.events != nil {
			<-s.done
		}
		s.wg.Wait()
		s.m.deps.Store.Forget(s.id)
		s.m.forget(s)
		s.logger.Info("conversation closed")
	})
}

func (s *Session) loop() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return
		case fn := <-s.ops:
			if s.ctx.Err() != nil {
				return
			}
			fn()
		case evt, ok := <-s.events:
			if !ok || s.ctx.Err() != nil {
				return
			}
			s.handle(evt)
		}
	}
}

func (s *Session) handle(evt bus.Event) {
	st := s.m.deps.Store
	switch evt.Kind {
	case transport.KindPushMessage:
		msg, ok := evt.Payload.(store.Message)
		if !ok {
			return
		}
		st.Ingest(s.id, []store.Message{msg})

	case transport.KindPeerDeleted:
		reason, _ := evt.Payload.(string)
		s.tracker.MarkPeerDeleted(reason)

	case chsync.KindPollCompleted:
		msgs, ok := evt.Payload.([]store.Message)
		if !ok {
			return
		}
		st.Ingest(s.id, msgs)
		s.background(func(ctx context.Context) {
			_ = s.m.readState.OnPollCompleted(ctx, s.id)
		})

	case cache.KindChanged:
		change, ok := evt.Payload.(cache.Change[[]store.ConversationSummary])
		if !ok || change.Local || change.Key != readstate.SummariesKey {
			return
		}
		s.tracker.Observe(change.Value)
	}
}

// do runs fn on the event loop and waits for it.
func (s *Session) do(ctx context.Context, fn func()) error {
	ran := make(chan struct{})
	select {
	case s.ops <- func() { fn(); close(ran) }:
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-ran:
	case <-s.done:
	}
	return nil
}

func (s *Session) background(fn func(ctx context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn(s.ctx)
	}()
}
