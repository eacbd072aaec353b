// Package conversation composes the sync components into per-view sessions.
//
// A Session owns the push channel, the poller and the lifecycle tracker of
// one open conversation, and runs a single event loop through which every
// push delivery, poll result and summaries refresh is applied.
package conversation

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/cache"
	"github.com/matheus3301/chatsync/internal/readstate"
	"github.com/matheus3301/chatsync/internal/store"
	"github.com/matheus3301/chatsync/internal/transport"
	"go.uber.org/zap"
)

// ErrAlreadyOpen is returned by Open for a conversation that has a live session.
var ErrAlreadyOpen = errors.New("conversation already open")

// API is the slice of the chat service the sessions need.
type API interface {
	FetchMessages(ctx context.Context, conversationID string) ([]store.Message, error)
	FetchConversationSummaries(ctx context.Context) ([]store.ConversationSummary, error)
	MarkRead(ctx context.Context, conversationID string) error
	DeleteConversation(ctx context.Context, conversationID string) error
}

// Identity is the signed-in user.
type Identity struct {
	UserID      string
	DisplayName string
	Role        store.Role
	Token       string
}

// Deps are the shared collaborators of every session.
type Deps struct {
	Bus       *bus.Bus
	Store     *store.Store
	Summaries *cache.Cache[[]store.ConversationSummary]
	API       API
	Dialer    transport.Dialer
	Identity  Identity

	PollInterval   time.Duration
	ReconnectDelay time.Duration
	Logger         *zap.Logger
}

// Manager opens and tracks conversation sessions.
type Manager struct {
	deps      Deps
	readState *readstate.Synchronizer
	logger    *zap.Logger

	mu       gosync.Mutex
	sessions map[string]*Session
}

// NewManager creates a manager and registers the summaries loader.
func NewManager(deps Deps) *Manager {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Bus == nil {
		deps.Bus = bus.New()
	}
	if deps.Store == nil {
		deps.Store = store.New(store.DefaultTolerance, deps.Bus)
	}
	if deps.Summaries == nil {
		deps.Summaries = cache.New[[]store.ConversationSummary](deps.Bus, deps.Logger)
	}
	deps.Summaries.Register(readstate.SummariesKey, deps.API.FetchConversationSummaries)

	return &Manager{
		deps:      deps,
		readState: readstate.New(deps.API, deps.Summaries, deps.Logger),
		logger:    deps.Logger,
		sessions:  make(map[string]*Session),
	}
}

// Bus returns the event bus sessions publish on.
func (m *Manager) Bus() *bus.Bus { return m.deps.Bus }

// Identity returns the signed-in user.
func (m *Manager) Identity() Identity { return m.deps.Identity }

// Summaries returns the cached conversation list.
func (m *Manager) Summaries() []store.ConversationSummary {
	list, _ := m.deps.Summaries.Get(readstate.SummariesKey)
	return list
}

// RefreshSummaries refetches the conversation list.
func (m *Manager) RefreshSummaries(ctx context.Context) error {
	return m.deps.Summaries.Invalidate(ctx, readstate.SummariesKey)
}

// DeleteConversation deletes the conversation for the signed-in side and
// refreshes the list.
func (m *Manager) DeleteConversation(ctx context.Context, conversationID string) error {
	if err := m.deps.API.DeleteConversation(ctx, conversationID); err != nil {
		return fmt.Errorf("delete conversation %s: %w", conversationID, err)
	}
	return m.RefreshSummaries(ctx)
}

// Open starts a session for conversationID. The returned session must be
// closed by the caller.
func (m *Manager) Open(ctx context.Context, conversationID string) (*Session, error) {
	m.mu.Lock()
	if _, ok := m.sessions[conversationID]; ok {
		m.mu.Unlock()
		return nil, ErrAlreadyOpen
	}
	s := newSession(m, conversationID)
	m.sessions[conversationID] = s
	m.mu.Unlock()

	if err := s.open(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Session returns the live session for conversationID, if any.
func (m *Manager) Session(conversationID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[conversationID]
	return s, ok
}

// CloseAll closes every live session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	open := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		open = append(open, s)
	}
	m.mu.Unlock()

	for _, s := range open {
		s.Close()
	}
}

func (m *Manager) forget(s *Session) {
	m.mu.Lock()
	if m.sessions[s.id] == s {
		delete(m.sessions, s.id)
	}
	m.mu.Unlock()
}
