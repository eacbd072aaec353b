package model

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/matheus3301/chatsync/internal/cache"
	"github.com/matheus3301/chatsync/internal/conversation"
	"github.com/matheus3301/chatsync/internal/lifecycle"
	"github.com/matheus3301/chatsync/internal/status"
	"github.com/matheus3301/chatsync/internal/store"
	chsync "github.com/matheus3301/chatsync/internal/sync"
)

const pollFailureTTL = 5 * time.Second

// ErrNoConversation is returned by actions that need an open conversation.
var ErrNoConversation = errors.New("no conversation open")

// Status is what the status bar shows for the open conversation.
type Status struct {
	Connection status.State
	Lifecycle  lifecycle.State
	Reason     string
	CanSend    bool
}

// ViewModel sits between the views and the conversation manager. It holds
// at most one open session and turns bus traffic into refresh signals.
type ViewModel struct {
	mu sync.RWMutex

	manager *conversation.Manager
	active  *conversation.Session
	Flash   Flash

	refreshCh chan struct{}
}

// NewViewModel creates a new view model over m.
func NewViewModel(m *conversation.Manager) *ViewModel {
	return &ViewModel{
		manager:   m,
		refreshCh: make(chan struct{}, 1),
	}
}

// RefreshCh returns the channel that signals UI refresh.
func (vm *ViewModel) RefreshCh() <-chan struct{} {
	return vm.refreshCh
}

func (vm *ViewModel) signalRefresh() {
	select {
	case vm.refreshCh <- struct{}{}:
	default:
	}
}

// Watch turns bus events that change what is on screen into refresh
// signals until ctx is done. Poll failures become flash warnings, which a
// reconnect clears.
func (vm *ViewModel) Watch(ctx context.Context) {
	events, unsub := vm.manager.Bus().SubscribeConversation("", 64,
		store.KindUpdated,
		cache.KindChanged,
		lifecycle.KindChanged,
		status.KindChanged,
		chsync.KindPollFailed,
	)
	go func() {
		defer unsub()
		for {
			select {
			case <-ctx.Done():
				return
			case evt := <-events:
				switch evt.Kind {
				case chsync.KindPollFailed:
					if err, ok := evt.Payload.(error); ok {
						vm.Flash.Warn("Poll failed: "+err.Error(), pollFailureTTL)
					}
				case status.KindChanged:
					if change, ok := evt.Payload.(status.StatusChange); ok && change.To == status.Connected {
						vm.Flash.ClearWarning()
					}
				}
				vm.signalRefresh()
			}
		}
	}()
}

// LoadConversations refetches the conversation list.
func (vm *ViewModel) LoadConversations(ctx context.Context) error {
	if err := vm.manager.RefreshSummaries(ctx); err != nil {
		return err
	}
	vm.signalRefresh()
	return nil
}

// Conversations returns the cached conversation list.
func (vm *ViewModel) Conversations() []store.ConversationSummary {
	return vm.manager.Summaries()
}

// Role returns the signed-in user's role.
func (vm *ViewModel) Role() store.Role {
	return vm.manager.Identity().Role
}

// Self returns the signed-in user's id.
func (vm *ViewModel) Self() string {
	return vm.manager.Identity().UserID
}

// Open makes conversationID the open conversation, closing the previous one.
func (vm *ViewModel) Open(ctx context.Context, conversationID string) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if vm.active != nil {
		if vm.active.ID() == conversationID {
			vm.active.Refocus()
			return nil
		}
		vm.active.Close()
		vm.active = nil
	}
	s, err := vm.manager.Open(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("open conversation %s: %w", conversationID, err)
	}
	vm.active = s
	vm.signalRefresh()
	return nil
}

// CloseActive closes the open conversation, if any.
func (vm *ViewModel) CloseActive() {
	vm.mu.Lock()
	s := vm.active
	vm.active = nil
	vm.mu.Unlock()
	if s != nil {
		s.Close()
	}
}

// ActiveID returns the open conversation's id, or "".
func (vm *ViewModel) ActiveID() string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	if vm.active == nil {
		return ""
	}
	return vm.active.ID()
}

// Messages returns the open conversation's merged sequence.
func (vm *ViewModel) Messages() []store.Message {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	if vm.active == nil {
		return nil
	}
	return vm.active.Messages()
}

// Status returns the open conversation's state.
func (vm *ViewModel) Status() (Status, bool) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	if vm.active == nil {
		return Status{}, false
	}
	st, reason := vm.active.Lifecycle()
	return Status{
		Connection: vm.active.ConnectionState(),
		Lifecycle:  st,
		Reason:     reason,
		CanSend:    vm.active.CanSend(),
	}, true
}

// Send sends text to the open conversation.
func (vm *ViewModel) Send(ctx context.Context, text string) error {
	vm.mu.RLock()
	s := vm.active
	vm.mu.RUnlock()
	if s == nil {
		return ErrNoConversation
	}
	return s.Send(ctx, text)
}

// Refocus asks the open conversation for an immediate poll.
func (vm *ViewModel) Refocus() {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	if vm.active != nil {
		vm.active.Refocus()
	}
}

// Delete deletes conversationID for the signed-in side, closing it first
// when it is open.
func (vm *ViewModel) Delete(ctx context.Context, conversationID string) error {
	if vm.ActiveID() == conversationID {
		vm.CloseActive()
	}
	if err := vm.manager.DeleteConversation(ctx, conversationID); err != nil {
		return err
	}
	vm.signalRefresh()
	return nil
}
