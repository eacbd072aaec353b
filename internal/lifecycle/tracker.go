package lifecycle

import (
	"fmt"
	"sync"
	"time"

	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/store"
)

// KindChanged is published on every state change.
const KindChanged = "lifecycle.changed"

// State is whether a conversation still accepts writes.
type State string

const (
	Active      State = "ACTIVE"
	PeerDeleted State = "PEER_DELETED"
)

// Source names what caused a transition.
type Source string

const (
	SourceSummary  Source = "summary"
	SourcePush     Source = "push"
	SourceReopened Source = "reopened"
)

// Change is the payload of KindChanged events.
type Change struct {
	From   State
	To     State
	Reason string
	Source Source
}

// Tracker is the per-view state machine over {Active, PeerDeleted}.
//
// PeerDeleted is entered from a summary fetch that reports the peer's flag or
// from an error-topic notification. It is left only when a later summary
// fetch reports the flag cleared; every fetch re-derives the state.
type Tracker struct {
	mu           sync.RWMutex
	conversation string
	role         store.Role
	state        State
	reason       string
	bus          *bus.Bus
}

// New creates a tracker in the Active state.
func New(conversationID string, role store.Role, b *bus.Bus) *Tracker {
	return &Tracker{
		conversation: conversationID,
		role:         role,
		state:        Active,
		bus:          b,
	}
}

// State returns the current state and, when PeerDeleted, its reason.
func (t *Tracker) State() (State, string) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state, t.reason
}

// CanSend reports whether outbound sends are allowed.
func (t *Tracker) CanSend() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state == Active
}

// Reset returns the tracker to Active when a view is (re)opened. The next
// summary fetch re-derives the real state.
func (t *Tracker) Reset() {
	t.set(Active, "", SourceReopened)
}

// MarkPeerDeleted records a server-pushed deletion notice.
func (t *Tracker) MarkPeerDeleted(reason string) {
	if reason == "" {
		reason = "conversation deleted by the other party"
	}
	t.set(PeerDeleted, reason, SourcePush)
}

// Observe re-derives the state from a fresh summary list. A list that does
// not contain the conversation leaves the state unchanged.
func (t *Tracker) Observe(summaries []store.ConversationSummary) {
	sum, ok := store.FindSummary(summaries, t.conversation)
	if !ok {
		return
	}
	if sum.PeerDeleted(t.role) {
		t.set(PeerDeleted, fmt.Sprintf("conversation deleted by %s", peerOf(t.role)), SourceSummary)
		return
	}
	t.set(Active, "", SourceSummary)
}

func (t *Tracker) set(to State, reason string, src Source) {
	t.mu.Lock()
	from := t.state
	if from == to && t.reason == reason {
		t.mu.Unlock()
		return
	}
	t.state = to
	t.reason = reason
	t.mu.Unlock()

	if t.bus != nil && from != to {
		t.bus.Publish(bus.Event{
			Kind:         KindChanged,
			Conversation: t.conversation,
			Timestamp:    time.Now(),
			Payload:      Change{From: from, To: to, Reason: reason, Source: src},
		})
	}
}

func peerOf(r store.Role) store.Role {
	if r == store.RoleCustomer {
		return store.RolePerformer
	}
	return store.RoleCustomer
}
