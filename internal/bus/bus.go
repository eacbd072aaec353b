package bus

import (
	"strings"
	"sync"
	"sync/atomic"
)

// Bus is an in-process publish/subscribe event bus with namespace filtering.
type Bus struct {
	mu      sync.RWMutex
	subs    map[int]*subscription
	next    int
	dropped atomic.Uint64
}

type subscription struct {
	namespaces   []string
	conversation string
	ch           chan Event
}

func (s *subscription) matches(evt Event) bool {
	if s.conversation != "" && evt.Conversation != "" && evt.Conversation != s.conversation {
		return false
	}
	for _, ns := range s.namespaces {
		if strings.HasPrefix(evt.Kind, ns) {
			return true
		}
	}
	return false
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		subs: make(map[int]*subscription),
	}
}

// Publish sends an event to all matching subscribers without blocking.
// Events for a subscriber whose buffer is full are dropped and counted.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if !sub.matches(evt) {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			b.dropped.Add(1)
		}
	}
}

// Subscribe returns a channel that receives events matching the given namespace prefix.
// bufSize controls the channel buffer. Returns the channel and an unsubscribe function.
func (b *Bus) Subscribe(namespace string, bufSize int) (<-chan Event, func()) {
	return b.add(&subscription{namespaces: []string{namespace}, ch: make(chan Event, bufSize)})
}

// SubscribeConversation returns a channel receiving events under any of the
// namespaces that are either global or scoped to conversationID.
func (b *Bus) SubscribeConversation(conversationID string, bufSize int, namespaces ...string) (<-chan Event, func()) {
	return b.add(&subscription{
		namespaces:   namespaces,
		conversation: conversationID,
		ch:           make(chan Event, bufSize),
	})
}

// Dropped returns how many deliveries were discarded because a subscriber was full.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Subscribers returns the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Bus) add(sub *subscription) (<-chan Event, func()) {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = sub
	b.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}
