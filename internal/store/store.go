package store

import (
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/matheus3301/chatsync/internal/bus"
)

// KindUpdated is published after a conversation's sequence changed.
const KindUpdated = "store.updated"

// DefaultTolerance is the compound-key time window. It is a heuristic
// observed against real delivery latency, not a protocol guarantee.
const DefaultTolerance = time.Second

// Update is the payload of KindUpdated events.
type Update struct {
	Added      int
	Reconciled int
	Len        int
}

// Store keeps one ordered, duplicate-free message sequence per conversation.
// It is the merge point for the push feed, the poll feed and local sends.
//
// Two entries are the same message when:
//   - both carry a server id and the ids are equal, or
//   - at least one has no server id yet, and sender id and content are equal
//     and their timestamps are less than the tolerance apart.
//
// This narrows the plain "same id or same compound key" rule on purpose: two
// entries that both carry server ids are compared by id alone, so distinct
// server messages with equal sender, content and close timestamps (a user
// sending "ok" twice) stay distinct.
//
// The compound key exists because a push delivery can reach the client
// before the poll response that carries its server id. Removing it brings
// back duplicates whenever the two feeds race.
type Store struct {
	mu        sync.RWMutex
	seqs      map[string][]Message
	tolerance time.Duration
	bus       *bus.Bus
}

// New creates an empty store. A non-positive tolerance selects DefaultTolerance.
func New(tolerance time.Duration, b *bus.Bus) *Store {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Store{
		seqs:      make(map[string][]Message),
		tolerance: tolerance,
		bus:       b,
	}
}

// Tolerance returns the compound-key time window.
func (s *Store) Tolerance() time.Duration {
	return s.tolerance
}

// Ingest unions a batch into the conversation's sequence and returns a copy
// of the updated sequence. Entries already present are kept as they are; a
// provisional entry only adopts the server id of the duplicate that matched
// it. Messages addressed to another conversation are ignored.
func (s *Store) Ingest(conversationID string, msgs []Message) []Message {
	s.mu.Lock()
	seq := s.seqs[conversationID]
	var upd Update
	for _, m := range msgs {
		if m.ConversationID == "" {
			m.ConversationID = conversationID
		}
		if m.ConversationID != conversationID {
			continue
		}
		if i := s.find(seq, m); i >= 0 {
			if seq[i].ID == "" && m.ID != "" {
				seq[i].ID = m.ID
				upd.Reconciled++
			}
			continue
		}
		seq = insertSorted(seq, m)
		upd.Added++
	}
	s.seqs[conversationID] = seq
	upd.Len = len(seq)
	out := slices.Clone(seq)
	s.mu.Unlock()

	if s.bus != nil && upd.Added+upd.Reconciled > 0 {
		s.bus.Publish(bus.Event{
			Kind:         KindUpdated,
			Conversation: conversationID,
			Timestamp:    time.Now(),
			Payload:      upd,
		})
	}
	return out
}

// Append merges a single message, typically a push delivery.
func (s *Store) Append(conversationID string, m Message) []Message {
	return s.Ingest(conversationID, []Message{m})
}

// Messages returns a copy of the conversation's sequence.
func (s *Store) Messages(conversationID string) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.seqs[conversationID])
}

// Len returns the number of entries in the conversation's sequence.
func (s *Store) Len(conversationID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seqs[conversationID])
}

// Forget drops the conversation's sequence.
func (s *Store) Forget(conversationID string) {
	s.mu.Lock()
	delete(s.seqs, conversationID)
	s.mu.Unlock()
}

func (s *Store) find(seq []Message, m Message) int {
	if m.ID != "" {
		for i := range seq {
			if seq[i].ID == m.ID {
				return i
			}
		}
	}
	for i := range seq {
		// Distinct server ids are distinct messages, however similar.
		if seq[i].ID != "" && m.ID != "" {
			continue
		}
		if seq[i].SenderID == m.SenderID && seq[i].Content == m.Content && within(seq[i].SentAt, m.SentAt, s.tolerance) {
			return i
		}
	}
	return -1
}

// insertSorted places m after every entry with SentAt <= m.SentAt, which keeps
// insertion order for equal timestamps.
func insertSorted(seq []Message, m Message) []Message {
	i := sort.Search(len(seq), func(i int) bool {
		return seq[i].SentAt.After(m.SentAt)
	})
	return slices.Insert(seq, i, m)
}

func within(a, b time.Time, tolerance time.Duration) bool {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d < tolerance
}
