package store

import "time"

// Role is the viewer's side of a conversation.
type Role string

const (
	RoleCustomer  Role = "customer"
	RolePerformer Role = "performer"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleCustomer || r == RolePerformer
}

// Message is one entry of a conversation's sequence.
//
// ID is the server-issued identifier and is empty while the entry is
// provisional (a push delivery that arrived before the server id was known,
// or a locally sent message). LocalID is set only on locally originated
// entries.
type Message struct {
	ID             string
	LocalID        string
	ConversationID string
	Content        string
	SenderName     string
	SenderID       string
	SentAt         time.Time
}

// Provisional reports whether the entry has not been matched to a server id yet.
func (m Message) Provisional() bool {
	return m.ID == ""
}

// ConversationSummary is the chat-list view of a conversation. UnreadCount is
// authoritative only when it comes from the server.
type ConversationSummary struct {
	ConversationID     string
	UnreadCount        int
	LastActivityAt     time.Time
	DeletedByCustomer  bool
	DeletedByPerformer bool
	CounterpartyName   string
}

// PeerDeleted reports whether the counterparty of a viewer with the given
// role has deleted the conversation. Only the peer's flag is meaningful.
func (s ConversationSummary) PeerDeleted(viewer Role) bool {
	switch viewer {
	case RoleCustomer:
		return s.DeletedByPerformer
	case RolePerformer:
		return s.DeletedByCustomer
	default:
		return false
	}
}

// FindSummary returns the summary for conversationID, if present.
func FindSummary(summaries []ConversationSummary, conversationID string) (ConversationSummary, bool) {
	for _, s := range summaries {
		if s.ConversationID == conversationID {
			return s, true
		}
	}
	return ConversationSummary{}, false
}
