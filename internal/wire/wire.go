// Package wire holds the JSON shapes exchanged with the chat service, both
// over REST and inside push-channel frames.
package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/matheus3301/chatsync/internal/store"
)

// Envelope types.
const (
	TypeChat  = "CHAT"
	TypeJoin  = "JOIN"
	TypeLeave = "LEAVE"
)

// Error-topic codes.
const CodeConversationDeleted = "CONVERSATION_DELETED"

// ID is an identifier the server may encode either as a JSON string or as a
// number. It always decodes to its decimal/string form.
type ID string

// UnmarshalJSON accepts "42", 42 and null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*id = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("id must be a string or a number: %w", err)
		}
		*id = ID(n.String())
		return nil
	}
}

// Message is a chat message as returned by the message-list endpoint.
type Message struct {
	ID             ID        `json:"id,omitempty"`
	ConversationID ID        `json:"conversationId"`
	Content        string    `json:"content"`
	SenderName     string    `json:"senderName"`
	SenderID       ID        `json:"senderId"`
	SentAt         time.Time `json:"sentAt"`
}

// ToStore converts the wire message to a store entry.
func (m Message) ToStore() store.Message {
	return store.Message{
		ID:             string(m.ID),
		ConversationID: string(m.ConversationID),
		Content:        m.Content,
		SenderName:     m.SenderName,
		SenderID:       string(m.SenderID),
		SentAt:         m.SentAt,
	}
}

// Summary is one row of the conversation-summary list.
type Summary struct {
	ID                 ID        `json:"id"`
	UnreadCount        int       `json:"unreadCount"`
	LastActivityAt     time.Time `json:"lastActivityAt"`
	DeletedByCustomer  bool      `json:"deletedByCustomer"`
	DeletedByPerformer bool      `json:"deletedByPerformer"`
	CounterpartyName   string    `json:"counterpartyName"`
}

// ToStore converts the wire summary, clamping a negative unread count to zero.
func (s Summary) ToStore() store.ConversationSummary {
	unread := s.UnreadCount
	if unread < 0 {
		unread = 0
	}
	return store.ConversationSummary{
		ConversationID:     string(s.ID),
		UnreadCount:        unread,
		LastActivityAt:     s.LastActivityAt,
		DeletedByCustomer:  s.DeletedByCustomer,
		DeletedByPerformer: s.DeletedByPerformer,
		CounterpartyName:   s.CounterpartyName,
	}
}

// Envelope is a push-channel frame body for JOIN/LEAVE announcements and
// chat messages, in both directions. ID and SentAt are set only by the
// server, and may be absent even then.
type Envelope struct {
	ID             ID         `json:"id,omitempty"`
	ConversationID ID         `json:"conversationId"`
	SenderID       ID         `json:"senderId"`
	SenderName     string     `json:"senderName,omitempty"`
	Type           string     `json:"type"`
	Content        string     `json:"content,omitempty"`
	SentAt         *time.Time `json:"sentAt,omitempty"`
}

// ToStore converts a chat envelope to a store entry. received is used when
// the frame carries no timestamp.
func (e Envelope) ToStore(received time.Time) store.Message {
	sent := received
	if e.SentAt != nil && !e.SentAt.IsZero() {
		sent = *e.SentAt
	}
	return store.Message{
		ID:             string(e.ID),
		ConversationID: string(e.ConversationID),
		Content:        e.Content,
		SenderName:     e.SenderName,
		SenderID:       string(e.SenderID),
		SentAt:         sent,
	}
}

// Validate checks the fields every envelope needs.
func (e Envelope) Validate() error {
	switch {
	case e.ConversationID == "":
		return fmt.Errorf("envelope missing conversationId")
	case e.SenderID == "":
		return fmt.Errorf("envelope missing senderId")
	case e.Type == "":
		return fmt.Errorf("envelope missing type")
	}
	return nil
}

// ErrorNotice is a frame on a user's error topic.
type ErrorNotice struct {
	ConversationID ID     `json:"conversationId"`
	Code           string `json:"code"`
	Message        string `json:"message"`
}
