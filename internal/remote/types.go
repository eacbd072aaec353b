package remote

import (
	"errors"

	"github.com/matheus3301/chatsync/internal/store"
)

var (
	// ErrNotFound is returned for unknown users and conversations, and for
	// conversations the caller does not take part in.
	ErrNotFound = errors.New("not found")
	// ErrDeleted is returned when writing to a conversation either party deleted.
	ErrDeleted = errors.New("conversation deleted")
)

// User is a service account.
type User struct {
	ID          string
	DisplayName string
	Role        store.Role
	Token       string
}

// Conversation is a customer/performer pair.
type Conversation struct {
	ID                 int64
	CustomerID         string
	PerformerID        string
	DeletedByCustomer  bool
	DeletedByPerformer bool
}

// Peer returns the other participant of userID.
func (c *Conversation) Peer(userID string) string {
	if userID == c.CustomerID {
		return c.PerformerID
	}
	return c.CustomerID
}

// Has reports whether userID takes part in the conversation.
func (c *Conversation) Has(userID string) bool {
	return userID == c.CustomerID || userID == c.PerformerID
}

// Deleted reports whether either party deleted the conversation.
func (c *Conversation) Deleted() bool {
	return c.DeletedByCustomer || c.DeletedByPerformer
}

// Message is a persisted chat message. SentAt is unix milliseconds.
type Message struct {
	ID             int64
	ConversationID int64
	SenderID       string
	SenderName     string
	Content        string
	SentAt         int64
}
