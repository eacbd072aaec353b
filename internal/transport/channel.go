package transport

import "context"

// Destinations on the push channel.
const (
	JoinDestination = "/app/chat.join"
	SendDestination = "/app/chat.send"
)

// ConversationTopic is where the server fans out a conversation's messages.
func ConversationTopic(conversationID string) string {
	return "/topic/conversations." + conversationID
}

// ErrorTopic is the per-user topic for error notices.
func ErrorTopic(userID string) string {
	return "/topic/users." + userID + ".errors"
}

// Channel is one established push session.
//
// The channel returned by Subscribe is closed when the subscription ends,
// either because Close was called or because the session dropped.
type Channel interface {
	Subscribe(destination string) (<-chan []byte, error)
	Send(destination string, body []byte) error
	Close() error
}

// Dialer opens push sessions authenticated with a bearer token.
type Dialer interface {
	Dial(ctx context.Context, token string) (Channel, error)
}
