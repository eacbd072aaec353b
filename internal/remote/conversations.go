package remote

import (
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/matheus3301/chatsync/internal/wire"
)

// CreateConversation opens a conversation between a customer and a performer.
func (db *DB) CreateConversation(customerID, performerID string) (*Conversation, error) {
	res, err := db.Exec(`
		INSERT INTO conversations (customer_id, performer_id, created_at) VALUES (?, ?, ?)`,
		customerID, performerID, time.Now().UnixMilli())
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &Conversation{ID: id, CustomerID: customerID, PerformerID: performerID}, nil
}

// Conversation returns a conversation by id.
func (db *DB) Conversation(id int64) (*Conversation, error) {
	var c Conversation
	err := db.QueryRow(`
		SELECT id, customer_id, performer_id, deleted_by_customer, deleted_by_performer
		FROM conversations WHERE id = ?`, id).
		Scan(&c.ID, &c.CustomerID, &c.PerformerID, &c.DeletedByCustomer, &c.DeletedByPerformer)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ConversationFor returns the conversation if userID takes part in it.
func (db *DB) ConversationFor(id int64, userID string) (*Conversation, error) {
	c, err := db.Conversation(id)
	if err != nil {
		return nil, err
	}
	if !c.Has(userID) {
		return nil, ErrNotFound
	}
	return c, nil
}

// ListSummaries returns userID's conversations, most recently active first.
// Conversations the user deleted themselves are left out; the peer's
// deletion is reported through the flags.
func (db *DB) ListSummaries(userID string) ([]wire.Summary, error) {
	rows, err := db.Query(`
		SELECT c.id, c.deleted_by_customer, c.deleted_by_performer, u.display_name,
			COALESCE((SELECT MAX(m.sent_at) FROM messages m WHERE m.conversation_id = c.id), c.created_at) AS last_activity,
			(SELECT COUNT(*) FROM messages m
				WHERE m.conversation_id = c.id AND m.sender_id != :user
				AND m.sent_at > COALESCE((SELECT r.last_checked_at FROM read_markers r
					WHERE r.conversation_id = c.id AND r.user_id = :user), 0)) AS unread
		FROM conversations c
		JOIN users u ON u.id = CASE WHEN c.customer_id = :user THEN c.performer_id ELSE c.customer_id END
		WHERE (c.customer_id = :user AND c.deleted_by_customer = 0)
			OR (c.performer_id = :user AND c.deleted_by_performer = 0)
		ORDER BY last_activity DESC, c.id`, sql.Named("user", userID))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []wire.Summary
	for rows.Next() {
		var (
			id           int64
			s            wire.Summary
			lastActivity int64
		)
		if err := rows.Scan(&id, &s.DeletedByCustomer, &s.DeletedByPerformer, &s.CounterpartyName, &lastActivity, &s.UnreadCount); err != nil {
			return nil, err
		}
		s.ID = wire.ID(strconv.FormatInt(id, 10))
		s.LastActivityAt = time.UnixMilli(lastActivity).UTC()
		out = append(out, s)
	}
	return out, rows.Err()
}

// MarkRead advances userID's "last checked" marker. It never moves back.
func (db *DB) MarkRead(conversationID int64, userID string, at time.Time) error {
	_, err := db.Exec(`
		INSERT INTO read_markers (conversation_id, user_id, last_checked_at) VALUES (?, ?, ?)
		ON CONFLICT(conversation_id, user_id) DO UPDATE SET
			last_checked_at = MAX(read_markers.last_checked_at, excluded.last_checked_at)`,
		conversationID, userID, at.UnixMilli())
	return err
}

// SetDeleted sets or clears the deletion flag of userID's side.
func (db *DB) SetDeleted(c *Conversation, userID string, deleted bool) error {
	column := "deleted_by_performer"
	if userID == c.CustomerID {
		column = "deleted_by_customer"
	}
	_, err := db.Exec(`UPDATE conversations SET `+column+` = ? WHERE id = ?`, deleted, c.ID)
	return err
}
